package connect

import (
	"github.com/nimbusmqtt/broker/channel"
	"github.com/nimbusmqtt/broker/config"
	"github.com/nimbusmqtt/broker/packets"
)

// ConnackBuilder implements spec.md §4.6. Grounded on teacher server.go's
// SendConnack: same v3/v5 branch, same per-field conditional-inclusion
// shape, generalized to the fuller v5 property set spec.md §4.6 names
// (topic-alias allocation, server-keep-alive, session-expiry clamping
// visibility) that the teacher's SendConnack doesn't need to build (it
// mutates cl.Properties.Props directly rather than returning a value).
type ConnackBuilder struct {
	Capabilities *config.Capabilities
	AliasLimiter *TopicAliasLimiter
}

// NewConnackBuilder returns a ConnackBuilder honoring caps and allocating
// topic aliases from limiter.
func NewConnackBuilder(caps *config.Capabilities, limiter *TopicAliasLimiter) *ConnackBuilder {
	return &ConnackBuilder{Capabilities: caps, AliasLimiter: limiter}
}

// BuildSuccess builds the SUCCESS CONNACK for ch admitting n, given the
// already-resolved sessionPresent. It computes the effective keep-alive
// and session-expiry values itself and mutates ch to record the
// negotiated limits, per spec.md §4.6 ("Store the effective keep-alive in
// channel state").
func (b *ConnackBuilder) BuildSuccess(ch *channel.Channel, n *NormalizedConnect, sessionPresent bool) *packets.ConnackMessage {
	ack := &packets.ConnackMessage{
		ProtocolVersion: n.ProtocolVersion,
		SessionPresent:  sessionPresent,
		ReasonCode:      packets.CodeSuccess,
	}

	effectiveKeepAlive := b.effectiveKeepAlive(n.KeepAlive)
	effectiveExpiry := b.clampSessionExpiry(n.SessionExpiryInterval)

	if !n.IsV5() {
		ch.SetLimits(n.ReceiveMaximum, n.MaxPacketSize, effectiveKeepAlive, effectiveExpiry, 0)
		return ack
	}

	ack.ReceiveMaximum = b.Capabilities.ServerReceiveMaximum
	ack.MaximumQos = b.Capabilities.MaximumQos
	ack.RetainAvailable = b.Capabilities.RetainedMessagesEnabled
	ack.SubscriptionIdentifiersAvail = b.Capabilities.SubscriptionIdentifiersEnabled
	ack.WildcardSubscriptionAvailable = b.Capabilities.WildcardSubscriptionsEnabled
	ack.SharedSubscriptionAvailable = b.Capabilities.SharedSubscriptionsEnabled
	ack.MaximumPacketSize = b.Capabilities.MaxPacketSize
	ack.MaximumPacketSizePresent = b.Capabilities.MaxPacketSize > 0

	if effectiveExpiry != n.SessionExpiryInterval {
		ack.SessionExpiryInterval = effectiveExpiry
		ack.SessionExpiryIntervalPresent = true
	}

	if ch.ClientIDAssigned() {
		ack.AssignedClientIdentifier = n.ClientIdentifier
	}

	if effectiveKeepAlive != n.KeepAlive {
		ack.ServerKeepAlive = effectiveKeepAlive
		ack.ServerKeepAlivePresent = true
	}

	var aliasTableSize uint16
	if b.Capabilities.TopicAliasEnabled && b.Capabilities.TopicAliasMaxPerClient > 0 && b.AliasLimiter.AliasesAvailable() {
		reserved := b.AliasLimiter.InitUsage(b.Capabilities.TopicAliasMaxPerClient)
		if reserved > 0 {
			ack.TopicAliasMaximum = reserved
			ack.TopicAliasMaximumPresent = true
			aliasTableSize = reserved
		}
	}

	ack.UserProperties = ch.AuthUserProperties()

	ch.SetLimits(n.ReceiveMaximum, n.MaxPacketSize, effectiveKeepAlive, effectiveExpiry, aliasTableSize)
	ch.SetRequestFlags(n.RequestResponseInfo, n.RequestProblemInfo)

	return ack
}

// BuildFailure builds the failure CONNACK for code on a channel that has
// not yet completed admission, translating to the v3 return-code table
// when the client connected below v5 (spec.md §4.1, §7). A code below
// 0x80 is already a v3 return code (the Validator picks
// Err3IdentifierRejected itself for v3 clients) and is kept as is.
func (b *ConnackBuilder) BuildFailure(protocolVersion packets.ProtocolVersion, code packets.Code, reasonString string) *packets.ConnackMessage {
	if protocolVersion != packets.ProtocolV5 && code.Code >= 0x80 {
		code = packets.V3ReturnCode(code)
	}
	return &packets.ConnackMessage{
		ProtocolVersion: protocolVersion,
		SessionPresent:  false,
		ReasonCode:      code,
		ReasonString:    reasonString,
	}
}

// effectiveKeepAlive implements spec.md §4.6's server_keep_alive rule:
// when the client's keep-alive is 0 and zero is disallowed, or exceeds
// the server max, clamp to the server max; else pass through.
func (b *ConnackBuilder) effectiveKeepAlive(clientKeepAlive uint16) uint16 {
	if clientKeepAlive == 0 && !b.Capabilities.KeepAliveAllowZero {
		return b.Capabilities.KeepAliveMax
	}
	if clientKeepAlive > b.Capabilities.KeepAliveMax {
		return b.Capabilities.KeepAliveMax
	}
	return clientKeepAlive
}

// clampSessionExpiry implements spec.md §8's law: "min(x, M) applied
// twice equals once" — a plain min, safe to call on an already-clamped
// value.
func (b *ConnackBuilder) clampSessionExpiry(requested uint32) uint32 {
	if requested > b.Capabilities.MaxSessionExpiryInterval {
		return b.Capabilities.MaxSessionExpiryInterval
	}
	return requested
}
