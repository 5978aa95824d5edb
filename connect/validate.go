// Package connect implements the CONNECT admission pipeline: Validator,
// Authentication Orchestrator, Will-Authorization Stage, Takeover
// Arbiter, Session Installer, CONNACK Builder, and keep-alive
// installation (spec.md §4). Grounded throughout on the teacher's
// server.go CONNECT handling (validateConnect, inheritClientSession,
// SendConnack), restructured from one monolithic *Server method set into
// the spec's named pipeline stages.
package connect

import (
	"github.com/rs/xid"

	"github.com/nimbusmqtt/broker/config"
	"github.com/nimbusmqtt/broker/packets"
)

// NormalizedConnect is the default-filled CONNECT the Validator produces.
// Grounded on spec.md §9's Open Question 2 resolution: the teacher's
// validateConnect/decoder mutates the decoded packet's defaults in place;
// this builds a separate value instead so the original decoded
// packets.ConnectMessage is never aliased or mutated.
type NormalizedConnect struct {
	*packets.ConnectMessage

	// ClientIdentifier shadows the embedded ConnectMessage field: when
	// the client sent an empty identifier, this holds the
	// server-generated one instead, without mutating the decoded
	// packet. ClientIDAssigned reports which case applies (spec.md §3
	// "client_id_assigned: true iff the server chose the identifier").
	ClientIdentifier string
	ClientIDAssigned bool

	SessionExpiryInterval     uint32
	ReceiveMaximum            uint16
	TopicAliasMaximum         uint16
	MaxPacketSize             uint32
	MaxPacketSizeUnlimited    bool
	RequestResponseInfo       bool
	RequestProblemInfo        bool
	WillMessageExpiryInterval uint32
	WillDelayInterval         uint32
}

// Validator implements spec.md §4.1: default-fill plus the
// identifier/will rejection checks. Grounded on teacher server.go's
// validateConnect (the sequential-check-returning-packets.Code shape).
type Validator struct {
	Capabilities *config.Capabilities
}

// NewValidator returns a Validator enforcing caps.
func NewValidator(caps *config.Capabilities) *Validator {
	return &Validator{Capabilities: caps}
}

// Validate normalizes msg and checks it against server capabilities,
// returning the normalized value and CodeSuccess, or a zero value and the
// CONNACK failure reason on rejection (spec.md §4.1).
func (v *Validator) Validate(msg *packets.ConnectMessage) (*NormalizedConnect, packets.Code) {
	n := v.defaultFill(msg)

	if len(n.ClientIdentifier) > v.Capabilities.MaxClientIDLength {
		if msg.IsV5() {
			return nil, packets.ErrClientIdentifierNotValid
		}
		return nil, packets.Err3IdentifierRejected
	}

	if msg.Will != nil {
		if containsWildcard(msg.Will.Topic) {
			return nil, packets.ErrTopicNameInvalid
		}
		if msg.Will.Qos > v.Capabilities.MaximumQos {
			return nil, packets.ErrQosNotSupported
		}
		if msg.Will.Retain && !v.Capabilities.RetainedMessagesEnabled {
			return nil, packets.ErrRetainNotSupported
		}
	}

	return n, packets.CodeSuccess
}

// defaultFill substitutes sentinel unset v5 properties with their
// documented defaults (spec.md §4.1), building a NormalizedConnect rather
// than mutating msg.
func (v *Validator) defaultFill(msg *packets.ConnectMessage) *NormalizedConnect {
	n := &NormalizedConnect{
		ConnectMessage:      msg,
		ClientIdentifier:    msg.ClientIdentifier,
		RequestResponseInfo: false,
		RequestProblemInfo:  true,
	}

	if n.ClientIdentifier == "" {
		// Grounded on teacher clients.go/mqtt.go's cl.id =
		// xid.New().String() fallback for an unset client identifier.
		n.ClientIdentifier = xid.New().String()
		n.ClientIDAssigned = true
	}

	if p := msg.Properties.SessionExpiryInterval; p != nil {
		n.SessionExpiryInterval = *p
	} else {
		n.SessionExpiryInterval = 0
	}

	if p := msg.Properties.ReceiveMaximum; p != nil {
		n.ReceiveMaximum = *p
	} else {
		n.ReceiveMaximum = v.Capabilities.ServerReceiveMaximum
	}

	if p := msg.Properties.TopicAliasMaximum; p != nil {
		n.TopicAliasMaximum = *p
	} else {
		n.TopicAliasMaximum = 0
	}

	if p := msg.Properties.MaximumPacketSize; p != nil {
		n.MaxPacketSize = *p
	} else {
		n.MaxPacketSizeUnlimited = true
	}

	if p := msg.Properties.RequestResponseInfo; p != nil {
		n.RequestResponseInfo = *p
	}

	if p := msg.Properties.RequestProblemInfo; p != nil {
		n.RequestProblemInfo = *p
	}

	if msg.Will != nil {
		if p := msg.Will.MessageExpiryInterval; p != nil {
			n.WillMessageExpiryInterval = *p
			if v.Capabilities.MaxMessageExpiryInterval > 0 && n.WillMessageExpiryInterval > v.Capabilities.MaxMessageExpiryInterval {
				n.WillMessageExpiryInterval = v.Capabilities.MaxMessageExpiryInterval
			}
		}
		if p := msg.Will.DelayInterval; p != nil {
			n.WillDelayInterval = *p
		}
	}

	return n
}

// containsWildcard reports whether topic contains an MQTT wildcard
// character, which is invalid in a will topic (spec.md §4.1, §8 scenario
// 5).
func containsWildcard(topic string) bool {
	for _, c := range topic {
		if c == '#' || c == '+' {
			return true
		}
	}
	return false
}
