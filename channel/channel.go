// SPDX-License-Identifier: MIT

// Package channel defines Channel, the per-connection attribute bag spec
// §3 describes ("Channel State... consumed by later stages"). It is
// adapted from the teacher's Client type
// (github.com/mochi-mqtt/server/v2 internal/clients/clients.go): same
// idea of a struct guarded by its own RWMutex holding connection identity,
// auth state and LWT, generalized with the admission-specific fields
// (auth verdicts, topic alias table, disconnect future) spec §3 requires
// and stripped of the wire-level reader/writer/in-flight fields that
// belong to the steady-state pipeline, not admission.
package channel

import (
	"sync"

	"github.com/nimbusmqtt/broker/packets"
)

// AliasSlot is one entry of the topic-alias mapping table (spec §3
// "topic_alias_mapping: array of slot→topic of size topic_alias_maximum").
type AliasSlot struct {
	Topic string
	Used  bool
}

// Stage is a lifecycle handler the Session Installer attaches to a
// channel after admission succeeds (spec §4.5: keep-alive, ordered
// delivery, flow control). Their internals are out of scope; the core
// only needs to start and stop them.
type Stage interface {
	Start(ch *Channel)
	Stop(ch *Channel)
}

// Channel is the per-connection attribute bag created on CONNECT and torn
// down on disconnect.
type Channel struct {
	mu sync.RWMutex

	id               string
	clientIDAssigned bool
	takenOver        bool
	closed           bool
	connackPending   bool

	disconnectFuture *Future

	authenticated      bool
	authBypassed       bool
	authMethod         string
	authPermissions    interface{}
	authUserProperties []packets.UserProperty
	authBuffering      bool

	preventLWT bool

	clientReceiveMaximum  uint16
	maxPacketSizeSend     uint32
	connectKeepAlive      uint16
	sessionExpiryInterval uint32
	topicAliasMapping     []AliasSlot

	requestResponseInformation bool
	requestProblemInformation  bool

	connectMessage *packets.ConnectMessage

	stages []Stage
}

// New returns a freshly created Channel for id, with prevent_lwt set per
// spec §3 invariant 2 ("prevent_lwt is false only after will-authorization
// succeeded") and a fresh, unfired disconnect future.
func New(id string, clientIDAssigned bool) *Channel {
	return &Channel{
		id:               id,
		clientIDAssigned: clientIDAssigned,
		disconnectFuture: NewFuture(),
		preventLWT:       true,
	}
}

// ID returns the channel's client identifier. Satisfies registry.Channel.
func (c *Channel) ID() string { return c.id }

// ClientIDAssigned reports whether the server, not the client, chose the
// identifier.
func (c *Channel) ClientIDAssigned() bool { return c.clientIDAssigned }

// DisconnectFuture returns the completion signal fired once this
// channel's close finishes (spec §3 disconnect_future).
func (c *Channel) DisconnectFuture() *Future { return c.disconnectFuture }

// MarkTakenOver sets taken_over to true, per spec §3 ("set true when a
// newer connection is displacing this one").
func (c *Channel) MarkTakenOver() {
	c.mu.Lock()
	c.takenOver = true
	c.mu.Unlock()
}

// TakenOver reports whether a newer connection is displacing this one.
func (c *Channel) TakenOver() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.takenOver
}

// SetConnectMessage retains the validated CONNECT for downstream stages
// (spec §3 connect_message).
func (c *Channel) SetConnectMessage(m *packets.ConnectMessage) {
	c.mu.Lock()
	c.connectMessage = m
	c.mu.Unlock()
}

// ConnectMessage returns the retained CONNECT.
func (c *Channel) ConnectMessage() *packets.ConnectMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connectMessage
}

// SetAuthenticated records the outcome of the Authentication Orchestrator
// (spec §4.2). The values are stored as given: a nil permissions is
// accepted even when authenticated is true.
func (c *Channel) SetAuthenticated(authenticated, bypassed bool, method string, permissions interface{}, userProps []packets.UserProperty) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = authenticated
	c.authBypassed = bypassed
	c.authMethod = method
	c.authPermissions = permissions
	c.authUserProperties = userProps
}

// Authenticated reports whether the channel passed authentication.
func (c *Channel) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

// AuthBypassed reports whether authentication was skipped (no
// authenticators configured; spec §4.2 "no authenticators registered ⇒
// authenticated=true, auth_bypassed=true").
func (c *Channel) AuthBypassed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authBypassed
}

// AuthPermissions returns the permission object the Authentication
// Orchestrator attached, or nil.
func (c *Channel) AuthPermissions() interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authPermissions
}

// AuthMethod returns the v5 auth-method the client authenticated with, if
// any.
func (c *Channel) AuthMethod() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authMethod
}

// AuthUserProperties drains the user-properties an authenticator
// attached, clearing them so a later caller doesn't observe them again
// (spec.md §4.6 "user_properties — drained from auth_user_properties",
// grounded on the original's
// channel.attr(AUTH_USER_PROPERTIES).getAndSet(null)).
func (c *Channel) AuthUserProperties() []packets.UserProperty {
	c.mu.Lock()
	defer c.mu.Unlock()
	props := c.authUserProperties
	c.authUserProperties = nil
	return props
}

// SetAuthBuffering toggles whether non-AUTH packets on this channel must
// be held rather than processed (spec.md §4.2: while a v5 CONNECT's
// auth-method is being resolved).
func (c *Channel) SetAuthBuffering(buffering bool) {
	c.mu.Lock()
	c.authBuffering = buffering
	c.mu.Unlock()
}

// AuthBuffering reports whether the channel is currently buffering
// non-AUTH packets pending enhanced-auth resolution.
func (c *Channel) AuthBuffering() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authBuffering
}

// SetPreventLWT toggles prevent_lwt. The Will-Authorization Stage clears
// it to false only after the LWT publish is authorized (spec §3
// invariant 2).
func (c *Channel) SetPreventLWT(prevent bool) {
	c.mu.Lock()
	c.preventLWT = prevent
	c.mu.Unlock()
}

// PreventLWT reports whether the channel's will must not be published
// yet.
func (c *Channel) PreventLWT() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.preventLWT
}

// SetLimits records the negotiated flow-control and session limits
// (spec §3: client_receive_maximum, max_packet_size_send,
// connect_keep_alive, session_expiry_interval) and allocates the
// topic-alias mapping table sized topicAliasMaximum.
func (c *Channel) SetLimits(receiveMaximum uint16, maxPacketSizeSend uint32, keepAlive uint16, sessionExpiryInterval uint32, topicAliasMaximum uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientReceiveMaximum = receiveMaximum
	c.maxPacketSizeSend = maxPacketSizeSend
	c.connectKeepAlive = keepAlive
	c.sessionExpiryInterval = sessionExpiryInterval
	c.topicAliasMapping = make([]AliasSlot, topicAliasMaximum)
}

// KeepAlive returns the negotiated keep-alive in seconds.
func (c *Channel) KeepAlive() uint16 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connectKeepAlive
}

// SessionExpiryInterval returns the negotiated session-expiry-interval in
// seconds.
func (c *Channel) SessionExpiryInterval() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionExpiryInterval
}

// MarkConnackPending sets the "CONNACK pending" gate, opened just before
// the CONNACK write is handed to the sender (spec.md §4.6's write-future
// sent-listener clears it once the write completes).
func (c *Channel) MarkConnackPending() {
	c.mu.Lock()
	c.connackPending = true
	c.mu.Unlock()
}

// ClearConnackPending closes the "CONNACK pending" gate. This is the
// sent-listener spec.md §4.6 describes as the first of the two listeners
// observing the CONNACK write future.
func (c *Channel) ClearConnackPending() {
	c.mu.Lock()
	c.connackPending = false
	c.mu.Unlock()
}

// ConnackPending reports whether the CONNACK write is still outstanding.
func (c *Channel) ConnackPending() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connackPending
}

// SetRequestFlags records the v5 request-response/problem-information
// flags.
func (c *Channel) SetRequestFlags(response, problem bool) {
	c.mu.Lock()
	c.requestResponseInformation = response
	c.requestProblemInformation = problem
	c.mu.Unlock()
}

// AttachStages installs the lifecycle stages the Session Installer
// starts after admission succeeds (spec §4.5). Their internals — keep-
// alive idle detection, ordered delivery, flow control — are out of
// scope; Channel only sequences Start/Stop.
func (c *Channel) AttachStages(stages ...Stage) {
	c.mu.Lock()
	c.stages = append(c.stages, stages...)
	c.mu.Unlock()
	for _, s := range stages {
		s.Start(c)
	}
}

// Close tears the channel down: stops every attached stage in reverse
// installation order and fires the disconnect future exactly once (spec
// §3 invariant 4), regardless of how many callers race to Close it.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stages := c.stages
	c.mu.Unlock()

	for i := len(stages) - 1; i >= 0; i-- {
		stages[i].Stop(c)
	}
	c.disconnectFuture.Fire()
}

// Closed reports whether Close has run.
func (c *Channel) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
