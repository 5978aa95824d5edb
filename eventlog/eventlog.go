// Package eventlog implements the EventLog collaborator spec.md §6
// describes (client_connected, client_disconnected, OnServerDisconnect,
// OnAuthFailed). Grounded on the teacher's inline structured-logging call
// sites throughout server.go (s.Log.Info/Warn/Debug with slog.String/
// slog.Any attribute pairs) — generalized here into named methods instead
// of call sites scattered across the handler.
package eventlog

import (
	"log/slog"

	"github.com/nimbusmqtt/broker/packets"
)

// Channel is the minimal shape EventLog needs from a channel, kept
// narrow so this package doesn't depend on package channel.
type Channel interface {
	ID() string
}

// EventLog logs admission lifecycle events via slog, the teacher's
// logging library throughout server.go.
type EventLog struct {
	log *slog.Logger
}

// New returns an EventLog writing through log, or through slog.Default()
// if log is nil.
func New(log *slog.Logger) *EventLog {
	if log == nil {
		log = slog.Default()
	}
	return &EventLog{log: log}
}

// ClientConnected logs a successful admission (spec.md §8 scenario 1:
// "eventLog.client_connected called once").
func (e *EventLog) ClientConnected(ch Channel) {
	e.log.Info("client connected", slog.String("client_id", ch.ID()))
}

// ClientDisconnected logs a channel teardown with its reason.
func (e *EventLog) ClientDisconnected(ch Channel, reason string) {
	e.log.Info("client disconnected", slog.String("client_id", ch.ID()), slog.String("reason", reason))
}

// OnServerDisconnect logs a fatal admission failure (spec.md §7: "every
// fatal error... emits an OnServerDisconnect or OnAuthFailed event with
// reason string and the CONNECT's user-properties").
func (e *EventLog) OnServerDisconnect(ch Channel, code packets.Code, userProps []packets.UserProperty) {
	e.log.Warn("server disconnect",
		slog.String("client_id", ch.ID()),
		slog.String("reason", code.Reason),
		slog.Int("code", int(code.Code)),
		slog.Any("user_properties", userProps),
	)
}

// OnAuthFailed logs an authentication/will-authorization failure.
func (e *EventLog) OnAuthFailed(ch Channel, code packets.Code, reasonString string, userProps []packets.UserProperty) {
	e.log.Warn("auth failed",
		slog.String("client_id", ch.ID()),
		slog.String("reason", code.Reason),
		slog.String("reason_string", reasonString),
		slog.Int("code", int(code.Code)),
		slog.Any("user_properties", userProps),
	)
}

// OnTakeover logs a displaced channel (spec.md §4.4: "Log an event
// 'Another client connected with the same client id' on the displaced
// channel").
func (e *EventLog) OnTakeover(ch Channel) {
	e.log.Info("another client connected with the same client id", slog.String("client_id", ch.ID()))
}
