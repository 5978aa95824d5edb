package connect

import (
	"context"

	"github.com/nimbusmqtt/broker/channel"
	"github.com/nimbusmqtt/broker/config"
	"github.com/nimbusmqtt/broker/eventlog"
	"github.com/nimbusmqtt/broker/extauth"
	"github.com/nimbusmqtt/broker/metrics"
	"github.com/nimbusmqtt/broker/packets"
	"github.com/nimbusmqtt/broker/registry"
	"github.com/nimbusmqtt/broker/session"
)

// ConnackSender is the outbound-write collaborator (spec.md §6
// "Outbound... CONNACK packets"); the wire encoder that turns a
// packets.ConnackMessage into bytes is out of scope.
type ConnackSender interface {
	SendConnack(ack *packets.ConnackMessage) error
}

// Pipeline wires together every component of spec.md §4 into the single
// sequential flow §2 describes: Validator → Auth Orchestrator → Will-Auth
// Stage → Takeover Arbiter → Session Installer → CONNACK Builder →
// keep-alive installation.
type Pipeline struct {
	Validator        *Validator
	Orchestrator     *Orchestrator
	WillAuth         *WillAuthStage
	Arbiter          *Arbiter
	SessionInstaller *SessionInstaller
	ConnackBuilder   *ConnackBuilder
	Authenticators   *extauth.Authenticators
	Capabilities     *config.Capabilities
	Events           *eventlog.EventLog
	Metrics          *metrics.Metrics
	GraceFactor      float64
	OnIdle           func(ch *channel.Channel)
	PollService      PublishPollService
}

// NewPipeline assembles a Pipeline from its collaborators, grounded on the
// same wiring teacher server.go's Server struct performs in New (one
// struct holding every subsystem the CONNECT handler touches).
func NewPipeline(caps *config.Capabilities, reg *registry.Registry, store session.Store, authers *extauth.Authenticators, authorizers *extauth.Authorizers, events *eventlog.EventLog, m *metrics.Metrics, onIdle func(ch *channel.Channel)) *Pipeline {
	return &Pipeline{
		Validator:        NewValidator(caps),
		Orchestrator:     NewOrchestrator(m),
		WillAuth:         NewWillAuthStage(authorizers),
		Arbiter:          NewArbiter(reg, events, m),
		SessionInstaller: NewSessionInstaller(reg, store, caps, m),
		ConnackBuilder:   NewConnackBuilder(caps, NewTopicAliasLimiter(caps.TopicAliasGlobalLimit)),
		Authenticators:   authers,
		Capabilities:     caps,
		Events:           events,
		Metrics:          m,
		GraceFactor:      caps.MQTTConnectionKeepAliveFactor,
		OnIdle:           onIdle,
		PollService:      noopPollService{},
	}
}

// Admit runs the full admission pipeline for connect, returning the
// installed, live Channel on success. On failure it sends the mapped
// CONNACK, emits the corresponding event, and closes the channel itself
// (spec.md §7), returning a non-nil error.
//
// guard must be the ConnectionGuard created for the raw connection connect
// arrived on. Admit arms it immediately, before any other work (spec.md
// §4.1): a second CONNECT racing on the same connection is rejected with
// no CONNACK and no channel, per "do not proceed".
func (p *Pipeline) Admit(ctx context.Context, connect *packets.ConnectMessage, sender ConnackSender, guard *ConnectionGuard) (*channel.Channel, error) {
	if !guard.Arm() {
		return nil, packets.ErrProtocolViolation
	}

	n, code := p.Validator.Validate(connect)
	if code != packets.CodeSuccess {
		// No normalized identifier yet (e.g. the identifier itself was
		// the problem); log against the raw, possibly-empty one.
		ch := channel.New(connect.ClientIdentifier, false)
		ch.SetConnectMessage(connect)
		return nil, p.fail(ch, connect, code, code.Reason, sender)
	}

	ch := channel.New(n.ClientIdentifier, n.ClientIDAssigned)
	ch.SetConnectMessage(connect)

	outcome, err := p.Orchestrator.Authenticate(ctx, ch, connect, p.Authenticators, p.Capabilities.DenyUnauthenticatedConnections)
	if err != nil {
		return nil, p.fail(ch, connect, packets.ErrUnspecifiedError, err.Error(), sender)
	}
	if !outcome.Authenticated {
		p.Events.OnAuthFailed(ch, outcome.FailureCode, outcome.FailureReason, connect.Properties.UserProperties)
		return nil, p.fail(ch, connect, outcome.FailureCode, outcome.FailureReason, sender)
	}
	ch.SetAuthenticated(true, outcome.Bypassed, connect.Properties.AuthMethod, outcome.Permissions, outcome.UserProperties)

	if connect.Will != nil {
		willResult := p.WillAuth.Authorize(connect, outcome.Permissions)
		if !willResult.Authorized {
			p.Events.OnAuthFailed(ch, willResult.ReasonCode, willResult.ReasonString, connect.Properties.UserProperties)
			return nil, p.fail(ch, connect, willResult.ReasonCode, willResult.ReasonString, sender)
		}
		// prevent_lwt stays true; only the steady-state pipeline clears
		// it once the will is accepted for future delivery (spec.md
		// §4.3).
	}

	if err := p.Arbiter.Takeover(ctx, n.ClientIdentifier); err != nil {
		return nil, p.fail(ch, connect, packets.ErrUnspecifiedError, err.Error(), sender)
	}

	sessionPresent, err := p.SessionInstaller.Install(ctx, ch, n)
	if err != nil {
		return nil, p.fail(ch, connect, packets.ErrUnspecifiedError, err.Error(), sender)
	}

	ack := p.ConnackBuilder.BuildSuccess(ch, n, sessionPresent)

	ch.MarkConnackPending()
	if err := sender.SendConnack(ack); err != nil {
		ch.Close()
		return nil, err
	}
	// The write future's two listeners, in order (spec.md §4.6): first
	// the sent-listener that clears the pending gate, then the
	// poll-inflight listener that drains the client's queued messages.
	// SendConnack above is synchronous, so "observing the future resolve"
	// collapses into running both listeners immediately after it returns.
	ch.ClearConnackPending()
	p.PollService.PollMessages(n.ClientIdentifier)

	p.Metrics.IncConnack("success")

	var stages []channel.Stage
	if ch.KeepAlive() > 0 {
		stages = append(stages, NewKeepAliveStage(ch.KeepAlive(), p.GraceFactor, p.OnIdle))
	}
	stages = append(stages, &registryCleanupStage{reg: p.SessionInstaller.Registry, id: n.ClientIdentifier})
	if ack.TopicAliasMaximumPresent {
		stages = append(stages, &aliasReleaseStage{limiter: p.ConnackBuilder.AliasLimiter, n: ack.TopicAliasMaximum})
	}
	p.SessionInstaller.Finish(ch, n.ClientIdentifier, stages...)

	p.Events.ClientConnected(ch)

	return ch, nil
}

// fail sends the mapped failure CONNACK, emits OnServerDisconnect, and
// closes ch, per spec.md §7's fatal-error recipe.
func (p *Pipeline) fail(ch *channel.Channel, connect *packets.ConnectMessage, code packets.Code, reasonString string, sender ConnackSender) error {
	ack := p.ConnackBuilder.BuildFailure(connect.ProtocolVersion, code, reasonString)
	_ = sender.SendConnack(ack)
	p.Metrics.IncConnack(code.Reason)
	p.Events.OnServerDisconnect(ch, code, connect.Properties.UserProperties)
	ch.Close()
	return code
}
