package connect

import (
	"context"

	"github.com/nimbusmqtt/broker/channel"
	"github.com/nimbusmqtt/broker/config"
	"github.com/nimbusmqtt/broker/metrics"
	"github.com/nimbusmqtt/broker/registry"
	"github.com/nimbusmqtt/broker/session"
)

// SessionInstaller implements spec.md §4.5. Grounded on teacher server.go's
// inheritClientSession (registry insertion + session-state decisions)
// and SendConnack's call sequence (persist, then acknowledge).
type SessionInstaller struct {
	Registry     *registry.Registry
	Store        session.Store
	Capabilities *config.Capabilities
	metrics      *metrics.Metrics
}

// NewSessionInstaller returns a SessionInstaller wiring reg and store.
func NewSessionInstaller(reg *registry.Registry, store session.Store, caps *config.Capabilities, m *metrics.Metrics) *SessionInstaller {
	return &SessionInstaller{Registry: reg, Store: store, Capabilities: caps, metrics: m}
}

// Install runs spec.md §4.5 steps 1-3 for ch admitting n, returning the
// session-present flag the CONNACK Builder should use.
func (s *SessionInstaller) Install(ctx context.Context, ch *channel.Channel, n *NormalizedConnect) (sessionPresent bool, err error) {
	s.Registry.Swap(n.ClientIdentifier, ch)

	var sessionExists bool
	var effectiveExpiry uint32

	if n.CleanStart {
		sessionExists = false
		effectiveExpiry = n.SessionExpiryInterval
		if effectiveExpiry > s.Capabilities.MaxSessionExpiryInterval {
			effectiveExpiry = s.Capabilities.MaxSessionExpiryInterval
		}
	} else {
		sessionExists = s.Store.Exists(n.ClientIdentifier)
		effectiveExpiry = n.SessionExpiryInterval
		if effectiveExpiry > s.Capabilities.MaxSessionExpiryInterval {
			effectiveExpiry = s.Capabilities.MaxSessionExpiryInterval
		}
	}

	fut := s.Store.StartPersistence(n.ClientIdentifier, sessionExists, effectiveExpiry)
	present, err := fut.Wait(ctx)
	if err != nil {
		return false, err
	}

	s.metrics.IncSessionPersisted()
	return present, nil
}

// Finish implements spec.md §4.5 step 4: invalidate the shared-cache
// entry and install stages (typically the keep-alive stage plus teardown
// stages that release resources acquired during admission). CONNACK send
// and pipeline re-dispatch are the caller's (admit.go's) responsibility,
// since this package has no pipeline/transport handle to re-fire a
// packet through. Nil stages are skipped.
func (s *SessionInstaller) Finish(ch *channel.Channel, clientID string, stages ...channel.Stage) {
	s.Store.InvalidateSharedCache(clientID)
	live := make([]channel.Stage, 0, len(stages))
	for _, stage := range stages {
		if stage != nil {
			live = append(live, stage)
		}
	}
	if len(live) > 0 {
		ch.AttachStages(live...)
	}
}
