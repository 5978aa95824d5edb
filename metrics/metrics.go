// Package metrics exposes the Prometheus counters/gauges the admission
// core increments. Grounded on the teacher's system package
// (github.com/mochi-mqtt/server/v2 system/system.go), which imports
// github.com/prometheus/client_golang to back its $SYS exporter; that
// exporter itself is out of this core's scope, so this package uses the
// client library directly for counters instead of reproducing the $SYS
// topic tree.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of counters/gauges the admission pipeline updates.
// A nil *Metrics is valid and turns every method into a no-op, so tests
// and callers that don't care about observability can skip wiring one
// up.
type Metrics struct {
	AuthQueueFull     prometheus.Counter
	AuthVerdicts      *prometheus.CounterVec
	Takeovers         prometheus.Counter
	ConnacksByReason  *prometheus.CounterVec
	SessionsPersisted prometheus.Counter
}

// New registers and returns a Metrics bound to reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across packages.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthQueueFull: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "connect_auth_queue_full_total",
			Help: "CONNECT authentication/authorization tasks refused because the extension task queue was full (spec.md §9 Open Question 1).",
		}),
		AuthVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connect_auth_verdicts_total",
			Help: "Authentication Orchestrator verdicts by outcome.",
		}, []string{"verdict"}),
		Takeovers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "connect_takeovers_total",
			Help: "Completed session takeovers (spec.md §4.4).",
		}),
		ConnacksByReason: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connect_connacks_total",
			Help: "CONNACKs sent, by reason code.",
		}, []string{"reason"}),
		SessionsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "connect_sessions_persisted_total",
			Help: "Session-persistence completions (spec.md §4.5).",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.AuthQueueFull, m.AuthVerdicts, m.Takeovers, m.ConnacksByReason, m.SessionsPersisted)
	}

	return m
}

// IncAuthQueueFull records a refused extension-task submission.
func (m *Metrics) IncAuthQueueFull() {
	if m == nil {
		return
	}
	m.AuthQueueFull.Inc()
}

// IncAuthVerdict records an Authentication Orchestrator outcome
// ("success", "failure", "bypassed").
func (m *Metrics) IncAuthVerdict(verdict string) {
	if m == nil {
		return
	}
	m.AuthVerdicts.WithLabelValues(verdict).Inc()
}

// IncTakeover records a completed takeover.
func (m *Metrics) IncTakeover() {
	if m == nil {
		return
	}
	m.Takeovers.Inc()
}

// IncConnack records a CONNACK sent with the given reason string.
func (m *Metrics) IncConnack(reason string) {
	if m == nil {
		return
	}
	m.ConnacksByReason.WithLabelValues(reason).Inc()
}

// IncSessionPersisted records a completed session-persistence round trip.
func (m *Metrics) IncSessionPersisted() {
	if m == nil {
		return
	}
	m.SessionsPersisted.Inc()
}
