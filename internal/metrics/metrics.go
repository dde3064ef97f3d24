// Package metrics exposes Prometheus instrumentation for the routing engine.
//
// All methods are safe to call on a nil *Metrics, so components can take
// metrics as an optional dependency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides observability for event appends, rule evaluation and
// notification hand-off.
type Metrics struct {
	// Events appended to the log by type and entry point ("public", "raw")
	EventsAppended *prometheus.CounterVec

	// Rule outcomes by status (SUCCESS, SKIPPED, FAILED)
	RuleOutcomes *prometheus.CounterVec

	// Evaluations that found no rules table
	EngineAbsent prometheus.Counter

	// Duration of one engine evaluation, all candidate rules included
	EvaluateLatency prometheus.Histogram

	// Notification hand-offs by result ("queued", "dropped", "sent", "failed")
	Notifications *prometheus.CounterVec
}

// New creates a Metrics instance registered with reg.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchyard_events_appended_total",
			Help: "Total domain events appended by type and entry point",
		}, []string{"type", "path"}),

		RuleOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchyard_rule_executions_total",
			Help: "Total workflow rule executions by outcome status",
		}, []string{"status"}),

		EngineAbsent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchyard_engine_absent_total",
			Help: "Evaluations skipped because the rules table could not be read",
		}),

		EvaluateLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "switchyard_evaluate_duration_seconds",
			Help:    "Duration of rule evaluation for one event",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),

		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchyard_notifications_total",
			Help: "Notification hand-offs by result",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.EventsAppended,
		m.RuleOutcomes,
		m.EngineAbsent,
		m.EvaluateLatency,
		m.Notifications,
	)
	return m
}

// IncrementEventAppended records an appended event.
func (m *Metrics) IncrementEventAppended(eventType, path string) {
	if m != nil {
		m.EventsAppended.WithLabelValues(eventType, path).Inc()
	}
}

// IncrementRuleOutcome records one ledger row.
func (m *Metrics) IncrementRuleOutcome(status string) {
	if m != nil {
		m.RuleOutcomes.WithLabelValues(status).Inc()
	}
}

// IncrementEngineAbsent records an evaluation that found no rules table.
func (m *Metrics) IncrementEngineAbsent() {
	if m != nil {
		m.EngineAbsent.Inc()
	}
}

// ObserveEvaluateLatency records the duration of one evaluation.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// IncrementNotification records a notification hand-off result.
func (m *Metrics) IncrementNotification(result string) {
	if m != nil {
		m.Notifications.WithLabelValues(result).Inc()
	}
}
