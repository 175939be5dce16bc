package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is process-wide: every Session is handed the same *Metrics, the
// way the corpus's dialog metrics collector is shared across dialogs rather
// than allocated per call (which would blow up cardinality on Call-ID).
type Metrics struct {
	sessionsActive      prometheus.Gauge
	sessionsTerminated  *prometheus.CounterVec
	commandsDispatched  prometheus.Counter
	commandsQueued      *prometheus.CounterVec
	correlationMismatch prometheus.Counter
	errorsPublished     prometheus.Counter
}

// NewMetrics registers the Control Session metrics with reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the global
// registry across test packages.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ctrlsession",
			Name:      "sessions_active",
			Help:      "Number of control sessions currently registered.",
		}),
		sessionsTerminated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ctrlsession",
			Name:      "sessions_terminated_total",
			Help:      "Control sessions terminated, by reason.",
		}, []string{"reason"}),
		commandsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ctrlsession",
			Name:      "commands_dispatched_total",
			Help:      "Commands handed to the switch driver.",
		}),
		commandsQueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ctrlsession",
			Name:      "commands_queued_total",
			Help:      "Commands placed on the queue, by insert_at (now commands are not counted).",
		}, []string{"insert_at"}),
		correlationMismatch: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ctrlsession",
			Name:      "correlation_mismatch_total",
			Help:      "Execute-complete events that did not retire the in-flight command.",
		}),
		errorsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ctrlsession",
			Name:      "errors_published_total",
			Help:      "dialplan/error events published back to the bus.",
		}),
	}
}

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *Metrics) sessionEnded(reason string) {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
	m.sessionsTerminated.WithLabelValues(reason).Inc()
}

func (m *Metrics) dispatched() {
	if m == nil {
		return
	}
	m.commandsDispatched.Inc()
}

func (m *Metrics) queued(insertAt InsertAt) {
	if m == nil {
		return
	}
	m.commandsQueued.WithLabelValues(insertAt.String()).Inc()
}

func (m *Metrics) mismatch() {
	if m == nil {
		return
	}
	m.correlationMismatch.Inc()
}

func (m *Metrics) errorPublished() {
	if m == nil {
		return
	}
	m.errorsPublished.Inc()
}
