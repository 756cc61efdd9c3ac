package publisher

import (
	"time"

	audit "proofid/pkg/platform/audit"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsEmitted   *prometheus.CounterVec
	PersistFailures prometheus.Counter
	SinkFailures    prometheus.Counter
	Dropped         prometheus.Counter
	PersistLatency  prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "proofid_audit_events_emitted_total",
			Help: "Total number of audit events persisted",
		}, []string{"category"}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proofid_audit_persist_failures_total",
			Help: "Total number of audit events that failed to persist",
		}),
		SinkFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proofid_audit_sink_failures_total",
			Help: "Total number of audit sink delivery failures",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proofid_audit_events_dropped_total",
			Help: "Total number of audit events dropped because the buffer was full",
		}),
		PersistLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "proofid_audit_persist_duration_seconds",
			Help:    "Latency of audit store writes",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
}

func (m *Metrics) IncEmitted(category audit.EventCategory) {
	m.EventsEmitted.WithLabelValues(string(category)).Inc()
}

func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

func (m *Metrics) IncSinkFailures() {
	m.SinkFailures.Inc()
}

func (m *Metrics) IncDropped() {
	m.Dropped.Inc()
}

func (m *Metrics) ObservePersistDuration(start time.Time) {
	m.PersistLatency.Observe(time.Since(start).Seconds())
}
