package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the health record store.
type Metrics struct {
	RecordsCreated    prometheus.Counter
	AccessGranted     prometheus.Counter
	AccessRevoked     prometheus.Counter
	ReadsDenied       prometheus.Counter
	OperationRejected *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		RecordsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proofid_records_created_total",
			Help: "Total number of health records created",
		}),
		AccessGranted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proofid_record_access_granted_total",
			Help: "Grants that added a principal to a record ACL",
		}),
		AccessRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proofid_record_access_revoked_total",
			Help: "Revocations that removed a principal from a record ACL",
		}),
		ReadsDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proofid_record_reads_denied_total",
			Help: "Record reads denied to unauthorized callers",
		}),
		OperationRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "proofid_record_operation_rejected_total",
			Help: "Record operations rejected, by operation and reason",
		}, []string{"operation", "reason"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proofid_record_operation_duration_seconds",
			Help:    "Duration of record operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementCreated()     { m.RecordsCreated.Inc() }
func (m *Metrics) IncrementGranted()     { m.AccessGranted.Inc() }
func (m *Metrics) IncrementRevoked()     { m.AccessRevoked.Inc() }
func (m *Metrics) IncrementReadsDenied() { m.ReadsDenied.Inc() }

func (m *Metrics) IncrementRejected(operation, reason string) {
	m.OperationRejected.WithLabelValues(operation, reason).Inc()
}

func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
