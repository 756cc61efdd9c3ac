package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity registry.
type Metrics struct {
	IdentitiesIssued  prometheus.Counter
	IdentitiesRevoked prometheus.Counter
	IssueRejected     *prometheus.CounterVec
	IssueDuration     prometheus.Histogram
	RevokeDuration    prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		IdentitiesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proofid_identities_issued_total",
			Help: "Total number of identities issued",
		}),
		IdentitiesRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proofid_identities_revoked_total",
			Help: "Total number of identities transitioned to revoked",
		}),
		IssueRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "proofid_identity_issue_rejected_total",
			Help: "Identity issuance attempts rejected, by reason",
		}, []string{"reason"}),
		IssueDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "proofid_identity_issue_duration_seconds",
			Help:    "Duration of IssueIdentity operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		RevokeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "proofid_identity_revoke_duration_seconds",
			Help:    "Duration of RevokeIdentity operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementIssued() {
	m.IdentitiesIssued.Inc()
}

func (m *Metrics) IncrementRevoked() {
	m.IdentitiesRevoked.Inc()
}

// IncrementIssueRejected records a rejected issuance; reason is the error code.
func (m *Metrics) IncrementIssueRejected(reason string) {
	m.IssueRejected.WithLabelValues(reason).Inc()
}

// ObserveIssue records the duration of an IssueIdentity call started at start.
func (m *Metrics) ObserveIssue(start time.Time) {
	m.IssueDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveRevoke(start time.Time) {
	m.RevokeDuration.Observe(time.Since(start).Seconds())
}
