package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for access gate decisions.
type Metrics struct {
	Verifications *prometheus.CounterVec
	VerifyErrors  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "proofid_gate_verifications_total",
			Help: "Access gate verifications, by predicate and outcome",
		}, []string{"predicate", "outcome"}),
		VerifyErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proofid_gate_verify_errors_total",
			Help: "Access gate verifications that failed on an infrastructure error",
		}),
	}
}

func (m *Metrics) IncrementVerification(predicate string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.Verifications.WithLabelValues(predicate, outcome).Inc()
}

func (m *Metrics) IncrementVerifyError() {
	m.VerifyErrors.Inc()
}
