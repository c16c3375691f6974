package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/David567rs/LoginAna/internal/core/domain"
	"github.com/David567rs/LoginAna/internal/core/port"
)

const namespace = "auth"

// Verification outcomes used as the outcome label.
const (
	OutcomeConsumed = "consumed"
	OutcomeExpired  = "expired"
	OutcomeMismatch = "mismatch"
	OutcomeNotFound = "not_found"
	OutcomePurpose  = "wrong_purpose"
)

// EngineMetrics exposes Prometheus counters for challenge issuance, verification
// outcomes and delivery failures.
type EngineMetrics struct {
	issued           *prometheus.CounterVec
	verifications    *prometheus.CounterVec
	deliveryFailures *prometheus.CounterVec
}

var _ port.EngineMetrics = (*EngineMetrics)(nil)

// NewEngineMetrics registers the engine collectors on reg. A nil reg uses the default registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &EngineMetrics{
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_issued_total",
			Help:      "Challenges issued by channel.",
		}, []string{"channel"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenge_verifications_total",
			Help:      "Challenge verification attempts by outcome.",
		}, []string{"outcome"}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Failed email and SMS deliveries by channel.",
		}, []string{"channel"}),
	}

	m.issued = registerOrExisting(reg, m.issued)
	m.verifications = registerOrExisting(reg, m.verifications)
	m.deliveryFailures = registerOrExisting(reg, m.deliveryFailures)

	return m
}

func (m *EngineMetrics) ChallengeIssued(channel domain.Channel) {
	m.issued.WithLabelValues(string(channel)).Inc()
}

func (m *EngineMetrics) ChallengeVerified(outcome string) {
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *EngineMetrics) DeliveryFailed(channel domain.Channel) {
	m.deliveryFailures.WithLabelValues(string(channel)).Inc()
}

func registerOrExisting(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}
