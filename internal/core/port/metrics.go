package port

import "github.com/David567rs/LoginAna/internal/core/domain"

// EngineMetrics records challenge engine activity.
type EngineMetrics interface {
	ChallengeIssued(channel domain.Channel)
	ChallengeVerified(outcome string)
	DeliveryFailed(channel domain.Channel)
}
