package port

import (
	"context"
	"time"

	"github.com/David567rs/LoginAna/internal/core/domain"
)

// ChallengeDecision tells a store what to do with a challenge after inspection.
type ChallengeDecision int

const (
	ChallengeKeep ChallengeDecision = iota
	ChallengeDelete
)

// ChallengeStore keeps pending challenges keyed by id.
//
// Resolve loads the challenge, calls decide, and applies the decision without
// letting a concurrent Resolve on the same id observe the intermediate state.
// A challenge can therefore be consumed at most once.
type ChallengeStore interface {
	Put(ctx context.Context, challenge domain.Challenge, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.Challenge, error)
	Delete(ctx context.Context, id string) error
	Resolve(ctx context.Context, id string, decide func(domain.Challenge) ChallengeDecision) (*domain.Challenge, ChallengeDecision, error)
}
