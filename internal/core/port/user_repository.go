package port

import (
	"context"
	"time"

	"github.com/David567rs/LoginAna/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// GetByEmailVerifyToken returns the user whose pending email secret equals token.
	GetByEmailVerifyToken(ctx context.Context, token string) (*domain.User, error)
	// SetVerificationSecret overwrites the pending slot of one channel and nothing else.
	SetVerificationSecret(ctx context.Context, id string, channel domain.Channel, secret domain.VerificationSecret) error
	// CompleteVerification sets the channel's verified flag and clears its slot, but only
	// while the stored digest still equals digest. It reports whether the write applied.
	CompleteVerification(ctx context.Context, id string, channel domain.Channel, digest string) (bool, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
}
