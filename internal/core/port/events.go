package port

import (
	"context"

	"github.com/David567rs/LoginAna/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishChallengeEvent(ctx context.Context, event domain.ChallengeEvent) error
	PublishVerificationCompleted(ctx context.Context, event domain.VerificationCompletedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
}
