package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/David567rs/LoginAna/internal/core/domain"
	"github.com/David567rs/LoginAna/internal/core/port"
)

// LogPublisher logs events instead of sending them to Kafka. It is used when no brokers
// are configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) logEvent(eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now()
	}

	p.logger.Info("audit event",
		append([]zap.Field{
			zap.String("event_type", eventType),
			zap.String("user_id", userID),
			zap.Time("timestamp", at.UTC()),
		}, fields...)...,
	)
}

func (p *LogPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(eventUserRegistered, event.UserID, event.RegisteredAt)
	return nil
}

func (p *LogPublisher) PublishChallengeEvent(_ context.Context, event domain.ChallengeEvent) error {
	p.logEvent(string(event.Type), event.SubjectID, event.OccurredAt,
		zap.String("challenge_id", event.ChallengeID),
		zap.String("channel", string(event.Channel)),
		zap.String("purpose", string(event.Purpose)),
		zap.String("reason", event.Reason),
	)
	return nil
}

func (p *LogPublisher) PublishVerificationCompleted(_ context.Context, event domain.VerificationCompletedEvent) error {
	p.logEvent(eventVerificationCompleted, event.UserID, event.VerifiedAt,
		zap.String("channel", string(event.Channel)),
		zap.Bool("fully_verified", event.FullyVerified),
	)
	return nil
}

func (p *LogPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(eventPasswordChanged, event.UserID, event.ChangedAt, zap.String("reason", event.Reason))
	return nil
}

var _ port.EventPublisher = (*LogPublisher)(nil)
