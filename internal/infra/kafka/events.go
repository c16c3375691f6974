package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/David567rs/LoginAna/internal/core/domain"
	"github.com/David567rs/LoginAna/internal/core/port"
	"github.com/David567rs/LoginAna/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	eventUserRegistered        = "user.registered"
	eventVerificationCompleted = "user.verification.completed"
	eventPasswordChanged       = "user.password.changed"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
	now      func() time.Time
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		appCfg:   appCfg,
		logger:   logger,
		now:      time.Now,
	}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = p.now()
	}
	if eventID == "" {
		eventID = ulid.Make().String()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	bytes, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(bytes),
	}

	return p.producer.Enqueue(ctx, message)
}

// PublishUserRegistered publishes user.registered events. Contact details are not part
// of the payload; consumers look them up by user id.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string         `json:"user_id"`
		Name         string         `json:"name"`
		HasPhone     bool           `json:"has_phone"`
		RegisteredAt time.Time      `json:"registered_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		UserID:       event.UserID,
		Name:         event.Name,
		HasPhone:     event.Phone != nil && *event.Phone != "",
		RegisteredAt: event.RegisteredAt.UTC(),
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishChallengeEvent publishes challenge.* lifecycle events. The secret never leaves the engine.
func (p *EventPublisher) PublishChallengeEvent(ctx context.Context, event domain.ChallengeEvent) error {
	payload := struct {
		ChallengeID string    `json:"challenge_id"`
		SubjectID   string    `json:"subject_id"`
		Channel     string    `json:"channel"`
		Purpose     string    `json:"purpose,omitempty"`
		ExpiresAt   time.Time `json:"expires_at"`
		Reason      string    `json:"reason,omitempty"`
	}{
		ChallengeID: event.ChallengeID,
		SubjectID:   event.SubjectID,
		Channel:     string(event.Channel),
		Purpose:     string(event.Purpose),
		ExpiresAt:   event.ExpiresAt.UTC(),
		Reason:      event.Reason,
	}

	return p.publish(ctx, event.EventID, string(event.Type), event.SubjectID, event.OccurredAt, payload)
}

// PublishVerificationCompleted publishes user.verification.completed events.
func (p *EventPublisher) PublishVerificationCompleted(ctx context.Context, event domain.VerificationCompletedEvent) error {
	payload := struct {
		UserID        string    `json:"user_id"`
		Channel       string    `json:"channel"`
		FullyVerified bool      `json:"fully_verified"`
		VerifiedAt    time.Time `json:"verified_at"`
	}{
		UserID:        event.UserID,
		Channel:       string(event.Channel),
		FullyVerified: event.FullyVerified,
		VerifiedAt:    event.VerifiedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, eventVerificationCompleted, event.UserID, event.VerifiedAt, payload)
}

// PublishPasswordChanged publishes user.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		ChangedAt time.Time      `json:"changed_at"`
		Reason    string         `json:"reason"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		ChangedAt: event.ChangedAt.UTC(),
		Reason:    event.Reason,
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventPasswordChanged, event.UserID, event.ChangedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
