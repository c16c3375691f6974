package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/David567rs/LoginAna/internal/core/domain"
	"github.com/David567rs/LoginAna/internal/core/port"
	"github.com/David567rs/LoginAna/internal/infra/logger"
	"github.com/David567rs/LoginAna/internal/infra/security"
	"github.com/David567rs/LoginAna/internal/repository"
)

const (
	defaultChallengeTTL       = 5 * time.Minute
	defaultChallengeRetention = 24 * time.Hour
	challengeSecretLength     = 6
	challengeIDBytes          = 16
)

// Verification outcome labels.
const (
	outcomeConsumed = "consumed"
	outcomeExpired  = "expired"
	outcomeMismatch = "mismatch"
	outcomePurpose  = "wrong_purpose"
	outcomeNotFound = "not_found"
)

// ChallengeRequest describes a challenge to mint.
type ChallengeRequest struct {
	SubjectID string
	Channel   domain.Channel
	Purpose   domain.ChallengePurpose
	TTL       time.Duration
}

// ChallengeEngine issues and single-use-consumes short-lived numeric challenges.
type ChallengeEngine struct {
	store     port.ChallengeStore
	events    port.EventPublisher
	metrics   port.EngineMetrics
	logger    *zap.Logger
	now       func() time.Time
	ttl       time.Duration
	retention time.Duration
}

// ChallengeOption customises a ChallengeEngine.
type ChallengeOption func(*ChallengeEngine)

func WithChallengeClock(now func() time.Time) ChallengeOption {
	return func(e *ChallengeEngine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithChallengeEvents(events port.EventPublisher) ChallengeOption {
	return func(e *ChallengeEngine) { e.events = events }
}

func WithChallengeMetrics(metrics port.EngineMetrics) ChallengeOption {
	return func(e *ChallengeEngine) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

// WithDefaultChallengeTTL sets the ttl used when Create gets a non-positive one.
func WithDefaultChallengeTTL(ttl time.Duration) ChallengeOption {
	return func(e *ChallengeEngine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithChallengeRetention sets how long an expired challenge stays in the store so that
// a late verify reports expiry rather than an unknown id. Non-positive values keep a day.
func WithChallengeRetention(d time.Duration) ChallengeOption {
	return func(e *ChallengeEngine) {
		if d > 0 {
			e.retention = d
		}
	}
}

func NewChallengeEngine(store port.ChallengeStore, log *zap.Logger, opts ...ChallengeOption) *ChallengeEngine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &ChallengeEngine{
		store:     store,
		metrics:   noopMetrics{},
		logger:    log,
		now:       time.Now,
		ttl:       defaultChallengeTTL,
		retention: defaultChallengeRetention,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create mints a login challenge for subjectID. A non-positive ttl means the default.
func (e *ChallengeEngine) Create(ctx context.Context, subjectID string, channel domain.Channel, ttl time.Duration) (domain.Challenge, error) {
	return e.Issue(ctx, ChallengeRequest{
		SubjectID: subjectID,
		Channel:   channel,
		Purpose:   domain.ChallengePurposeLogin,
		TTL:       ttl,
	})
}

// Issue mints a challenge. The returned value is the only place the plaintext secret exists.
func (e *ChallengeEngine) Issue(ctx context.Context, req ChallengeRequest) (domain.Challenge, error) {
	if strings.TrimSpace(req.SubjectID) == "" {
		return domain.Challenge{}, invalid("subject", "subject id is required")
	}
	if !req.Channel.Valid() {
		return domain.Challenge{}, invalid("method", "method must be email or sms")
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = e.ttl
	}
	if req.Purpose == "" {
		req.Purpose = domain.ChallengePurposeLogin
	}

	id, err := security.GenerateSecureToken(challengeIDBytes)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("generate challenge id: %w", err)
	}
	secret, err := security.GenerateNumericCode(challengeSecretLength)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("generate challenge secret: %w", err)
	}

	now := e.now().UTC()
	challenge := domain.Challenge{
		ID:         id,
		SubjectID:  req.SubjectID,
		Channel:    req.Channel,
		Purpose:    req.Purpose,
		Secret:     secret,
		SecretHash: security.HashToken(secret),
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}

	if err := e.store.Put(ctx, challenge.Redacted(), ttl+e.retention); err != nil {
		return domain.Challenge{}, fmt.Errorf("store challenge: %w", err)
	}

	e.log(ctx, challenge).Info("challenge issued",
		zap.String("purpose", string(challenge.Purpose)),
		zap.Time("expires_at", challenge.ExpiresAt),
	)
	e.metrics.ChallengeIssued(challenge.Channel)
	e.publish(ctx, domain.ChallengeIssued, challenge, "")

	return challenge, nil
}

// Verify consumes the challenge when candidate matches, whatever its purpose. A mismatch
// leaves the challenge in place for another attempt; expiry deletes it.
func (e *ChallengeEngine) Verify(ctx context.Context, id, candidate string) (domain.Challenge, error) {
	return e.VerifyPurpose(ctx, id, candidate, "")
}

// VerifyPurpose is Verify restricted to challenges minted for purpose. A challenge of
// another purpose is left untouched and reported as ErrChallengePurpose. An empty
// purpose accepts any.
func (e *ChallengeEngine) VerifyPurpose(ctx context.Context, id, candidate string, purpose domain.ChallengePurpose) (domain.Challenge, error) {
	id = strings.TrimSpace(id)
	candidate = strings.TrimSpace(candidate)
	now := e.now()

	var outcome error
	record, _, err := e.store.Resolve(ctx, id, func(c domain.Challenge) port.ChallengeDecision {
		outcome = nil
		switch {
		case c.IsExpired(now):
			outcome = ErrChallengeExpired
			return port.ChallengeDelete
		case purpose != "" && c.Purpose != purpose:
			outcome = ErrChallengePurpose
			return port.ChallengeKeep
		case candidate == "" || !security.MatchesTokenHash(candidate, c.SecretHash):
			outcome = ErrChallengeMismatch
			return port.ChallengeKeep
		default:
			return port.ChallengeDelete
		}
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrContention) {
			logger.FromContext(ctx, e.logger).Info("challenge not found")
			e.metrics.ChallengeVerified(outcomeNotFound)
			return domain.Challenge{}, ErrChallengeNotFound
		}
		return domain.Challenge{}, fmt.Errorf("resolve challenge: %w", err)
	}

	switch {
	case errors.Is(outcome, ErrChallengeExpired):
		e.log(ctx, *record).Info("challenge expired", zap.Time("expires_at", record.ExpiresAt))
		e.metrics.ChallengeVerified(outcomeExpired)
		e.publish(ctx, domain.ChallengeExpired, *record, "")
		return domain.Challenge{}, ErrChallengeExpired
	case errors.Is(outcome, ErrChallengeMismatch):
		e.log(ctx, *record).Warn("challenge mismatch")
		e.metrics.ChallengeVerified(outcomeMismatch)
		return domain.Challenge{}, ErrChallengeMismatch
	case errors.Is(outcome, ErrChallengePurpose):
		e.log(ctx, *record).Warn("challenge purpose mismatch",
			zap.String("purpose", string(record.Purpose)),
			zap.String("expected_purpose", string(purpose)),
		)
		e.metrics.ChallengeVerified(outcomePurpose)
		return domain.Challenge{}, ErrChallengePurpose
	}

	e.log(ctx, *record).Info("challenge consumed")
	e.metrics.ChallengeVerified(outcomeConsumed)
	e.publish(ctx, domain.ChallengeConsumed, *record, "")

	return *record, nil
}

// ReportDeliveryFailure records that the secret of challenge could not be delivered.
func (e *ChallengeEngine) ReportDeliveryFailure(ctx context.Context, challenge domain.Challenge, cause error) {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	e.publish(ctx, domain.ChallengeDeliveryFailed, challenge, reason)
}

func (e *ChallengeEngine) log(ctx context.Context, c domain.Challenge) *zap.Logger {
	return logger.FromContext(ctx, e.logger).With(
		zap.String("challenge_id", c.ID),
		zap.String("subject_id", c.SubjectID),
		zap.String("channel", string(c.Channel)),
	)
}

func (e *ChallengeEngine) publish(ctx context.Context, kind domain.ChallengeEventType, c domain.Challenge, reason string) {
	if e.events == nil {
		return
	}
	err := e.events.PublishChallengeEvent(ctx, domain.ChallengeEvent{
		Type:        kind,
		ChallengeID: c.ID,
		SubjectID:   c.SubjectID,
		Channel:     c.Channel,
		Purpose:     c.Purpose,
		ExpiresAt:   c.ExpiresAt,
		OccurredAt:  e.now().UTC(),
		Reason:      reason,
	})
	if err != nil {
		logger.FromContext(ctx, e.logger).Warn("publish challenge event failed", zap.String("event_type", string(kind)), zap.Error(err))
	}
}

type noopMetrics struct{}

func (noopMetrics) ChallengeIssued(domain.Channel) {}
func (noopMetrics) ChallengeVerified(string)       {}
func (noopMetrics) DeliveryFailed(domain.Channel)  {}
