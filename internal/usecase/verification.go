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
	defaultEmailSecretTTL = 24 * time.Hour
	defaultPhoneSecretTTL = 10 * time.Minute
	emailTokenLength      = 32
	phoneCodeLength       = 6
)

// VerificationService owns the email and phone ownership secrets kept on the user record.
// Each channel has one slot; issuing overwrites it and a successful confirmation clears it.
// Only digests of the secrets are stored.
type VerificationService struct {
	users    port.UserRepository
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
	emailTTL time.Duration
	phoneTTL time.Duration
}

func NewVerificationService(users port.UserRepository, events port.EventPublisher, log *zap.Logger) *VerificationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &VerificationService{
		users:    users,
		events:   events,
		logger:   log,
		now:      time.Now,
		emailTTL: defaultEmailSecretTTL,
		phoneTTL: defaultPhoneSecretTTL,
	}
}

// WithClock overrides the time source, mainly for tests.
func (s *VerificationService) WithClock(now func() time.Time) *VerificationService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithTTLs overrides the secret lifetimes. Non-positive values keep the defaults.
func (s *VerificationService) WithTTLs(email, phone time.Duration) *VerificationService {
	if email > 0 {
		s.emailTTL = email
	}
	if phone > 0 {
		s.phoneTTL = phone
	}
	return s
}

// IssueEmailSecret stores a fresh email token on user and returns the plaintext for the link.
func (s *VerificationService) IssueEmailSecret(ctx context.Context, user *domain.User) (string, error) {
	token, err := security.GenerateAlphanumericToken(emailTokenLength)
	if err != nil {
		return "", fmt.Errorf("generate email token: %w", err)
	}
	if err := s.storeSecret(ctx, user, domain.ChannelEmail, token, s.emailTTL); err != nil {
		return "", fmt.Errorf("store email secret: %w", err)
	}
	return token, nil
}

// IssuePhoneSecret stores a fresh 6-digit code on user and returns the plaintext for the SMS.
func (s *VerificationService) IssuePhoneSecret(ctx context.Context, user *domain.User) (string, error) {
	code, err := security.GenerateNumericCode(phoneCodeLength)
	if err != nil {
		return "", fmt.Errorf("generate phone code: %w", err)
	}
	if err := s.storeSecret(ctx, user, domain.ChannelSMS, code, s.phoneTTL); err != nil {
		return "", fmt.Errorf("store phone secret: %w", err)
	}
	return code, nil
}

func (s *VerificationService) storeSecret(ctx context.Context, user *domain.User, channel domain.Channel, plaintext string, ttl time.Duration) error {
	secret := domain.VerificationSecret{
		Digest:  security.HashToken(plaintext),
		Expires: s.now().UTC().Add(ttl),
	}
	if err := s.users.SetVerificationSecret(ctx, user.ID, channel, secret); err != nil {
		return err
	}
	user.SetVerificationSecret(channel, secret)

	s.log(ctx, user.ID, channel).Info("verification secret issued", zap.Time("expires_at", secret.Expires))
	return nil
}

// ConfirmEmail marks the email verified when token is known and unexpired.
// Unknown, expired and already used tokens all report false.
func (s *VerificationService) ConfirmEmail(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	digest := security.HashToken(token)
	user, err := s.users.GetByEmailVerifyToken(ctx, digest)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup email token: %w", err)
	}

	now := s.now()
	if user.EmailVerifyExpires == nil || now.After(*user.EmailVerifyExpires) {
		s.log(ctx, user.ID, domain.ChannelEmail).Info("verification secret expired")
		return false, nil
	}

	return s.complete(ctx, user, domain.ChannelEmail, digest, now)
}

// ConfirmPhone marks the phone verified when code matches the pending one for email.
func (s *VerificationService) ConfirmPhone(ctx context.Context, email, code string) (bool, error) {
	code = strings.TrimSpace(code)
	email = normalizeEmail(email)
	if email == "" || code == "" {
		return false, nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup user: %w", err)
	}

	if user.PhoneVerifyCode == nil || user.PhoneVerifyExpires == nil {
		return false, nil
	}
	if !security.MatchesTokenHash(code, *user.PhoneVerifyCode) {
		s.log(ctx, user.ID, domain.ChannelSMS).Warn("verification secret mismatch")
		return false, nil
	}

	now := s.now()
	if now.After(*user.PhoneVerifyExpires) {
		s.log(ctx, user.ID, domain.ChannelSMS).Info("verification secret expired")
		return false, nil
	}

	return s.complete(ctx, user, domain.ChannelSMS, *user.PhoneVerifyCode, now)
}

// complete applies the confirmation only while digest is still the pending secret, so a
// concurrent confirm or a reissue in between makes this one report false.
func (s *VerificationService) complete(ctx context.Context, user *domain.User, channel domain.Channel, digest string, now time.Time) (bool, error) {
	applied, err := s.users.CompleteVerification(ctx, user.ID, channel, digest)
	if err != nil {
		return false, fmt.Errorf("confirm %s: %w", channel, err)
	}
	if !applied {
		s.log(ctx, user.ID, channel).Info("verification secret no longer pending")
		return false, nil
	}

	user.MarkVerified(channel)
	if fresh, err := s.users.GetByID(ctx, user.ID); err == nil {
		*user = *fresh
	}

	s.completed(ctx, user, channel, now)
	return true, nil
}

// EmailTokenInspection describes a pending email token without consuming it.
type EmailTokenInspection struct {
	Exists    bool
	Expired   bool
	ExpiresAt *time.Time
	Now       time.Time
	Email     string
}

// InspectEmailToken reports whether token is pending and whether it expired.
func (s *VerificationService) InspectEmailToken(ctx context.Context, token string) (EmailTokenInspection, error) {
	result := EmailTokenInspection{Now: s.now().UTC()}

	token = strings.TrimSpace(token)
	if token == "" {
		return result, nil
	}

	user, err := s.users.GetByEmailVerifyToken(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return result, nil
		}
		return result, fmt.Errorf("lookup email token: %w", err)
	}

	result.Exists = true
	result.Email = user.Email
	result.ExpiresAt = user.EmailVerifyExpires
	result.Expired = user.EmailVerifyExpires == nil || result.Now.After(*user.EmailVerifyExpires)
	return result, nil
}

func (s *VerificationService) completed(ctx context.Context, user *domain.User, channel domain.Channel, at time.Time) {
	s.log(ctx, user.ID, channel).Info("verification confirmed", zap.Bool("fully_verified", user.FullyVerified()))

	if s.events == nil {
		return
	}
	err := s.events.PublishVerificationCompleted(ctx, domain.VerificationCompletedEvent{
		UserID:        user.ID,
		Channel:       channel,
		FullyVerified: user.FullyVerified(),
		VerifiedAt:    at.UTC(),
	})
	if err != nil {
		s.log(ctx, user.ID, channel).Warn("publish verification event failed", zap.Error(err))
	}
}

func (s *VerificationService) log(ctx context.Context, userID string, channel domain.Channel) *zap.Logger {
	return logger.FromContext(ctx, s.logger).With(
		zap.String("subject_id", userID),
		zap.String("channel", string(channel)),
	)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
