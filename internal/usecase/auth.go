package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/David567rs/LoginAna/internal/core/domain"
	"github.com/David567rs/LoginAna/internal/core/port"
	"github.com/David567rs/LoginAna/internal/infra/logger"
	"github.com/David567rs/LoginAna/internal/repository"
)

const (
	defaultLoginChallengeTTL = 5 * time.Minute
	defaultResetChallengeTTL = 10 * time.Minute
	defaultDeliveryTimeout   = 10 * time.Second
	defaultClientURL         = "http://localhost:5173"
	minNameLength            = 2
)

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// AuthSettings tunes the orchestrated flows.
type AuthSettings struct {
	LoginChallengeTTL time.Duration
	ResetChallengeTTL time.Duration
	DeliveryTimeout   time.Duration
	ClientURL         string
}

// AuthDependencies are the collaborators of AuthService. Events and Metrics are optional.
type AuthDependencies struct {
	Users        port.UserRepository
	Hasher       port.PasswordHasher
	Policy       port.PasswordPolicyValidator
	Challenges   *ChallengeEngine
	Verification *VerificationService
	Tokens       *TokenService
	Email        port.EmailSender
	SMS          port.SMSSender
	Events       port.EventPublisher
	Metrics      port.EngineMetrics
}

// AuthService composes the challenge engine, verification state machine and token issuer
// into the registration, login and recovery flows.
type AuthService struct {
	users        port.UserRepository
	hasher       port.PasswordHasher
	policy       port.PasswordPolicyValidator
	challenges   *ChallengeEngine
	verification *VerificationService
	tokens       *TokenService
	email        port.EmailSender
	sms          port.SMSSender
	events       port.EventPublisher
	metrics      port.EngineMetrics
	settings     AuthSettings
	logger       *zap.Logger
	now          func() time.Time
}

func NewAuthService(deps AuthDependencies, settings AuthSettings, log *zap.Logger) (*AuthService, error) {
	switch {
	case deps.Users == nil:
		return nil, errors.New("user repository is required")
	case deps.Hasher == nil:
		return nil, errors.New("password hasher is required")
	case deps.Policy == nil:
		return nil, errors.New("password policy is required")
	case deps.Challenges == nil || deps.Verification == nil || deps.Tokens == nil:
		return nil, errors.New("challenge, verification and token services are required")
	case deps.Email == nil || deps.SMS == nil:
		return nil, errors.New("email and sms senders are required")
	}

	if settings.LoginChallengeTTL <= 0 {
		settings.LoginChallengeTTL = defaultLoginChallengeTTL
	}
	if settings.ResetChallengeTTL <= 0 {
		settings.ResetChallengeTTL = defaultResetChallengeTTL
	}
	if settings.DeliveryTimeout <= 0 {
		settings.DeliveryTimeout = defaultDeliveryTimeout
	}
	if strings.TrimSpace(settings.ClientURL) == "" {
		settings.ClientURL = defaultClientURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &AuthService{
		users:        deps.Users,
		hasher:       deps.Hasher,
		policy:       deps.Policy,
		challenges:   deps.Challenges,
		verification: deps.Verification,
		tokens:       deps.Tokens,
		email:        deps.Email,
		sms:          deps.SMS,
		events:       deps.Events,
		metrics:      metrics,
		settings:     settings,
		logger:       log,
		now:          time.Now,
	}, nil
}

// WithClock overrides the time source, mainly for tests.
func (s *AuthService) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

type RegisterResult struct {
	OK      bool
	Message string
	UserID  string
}

// Register creates an unverified account and sends both verification secrets.
// Delivery failures are logged and do not fail the registration.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	name := strings.TrimSpace(in.Name)
	if utf8.RuneCountInString(name) < minNameLength {
		return nil, invalid("name", "name must be at least 2 characters")
	}
	email, err := parseEmail(in.Email)
	if err != nil {
		return nil, err
	}
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		return nil, invalid("phone", "phone is required")
	}
	if !e164Pattern.MatchString(phone) {
		return nil, invalid("phone", "phone must be in international format, e.g. +5215512345678")
	}
	if err := s.policy.Validate(in.Password, domain.PasswordContext{Name: name, Email: email, Phone: &phone}); err != nil {
		return nil, invalid("password", err.Error())
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:                uuid.NewString(),
		Name:              name,
		Email:             email,
		Phone:             &phone,
		PasswordHash:      hash,
		CreatedAt:         now,
		UpdatedAt:         now,
		PasswordChangedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	log := logger.FromContext(ctx, s.logger).With(zap.String("subject_id", user.ID))
	log.Info("user registered", logger.Email(email), logger.Phone(&phone))

	// The account exists from here on; a secret that cannot be stored is recovered via resend.
	if emailToken, err := s.verification.IssueEmailSecret(ctx, &user); err != nil {
		log.Warn("email verification secret not issued, resend required", zap.Error(err))
	} else {
		link := verifyEmailURL(s.settings.ClientURL, emailToken)
		_ = s.sendEmail(ctx, user.Email, subjectConfirmEmail, confirmEmailBody(link))
	}
	if phoneCode, err := s.verification.IssuePhoneSecret(ctx, &user); err != nil {
		log.Warn("phone verification secret not issued, resend required", zap.Error(err))
	} else {
		_ = s.sendSMS(ctx, phone, verificationCodeSMS(phoneCode))
	}

	if s.events != nil {
		if err := s.events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
			UserID:       user.ID,
			Name:         user.Name,
			Email:        user.Email,
			Phone:        user.Phone,
			RegisteredAt: now,
		}); err != nil {
			log.Warn("publish user registered failed", zap.Error(err))
		}
	}

	return &RegisterResult{OK: true, Message: registrationMessage, UserID: user.ID}, nil
}

type LoginInput struct {
	Email    string
	Password string
	Method   string
}

// LoginResult carries either a session token or a pending second factor.
type LoginResult struct {
	Session           *domain.IssuedToken
	TwoFactorRequired bool
	Method            domain.Channel
	ChallengeID       string
}

// Login checks credentials. With a method it starts a second-factor challenge instead
// of returning a session token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	var method domain.Channel
	if strings.TrimSpace(in.Method) != "" {
		parsed, err := domain.ParseChannel(in.Method)
		if err != nil {
			return nil, invalid("method", "method must be email or sms")
		}
		method = parsed
	}

	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok || !user.FullyVerified() {
		logger.FromContext(ctx, s.logger).Info("login rejected",
			zap.String("subject_id", user.ID),
			zap.Bool("password_ok", ok),
			zap.Bool("fully_verified", user.FullyVerified()),
		)
		return nil, ErrInvalidCredentials
	}
	s.upgradeHash(ctx, user, in.Password)

	if method == "" {
		session, err := s.tokens.IssueSession(user.ID, user.Email, user.Name)
		if err != nil {
			return nil, err
		}
		return &LoginResult{Session: &session}, nil
	}

	if method == domain.ChannelSMS && user.PhoneNumber() == "" {
		return nil, invalid("method", "no phone number on record for sms")
	}

	challenge, err := s.challenges.Issue(ctx, ChallengeRequest{
		SubjectID: user.ID,
		Channel:   method,
		Purpose:   domain.ChallengePurposeLogin,
		TTL:       s.settings.LoginChallengeTTL,
	})
	if err != nil {
		return nil, err
	}

	var deliveryErr error
	switch method {
	case domain.ChannelEmail:
		deliveryErr = s.sendEmail(ctx, user.Email, subjectLoginCode, loginCodeEmailBody(challenge.Secret))
	case domain.ChannelSMS:
		deliveryErr = s.sendSMS(ctx, user.PhoneNumber(), loginCodeSMS(challenge.Secret))
	}
	if deliveryErr != nil {
		s.challenges.ReportDeliveryFailure(ctx, challenge, deliveryErr)
	}

	return &LoginResult{TwoFactorRequired: true, Method: method, ChallengeID: challenge.ID}, nil
}

// VerifySecondFactor completes a login challenge and returns a session token.
//
// The identity is resolved from the challenge subject. When that fails and emailHint is
// set, the account found by email is used instead; this weakens the binding between the
// challenge and the account and is logged.
func (s *AuthService) VerifySecondFactor(ctx context.Context, challengeID, code, emailHint string) (*domain.IssuedToken, error) {
	challenge, err := s.challenges.VerifyPurpose(ctx, challengeID, code, domain.ChallengePurposeLogin)
	if err != nil {
		return nil, challengeFailure(err)
	}

	log := logger.FromContext(ctx, s.logger).With(zap.String("subject_id", challenge.SubjectID))

	user, err := s.users.GetByID(ctx, challenge.SubjectID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil && strings.TrimSpace(emailHint) != "" {
		user, err = s.users.GetByEmail(ctx, normalizeEmail(emailHint))
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup user by email hint: %w", err)
		}
		if user != nil {
			log.Warn("second factor identity resolved by email hint", logger.Email(user.Email))
		}
	}

	var token domain.IssuedToken
	if user != nil && user.Email != "" {
		token, err = s.tokens.IssueSession(user.ID, user.Email, user.Name)
	} else {
		log.Warn("second factor subject did not resolve, issuing subject-only session")
		token, err = s.tokens.IssueSession(challenge.SubjectID, "", "")
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// VerifyEmail confirms an email verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (bool, error) {
	return s.verification.ConfirmEmail(ctx, token)
}

// InspectEmailToken reports the state of a pending email token without consuming it.
func (s *AuthService) InspectEmailToken(ctx context.Context, token string) (EmailTokenInspection, error) {
	return s.verification.InspectEmailToken(ctx, token)
}

// VerifyPhone confirms a phone verification code for the account of email.
func (s *AuthService) VerifyPhone(ctx context.Context, email, code string) (bool, error) {
	return s.verification.ConfirmPhone(ctx, email, code)
}

// ResendEmail reissues the email verification link. Unknown accounts are not reported.
func (s *AuthService) ResendEmail(ctx context.Context, email string) error {
	user, err := s.lookupQuietly(ctx, email)
	if err != nil || user == nil {
		return err
	}

	token, err := s.verification.IssueEmailSecret(ctx, user)
	if err != nil {
		return err
	}

	link := verifyEmailURL(s.settings.ClientURL, token)
	_ = s.sendEmail(ctx, user.Email, subjectConfirmEmailResend, confirmEmailBody(link))
	return nil
}

// ResendSMS reissues the phone verification code. Unknown accounts and accounts without
// a phone are not reported.
func (s *AuthService) ResendSMS(ctx context.Context, email string) error {
	user, err := s.lookupQuietly(ctx, email)
	if err != nil || user == nil || user.PhoneNumber() == "" {
		return err
	}

	code, err := s.verification.IssuePhoneSecret(ctx, user)
	if err != nil {
		return err
	}

	_ = s.sendSMS(ctx, user.PhoneNumber(), verificationCodeSMS(code))
	return nil
}

// ForgotResult carries the challenge id when an account exists.
type ForgotResult struct {
	OK          bool
	ChallengeID string
}

// ForgotPassword starts a password-reset challenge. An unknown email still reports ok.
func (s *AuthService) ForgotPassword(ctx context.Context, email, method string) (*ForgotResult, error) {
	channel, err := domain.ParseChannel(method)
	if err != nil {
		return nil, invalid("method", "method must be email or sms")
	}

	user, err := s.lookupQuietly(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return &ForgotResult{OK: true}, nil
	}

	challenge, err := s.challenges.Issue(ctx, ChallengeRequest{
		SubjectID: user.ID,
		Channel:   channel,
		Purpose:   domain.ChallengePurposePasswordReset,
		TTL:       s.settings.ResetChallengeTTL,
	})
	if err != nil {
		return nil, err
	}

	var deliveryErr error
	switch {
	case channel == domain.ChannelEmail:
		deliveryErr = s.sendEmail(ctx, user.Email, subjectPasswordRecovery, recoveryCodeEmailBody(challenge.Secret))
	case user.PhoneNumber() != "":
		deliveryErr = s.sendSMS(ctx, user.PhoneNumber(), recoveryCodeSMS(challenge.Secret))
	default:
		deliveryErr = errors.New("no phone number on record")
		logger.FromContext(ctx, s.logger).Warn("recovery code not sent",
			zap.String("challenge_id", challenge.ID),
			zap.String("subject_id", user.ID),
			zap.String("channel", string(channel)),
			zap.Error(deliveryErr),
		)
	}
	if deliveryErr != nil {
		s.challenges.ReportDeliveryFailure(ctx, challenge, deliveryErr)
	}

	return &ForgotResult{OK: true, ChallengeID: challenge.ID}, nil
}

// VerifyResetCode completes a reset challenge and returns a reset token.
func (s *AuthService) VerifyResetCode(ctx context.Context, challengeID, code string) (*domain.IssuedToken, error) {
	challenge, err := s.challenges.VerifyPurpose(ctx, challengeID, code, domain.ChallengePurposePasswordReset)
	if err != nil {
		return nil, challengeFailure(err)
	}

	token, err := s.tokens.IssueResetToken(challenge.SubjectID)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// ResetPassword sets a new password for the subject of a valid reset token.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	userID, err := s.tokens.VerifyResetToken(resetToken)
	if err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if err := s.policy.Validate(newPassword, domain.PasswordContext{Name: user.Name, Email: user.Email, Phone: user.Phone}); err != nil {
		return invalid("password", err.Error())
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	changedAt := s.now().UTC()
	if err := s.users.UpdatePassword(ctx, user.ID, hash, changedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("update password: %w", err)
	}

	log := logger.FromContext(ctx, s.logger).With(zap.String("subject_id", user.ID))
	log.Info("password reset")

	if s.events != nil {
		if err := s.events.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
			UserID:    user.ID,
			ChangedAt: changedAt,
			Reason:    "password_reset",
		}); err != nil {
			log.Warn("publish password changed failed", zap.Error(err))
		}
	}
	return nil
}

// AccountStatus returns the sanitized view of the account registered under email.
func (s *AuthService) AccountStatus(ctx context.Context, email string) (*domain.AccountStatus, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	status := domain.StatusOf(*user)
	return &status, nil
}

// lookupQuietly returns a nil user instead of an error when the account does not exist.
func (s *AuthService) lookupQuietly(ctx context.Context, email string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *AuthService) sendEmail(ctx context.Context, to, subject, body string) error {
	deliveryCtx, cancel := context.WithTimeout(ctx, s.settings.DeliveryTimeout)
	defer cancel()

	if err := s.email.SendEmail(deliveryCtx, to, subject, body); err != nil {
		s.metrics.DeliveryFailed(domain.ChannelEmail)
		logger.FromContext(ctx, s.logger).Warn("delivery failed",
			zap.String("channel", string(domain.ChannelEmail)),
			logger.Email(to),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *AuthService) sendSMS(ctx context.Context, to, body string) error {
	deliveryCtx, cancel := context.WithTimeout(ctx, s.settings.DeliveryTimeout)
	defer cancel()

	if err := s.sms.SendSMS(deliveryCtx, to, body); err != nil {
		s.metrics.DeliveryFailed(domain.ChannelSMS)
		logger.FromContext(ctx, s.logger).Warn("delivery failed",
			zap.String("channel", string(domain.ChannelSMS)),
			zap.String("phone", logger.MaskPhone(to)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// upgradeHash rewrites a password digest produced with outdated hasher parameters.
// Failures are logged and never fail the login.
func (s *AuthService) upgradeHash(ctx context.Context, user *domain.User, password string) {
	rehasher, ok := s.hasher.(port.RehashingPasswordHasher)
	if !ok || !rehasher.NeedsRehash(user.PasswordHash) {
		return
	}

	log := logger.FromContext(ctx, s.logger).With(zap.String("subject_id", user.ID))
	hash, err := rehasher.Hash(password)
	if err != nil {
		log.Warn("password rehash failed", zap.Error(err))
		return
	}

	changedAt := user.PasswordChangedAt
	if changedAt.IsZero() {
		changedAt = s.now().UTC()
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, changedAt); err != nil {
		log.Warn("store rehashed password failed", zap.Error(err))
		return
	}
	user.PasswordHash = hash
	log.Info("password hash upgraded")
}

func challengeFailure(err error) error {
	switch {
	case errors.Is(err, ErrChallengeNotFound),
		errors.Is(err, ErrChallengeExpired),
		errors.Is(err, ErrChallengeMismatch),
		errors.Is(err, ErrChallengePurpose):
		return fmt.Errorf("%w: %w", ErrInvalidChallenge, err)
	default:
		return err
	}
}

func parseEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed || !strings.Contains(addr.Address, "@") {
		return "", invalid("email", "email is not valid")
	}
	return strings.ToLower(addr.Address), nil
}
