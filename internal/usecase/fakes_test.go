package usecase

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/David567rs/LoginAna/internal/core/domain"
	"github.com/David567rs/LoginAna/internal/core/port"
	"github.com/David567rs/LoginAna/internal/infra/security"
	"github.com/David567rs/LoginAna/internal/repository/memory"
)

var (
	testNow       = time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC)
	sixDigits     = regexp.MustCompile(`\b(\d{6})\b`)
	verifyLinkTok = regexp.MustCompile(`token=([A-Za-z0-9]+)`)
)

const testPassword = "Str0ng!Passw0rd#2025"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testNow}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMessage struct {
	To      string
	Subject string
	Body    string
}

type recordingSender struct {
	mu       sync.Mutex
	messages []sentMessage
	err      error
}

func (s *recordingSender) SendEmail(_ context.Context, to, subject, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sentMessage{To: to, Subject: subject, Body: html})
	return s.err
}

func (s *recordingSender) SendSMS(_ context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sentMessage{To: to, Body: body})
	return s.err
}

func (s *recordingSender) Last(t *testing.T) sentMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		t.Fatal("expected a delivered message")
	}
	return s.messages[len(s.messages)-1]
}

func (s *recordingSender) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type recordingEvents struct {
	mu           sync.Mutex
	registered   []domain.UserRegisteredEvent
	challenges   []domain.ChallengeEvent
	verification []domain.VerificationCompletedEvent
	passwords    []domain.PasswordChangedEvent
}

var _ port.EventPublisher = (*recordingEvents)(nil)

func (r *recordingEvents) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, event)
	return nil
}

func (r *recordingEvents) PublishChallengeEvent(_ context.Context, event domain.ChallengeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenges = append(r.challenges, event)
	return nil
}

func (r *recordingEvents) PublishVerificationCompleted(_ context.Context, event domain.VerificationCompletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verification = append(r.verification, event)
	return nil
}

func (r *recordingEvents) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passwords = append(r.passwords, event)
	return nil
}

func (r *recordingEvents) challengeTypes() []domain.ChallengeEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ChallengeEventType, 0, len(r.challenges))
	for _, e := range r.challenges {
		out = append(out, e.Type)
	}
	return out
}

type recordingMetrics struct {
	mu       sync.Mutex
	issued   map[domain.Channel]int
	outcomes map[string]int
	failures map[domain.Channel]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		issued:   make(map[domain.Channel]int),
		outcomes: make(map[string]int),
		failures: make(map[domain.Channel]int),
	}
}

func (m *recordingMetrics) ChallengeIssued(channel domain.Channel) {
	m.mu.Lock()
	m.issued[channel]++
	m.mu.Unlock()
}

func (m *recordingMetrics) ChallengeVerified(outcome string) {
	m.mu.Lock()
	m.outcomes[outcome]++
	m.mu.Unlock()
}

func (m *recordingMetrics) DeliveryFailed(channel domain.Channel) {
	m.mu.Lock()
	m.failures[channel]++
	m.mu.Unlock()
}

// fastHasher keeps Argon2 cheap in tests.
func fastHasher(t *testing.T) *security.Argon2Hasher {
	t.Helper()
	hasher, err := security.NewArgon2Hasher(port.Argon2Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2Hasher: %v", err)
	}
	return hasher
}

type authHarness struct {
	svc     *AuthService
	users   *memory.UserRepository
	store   *memory.ChallengeStore
	engine  *ChallengeEngine
	tokens  *TokenService
	email   *recordingSender
	sms     *recordingSender
	events  *recordingEvents
	metrics *recordingMetrics
	clock   *testClock
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()

	clock := newTestClock()
	log := zaptest.NewLogger(t)
	users := memory.NewUserRepository()
	store := memory.NewChallengeStore()
	store.WithClock(clock.Now)
	events := &recordingEvents{}
	metrics := newRecordingMetrics()

	engine := NewChallengeEngine(store, log,
		WithChallengeClock(clock.Now),
		WithChallengeEvents(events),
		WithChallengeMetrics(metrics),
	)
	verification := NewVerificationService(users, events, log).WithClock(clock.Now)

	manager, err := security.NewHMACManager([]byte("test-secret-with-enough-entropy"), "login-ana", security.WithJWTClock(clock.Now))
	if err != nil {
		t.Fatalf("NewHMACManager: %v", err)
	}
	tokens := NewTokenService(manager, time.Hour, 10*time.Minute)

	email := &recordingSender{}
	sms := &recordingSender{}

	svc, err := NewAuthService(AuthDependencies{
		Users:        users,
		Hasher:       fastHasher(t),
		Policy:       security.NewPasswordPolicy(security.PasswordPolicyConfig{}),
		Challenges:   engine,
		Verification: verification,
		Tokens:       tokens,
		Email:        email,
		SMS:          sms,
		Events:       events,
		Metrics:      metrics,
	}, AuthSettings{ClientURL: "https://app.example.com/"}, log)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	svc.WithClock(clock.Now)

	return &authHarness{
		svc:     svc,
		users:   users,
		store:   store,
		engine:  engine,
		tokens:  tokens,
		email:   email,
		sms:     sms,
		events:  events,
		metrics: metrics,
		clock:   clock,
	}
}

func extractCode(t *testing.T, body string) string {
	t.Helper()
	match := sixDigits.FindStringSubmatch(body)
	if match == nil {
		t.Fatalf("no 6-digit code in %q", body)
	}
	return match[1]
}

func extractEmailToken(t *testing.T, body string) string {
	t.Helper()
	match := verifyLinkTok.FindStringSubmatch(body)
	if match == nil {
		t.Fatalf("no verification link in %q", body)
	}
	return match[1]
}

// registerVerified registers an account and confirms both channels.
func (h *authHarness) registerVerified(t *testing.T, email, phone string) string {
	t.Helper()
	ctx := context.Background()

	res, err := h.svc.Register(ctx, RegisterInput{Name: "Ana Torres", Email: email, Password: testPassword, Phone: phone})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	token := extractEmailToken(t, h.email.Last(t).Body)
	if ok, err := h.svc.VerifyEmail(ctx, token); err != nil || !ok {
		t.Fatalf("VerifyEmail = %v, %v", ok, err)
	}
	code := extractCode(t, h.sms.Last(t).Body)
	if ok, err := h.svc.VerifyPhone(ctx, email, code); err != nil || !ok {
		t.Fatalf("VerifyPhone = %v, %v", ok, err)
	}
	return res.UserID
}

func requireErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

// secretFailingUsers rejects verification secret writes while fail is set.
type secretFailingUsers struct {
	*memory.UserRepository
	fail bool
}

func (u *secretFailingUsers) SetVerificationSecret(ctx context.Context, id string, channel domain.Channel, secret domain.VerificationSecret) error {
	if u.fail {
		return errors.New("connection reset by peer")
	}
	return u.UserRepository.SetVerificationSecret(ctx, id, channel, secret)
}

// useVerificationUsers rebuilds the verification service of the harness over users.
func (h *authHarness) useVerificationUsers(t *testing.T, users port.UserRepository) {
	t.Helper()
	h.svc.verification = NewVerificationService(users, h.events, zaptest.NewLogger(t)).WithClock(h.clock.Now)
}
