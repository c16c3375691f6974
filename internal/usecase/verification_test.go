package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/David567rs/LoginAna/internal/core/domain"
	"github.com/David567rs/LoginAna/internal/infra/security"
	"github.com/David567rs/LoginAna/internal/repository/memory"
)

func newVerificationFixture(t *testing.T) (*VerificationService, *memory.UserRepository, *testClock, *recordingEvents, *domain.User) {
	t.Helper()
	clock := newTestClock()
	users := memory.NewUserRepository()
	events := &recordingEvents{}
	svc := NewVerificationService(users, events, zaptest.NewLogger(t)).WithClock(clock.Now)

	phone := "+5215512345678"
	user := domain.User{
		ID:           "user-1",
		Name:         "Ana",
		Email:        "ana@example.com",
		Phone:        &phone,
		PasswordHash: "hash",
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return svc, users, clock, events, &user
}

// interleavingUsers runs between once, right after the next email-token lookup returns and
// before the caller writes anything back.
type interleavingUsers struct {
	*memory.UserRepository
	between func()
}

func (u *interleavingUsers) GetByEmailVerifyToken(ctx context.Context, token string) (*domain.User, error) {
	user, err := u.UserRepository.GetByEmailVerifyToken(ctx, token)
	if hook := u.between; hook != nil {
		u.between = nil
		hook()
	}
	return user, err
}

func TestVerification_EmailSecretIsStoredAsDigest(t *testing.T) {
	svc, users, _, _, user := newVerificationFixture(t)
	ctx := context.Background()

	token, err := svc.IssueEmailSecret(ctx, user)
	if err != nil {
		t.Fatalf("IssueEmailSecret: %v", err)
	}
	if len(token) != 32 {
		t.Fatalf("expected 32 character token, got %d", len(token))
	}

	stored, err := users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.EmailVerifyToken == nil || *stored.EmailVerifyToken == token {
		t.Fatal("token must be persisted as a digest")
	}
	if *stored.EmailVerifyToken != security.HashToken(token) {
		t.Fatal("stored digest does not match token")
	}
	if !stored.EmailVerifyExpires.Equal(testNow.Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", stored.EmailVerifyExpires)
	}
}

func TestVerification_ConfirmEmailIsNotReplayable(t *testing.T) {
	svc, users, _, events, user := newVerificationFixture(t)
	ctx := context.Background()

	token, err := svc.IssueEmailSecret(ctx, user)
	if err != nil {
		t.Fatalf("IssueEmailSecret: %v", err)
	}

	ok, err := svc.ConfirmEmail(ctx, token)
	if err != nil || !ok {
		t.Fatalf("ConfirmEmail = %v, %v", ok, err)
	}
	ok, err = svc.ConfirmEmail(ctx, token)
	if err != nil || ok {
		t.Fatalf("replayed token must be rejected, got %v, %v", ok, err)
	}

	stored, _ := users.GetByID(ctx, user.ID)
	if !stored.EmailVerified || stored.EmailVerifyToken != nil || stored.EmailVerifyExpires != nil {
		t.Fatalf("email slot not cleared: %+v", stored)
	}
	if len(events.verification) != 1 || events.verification[0].FullyVerified {
		t.Fatalf("unexpected verification events %+v", events.verification)
	}
}

func TestVerification_ExpiredEmailToken(t *testing.T) {
	svc, _, clock, _, user := newVerificationFixture(t)
	ctx := context.Background()

	token, err := svc.IssueEmailSecret(ctx, user)
	if err != nil {
		t.Fatalf("IssueEmailSecret: %v", err)
	}
	clock.Advance(24*time.Hour + time.Second)

	inspection, err := svc.InspectEmailToken(ctx, token)
	if err != nil {
		t.Fatalf("InspectEmailToken: %v", err)
	}
	if !inspection.Exists || !inspection.Expired || inspection.Email != user.Email {
		t.Fatalf("unexpected inspection %+v", inspection)
	}

	if ok, _ := svc.ConfirmEmail(ctx, token); ok {
		t.Fatal("expired token must not confirm")
	}
}

func TestVerification_ReissueInvalidatesPreviousSecret(t *testing.T) {
	svc, _, _, _, user := newVerificationFixture(t)
	ctx := context.Background()

	first, err := svc.IssueEmailSecret(ctx, user)
	if err != nil {
		t.Fatalf("IssueEmailSecret: %v", err)
	}
	second, err := svc.IssueEmailSecret(ctx, user)
	if err != nil {
		t.Fatalf("IssueEmailSecret: %v", err)
	}

	if ok, _ := svc.ConfirmEmail(ctx, first); ok {
		t.Fatal("superseded token must be rejected")
	}
	if ok, err := svc.ConfirmEmail(ctx, second); err != nil || !ok {
		t.Fatalf("latest token must confirm, got %v, %v", ok, err)
	}
}

func TestVerification_ConfirmPhone(t *testing.T) {
	svc, users, _, events, user := newVerificationFixture(t)
	ctx := context.Background()

	code, err := svc.IssuePhoneSecret(ctx, user)
	if err != nil {
		t.Fatalf("IssuePhoneSecret: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}
	if ok, _ := svc.ConfirmPhone(ctx, user.Email, wrong); ok {
		t.Fatal("wrong code must be rejected")
	}
	if ok, _ := svc.ConfirmPhone(ctx, "nobody@example.com", code); ok {
		t.Fatal("unknown email must be rejected")
	}
	if ok, err := svc.ConfirmPhone(ctx, "  ANA@example.com ", code); err != nil || !ok {
		t.Fatalf("ConfirmPhone = %v, %v", ok, err)
	}
	if ok, _ := svc.ConfirmPhone(ctx, user.Email, code); ok {
		t.Fatal("consumed code must be rejected")
	}

	stored, _ := users.GetByID(ctx, user.ID)
	if !stored.PhoneVerified || stored.PhoneVerifyCode != nil {
		t.Fatalf("phone slot not cleared: %+v", stored)
	}
	if len(events.verification) != 1 || events.verification[0].Channel != domain.ChannelSMS {
		t.Fatalf("unexpected events %+v", events.verification)
	}
}

func TestVerification_ExpiredPhoneCode(t *testing.T) {
	svc, _, clock, _, user := newVerificationFixture(t)
	ctx := context.Background()

	code, err := svc.IssuePhoneSecret(ctx, user)
	if err != nil {
		t.Fatalf("IssuePhoneSecret: %v", err)
	}
	clock.Advance(11 * time.Minute)

	if ok, _ := svc.ConfirmPhone(ctx, user.Email, code); ok {
		t.Fatal("expired code must be rejected")
	}
}

func TestVerification_IssueKeepsOtherChannel(t *testing.T) {
	svc, users, _, _, user := newVerificationFixture(t)
	ctx := context.Background()

	if _, err := svc.IssueEmailSecret(ctx, user); err != nil {
		t.Fatalf("IssueEmailSecret: %v", err)
	}
	if _, err := svc.IssuePhoneSecret(ctx, user); err != nil {
		t.Fatalf("IssuePhoneSecret: %v", err)
	}

	stored, _ := users.GetByID(ctx, user.ID)
	if stored.EmailVerifyToken == nil || stored.PhoneVerifyCode == nil {
		t.Fatalf("both slots must be pending: %+v", stored)
	}
}

func TestVerification_ConfirmPhoneDuringEmailConfirmKeepsBothFlags(t *testing.T) {
	svc, users, clock, events, user := newVerificationFixture(t)
	ctx := context.Background()

	token, err := svc.IssueEmailSecret(ctx, user)
	if err != nil {
		t.Fatalf("IssueEmailSecret: %v", err)
	}
	code, err := svc.IssuePhoneSecret(ctx, user)
	if err != nil {
		t.Fatalf("IssuePhoneSecret: %v", err)
	}

	wrapped := &interleavingUsers{UserRepository: users}
	racing := NewVerificationService(wrapped, events, zaptest.NewLogger(t)).WithClock(clock.Now)
	wrapped.between = func() {
		if ok, err := racing.ConfirmPhone(ctx, user.Email, code); err != nil || !ok {
			t.Errorf("ConfirmPhone = %v, %v", ok, err)
		}
	}

	if ok, err := racing.ConfirmEmail(ctx, token); err != nil || !ok {
		t.Fatalf("ConfirmEmail = %v, %v", ok, err)
	}

	stored, _ := users.GetByID(ctx, user.ID)
	if !stored.EmailVerified || !stored.PhoneVerified {
		t.Fatalf("a confirm must not undo the other channel: %+v", stored)
	}
	if len(events.verification) != 2 || !events.verification[1].FullyVerified {
		t.Fatalf("the last confirmation must report full verification, got %+v", events.verification)
	}
}

func TestVerification_ConfirmEmailTwiceWithSameTokenSucceedsOnce(t *testing.T) {
	svc, users, clock, events, user := newVerificationFixture(t)
	ctx := context.Background()

	token, err := svc.IssueEmailSecret(ctx, user)
	if err != nil {
		t.Fatalf("IssueEmailSecret: %v", err)
	}

	wrapped := &interleavingUsers{UserRepository: users}
	racing := NewVerificationService(wrapped, events, zaptest.NewLogger(t)).WithClock(clock.Now)
	var inner bool
	wrapped.between = func() {
		inner, _ = racing.ConfirmEmail(ctx, token)
	}

	outer, err := racing.ConfirmEmail(ctx, token)
	if err != nil {
		t.Fatalf("ConfirmEmail: %v", err)
	}
	if !inner || outer {
		t.Fatalf("expected only the first completed confirm to succeed, got inner=%v outer=%v", inner, outer)
	}
	if len(events.verification) != 1 {
		t.Fatalf("expected one verification event, got %+v", events.verification)
	}
}

func TestVerification_ConcurrentConfirmEmailSucceedsOnce(t *testing.T) {
	svc, _, _, _, user := newVerificationFixture(t)
	ctx := context.Background()

	token, err := svc.IssueEmailSecret(ctx, user)
	if err != nil {
		t.Fatalf("IssueEmailSecret: %v", err)
	}

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := svc.ConfirmEmail(ctx, token); err == nil && ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful confirm, got %d", successes)
	}
}
