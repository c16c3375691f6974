package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/David567rs/LoginAna/internal/core/domain"
	"github.com/David567rs/LoginAna/internal/core/port"
	"github.com/David567rs/LoginAna/internal/repository"
)

// UserRepository is a process-local user store indexed by id and lower-cased email.
// Every method copies records in and out so callers never share memory with the store.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
	now     func() time.Time
}

var _ port.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) Create(_ context.Context, user domain.User) error {
	email := normalizeEmail(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[user.ID]; exists {
		return repository.ErrConflict
	}
	if _, exists := r.byEmail[email]; exists {
		return repository.ErrConflict
	}

	user.Email = email
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	r.byID[user.ID] = cloneUser(user)
	r.byEmail[email] = user.ID
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneUser(user)
	return &out, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneUser(r.byID[id])
	return &out, nil
}

func (r *UserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byEmail[normalizeEmail(email)]
	return ok, nil
}

func (r *UserRepository) GetByEmailVerifyToken(_ context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.byID {
		if user.EmailVerifyToken != nil && *user.EmailVerifyToken == token {
			out := cloneUser(user)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) SetVerificationSecret(_ context.Context, id string, channel domain.Channel, secret domain.VerificationSecret) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.SetVerificationSecret(channel, secret)
	user.UpdatedAt = r.now().UTC()
	r.byID[id] = user
	return nil
}

func (r *UserRepository) CompleteVerification(_ context.Context, id string, channel domain.Channel, digest string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	pending, _ := user.PendingVerification(channel)
	if digest == "" || pending == nil || *pending != digest {
		return false, nil
	}
	user.MarkVerified(channel)
	user.UpdatedAt = r.now().UTC()
	r.byID[id] = user
	return true, nil
}

func (r *UserRepository) UpdatePassword(_ context.Context, id string, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.PasswordChangedAt = changedAt.UTC()
	user.UpdatedAt = changedAt.UTC()
	r.byID[id] = user
	return nil
}

func cloneUser(u domain.User) domain.User {
	u.Phone = cloneString(u.Phone)
	u.EmailVerifyToken = cloneString(u.EmailVerifyToken)
	u.PhoneVerifyCode = cloneString(u.PhoneVerifyCode)
	u.EmailVerifyExpires = cloneTime(u.EmailVerifyExpires)
	u.PhoneVerifyExpires = cloneTime(u.PhoneVerifyExpires)
	return u
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
