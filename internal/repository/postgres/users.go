package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/David567rs/LoginAna/internal/core/domain"
	"github.com/David567rs/LoginAna/internal/core/port"
	"github.com/David567rs/LoginAna/internal/repository"
)

var userColumns = []string{
	"id",
	"name",
	"email",
	"phone",
	"password_hash",
	"email_verified",
	"phone_verified",
	"email_verify_token",
	"email_verify_expires",
	"phone_verify_code",
	"phone_verify_expires",
	"created_at",
	"updated_at",
	"password_changed_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

var _ port.UserRepository = (*UserRepository)(nil)

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	repo := &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
	return repo
}

// WithClock overrides the clock used for updated_at, used in tests.
func (r *UserRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Create inserts a new user row. Emails are stored lower-cased.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	var phoneValue any
	if user.Phone != nil && *user.Phone != "" {
		phoneValue = *user.Phone
	}

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now().UTC()
	}
	updatedAt := user.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	passwordChangedAt := user.PasswordChangedAt
	if passwordChangedAt.IsZero() {
		passwordChangedAt = createdAt
	}

	stmt, args, err := r.builder.Insert(usersTable).
		Columns(userColumns...).
		Values(
			user.ID,
			user.Name,
			normalizeEmail(user.Email),
			phoneValue,
			user.PasswordHash,
			user.EmailVerified,
			user.PhoneVerified,
			user.EmailVerifyToken,
			user.EmailVerifyExpires,
			user.PhoneVerifyCode,
			user.PhoneVerifyExpires,
			createdAt,
			updatedAt,
			passwordChangedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.selectOne(ctx, squirrel.Eq{"id": id}, "by id")
}

// GetByEmail retrieves a user by case-insensitive email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.selectOne(ctx, squirrel.Eq{"email": normalizeEmail(email)}, "by email")
}

// GetByEmailVerifyToken retrieves the user holding the pending email secret.
func (r *UserRepository) GetByEmailVerifyToken(ctx context.Context, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, repository.ErrNotFound
	}
	return r.selectOne(ctx, squirrel.Eq{"email_verify_token": token}, "by email token")
}

// ExistsByEmail reports whether the email is already registered.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		Prefix("SELECT EXISTS (").
		From(usersTable).
		Where(squirrel.Eq{"email": normalizeEmail(email)}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists user sql: %w", err)
	}

	var exists bool
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("scan user exists: %w", err)
	}
	return exists, nil
}

// verificationColumns names the flag and secret slot of one channel.
type verificationColumns struct {
	verified string
	secret   string
	expires  string
}

func columnsFor(channel domain.Channel) (verificationColumns, error) {
	switch channel {
	case domain.ChannelEmail:
		return verificationColumns{"email_verified", "email_verify_token", "email_verify_expires"}, nil
	case domain.ChannelSMS:
		return verificationColumns{"phone_verified", "phone_verify_code", "phone_verify_expires"}, nil
	default:
		return verificationColumns{}, fmt.Errorf("unknown verification channel %q", channel)
	}
}

// SetVerificationSecret overwrites the secret slot of channel only.
func (r *UserRepository) SetVerificationSecret(ctx context.Context, id string, channel domain.Channel, secret domain.VerificationSecret) error {
	cols, err := columnsFor(channel)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.Update(usersTable).
		Set(cols.secret, secret.Digest).
		Set(cols.expires, secret.Expires.UTC()).
		Set("updated_at", r.now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set verification secret sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set verification secret: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CompleteVerification flips the channel flag and clears its slot while the stored digest
// still matches. Zero affected rows means another confirm or a reissue got there first.
func (r *UserRepository) CompleteVerification(ctx context.Context, id string, channel domain.Channel, digest string) (bool, error) {
	cols, err := columnsFor(channel)
	if err != nil {
		return false, err
	}
	if digest == "" {
		return false, nil
	}

	stmt, args, err := r.builder.Update(usersTable).
		Set(cols.verified, true).
		Set(cols.secret, nil).
		Set(cols.expires, nil).
		Set("updated_at", r.now().UTC()).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{cols.secret: digest}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build complete verification sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("complete verification: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// UpdatePassword updates a user's password hash and last change timestamp.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("password_hash", passwordHash).
		Set("password_changed_at", changedAt).
		Set("updated_at", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) selectOne(ctx context.Context, where squirrel.Eq, label string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user %s sql: %w", label, err)
	}

	var user domain.User
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Phone,
		&user.PasswordHash,
		&user.EmailVerified,
		&user.PhoneVerified,
		&user.EmailVerifyToken,
		&user.EmailVerifyExpires,
		&user.PhoneVerifyCode,
		&user.PhoneVerifyExpires,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.PasswordChangedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user %s: %w", label, err)
	}

	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
