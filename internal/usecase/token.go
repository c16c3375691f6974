package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/David567rs/LoginAna/internal/core/domain"
	"github.com/David567rs/LoginAna/internal/infra/security"
)

const (
	defaultSessionTTL = time.Hour
	defaultResetTTL   = 10 * time.Minute
)

// TokenService issues and checks purpose-tagged bearer tokens.
type TokenService struct {
	jwt        *security.JWTManager
	sessionTTL time.Duration
	resetTTL   time.Duration
}

// NewTokenService wraps manager. Non-positive ttls fall back to one hour for sessions
// and ten minutes for reset tokens.
func NewTokenService(manager *security.JWTManager, sessionTTL, resetTTL time.Duration) *TokenService {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	if resetTTL <= 0 {
		resetTTL = defaultResetTTL
	}
	return &TokenService{jwt: manager, sessionTTL: sessionTTL, resetTTL: resetTTL}
}

// IssueSession signs a session token. email and name may be empty when the identity
// could not be resolved.
func (s *TokenService) IssueSession(userID, email, name string) (domain.IssuedToken, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.IssuedToken{}, fmt.Errorf("user id is required")
	}

	now := s.jwt.Now()
	expires := now.Add(s.sessionTTL)
	claims := security.SessionClaims{
		Purpose:          domain.TokenPurposeSession,
		Email:            email,
		Name:             name,
		RegisteredClaims: s.registered(userID, now, expires),
	}

	signed, err := s.jwt.Sign(claims)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("sign session token: %w", err)
	}
	return domain.IssuedToken{Token: signed, Purpose: domain.TokenPurposeSession, ExpiresAt: expires}, nil
}

// IssueResetToken signs a short-lived token that only ResetPassword accepts.
func (s *TokenService) IssueResetToken(userID string) (domain.IssuedToken, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.IssuedToken{}, fmt.Errorf("user id is required")
	}

	now := s.jwt.Now()
	expires := now.Add(s.resetTTL)
	claims := security.ResetClaims{
		Purpose:          domain.TokenPurposeReset,
		RegisteredClaims: s.registered(userID, now, expires),
	}

	signed, err := s.jwt.Sign(claims)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("sign reset token: %w", err)
	}
	return domain.IssuedToken{Token: signed, Purpose: domain.TokenPurposeReset, ExpiresAt: expires}, nil
}

// VerifyResetToken returns the subject of a valid reset token.
func (s *TokenService) VerifyResetToken(token string) (string, error) {
	var claims security.ResetClaims
	if err := s.jwt.Parse(token, &claims); err != nil {
		return "", tokenError(err)
	}
	if claims.Purpose != domain.TokenPurposeReset || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// VerifySessionToken returns the claims of a valid session token.
func (s *TokenService) VerifySessionToken(token string) (*security.SessionClaims, error) {
	var claims security.SessionClaims
	if err := s.jwt.Parse(token, &claims); err != nil {
		return nil, tokenError(err)
	}
	if claims.Purpose != domain.TokenPurposeSession || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (s *TokenService) registered(subject string, issuedAt, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    s.jwt.Issuer(),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func tokenError(err error) error {
	if errors.Is(err, security.ErrTokenExpired) || errors.Is(err, security.ErrTokenInvalid) {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return ErrInvalidToken
}
