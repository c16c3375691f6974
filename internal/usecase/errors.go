package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input. Use ValidationError to carry the field and reason.
	ErrValidation = errors.New("validation failed")
	// ErrEmailTaken indicates an account already exists for the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials covers unknown accounts, wrong passwords and unverified accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidChallenge is the uniform failure of every challenge completion step.
	ErrInvalidChallenge = errors.New("invalid code")
	// ErrInvalidToken covers bad, expired and wrong-purpose bearer tokens.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrChallengeNotFound indicates the challenge id is unknown or already consumed.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeExpired indicates the challenge outlived its ttl. It is deleted on detection.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrChallengeMismatch indicates a wrong secret. The challenge stays usable.
	ErrChallengeMismatch = errors.New("challenge secret mismatch")
	// ErrChallengePurpose indicates the challenge was minted for another flow. It stays usable there.
	ErrChallengePurpose = errors.New("challenge purpose mismatch")
)

// ValidationError describes why a single input field was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
