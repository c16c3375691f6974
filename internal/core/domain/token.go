package domain

import "time"

// TokenPurpose discriminates bearer tokens. Verifiers must check it explicitly.
type TokenPurpose string

const (
	TokenPurposeSession TokenPurpose = "session"
	TokenPurposeReset   TokenPurpose = "reset"
)

// IssuedToken is a signed bearer token and its expiry.
type IssuedToken struct {
	Token     string
	Purpose   TokenPurpose
	ExpiresAt time.Time
}

// SessionIdentity is the identity carried by a session token.
type SessionIdentity struct {
	UserID string
	Email  string
	Name   string
}
