package domain

import "time"

// ChallengeEventType enumerates challenge lifecycle transitions worth auditing.
type ChallengeEventType string

const (
	ChallengeIssued         ChallengeEventType = "challenge.issued"
	ChallengeConsumed       ChallengeEventType = "challenge.consumed"
	ChallengeExpired        ChallengeEventType = "challenge.expired"
	ChallengeDeliveryFailed ChallengeEventType = "challenge.delivery_failed"
)

// UserRegisteredEvent represents the payload for user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Name         string
	Email        string
	Phone        *string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// ChallengeEvent represents the payload for challenge.* messages.
type ChallengeEvent struct {
	EventID     string
	Type        ChallengeEventType
	ChallengeID string
	SubjectID   string
	Channel     Channel
	Purpose     ChallengePurpose
	ExpiresAt   time.Time
	OccurredAt  time.Time
	Reason      string
}

// VerificationCompletedEvent represents the payload for user.verification.completed messages.
type VerificationCompletedEvent struct {
	EventID       string
	UserID        string
	Channel       Channel
	FullyVerified bool
	VerifiedAt    time.Time
}

// PasswordChangedEvent represents the payload for user.password.changed messages.
type PasswordChangedEvent struct {
	EventID   string
	UserID    string
	ChangedAt time.Time
	Reason    string
	Metadata  map[string]any
}
