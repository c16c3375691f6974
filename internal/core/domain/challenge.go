package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel is the out-of-band medium used to deliver a secret.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ParseChannel normalises user input into a Channel.
func ParseChannel(raw string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(raw))) {
	case ChannelEmail:
		return ChannelEmail, nil
	case ChannelSMS:
		return ChannelSMS, nil
	default:
		return "", fmt.Errorf("unknown channel %q", raw)
	}
}

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// ChallengePurpose labels why a challenge was minted. A challenge only completes the flow it was minted for.
type ChallengePurpose string

const (
	ChallengePurposeLogin         ChallengePurpose = "login"
	ChallengePurposePasswordReset ChallengePurpose = "password_reset"
)

// Challenge is an ephemeral, single-use secret addressed by an opaque id.
//
// Secret holds the plaintext code only on the value returned at creation;
// stores persist SecretHash.
type Challenge struct {
	ID         string
	SubjectID  string
	Channel    Channel
	Purpose    ChallengePurpose
	Secret     string
	SecretHash string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// IsExpired reports whether the challenge can no longer be satisfied at the given instant.
func (c Challenge) IsExpired(at time.Time) bool {
	return at.After(c.ExpiresAt)
}

// Redacted returns a copy without the plaintext secret.
func (c Challenge) Redacted() Challenge {
	c.Secret = ""
	return c
}
