package domain

import "time"

// User mirrors the persisted representation in the users table.
type User struct {
	ID                 string
	Name               string
	Email              string
	Phone              *string
	PasswordHash       string
	EmailVerified      bool
	PhoneVerified      bool
	EmailVerifyToken   *string
	EmailVerifyExpires *time.Time
	PhoneVerifyCode    *string
	PhoneVerifyExpires *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	PasswordChangedAt  time.Time
}

// FullyVerified reports whether both contact channels were confirmed. Login requires it.
func (u User) FullyVerified() bool {
	return u.EmailVerified && u.PhoneVerified
}

// PhoneNumber returns the stored phone or an empty string.
func (u User) PhoneNumber() string {
	if u.Phone == nil {
		return ""
	}
	return *u.Phone
}

// VerificationSecret is the pending ownership secret of one channel. Only the digest is stored.
type VerificationSecret struct {
	Digest  string
	Expires time.Time
}

// PendingVerification returns the stored digest and deadline of channel's slot, nil when empty.
func (u User) PendingVerification(channel Channel) (*string, *time.Time) {
	if channel == ChannelSMS {
		return u.PhoneVerifyCode, u.PhoneVerifyExpires
	}
	return u.EmailVerifyToken, u.EmailVerifyExpires
}

// SetVerificationSecret overwrites channel's slot. The verified flags are left alone.
func (u *User) SetVerificationSecret(channel Channel, secret VerificationSecret) {
	digest, expires := secret.Digest, secret.Expires
	if channel == ChannelSMS {
		u.PhoneVerifyCode, u.PhoneVerifyExpires = &digest, &expires
		return
	}
	u.EmailVerifyToken, u.EmailVerifyExpires = &digest, &expires
}

// MarkVerified sets channel's flag and clears its slot.
func (u *User) MarkVerified(channel Channel) {
	if channel == ChannelSMS {
		u.PhoneVerified = true
		u.PhoneVerifyCode, u.PhoneVerifyExpires = nil, nil
		return
	}
	u.EmailVerified = true
	u.EmailVerifyToken, u.EmailVerifyExpires = nil, nil
}

// PasswordContext carries user inputs that strength checks should penalise.
type PasswordContext struct {
	Name  string
	Email string
	Phone *string
}

// AccountStatus is a sanitized projection of a user for diagnostics.
type AccountStatus struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone,omitempty"`
	EmailVerified      bool       `json:"emailVerified"`
	PhoneVerified      bool       `json:"phoneVerified"`
	EmailSecretPending bool       `json:"emailSecretPending"`
	PhoneSecretPending bool       `json:"phoneSecretPending"`
	EmailSecretExpires *time.Time `json:"emailSecretExpires,omitempty"`
	PhoneSecretExpires *time.Time `json:"phoneSecretExpires,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	PasswordChangedAt  time.Time  `json:"passwordChangedAt"`
}

// StatusOf builds the sanitized projection of a user.
func StatusOf(u User) AccountStatus {
	return AccountStatus{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Phone:              u.PhoneNumber(),
		EmailVerified:      u.EmailVerified,
		PhoneVerified:      u.PhoneVerified,
		EmailSecretPending: u.EmailVerifyToken != nil,
		PhoneSecretPending: u.PhoneVerifyCode != nil,
		EmailSecretExpires: u.EmailVerifyExpires,
		PhoneSecretExpires: u.PhoneVerifyExpires,
		CreatedAt:          u.CreatedAt,
		PasswordChangedAt:  u.PasswordChangedAt,
	}
}
