package security

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/David567rs/LoginAna/internal/core/domain"
)

var (
	// ErrKeyIDMissing indicates no kid is associated with the supplied key.
	ErrKeyIDMissing = errors.New("jwt: missing key identifier")
	// ErrKeyNotRegistered indicates a supplied kid is unknown to the JWT manager.
	ErrKeyNotRegistered = errors.New("jwt: key not registered")
	// ErrTokenInvalid covers malformed tokens, bad signatures and unexpected algorithms.
	ErrTokenInvalid = errors.New("jwt: invalid token")
	// ErrTokenExpired indicates the token was valid but its exp has passed.
	ErrTokenExpired = errors.New("jwt: token expired")
)

const (
	SigningMethodHS256 = "HS256"
	SigningMethodRS256 = "RS256"
)

// SessionClaims are carried by session bearer tokens.
type SessionClaims struct {
	Purpose domain.TokenPurpose `json:"typ"`
	Email   string              `json:"email,omitempty"`
	Name    string              `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// ResetClaims are carried by password-reset tokens.
type ResetClaims struct {
	Purpose domain.TokenPurpose `json:"typ"`
	jwt.RegisteredClaims
}

// JWTManager signs and parses tokens with either a shared HMAC secret or RSA keys.
type JWTManager struct {
	method      jwt.SigningMethod
	secret      []byte
	keyProvider KeyProvider
	issuer      string
	now         func() time.Time

	mu         sync.RWMutex
	publicKeys map[string]*rsa.PublicKey
}

// JWTOption customises a JWTManager.
type JWTOption func(*JWTManager)

// WithJWTClock overrides the clock used for validation.
func WithJWTClock(now func() time.Time) JWTOption {
	return func(m *JWTManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewHMACManager builds an HS256 manager around secret.
func NewHMACManager(secret []byte, issuer string, opts ...JWTOption) (*JWTManager, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt: hmac secret is required")
	}
	mgr := &JWTManager{
		method:     jwt.SigningMethodHS256,
		secret:     secret,
		issuer:     strings.TrimSpace(issuer),
		now:        time.Now,
		publicKeys: make(map[string]*rsa.PublicKey),
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr, nil
}

// NewRSAManager builds an RS256 manager backed by provider and registers its public keys for JWKS.
func NewRSAManager(provider KeyProvider, issuer string, opts ...JWTOption) (*JWTManager, error) {
	if provider == nil {
		return nil, fmt.Errorf("jwt: key provider not configured")
	}
	mgr := &JWTManager{
		method:      jwt.SigningMethodRS256,
		keyProvider: provider,
		issuer:      strings.TrimSpace(issuer),
		now:         time.Now,
		publicKeys:  make(map[string]*rsa.PublicKey),
	}
	for _, opt := range opts {
		opt(mgr)
	}
	for kid, key := range provider.ListVerificationKeys() {
		if err := mgr.RegisterPublicKey(kid, key); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

// Issuer returns the iss claim written on every token.
func (m *JWTManager) Issuer() string {
	return m.issuer
}

// Now returns the manager clock reading.
func (m *JWTManager) Now() time.Time {
	return m.now()
}

// RegisterPublicKey associates a kid with a public key for JWKS publication and future lookup.
func (m *JWTManager) RegisterPublicKey(kid string, key *rsa.PublicKey) error {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return ErrKeyIDMissing
	}
	if key == nil {
		return fmt.Errorf("jwt: public key for %s is nil", kid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.publicKeys[kid] = key
	return nil
}

// GetVerificationKey retrieves a public key by kid.
func (m *JWTManager) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}

	m.mu.RLock()
	key, ok := m.publicKeys[kid]
	m.mu.RUnlock()
	if ok {
		return key, nil
	}

	if m.keyProvider != nil {
		fetched, err := m.keyProvider.GetVerificationKey(kid)
		if err == nil {
			_ = m.RegisterPublicKey(kid, fetched)
			return fetched, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrKeyNotRegistered, kid)
}

// Sign serialises and signs the claims.
func (m *JWTManager) Sign(claims jwt.Claims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("jwt: claims required")
	}

	token := jwt.NewWithClaims(m.method, claims)

	var key any
	switch m.method {
	case jwt.SigningMethodHS256:
		key = m.secret
	default:
		signingKey, err := m.keyProvider.GetSigningKey()
		if err != nil {
			return "", fmt.Errorf("jwt: get signing key: %w", err)
		}
		kid := strings.TrimSpace(m.keyProvider.SigningKeyID())
		if kid == "" {
			return "", ErrKeyIDMissing
		}
		token.Header["kid"] = kid
		key = signingKey
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Parse validates signature, algorithm, issuer and time claims, populating claims on success.
func (m *JWTManager) Parse(token string, claims jwt.Claims) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrTokenInvalid
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(m.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if m.method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return m.secret, nil
		case *jwt.SigningMethodRSA:
			if m.method != jwt.SigningMethodRS256 {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			kid, _ := t.Header["kid"].(string)
			kid = strings.TrimSpace(kid)
			if kid == "" {
				return nil, fmt.Errorf("kid header not found")
			}
			return m.GetVerificationKey(kid)
		default:
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
	}, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if parsed == nil || !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}

// JWKS produces the JSON Web Key Set for registered keys. HMAC managers publish an empty set.
func (m *JWTManager) JWKS() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]map[string]string, 0, len(m.publicKeys))
	for kid, key := range m.publicKeys {
		if key == nil {
			continue
		}
		keys = append(keys, buildJWK(kid, key))
	}

	return json.Marshal(map[string]any{"keys": keys})
}

func buildJWK(kid string, key *rsa.PublicKey) map[string]string {
	return map[string]string{
		"kty": "RSA",
		"use": "sig",
		"alg": "RS256",
		"kid": kid,
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
}
