package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/David567rs/LoginAna/internal/core/domain"
)

var fixedNow = time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC)

func resetClaimsAt(issuedAt time.Time, ttl time.Duration) *ResetClaims {
	return &ResetClaims{
		Purpose: domain.TokenPurposeReset,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "login-ana",
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
}

func TestHMACManagerSignAndParse(t *testing.T) {
	mgr, err := NewHMACManager([]byte("top-secret"), "login-ana", WithJWTClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewHMACManager returned error: %v", err)
	}

	signed, err := mgr.Sign(resetClaimsAt(fixedNow, 10*time.Minute))
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	var claims ResetClaims
	if err := mgr.Parse(signed, &claims); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if claims.Subject != "user-1" || claims.Purpose != domain.TokenPurposeReset {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestHMACManagerRejectsExpiredAndForeignTokens(t *testing.T) {
	now := fixedNow
	mgr, err := NewHMACManager([]byte("top-secret"), "login-ana", WithJWTClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewHMACManager returned error: %v", err)
	}

	signed, err := mgr.Sign(resetClaimsAt(fixedNow, 10*time.Minute))
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	now = fixedNow.Add(11 * time.Minute)
	if err := mgr.Parse(signed, &ResetClaims{}); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	now = fixedNow

	other, _ := NewHMACManager([]byte("another-secret"), "login-ana", WithJWTClock(func() time.Time { return now }))
	if err := other.Parse(signed, &ResetClaims{}); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign secret, got %v", err)
	}

	otherIssuer, _ := NewHMACManager([]byte("top-secret"), "someone-else", WithJWTClock(func() time.Time { return now }))
	if err := otherIssuer.Parse(signed, &ResetClaims{}); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for issuer mismatch, got %v", err)
	}

	if err := mgr.Parse("not-a-jwt", &ResetClaims{}); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

func TestRSAManagerSignParseAndJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey returned error: %v", err)
	}

	mgr, err := NewRSAManager(NewStaticKeyProvider("k1", key), "login-ana", WithJWTClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewRSAManager returned error: %v", err)
	}

	signed, err := mgr.Sign(resetClaimsAt(fixedNow, time.Minute))
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(signed, &ResetClaims{})
	if err != nil {
		t.Fatalf("ParseUnverified returned error: %v", err)
	}
	if parsed.Header["kid"] != "k1" {
		t.Fatalf("expected kid header k1, got %v", parsed.Header["kid"])
	}

	if err := mgr.Parse(signed, &ResetClaims{}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	raw, err := mgr.JWKS()
	if err != nil {
		t.Fatalf("JWKS returned error: %v", err)
	}
	var set struct {
		Keys []map[string]string `json:"keys"`
	}
	if err := json.Unmarshal(raw, &set); err != nil {
		t.Fatalf("decode jwks: %v", err)
	}
	if len(set.Keys) != 1 || set.Keys[0]["kid"] != "k1" || set.Keys[0]["alg"] != "RS256" {
		t.Fatalf("unexpected jwks: %s", raw)
	}
}

func TestRSAManagerRejectsHMACToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey returned error: %v", err)
	}
	rsaMgr, _ := NewRSAManager(NewStaticKeyProvider("k1", key), "login-ana", WithJWTClock(func() time.Time { return fixedNow }))
	hmacMgr, _ := NewHMACManager([]byte("top-secret"), "login-ana", WithJWTClock(func() time.Time { return fixedNow }))

	signed, err := hmacMgr.Sign(resetClaimsAt(fixedNow, time.Minute))
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if err := rsaMgr.Parse(signed, &ResetClaims{}); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestFileKeyProviderLoadsPEMDirectory(t *testing.T) {
	dir := t.TempDir()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey returned error: %v", err)
	}

	private := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(filepath.Join(dir, "2025-10.pem"), private, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	public := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	if err := os.WriteFile(filepath.Join(dir, "2025-09.pub"), public, 0o600); err != nil {
		t.Fatalf("write public key: %v", err)
	}

	provider, err := NewFileKeyProvider(dir)
	if err != nil {
		t.Fatalf("NewFileKeyProvider returned error: %v", err)
	}
	if provider.SigningKeyID() != "2025-10" {
		t.Fatalf("expected signing kid 2025-10, got %s", provider.SigningKeyID())
	}
	if len(provider.ListVerificationKeys()) != 2 {
		t.Fatalf("expected two verification keys, got %d", len(provider.ListVerificationKeys()))
	}
	if _, err := provider.GetVerificationKey("missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestFileKeyProviderRequiresPrivateKey(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewFileKeyProvider(dir); !errors.Is(err, ErrNoSigningKey) {
		t.Fatalf("expected ErrNoSigningKey, got %v", err)
	}
}
