package security

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestGenerateNumericCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := GenerateNumericCode(6)
		if err != nil {
			t.Fatalf("GenerateNumericCode returned error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("unexpected character %q in %q", r, code)
			}
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 150 {
		t.Fatalf("expected mostly distinct codes, got %d unique of 200", len(seen))
	}

	if _, err := GenerateNumericCode(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestGenerateAlphanumericToken(t *testing.T) {
	token, err := GenerateAlphanumericToken(32)
	if err != nil {
		t.Fatalf("GenerateAlphanumericToken returned error: %v", err)
	}
	if len(token) != 32 {
		t.Fatalf("expected 32 characters, got %d", len(token))
	}
	for _, r := range token {
		if !strings.ContainsRune(alphanumericAlphabet, r) {
			t.Fatalf("unexpected character %q", r)
		}
	}
}

func TestGenerateSecureTokenLength(t *testing.T) {
	token, err := GenerateSecureToken(16)
	if err != nil {
		t.Fatalf("GenerateSecureToken returned error: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("token is not base64url: %v", err)
	}
	if len(raw) != 16 {
		t.Fatalf("expected 16 random bytes, got %d", len(raw))
	}
}

func TestSecretsEqualAndHashMatching(t *testing.T) {
	if !SecretsEqual("123456", "123456") {
		t.Fatal("expected equal secrets to match")
	}
	if SecretsEqual("123456", "123457") || SecretsEqual("123456", "1234567") {
		t.Fatal("expected different secrets not to match")
	}

	stored := HashToken("482913")
	if !MatchesTokenHash("482913", stored) {
		t.Fatal("expected candidate to match stored hash")
	}
	if MatchesTokenHash("000000", stored) {
		t.Fatal("expected wrong candidate not to match")
	}
}
