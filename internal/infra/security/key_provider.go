package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrNoSigningKey   = errors.New("no private key found for signing")
	errUnsupportedKey = errors.New("unsupported key material")
)

// KeyProvider defines the interface for providing RSA signing material.
type KeyProvider interface {
	SigningKeyID() string
	GetSigningKey() (*rsa.PrivateKey, error)
	GetVerificationKey(kid string) (*rsa.PublicKey, error)
	ListVerificationKeys() map[string]*rsa.PublicKey
}

// FileKeyProvider loads PEM keys from a directory. The kid of each key is its file name
// without extension. The first private key in lexical order signs new tokens.
type FileKeyProvider struct {
	keys       map[string]*rsa.PublicKey
	signingKey *rsa.PrivateKey
	signingKID string
}

// NewFileKeyProvider reads every PEM file in keyDir.
func NewFileKeyProvider(keyDir string) (*FileKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read key directory: %w", err)
	}

	provider := &FileKeyProvider{keys: make(map[string]*rsa.PublicKey)}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		path := filepath.Join(keyDir, file.Name())
		keyData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
		}

		kid := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		private, public, err := parseRSAPEM(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse key file %s: %w", path, err)
		}
		if private != nil && provider.signingKey == nil {
			provider.signingKey = private
			provider.signingKID = kid
		}
		provider.keys[kid] = public
	}

	if provider.signingKey == nil {
		return nil, ErrNoSigningKey
	}

	return provider, nil
}

func parseRSAPEM(data []byte) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, nil, errors.New("failed to decode PEM block")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, &key.PublicKey, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, &rsaKey.PublicKey, nil
		}
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return nil, key, nil
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return nil, rsaKey, nil
		}
	}

	return nil, nil, errUnsupportedKey
}

// SigningKeyID returns the kid of the active signing key.
func (p *FileKeyProvider) SigningKeyID() string {
	return p.signingKID
}

// GetSigningKey returns the private key for signing tokens.
func (p *FileKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.signingKey, nil
}

// GetVerificationKey returns the public key for verifying tokens.
func (p *FileKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// ListVerificationKeys returns a copy of every known public key by kid.
func (p *FileKeyProvider) ListVerificationKeys() map[string]*rsa.PublicKey {
	out := make(map[string]*rsa.PublicKey, len(p.keys))
	for kid, key := range p.keys {
		out[kid] = key
	}
	return out
}

// StaticKeyProvider serves a single in-memory key pair.
type StaticKeyProvider struct {
	kid string
	key *rsa.PrivateKey
}

// NewStaticKeyProvider wraps an RSA key under the given kid.
func NewStaticKeyProvider(kid string, key *rsa.PrivateKey) *StaticKeyProvider {
	return &StaticKeyProvider{kid: kid, key: key}
}

func (p *StaticKeyProvider) SigningKeyID() string { return p.kid }

func (p *StaticKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	if p.key == nil {
		return nil, ErrNoSigningKey
	}
	return p.key, nil
}

func (p *StaticKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	if p.key == nil || kid != p.kid {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return &p.key.PublicKey, nil
}

func (p *StaticKeyProvider) ListVerificationKeys() map[string]*rsa.PublicKey {
	if p.key == nil {
		return map[string]*rsa.PublicKey{}
	}
	return map[string]*rsa.PublicKey{p.kid: &p.key.PublicKey}
}
