package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// PurposeCredential keys the session cookie signer
	PurposeCredential = "credential"

	keyLength = 32
)

// DeriveKey expands the configured secret into an independent key per purpose
func DeriveKey(secret, purpose string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("empty secret")
	}
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("schedadmin/"+purpose))
	key := make([]byte, keyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive %s key: %w", purpose, err)
	}
	return key, nil
}

// GenerateSecret returns 32 random bytes as 64 hex characters
func GenerateSecret() (string, error) {
	b := make([]byte, keyLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
