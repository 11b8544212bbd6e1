package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	appauth "github.com/schedadmin/schedadmin/internal/auth"
	"github.com/schedadmin/schedadmin/internal/identity"
)

const (
	service = "schedadmin-cli"
)

// getKeyringKey returns a unique key for storing backend tokens per backend
func getKeyringKey(backendURL string) string {
	return fmt.Sprintf("token-%s", backendURL)
}

// Keyring keeps the backend token in the OS keychain/credential manager
type Keyring struct {
	backendURL string
}

var _ identity.CredentialStore = (*Keyring)(nil)

// NewKeyring returns the store for backendURL
func NewKeyring(backendURL string) *Keyring {
	return &Keyring{backendURL: backendURL}
}

// Load returns the stored token or appauth.ErrNoCredential
func (k *Keyring) Load(ctx context.Context) (string, error) {
	token, err := keyring.Get(service, getKeyringKey(k.backendURL))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", appauth.ErrNoCredential
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	if token == "" {
		return "", appauth.ErrNoCredential
	}
	return token, nil
}

// Save persists token. The session is re-fetched from the backend on each run.
func (k *Keyring) Save(ctx context.Context, token string, session appauth.Session) error {
	if err := keyring.Set(service, getKeyringKey(k.backendURL), token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Delete removes the token
func (k *Keyring) Delete(ctx context.Context) error {
	if err := keyring.Delete(service, getKeyringKey(k.backendURL)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
