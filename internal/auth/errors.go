package auth

import "errors"

var (
	// ErrNoCredential means nothing is persisted; the caller is simply not logged in.
	ErrNoCredential = errors.New("no credential")
	// ErrCredentialInvalid covers tampered, expired, revoked or backend-rejected credentials.
	ErrCredentialInvalid = errors.New("invalid or expired credential")
)
