package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// CredentialClaims wraps the opaque backend token so the web tier can reject
// tampered or expired cookies without a backend round trip
type CredentialClaims struct {
	Token  string `json:"tok"`
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// CredentialSigner issues and validates credential tokens
type CredentialSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewCredentialSigner creates a signer. The key should come from DeriveKey.
func NewCredentialSigner(key []byte, ttl time.Duration) (*CredentialSigner, error) {
	if len(key) == 0 {
		return nil, errors.New("credential signing key not initialized")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("credential ttl must be positive, got %s", ttl)
	}
	return &CredentialSigner{key: key, ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of issued credentials
func (s *CredentialSigner) TTL() time.Duration {
	return s.ttl
}

// Issue signs a credential for the given backend token
func (s *CredentialSigner) Issue(backendToken, userID string) (string, *CredentialClaims, error) {
	if backendToken == "" {
		return "", nil, errors.New("empty backend token")
	}

	now := s.now()
	claims := &CredentialClaims{
		Token:  backendToken,
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, claims, nil
}

// Validate parses a credential and returns its claims. Every failure wraps
// ErrCredentialInvalid.
func (s *CredentialSigner) Validate(tokenString string) (*CredentialClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CredentialClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	}

	claims, ok := token.Claims.(*CredentialClaims)
	if !ok || !token.Valid || claims.Token == "" {
		return nil, ErrCredentialInvalid
	}
	return claims, nil
}
