package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schedadmin/schedadmin/internal/auth"
	"github.com/schedadmin/schedadmin/internal/identity"
	"github.com/schedadmin/schedadmin/internal/store"
)

// cookieStore keeps the backend token in a signed, HttpOnly cookie. One is
// built per request.
type cookieStore struct {
	c           *gin.Context
	name        string
	secure      bool
	signer      *auth.CredentialSigner
	revocations *store.Revocations

	// claims of the credential read or written during this request
	claims *auth.CredentialClaims
}

var _ identity.CredentialStore = (*cookieStore)(nil)

func (s *cookieStore) Load(ctx context.Context) (string, error) {
	if s.claims != nil {
		return s.claims.Token, nil
	}

	raw, err := s.c.Cookie(s.name)
	if err != nil || raw == "" {
		return "", auth.ErrNoCredential
	}

	claims, err := s.signer.Validate(raw)
	if err != nil {
		return "", err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", fmt.Errorf("%w: revoked", auth.ErrCredentialInvalid)
	}

	s.claims = claims
	return claims.Token, nil
}

func (s *cookieStore) Save(ctx context.Context, token string, session auth.Session) error {
	signed, claims, err := s.signer.Issue(token, session.UserID)
	if err != nil {
		return err
	}
	s.claims = claims
	s.write(signed, int(s.signer.TTL()/time.Second))
	return nil
}

// Delete expires the cookie and revokes the credential it carried, if valid
func (s *cookieStore) Delete(ctx context.Context) error {
	claims := s.claims
	if claims == nil {
		if raw, err := s.c.Cookie(s.name); err == nil && raw != "" {
			claims, _ = s.signer.Validate(raw)
		}
	}
	s.claims = nil
	s.write("", -1)

	if claims == nil {
		return nil
	}
	return s.revocations.Revoke(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time)
}

func (s *cookieStore) write(value string, maxAge int) {
	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(s.name, value, maxAge, "/", "", s.secure, true)
}
