// Package identity resolves the current user's session from a persisted
// credential and holds it for the component that asked for it.
//
// A Provider is created per consumer (one per HTTP request on the web tier, one
// per process in the CLI) and passed explicitly; there is no package-level
// session.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/schedadmin/schedadmin/internal/auth"
)

// State is the resolution state of a provider
type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "loading"
	}
}

// ErrSuperseded is returned by a resolution whose result was discarded because
// SetSession, ClearSession or a newer Resolve ran first
var ErrSuperseded = errors.New("session resolution superseded")

// CredentialStore persists the opaque backend token between requests or runs.
// Load returns auth.ErrNoCredential when nothing is stored and wraps
// auth.ErrCredentialInvalid when the stored value cannot be used.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string, session auth.Session) error
	Delete(ctx context.Context) error
}

// ProfileFetcher loads the profile behind a token. It wraps
// auth.ErrCredentialInvalid when the backend rejects the token.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, token string) (*auth.Session, error)
}

// Snapshot is a consistent view of the provider
type Snapshot struct {
	State   State
	Session *auth.Session
}

// Provider resolves and exposes the current session
type Provider struct {
	store    CredentialStore
	profiles ProfileFetcher
	log      zerolog.Logger

	mu      sync.Mutex
	gen     uint64
	state   State
	session *auth.Session
}

// NewProvider creates a provider in the Loading state
func NewProvider(store CredentialStore, profiles ProfileFetcher, log zerolog.Logger) *Provider {
	return &Provider{
		store:    store,
		profiles: profiles,
		log:      log,
		state:    StateLoading,
	}
}

// Current returns the provider state; Session is a copy
func (p *Provider) Current() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Provider) snapshotLocked() Snapshot {
	snap := Snapshot{State: p.state}
	if p.session != nil {
		s := *p.session
		snap.Session = &s
	}
	return snap
}

// Resolve starts resolving the stored credential. The provider reports Loading
// until the returned resolution settles. Cancelling the resolution (or ctx)
// leaves the provider untouched.
func (p *Provider) Resolve(ctx context.Context) *Resolution {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.state = StateLoading
	p.session = nil
	p.mu.Unlock()

	res := newResolution(cancel)
	go func() {
		defer cancel()
		snap, err := p.resolve(ctx, gen)
		res.finish(snap, err)
	}()
	return res
}

func (p *Provider) resolve(ctx context.Context, gen uint64) (Snapshot, error) {
	token, err := p.store.Load(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Snapshot{State: StateLoading}, ctxErr
	}
	if err != nil {
		if errors.Is(err, auth.ErrNoCredential) {
			return p.settle(ctx, gen, nil, false)
		}
		p.log.Debug().Err(err).Msg("Stored credential rejected")
		return p.settle(ctx, gen, nil, errors.Is(err, auth.ErrCredentialInvalid))
	}

	session, err := p.profiles.FetchProfile(ctx, token)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Snapshot{State: StateLoading}, ctxErr
	}
	if err != nil {
		invalid := errors.Is(err, auth.ErrCredentialInvalid)
		if invalid {
			p.log.Info().Err(err).Msg("Backend rejected credential")
		} else {
			p.log.Warn().Err(err).Msg("Profile fetch failed, treating as signed out")
		}
		return p.settle(ctx, gen, nil, invalid)
	}
	if session == nil || session.UserID == "" || !session.Role.Valid() {
		p.log.Warn().Msg("Backend returned an unusable profile, treating as signed out")
		return p.settle(ctx, gen, nil, false)
	}
	return p.settle(ctx, gen, session, false)
}

// settle applies the outcome when gen is still current. clear removes the stored
// credential in the same critical section so a concurrent SetSession is not wiped.
func (p *Provider) settle(ctx context.Context, gen uint64, session *auth.Session, clear bool) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen {
		return Snapshot{}, ErrSuperseded
	}

	if session == nil {
		p.state = StateUnauthenticated
		p.session = nil
		if clear {
			if err := p.store.Delete(ctx); err != nil {
				p.log.Warn().Err(err).Msg("Failed to clear rejected credential")
			}
		}
		return p.snapshotLocked(), nil
	}

	s := *session
	p.state = StateAuthenticated
	p.session = &s
	return p.snapshotLocked(), nil
}

// SetSession installs a session after an explicit login and persists token. No
// profile fetch happens.
func (p *Provider) SetSession(ctx context.Context, token string, session auth.Session) error {
	if token == "" {
		return errors.New("empty token")
	}
	if !session.Role.Valid() {
		return fmt.Errorf("invalid role %q", session.Role)
	}
	if err := p.store.Save(ctx, token, session); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	p.mu.Lock()
	p.gen++
	p.state = StateAuthenticated
	p.session = &session
	p.mu.Unlock()

	p.log.Debug().Str("user_id", session.UserID).Msg("Session installed")
	return nil
}

// MarkVerified flips the verified flag of the in-memory session after an OTP
// confirmation
func (p *Provider) MarkVerified() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		p.session.Verified = true
	}
}

// ClearSession forgets the session and removes the stored credential
func (p *Provider) ClearSession(ctx context.Context) error {
	p.mu.Lock()
	p.gen++
	p.state = StateUnauthenticated
	p.session = nil
	p.mu.Unlock()

	if err := p.store.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// Credential returns the stored backend token, for calls made on behalf of the user
func (p *Provider) Credential(ctx context.Context) (string, error) {
	return p.store.Load(ctx)
}
