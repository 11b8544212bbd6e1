package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/schedadmin/schedadmin/internal/backend"
	"github.com/schedadmin/schedadmin/internal/cli/auth"
	"github.com/schedadmin/schedadmin/internal/cli/userconfig"
	"github.com/schedadmin/schedadmin/internal/identity"
	"github.com/schedadmin/schedadmin/internal/logger"
)

const (
	envBackendURL = "SCHEDADMIN_BACKEND_URL"
	envEmail      = "SCHEDADMIN_EMAIL"
	envPassword   = "SCHEDADMIN_PASSWORD"

	requestTimeout = 15 * time.Second
)

// Options holds the flags shared by every command
type Options struct {
	Backend string
	Verbose bool
}

// interactive reports whether prompts can be shown
var interactive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// resolveBackendURL picks the backend from the flag, the environment or the user config
func resolveBackendURL(opts *Options) (string, error) {
	if opts.Backend != "" {
		return strings.TrimRight(opts.Backend, "/"), nil
	}
	if v := os.Getenv(envBackendURL); v != "" {
		return strings.TrimRight(v, "/"), nil
	}

	cfg, err := userconfig.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load user config: %w", err)
	}
	if cfg.BackendURL == "" {
		return "", fmt.Errorf("backend URL is not set. Run 'schedadmin use <url>' or pass --backend")
	}
	return cfg.BackendURL, nil
}

// cliSession is what a command needs to act for the signed-in user
type cliSession struct {
	backendURL string
	client     *backend.Client
	provider   *identity.Provider
}

func newSession(opts *Options) (*cliSession, error) {
	backendURL, err := resolveBackendURL(opts)
	if err != nil {
		return nil, err
	}

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	log := logger.New(os.Stderr, level, "console")

	client := backend.New(backendURL, requestTimeout)
	return &cliSession{
		backendURL: backendURL,
		client:     client,
		provider:   identity.NewProvider(auth.NewKeyring(backendURL), client, log),
	}, nil
}

// resolve loads the stored token and fetches the profile behind it
func (s *cliSession) resolve(ctx context.Context) (identity.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	return s.provider.Resolve(ctx).Wait(ctx)
}

// signedIn resolves the session and fails when there is none
func (s *cliSession) signedIn(ctx context.Context) (identity.Snapshot, error) {
	snap, err := s.resolve(ctx)
	if err != nil {
		return snap, fmt.Errorf("failed to resolve session: %w", err)
	}
	if snap.State != identity.StateAuthenticated || snap.Session == nil {
		return snap, fmt.Errorf("not signed in to %s. Please run 'schedadmin login' first", s.backendURL)
	}
	return snap, nil
}
