package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/schedadmin/schedadmin/internal/auth"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
}

func runLogout(ctx context.Context, out io.Writer, opts *Options) error {
	s, err := newSession(opts)
	if err != nil {
		return err
	}

	token, err := s.provider.Credential(ctx)
	if errors.Is(err, auth.ErrNoCredential) {
		fmt.Fprintln(out, "Not signed in.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}

	// the local token goes away even when the backend cannot be reached
	if err := s.client.Logout(ctx, token); err != nil && !errors.Is(err, auth.ErrCredentialInvalid) {
		fmt.Fprintf(out, "Warning: backend logout failed: %v\n", err)
	}
	if err := s.provider.ClearSession(ctx); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	fmt.Fprintf(out, "✓ Signed out of %s\n", s.backendURL)
	return nil
}
