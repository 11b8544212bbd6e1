package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
}

func runWhoami(ctx context.Context, out io.Writer, opts *Options) error {
	s, err := newSession(opts)
	if err != nil {
		return err
	}

	snap, err := s.signedIn(ctx)
	if err != nil {
		return err
	}

	session := snap.Session
	fmt.Fprintf(out, "User:       %s (%s)\n", session.Name, session.Email)
	fmt.Fprintf(out, "Role:       %s\n", session.Role)
	if session.DepartmentID != "" {
		fmt.Fprintf(out, "Department: %s\n", session.DepartmentID)
	}
	verified := "no (run 'schedadmin verify')"
	if session.Verified {
		verified = "yes"
	}
	fmt.Fprintf(out, "Verified:   %s\n", verified)
	fmt.Fprintf(out, "Backend:    %s\n", s.backendURL)
	return nil
}
