package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/schedadmin/schedadmin/internal/auth"
	"github.com/schedadmin/schedadmin/internal/backend"
)

// NewVerifyCmd creates the verify command
func NewVerifyCmd(opts *Options) *cobra.Command {
	var code string
	var resend bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the signed-in account with the emailed code",
		Long: `Verify the signed-in account with the 6-digit code sent by email.

Examples:
  $ schedadmin verify --code 123456
  $ schedadmin verify --resend        # Send a new code`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), cmd.OutOrStdout(), opts, code, resend)
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Verification code (will prompt if not provided)")
	cmd.Flags().BoolVar(&resend, "resend", false, "Send a new code instead of verifying")

	return cmd
}

func runVerify(ctx context.Context, out io.Writer, opts *Options, code string, resend bool) error {
	s, err := newSession(opts)
	if err != nil {
		return err
	}

	snap, err := s.signedIn(ctx)
	if err != nil {
		return err
	}
	if snap.Session.Verified {
		fmt.Fprintf(out, "%s is already verified.\n", snap.Session.Email)
		return nil
	}

	token, err := s.provider.Credential(ctx)
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}

	if resend {
		msg, err := s.client.ResendOTP(ctx, token)
		if err != nil {
			if errors.Is(err, auth.ErrCredentialInvalid) {
				_ = s.provider.ClearSession(ctx)
				return fmt.Errorf("session expired. Please run 'schedadmin login' again")
			}
			return fmt.Errorf("failed to resend code: %s", backend.Message(err, err.Error()))
		}
		if msg == "" {
			msg = "A new code is on its way"
		}
		fmt.Fprintf(out, "✓ %s\n", msg)
		return nil
	}

	if code == "" {
		if !interactive() {
			return fmt.Errorf("code is required in non-interactive mode (use --code flag)")
		}
		if code, err = promptCode(); err != nil {
			return err
		}
	}
	return verifyCode(ctx, out, s, token, code)
}
