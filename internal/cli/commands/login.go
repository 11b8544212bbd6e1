package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/schedadmin/schedadmin/internal/auth"
	"github.com/schedadmin/schedadmin/internal/backend"
	"github.com/schedadmin/schedadmin/internal/cli/userconfig"
)

var validate = validator.New()

// NewLoginCmd creates the login command
func NewLoginCmd(opts *Options) *cobra.Command {
	var email, password, code string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the scheduling backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), cmd.OutOrStdout(), opts, email, password, code)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set SCHEDADMIN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set SCHEDADMIN_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&code, "code", "", "Verification code, for accounts that are not verified yet")

	return cmd
}

func runLogin(ctx context.Context, out io.Writer, opts *Options, email, password, code string) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv(envEmail)
	}
	if password == "" {
		password = os.Getenv(envPassword)
	}

	s, err := newSession(opts)
	if err != nil {
		return err
	}

	if email == "" {
		email, err = promptEmail()
		if err != nil {
			return err
		}
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%q is not a valid email address", email)
	}

	if password == "" {
		password, err = readPassword(out)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Signing in to %s...\n", s.backendURL)

	res, err := s.client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %s", backend.Message(err, err.Error()))
	}
	session, err := res.User.Session()
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := s.provider.SetSession(ctx, res.Token, *session); err != nil {
		return fmt.Errorf("failed to save authentication token: %w", err)
	}
	if err := userconfig.SetEmail(email); err != nil {
		fmt.Fprintf(out, "Warning: failed to remember email: %v\n", err)
	}

	fmt.Fprintln(out, "✓ Login successful!")
	fmt.Fprintf(out, "  User: %s (%s)\n", session.Name, session.Email)
	fmt.Fprintf(out, "  Role: %s\n", session.Role)

	if session.Verified {
		return nil
	}

	if code == "" && interactive() {
		code, err = promptCode()
		if err != nil {
			return err
		}
	}
	if code == "" {
		fmt.Fprintln(out, "\nThis account is not verified yet. Check your email and run:")
		fmt.Fprintln(out, "  schedadmin verify --code <code>")
		return nil
	}
	return verifyCode(ctx, out, s, res.Token, code)
}

func promptEmail() (string, error) {
	if !interactive() {
		return "", fmt.Errorf("email is required (use --email flag or %s env var)", envEmail)
	}

	def := ""
	if cfg, err := userconfig.Load(); err == nil {
		def = cfg.Email
	}
	prompt := promptui.Prompt{
		Label:   "Email",
		Default: def,
		Validate: func(input string) error {
			if validate.Var(input, "required,email") != nil {
				return errors.New("enter a valid email address")
			}
			return nil
		},
	}
	email, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("login cancelled: %w", err)
	}
	return email, nil
}

func readPassword(out io.Writer) (string, error) {
	if !interactive() {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or %s env var)", envPassword)
	}
	fmt.Fprint(out, "Password: ")
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

func promptCode() (string, error) {
	prompt := promptui.Prompt{
		Label: "Verification code",
		Validate: func(input string) error {
			return checkCode(input)
		},
	}
	code, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("verification cancelled: %w", err)
	}
	return code, nil
}

func checkCode(code string) error {
	if validate.Var(code, "len=6,numeric") != nil {
		return errors.New("the code is the 6 digits from the email")
	}
	return nil
}

// verifyCode submits code and reports the outcome
func verifyCode(ctx context.Context, out io.Writer, s *cliSession, token, code string) error {
	if err := checkCode(code); err != nil {
		return err
	}
	msg, err := s.client.VerifyOTP(ctx, token, code)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialInvalid) {
			_ = s.provider.ClearSession(ctx)
			return fmt.Errorf("session expired. Please run 'schedadmin login' again")
		}
		return fmt.Errorf("verification failed: %s", backend.Message(err, err.Error()))
	}
	s.provider.MarkVerified()

	if msg == "" {
		msg = "Account verified"
	}
	fmt.Fprintf(out, "✓ %s\n", msg)
	return nil
}
