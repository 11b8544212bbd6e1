package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/schedadmin/schedadmin/internal/cli/userconfig"
)

// NewUseCmd creates the use command
func NewUseCmd() *cobra.Command {
	var webURL string

	cmd := &cobra.Command{
		Use:   "use <backend-url>",
		Short: "Select the scheduling backend to use for commands",
		Long: `Select the scheduling backend to use for commands.

Examples:
  $ schedadmin use https://api.example.edu
  $ schedadmin use https://api.example.edu --web https://admin.example.edu`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUse(cmd.OutOrStdout(), args[0], webURL)
		},
	}

	cmd.Flags().StringVar(&webURL, "web", "", "Address of the web front end, for 'schedadmin dash'")

	return cmd
}

func runUse(out io.Writer, backendURL, webURL string) error {
	if err := validate.Var(backendURL, "required,url"); err != nil {
		return fmt.Errorf("%q is not a valid URL", backendURL)
	}
	if webURL != "" {
		if err := validate.Var(webURL, "url"); err != nil {
			return fmt.Errorf("%q is not a valid URL", webURL)
		}
	}

	if err := userconfig.SetBackendURL(backendURL); err != nil {
		return fmt.Errorf("failed to save backend: %w", err)
	}
	if webURL != "" {
		if err := userconfig.SetWebURL(webURL); err != nil {
			return fmt.Errorf("failed to save web address: %w", err)
		}
	}

	fmt.Fprintf(out, "Selected backend: %s\n", backendURL)
	return nil
}
