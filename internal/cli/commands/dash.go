package commands

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/schedadmin/schedadmin/internal/cli/userconfig"
	"github.com/schedadmin/schedadmin/internal/routes"
)

// NewDashCmd creates the dash command
func NewDashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dash [path]",
		Short: "Open the web front end in browser",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := routes.Dashboard.Path()
			if len(args) > 0 {
				path = routes.Normalize(args[0])
			}
			return runDash(cmd.OutOrStdout(), path)
		},
	}
}

func runDash(out io.Writer, path string) error {
	cfg, err := userconfig.Load()
	if err != nil {
		return fmt.Errorf("failed to load user config: %w", err)
	}
	if cfg.WebURL == "" {
		return fmt.Errorf("web address is not set. Run 'schedadmin use <backend-url> --web <url>'")
	}

	pageURL := cfg.WebURL + path
	fmt.Fprintf(out, "Opening %s\n", pageURL)

	if err := openBrowser(pageURL); err != nil {
		return fmt.Errorf("failed to open browser: %w\nPlease visit: %s", err, pageURL)
	}
	return nil
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
