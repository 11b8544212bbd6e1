package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schedadmin/schedadmin/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &commands.Options{}

	rootCmd := &cobra.Command{
		Use:   "schedadmin",
		Short: "schedadmin - academic scheduling administration",
		Long: `schedadmin CLI - Sign in to the scheduling backend and inspect access.

The CLI shares the role policy of the web front end, so 'schedadmin check'
shows exactly which pages the stored session may open.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "Backend URL (or set SCHEDADMIN_BACKEND_URL)")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log session resolution details")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "schedadmin version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewUseCmd())
	rootCmd.AddCommand(commands.NewLoginCmd(opts))
	rootCmd.AddCommand(commands.NewVerifyCmd(opts))
	rootCmd.AddCommand(commands.NewLogoutCmd(opts))
	rootCmd.AddCommand(commands.NewWhoamiCmd(opts))
	rootCmd.AddCommand(commands.NewRoutesCmd(opts))
	rootCmd.AddCommand(commands.NewCheckCmd(opts))
	rootCmd.AddCommand(commands.NewDashCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
