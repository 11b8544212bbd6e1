package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/schedadmin/schedadmin/internal/guard"
)

// NewCheckCmd creates the check command
func NewCheckCmd(opts *Options) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check <path>...",
		Short: "Show what the web front end would do for each path",
		Long: `Run the route guard against each path for the stored session.

Examples:
  $ schedadmin check /accountlist
  $ schedadmin check /roomlist /AccountList/ /assignation
  $ schedadmin check --strict /assignation   # Fail unless authorized`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), opts, args, strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error when any path is not authorized")

	return cmd
}

func runCheck(ctx context.Context, out io.Writer, opts *Options, paths []string, strict bool) error {
	s, err := newSession(opts)
	if err != nil {
		return err
	}

	snap, err := s.resolve(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve session: %w", err)
	}

	if snap.Session != nil {
		fmt.Fprintf(out, "Session: %s (%s)\n\n", snap.Session.Email, snap.Session.Role)
	} else {
		fmt.Fprintf(out, "Session: none\n\n")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tROUTE\tOUTCOME\tREDIRECT")
	fmt.Fprintln(w, "────\t─────\t───────\t────────")

	denied := 0
	for _, path := range paths {
		d := guard.EvaluatePath(snap, path)
		route := "-"
		if d.Known {
			route = d.Route.Path()
		}
		redirect := d.Redirect
		if redirect == "" {
			redirect = "-"
		}
		if d.State != guard.Authorized {
			denied++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", path, route, d.State, redirect)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if strict && denied > 0 {
		return fmt.Errorf("%d of %d paths are not authorized", denied, len(paths))
	}
	return nil
}
