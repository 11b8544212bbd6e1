package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/schedadmin/schedadmin/internal/auth"
	"github.com/schedadmin/schedadmin/internal/routes"
)

// NewRoutesCmd creates the routes command
func NewRoutesCmd(opts *Options) *cobra.Command {
	var role string
	var all bool

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the pages a role can navigate to",
		Long: `List the pages a role can navigate to.

Without --role the role of the signed-in user is used. When nobody is signed
in, an interactive prompt will be shown.

Examples:
  $ schedadmin routes
  $ schedadmin routes --role "Program Head"
  $ schedadmin routes --all             # Every route with its policy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutes(cmd.Context(), cmd.OutOrStdout(), opts, role, all)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Role to list routes for")
	cmd.Flags().BoolVar(&all, "all", false, "List every route with its access policy")

	return cmd
}

func runRoutes(ctx context.Context, out io.Writer, opts *Options, roleName string, all bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if all {
		fmt.Fprintln(w, "PATH\tTITLE\tACCESS")
		fmt.Fprintln(w, "────\t─────\t──────")
		for _, r := range routes.All() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Path(), r.Title(), r.Policy().Describe())
		}
		return w.Flush()
	}

	role, err := routesRole(ctx, opts, roleName)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Pages for %s:\n\n", role)
	fmt.Fprintln(w, "PATH\tTITLE")
	fmt.Fprintln(w, "────\t─────")
	for _, r := range routes.Visible(role) {
		fmt.Fprintf(w, "%s\t%s\n", r.Path(), r.Title())
	}
	return w.Flush()
}

// routesRole picks the role from the flag, the stored session or a prompt
func routesRole(ctx context.Context, opts *Options, roleName string) (auth.Role, error) {
	if roleName != "" {
		return auth.ParseRole(roleName)
	}

	if s, err := newSession(opts); err == nil {
		if snap, err := s.signedIn(ctx); err == nil {
			return snap.Session.Role, nil
		}
	}

	if !interactive() {
		return "", fmt.Errorf("not signed in; pass --role")
	}
	return promptRole()
}

// promptRole shows an interactive prompt for the user to select a role
func promptRole() (auth.Role, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ . | cyan }}",
		Inactive: "  {{ . }}",
		Selected: "{{ . | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select a role",
		Items:     auth.Roles,
		Templates: templates,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("role selection cancelled: %w", err)
	}
	return auth.Roles[index], nil
}
