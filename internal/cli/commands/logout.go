package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of the selected project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context(), cmd.OutOrStdout(), projectFlag(cmd))
		},
	}
}

func runLogout(ctx context.Context, out io.Writer, alias string) error {
	pc, err := openProject(alias)
	if err != nil {
		return err
	}
	defer pc.provider.Close()

	if err := pc.provider.SignOut(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	fmt.Fprintf(out, "✓ Signed out of %s\n", pc.project.Alias)
	return nil
}
