package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleksTheDev/snacker/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the snacker command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "snacker",
		Short: "Snacker - keep an auth session in sync from the command line",
		Long: `Snacker CLI - sign in to an identity project and follow its session.

Snacker restores the stored session, refreshes it before it expires and
keeps every consumer (whoami, watch, the local API) on the latest value.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("project", "", "Project alias from snacker.yaml (defaults to the selected project)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "snacker version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewSelectProjectCmd())
	rootCmd.AddCommand(commands.NewLoginCmd())
	rootCmd.AddCommand(commands.NewLogoutCmd())
	rootCmd.AddCommand(commands.NewWhoamiCmd())
	rootCmd.AddCommand(commands.NewWatchCmd())
	rootCmd.AddCommand(commands.NewServeCmd(version))

	return rootCmd
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
