package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AleksTheDev/snacker/internal/cli/config"
	"github.com/AleksTheDev/snacker/internal/cli/projectselect"
	"github.com/AleksTheDev/snacker/internal/cli/userconfig"
)

// NewSelectProjectCmd creates the select-project command
func NewSelectProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select-project [url-or-alias]",
		Short: "Select the project to use for commands",
		Long: `Select the project to use for commands.

If no param is provided, an interactive prompt will be shown.

Examples:
  $ snacker select-project                           # Interactive selection
  $ snacker select-project https://abcd.supabase.co  # Select by URL
  $ snacker select-project production                # Select by alias`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var urlOrAlias string
			if len(args) > 0 {
				urlOrAlias = args[0]
			}
			return runSelectProject(cmd.OutOrStdout(), urlOrAlias)
		},
	}

	return cmd
}

func runSelectProject(out io.Writer, urlOrAlias string) error {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var project *config.Project
	if urlOrAlias != "" {
		project, err = cfg.GetProjectByURLOrAlias(urlOrAlias)
	} else {
		project, err = projectselect.Prompt(cfg)
	}
	if err != nil {
		return err
	}

	if err := userconfig.SelectProject(project); err != nil {
		return fmt.Errorf("failed to save selected project: %w", err)
	}

	fmt.Fprintf(out, "Selected project: %s (%s)\n", project.Alias, project.URL)
	return nil
}
