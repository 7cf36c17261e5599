package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleksTheDev/snacker/internal/cli/config"
)

type initOptions struct {
	anonKey string
	alias   string
}

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init <project-url>",
		Short: "Add a project to snacker.yaml",
		Long: `Add a project to snacker.yaml in the current directory, creating the
file if needed. Running init again for a known URL updates its anon key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitWithOptions(cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.anonKey, "anon-key", "", "Project anon key (or set SNACKER_ANON_KEY)")
	cmd.Flags().StringVar(&opts.alias, "alias", "", "Alias for the project (default project-N)")

	return cmd
}

func runInitWithOptions(out io.Writer, args []string, opts *initOptions) error {
	projectURL := args[0]

	anonKey := opts.anonKey
	if anonKey == "" {
		anonKey = os.Getenv("SNACKER_ANON_KEY")
	}
	if anonKey == "" {
		return fmt.Errorf("anon key is required (use --anon-key flag or SNACKER_ANON_KEY env var)")
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
	} else {
		cfg = &config.Config{Projects: []config.Project{}}
		isNewConfig = true
	}

	if existing, err := cfg.GetProjectByURL(projectURL); err == nil {
		if existing.AnonKey == anonKey {
			fmt.Fprintf(out, "Project %s (%s) already exists in %s\n", existing.Alias, existing.URL, config.ConfigFileName)
			return nil
		}

		existing.AnonKey = anonKey
		if err := config.Save(configPath, cfg); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Updated anon key for %s (%s)\n", existing.Alias, existing.URL)
		return nil
	}

	alias := opts.alias
	if alias == "" {
		alias = fmt.Sprintf("project-%d", len(cfg.Projects)+1)
	}

	cfg.Projects = append(cfg.Projects, config.Project{
		Alias:   alias,
		URL:     projectURL,
		AnonKey: anonKey,
	})

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if isNewConfig {
		fmt.Fprintf(out, "✓ Created ./%s with project %s (%s)\n", config.ConfigFileName, projectURL, alias)
	} else {
		fmt.Fprintf(out, "✓ Added project %s (%s) to ./%s\n", projectURL, alias, config.ConfigFileName)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Run 'snacker login --email <email>' to sign in")
	fmt.Fprintln(out, "  2. Run 'snacker whoami' to check the session")

	return nil
}
