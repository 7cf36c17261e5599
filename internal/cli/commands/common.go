package commands

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/AleksTheDev/snacker/internal/cli/auth"
	"github.com/AleksTheDev/snacker/internal/cli/config"
	"github.com/AleksTheDev/snacker/internal/cli/projectselect"
	appconfig "github.com/AleksTheDev/snacker/internal/config"
	"github.com/AleksTheDev/snacker/internal/identity"
	"github.com/AleksTheDev/snacker/internal/logger"
)

// credentialStore is where sessions are persisted between runs
var credentialStore identity.CredentialStore = auth.Default

// projectContext is everything a command needs to talk to one project
type projectContext struct {
	project  *config.Project
	settings *appconfig.Config
	logger   zerolog.Logger
	provider *identity.Provider
}

// projectFlag returns the --project flag inherited from the root command
func projectFlag(cmd *cobra.Command) string {
	if f := cmd.Flag("project"); f != nil {
		return f.Value.String()
	}
	return ""
}

// getSelectedProject loads snacker.yaml and resolves which project to use
func getSelectedProject(alias string) (*config.Project, error) {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, fmt.Errorf("%w\nRun 'snacker init <url> --anon-key <key>' to create one", err)
		}
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return projectselect.ResolveProject(cfg, alias)
}

// openProject loads settings, initializes logging and builds the identity
// provider for the selected project. Callers close the provider.
func openProject(alias string) (*projectContext, error) {
	settings, err := appconfig.Load()
	if err != nil {
		return nil, err
	}

	logger.Init(settings.Logging.Level, settings.Logging.Format)
	log := logger.GetLogger()

	project, err := getSelectedProject(alias)
	if err != nil {
		return nil, err
	}

	client := identity.NewClient(project.URL, project.AnonKey, settings.Identity.HTTPTimeout)
	provider := identity.NewProvider(client, credentialStore, project.Ref(), settings.Identity.RefreshMargin, log)

	log.Debug().
		Str("project", project.Alias).
		Str("project_ref", project.Ref()).
		Msg("Project resolved")

	return &projectContext{
		project:  project,
		settings: settings,
		logger:   log,
		provider: provider,
	}, nil
}
