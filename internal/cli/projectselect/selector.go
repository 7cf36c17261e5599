package projectselect

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/rs/zerolog/log"

	"github.com/AleksTheDev/snacker/internal/cli/config"
	"github.com/AleksTheDev/snacker/internal/cli/userconfig"
)

// Prompt asks the user to pick a project. Tests replace it.
var Prompt = PromptProjectSelection

// ResolveProject determines which project to use based on the following priority:
// 1. If the alias flag is provided, use that project
// 2. If user has a selected project in their local config, use that (by URL,
// falling back to its alias)
// 3. If only one project in project config, use that
// 4. Otherwise, prompt user to select a project interactively
func ResolveProject(projectConfig *config.Config, alias string) (*config.Project, error) {
	if alias != "" {
		return projectConfig.GetProjectByAlias(alias)
	}

	selection, err := userconfig.SelectedProject()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	if selection != nil {
		project, moved, err := selection.Resolve(projectConfig)
		if err == nil {
			if moved {
				log.Debug().Str("project", project.Alias).Str("url", project.URL).Msg("Selected project URL changed, updating selection")
				remember(project)
			}
			return project, nil
		}
		log.Debug().Err(err).Msg("Dropping stale project selection")
		_ = userconfig.ClearSelection()
	}

	if len(projectConfig.Projects) == 1 {
		project := &projectConfig.Projects[0]
		remember(project)
		return project, nil
	}

	project, err := Prompt(projectConfig)
	if err != nil {
		return nil, err
	}
	remember(project)
	return project, nil
}

// remember saves the selection; failing to save never fails the command
func remember(project *config.Project) {
	if err := userconfig.SelectProject(project); err != nil {
		log.Warn().Err(err).Str("project", project.Alias).Msg("Failed to save selected project")
	}
}

// PromptProjectSelection shows an interactive prompt for the user to select a project
func PromptProjectSelection(projectConfig *config.Config) (*config.Project, error) {
	if len(projectConfig.Projects) == 0 {
		return nil, fmt.Errorf("no projects configured in %s", config.ConfigFileName)
	}

	type projectOption struct {
		Label   string
		Project *config.Project
	}

	options := make([]projectOption, len(projectConfig.Projects))
	for i := range projectConfig.Projects {
		project := &projectConfig.Projects[i]
		options[i] = projectOption{
			Label:   fmt.Sprintf("%s (%s)", project.Alias, project.URL),
			Project: project,
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select a project",
		Items:     options,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("project selection cancelled: %w", err)
	}

	return options[index].Project, nil
}
