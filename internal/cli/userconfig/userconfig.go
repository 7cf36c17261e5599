package userconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/AleksTheDev/snacker/internal/cli/config"
)

const (
	configDirName  = "snacker"
	configFileName = "config.json"
)

// Selection is the project from snacker.yaml the CLI uses when no --project
// flag is given. The URL decides which stored credentials apply; the alias
// lets the selection survive an edited URL.
type Selection struct {
	Alias      string    `json:"alias"`
	URL        string    `json:"url"`
	SelectedAt time.Time `json:"selected_at"`
}

// Resolve finds the selected project in cfg, by URL first and then by
// alias. The second result reports whether the match came from the alias,
// meaning the stored URL is out of date.
func (s *Selection) Resolve(cfg *config.Config) (*config.Project, bool, error) {
	if project, err := cfg.GetProjectByURL(s.URL); err == nil {
		return project, false, nil
	}
	if s.Alias == "" {
		return nil, false, fmt.Errorf("selected project %s is no longer in %s", s.URL, config.ConfigFileName)
	}
	project, err := cfg.GetProjectByAlias(s.Alias)
	if err != nil {
		return nil, false, fmt.Errorf("selected project %q is no longer in %s", s.Alias, config.ConfigFileName)
	}
	return project, true, nil
}

// UserConfig is stored in ~/.config/snacker/config.json
type UserConfig struct {
	Selection *Selection `json:"selection,omitempty"`
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", configDirName, configFileName), nil
}

// Load reads the user config; a missing file is an empty config
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &UserConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes cfg readable by the owner only
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// SelectProject remembers project as the default for later commands
func SelectProject(project *config.Project) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	cfg.Selection = &Selection{
		Alias:      project.Alias,
		URL:        project.URL,
		SelectedAt: time.Now().UTC(),
	}
	return Save(cfg)
}

// ClearSelection forgets the selected project
func ClearSelection() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	if cfg.Selection == nil {
		return nil
	}

	cfg.Selection = nil
	return Save(cfg)
}

// SelectedProject returns the current selection, or nil when none was made
func SelectedProject() (*Selection, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	return cfg.Selection, nil
}
