package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const ConfigFileName = "snacker.yaml"

// ErrConfigNotFound is returned when no snacker.yaml exists in the working
// directory or any parent
var ErrConfigNotFound = errors.New("snacker.yaml not found")

// Project is one identity project the CLI can sign in to
type Project struct {
	Alias   string `yaml:"alias" validate:"required"`
	URL     string `yaml:"url" validate:"required,http_url"`
	AnonKey string `yaml:"anon_key" validate:"required"`
}

// Ref identifies the project in the credential store. Hosted projects use
// their subdomain, anything else the host and port.
func (p *Project) Ref() string {
	u, err := url.Parse(p.URL)
	if err != nil || u.Host == "" {
		return p.URL
	}

	host := u.Hostname()
	if strings.HasSuffix(host, ".supabase.co") {
		return strings.TrimSuffix(host, ".supabase.co")
	}
	return u.Host
}

// Config represents the project configuration file
type Config struct {
	Projects []Project `yaml:"projects" validate:"dive"`
}

// Validate checks required fields and rejects duplicate aliases or URLs
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid %s: %w", ConfigFileName, err)
	}

	aliases := make(map[string]bool, len(c.Projects))
	urls := make(map[string]bool, len(c.Projects))
	for _, p := range c.Projects {
		if aliases[p.Alias] {
			return fmt.Errorf("invalid %s: duplicate alias '%s'", ConfigFileName, p.Alias)
		}
		if urls[p.URL] {
			return fmt.Errorf("invalid %s: duplicate url '%s'", ConfigFileName, p.URL)
		}
		aliases[p.Alias] = true
		urls[p.URL] = true
	}
	return nil
}

// FindConfigFile searches for snacker.yaml in current directory and parent directories
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := currentDir
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%w in %s or any parent directory", ErrConfigNotFound, currentDir)
}

// Load reads and validates the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromCurrentDir loads config from current directory or parent directories
func LoadFromCurrentDir() (*Config, error) {
	configPath, err := FindConfigFile()
	if err != nil {
		return nil, err
	}

	return Load(configPath)
}

// Save validates cfg and writes it to path
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetProjectByAlias returns a project by its alias
func (c *Config) GetProjectByAlias(alias string) (*Project, error) {
	for i := range c.Projects {
		if c.Projects[i].Alias == alias {
			return &c.Projects[i], nil
		}
	}
	return nil, fmt.Errorf("project with alias '%s' not found", alias)
}

// GetProjectByURL returns a project by its URL, ignoring a trailing slash
func (c *Config) GetProjectByURL(rawURL string) (*Project, error) {
	want := strings.TrimSuffix(rawURL, "/")
	for i := range c.Projects {
		if strings.TrimSuffix(c.Projects[i].URL, "/") == want {
			return &c.Projects[i], nil
		}
	}
	return nil, fmt.Errorf("project with URL '%s' not found", rawURL)
}

// GetProjectByURLOrAlias finds a project by URL first, then by alias
func (c *Config) GetProjectByURLOrAlias(urlOrAlias string) (*Project, error) {
	if p, err := c.GetProjectByURL(urlOrAlias); err == nil {
		return p, nil
	}
	if p, err := c.GetProjectByAlias(urlOrAlias); err == nil {
		return p, nil
	}
	return nil, fmt.Errorf("project with URL or alias '%s' not found", urlOrAlias)
}

// GetDefaultProject returns the first project in the list
func (c *Config) GetDefaultProject() (*Project, error) {
	if len(c.Projects) == 0 {
		return nil, fmt.Errorf("no projects configured in %s", ConfigFileName)
	}
	return &c.Projects[0], nil
}
