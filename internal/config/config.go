package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the CLI and the local API
type Config struct {
	// Local session API
	Server ServerConfig

	// Transition history
	History HistoryConfig

	// Identity provider behaviour
	Identity IdentityConfig

	// Logging Configuration
	Logging LoggingConfig
}

// ServerConfig holds the local session API configuration
type ServerConfig struct {
	ListenAddr  string   `validate:"required,hostname_port"`
	CORSOrigins []string `validate:"dive,url"`
}

// HistoryConfig holds transition history configuration
type HistoryConfig struct {
	Path string // empty disables history (SNACKER_HISTORY_DB=off)
}

// IdentityConfig holds refresh and watch settings
type IdentityConfig struct {
	RefreshMargin   time.Duration `validate:"gte=0"`
	RefreshSchedule string
	WatchSchedule   string
	HTTPTimeout     time.Duration `validate:"gt=0"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `validate:"oneof=debug info warn warning error fatal panic"`
	Format string `validate:"oneof=json console"` // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	refreshMargin, err := durationEnv("SNACKER_REFRESH_MARGIN", time.Minute)
	if err != nil {
		return nil, err
	}

	httpTimeout, err := durationEnv("SNACKER_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	historyPath, err := defaultHistoryPath()
	if err != nil {
		return nil, err
	}
	switch v := os.Getenv("SNACKER_HISTORY_DB"); v {
	case "":
	case "off":
		historyPath = ""
	default:
		historyPath = v
	}

	cfg := &Config{
		Server: ServerConfig{
			ListenAddr:  stringEnv("SNACKER_LISTEN_ADDR", "127.0.0.1:7420"),
			CORSOrigins: listEnv("SNACKER_CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
		History: HistoryConfig{
			Path: historyPath,
		},
		Identity: IdentityConfig{
			RefreshMargin:   refreshMargin,
			RefreshSchedule: stringEnv("SNACKER_REFRESH_SCHEDULE", "@every 30s"),
			WatchSchedule:   stringEnv("SNACKER_WATCH_SCHEDULE", "@every 5s"),
			HTTPTimeout:     httpTimeout,
		},
		Logging: LoggingConfig{
			// Defaults suitable for an interactive CLI
			Level:  strings.ToLower(stringEnv("LOG_LEVEL", "warn")),
			Format: strings.ToLower(stringEnv("LOG_FORMAT", "console")),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func listEnv(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// defaultHistoryPath places the history database next to the user config
func defaultHistoryPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "snacker", "history.sqlite"), nil
}
