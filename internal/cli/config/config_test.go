package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_ParsesProjects(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `projects:
  - alias: production
    url: https://abcd.supabase.co
    anon_key: anon-prod
  - alias: local
    url: http://localhost:54321
    anon_key: anon-local
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(cfg.Projects))
	}
	if cfg.Projects[0].AnonKey != "anon-prod" {
		t.Errorf("anon key = %q, want %q", cfg.Projects[0].AnonKey, "anon-prod")
	}
	if cfg.Projects[1].URL != "http://localhost:54321" {
		t.Errorf("url = %q, want %q", cfg.Projects[1].URL, "http://localhost:54321")
	}
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		errorContains string
	}{
		{
			name:          "missing anon key",
			content:       "projects:\n  - alias: a\n    url: https://a.supabase.co\n",
			errorContains: "AnonKey",
		},
		{
			name:          "not a url",
			content:       "projects:\n  - alias: a\n    url: somewhere\n    anon_key: k\n",
			errorContains: "URL",
		},
		{
			name:          "duplicate alias",
			content:       "projects:\n  - alias: a\n    url: https://a.supabase.co\n    anon_key: k\n  - alias: a\n    url: https://b.supabase.co\n    anon_key: k\n",
			errorContains: "duplicate alias",
		},
		{
			name:          "duplicate url",
			content:       "projects:\n  - alias: a\n    url: https://a.supabase.co\n    anon_key: k\n  - alias: b\n    url: https://a.supabase.co\n    anon_key: k\n",
			errorContains: "duplicate url",
		},
		{
			name:          "malformed yaml",
			content:       "projects: [",
			errorContains: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)

			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.errorContains)
			}
		})
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	cfg := &Config{Projects: []Project{{Alias: "production", URL: "https://abcd.supabase.co", AnonKey: "k"}}}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Projects[0] != cfg.Projects[0] {
		t.Errorf("loaded %+v, want %+v", loaded.Projects[0], cfg.Projects[0])
	}
}

func TestSave_RejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	cfg := &Config{Projects: []Project{{Alias: "broken", URL: "https://abcd.supabase.co"}}}

	if err := Save(path, cfg); err == nil {
		t.Fatal("expected error but got none")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid config should not be written")
	}
}

func TestFindConfigFile_SearchesParents(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "projects: []\n")

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	t.Chdir(nested)

	path, err := FindConfigFile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// macOS temp dirs live behind a symlink
	want, _ := filepath.EvalSymlinks(filepath.Join(root, ConfigFileName))
	got, _ := filepath.EvalSymlinks(path)
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestFindConfigFile_NotFound(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := FindConfigFile()
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestProject_Ref(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "https://abcd.supabase.co", want: "abcd"},
		{url: "https://abcd.supabase.co/", want: "abcd"},
		{url: "http://localhost:54321", want: "localhost:54321"},
		{url: "https://auth.example.com", want: "auth.example.com"},
	}

	for _, tt := range tests {
		p := Project{URL: tt.url}
		if got := p.Ref(); got != tt.want {
			t.Errorf("Ref(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestConfig_Lookups(t *testing.T) {
	cfg := &Config{Projects: []Project{
		{Alias: "production", URL: "https://abcd.supabase.co", AnonKey: "k1"},
		{Alias: "local", URL: "http://localhost:54321", AnonKey: "k2"},
	}}

	if p, err := cfg.GetProjectByAlias("local"); err != nil || p.AnonKey != "k2" {
		t.Errorf("GetProjectByAlias = %v, %v", p, err)
	}
	if _, err := cfg.GetProjectByAlias("staging"); err == nil {
		t.Error("expected error for unknown alias")
	}
	if p, err := cfg.GetProjectByURLOrAlias("https://abcd.supabase.co/"); err != nil || p.Alias != "production" {
		t.Errorf("GetProjectByURLOrAlias(url) = %v, %v", p, err)
	}
	if p, err := cfg.GetProjectByURLOrAlias("local"); err != nil || p.Alias != "local" {
		t.Errorf("GetProjectByURLOrAlias(alias) = %v, %v", p, err)
	}
	if p, err := cfg.GetDefaultProject(); err != nil || p.Alias != "production" {
		t.Errorf("GetDefaultProject = %v, %v", p, err)
	}
	if _, err := (&Config{}).GetDefaultProject(); err == nil {
		t.Error("expected error for empty config")
	}
}
