package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleksTheDev/snacker/internal/cli/config"
)

func TestInitCommand_NewConfig(t *testing.T) {
	dir := setupTestEnvironment(t)

	var out bytes.Buffer
	err := runInitWithOptions(&out, []string{"https://abcd.supabase.co"}, &initOptions{anonKey: "k1"})
	if err != nil {
		t.Fatalf("init command failed: %v", err)
	}

	cfg, err := config.Load(filepath.Join(dir, config.ConfigFileName))
	if err != nil {
		t.Fatalf("failed to load created config: %v", err)
	}

	if len(cfg.Projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(cfg.Projects))
	}
	if cfg.Projects[0].Alias != "project-1" {
		t.Errorf("expected alias 'project-1', got '%s'", cfg.Projects[0].Alias)
	}
	if cfg.Projects[0].AnonKey != "k1" {
		t.Errorf("expected anon key 'k1', got '%s'", cfg.Projects[0].AnonKey)
	}
	if !strings.Contains(out.String(), "Created ./snacker.yaml") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestInitCommand_AddSecondProject(t *testing.T) {
	dir := setupTestEnvironment(t)

	if err := runInitWithOptions(&bytes.Buffer{}, []string{"https://abcd.supabase.co"}, &initOptions{anonKey: "k1"}); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if err := runInitWithOptions(&bytes.Buffer{}, []string{"http://localhost:54321"}, &initOptions{anonKey: "k2", alias: "local"}); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	if err := runInitWithOptions(&bytes.Buffer{}, []string{"https://efgh.supabase.co"}, &initOptions{anonKey: "k3"}); err != nil {
		t.Fatalf("third init failed: %v", err)
	}

	cfg, err := config.Load(filepath.Join(dir, config.ConfigFileName))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	aliases := []string{}
	for _, p := range cfg.Projects {
		aliases = append(aliases, p.Alias)
	}
	if strings.Join(aliases, ",") != "project-1,local,project-3" {
		t.Errorf("unexpected aliases: %v", aliases)
	}
}

func TestInitCommand_ExistingProject(t *testing.T) {
	dir := setupTestEnvironment(t)
	args := []string{"https://abcd.supabase.co"}

	if err := runInitWithOptions(&bytes.Buffer{}, args, &initOptions{anonKey: "k1"}); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	var out bytes.Buffer
	if err := runInitWithOptions(&out, args, &initOptions{anonKey: "k1"}); err != nil {
		t.Fatalf("repeated init failed: %v", err)
	}
	if !strings.Contains(out.String(), "already exists") {
		t.Errorf("unexpected output: %s", out.String())
	}

	out.Reset()
	if err := runInitWithOptions(&out, args, &initOptions{anonKey: "k2"}); err != nil {
		t.Fatalf("key update failed: %v", err)
	}
	if !strings.Contains(out.String(), "Updated anon key") {
		t.Errorf("unexpected output: %s", out.String())
	}

	cfg, err := config.Load(filepath.Join(dir, config.ConfigFileName))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Projects) != 1 || cfg.Projects[0].AnonKey != "k2" {
		t.Errorf("unexpected projects: %+v", cfg.Projects)
	}
}

func TestInitCommand_AnonKey(t *testing.T) {
	setupTestEnvironment(t)

	err := runInitWithOptions(&bytes.Buffer{}, []string{"https://abcd.supabase.co"}, &initOptions{})
	if err == nil || !strings.Contains(err.Error(), "anon key is required") {
		t.Errorf("expected anon key error, got %v", err)
	}

	t.Setenv("SNACKER_ANON_KEY", "from-env")
	if err := runInitWithOptions(&bytes.Buffer{}, []string{"https://abcd.supabase.co"}, &initOptions{}); err != nil {
		t.Fatalf("init with env key failed: %v", err)
	}
}

func TestInitCommand_InvalidURL(t *testing.T) {
	dir := setupTestEnvironment(t)

	err := runInitWithOptions(&bytes.Buffer{}, []string{"not-a-url"}, &initOptions{anonKey: "k1"})
	if err == nil {
		t.Fatal("expected error for invalid URL")
	}
	if _, statErr := config.Load(filepath.Join(dir, config.ConfigFileName)); statErr == nil {
		t.Error("config should not be written for an invalid URL")
	}
}
