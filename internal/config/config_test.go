package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VIBETUBE_API_BASE_URL",
		"VIBETUBE_DB_PATH",
		"VIBETUBE_PAGE_SIZE",
		"VIBETUBE_HTTP_TIMEOUT_SECONDS",
		"VIBETUBE_LOG_LEVEL",
		"VIBETUBE_LOG_PATH",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromEnv_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.APIBaseURL != defaultAPIBaseURL {
		t.Fatalf("unexpected API base URL: %s", cfg.APIBaseURL)
	}
	if cfg.DBPath != "vibetube.db" {
		t.Fatalf("unexpected DB path: %s", cfg.DBPath)
	}
	if cfg.PageSize != 12 {
		t.Fatalf("unexpected page size: %d", cfg.PageSize)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.HTTPTimeout)
	}
	if cfg.Source != "" {
		t.Fatalf("expected no config file, got %s", cfg.Source)
	}
}

func TestLoadFromEnv_FindsXDGConfig(t *testing.T) {
	clearEnv(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dir := filepath.Join(xdg, "vibetube")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`page_size = 20`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.PageSize != 20 {
		t.Fatalf("expected page size from file, got %d", cfg.PageSize)
	}
}

func TestLoad_FileThenEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
api_base_url = "https://tube.example.com/"
db_path = "/tmp/tube.db"
page_size = 24
http_timeout_seconds = 3
log_level = "DEBUG"
`)
	t.Setenv("VIBETUBE_PAGE_SIZE", "6")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBaseURL != "https://tube.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.APIBaseURL)
	}
	if cfg.DBPath != "/tmp/tube.db" || cfg.HTTPTimeout != 3*time.Second || cfg.LogLevel != "debug" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.PageSize != 6 {
		t.Fatalf("expected env to override page size, got %d", cfg.PageSize)
	}
	if cfg.Source != path {
		t.Fatalf("unexpected source: %s", cfg.Source)
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "page_size = 12\nthumbnail_cache = true\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "thumbnail_cache") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoad_RejectsBadEnvInteger(t *testing.T) {
	clearEnv(t)
	t.Setenv("VIBETUBE_HTTP_TIMEOUT_SECONDS", "soon")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-integer timeout")
	}
}

func TestValidate(t *testing.T) {
	base := defaults()

	cases := map[string]func(*Config){
		"empty url":       func(c *Config) { c.APIBaseURL = "" },
		"non http url":    func(c *Config) { c.APIBaseURL = "ftp://example.com" },
		"empty db":        func(c *Config) { c.DBPath = "" },
		"page size zero":  func(c *Config) { c.PageSize = 0 },
		"page size large": func(c *Config) { c.PageSize = 51 },
		"no timeout":      func(c *Config) { c.HTTPTimeout = 0 },
		"bad log level":   func(c *Config) { c.LogLevel = "loud" },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
