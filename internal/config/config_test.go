package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"audiostacker/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", filepath.Join(tempHome, ".cache"))
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "audiostacker")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.CacheDir != filepath.Join(tempHome, ".cache", "audiostacker", "audible") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.DatabasePath() != filepath.Join(wantState, "audiobooks.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.RateLimits.AudibleAPIPerMinute != 10 {
		t.Fatalf("unexpected rate limit: %d", cfg.RateLimits.AudibleAPIPerMinute)
	}
	if cfg.CacheTTL().Hours() != 24 {
		t.Fatalf("unexpected cache ttl: %v", cfg.CacheTTL())
	}
	if cfg.Audible.Language != "english" {
		t.Fatalf("unexpected language filter: %q", cfg.Audible.Language)
	}
	if cfg.Matching.MinConfidence != 0.5 || cfg.Matching.PreferredConfidence != 0.7 {
		t.Fatalf("unexpected thresholds: %+v", cfg.Matching)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.LogDir(), cfg.Paths.CacheDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "audiostacker.toml")

	type payload struct {
		Paths struct {
			StateDir string `toml:"state_dir"`
		} `toml:"paths"`
		Audible struct {
			Language string `toml:"language"`
			PageSize int    `toml:"page_size"`
		} `toml:"audible"`
		RateLimits struct {
			PerMinute int `toml:"audible_api_per_minute"`
		} `toml:"rate_limits"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.StateDir = filepath.Join(tempDir, "state")
	custom.Audible.Language = " Japanese "
	custom.Audible.PageSize = 20
	custom.RateLimits.PerMinute = 30
	custom.Logging.Format = "text"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Audible.Language != "japanese" {
		t.Fatalf("expected normalized language, got %q", cfg.Audible.Language)
	}
	if cfg.Audible.PageSize != 20 {
		t.Fatalf("unexpected page size: %d", cfg.Audible.PageSize)
	}
	if cfg.RateLimits.AudibleAPIPerMinute != 30 {
		t.Fatalf("unexpected rate limit: %d", cfg.RateLimits.AudibleAPIPerMinute)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("expected text alias to map to console, got %q", cfg.Logging.Format)
	}
	if !cfg.Cache.Enabled {
		t.Fatal("expected cache default to survive partial config")
	}
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\nstate_dir = \""+filepath.ToSlash(filepath.Join(tempDir, "state"))+"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envBody := "AUDIBLE_MARKETPLACE=uk\nAUDIOSTACKER_WATCHLIST=" + filepath.ToSlash(filepath.Join(tempDir, "from-dotenv.yaml")) + "\n"
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte(envBody), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("AUDIOSTACKER_WATCHLIST", filepath.Join(tempDir, "from-env.yaml"))
	t.Setenv("AUDIBLE_MARKETPLACE", "")
	os.Unsetenv("AUDIBLE_MARKETPLACE")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Audible.Marketplace != "UK" {
		t.Fatalf("expected marketplace from .env, got %q", cfg.Audible.Marketplace)
	}
	if cfg.Paths.Watchlist != filepath.Join(tempDir, "from-env.yaml") {
		t.Fatalf("expected exported env to win over .env, got %q", cfg.Paths.Watchlist)
	}
}

func TestRateLimitFloor(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")
	body := "[paths]\nstate_dir = \"" + filepath.ToSlash(tempDir) + "\"\n[rate_limits]\naudible_api_per_minute = 0\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.RateLimits.AudibleAPIPerMinute != 1 {
		t.Fatalf("expected floor of 1 call per minute, got %d", cfg.RateLimits.AudibleAPIPerMinute)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"page size", func(c *config.Config) { c.Audible.PageSize = 51 }, "audible.page_size"},
		{"max pages", func(c *config.Config) { c.Audible.MaxPages = 0 }, "audible.max_pages must be positive"},
		{"thresholds", func(c *config.Config) { c.Matching.PreferredConfidence = 0.4 }, "matching.preferred_confidence"},
		{"ttl", func(c *config.Config) { c.Cache.TTLHours = -1 }, "cache.ttl_hours"},
		{"backoff", func(c *config.Config) { c.Retry.BackoffFactor = 0.5 }, "retry.backoff_factor"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"tracing", func(c *config.Config) { c.Tracing.Enabled = true; c.Tracing.Endpoint = "" }, "tracing.endpoint"},
		{"base url", func(c *config.Config) { c.Audible.BaseURL = "not a url" }, "audible.base_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	defaults := config.Default()
	if cfg.Audible.MaxPages != defaults.Audible.MaxPages || cfg.Retry.MaxRetries != defaults.Retry.MaxRetries {
		t.Fatalf("sample diverges from defaults: %+v", cfg)
	}
}
