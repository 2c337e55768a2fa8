package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains state, cache, and watchlist locations.
type Paths struct {
	StateDir  string `toml:"state_dir"`
	CacheDir  string `toml:"cache_dir"`
	Watchlist string `toml:"watchlist"`
}

// Audible contains catalog API connection and pagination settings.
type Audible struct {
	BaseURL             string `toml:"base_url"`
	Marketplace         string `toml:"marketplace"`
	Language            string `toml:"language"`
	UserAgent           string `toml:"user_agent"`
	RequestTimeout      int    `toml:"request_timeout"`
	MaxPages            int    `toml:"max_pages"`
	PageSize            int    `toml:"page_size"`
	ParallelPages       bool   `toml:"parallel_pages"`
	MaxParallelRequests int    `toml:"max_parallel_requests"`
	ParallelTimeout     int    `toml:"parallel_timeout"`
}

// RateLimits bounds the global outbound call cadence.
type RateLimits struct {
	AudibleAPIPerMinute int `toml:"audible_api_per_minute"`
}

// Cache contains result cache settings.
type Cache struct {
	Enabled  bool `toml:"enabled"`
	TTLHours int  `toml:"ttl_hours"`
}

// Retry describes the backoff policy for transient catalog failures.
type Retry struct {
	MaxRetries      int     `toml:"max_retries"`
	BaseDelayMS     int     `toml:"base_delay_ms"`
	MaxDelaySeconds int     `toml:"max_delay_seconds"`
	BackoffFactor   float64 `toml:"backoff_factor"`
	Jitter          bool    `toml:"jitter"`
}

// Matching contains confidence thresholds for accepting catalog entries.
type Matching struct {
	MinConfidence       float64 `toml:"min_confidence"`
	PreferredConfidence float64 `toml:"preferred_confidence"`
	FutureOnly          bool    `toml:"future_only"`
}

// Database contains persistence settings for accepted matches.
type Database struct {
	Path                   string `toml:"path"`
	CleanupGracePeriodDays int    `toml:"cleanup_grace_period_days"`
	VacuumIntervalDays     int    `toml:"vacuum_interval_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Metrics controls the Prometheus textfile written after each run.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Tracing controls OpenTelemetry span export.
type Tracing struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint"`
	Insecure    bool   `toml:"insecure"`
	ServiceName string `toml:"service_name"`
}

// Config encapsulates all configuration values for audiostacker.
//
// Configuration sections by subsystem:
//   - Paths: state directory, result cache directory, watchlist file
//   - Audible: catalog endpoint, marketplace, language filter, pagination
//   - RateLimits: shared outbound call cadence
//   - Cache: result cache enablement and TTL
//   - Retry: backoff policy for transient failures
//   - Matching: confidence thresholds
//   - Database: accepted match persistence and maintenance
//   - Logging: log format, level, and directory
//   - Metrics: Prometheus textfile export
//   - Tracing: OTLP span export
type Config struct {
	Paths      Paths      `toml:"paths"`
	Audible    Audible    `toml:"audible"`
	RateLimits RateLimits `toml:"rate_limits"`
	Cache      Cache      `toml:"cache"`
	Retry      Retry      `toml:"retry"`
	Matching   Matching   `toml:"matching"`
	Database   Database   `toml:"database"`
	Logging    Logging    `toml:"logging"`
	Metrics    Metrics    `toml:"metrics"`
	Tracing    Tracing    `toml:"tracing"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(resolvedPath), ".env")); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv exports variables from path without overriding the environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("audiostacker.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state, log, and cache directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.LogDir(), filepath.Dir(c.DatabasePath())}
	if c.Cache.Enabled {
		dirs = append(dirs, c.Paths.CacheDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogDir returns the directory holding the log file.
func (c *Config) LogDir() string {
	if dir := strings.TrimSpace(c.Logging.Dir); dir != "" {
		return dir
	}
	if c.Paths.StateDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.StateDir, "logs")
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	if path := strings.TrimSpace(c.Database.Path); path != "" {
		return path
	}
	return filepath.Join(c.Paths.StateDir, defaultDatabaseFile)
}

// LockPath returns the single-instance lock used by watchlist runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "audiostacker.lock")
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Audible.RequestTimeout) * time.Second
}

// ParallelTimeout returns the budget for one concurrent paginated search.
func (c *Config) ParallelTimeout() time.Duration {
	return time.Duration(c.Audible.ParallelTimeout) * time.Second
}

// CacheTTL returns the result cache time-to-live.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// RetryBaseDelay returns the first backoff interval.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the backoff interval ceiling.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelaySeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "audiostacker", "audible")
	}
	return "~/.cache/audiostacker/audible"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
