package testsupport

import (
	"path/filepath"
	"testing"

	"audiostacker/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Rate limiting and retry delays are relaxed so tests do not sleep for seconds.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.Watchlist = filepath.Join(base, "audiobooks.yaml")
	cfgVal.Logging.Dir = filepath.Join(base, "logs")
	cfgVal.RateLimits.AudibleAPIPerMinute = 60000
	cfgVal.Retry.BaseDelayMS = 1
	cfgVal.Retry.MaxDelaySeconds = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return builder.cfg
}

// WithCatalogURL points the catalog client at a test server.
func WithCatalogURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Audible.BaseURL = url
	}
}

// WithCacheDisabled turns off the result cache.
func WithCacheDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Enabled = false
	}
}

// WithSequentialPages disables the concurrent page fetch variant.
func WithSequentialPages() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Audible.ParallelPages = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
