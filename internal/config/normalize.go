package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAudible()
	c.normalizeRateLimits()
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeTracing()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if value, ok := os.LookupEnv("AUDIOSTACKER_WATCHLIST"); ok && strings.TrimSpace(value) != "" {
		c.Paths.Watchlist = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.Watchlist) == "" {
		c.Paths.Watchlist = defaultWatchlistPath
	}
	if c.Paths.Watchlist, err = expandPath(c.Paths.Watchlist); err != nil {
		return fmt.Errorf("paths.watchlist: %w", err)
	}
	return nil
}

func (c *Config) normalizeAudible() {
	c.Audible.BaseURL = strings.TrimRight(strings.TrimSpace(c.Audible.BaseURL), "/")
	if c.Audible.BaseURL == "" {
		c.Audible.BaseURL = defaultAudibleBaseURL
	}
	if value, ok := os.LookupEnv("AUDIBLE_MARKETPLACE"); ok && strings.TrimSpace(value) != "" {
		c.Audible.Marketplace = value
	}
	c.Audible.Marketplace = strings.ToUpper(strings.TrimSpace(c.Audible.Marketplace))
	if c.Audible.Marketplace == "" {
		c.Audible.Marketplace = defaultAudibleMarketplace
	}
	c.Audible.Language = strings.ToLower(strings.TrimSpace(c.Audible.Language))
	c.Audible.UserAgent = strings.TrimSpace(c.Audible.UserAgent)
	if c.Audible.UserAgent == "" {
		c.Audible.UserAgent = defaultAudibleUserAgent
	}
	if c.Audible.MaxParallelRequests <= 0 {
		c.Audible.MaxParallelRequests = defaultMaxParallelRequests
	}
}

// normalizeRateLimits applies the one call per minute floor.
func (c *Config) normalizeRateLimits() {
	if c.RateLimits.AudibleAPIPerMinute < 1 {
		c.RateLimits.AudibleAPIPerMinute = 1
	}
}

func (c *Config) normalizeDatabase() error {
	var err error
	if strings.TrimSpace(c.Database.Path) == "" {
		return nil
	}
	if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	if value, ok := os.LookupEnv("AUDIOSTACKER_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console", "text":
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch c.Logging.Level {
	case "":
		c.Logging.Level = defaultLogLevel
	case "warning":
		c.Logging.Level = "warn"
	}
	if strings.TrimSpace(c.Logging.Dir) == "" {
		return nil
	}
	var err error
	if c.Logging.Dir, err = expandPath(c.Logging.Dir); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMetrics() error {
	var err error
	c.Metrics.Textfile = strings.TrimSpace(c.Metrics.Textfile)
	if c.Metrics.Textfile == "" {
		return nil
	}
	if c.Metrics.Textfile, err = expandPath(c.Metrics.Textfile); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}

func (c *Config) normalizeTracing() {
	c.Tracing.Endpoint = strings.TrimSpace(c.Tracing.Endpoint)
	if c.Tracing.Endpoint == "" {
		if value, ok := os.LookupEnv("OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
			c.Tracing.Endpoint = strings.TrimSpace(value)
		}
	}
	c.Tracing.ServiceName = strings.TrimSpace(c.Tracing.ServiceName)
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaultTracingServiceName
	}
}
