package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAudible(); err != nil {
		return err
	}
	if err := c.validateIntervals(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateTracing(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAudible() error {
	parsed, err := url.Parse(c.Audible.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("audible.base_url must be an absolute URL, got %q", c.Audible.BaseURL)
	}
	if c.Audible.PageSize < 1 || c.Audible.PageSize > maxPageSize {
		return fmt.Errorf("audible.page_size must be between 1 and %d", maxPageSize)
	}
	return nil
}

func (c *Config) validateIntervals() error {
	return ensurePositiveMap(map[string]int{
		"audible.request_timeout":            c.Audible.RequestTimeout,
		"audible.max_pages":                  c.Audible.MaxPages,
		"audible.max_parallel_requests":      c.Audible.MaxParallelRequests,
		"audible.parallel_timeout":           c.Audible.ParallelTimeout,
		"rate_limits.audible_api_per_minute": c.RateLimits.AudibleAPIPerMinute,
	})
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must be zero or positive")
	}
	if c.Retry.BaseDelayMS <= 0 {
		return errors.New("retry.base_delay_ms must be positive")
	}
	if c.Retry.MaxDelaySeconds <= 0 {
		return errors.New("retry.max_delay_seconds must be positive")
	}
	if c.Retry.BackoffFactor < 1 {
		return errors.New("retry.backoff_factor must be at least 1")
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Cache.TTLHours < 0 {
		return errors.New("cache.ttl_hours must be zero or positive")
	}
	if c.Matching.MinConfidence < 0 {
		return errors.New("matching.min_confidence must be zero or positive")
	}
	if c.Matching.PreferredConfidence < c.Matching.MinConfidence {
		return errors.New("matching.preferred_confidence must be greater than or equal to matching.min_confidence")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.CleanupGracePeriodDays < 0 {
		return errors.New("database.cleanup_grace_period_days must be zero or positive")
	}
	if c.Database.VacuumIntervalDays < 0 {
		return errors.New("database.vacuum_interval_days must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateTracing() error {
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return errors.New("tracing.endpoint must be set when tracing.enabled is true (or export OTEL_EXPORTER_OTLP_ENDPOINT)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
