package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"audiostacker/internal/audible"
	"audiostacker/internal/config"
	"audiostacker/internal/logging"
	"audiostacker/internal/matching"
	"audiostacker/internal/metrics"
	"audiostacker/internal/store"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	metricsOnce sync.Once
	metrics     *metrics.Recorder

	limiterOnce sync.Once
	limiter     *audible.RateLimiter
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) configFlagValue() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue())
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) metricsValue() *metrics.Recorder {
	c.metricsOnce.Do(func() {
		rec, err := metrics.New(nil)
		if err != nil {
			c.loggerValue().Warn("metrics disabled", logging.Error(err))
			return
		}
		c.metrics = rec
	})
	return c.metrics
}

// rateLimiter is shared by every catalog client the process creates.
func (c *commandContext) rateLimiter() *audible.RateLimiter {
	c.limiterOnce.Do(func() {
		perMinute := audible.DefaultCallsPerMinute
		if cfg := c.configValue(); cfg != nil {
			perMinute = cfg.RateLimits.AudibleAPIPerMinute
		}
		rec := c.metricsValue()
		c.limiter = audible.NewRateLimiter(perMinute, audible.WithWaitObserver(rec.Throttled))
	})
	return c.limiter
}

func (c *commandContext) resultCache() (*audible.Cache, error) {
	cfg := c.configValue()
	if cfg == nil || !cfg.Cache.Enabled {
		return nil, nil
	}
	cache, err := audible.NewCache(cfg.Paths.CacheDir, cfg.CacheTTL(), c.loggerValue(),
		audible.WithCacheMetrics(c.metricsValue()))
	if err != nil {
		return nil, fmt.Errorf("open result cache: %w", err)
	}
	return cache, nil
}

func (c *commandContext) newClient() (*audible.Client, error) {
	cache, err := c.resultCache()
	if err != nil {
		return nil, err
	}
	return audible.New(audible.ConfigFrom(c.configValue()),
		audible.WithRateLimiter(c.rateLimiter()),
		audible.WithCache(cache),
		audible.WithLogger(c.loggerValue()),
		audible.WithMetrics(c.metricsValue()),
	)
}

func (c *commandContext) openStore() (*store.Store, error) {
	cfg := c.configValue()
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	st, err := store.Open(cfg, c.loggerValue())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

func (c *commandContext) newSelector() *matching.Selector {
	cfg := c.configValue()
	minScore, preferred := matching.DefaultMinConfidence, matching.DefaultPreferredConfidence
	if cfg != nil {
		minScore, preferred = cfg.Matching.MinConfidence, cfg.Matching.PreferredConfidence
	}
	logger := c.loggerValue()
	return matching.NewSelector(matching.NewScorer(logger), logger, minScore, preferred)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
