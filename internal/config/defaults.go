package config

const (
	defaultConfigPath             = "~/.config/audiostacker/config.toml"
	defaultStateDir               = "~/.local/share/audiostacker"
	defaultWatchlistPath          = "~/.config/audiostacker/audiobooks.yaml"
	defaultDatabaseFile           = "audiobooks.db"
	defaultAudibleBaseURL         = "https://api.audible.com/1.0"
	defaultAudibleMarketplace     = "US"
	defaultAudibleLanguage        = "english"
	defaultAudibleUserAgent       = "curl/8.5.0"
	defaultRequestTimeout         = 10
	defaultMaxPages               = 4
	defaultPageSize               = 50
	maxPageSize                   = 50
	defaultMaxParallelRequests    = 4
	defaultParallelTimeout        = 120
	defaultCallsPerMinute         = 10
	defaultCacheTTLHours          = 24
	defaultMaxRetries             = 3
	defaultRetryBaseDelayMS       = 1000
	defaultRetryMaxDelaySeconds   = 60
	defaultRetryBackoffFactor     = 2.0
	defaultMinConfidence          = 0.5
	defaultPreferredConfidence    = 0.7
	defaultVacuumIntervalDays     = 7
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultTracingServiceName     = "audiostacker"
	defaultCleanupGracePeriodDays = 0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			CacheDir:  defaultCacheDir(),
			Watchlist: defaultWatchlistPath,
		},
		Audible: Audible{
			BaseURL:             defaultAudibleBaseURL,
			Marketplace:         defaultAudibleMarketplace,
			Language:            defaultAudibleLanguage,
			UserAgent:           defaultAudibleUserAgent,
			RequestTimeout:      defaultRequestTimeout,
			MaxPages:            defaultMaxPages,
			PageSize:            defaultPageSize,
			ParallelPages:       true,
			MaxParallelRequests: defaultMaxParallelRequests,
			ParallelTimeout:     defaultParallelTimeout,
		},
		RateLimits: RateLimits{
			AudibleAPIPerMinute: defaultCallsPerMinute,
		},
		Cache: Cache{
			Enabled:  true,
			TTLHours: defaultCacheTTLHours,
		},
		Retry: Retry{
			MaxRetries:      defaultMaxRetries,
			BaseDelayMS:     defaultRetryBaseDelayMS,
			MaxDelaySeconds: defaultRetryMaxDelaySeconds,
			BackoffFactor:   defaultRetryBackoffFactor,
			Jitter:          true,
		},
		Matching: Matching{
			MinConfidence:       defaultMinConfidence,
			PreferredConfidence: defaultPreferredConfidence,
			FutureOnly:          true,
		},
		Database: Database{
			CleanupGracePeriodDays: defaultCleanupGracePeriodDays,
			VacuumIntervalDays:     defaultVacuumIntervalDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Tracing: Tracing{
			Insecure:    true,
			ServiceName: defaultTracingServiceName,
		},
	}
}
