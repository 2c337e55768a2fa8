// Package config loads, normalizes, and validates audiostacker configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, loads a sibling .env file, and honours environment fallbacks
// such as AUDIOSTACKER_WATCHLIST and OTEL_EXPORTER_OTLP_ENDPOINT. Catalog
// pacing, cache lifetime, retry policy, and match thresholds are all exposed
// here so the fetch and matching layers receive typed values.
//
// Example:
//
//	[rate_limits]
//	audible_api_per_minute = 10
//
//	[cache]
//	ttl_hours = 24
//
// Always obtain settings through Load so downstream code receives sanitized
// paths and clear validation errors.
package config
