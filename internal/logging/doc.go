// Package logging assembles the structured slog loggers used across
// audiostacker.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so catalog fetches, cache lookups,
// and match decisions emit lines with the same shape. Run-scoped correlation
// identifiers travel on the context and are attached with WithContext.
//
// Tests and wiring code that cannot fail should use NewNop.
package logging
