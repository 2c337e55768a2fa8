// Package matching decides which catalog entries correspond to a wanted book.
//
// Dedupe collapses duplicate editions of one volume. Scorer computes a
// weighted confidence between an entry and a catalog.Wanted, and Selector
// applies the acceptance thresholds, flagging low-confidence picks for review.
// Inputs are never mutated; derived fields are attached to copies.
package matching
