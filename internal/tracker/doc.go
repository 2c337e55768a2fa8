// Package tracker runs a watchlist against the catalog.
//
// For each author the tracker searches by author, then searches by title for
// every wanted book that belongs to a series. Each result set is deduplicated,
// filtered to upcoming releases when configured, scored against the wanted
// book and handed to a Sink. A failing query or sink write is logged and
// counted without stopping the run.
package tracker
