// Command audiostacker tracks upcoming audiobook releases for a watchlist of
// authors and series.
//
// The run command searches the catalog for every watchlist author, matches
// the results against the wanted books and stores confident matches. The
// remaining commands inspect the catalog, the stored matches, the result
// cache and the configuration.
package main
