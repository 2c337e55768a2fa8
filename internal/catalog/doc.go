// Package catalog defines the records exchanged between the catalog fetch
// layer and the matching engine: Entry, a normalized search result, and
// Wanted, the user's description of a desired book.
package catalog
