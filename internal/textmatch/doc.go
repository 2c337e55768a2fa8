// Package textmatch holds the string primitives the matching engine compares
// catalog records with: normalization, fuzzy similarity and volume number
// extraction from titles.
//
// All functions are pure and safe for concurrent use.
package textmatch
