package textmatch

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize lowercases s, drops every character that is not a word character
// or whitespace, collapses whitespace runs to a single space and trims.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// cases.Caser is stateful; cloning per call keeps Normalize goroutine safe.
	folded := cases.Lower(language.Und).String(s)
	return collapse(stripNonWord(folded))
}

// NormalizeList normalizes every item, dropping the ones that normalize to
// empty. Input order is preserved.
func NormalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if n := Normalize(item); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// NormalizeSet is NormalizeList sorted with duplicates removed.
func NormalizeSet(items []string) []string {
	list := NormalizeList(items)
	sort.Strings(list)
	out := list[:0]
	for i, item := range list {
		if i > 0 && item == list[i-1] {
			continue
		}
		out = append(out, item)
	}
	return out
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func stripNonWord(s string) string {
	return strings.Map(func(r rune) rune {
		if isWord(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
