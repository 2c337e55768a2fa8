package textmatch

import "github.com/pmezard/go-difflib/difflib"

// Ratio returns the sequence-matcher similarity of the normalized forms of a
// and b: 2*M/T where M is the number of matched characters and T the total
// length of both strings. It is 1 for equal normalized strings and 0 when
// either side normalizes to empty.
func Ratio(a, b string) float64 {
	return NormalizedRatio(Normalize(a), Normalize(b))
}

// NormalizedRatio is Ratio for inputs that are already normalized.
func NormalizedRatio(na, nb string) float64 {
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	// The matcher's result depends on argument order for some inputs; taking
	// the larger of both directions keeps the ratio symmetric.
	forward := difflib.NewMatcher(runes(na), runes(nb)).Ratio()
	backward := difflib.NewMatcher(runes(nb), runes(na)).Ratio()
	if backward > forward {
		return backward
	}
	return forward
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
