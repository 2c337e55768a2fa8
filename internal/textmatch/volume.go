package textmatch

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const number = `(\d+(?:\.\d+)?)`

// Volume markers, tried in order against the lowercased title.
var volumePatterns = []*regexp.Regexp{
	regexp.MustCompile(`vol\.?\s*` + number),
	regexp.MustCompile(`volume\s*` + number),
	regexp.MustCompile(`book\s*` + number),
	regexp.MustCompile(number + `\s*\(light novel\)`),
	regexp.MustCompile(number + `\s*\(ln\)`),
	regexp.MustCompile(`,\s*vol\.?\s*` + number),
	regexp.MustCompile(`:\s*volume\s*` + number),
	regexp.MustCompile(`\s+` + number + `$`),
}

// Suffixes removed, in order, to build the base title key.
var volumeSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`\s*vol\.?\s*\d+.*$`),
	regexp.MustCompile(`\s*volume\s*\d+.*$`),
	regexp.MustCompile(`\s*book\s*\d+.*$`),
	regexp.MustCompile(`\s*\d+\s*\(light novel\).*$`),
	regexp.MustCompile(`\s*\d+\s*\(ln\).*$`),
	regexp.MustCompile(`,\s*vol\.?\s*\d+.*$`),
	regexp.MustCompile(`:\s*volume\s*\d+.*$`),
	regexp.MustCompile(`\s+\d+$`),
}

// ExtractVolume returns the volume or book number carried by title as an
// exact decimal. The first matching marker wins; ok is false when title
// carries no recognizable volume.
func ExtractVolume(title string) (decimal.Decimal, bool) {
	if strings.TrimSpace(title) == "" {
		return decimal.Decimal{}, false
	}
	lowered := strings.ToLower(title)
	for _, pattern := range volumePatterns {
		match := pattern.FindStringSubmatch(lowered)
		if match == nil {
			continue
		}
		value, err := decimal.NewFromString(match[1])
		if err != nil {
			continue
		}
		return value, true
	}
	return decimal.Decimal{}, false
}

// TitleVolumeKey strips volume suffixes (and everything after them) from
// title and normalizes what is left, so editions of one series that differ
// only by volume share a key.
func TitleVolumeKey(title string) string {
	key := strings.TrimSpace(strings.ToLower(title))
	if key == "" {
		return ""
	}
	for _, suffix := range volumeSuffixes {
		key = suffix.ReplaceAllString(key, "")
	}
	return Normalize(key)
}
