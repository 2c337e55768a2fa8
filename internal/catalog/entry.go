package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReleaseDateLayout is the ISO date format used by catalog release dates.
const ReleaseDateLayout = "2006-01-02"

// Entry is one normalized catalog search result.
//
// Entries are created fresh per fetch. The matching engine only ever attaches
// derived fields (ExtractedVolume, ConfidenceScore, NeedsReview) on copies.
type Entry struct {
	ID             string   `json:"asin"`
	Title          string   `json:"title"`
	Subtitle       string   `json:"subtitle,omitempty"`
	Author         string   `json:"author"`
	Narrator       string   `json:"narrator"`
	Publisher      string   `json:"publisher"`
	Series         string   `json:"series"`
	SeriesNumber   string   `json:"series_number"`
	ReleaseDate    string   `json:"release_date"`
	Description    string   `json:"description,omitempty"`
	RuntimeMinutes int      `json:"runtime_minutes,omitempty"`
	Genres         []string `json:"genres,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Link           string   `json:"link"`

	ExtractedVolume *decimal.Decimal `json:"extracted_volume,omitempty"`
	ConfidenceScore float64          `json:"confidence_score,omitempty"`
	NeedsReview     bool             `json:"needs_review,omitempty"`
}

// Clone returns a deep copy so callers can attach derived fields safely.
func (e Entry) Clone() Entry {
	out := e
	if e.Genres != nil {
		out.Genres = append([]string(nil), e.Genres...)
	}
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	if e.ExtractedVolume != nil {
		v := *e.ExtractedVolume
		out.ExtractedVolume = &v
	}
	return out
}

// Authors splits the comma-joined author field.
func (e Entry) Authors() []string {
	return splitNames(e.Author)
}

// Narrators splits the comma-joined narrator field.
func (e Entry) Narrators() []string {
	return splitNames(e.Narrator)
}

// Released parses ReleaseDate. An unparsable or empty date reports false.
func (e Entry) Released() (time.Time, bool) {
	value := strings.TrimSpace(e.ReleaseDate)
	if value == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(ReleaseDateLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// ReleasedBefore reports whether the entry has a known release date strictly
// before day. Entries without a usable date report false.
func (e Entry) ReleasedBefore(day time.Time) bool {
	released, ok := e.Released()
	if !ok {
		return false
	}
	y, m, d := day.Date()
	return released.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func splitNames(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
