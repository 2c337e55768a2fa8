package catalog

import "strings"

// Wanted describes a desired book. Author is implied by the watchlist key the
// book was listed under.
type Wanted struct {
	Author    string   `json:"author" yaml:"-"`
	Title     string   `json:"title,omitempty" yaml:"title,omitempty"`
	Series    string   `json:"series,omitempty" yaml:"series,omitempty"`
	Publisher string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Narrators []string `json:"narrator,omitempty" yaml:"narrator,omitempty"`
}

// SeriesQuery returns the title query used to look for further volumes of a
// series: the book title when present, else the series name.
func (w Wanted) SeriesQuery() string {
	if title := strings.TrimSpace(w.Title); title != "" {
		return title
	}
	return strings.TrimSpace(w.Series)
}

// Label is a short human description for logs.
func (w Wanted) Label() string {
	switch {
	case strings.TrimSpace(w.Title) != "":
		return w.Title
	case strings.TrimSpace(w.Series) != "":
		return w.Series
	default:
		return w.Author
	}
}
