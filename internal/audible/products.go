package audible

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"audiostacker/internal/catalog"
)

// ProductLinkBase prefixes the public product page for an ASIN.
const ProductLinkBase = "https://www.audible.com/pd/"

// Substrings that mark a contributor credit rather than a primary author.
var contributorRoles = []string{
	"illustrator",
	"translator", "translated by",
	"editor", "edited by",
	"foreword", "afterword",
	"introduction", "preface",
	"contributor", "adapter", "adaptor",
	"compiler", "compiled by",
	"cover designer", "cover artist",
	"commentary", "annotated by",
	"revised by", "reviser",
}

type searchResponse struct {
	Products *[]rawProduct `json:"products"`
}

type productResponse struct {
	Product *rawProduct `json:"product"`
}

type rawPerson struct {
	Name string `json:"name"`
}

type rawSeries struct {
	Title    string     `json:"title"`
	Sequence flexString `json:"sequence"`
}

type rawLadder struct {
	Ladder []struct {
		Name string `json:"name"`
	} `json:"ladder"`
}

type rawProduct struct {
	ASIN             string      `json:"asin"`
	Title            string      `json:"title"`
	Subtitle         string      `json:"subtitle"`
	Authors          []rawPerson `json:"authors"`
	Narrators        []rawPerson `json:"narrators"`
	PublisherName    string      `json:"publisher_name"`
	Series           []rawSeries `json:"series"`
	ReleaseDate      string      `json:"release_date"`
	IssueDate        string      `json:"issue_date"`
	PublisherSummary string      `json:"publisher_summary"`
	RuntimeLengthMin flexInt     `json:"runtime_length_min"`
	CategoryLadders  []rawLadder `json:"category_ladders"`
	Language         string      `json:"language"`
	ContentType      string      `json:"content_type"`
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*s = flexString(value)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		// Objects and arrays carry no usable sequence.
		*s = ""
		return nil
	}
	*s = flexString(number.String())
	return nil
}

// flexInt accepts a JSON number or numeric string; anything else is zero.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	var value flexString
	if err := value.UnmarshalJSON(data); err != nil {
		*n = 0
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(string(value)), 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexInt(parsed)
	return nil
}

// productFilter drops records the watchlist never wants.
type productFilter struct {
	language string
}

// skipReason explains why a record is dropped, or returns "".
func (f productFilter) skipReason(p rawProduct) string {
	language := strings.ToLower(strings.TrimSpace(p.Language))
	if language != "" && f.language != "" && language != f.language {
		return "language"
	}
	if strings.EqualFold(strings.TrimSpace(p.ContentType), "podcast") {
		return "podcast"
	}
	return ""
}

func mapProduct(p rawProduct) catalog.Entry {
	entry := catalog.Entry{
		ID:             strings.TrimSpace(p.ASIN),
		Title:          strings.TrimSpace(p.Title),
		Subtitle:       strings.TrimSpace(p.Subtitle),
		Author:         strings.Join(primaryAuthors(p.Authors), ", "),
		Narrator:       strings.Join(names(p.Narrators), ", "),
		Publisher:      strings.TrimSpace(p.PublisherName),
		ReleaseDate:    strings.TrimSpace(p.ReleaseDate),
		Description:    stripHTML(p.PublisherSummary),
		RuntimeMinutes: int(p.RuntimeLengthMin),
	}
	if entry.ReleaseDate == "" {
		entry.ReleaseDate = strings.TrimSpace(p.IssueDate)
	}
	if len(p.Series) > 0 {
		first := p.Series[0]
		entry.Series = strings.TrimSpace(first.Title)
		if seq := strings.TrimSpace(string(first.Sequence)); isSequenceNumber(seq) {
			entry.SeriesNumber = seq
		}
	}
	entry.Genres, entry.Tags = ladders(p.CategoryLadders)
	if entry.ID != "" {
		entry.Link = ProductLinkBase + entry.ID
	}
	return entry
}

func primaryAuthors(people []rawPerson) []string {
	out := make([]string, 0, len(people))
	for _, person := range people {
		name := strings.TrimSpace(person.Name)
		if name == "" || isContributor(name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func isContributor(name string) bool {
	lowered := strings.ToLower(name)
	for _, role := range contributorRoles {
		if strings.Contains(lowered, role) {
			return true
		}
	}
	return false
}

func names(people []rawPerson) []string {
	out := make([]string, 0, len(people))
	for _, person := range people {
		if name := strings.TrimSpace(person.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// isSequenceNumber accepts digits with at most one decimal point.
func isSequenceNumber(seq string) bool {
	if seq == "" {
		return false
	}
	digits, dots := 0, 0
	for _, r := range seq {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// ladders takes the first rung of every category ladder as a genre and the
// remaining rungs as tags, dropping repeats.
func ladders(raw []rawLadder) (genres, tags []string) {
	seenGenre := map[string]struct{}{}
	seenTag := map[string]struct{}{}
	for _, ladder := range raw {
		for i, rung := range ladder.Ladder {
			name := strings.TrimSpace(rung.Name)
			if name == "" {
				continue
			}
			if i == 0 {
				if _, ok := seenGenre[name]; !ok {
					seenGenre[name] = struct{}{}
					genres = append(genres, name)
				}
				continue
			}
			if _, ok := seenTag[name]; !ok {
				seenTag[name] = struct{}{}
				tags = append(tags, name)
			}
		}
	}
	return genres, tags
}

// stripHTML reduces a publisher summary to plain text.
func stripHTML(summary string) string {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return ""
	}
	if !strings.ContainsAny(summary, "<&") {
		return strings.Join(strings.Fields(summary), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(summary))
	if err != nil {
		return strings.Join(strings.Fields(summary), " ")
	}
	doc.Find("br, p, div, li").Each(func(_ int, s *goquery.Selection) {
		s.BeforeHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}
