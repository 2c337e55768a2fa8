package catalog

import (
	"fmt"
	"strings"
)

// SearchField names the catalog search parameter a query is sent as.
type SearchField string

const (
	FieldTitle     SearchField = "title"
	FieldAuthor    SearchField = "author"
	FieldSeries    SearchField = "series"
	FieldNarrator  SearchField = "narrator"
	FieldPublisher SearchField = "publisher"
	FieldKeywords  SearchField = "keywords"
)

// ParseSearchField validates a user-supplied field name.
func ParseSearchField(value string) (SearchField, error) {
	field := SearchField(strings.ToLower(strings.TrimSpace(value)))
	switch field {
	case FieldTitle, FieldAuthor, FieldSeries, FieldNarrator, FieldPublisher, FieldKeywords:
		return field, nil
	case "":
		return FieldTitle, nil
	default:
		return "", fmt.Errorf("unsupported search field %q", value)
	}
}

func (f SearchField) String() string { return string(f) }
