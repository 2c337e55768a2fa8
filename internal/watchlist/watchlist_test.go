package watchlist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"audiostacker/internal/logging"
)

const sampleYAML = `
audiobooks:
  author:
    Yuu Tanaka:
      - title: Reincarnated as a Sword
        series: Reincarnated as a Sword
        narrator: Josh Hurley
    Sunsunsun:
      - title: "Alya Sometimes Hides Her Feelings in Russian, Vol. 4"
        series: Alya Sometimes Hides Her Feelings in Russian
        publisher: Yen Audio
        narrator:
          - Emily Woo Zeller
          - " Ryan Bartley "
      - series: Another Series
    Fuse:
`

func TestParseYAMLPreservesOrder(t *testing.T) {
	list, err := Parse([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(list.Authors) != 3 {
		t.Fatalf("expected 3 authors, got %d", len(list.Authors))
	}
	names := []string{list.Authors[0].Name, list.Authors[1].Name, list.Authors[2].Name}
	if names[0] != "Yuu Tanaka" || names[1] != "Sunsunsun" || names[2] != "Fuse" {
		t.Fatalf("unexpected author order %v", names)
	}
	if list.Books() != 3 {
		t.Fatalf("expected 3 books, got %d", list.Books())
	}

	sword := list.Authors[0].Books[0]
	if sword.Author != "Yuu Tanaka" || sword.Series != "Reincarnated as a Sword" {
		t.Fatalf("unexpected book %+v", sword)
	}
	if len(sword.Narrators) != 1 || sword.Narrators[0] != "Josh Hurley" {
		t.Fatalf("single narrator not normalized to list: %v", sword.Narrators)
	}

	alya := list.Authors[1].Books[0]
	if alya.Publisher != "Yen Audio" {
		t.Fatalf("publisher = %q", alya.Publisher)
	}
	if len(alya.Narrators) != 2 || alya.Narrators[1] != "Ryan Bartley" {
		t.Fatalf("narrator list = %v", alya.Narrators)
	}
	if len(list.Authors[2].Books) != 0 {
		t.Fatalf("expected author without books, got %v", list.Authors[2].Books)
	}
}

func TestParseJSONSortsAuthors(t *testing.T) {
	data := []byte(`{"audiobooks": {"author": {
		"Yuu Tanaka": [{"title": "Reincarnated as a Sword", "narrator": ["Josh Hurley"]}],
		"Sunsunsun": [{"series": "Alya", "narrator": "Emily Woo Zeller"}]
	}}}`)
	list, err := Parse(data, FormatJSON)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if list.Authors[0].Name != "Sunsunsun" || list.Authors[1].Name != "Yuu Tanaka" {
		t.Fatalf("authors not sorted: %+v", list.Authors)
	}
	if got := list.Authors[0].Books[0].Narrators; len(got) != 1 || got[0] != "Emily Woo Zeller" {
		t.Fatalf("narrators = %v", got)
	}
}

func TestParseRejectsInvalidShapes(t *testing.T) {
	cases := []struct {
		name   string
		format Format
		data   string
	}{
		{name: "empty yaml", format: FormatYAML, data: ""},
		{name: "missing root", format: FormatYAML, data: "books: []\n"},
		{name: "root not mapping", format: FormatYAML, data: "audiobooks: [1, 2]\n"},
		{name: "books not list", format: FormatYAML, data: "audiobooks:\n  author:\n    A: {title: x}\n"},
		{name: "book without title or series", format: FormatYAML, data: "audiobooks:\n  author:\n    A:\n      - publisher: P\n"},
		{name: "bad narrator", format: FormatYAML, data: "audiobooks:\n  author:\n    A:\n      - title: x\n        narrator: {name: y}\n"},
		{name: "missing json root", format: FormatJSON, data: `{"other": {}}`},
		{name: "json narrator number", format: FormatJSON, data: `{"audiobooks": {"author": {"A": [{"title": "x", "narrator": 3}]}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data), tc.format)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestParseEmptyAuthorSection(t *testing.T) {
	list, err := Parse([]byte("audiobooks:\n  author:\n"), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(list.Authors) != 0 {
		t.Fatalf("expected empty watchlist, got %+v", list.Authors)
	}
}

func TestLoadPicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "audiobooks.yaml")
	jsonPath := filepath.Join(dir, "audiobooks.json")
	if err := os.WriteFile(yamlPath, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jsonPath, []byte(`{"audiobooks": {"author": {"A": [{"title": "x"}]}}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := Load(yamlPath, logging.NewNop())
	if err != nil || len(list.Authors) != 3 {
		t.Fatalf("Load yaml: %v %+v", err, list)
	}
	list, err = Load(jsonPath, logging.NewNop())
	if err != nil || len(list.Authors) != 1 {
		t.Fatalf("Load json: %v %+v", err, list)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml"), nil); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
