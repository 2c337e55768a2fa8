package watchlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"audiostacker/internal/catalog"
	"audiostacker/internal/logging"
)

// ErrInvalid marks a watchlist that parsed but does not have the expected shape.
var ErrInvalid = errors.New("invalid watchlist")

// Format selects the watchlist encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the format from a file extension. Anything other than
// .json is read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Author is one watchlist author and the books wanted from them.
type Author struct {
	Name  string
	Books []catalog.Wanted
}

// Watchlist is the parsed file.
type Watchlist struct {
	Authors []Author
}

// Books returns the number of wanted books across all authors.
func (w *Watchlist) Books() int {
	if w == nil {
		return 0
	}
	total := 0
	for _, author := range w.Authors {
		total += len(author.Books)
	}
	return total
}

type bookDoc struct {
	Title     string    `json:"title" yaml:"title"`
	Series    string    `json:"series" yaml:"series"`
	Publisher string    `json:"publisher" yaml:"publisher"`
	Narrator  narrators `json:"narrator" yaml:"narrator"`
}

// narrators accepts a single name or a list of names.
type narrators []string

func (n *narrators) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*n = nil
			return nil
		}
		*n = narrators{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*n = list
		return nil
	default:
		return fmt.Errorf("line %d: narrator must be a string or a list", node.Line)
	}
}

func (n *narrators) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*n = narrators{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("narrator must be a string or a list")
	}
	*n = list
	return nil
}

// Load reads and parses the watchlist at path.
func Load(path string, logger *slog.Logger) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	list, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("watchlist %s: %w", path, err)
	}
	logging.NewComponentLogger(logger, "watchlist").Info("watchlist loaded",
		logging.String("path", path),
		logging.Int("authors", len(list.Authors)),
		logging.Int("books", list.Books()),
	)
	return list, nil
}

// Parse decodes a watchlist document.
func Parse(data []byte, format Format) (*Watchlist, error) {
	var (
		authors []Author
		err     error
	)
	switch format {
	case FormatJSON:
		authors, err = parseJSON(data)
	case FormatYAML, "":
		authors, err = parseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported watchlist format %q", format)
	}
	if err != nil {
		return nil, err
	}
	list := &Watchlist{Authors: authors}
	if err := list.Validate(); err != nil {
		return nil, err
	}
	return list, nil
}

// Validate checks author names and that each book can be matched.
func (w *Watchlist) Validate() error {
	seen := make(map[string]struct{}, len(w.Authors))
	for _, author := range w.Authors {
		if author.Name == "" {
			return fmt.Errorf("%w: author name must not be empty", ErrInvalid)
		}
		if _, dup := seen[author.Name]; dup {
			return fmt.Errorf("%w: author %q listed twice", ErrInvalid, author.Name)
		}
		seen[author.Name] = struct{}{}
		for i, book := range author.Books {
			if book.Title == "" && book.Series == "" {
				return fmt.Errorf("%w: book %d for %q needs a title or series", ErrInvalid, i+1, author.Name)
			}
		}
	}
	return nil
}

func parseYAML(data []byte) ([]Author, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: missing audiobooks root key", ErrInvalid)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: document must be a mapping", ErrInvalid)
	}
	audiobooks := mappingValue(root, "audiobooks")
	if audiobooks == nil {
		return nil, fmt.Errorf("%w: missing audiobooks root key", ErrInvalid)
	}
	if audiobooks.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: audiobooks must be a mapping", ErrInvalid)
	}
	byAuthor := mappingValue(audiobooks, "author")
	if byAuthor == nil || isNull(byAuthor) {
		return nil, nil
	}
	if byAuthor.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: audiobooks.author must be a mapping", ErrInvalid)
	}

	authors := make([]Author, 0, len(byAuthor.Content)/2)
	for i := 0; i+1 < len(byAuthor.Content); i += 2 {
		name := strings.TrimSpace(byAuthor.Content[i].Value)
		var docs []bookDoc
		if value := byAuthor.Content[i+1]; !isNull(value) {
			if value.Kind != yaml.SequenceNode {
				return nil, fmt.Errorf("%w: books for %q must be a list (line %d)", ErrInvalid, name, value.Line)
			}
			if err := value.Decode(&docs); err != nil {
				return nil, fmt.Errorf("%w: books for %q: %v", ErrInvalid, name, err)
			}
		}
		authors = append(authors, newAuthor(name, docs))
	}
	return authors, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

type jsonDoc struct {
	Audiobooks *struct {
		Author map[string][]bookDoc `json:"author"`
	} `json:"audiobooks"`
}

func parseJSON(data []byte) ([]Author, error) {
	var doc jsonDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse json: %v", ErrInvalid, err)
	}
	if doc.Audiobooks == nil {
		return nil, fmt.Errorf("%w: missing audiobooks root key", ErrInvalid)
	}
	names := make([]string, 0, len(doc.Audiobooks.Author))
	for name := range doc.Audiobooks.Author {
		names = append(names, name)
	}
	sort.Strings(names)
	authors := make([]Author, 0, len(names))
	for _, name := range names {
		authors = append(authors, newAuthor(strings.TrimSpace(name), doc.Audiobooks.Author[name]))
	}
	return authors, nil
}

func newAuthor(name string, docs []bookDoc) Author {
	author := Author{Name: name, Books: make([]catalog.Wanted, 0, len(docs))}
	for _, doc := range docs {
		author.Books = append(author.Books, catalog.Wanted{
			Author:    name,
			Title:     strings.TrimSpace(doc.Title),
			Series:    strings.TrimSpace(doc.Series),
			Publisher: strings.TrimSpace(doc.Publisher),
			Narrators: cleanNames(doc.Narrator),
		})
	}
	return author
}

func cleanNames(names []string) []string {
	var out []string
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
