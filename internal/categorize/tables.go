package categorize

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var embeddedTables []byte

// Entry maps a set of lowercase substrings to a category.
type Entry struct {
	Category string   `yaml:"category"`
	Names    []string `yaml:"names,omitempty"`
	Words    []string `yaml:"words,omitempty"`
}

// Tables holds the merchant and keyword tables, in file order.
type Tables struct {
	Merchants []Entry `yaml:"merchants"`
	Keywords  []Entry `yaml:"keywords"`
}

// NewTables parses and validates table YAML.
func NewTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse category tables: %w", err)
	}

	if err := normalizeEntries("merchants", t.Merchants, func(e *Entry) []string { return e.Names }); err != nil {
		return nil, err
	}
	if err := normalizeEntries("keywords", t.Keywords, func(e *Entry) []string { return e.Words }); err != nil {
		return nil, err
	}
	return &t, nil
}

func normalizeEntries(section string, entries []Entry, terms func(*Entry) []string) error {
	for i := range entries {
		e := &entries[i]
		e.Category = strings.ToLower(strings.TrimSpace(e.Category))
		if e.Category == "" {
			return fmt.Errorf("%s entry %d: category cannot be empty", section, i)
		}
		list := terms(e)
		if len(list) == 0 {
			return fmt.Errorf("%s entry %d (%s): no terms", section, i, e.Category)
		}
		for j, term := range list {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				return fmt.Errorf("%s entry %d (%s): term %d is empty", section, i, e.Category, j)
			}
			list[j] = term
		}
	}
	return nil
}

// LoadEmbedded loads the built-in tables.
func LoadEmbedded() (*Tables, error) {
	t, err := NewTables(embeddedTables)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded category tables: %w", err)
	}
	return t, nil
}

// LoadFromFile loads tables from a filesystem path.
func LoadFromFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read category tables: %w", err)
	}
	t, err := NewTables(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load category tables from %q: %w", path, err)
	}
	return t, nil
}

func matchEntries(entries []Entry, haystack string, terms func(*Entry) []string) (string, string, bool) {
	for i := range entries {
		for _, term := range terms(&entries[i]) {
			if strings.Contains(haystack, term) {
				return entries[i].Category, term, true
			}
		}
	}
	return "", "", false
}
