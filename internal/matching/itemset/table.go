// Package itemset turns questionnaire answers into weighted attribute items.
//
// The Table is the allow-list: keys that are not configured are ignored by
// the extractor. Tables are immutable after construction and safe to share.
package itemset

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"match-workers/internal/models"
)

//go:embed tables.yaml
var defaultTables []byte

var ErrInvalidTable = errors.New("invalid attribute table")

// AttributeSpec configures one questionnaire key.
type AttributeSpec struct {
	Key      string          `yaml:"key"`
	Label    string          `yaml:"label"`
	Weight   float64         `yaml:"weight"`
	Category models.Category `yaml:"category"`
	Template string          `yaml:"template"`
}

type tableFile struct {
	Attributes  []AttributeSpec     `yaml:"attributes"`
	Complements map[string][]string `yaml:"complements"`
	Display     map[string]string   `yaml:"display"`
}

type Table struct {
	order       []string
	specs       map[string]AttributeSpec
	complements map[string][]string
	display     map[string]string
}

// DefaultTable returns the table compiled into the binary.
func DefaultTable() (*Table, error) {
	return ParseTable(defaultTables)
}

// MustDefaultTable panics if the embedded table is invalid.
func MustDefaultTable() *Table {
	t, err := DefaultTable()
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTable reads a table from path, or returns the default when path is empty.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attribute table: %w", err)
	}
	return ParseTable(data)
}

func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	t, err := NewTable(f.Attributes, f.Complements)
	if err != nil {
		return nil, err
	}
	return t.WithDisplay(f.Display), nil
}

// NewTable validates specs and complements. Complement keys and targets are
// "attribute:value" and must name configured attributes.
func NewTable(specs []AttributeSpec, complements map[string][]string) (*Table, error) {
	t := &Table{
		specs:       make(map[string]AttributeSpec, len(specs)),
		complements: make(map[string][]string, len(complements)),
	}

	for _, s := range specs {
		if s.Key == "" {
			return nil, fmt.Errorf("%w: attribute with empty key", ErrInvalidTable)
		}
		if _, dup := t.specs[s.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate attribute %q", ErrInvalidTable, s.Key)
		}
		if s.Weight <= 0 || s.Weight > 1 {
			return nil, fmt.Errorf("%w: %s weight %v outside (0,1]", ErrInvalidTable, s.Key, s.Weight)
		}
		if !s.Category.Valid() {
			return nil, fmt.Errorf("%w: %s has unknown category %q", ErrInvalidTable, s.Key, s.Category)
		}
		if s.Label == "" {
			s.Label = s.Key
		}
		t.specs[s.Key] = s
		t.order = append(t.order, s.Key)
	}

	for from, targets := range complements {
		fromKey, err := t.normalizeRef(from)
		if err != nil {
			return nil, err
		}
		for _, to := range targets {
			toKey, err := t.normalizeRef(to)
			if err != nil {
				return nil, err
			}
			t.complements[fromKey] = append(t.complements[fromKey], toKey)
		}
	}

	return t, nil
}

func (t *Table) normalizeRef(ref string) (string, error) {
	attr, value, ok := strings.Cut(ref, ":")
	if !ok || value == "" {
		return "", fmt.Errorf("%w: complement %q is not attribute:value", ErrInvalidTable, ref)
	}
	if _, known := t.specs[attr]; !known {
		return "", fmt.Errorf("%w: complement %q names unknown attribute", ErrInvalidTable, ref)
	}
	return ItemKey(attr, value), nil
}

// WithDisplay returns a copy of t that renders the given words (matched
// case-insensitively) verbatim instead of title-casing them.
func (t *Table) WithDisplay(words map[string]string) *Table {
	out := *t
	out.display = make(map[string]string, len(t.display)+len(words))
	for k, v := range t.display {
		out.display[k] = v
	}
	for k, v := range words {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || strings.TrimSpace(v) == "" {
			continue
		}
		out.display[k] = v
	}
	return &out
}

// Display renders a raw answer for descriptions: each word is title-cased
// unless the table has an override for it, so "vp of sales" reads
// "VP Of Sales". A nil table only title-cases.
func (t *Table) Display(value string) string {
	if t == nil || len(t.display) == 0 {
		return DisplayValue(value)
	}
	words := strings.Fields(value)
	for i, w := range words {
		if d, ok := t.display[strings.ToLower(w)]; ok {
			words[i] = d
			continue
		}
		words[i] = DisplayValue(w)
	}
	return strings.Join(words, " ")
}

// Keys returns the allow-listed attribute keys in table order.
func (t *Table) Keys() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *Table) Spec(key string) (AttributeSpec, bool) {
	s, ok := t.specs[key]
	return s, ok
}

// Complements returns the complementary keys for an item key.
func (t *Table) Complements(itemKey string) []string {
	return t.complements[itemKey]
}

// ComplementSources lists item keys that have complement entries, sorted.
func (t *Table) ComplementSources() []string {
	out := make([]string, 0, len(t.complements))
	for k := range t.complements {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ItemKey is the matching key for an attribute value: "attribute:value" with
// the value trimmed and lower-cased.
func ItemKey(attribute, value string) string {
	return attribute + ":" + strings.ToLower(strings.TrimSpace(value))
}

// DisplayValue title-cases a raw answer for use in descriptions. A Caser
// holds state, so each call gets its own.
func DisplayValue(value string) string {
	return cases.Title(language.English).String(strings.TrimSpace(value))
}
