package locator

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TableFile is the on-disk shape of a strategy table.
//
//	page: inputs
//	locators:
//	  inputs:
//	    number:
//	      primary: "#input-number"
//	      fallback: 'input[type="number"]'
//	      description: Number input field
type TableFile struct {
	Page        string                         `yaml:"page"`
	Description string                         `yaml:"description,omitempty"`
	Locators    map[string]map[string]Strategy `yaml:"locators"`
}

// Table is an immutable page -> category -> element strategy table. It is
// safe for concurrent reads.
type Table struct {
	page        string
	description string
	categories  map[string]map[string]Strategy
}

// NewTable copies and validates categories into a table.
func NewTable(page string, categories map[string]map[string]Strategy) (*Table, error) {
	if page == "" {
		return nil, errors.New("table page name is required")
	}

	t := &Table{
		page:       page,
		categories: make(map[string]map[string]Strategy, len(categories)),
	}

	var problems []string
	for category, elements := range categories {
		copied := make(map[string]Strategy, len(elements))
		for name, s := range elements {
			if s.Description == "" {
				s.Description = page + "." + category + "." + name
			}
			if err := s.Validate(); err != nil {
				problems = append(problems, fmt.Sprintf("%s.%s: %v", category, name, err))
				continue
			}
			copied[name] = s
		}
		t.categories[category] = copied
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, fmt.Errorf("table %s: %s", page, strings.Join(problems, "; "))
	}

	return t, nil
}

// ParseTable decodes a YAML table.
func ParseTable(data []byte) (*Table, error) {
	var f TableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing locator table: %w", err)
	}
	t, err := NewTable(f.Page, f.Locators)
	if err != nil {
		return nil, err
	}
	t.description = f.Description
	return t, nil
}

// LoadTable reads a YAML table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading locator table %s: %w", path, err)
	}
	return ParseTable(data)
}

// Page returns the page the table describes.
func (t *Table) Page() string { return t.page }

// Get returns the strategy for category/name.
func (t *Table) Get(category, name string) (Strategy, bool) {
	elements, ok := t.categories[category]
	if !ok {
		return Strategy{}, false
	}
	s, ok := elements[name]
	return s, ok
}

// Lookup resolves a dotted "category.name" path.
func (t *Table) Lookup(path string) (Strategy, error) {
	category, name, ok := strings.Cut(path, ".")
	if !ok {
		return Strategy{}, fmt.Errorf("%w: %s.%s (want category.name)", ErrUnknownLocator, t.page, path)
	}
	s, found := t.Get(category, name)
	if !found {
		return Strategy{}, fmt.Errorf("%w: %s.%s", ErrUnknownLocator, t.page, path)
	}
	return s, nil
}

// MustGet panics when the entry is missing. Page objects use it for
// entries that ship with the binary.
func (t *Table) MustGet(category, name string) Strategy {
	s, ok := t.Get(category, name)
	if !ok {
		panic(fmt.Sprintf("%v: %s.%s.%s", ErrUnknownLocator, t.page, category, name))
	}
	return s
}

// Categories returns the category names in sorted order.
func (t *Table) Categories() []string {
	out := make([]string, 0, len(t.categories))
	for c := range t.categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Names returns the element names of category in sorted order.
func (t *Table) Names(category string) []string {
	elements := t.categories[category]
	out := make([]string, 0, len(elements))
	for n := range elements {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of strategies in the table.
func (t *Table) Len() int {
	n := 0
	for _, elements := range t.categories {
		n += len(elements)
	}
	return n
}

// With returns a copy of the table with category/name set to s.
func (t *Table) With(category, name string, s Strategy) (*Table, error) {
	categories := make(map[string]map[string]Strategy, len(t.categories)+1)
	for c, elements := range t.categories {
		copied := make(map[string]Strategy, len(elements)+1)
		for n, v := range elements {
			copied[n] = v
		}
		categories[c] = copied
	}
	if categories[category] == nil {
		categories[category] = make(map[string]Strategy, 1)
	}
	categories[category][name] = s

	out, err := NewTable(t.page, categories)
	if err != nil {
		return nil, err
	}
	out.description = t.description
	return out, nil
}

// File returns a copy of the table in its on-disk shape.
func (t *Table) File() TableFile {
	f := TableFile{
		Page:        t.page,
		Description: t.description,
		Locators:    make(map[string]map[string]Strategy, len(t.categories)),
	}
	for c, elements := range t.categories {
		copied := make(map[string]Strategy, len(elements))
		for n, v := range elements {
			copied[n] = v
		}
		f.Locators[c] = copied
	}
	return f
}

// Encode renders the table as YAML.
func (t *Table) Encode() ([]byte, error) {
	data, err := yaml.Marshal(t.File())
	if err != nil {
		return nil, fmt.Errorf("encoding locator table: %w", err)
	}
	return data, nil
}
