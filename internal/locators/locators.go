// Package locators ships the strategy tables for the bundled page objects
// and loads user tables from disk.
package locators

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/testforge/e2ekit/pkg/locator"
)

//go:embed tables/*.yaml
var tables embed.FS

// Ext is the file extension of locator tables.
const Ext = ".yaml"

var (
	Base    = sync.OnceValue(func() *locator.Table { return mustEmbedded("base") })
	Inputs  = sync.OnceValue(func() *locator.Table { return mustEmbedded("inputs") })
	Landing = sync.OnceValue(func() *locator.Table { return mustEmbedded("landing") })
	Login   = sync.OnceValue(func() *locator.Table { return mustEmbedded("login") })
)

// Embedded returns the bundled table for page.
func Embedded(page string) (*locator.Table, error) {
	data, err := tables.ReadFile("tables/" + page + Ext)
	if err != nil {
		return nil, fmt.Errorf("%w: no bundled table %q", locator.ErrUnknownLocator, page)
	}
	return locator.ParseTable(data)
}

// Names lists the bundled tables.
func Names() []string {
	entries, _ := tables.ReadDir("tables")
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), Ext))
	}
	sort.Strings(out)
	return out
}

// Path returns where the table for name lives under dir.
func Path(dir, name string) string {
	return filepath.Join(dir, name+Ext)
}

// Load reads dir/<name>.yaml, falling back to the bundled table when the
// file does not exist.
func Load(dir, name string) (*locator.Table, error) {
	t, err := locator.LoadTable(Path(dir, name))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if bundled, berr := Embedded(name); berr == nil {
		return bundled, nil
	}
	return nil, err
}

// Save writes t to dir/<page>.yaml.
func Save(dir string, t *locator.Table) (string, error) {
	data, err := t.Encode()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating locator dir: %w", err)
	}
	p := Path(dir, t.Page())
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("writing locator table: %w", err)
	}
	return p, nil
}

func mustEmbedded(page string) *locator.Table {
	t, err := Embedded(page)
	if err != nil {
		panic(fmt.Sprintf("bundled locator table %s: %v", page, err))
	}
	return t
}
