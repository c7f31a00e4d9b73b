package locator

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTable = `
page: inputs
description: Inputs page
locators:
  inputs:
    number:
      primary: "#input-number"
      fallback: 'input[type="number"]'
      dataTestId: '[data-testid="input-number"]'
      description: Number input field
    text:
      primary: "#input-text"
  buttons:
    clear:
      primary: "#btn-clear-inputs"
      fallback: 'button:has-text("Clear")'
`

func TestParseTable(t *testing.T) {
	table, err := ParseTable([]byte(sampleTable))
	require.NoError(t, err)

	assert.Equal(t, "inputs", table.Page())
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"buttons", "inputs"}, table.Categories())
	assert.Equal(t, []string{"number", "text"}, table.Names("inputs"))

	s, ok := table.Get("inputs", "number")
	require.True(t, ok)
	assert.Equal(t, "#input-number", s.Primary)
	assert.Equal(t, `[data-testid="input-number"]`, s.DataTestID)
	assert.Equal(t, "Number input field", s.Description)

	text := table.MustGet("inputs", "text")
	assert.Equal(t, "inputs.inputs.text", text.Description, "missing descriptions default to the table path")
}

func TestParseTable_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "bad yaml", data: "page: [unterminated"},
		{name: "missing page", data: "locators: {}"},
		{name: "missing primary", data: "page: p\nlocators:\n  inputs:\n    a:\n      fallback: .a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTable([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestTable_Lookup(t *testing.T) {
	table, err := ParseTable([]byte(sampleTable))
	require.NoError(t, err)

	s, err := table.Lookup("buttons.clear")
	require.NoError(t, err)
	assert.Equal(t, "#btn-clear-inputs", s.Primary)

	_, err = table.Lookup("buttons.display")
	assert.ErrorIs(t, err, ErrUnknownLocator)

	_, err = table.Lookup("nodot")
	assert.ErrorIs(t, err, ErrUnknownLocator)

	assert.Panics(t, func() { table.MustGet("buttons", "display") })
}

func TestTable_IsImmutable(t *testing.T) {
	src := map[string]map[string]Strategy{
		"inputs": {"a": {Primary: "#a"}},
	}
	table, err := NewTable("p", src)
	require.NoError(t, err)

	src["inputs"]["a"] = Strategy{Primary: "#changed"}
	assert.Equal(t, "#a", table.MustGet("inputs", "a").Primary)

	file := table.File()
	file.Locators["inputs"]["a"] = Strategy{Primary: "#changed"}
	assert.Equal(t, "#a", table.MustGet("inputs", "a").Primary)

	updated, err := table.With("inputs", "a", Strategy{Primary: "#b"})
	require.NoError(t, err)
	assert.Equal(t, "#b", updated.MustGet("inputs", "a").Primary)
	assert.Equal(t, "#a", table.MustGet("inputs", "a").Primary)
}

func TestTable_ConcurrentReads(t *testing.T) {
	table, err := ParseTable([]byte(sampleTable))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = table.Get("inputs", "number")
				_ = table.Categories()
			}
		}()
	}
	wg.Wait()
}

func TestTable_EncodeRoundTrip(t *testing.T) {
	table, err := ParseTable([]byte(sampleTable))
	require.NoError(t, err)

	data, err := table.Encode()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "inputs.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, table.File(), loaded.File())
}

func TestLoadTable_MissingFile(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
