package locators

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/e2ekit/pkg/locator"
)

func TestBundledTables(t *testing.T) {
	assert.Equal(t, []string{"base", "inputs", "landing", "login"}, Names())

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			tbl, err := Embedded(name)
			require.NoError(t, err)
			assert.Equal(t, name, tbl.Page())
			assert.Positive(t, tbl.Len())
		})
	}
}

func TestInputs(t *testing.T) {
	tbl := Inputs()
	assert.Same(t, tbl, Inputs())

	number := tbl.MustGet("inputs", "number")
	assert.Equal(t, "#input-number", number.Primary)
	assert.Equal(t, `[data-testid="input-number"]`, number.DataTestID)
	assert.Equal(t, `input[type="number"]`, number.Fallback)
	assert.Equal(t, "Number input field", number.Description)

	assert.Equal(t, []string{"buttons", "inputs", "outputs"}, tbl.Categories())
	assert.Equal(t, []string{"date", "number", "password", "text"}, tbl.Names("outputs"))

	clear := tbl.MustGet("buttons", "clear")
	assert.Equal(t, `button:has-text("Clear")`, clear.Fallback)
}

func TestBase_OptionalDataTestID(t *testing.T) {
	header := Base().MustGet("navigation", "header")
	assert.Empty(t, header.DataTestID)
	assert.Len(t, header.Candidates(), 2)
}

func TestEmbedded_Unknown(t *testing.T) {
	_, err := Embedded("nope")
	assert.ErrorIs(t, err, locator.ErrUnknownLocator)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("falls back to bundled table", func(t *testing.T) {
		tbl, err := Load(dir, "login")
		require.NoError(t, err)
		assert.Equal(t, "input#email", tbl.MustGet("inputs", "email").Primary)
	})

	t.Run("prefers file on disk", func(t *testing.T) {
		custom, err := Login().With("inputs", "email", locator.MustNew("Email", "#user-email", "", ""))
		require.NoError(t, err)
		p, err := Save(dir, custom)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "login.yaml"), p)

		tbl, err := Load(dir, "login")
		require.NoError(t, err)
		assert.Equal(t, "#user-email", tbl.MustGet("inputs", "email").Primary)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := Load(dir, "checkout")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid file is not masked", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "inputs.yaml"), []byte("page: inputs\nlocators:\n  a:\n    b:\n      fallback: x\n"), 0o644))
		_, err := Load(dir, "inputs")
		assert.Error(t, err)
	})
}
