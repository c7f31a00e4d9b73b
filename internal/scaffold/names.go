// Package scaffold writes starter locator tables, page objects and Go
// tests for a suite.
package scaffold

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/testforge/e2ekit/internal/domain"
)

var nonWord = regexp.MustCompile(`[^A-Za-z0-9]+`)

// words splits s on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(nonWord.ReplaceAllString(s, " "), unicode.IsSpace)
}

// Exported turns "login page" or "login-page" into "LoginPage".
func Exported(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	out := b.String()
	if out == "" {
		return "Suite"
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "S" + out
	}
	return out
}

// unexported turns "submit button" into "submitButton".
func unexported(s string) string {
	e := Exported(s)
	return strings.ToLower(e[:1]) + e[1:]
}

// PackageName turns a suite name into a Go package name: "Login Page"
// becomes "login_page".
func PackageName(s string) string {
	parts := words(strings.ToLower(s))
	out := strings.Join(parts, "_")
	if out == "" {
		return "suite"
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "s" + out
	}
	return out
}

// writeNew writes data to path, creating parent directories. Unless force
// is set an existing file is left alone and ErrFileExists returned.
func writeNew(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return domain.ErrFileExists(path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return domain.ErrIO("checking", path, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.ErrIO("creating", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.ErrIO("writing", path, err)
	}
	return nil
}
