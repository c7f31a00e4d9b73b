package analysis

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/results"
)

const loginTest = `package e2e

func TestLogin(t *testing.T) {
	page.WaitVisible(ctx, submit, 5 * time.Second)
	page.Navigate(ctx, "/login", pages.WaitNetworkIdle)
}
`

func writeSource(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "login_test.go"), []byte(loginTest), 0o644))
	return root
}

func failure(id, msg, file string, line int) results.Result {
	return results.Result{ID: id, Title: id, Status: domain.StatusFail, Error: msg, File: file, Line: line}
}

func TestProposeFixes(t *testing.T) {
	root := writeSource(t)
	rep := Analyze([]results.Result{
		failure("TC-001", "Timeout 5000ms exceeded", "login_test.go", 4),
		failure("TC-002", "Timeout 5000ms exceeded", "", 0),
		failure("TC-003", "no matching selector for Submit", "login_test.go", 4),
		failure("TC-004", "Navigation to /login failed", "login_test.go", 5),
		failure("TC-005", "expected true", "missing_test.go", 1),
		failure("TC-006", "segfault", "login_test.go", 4),
	}, fixedNow)

	fixes := ProposeFixes(root, rep)
	require.Len(t, fixes, 5, "unknown causes get no fix")

	timeout := fixes[0]
	assert.Equal(t, "\tpage.WaitVisible(ctx, submit, 5 * time.Second)", timeout.CurrentCode)
	assert.Equal(t, "\tpage.WaitVisible(ctx, submit, 10 * time.Second)", timeout.SuggestedCode)
	assert.Equal(t, domain.ConfidenceHigh, timeout.Confidence)

	assert.Equal(t, domain.ConfidenceMedium, fixes[1].Confidence)
	assert.Empty(t, fixes[1].CurrentCode)
	assert.Contains(t, fixes[1].SuggestedCode, "locator.WithTimeout")

	assert.Contains(t, fixes[2].SuggestedCode, "e2ekit heal")

	assert.Equal(t, `	page.Navigate(ctx, "/login", pages.WaitDOMContentLoaded)`, fixes[3].SuggestedCode)

	assert.Equal(t, domain.ConfidenceLow, fixes[4].Confidence)
	assert.Empty(t, fixes[4].CurrentCode)
}

func TestApplyFixes(t *testing.T) {
	root := writeSource(t)
	rep := Analyze([]results.Result{
		failure("TC-001", "Timeout 5000ms exceeded", "login_test.go", 4),
		failure("TC-004", "Navigation failed", "login_test.go", 5),
	}, fixedNow)
	fixes := ProposeFixes(root, rep)

	n, err := ApplyFixes(root, fixes)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only high-confidence fixes are applied")
	assert.True(t, fixes[0].AutoApplied)
	assert.False(t, fixes[1].AutoApplied)

	data, err := os.ReadFile(filepath.Join(root, "login_test.go"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "10 * time.Second")
	assert.True(t, strings.HasSuffix(string(data), "}\n"), "trailing newline kept")

	n, err = ApplyFixes(root, []Fix{{File: "login_test.go", Line: 4, Confidence: domain.ConfidenceHigh,
		CurrentCode: "\tpage.WaitVisible(ctx, submit, 5 * time.Second)", SuggestedCode: "x"}})
	require.NoError(t, err)
	assert.Zero(t, n, "stale fixes are skipped")
}

func TestSaveFixes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "analysis")
	path, err := SaveFixes(dir, []Fix{{TestID: "TC-001", Confidence: domain.ConfidenceHigh, AutoApplied: true}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "suggested-fixes.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "TC-001", got[0]["test_id"])
	assert.Equal(t, "high", got[0]["confidence"])
	assert.Equal(t, true, got[0]["auto_applied"])

	path, err = SaveFixes(dir, nil)
	require.NoError(t, err)
	data, _ = os.ReadFile(path)
	assert.Equal(t, "[]", string(data))
}
