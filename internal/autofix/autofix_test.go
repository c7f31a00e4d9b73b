package autofix

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/llm"
	"github.com/testforge/e2ekit/internal/locators"
	"github.com/testforge/e2ekit/pkg/locator"
)

type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, _, user string) (string, *llm.Usage, error) {
	f.prompts = append(f.prompts, user)
	if f.err != nil {
		return "", nil, f.err
	}
	return f.reply, &llm.Usage{}, nil
}

func replyWith(t *testing.T, v any) *fakeCompleter {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return &fakeCompleter{reply: string(data)}
}

const brokenTest = `package login_test

import "testing"

func TestLogin(t *testing.T) {
	time.Sleep(5)
}
`

const fixedTest = `package login_test

import (
"testing"
"time"
)

func TestLogin(t *testing.T) {
	time.Sleep(5 * time.Second)
}
`

func writeTest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "login_test.go")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVerify_AppliesFixAndKeepsBackupOnErrors(t *testing.T) {
	path := writeTest(t, brokenTest)
	c := replyWith(t, Review{
		HasIssues: true,
		Issues: []Issue{
			{Line: 6, Severity: domain.SeverityError, Issue: "time is not imported", Suggestion: "import time"},
			{Line: 6, Severity: "critical", Issue: "sleep of 5ns", Suggestion: "use time.Second"},
		},
		FixedCode:   fixedTest,
		Explanation: "added the import",
	})

	res, err := NewVerifier(c, nil).Verify(context.Background(), path, VerifyOptions{})
	require.NoError(t, err)

	assert.True(t, res.Applied)
	assert.True(t, res.BackupKept())
	assert.Equal(t, path+BackupSuffix, res.Backup)
	assert.Equal(t, 1, res.Review.Count(domain.SeverityError))
	assert.Equal(t, 1, res.Review.Count(domain.SeverityWarning))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "\t\"time\"\n", "fixed code is gofmt'ed")

	backup, err := os.ReadFile(res.Backup)
	require.NoError(t, err)
	assert.Equal(t, brokenTest, string(backup))

	require.Len(t, c.prompts, 1)
	assert.Contains(t, c.prompts[0], "time.Sleep(5)")
}

func TestVerify_RemovesBackupWithoutErrors(t *testing.T) {
	path := writeTest(t, brokenTest)
	c := replyWith(t, Review{
		HasIssues: true,
		Issues:    []Issue{{Line: 6, Severity: domain.SeverityInfo, Issue: "magic number"}},
		FixedCode: fixedTest,
	})

	res, err := NewVerifier(c, nil).Verify(context.Background(), path, VerifyOptions{})
	require.NoError(t, err)

	assert.True(t, res.Applied)
	assert.False(t, res.BackupKept())
	assert.NoFileExists(t, path+BackupSuffix)
	assert.Equal(t, "No explanation provided", res.Review.Explanation)
}

func TestVerify_NoFix(t *testing.T) {
	path := writeTest(t, brokenTest)
	c := replyWith(t, Review{
		HasIssues: true,
		Issues:    []Issue{{Line: 6, Severity: domain.SeverityError, Issue: "time is not imported"}},
		FixedCode: fixedTest,
	})

	res, err := NewVerifier(c, nil).Verify(context.Background(), path, VerifyOptions{NoFix: true})
	require.NoError(t, err)

	assert.False(t, res.Applied)
	assert.True(t, res.BackupKept())
	written, _ := os.ReadFile(path)
	assert.Equal(t, brokenTest, string(written))
}

func TestVerify_NoIssues(t *testing.T) {
	path := writeTest(t, fixedTest)
	c := replyWith(t, Review{HasIssues: false, Explanation: "looks good"})

	res, err := NewVerifier(c, nil).Verify(context.Background(), path, VerifyOptions{})
	require.NoError(t, err)

	assert.False(t, res.Applied)
	assert.False(t, res.BackupKept())
	assert.NoFileExists(t, path+BackupSuffix)
	written, _ := os.ReadFile(path)
	assert.Equal(t, fixedTest, string(written))
}

func TestVerify_RejectsInvalidGo(t *testing.T) {
	path := writeTest(t, brokenTest)
	c := replyWith(t, Review{
		HasIssues: true,
		Issues:    []Issue{{Severity: domain.SeverityError, Issue: "x"}},
		FixedCode: "package login_test\n\nfunc {",
	})

	res, err := NewVerifier(c, nil).Verify(context.Background(), path, VerifyOptions{})
	assert.ErrorIs(t, err, domain.ErrVerificationSentinel)
	require.NotNil(t, res)
	assert.False(t, res.Applied)
	assert.FileExists(t, path+BackupSuffix)
	written, _ := os.ReadFile(path)
	assert.Equal(t, brokenTest, string(written))
}

func TestVerify_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewVerifier(&fakeCompleter{}, nil).Verify(context.Background(), filepath.Join(t.TempDir(), "nope_test.go"), VerifyOptions{})
		assert.ErrorIs(t, err, domain.ErrNotFoundSentinel)
	})

	t.Run("model failure keeps backup", func(t *testing.T) {
		path := writeTest(t, brokenTest)
		c := &fakeCompleter{err: domain.ErrServiceUnavailable("openrouter")}

		res, err := NewVerifier(c, nil).Verify(context.Background(), path, VerifyOptions{})
		assert.ErrorIs(t, err, domain.ErrUnavailableSentinel)
		require.NotNil(t, res)
		assert.FileExists(t, res.Backup)
	})
}

func TestSanitize(t *testing.T) {
	r := sanitize(Review{FixedCode: `package x\n\nfunc A() {}\n`}, "orig")
	assert.Equal(t, "package x\n\nfunc A() {}\n", r.FixedCode)
	assert.NotNil(t, r.Issues)

	r = sanitize(Review{FixedCode: "  "}, "orig")
	assert.Equal(t, "orig", r.FixedCode)

	r = sanitize(Review{Issues: []Issue{{Severity: domain.SeverityInfo}}}, "orig")
	assert.True(t, r.HasIssues)
}

func loginTable(t *testing.T) *locator.Table {
	t.Helper()
	table, err := locator.NewTable("login", map[string]map[string]locator.Strategy{
		"form": {
			"email":  {Primary: "#email", Fallback: `input[type="email"]`, Description: "Email field"},
			"submit": {Primary: "#submit", Description: "Submit button"},
		},
	})
	require.NoError(t, err)
	return table
}

func TestHeal(t *testing.T) {
	table := loginTable(t)
	c := replyWith(t, Repair{
		RepairedSelector: "#user-email",
		Alternatives: []Alternative{
			{Selector: `[data-testid="email"]`, Type: "testid", Confidence: 0.9},
			{Selector: `input[name="email"]`, Type: "css", Confidence: 0.7},
		},
		Explanation: "id was renamed",
		Confidence:  0.85,
		ChangeType:  "id_changed",
	})

	req := HealRequest{
		Table:    table,
		Category: "form",
		Element:  "email",
		PageURL:  "https://example.com/login",
		Error:    "locator exhausted",
		PageHTML: `<input id="user-email" data-testid="email">` + strings.Repeat(" ", MaxPromptHTML),
	}
	res, err := NewHealer(c, nil).Heal(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "#email", res.Previous.Primary)
	assert.Equal(t, "#user-email", res.Healed.Primary)
	assert.Equal(t, "#email", res.Healed.Fallback)
	assert.Equal(t, `[data-testid="email"]`, res.Healed.DataTestID)
	assert.Equal(t, "Email field", res.Healed.Description)

	require.Len(t, c.prompts, 1)
	assert.Contains(t, c.prompts[0], "login.form.email")
	assert.Contains(t, c.prompts[0], "primary=#email")
	assert.Contains(t, c.prompts[0], "locator exhausted")

	dir := t.TempDir()
	path, err := Apply(dir, req, res)
	require.NoError(t, err)
	assert.Equal(t, path, res.Path)

	saved, err := locators.Load(dir, "login")
	require.NoError(t, err)
	got, ok := saved.Get("form", "email")
	require.True(t, ok)
	assert.Equal(t, res.Healed, got)
	_, ok = saved.Get("form", "submit")
	assert.True(t, ok, "other strategies are kept")
}

func TestHeal_SameSelectorUsesAlternative(t *testing.T) {
	c := replyWith(t, Repair{
		RepairedSelector: "#submit",
		Alternatives: []Alternative{
			{Selector: `button:has-text("Sign in")`, Type: "text", Confidence: 0.6},
			{Selector: `[role="button"][name="submit"]`, Type: "role", Confidence: 0.8},
		},
	})

	res, err := NewHealer(c, nil).Heal(context.Background(), HealRequest{Table: loginTable(t), Category: "form", Element: "submit"})
	require.NoError(t, err)
	assert.Equal(t, `[role="button"][name="submit"]`, res.Healed.Primary)
	assert.Equal(t, "#submit", res.Healed.Fallback)
}

func TestHeal_Errors(t *testing.T) {
	table := loginTable(t)

	t.Run("no table", func(t *testing.T) {
		_, err := NewHealer(&fakeCompleter{}, nil).Heal(context.Background(), HealRequest{})
		assert.ErrorIs(t, err, domain.ErrValidationSentinel)
	})

	t.Run("unknown element", func(t *testing.T) {
		_, err := NewHealer(&fakeCompleter{}, nil).Heal(context.Background(), HealRequest{Table: table, Category: "form", Element: "phone"})
		assert.ErrorIs(t, err, domain.ErrNotFoundSentinel)
	})

	t.Run("no usable selector", func(t *testing.T) {
		c := replyWith(t, Repair{RepairedSelector: "#email"})
		_, err := NewHealer(c, nil).Heal(context.Background(), HealRequest{Table: table, Category: "form", Element: "email"})
		assert.ErrorIs(t, err, domain.ErrGenerationSentinel)
	})
}
