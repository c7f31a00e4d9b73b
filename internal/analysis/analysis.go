// Package analysis classifies failed tests, renders the markdown failure
// report and proposes code fixes.
package analysis

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/results"
)

// Cause is the root-cause category of a failure
type Cause string

const (
	CauseTimeout    Cause = "Timeout - Element not found or page load slow"
	CauseSelector   Cause = "Selector Issue - Element locator incorrect or element not present"
	CauseAssertion  Cause = "Assertion Failure - Expected condition not met"
	CauseNavigation Cause = "Navigation Issue - Page navigation failed"
	CauseUnknown    Cause = "Unknown - Requires manual investigation"
)

// Short returns the category name without its explanation.
func (c Cause) Short() string {
	if i := strings.Index(string(c), " - "); i > 0 {
		return string(c)[:i]
	}
	return string(c)
}

// RootCause classifies an error message. Checks run in order, so a timeout
// while waiting for a locator counts as a timeout.
func RootCause(msg string) Cause {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "Timeout"), strings.Contains(lower, "waiting for"),
		strings.Contains(lower, "timed out"), strings.Contains(lower, "deadline exceeded"):
		return CauseTimeout
	case strings.Contains(lower, "locator"), strings.Contains(lower, "selector"):
		return CauseSelector
	case strings.Contains(lower, "expect"), strings.Contains(msg, "Not equal"),
		strings.Contains(msg, "Should be"), strings.Contains(msg, "Should not be"):
		return CauseAssertion
	case strings.Contains(lower, "navigat"), strings.Contains(msg, "net::ERR_"):
		return CauseNavigation
	}
	return CauseUnknown
}

var suggestions = map[Cause][]string{
	CauseTimeout: {
		"Increase timeout value",
		"Add explicit wait for element",
		"Check if element is dynamically loaded",
	},
	CauseSelector: {
		"Update selector in locator file",
		"Use fallback selector",
		"Add data-testid to element",
	},
	CauseAssertion: {
		"Review expected vs actual values",
		"Check test data validity",
		"Verify page state before assertion",
	},
	CauseNavigation: {
		"Verify the base URL and route",
		"Wait for the load state before interacting",
	},
}

// Suggestions returns the fix checklist for a cause. Unknown causes have none.
func Suggestions(c Cause) []string {
	s := suggestions[c]
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Failure is one analyzed failed test
type Failure struct {
	results.Result
	Cause       Cause    `json:"root_cause"`
	Suggestions []string `json:"suggestions"`
}

// Name is the test id when known, else its title.
func (f Failure) Name() string {
	if f.ID != "" {
		return f.ID
	}
	return f.Title
}

// Message is the error message, or a placeholder when the runner gave none.
func (f Failure) Message() string {
	if strings.TrimSpace(f.Error) == "" {
		return "Unknown error"
	}
	return f.Error
}

// Report is the analysis of one run
type Report struct {
	Generated time.Time `json:"generated"`
	Failures  []Failure `json:"failures"`
}

// ByCause groups failures per cause, keeping their order.
func (r Report) ByCause() map[Cause][]Failure {
	out := make(map[Cause][]Failure)
	for _, f := range r.Failures {
		out[f.Cause] = append(out[f.Cause], f)
	}
	return out
}

// Causes lists the causes present, most frequent first.
func (r Report) Causes() []Cause {
	groups := r.ByCause()
	out := make([]Cause, 0, len(groups))
	for c := range groups {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(groups[out[i]]) != len(groups[out[j]]) {
			return len(groups[out[i]]) > len(groups[out[j]])
		}
		return out[i] < out[j]
	})
	return out
}

// Analyze classifies every failed result in rs.
func Analyze(rs []results.Result, now time.Time) Report {
	rep := Report{Generated: now.UTC(), Failures: []Failure{}}
	for _, r := range results.Failures(rs) {
		c := RootCause(r.Error)
		rep.Failures = append(rep.Failures, Failure{
			Result:      r,
			Cause:       c,
			Suggestions: Suggestions(c),
		})
	}
	return rep
}

// Stamp renders t the way report file names carry it:
// 2024-03-09T14-05-07.
func Stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15-04-05")
}

// WriteMarkdown renders rep as a markdown document.
func WriteMarkdown(w io.Writer, rep Report) error {
	var b bytes.Buffer
	b.WriteString("# Test Failure Analysis Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n\n", Stamp(rep.Generated))
	fmt.Fprintf(&b, "**Total Failures:** %d\n\n", len(rep.Failures))

	if len(rep.Failures) > 0 {
		b.WriteString("| Root Cause | Failures |\n|---|---|\n")
		groups := rep.ByCause()
		for _, c := range rep.Causes() {
			fmt.Fprintf(&b, "| %s | %d |\n", c.Short(), len(groups[c]))
		}
		b.WriteString("\n")
	}
	b.WriteString("---\n\n")

	for i, f := range rep.Failures {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, f.Title)
		fmt.Fprintf(&b, "**Test ID:** %s\n\n", f.Name())
		if f.File != "" {
			loc := f.File
			if f.Line > 0 {
				loc = fmt.Sprintf("%s:%d", f.File, f.Line)
			}
			fmt.Fprintf(&b, "**Location:** `%s`\n\n", loc)
		}
		fmt.Fprintf(&b, "**Root Cause:** %s\n\n", f.Cause)
		fmt.Fprintf(&b, "**Error Message:**\n```\n%s\n```\n\n", f.Message())
		if s := f.Screenshot(); s != "" {
			fmt.Fprintf(&b, "**Screenshot:** `%s`\n\n", s)
		}
		if t := f.Trace(); t != "" {
			fmt.Fprintf(&b, "**Trace File:** `%s`\n\n", t)
		}
		b.WriteString("**Suggested Fixes:**\n")
		for _, s := range f.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n---\n\n")
	}

	_, err := w.Write(b.Bytes())
	return err
}

// Save writes the markdown report to
// <dir>/failure-analysis-<stamp>.md and returns the path.
func Save(dir string, rep Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domain.ErrIO("creating", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("failure-analysis-%s.md", Stamp(rep.Generated)))
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, rep); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", domain.ErrIO("writing", path, err)
	}
	return path, nil
}
