// Package results reads test outcomes from the Playwright JSON reporter and
// from `go test -json` streams into one flat model.
package results

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/testforge/e2ekit/internal/domain"
)

// Attachment is a file a runner recorded next to a result
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Path        string `json:"path,omitempty"`
}

// Result is the outcome of one executed test
type Result struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Suite       string        `json:"suite"`
	File        string        `json:"file,omitempty"`
	Line        int           `json:"line,omitempty"`
	Status      domain.Status `json:"status"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
	Retry       int           `json:"retry,omitempty"`
	Attachments []Attachment  `json:"attachments,omitempty"`
}

// Failed reports whether the result counts as a failure
func (r Result) Failed() bool {
	return r.Status == domain.StatusFail
}

// Screenshot returns the path of the screenshot attachment, if any
func (r Result) Screenshot() string {
	return r.attachment("screenshot")
}

// Trace returns the path of the trace attachment, if any
func (r Result) Trace() string {
	return r.attachment("trace")
}

func (r Result) attachment(name string) string {
	for _, a := range r.Attachments {
		if a.Name == name {
			return a.Path
		}
	}
	return ""
}

var testIDPattern = regexp.MustCompile(`TC-(?:[A-Z0-9]+-)*\d+`)

// ExtractTestID returns the first TC-… id in s (TC-001, TC-LOGIN-001), or "".
func ExtractTestID(s string) string {
	return testIDPattern.FindString(s)
}

// Parse detects the format of data and parses it.
func Parse(data []byte) ([]Result, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, domain.ErrParseFailed("test results", io.ErrUnexpectedEOF)
	}
	if isPlaywrightReport(trimmed) {
		return ParsePlaywright(bytes.NewReader(trimmed))
	}
	return ParseGoTest(bytes.NewReader(trimmed))
}

// ParseFile reads and parses a results file.
func ParseFile(path string) ([]Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results %s: %w", path, err)
	}
	return Parse(data)
}

// Failures filters rs down to failed results
func Failures(rs []Result) []Result {
	var out []Result
	for _, r := range rs {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

// ByID indexes results by test id. Results without an id are skipped; on
// duplicates the last one wins.
func ByID(rs []Result) map[string]Result {
	out := make(map[string]Result, len(rs))
	for _, r := range rs {
		if r.ID != "" {
			out[r.ID] = r
		}
	}
	return out
}

// Summary aggregates a run
type Summary struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Flaky    int           `json:"flaky"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// PassRate is the percentage of executed tests that passed, flaky included.
// Skipped tests do not count.
func (s Summary) PassRate() float64 {
	executed := s.Total - s.Skipped
	if executed == 0 {
		return 0
	}
	return float64(s.Passed+s.Flaky) / float64(executed) * 100
}

// Summarize tallies rs
func Summarize(rs []Result) Summary {
	var s Summary
	for _, r := range rs {
		s.Total++
		s.Duration += r.Duration
		switch r.Status {
		case domain.StatusPass:
			s.Passed++
		case domain.StatusFail:
			s.Failed++
		case domain.StatusFlaky:
			s.Flaky++
		case domain.StatusSkipped:
			s.Skipped++
		}
	}
	return s
}
