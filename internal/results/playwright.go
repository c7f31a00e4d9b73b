package results

import (
	"encoding/json"
	"io"
	"time"

	"github.com/testforge/e2ekit/internal/domain"
)

type pwReport struct {
	Suites []pwSuite `json:"suites"`
}

type pwSuite struct {
	Title  string    `json:"title"`
	File   string    `json:"file"`
	Specs  []pwSpec  `json:"specs"`
	Suites []pwSuite `json:"suites"`
}

type pwSpec struct {
	Title string   `json:"title"`
	OK    bool     `json:"ok"`
	File  string   `json:"file"`
	Line  int      `json:"line"`
	Tests []pwTest `json:"tests"`
}

type pwTest struct {
	ProjectName string     `json:"projectName"`
	Status      string     `json:"status"`
	Results     []pwResult `json:"results"`
}

type pwResult struct {
	Status      string       `json:"status"`
	Duration    float64      `json:"duration"`
	Retry       int          `json:"retry"`
	Error       *pwError     `json:"error"`
	Attachments []Attachment `json:"attachments"`
}

type pwError struct {
	Message string `json:"message"`
}

// isPlaywrightReport reports whether data is one JSON document with a
// top-level suites array.
func isPlaywrightReport(data []byte) bool {
	var probe struct {
		Suites json.RawMessage `json:"suites"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return len(probe.Suites) > 0 && probe.Suites[0] == '['
}

// ParsePlaywright reads a Playwright JSON reporter document. Nested suites
// are flattened; each spec yields one result per project it ran in.
func ParsePlaywright(r io.Reader) ([]Result, error) {
	var report pwReport
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return nil, domain.ErrParseFailed("playwright report", err)
	}

	var out []Result
	var walk func(top string, s pwSuite)
	walk = func(top string, s pwSuite) {
		for _, spec := range s.Specs {
			out = append(out, specResults(top, spec)...)
		}
		for _, child := range s.Suites {
			walk(top, child)
		}
	}
	for _, s := range report.Suites {
		top := s.Title
		if top == "" {
			top = s.File
		}
		walk(top, s)
	}
	return out, nil
}

func specResults(suite string, spec pwSpec) []Result {
	base := Result{
		ID:    ExtractTestID(spec.Title),
		Title: spec.Title,
		Suite: suite,
		File:  spec.File,
		Line:  spec.Line,
	}
	if len(spec.Tests) == 0 {
		base.Status = domain.StatusFail
		if spec.OK {
			base.Status = domain.StatusPass
		}
		return []Result{base}
	}

	out := make([]Result, 0, len(spec.Tests))
	for _, t := range spec.Tests {
		r := base
		r.Status = testStatus(spec.OK, t)
		if n := len(t.Results); n > 0 {
			last := t.Results[n-1]
			r.Duration = time.Duration(last.Duration * float64(time.Millisecond))
			r.Retry = last.Retry
			for _, res := range t.Results {
				if res.Error != nil && r.Error == "" {
					r.Error = res.Error.Message
				}
				r.Attachments = append(r.Attachments, res.Attachments...)
			}
		}
		out = append(out, r)
	}
	return out
}

func testStatus(ok bool, t pwTest) domain.Status {
	switch t.Status {
	case "flaky":
		return domain.StatusFlaky
	case "skipped":
		return domain.StatusSkipped
	case "expected":
		return domain.StatusPass
	case "unexpected":
		return domain.StatusFail
	}
	if ok {
		return domain.StatusPass
	}
	return domain.StatusFail
}
