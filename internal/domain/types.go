package domain

import "strings"

// TestType is the category of a test case
type TestType string

const (
	TestTypeHappyPath TestType = "Happy Path"
	TestTypeNegative  TestType = "Negative"
	TestTypeEdgeCase  TestType = "Edge Case"
)

func (t TestType) IsValid() bool {
	switch t {
	case TestTypeHappyPath, TestTypeNegative, TestTypeEdgeCase:
		return true
	}
	return false
}

// Priority ranks a test case
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Status is the last known outcome of a test case
type Status string

const (
	StatusNotRun  Status = "Not Run"
	StatusPass    Status = "Pass"
	StatusFail    Status = "Fail"
	StatusFlaky   Status = "Flaky"
	StatusSkipped Status = "Skipped"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusNotRun, StatusPass, StatusFail, StatusFlaky, StatusSkipped:
		return true
	}
	return false
}

// IsTerminal reports whether the case has been executed
func (s Status) IsTerminal() bool {
	return s == StatusPass || s == StatusFail || s == StatusFlaky || s == StatusSkipped
}

// ParseStatus maps runner vocabulary (passed, failed, timedOut, flaky,
// skipped, pass, fail) onto Status. Unknown values map to StatusNotRun.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pass", "passed", "ok", "expected":
		return StatusPass
	case "fail", "failed", "timedout", "interrupted", "unexpected":
		return StatusFail
	case "flaky":
		return StatusFlaky
	case "skip", "skipped":
		return StatusSkipped
	}
	return StatusNotRun
}

// Severity grades a review finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Confidence grades a proposed fix
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)
