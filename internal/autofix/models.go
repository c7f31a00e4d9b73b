// Package autofix reviews generated test files and repairs broken
// selectors with the help of a language model.
package autofix

import (
	"time"

	"github.com/google/uuid"

	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/pkg/locator"
)

// BackupSuffix is appended to a test file before it is rewritten.
const BackupSuffix = ".backup"

// Issue is one finding of a review
type Issue struct {
	Line       int             `json:"line"`
	Severity   domain.Severity `json:"severity"`
	Issue      string          `json:"issue"`
	Suggestion string          `json:"suggestion"`
}

// Review is the model's verdict on a test file
type Review struct {
	HasIssues   bool    `json:"hasIssues"`
	Issues      []Issue `json:"issues"`
	FixedCode   string  `json:"fixedCode"`
	Explanation string  `json:"explanation"`
}

// Count returns how many issues have severity s
func (r Review) Count(s domain.Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == s {
			n++
		}
	}
	return n
}

// Critical reports whether any issue is an error
func (r Review) Critical() bool {
	return r.Count(domain.SeverityError) > 0
}

// VerifyOptions controls a verification run
type VerifyOptions struct {
	// NoFix reports issues without rewriting the file.
	NoFix bool
}

// Verification is the outcome of Verifier.Verify
type Verification struct {
	ID       uuid.UUID     `json:"id"`
	File     string        `json:"file"`
	Backup   string        `json:"backup,omitempty"`
	Review   Review        `json:"review"`
	Applied  bool          `json:"applied"`
	Duration time.Duration `json:"duration"`
}

// BackupKept reports whether the backup file was left on disk
func (v *Verification) BackupKept() bool {
	return v.Backup != ""
}

// HealRequest identifies a strategy that failed on a live page
type HealRequest struct {
	Table    *locator.Table
	Category string
	Element  string
	PageURL  string
	Error    string
	PageHTML string
}

// Alternative is a secondary selector suggested by the model
type Alternative struct {
	Selector   string  `json:"selector"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Repair is the model's reply to a selector repair prompt
type Repair struct {
	RepairedSelector string        `json:"repaired_selector"`
	Alternatives     []Alternative `json:"alternative_selectors,omitempty"`
	Explanation      string        `json:"explanation"`
	Confidence       float64       `json:"confidence"`
	ChangeType       string        `json:"change_type"`
	RootCause        string        `json:"root_cause"`
}

// HealResult carries the repaired strategy next to the one it replaces
type HealResult struct {
	ID       uuid.UUID        `json:"id"`
	Path     string           `json:"path"`
	Previous locator.Strategy `json:"previous"`
	Healed   locator.Strategy `json:"healed"`
	Repair   Repair           `json:"repair"`
}
