package analysis

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/testforge/e2ekit/internal/domain"
)

// FixesFile is the name of the saved fix proposals.
const FixesFile = "suggested-fixes.json"

// Fix is a proposed change to one line of a test file
type Fix struct {
	TestID        string            `json:"test_id"`
	File          string            `json:"file"`
	Line          int               `json:"line"`
	Issue         string            `json:"issue"`
	Confidence    domain.Confidence `json:"confidence"`
	CurrentCode   string            `json:"current_code"`
	SuggestedCode string            `json:"suggested_code"`
	AutoApplied   bool              `json:"auto_applied"`
}

var secondsLiteral = regexp.MustCompile(`\b(\d+)\s*\*\s*time\.Second\b`)

// ProposeFixes derives fixes for the failures of rep. Source lines are read
// from files under root; a failure without a readable location still gets
// a suggestion, at low confidence.
func ProposeFixes(root string, rep Report) []Fix {
	var fixes []Fix
	for _, f := range rep.Failures {
		current := sourceLine(root, f.File, f.Line)
		fix := Fix{
			TestID:      f.Name(),
			File:        f.File,
			Line:        f.Line,
			CurrentCode: current,
			Confidence:  domain.ConfidenceLow,
		}

		switch f.Cause {
		case CauseTimeout:
			fix.Issue = "Selector timeout - element not found"
			if m := secondsLiteral.FindStringSubmatch(current); m != nil {
				n, _ := strconv.Atoi(m[1])
				fix.SuggestedCode = strings.Replace(current, m[0], fmt.Sprintf("%d * time.Second", n*2), 1)
				fix.Confidence = domain.ConfidenceHigh
			} else {
				fix.SuggestedCode = "pages.WithResolverOptions(locator.WithTimeout(10 * time.Second))"
				fix.Confidence = domain.ConfidenceMedium
			}
		case CauseSelector:
			fix.Issue = "Selector not found - locator needs repair"
			fix.SuggestedCode = "e2ekit heal --table <table> --category <category> --element <name> --url <page>"
			fix.Confidence = domain.ConfidenceMedium
		case CauseNavigation:
			fix.Issue = "Navigation failed"
			if strings.Contains(current, "pages.WaitNetworkIdle") {
				fix.SuggestedCode = strings.Replace(current, "pages.WaitNetworkIdle", "pages.WaitDOMContentLoaded", 1)
				fix.Confidence = domain.ConfidenceMedium
			} else {
				fix.SuggestedCode = "verify the base URL and wait for pages.WaitLoad before interacting"
			}
		case CauseAssertion:
			fix.Issue = "Assertion failed - review expected value"
			fix.SuggestedCode = "compare the expected value with the page state captured in the screenshot"
		default:
			continue
		}
		fixes = append(fixes, fix)
	}
	return fixes
}

// ApplyFixes rewrites the source line of every high-confidence fix whose
// current code is still present, marking it applied. It returns how many
// fixes were applied.
func ApplyFixes(root string, fixes []Fix) (int, error) {
	applied := 0
	for i := range fixes {
		f := &fixes[i]
		if f.Confidence != domain.ConfidenceHigh || f.CurrentCode == "" || f.Line <= 0 {
			continue
		}
		path := filepath.Join(root, f.File)
		data, err := os.ReadFile(path)
		if err != nil {
			return applied, domain.ErrIO("reading", path, err)
		}
		lines := strings.Split(string(data), "\n")
		if f.Line > len(lines) || lines[f.Line-1] != f.CurrentCode {
			continue
		}
		lines[f.Line-1] = f.SuggestedCode
		if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
			return applied, domain.ErrIO("writing", path, err)
		}
		f.AutoApplied = true
		applied++
	}
	return applied, nil
}

// SaveFixes writes fixes as JSON to <dir>/suggested-fixes.json.
func SaveFixes(dir string, fixes []Fix) (string, error) {
	if fixes == nil {
		fixes = []Fix{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domain.ErrIO("creating", dir, err)
	}
	data, err := json.MarshalIndent(fixes, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FixesFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", domain.ErrIO("writing", path, err)
	}
	return path, nil
}

// sourceLine returns line n of root/file, or "" when unreadable.
func sourceLine(root, file string, n int) string {
	if file == "" || n <= 0 {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(root, file))
	if err != nil {
		return ""
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for i := 1; sc.Scan(); i++ {
		if i == n {
			return sc.Text()
		}
	}
	return ""
}
