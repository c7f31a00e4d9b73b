package testsuite

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/results"
)

// MaxCommentLength bounds the failure message copied into Comments.
const MaxCommentLength = 100

// UpdateResults copies outcomes onto the matching rows in place and returns
// how many rows changed. Results are matched by the TC id in their title.
// Status and Execution Time (seconds, two decimals) are always set; a
// failure also sets Comments to its truncated error and a flaky pass bumps
// Flaky Count.
func UpdateResults(rows []Row, rs []results.Result) int {
	byID := results.ByID(rs)
	updated := 0
	for i := range rows {
		r, ok := byID[rows[i].ID]
		if !ok || rows[i].ID == "" {
			continue
		}
		row := &rows[i]
		row.Status = string(csvStatus(r.Status))
		row.ExecutionTime = fmt.Sprintf("%.2f", r.Duration.Seconds())
		switch r.Status {
		case domain.StatusFail:
			row.Comments = truncate(r.Error, MaxCommentLength)
		case domain.StatusFlaky:
			n, _ := strconv.Atoi(row.FlakyCount)
			row.FlakyCount = strconv.Itoa(n + 1)
		}
		updated++
	}
	return updated
}

func csvStatus(s domain.Status) domain.Status {
	if s == "" {
		return domain.StatusNotRun
	}
	return s
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
