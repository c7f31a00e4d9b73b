// Package testsuite reads and writes designed test cases: the 13-column
// CSV sheet and the JSON suites produced by AI generation.
package testsuite

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/testforge/e2ekit/internal/domain"
)

// Headers are the CSV columns, in order.
var Headers = []string{
	"Test ID",
	"Test Suite",
	"Test Case Title",
	"Test Type",
	"Priority",
	"Preconditions",
	"Test Steps",
	"Expected Result",
	"Test Data",
	"Status",
	"Execution Time",
	"Flaky Count",
	"Comments",
}

// Column indexes of the fields the result updater rewrites.
const (
	ColStatus        = 9
	ColExecutionTime = 10
	ColFlakyCount    = 11
	ColComments      = 12
)

// Row is one CSV test case. Every field is kept as text so a sheet edited
// by hand round-trips unchanged.
type Row struct {
	ID             string
	Suite          string
	Title          string
	Type           string
	Priority       string
	Preconditions  string
	Steps          string
	ExpectedResult string
	TestData       string
	Status         string
	ExecutionTime  string
	FlakyCount     string
	Comments       string
}

// Record returns the row in column order.
func (r Row) Record() []string {
	return []string{
		r.ID, r.Suite, r.Title, r.Type, r.Priority, r.Preconditions, r.Steps,
		r.ExpectedResult, r.TestData, r.Status, r.ExecutionTime, r.FlakyCount, r.Comments,
	}
}

// RowFromRecord maps a CSV record onto a Row. Short records are padded.
func RowFromRecord(rec []string) (Row, error) {
	if len(rec) > len(Headers) {
		return Row{}, fmt.Errorf("record has %d fields, want at most %d", len(rec), len(Headers))
	}
	f := make([]string, len(Headers))
	copy(f, rec)
	return Row{
		ID: f[0], Suite: f[1], Title: f[2], Type: f[3], Priority: f[4],
		Preconditions: f[5], Steps: f[6], ExpectedResult: f[7], TestData: f[8],
		Status: f[9], ExecutionTime: f[10], FlakyCount: f[11], Comments: f[12],
	}, nil
}

// RowFromCase renders a structured test case as a CSV row.
func RowFromCase(tc domain.TestCase) Row {
	status := tc.Status
	if status == "" {
		status = domain.StatusNotRun
	}
	return Row{
		ID:             tc.ID,
		Suite:          tc.Suite,
		Title:          tc.Title,
		Type:           string(tc.Type),
		Priority:       string(tc.Priority),
		Preconditions:  tc.Preconditions,
		Steps:          tc.StepsText(),
		ExpectedResult: tc.ExpectedResult,
		TestData:       tc.TestDataText(),
		Status:         string(status),
		ExecutionTime:  tc.ExecutionTime,
		FlakyCount:     strconv.Itoa(tc.FlakyCount),
		Comments:       tc.Comments,
	}
}

// RowsFromSuite renders every case of s.
func RowsFromSuite(s *domain.Suite) []Row {
	cases := s.AllCases()
	out := make([]Row, len(cases))
	for i, tc := range cases {
		if tc.Suite == "" {
			tc.Suite = s.Name
		}
		out[i] = RowFromCase(tc)
	}
	return out
}

// WriteCSV writes the header and rows. Fields containing a comma, quote or
// newline are quoted.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a sheet written by WriteCSV or edited by hand. The header
// must match Headers; blank lines are skipped.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, domain.ErrParseFailed("test case CSV", fmt.Errorf("missing header"))
	}
	if err != nil {
		return nil, domain.ErrParseFailed("test case CSV", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, domain.ErrParseFailed("test case CSV", err)
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domain.ErrParseFailed("test case CSV", err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row, err := RowFromRecord(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, domain.ErrParseFailed("test case CSV", fmt.Errorf("line %d: %w", line, err))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func checkHeader(h []string) error {
	if len(h) != len(Headers) {
		return fmt.Errorf("header has %d columns, want %d", len(h), len(Headers))
	}
	for i, want := range Headers {
		if got := strings.TrimSpace(strings.TrimPrefix(h[i], "\ufeff")); got != want {
			return fmt.Errorf("column %d is %q, want %q", i+1, got, want)
		}
	}
	return nil
}

// CSVPath is where the sheet of suite lives under dir.
func CSVPath(dir, suite string) string {
	return filepath.Join(dir, FileStem(suite)+"-test-cases.csv")
}

// WriteCSVFile writes rows to path, creating its directory.
func WriteCSVFile(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.ErrIO("creating directory for", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return domain.ErrIO("creating", path, err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return domain.ErrIO("writing", path, err)
	}
	if err := f.Close(); err != nil {
		return domain.ErrIO("closing", path, err)
	}
	return nil
}

// ReadCSVFile reads the sheet at path.
func ReadCSVFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening test case CSV: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// Template returns the three starter cases a new sheet begins with: a happy
// path, a negative and an edge case, none run yet.
func Template(suite string) []Row {
	return []Row{
		{
			ID:             "TC-001",
			Suite:          suite,
			Title:          "Valid user flow - Happy path",
			Type:           string(domain.TestTypeHappyPath),
			Priority:       string(domain.PriorityHigh),
			Preconditions:  "User account exists, Browser open",
			Steps:          "1. Navigate to homepage\n2. Enter valid credentials\n3. Click submit\n4. Verify success",
			ExpectedResult: "User successfully completes the flow",
			TestData:       "username: test@example.com, password: Test123!",
			Status:         string(domain.StatusNotRun),
			FlakyCount:     "0",
		},
		{
			ID:             "TC-002",
			Suite:          suite,
			Title:          "Invalid input - Error handling",
			Type:           string(domain.TestTypeNegative),
			Priority:       string(domain.PriorityHigh),
			Preconditions:  "Browser open",
			Steps:          "1. Navigate to homepage\n2. Enter invalid data\n3. Click submit\n4. Verify error message",
			ExpectedResult: "Error message displayed: Invalid input",
			TestData:       "username: invalid",
			Status:         string(domain.StatusNotRun),
			FlakyCount:     "0",
		},
		{
			ID:             "TC-003",
			Suite:          suite,
			Title:          "Empty input fields",
			Type:           string(domain.TestTypeEdgeCase),
			Priority:       string(domain.PriorityMedium),
			Preconditions:  "Browser open",
			Steps:          "1. Navigate to homepage\n2. Leave all fields empty\n3. Click submit\n4. Verify validation",
			ExpectedResult: "Validation error: Required fields empty",
			Status:         string(domain.StatusNotRun),
			FlakyCount:     "0",
		},
	}
}

// CountByType tallies rows per test type column.
func CountByType(rows []Row) map[string]int {
	out := make(map[string]int)
	for _, r := range rows {
		out[r.Type]++
	}
	return out
}
