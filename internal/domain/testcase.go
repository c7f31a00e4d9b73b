package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Step is one structured action of a test case
type Step struct {
	Order       int    `json:"order"`
	Description string `json:"description"`
	Action      string `json:"action" validate:"required"`
	Locator     string `json:"locator,omitempty"`
	Value       string `json:"value,omitempty"`
}

// TestCase is one designed test
type TestCase struct {
	ID             string         `json:"id" validate:"required"`
	Suite          string         `json:"suite"`
	Title          string         `json:"title" validate:"required"`
	Type           TestType       `json:"type"`
	Priority       Priority       `json:"priority"`
	Preconditions  string         `json:"preconditions"`
	Steps          []Step         `json:"steps" validate:"dive"`
	ExpectedResult string         `json:"expectedResult"`
	TestData       map[string]any `json:"testData,omitempty"`
	Status         Status         `json:"status"`
	ExecutionTime  string         `json:"executionTime,omitempty"`
	FlakyCount     int            `json:"flakyCount,omitempty"`
	Comments       string         `json:"comments"`
}

// SortedSteps returns the steps ordered by Order
func (tc TestCase) SortedSteps() []Step {
	out := make([]Step, len(tc.Steps))
	copy(out, tc.Steps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// StepsText renders steps as numbered lines, the CSV form
func (tc TestCase) StepsText() string {
	var b strings.Builder
	for i, s := range tc.SortedSteps() {
		if i > 0 {
			b.WriteByte('\n')
		}
		n := s.Order
		if n == 0 {
			n = i + 1
		}
		fmt.Fprintf(&b, "%d. %s", n, s.Description)
	}
	return b.String()
}

// TestDataText renders test data as "key: value" pairs in key order
func (tc TestCase) TestDataText() string {
	keys := make([]string, 0, len(tc.TestData))
	for k := range tc.TestData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %v", k, tc.TestData[k])
	}
	return strings.Join(parts, ", ")
}

// Analysis is the page assessment a generator attaches to a suite
type Analysis struct {
	PageType             string   `json:"pageType,omitempty"`
	Complexity           string   `json:"complexity,omitempty"`
	CriticalFlows        []string `json:"criticalFlows,omitempty"`
	RiskAreas            []string `json:"riskAreas,omitempty"`
	RecommendedTestCount string   `json:"recommendedTestCount,omitempty"`
}

// Suite is a JSON test suite. Older files carry a flat testCases list
// instead of the three category lists; both are honored.
type Suite struct {
	Name          string     `json:"name" validate:"required"`
	URL           string     `json:"url" validate:"omitempty,url"`
	Description   string     `json:"description"`
	Timestamp     string     `json:"timestamp"`
	Analysis      *Analysis  `json:"analysis,omitempty"`
	PositiveCases []TestCase `json:"positiveCases" validate:"dive"`
	NegativeCases []TestCase `json:"negativeCases" validate:"dive"`
	EdgeCases     []TestCase `json:"edgeCases" validate:"dive"`
	TestCases     []TestCase `json:"testCases,omitempty" validate:"dive"`
}

// NewSuite creates an empty suite stamped with the current time
func NewSuite(name, url, description string) *Suite {
	return &Suite{
		Name:          name,
		URL:           url,
		Description:   description,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		PositiveCases: []TestCase{},
		NegativeCases: []TestCase{},
		EdgeCases:     []TestCase{},
	}
}

// AllCases returns positive, negative, edge and flat cases in that order
func (s *Suite) AllCases() []TestCase {
	out := make([]TestCase, 0, s.Total())
	out = append(out, s.PositiveCases...)
	out = append(out, s.NegativeCases...)
	out = append(out, s.EdgeCases...)
	out = append(out, s.TestCases...)
	return out
}

// Total returns the number of cases in the suite
func (s *Suite) Total() int {
	return len(s.PositiveCases) + len(s.NegativeCases) + len(s.EdgeCases) + len(s.TestCases)
}

// CountByType tallies cases per test type
func (s *Suite) CountByType() map[TestType]int {
	out := make(map[TestType]int, 3)
	for _, tc := range s.AllCases() {
		out[tc.Type]++
	}
	return out
}

// Normalize fills defaults every consumer relies on: nil lists become
// empty, cases inherit the suite name and their list's type, missing status
// is Not Run, missing step order follows position.
func (s *Suite) Normalize() {
	if s.PositiveCases == nil {
		s.PositiveCases = []TestCase{}
	}
	if s.NegativeCases == nil {
		s.NegativeCases = []TestCase{}
	}
	if s.EdgeCases == nil {
		s.EdgeCases = []TestCase{}
	}
	groups := []struct {
		cases []TestCase
		typ   TestType
	}{
		{s.PositiveCases, TestTypeHappyPath},
		{s.NegativeCases, TestTypeNegative},
		{s.EdgeCases, TestTypeEdgeCase},
		{s.TestCases, ""},
	}
	for _, g := range groups {
		for i := range g.cases {
			tc := &g.cases[i]
			if tc.Type == "" {
				tc.Type = g.typ
			}
			if tc.Suite == "" {
				tc.Suite = s.Name
			}
			if tc.Status == "" {
				tc.Status = StatusNotRun
			}
			for j := range tc.Steps {
				if tc.Steps[j].Order == 0 {
					tc.Steps[j].Order = j + 1
				}
			}
		}
	}
}
