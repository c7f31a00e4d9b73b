package domain

import (
	"encoding/json"
	"testing"
)

func TestEnums_IsValid(t *testing.T) {
	for _, tt := range []TestType{TestTypeHappyPath, TestTypeNegative, TestTypeEdgeCase} {
		if !tt.IsValid() {
			t.Errorf("%q should be valid", tt)
		}
	}
	if TestType("Smoke").IsValid() {
		t.Error("Smoke should not be a valid test type")
	}
	if !PriorityLow.IsValid() || Priority("Urgent").IsValid() {
		t.Error("priority validation is wrong")
	}
	if !StatusFlaky.IsValid() || Status("Broken").IsValid() {
		t.Error("status validation is wrong")
	}
	if StatusNotRun.IsTerminal() || !StatusFail.IsTerminal() {
		t.Error("IsTerminal is wrong")
	}
}

func TestParseStatus(t *testing.T) {
	tests := map[string]Status{
		"passed":      StatusPass,
		"Pass":        StatusPass,
		"expected":    StatusPass,
		"failed":      StatusFail,
		"timedOut":    StatusFail,
		"unexpected":  StatusFail,
		"flaky":       StatusFlaky,
		"skipped":     StatusSkipped,
		"":            StatusNotRun,
		"interrupted": StatusFail,
		"whatever":    StatusNotRun,
	}
	for in, want := range tests {
		if got := ParseStatus(in); got != want {
			t.Errorf("ParseStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTestCase_StepsText(t *testing.T) {
	tc := TestCase{Steps: []Step{
		{Order: 2, Description: "Click submit"},
		{Order: 1, Description: "Fill email"},
		{Order: 3, Description: "Verify success"},
	}}

	want := "1. Fill email\n2. Click submit\n3. Verify success"
	if got := tc.StepsText(); got != want {
		t.Errorf("StepsText() = %q, want %q", got, want)
	}
	if tc.Steps[0].Order != 2 {
		t.Error("StepsText must not reorder the case's own steps")
	}
}

func TestTestCase_TestDataText(t *testing.T) {
	tc := TestCase{TestData: map[string]any{"username": "test@example.com", "password": "Test123!", "age": 42}}
	want := "age: 42, password: Test123!, username: test@example.com"
	if got := tc.TestDataText(); got != want {
		t.Errorf("TestDataText() = %q, want %q", got, want)
	}
	if got := (TestCase{}).TestDataText(); got != "" {
		t.Errorf("empty TestDataText() = %q", got)
	}
}

func TestSuite_AllCasesAndNormalize(t *testing.T) {
	raw := `{
		"name": "Login_Page",
		"url": "https://practice.expandtesting.com/login",
		"positiveCases": [{"id": "TC-POS-001", "title": "Valid login", "steps": [{"description": "open"}, {"description": "submit"}]}],
		"negativeCases": [{"id": "TC-NEG-001", "title": "Wrong password", "status": "Fail"}],
		"testCases": [{"id": "TC-001", "title": "Legacy", "type": "Edge Case"}]
	}`

	var s Suite
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	s.Normalize()

	if s.Total() != 3 {
		t.Fatalf("Total() = %d, want 3", s.Total())
	}
	if s.EdgeCases == nil {
		t.Error("Normalize() should replace nil lists")
	}

	all := s.AllCases()
	if all[0].ID != "TC-POS-001" || all[1].ID != "TC-NEG-001" || all[2].ID != "TC-001" {
		t.Errorf("AllCases() order = %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}
	if all[0].Type != TestTypeHappyPath || all[1].Type != TestTypeNegative || all[2].Type != TestTypeEdgeCase {
		t.Errorf("types = %s, %s, %s", all[0].Type, all[1].Type, all[2].Type)
	}
	if all[0].Suite != "Login_Page" {
		t.Errorf("Suite = %q, want Login_Page", all[0].Suite)
	}
	if all[0].Status != StatusNotRun || all[1].Status != StatusFail {
		t.Errorf("statuses = %s, %s", all[0].Status, all[1].Status)
	}
	if all[0].Steps[1].Order != 2 {
		t.Errorf("step order = %d, want 2", all[0].Steps[1].Order)
	}

	counts := s.CountByType()
	if counts[TestTypeHappyPath] != 1 || counts[TestTypeEdgeCase] != 1 {
		t.Errorf("CountByType() = %v", counts)
	}
}

func TestNewSuite(t *testing.T) {
	s := NewSuite("Inputs", "https://practice.expandtesting.com/inputs", "demo")
	if s.Timestamp == "" {
		t.Error("Timestamp should be set")
	}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["positiveCases"].([]any); !ok {
		t.Error("empty case lists must encode as [] not null")
	}
}
