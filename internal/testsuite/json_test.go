package testsuite

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/e2ekit/internal/domain"
)

const generatedSuite = `{
  "name": "Inputs Page",
  "url": "https://practice.expandtesting.com/inputs",
  "description": "Form inputs",
  "analysis": {"pageType": "form", "complexity": "medium"},
  "positiveCases": [
    {
      "id": "TC-POS-001",
      "title": "Fill every input",
      "priority": "High",
      "steps": [
        {"order": 1, "description": "Fill number", "action": "fill", "locator": "#input-number", "value": "42"},
        {"order": 2, "description": "Display", "action": "click", "locator": "#btn-display-inputs"}
      ],
      "expectedResult": "Outputs mirror inputs",
      "testData": {"number": "42"}
    }
  ],
  "negativeCases": [],
  "edgeCases": [
    {
      "id": "TC-EDGE-001",
      "title": "Very long text",
      "priority": "Low",
      "steps": [{"description": "Fill text", "action": "fill", "locator": "#input-text", "value": "{{LARGE_STRING_500}}"}],
      "testData": {"text": "{{LARGE_STRING_1000}}", "count": 3}
    }
  ]
}`

func TestDecodeSuite(t *testing.T) {
	s, err := DecodeSuite([]byte(generatedSuite))
	require.NoError(t, err)

	assert.Equal(t, 2, s.Total())
	assert.Equal(t, "form", s.Analysis.PageType)
	assert.NotNil(t, s.NegativeCases)

	edge := s.EdgeCases[0]
	assert.Equal(t, domain.TestTypeEdgeCase, edge.Type)
	assert.Equal(t, "Inputs Page", edge.Suite)
	assert.Equal(t, domain.StatusNotRun, edge.Status)
	assert.Equal(t, 1, edge.Steps[0].Order)
	assert.Equal(t, strings.Repeat("a", 500), edge.Steps[0].Value)
	assert.Equal(t, strings.Repeat("a", 1000), edge.TestData["text"])
	assert.Equal(t, float64(3), edge.TestData["count"])
}

func TestDecodeSuite_LegacyFlatList(t *testing.T) {
	s, err := DecodeSuite([]byte(`{"name": "Login", "url": "https://example.com/login",
		"testCases": [{"id": "TC-001", "title": "Valid login", "type": "Happy Path"}]}`))
	require.NoError(t, err)
	require.Len(t, s.AllCases(), 1)
	assert.Equal(t, domain.TestTypeHappyPath, s.AllCases()[0].Type)
}

func TestDecodeSuite_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		sentinel error
		wantErr  string
	}{
		{"syntax", `{"name": `, domain.ErrParseFailedSentinel, "suite JSON"},
		{"missing name", `{"url": "https://example.com"}`, domain.ErrValidationSentinel, "Name"},
		{"bad url", `{"name": "x", "url": "not a url"}`, domain.ErrValidationSentinel, "URL"},
		{"missing id", `{"name": "x", "positiveCases": [{"title": "t"}]}`, domain.ErrValidationSentinel, "ID"},
		{"missing action", `{"name": "x", "positiveCases": [{"id": "TC-1", "title": "t", "steps": [{"description": "d"}]}]}`, domain.ErrValidationSentinel, "Action"},
		{"duplicate id", `{"name": "x", "positiveCases": [{"id": "TC-1", "title": "a"}], "edgeCases": [{"id": "TC-1", "title": "b"}]}`, domain.ErrValidationSentinel, "duplicate test id TC-1"},
		{"bad priority", `{"name": "x", "positiveCases": [{"id": "TC-1", "title": "a", "priority": "Urgent"}]}`, domain.ErrValidationSentinel, `unknown priority "Urgent"`},
		{"bad type", `{"name": "x", "testCases": [{"id": "TC-1", "title": "a", "type": "Smoke"}]}`, domain.ErrValidationSentinel, `unknown type "Smoke"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSuite([]byte(tt.in))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveAndLoadSuite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "test-suites")
	s, err := DecodeSuite([]byte(generatedSuite))
	require.NoError(t, err)

	path, err := SaveSuite(dir, s)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Inputs_Page-test-cases.json"), path)

	loaded, err := LoadSuite(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)

	_, err = LoadSuite(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestExpand(t *testing.T) {
	assert.Equal(t, 500, len(Expand("{{LARGE_STRING_500}}")))
	assert.Equal(t, 7, len(Expand("{{LARGE_STRING_7}}")))
	assert.Equal(t, "x {{LARGE_STRING_5}}", Expand("x {{LARGE_STRING_5}}"), "only whole values expand")
	assert.Equal(t, "{{LARGE_STRING_999999999}}", Expand("{{LARGE_STRING_999999999}}"))
	assert.Equal(t, "plain", Expand("plain"))
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "WebForms_Grid_Overview", FileStem(" WebForms Grid\tOverview "))
	assert.Equal(t, "login", FileStem("login"))
}
