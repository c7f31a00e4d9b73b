package aigen

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/llm"
)

type fakeCompleter struct {
	replies []string
	users   []string
	systems []string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, *llm.Usage, error) {
	f.systems = append(f.systems, system)
	f.users = append(f.users, user)
	i := len(f.users) - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i], &llm.Usage{InputTokens: 100, OutputTokens: 50}, nil
}

const suiteReply = "```json\n" + `{
  "analysis": {"pageType": "login form", "complexity": "low", "criticalFlows": ["sign in"], "recommendedTestCount": "3"},
  "positiveCases": [
    {"id": "TC-001", "title": "Valid login", "type": "Happy Path", "priority": "High",
     "steps": [
       {"order": 1, "description": "Open the page", "action": "navigate", "value": "https://example.com/login"},
       {"order": 2, "description": "Enter email", "action": "fill", "locator": "#email", "value": "user@example.com"},
       {"order": 3, "description": "Submit", "action": "click", "locator": "button:has-text(\"Sign in\")"}
     ],
     "expectedResult": "Dashboard is shown", "testData": {"email": "user@example.com"}, "status": "Not Run"}
  ],
  "negativeCases": [
    {"id": "TC-001", "title": "Wrong password", "type": "Sad Path", "priority": "Urgent",
     "steps": [{"order": 1, "description": "Enter a bad password", "action": "fill", "locator": "#password", "value": "nope"}],
     "expectedResult": "Error shown"}
  ],
  "edgeCases": [
    {"title": "Very long email", "priority": "Low",
     "steps": [{"description": "Enter a long email", "action": "fill", "locator": "#email", "value": "a".repeat(300)}],
     "expectedResult": "Validation message", "testData": {"email": "{{LARGE_STRING_300}}"}}
  ]
}` + "\n```"

func testSnapshot() *Snapshot {
	return &Snapshot{
		URL:   "https://example.com/login",
		Title: "Sign in",
		Inputs: []Element{
			{Kind: "input", Label: "Email", Locator: "#email"},
			{Kind: "input", Label: "Password", Locator: "#password"},
		},
		Buttons: []Element{{Kind: "button", Label: "Sign in", Locator: `button:has-text("Sign in")`}},
		HTML:    "<form id=\"login\"></form>",
	}
}

func TestGenerate(t *testing.T) {
	c := &fakeCompleter{replies: []string{suiteReply}}
	g := NewGenerator(c, nil)
	g.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	suite, err := g.Generate(context.Background(), testSnapshot(), "login page")
	require.NoError(t, err)

	assert.Equal(t, "login page", suite.Name)
	assert.Equal(t, "https://example.com/login", suite.URL)
	assert.Equal(t, "2025-03-01T12:00:00Z", suite.Timestamp)
	require.NotNil(t, suite.Analysis)
	assert.Equal(t, "login form", suite.Analysis.PageType)
	assert.Equal(t, 3, suite.Total())

	ids := []string{}
	for _, tc := range suite.AllCases() {
		ids = append(ids, tc.ID)
		assert.Equal(t, "login page", tc.Suite)
		assert.Equal(t, domain.StatusNotRun, tc.Status)
	}
	assert.Equal(t, []string{"TC-LOGIN-PAGE-001", "TC-LOGIN-PAGE-002", "TC-LOGIN-PAGE-003"}, ids)

	neg := suite.NegativeCases[0]
	assert.Equal(t, domain.TestTypeNegative, neg.Type)
	assert.Equal(t, domain.PriorityMedium, neg.Priority)

	edge := suite.EdgeCases[0]
	assert.Equal(t, domain.TestTypeEdgeCase, edge.Type)
	assert.Equal(t, strings.Repeat("a", 300), edge.Steps[0].Value)
	assert.Equal(t, 1, edge.Steps[0].Order)
	assert.Equal(t, strings.Repeat("a", 300), edge.TestData["email"])

	require.Len(t, c.users, 1)
	assert.Contains(t, c.users[0], "#email")
	assert.Contains(t, c.users[0], "{{LARGE_STRING_500}}")
	assert.True(t, strings.HasPrefix(c.systems[0], SystemPrompt()))
}

func TestGenerate_ZeroCases(t *testing.T) {
	c := &fakeCompleter{replies: []string{`{"analysis": {}, "positiveCases": [], "negativeCases": [], "edgeCases": []}`}}

	_, err := NewGenerator(c, nil).Generate(context.Background(), testSnapshot(), "empty")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationSentinel)
	assert.Contains(t, err.Error(), "AI generated 0 test cases")
}

func TestGenerate_InvalidJSON(t *testing.T) {
	c := &fakeCompleter{replies: []string{"I'd rather not."}}

	_, err := NewGenerator(c, nil).Generate(context.Background(), testSnapshot(), "login")
	assert.ErrorIs(t, err, domain.ErrGenerationSentinel)
	assert.Len(t, c.users, llm.JSONAttempts)
}

func TestGenerate_RequiresInput(t *testing.T) {
	g := NewGenerator(&fakeCompleter{replies: []string{suiteReply}}, nil)

	_, err := g.Generate(context.Background(), nil, "login")
	assert.ErrorIs(t, err, domain.ErrValidationSentinel)

	_, err = g.Generate(context.Background(), testSnapshot(), "  ")
	assert.ErrorIs(t, err, domain.ErrValidationSentinel)
}

func TestIDPrefix(t *testing.T) {
	tests := map[string]string{
		"login":          "TC-LOGIN",
		"login page":     "TC-LOGIN-PAGE",
		"Checkout_Flow!": "TC-CHECKOUT-FLOW",
		"***":            "TC",
	}
	for in, want := range tests {
		assert.Equal(t, want, IDPrefix(in), in)
	}
}

func TestSuitePrompt(t *testing.T) {
	snap := testSnapshot()
	for i := 0; i < 30; i++ {
		snap.Inputs = append(snap.Inputs, Element{Kind: "input", Label: "extra", Locator: "#extra"})
	}
	snap.HTML = strings.Repeat("<p>", 1000)

	p := SuitePrompt(snap)
	assert.Contains(t, p, "**URL**: https://example.com/login")
	assert.Contains(t, p, "**Inputs**: 32")
	assert.Equal(t, promptInputs-2, strings.Count(p, `"#extra"`))
	assert.NotContains(t, p, strings.Repeat("<p>", 700))
	assert.Contains(t, p, "assert_visible")
}
