package aigen

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Prompt budgets for the element lists and the HTML excerpt.
const (
	promptInputs  = 20
	promptButtons = 15
	promptHTML    = 2000
)

// SystemPrompt returns the QA engineer persona used for suite design
func SystemPrompt() string {
	return "You are a senior QA automation engineer. Analyze pages deeply and design " +
		"comprehensive test strategies. Use your reasoning to determine appropriate test coverage."
}

// SuitePrompt asks for a complete suite covering the explored page
func SuitePrompt(snap *Snapshot) string {
	var sb strings.Builder

	sb.WriteString("Analyze this web page and design a complete test suite for it.\n\n")
	sb.WriteString("## Page\n\n")
	sb.WriteString(fmt.Sprintf("**URL**: %s\n", snap.URL))
	sb.WriteString(fmt.Sprintf("**Title**: %s\n", snap.Title))
	sb.WriteString(fmt.Sprintf("**Inputs**: %d\n", len(snap.Inputs)))
	sb.WriteString(fmt.Sprintf("**Buttons**: %d\n", len(snap.Buttons)))
	sb.WriteString(fmt.Sprintf("**Forms**: %d\n\n", len(snap.Forms)))

	sb.WriteString("### Structure\n")
	sb.WriteString(indentJSON(snap.Structure))
	sb.WriteString("\n\n")

	if len(snap.Inputs) > 0 {
		sb.WriteString("### Inputs\n")
		sb.WriteString(indentJSON(head(snap.Inputs, promptInputs)))
		sb.WriteString("\n\n")
	}
	if len(snap.Buttons) > 0 {
		sb.WriteString("### Buttons\n")
		sb.WriteString(indentJSON(head(snap.Buttons, promptButtons)))
		sb.WriteString("\n\n")
	}
	if len(snap.Links) > 0 {
		sb.WriteString("### Links\n")
		for _, l := range snap.Links {
			sb.WriteString(fmt.Sprintf("- %s (%s)\n", l.Label, l.Href))
		}
		sb.WriteString("\n")
	}
	if snap.HTML != "" {
		sb.WriteString("### HTML excerpt\n```html\n")
		sb.WriteString(truncateRunes(snap.HTML, promptHTML))
		sb.WriteString("\n```\n\n")
	}

	sb.WriteString(`## Instructions
1. Decide what kind of page this is, how complex it is, and which flows matter most.
2. Choose how many tests the page deserves. A simple page needs few; a rich form needs many.
3. Split them into positive (happy path), negative and edge cases.
4. Every step uses one action: navigate, fill, click, check, select, wait, assert_visible, assert_text, assert_url.
5. Use the locators listed above for steps that touch an element.
6. For long inputs write the placeholder {{LARGE_STRING_n}} (for example {{LARGE_STRING_500}}). Never write JavaScript such as .repeat().

## Output
Return a single JSON object with this shape:
{
  "analysis": {
    "pageType": "login form",
    "complexity": "low|medium|high",
    "criticalFlows": ["..."],
    "riskAreas": ["..."],
    "recommendedTestCount": "8"
  },
  "positiveCases": [
    {
      "id": "TC-001",
      "title": "Valid login",
      "type": "Happy Path",
      "priority": "High|Medium|Low",
      "preconditions": "User is registered",
      "steps": [
        {"order": 1, "description": "Open the page", "action": "navigate", "value": "URL"},
        {"order": 2, "description": "Enter email", "action": "fill", "locator": "#email", "value": "user@example.com"}
      ],
      "expectedResult": "Dashboard is shown",
      "testData": {"email": "user@example.com"},
      "status": "Not Run",
      "comments": ""
    }
  ],
  "negativeCases": [],
  "edgeCases": []
}
Negative cases use type "Negative"; edge cases use type "Edge Case".`)

	return sb.String()
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func truncateRunes(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
