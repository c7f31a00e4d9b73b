package autofix

import (
	"fmt"
	"strings"
)

// MaxPromptHTML bounds the page HTML sent with a repair request.
const MaxPromptHTML = 15000

const reviewSystemPrompt = `You are a senior Go test automation engineer reviewing browser end-to-end tests.
The tests drive pages through github.com/testforge/e2ekit: page objects in pkg/pages, strategies in pkg/locator and helpers in pkg/e2etest.

Review for:
1. Code that does not compile (syntax, imports, types)
2. Wrong page object or resolver usage
3. Brittle selectors (prefer data-testid and role based selectors over deep CSS)
4. Missing assertions
5. Races (wait for elements instead of sleeping)

Respond with ONLY a JSON object:
{
  "hasIssues": true,
  "issues": [
    {"line": 25, "severity": "error|warning|info", "issue": "what is wrong", "suggestion": "how to fix it"}
  ],
  "fixedCode": "the complete corrected file, newlines escaped as \\n",
  "explanation": "summary of the fixes"
}`

const repairSystemPrompt = `You are an expert browser test automation engineer specializing in fixing broken selectors.

Your task is to look at a selector strategy that no longer matches and find a selector that matches the intended element in the current page.

## Analysis Process
1. Understand what element the failed selectors were trying to target
2. Find that element in the provided HTML
3. Propose the most stable selector, plus alternatives

## Selector Best Practices
1. Prefer stable attributes: data-testid, aria-label, role, id
2. Avoid nth-child, long CSS paths and generated class names
3. Playwright text selectors such as button:has-text("Save") are allowed

## Output Format
Respond with ONLY a JSON object:
{
  "repaired_selector": "the best selector to use",
  "alternative_selectors": [
    {"selector": "...", "type": "css|xpath|text|role|testid", "confidence": 0.0-1.0, "reasoning": "..."}
  ],
  "explanation": "why the original selector failed and how the repair works",
  "confidence": 0.0-1.0,
  "change_type": "id_changed|class_changed|structure_changed|text_changed|element_removed|element_moved|unknown",
  "root_cause": "brief explanation of what changed in the application"
}`

func reviewPrompt(path, code string) string {
	var sb strings.Builder
	lines := strings.Count(code, "\n") + 1

	sb.WriteString(fmt.Sprintf("## Test File: %s (%d lines)\n\n", path, lines))
	sb.WriteString("```go\n")
	sb.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n\n")
	sb.WriteString("Review the file and return the JSON verdict. fixedCode must hold the whole file, not a diff.")
	return sb.String()
}

func repairPrompt(req HealRequest, current fmt.Stringer) string {
	var sb strings.Builder

	sb.WriteString("## Failed Selector Analysis Request\n\n")

	sb.WriteString("### Element\n")
	sb.WriteString(fmt.Sprintf("%s.%s.%s\n\n", req.Table.Page(), req.Category, req.Element))

	sb.WriteString("### Failed Strategy\n")
	sb.WriteString(fmt.Sprintf("```\n%s\n```\n\n", current))

	if req.Error != "" {
		sb.WriteString("### Error Message\n")
		sb.WriteString(fmt.Sprintf("```\n%s\n```\n\n", req.Error))
	}

	if req.PageURL != "" {
		sb.WriteString("### Page URL\n")
		sb.WriteString(fmt.Sprintf("%s\n\n", req.PageURL))
	}

	html := req.PageHTML
	if len(html) > MaxPromptHTML {
		html = html[:MaxPromptHTML]
	}
	sb.WriteString("### Current Page HTML (relevant portion)\n")
	sb.WriteString(fmt.Sprintf("```html\n%s\n```\n\n", html))

	sb.WriteString("Please analyze the failure and provide repaired selectors.")

	return sb.String()
}
