package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/testforge/e2ekit/internal/domain"
)

// JSONAttempts is how many replies CompleteJSON asks for before giving up.
const JSONAttempts = 3

const jsonInstruction = "\n\nIMPORTANT: Return ONLY valid JSON. No markdown, no code blocks, no explanations. " +
	"Never use JavaScript expressions such as \"a\".repeat(500); write {{LARGE_STRING_500}} instead."

var (
	thinkPattern     = regexp.MustCompile(`(?is)<think>.*?</think>`)
	codeBlockPattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	repeatPattern    = regexp.MustCompile(`["'][^"'\\]*["']\s*\.repeat\(\s*(\d+)\s*\)`)

	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKey   = regexp.MustCompile(`([{,]\s*)([A-Za-z_]\w*)\s*:`)
	singleQuoted  = regexp.MustCompile(`:\s*'([^']*)'`)
)

// CompleteJSON asks c for JSON and decodes it into out. Replies that do not
// parse are retried with the parse error fed back into the prompt.
func CompleteJSON(ctx context.Context, c Completer, systemPrompt, userPrompt string, out interface{}) (*Usage, error) {
	system := systemPrompt + jsonInstruction
	user := userPrompt

	var (
		total   Usage
		lastErr error
	)
	for attempt := 0; attempt < JSONAttempts; attempt++ {
		text, usage, err := c.Complete(ctx, system, user)
		if usage != nil {
			total.InputTokens += usage.InputTokens
			total.OutputTokens += usage.OutputTokens
		}
		if err != nil {
			return &total, err
		}

		if err := DecodeJSON(text, out); err != nil {
			lastErr = err
			user = fmt.Sprintf("%s\n\nYour previous reply could not be parsed (%v). Reply again with only the JSON document.", userPrompt, err)
			continue
		}
		return &total, nil
	}
	return &total, domain.ErrGenerationFailed(fmt.Sprintf("invalid JSON after %d attempts", JSONAttempts), lastErr)
}

// DecodeJSON extracts the JSON document from model text and decodes it,
// repairing common mistakes when the first decode fails.
func DecodeJSON(text string, out interface{}) error {
	doc := ExtractJSON(text)
	if doc == "" {
		return domain.ErrParseFailed("model reply", errors.New("no JSON found in response"))
	}
	if err := json.Unmarshal([]byte(doc), out); err == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(RepairJSON(doc)), out); err != nil {
		return domain.ErrParseFailed("model reply", err)
	}
	return nil
}

// ExtractJSON strips reasoning blocks and code fences, replaces
// "a".repeat(n) with a {{LARGE_STRING_n}} placeholder and returns the first
// balanced JSON object or array. It returns "" when none is found.
func ExtractJSON(text string) string {
	text = thinkPattern.ReplaceAllString(text, "")
	if m := codeBlockPattern.FindStringSubmatch(text); len(m) > 1 {
		text = m[1]
	}
	text = repeatPattern.ReplaceAllString(text, `"{{LARGE_STRING_$1}}"`)
	return balanced(strings.TrimSpace(text))
}

// RepairJSON removes trailing commas, quotes bare keys and converts
// single-quoted values.
func RepairJSON(doc string) string {
	doc = trailingComma.ReplaceAllString(doc, "$1")
	doc = unquotedKey.ReplaceAllString(doc, `$1"$2":`)
	doc = singleQuoted.ReplaceAllString(doc, `: "$1"`)
	return doc
}

func balanced(text string) string {
	startObj := strings.Index(text, "{")
	startArr := strings.Index(text, "[")

	start := -1
	openB, closeB := byte('{'), byte('}')
	if startObj >= 0 && (startArr < 0 || startObj < startArr) {
		start = startObj
	} else if startArr >= 0 {
		start = startArr
		openB, closeB = '[', ']'
	}
	if start < 0 {
		return ""
	}

	text = text[start:]
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case openB:
			depth++
		case closeB:
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}
	return ""
}
