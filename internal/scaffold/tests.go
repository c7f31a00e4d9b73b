package scaffold

import (
	"bytes"
	"fmt"
	"go/format"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/testforge/e2ekit/internal/domain"
)

// DefaultWaitMillis is used for wait steps whose value is not a number.
const DefaultWaitMillis = 1000

// TestsPath returns where the generated tests for suite live under dir.
// Each suite gets its own package directory.
func TestsPath(dir, suite string) string {
	pkg := PackageName(suite)
	return filepath.Join(dir, pkg, pkg+"_test.go")
}

type testCase struct {
	Name    string
	Comment []string
	Page    string // "page" or "_"
	Body    string
}

type testsData struct {
	Suite   string
	Package string
	Func    string
	URL     string
	Imports []string
	Cases   []testCase
}

var testsTemplate = template.Must(template.New("tests").Parse(`// Code generated by e2ekit gen-tests from the {{printf "%q" .Suite}} suite. DO NOT EDIT.

package {{.Package}}_test

import (
{{- range .Imports}}
	{{.}}
{{- end}}
)

const suiteURL = {{printf "%q" .URL}}

func start(t *testing.T) (*browser.Page, *pages.Base) {
	t.Helper()
	page := e2etest.StartFromEnv(t)
	return page, pages.NewBase(page)
}

func strategy(selector string) locator.Strategy {
	return locator.MustNew(selector, selector, "", "")
}

func {{.Func}}(t *testing.T) {
{{- if not .Cases}}
	t.Skip("suite has no test cases")
{{- end}}
{{- range .Cases}}
	t.Run({{printf "%q" .Name}}, func(t *testing.T) {
{{- range .Comment}}
		// {{.}}
{{- end}}
		{{.Page}}, p := start(t)
		require.NoError(t, p.Navigate(t.Context(), suiteURL, pages.WaitDOMContentLoaded))
{{.Body}}	})
{{end -}}
}
`))

// stepWriter renders the steps of one case and tracks what they need.
type stepWriter struct {
	buf      bytes.Buffer
	usesPage bool
	imports  map[string]bool
}

func (w *stepWriter) line(format string, args ...any) {
	w.buf.WriteString("\t\t")
	fmt.Fprintf(&w.buf, format, args...)
	w.buf.WriteByte('\n')
}

func (w *stepWriter) todo(step domain.Step, reason string) {
	w.line("// TODO: implement action %q: %s", step.Action, commentText(step.Description))
	w.line("t.Skip(%q)", fmt.Sprintf("step %d: %s", step.Order, reason))
}

// write renders one step. Unknown actions and steps missing the locator
// they need become a TODO and a skip.
func (w *stepWriter) write(step domain.Step) {
	q := strconv.Quote(step.Locator)
	v := strconv.Quote(step.Value)
	if step.Description != "" {
		w.line("// %d. %s", step.Order, commentText(step.Description))
	}

	action := strings.ToLower(strings.TrimSpace(step.Action))
	switch action {
	case "fill", "type", "click", "check", "uncheck", "select", "assert_visible", "assert_text":
		if strings.TrimSpace(step.Locator) == "" {
			w.todo(step, "no locator for "+action)
			return
		}
	}

	switch action {
	case "fill", "type":
		w.line("require.NoError(t, p.Fill(t.Context(), strategy(%s), %s))", q, v)
	case "click":
		w.line("require.NoError(t, p.Click(t.Context(), strategy(%s)))", q)
	case "check":
		w.usesPage = true
		w.line("require.NoError(t, page.Raw().Locator(%s).Check())", q)
	case "uncheck":
		w.usesPage = true
		w.line("require.NoError(t, page.Raw().Locator(%s).Uncheck())", q)
	case "select":
		w.line("{")
		w.line("\t_, err := p.SelectOption(t.Context(), strategy(%s), %s)", q, v)
		w.line("\trequire.NoError(t, err)")
		w.line("}")
	case "wait":
		ms, err := strconv.Atoi(strings.TrimSpace(step.Value))
		if err != nil || ms < 0 {
			ms = DefaultWaitMillis
		}
		w.imports["time"] = true
		w.line("time.Sleep(%d * time.Millisecond)", ms)
	case "navigate":
		target := step.Value
		if target == "" {
			target = step.Locator
		}
		if target == "" {
			w.todo(step, "no target for navigate")
			return
		}
		w.line("require.NoError(t, p.Navigate(t.Context(), %s, pages.WaitDOMContentLoaded))", strconv.Quote(target))
	case "assert_visible":
		w.line("e2etest.ExpectVisible(t, p.Resolver(), strategy(%s))", q)
	case "assert_text":
		w.line("e2etest.ExpectText(t, p.Resolver().Locate(strategy(%s)), %s)", q, v)
	case "assert_url":
		if step.Value == "" {
			w.todo(step, "no URL to assert")
			return
		}
		w.usesPage = true
		w.line("e2etest.ExpectURL(t, page, %s)", strconv.Quote(regexp.QuoteMeta(step.Value)))
	default:
		w.todo(step, fmt.Sprintf("unsupported action %q", step.Action))
	}
}

func caseComment(tc domain.TestCase) []string {
	out := []string{fmt.Sprintf("%s, %s priority.", tc.Type, tc.Priority)}
	if p := commentText(tc.Preconditions); p != "" {
		out = append(out, "Preconditions: "+p)
	}
	if e := commentText(tc.ExpectedResult); e != "" {
		out = append(out, "Expected: "+e)
	}
	return out
}

// RenderTests renders one Go test file for s: a top-level test with a
// t.Run per case.
func RenderTests(s *domain.Suite) ([]byte, error) {
	imports := map[string]bool{}
	data := testsData{
		Suite:   s.Name,
		Package: PackageName(s.Name),
		Func:    "Test" + Exported(s.Name),
		URL:     s.URL,
	}

	for _, tc := range s.AllCases() {
		w := &stepWriter{imports: imports}
		for i, step := range tc.SortedSteps() {
			if step.Order == 0 {
				step.Order = i + 1
			}
			w.write(step)
		}
		name := tc.ID
		if tc.Title != "" {
			name += " " + tc.Title
		}
		c := testCase{Name: name, Comment: caseComment(tc), Page: "_", Body: w.buf.String()}
		if w.usesPage {
			c.Page = "page"
		}
		data.Cases = append(data.Cases, c)
	}
	data.Imports = importBlock(imports, len(data.Cases) > 0)

	var buf bytes.Buffer
	if err := testsTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering tests: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, domain.ErrGenerationFailed("generated tests are not valid Go", err)
	}
	return src, nil
}

func importBlock(extra map[string]bool, hasCases bool) []string {
	std := []string{`"testing"`}
	if extra["time"] {
		std = append(std, `"time"`)
	}
	var third []string
	if hasCases {
		third = append(third, `"github.com/stretchr/testify/require"`)
	}
	own := []string{
		`"github.com/testforge/e2ekit/pkg/browser"`,
		`"github.com/testforge/e2ekit/pkg/e2etest"`,
		`"github.com/testforge/e2ekit/pkg/locator"`,
		`"github.com/testforge/e2ekit/pkg/pages"`,
	}
	sort.Strings(std)

	out := append([]string{}, std...)
	for _, group := range [][]string{third, own} {
		if len(group) == 0 {
			continue
		}
		out = append(out, "")
		out = append(out, group...)
	}
	return out
}

// Tests writes the generated tests for s and returns the path. Generated
// files are always overwritten.
func Tests(dir string, s *domain.Suite) (string, error) {
	src, err := RenderTests(s)
	if err != nil {
		return "", err
	}
	path := TestsPath(dir, s.Name)
	if err := writeNew(path, src, true); err != nil {
		return "", err
	}
	return path, nil
}
