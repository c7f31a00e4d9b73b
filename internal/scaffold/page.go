package scaffold

import (
	"bytes"
	"fmt"
	"go/format"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/testforge/e2ekit/pkg/locator"
)

// PagePath returns where the page object for suite lives under dir.
func PagePath(dir, suite string) string {
	return filepath.Join(dir, PackageName(suite)+"_page.go")
}

type pageElement struct {
	Field    string
	Accessor string
	Path     string
	Action   string // Fill<Name> or Click<Name>, empty for neither
	Fill     bool
	Desc     string
}

type pageData struct {
	Type     string
	Page     string
	Elements []pageElement
}

var pageTemplate = template.Must(template.New("page").Parse(`// Code generated by e2ekit gen-page. Edit freely; gen-page will not overwrite it.

package pages

import (
	"context"

	"github.com/testforge/e2ekit/pkg/locator"
	e2e "github.com/testforge/e2ekit/pkg/pages"
)

// {{.Type}} is the page object for the {{.Page}} locator table.
type {{.Type}} struct {
	*e2e.Base
{{- range .Elements}}
	{{.Field}} locator.Strategy
{{- end}}
}

// New{{.Type}} binds the page to table.
func New{{.Type}}(d e2e.Driver, table *locator.Table, opts ...e2e.Option) (*{{.Type}}, error) {
	p := &{{.Type}}{Base: e2e.NewBase(d, opts...)}
	var err error
{{- range .Elements}}
	if p.{{.Field}}, err = table.Lookup({{.Path}}); err != nil {
		return nil, err
	}
{{- end}}
	return p, nil
}

// Open navigates to the page root.
func (p *{{.Type}}) Open(ctx context.Context) error {
	return p.Navigate(ctx, "/", e2e.WaitDOMContentLoaded)
}
{{range .Elements}}
// {{.Accessor}} locates {{.Desc}}.
func (p *{{$.Type}}) {{.Accessor}}() locator.Handle { return p.Resolver().Locate(p.{{.Field}}) }
{{if .Fill}}
func (p *{{$.Type}}) {{.Action}}(ctx context.Context, v string) error {
	return p.Fill(ctx, p.{{.Field}}, v)
}
{{else if .Action}}
func (p *{{$.Type}}) {{.Action}}(ctx context.Context) error {
	return p.Click(ctx, p.{{.Field}})
}
{{end}}
{{- end}}`))

// RenderPage renders the Go page object for table.
func RenderPage(suite string, table *locator.Table) ([]byte, error) {
	data := pageData{
		Type: Exported(suite) + "Page",
		Page: table.Page(),
	}

	// Base methods a generated name must not shadow.
	seen := map[string]bool{
		"Open": true, "Fill": true, "Click": true, "Navigate": true, "Resolver": true,
		"Driver": true, "Title": true, "Text": true, "Value": true, "Wait": true,
	}
	unique := func(name string) string {
		out := name
		for i := 2; seen[out]; i++ {
			out = name + strconv.Itoa(i)
		}
		seen[out] = true
		return out
	}

	fields := map[string]bool{"Base": true}
	for _, cat := range table.Categories() {
		for _, name := range table.Names(cat) {
			s, _ := table.Get(cat, name)
			el := pageElement{
				Accessor: unique(Exported(name) + Exported(strings.TrimSuffix(cat, "s"))),
				Path:     strconv.Quote(cat + "." + name),
				Desc:     commentText(s.Description),
			}
			field := unexported(cat + " " + name)
			for i := 2; fields[field]; i++ {
				field = unexported(cat+" "+name) + strconv.Itoa(i)
			}
			fields[field] = true
			el.Field = field

			switch cat {
			case "inputs":
				el.Action, el.Fill = unique("Fill"+Exported(name)), true
			case "buttons":
				el.Action = unique("Click" + Exported(name))
			}
			data.Elements = append(data.Elements, el)
		}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering page object: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting page object: %w", err)
	}
	return src, nil
}

// Page writes the page object for suite to dir/<stem>_page.go and returns
// the path.
func Page(dir, suite string, table *locator.Table, force bool) (string, error) {
	src, err := RenderPage(suite, table)
	if err != nil {
		return "", err
	}
	path := PagePath(dir, suite)
	if err := writeNew(path, src, force); err != nil {
		return "", err
	}
	return path, nil
}

// commentText flattens s onto one comment line.
func commentText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
