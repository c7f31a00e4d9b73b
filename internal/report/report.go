// Package report renders test results as a standalone HTML page and
// optionally uploads it to the artifact store.
package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/testforge/e2ekit/internal/analysis"
	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/results"
)

// DefaultTitle heads reports built without an explicit title.
const DefaultTitle = "Test Execution Report"

// Uploader stores rendered reports.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Observer is told about every report written.
type Observer interface {
	ReportGenerated(s results.Summary)
}

// Row is one line of the results table
type Row struct {
	ID       string
	Title    string
	Suite    string
	Status   domain.Status
	Duration time.Duration
	Error    string
	Cause    string
}

// Report is the data behind one HTML page
type Report struct {
	Title     string
	Generated time.Time
	Summary   results.Summary
	Rows      []Row
}

// Build assembles a report from results. Failed rows carry their
// classified root cause.
func Build(title string, rs []results.Result, now time.Time) Report {
	if title == "" {
		title = DefaultTitle
	}
	rep := Report{
		Title:     title,
		Generated: now.UTC(),
		Summary:   results.Summarize(rs),
		Rows:      make([]Row, 0, len(rs)),
	}
	for _, r := range rs {
		row := Row{
			ID:       r.ID,
			Title:    r.Title,
			Suite:    r.Suite,
			Status:   r.Status,
			Duration: r.Duration,
			Error:    r.Error,
		}
		if r.Failed() {
			row.Cause = analysis.RootCause(r.Error).Short()
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep
}

// Config configures a Generator
type Config struct {
	// Dir receives the HTML files.
	Dir string
	// UploadPrefix is the key prefix for uploaded reports.
	UploadPrefix string
}

// Generator renders and stores reports
type Generator struct {
	cfg      Config
	tmpl     *template.Template
	uploader Uploader
	observer Observer
	logger   *zap.Logger
	now      func() time.Time
}

// Output describes a written report
type Output struct {
	Path   string
	URI    string
	Report Report
}

// NewGenerator parses the template. uploader may be nil.
func NewGenerator(cfg Config, uploader Uploader, logger *zap.Logger) (*Generator, error) {
	if cfg.Dir == "" {
		cfg.Dir = "reports"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"seconds": func(d time.Duration) string {
			return fmt.Sprintf("%.2fs", d.Seconds())
		},
		"statusClass": func(s domain.Status) string {
			return strings.ToLower(strings.ReplaceAll(string(s), " ", "-"))
		},
		"statusLabel": func(s domain.Status) string {
			return strings.ToUpper(string(s))
		},
		"truncate": func(s string, n int) string {
			if utf8.RuneCountInString(s) <= n {
				return s
			}
			return string([]rune(s)[:n]) + "…"
		},
	}).Parse(HTMLTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Generator{
		cfg:      cfg,
		tmpl:     tmpl,
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// SetObserver registers o for every generated report.
func (g *Generator) SetObserver(o Observer) { g.observer = o }

// Render writes rep as HTML to w.
func (g *Generator) Render(w io.Writer, rep Report) error {
	return g.tmpl.Execute(w, rep)
}

// Generate builds, renders and writes a report to
// <dir>/test-report-<stamp>.html. A failed upload is logged, not returned.
func (g *Generator) Generate(ctx context.Context, title string, rs []results.Result) (*Output, error) {
	rep := Build(title, rs, g.now())

	var buf bytes.Buffer
	if err := g.Render(&buf, rep); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}

	if err := os.MkdirAll(g.cfg.Dir, 0o755); err != nil {
		return nil, domain.ErrIO("creating", g.cfg.Dir, err)
	}
	name := fmt.Sprintf("test-report-%s.html", analysis.Stamp(rep.Generated))
	out := &Output{Path: filepath.Join(g.cfg.Dir, name), Report: rep}
	if err := os.WriteFile(out.Path, buf.Bytes(), 0o644); err != nil {
		return nil, domain.ErrIO("writing", out.Path, err)
	}

	g.logger.Info("report generated",
		zap.String("path", out.Path),
		zap.Int("total", rep.Summary.Total),
		zap.Int("failed", rep.Summary.Failed),
		zap.Float64("pass_rate", rep.Summary.PassRate()),
	)

	if g.uploader != nil {
		key := path.Join(g.cfg.UploadPrefix, name)
		uri, err := g.uploader.Upload(ctx, key, buf.Bytes(), "text/html; charset=utf-8")
		if err != nil {
			g.logger.Warn("report upload failed", zap.String("key", key), zap.Error(err))
		} else {
			out.URI = uri
		}
	}

	if g.observer != nil {
		g.observer.ReportGenerated(rep.Summary)
	}
	return out, nil
}

// List returns the report files in dir, newest first.
func List(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "test-report-*.html"))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = filepath.Base(m)
	}
	// the stamp sorts lexically
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names, nil
}
