package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

// Printer is the step logger commands talk to the user through.
type Printer struct {
	w io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Header(title string) {
	line := strings.Repeat("━", len([]rune(title))+8)
	fmt.Fprintln(p.w)
	cyan.Fprintln(p.w, line)
	cyan.Fprintf(p.w, "    %s\n", title)
	cyan.Fprintln(p.w, line)
}

func (p *Printer) Section(title string) {
	fmt.Fprintln(p.w)
	bold.Fprintf(p.w, "━━━ %s ━━━\n", title)
}

func (p *Printer) Bullet(format string, args ...any) {
	dim.Fprintf(p.w, "   • "+format+"\n", args...)
}

func (p *Printer) Success(format string, args ...any) {
	green.Fprintf(p.w, "✓ "+format+"\n", args...)
}

func (p *Printer) Warn(format string, args ...any) {
	yellow.Fprintf(p.w, "⚠ "+format+"\n", args...)
}

func (p *Printer) Fail(format string, args ...any) {
	red.Fprintf(p.w, "✗ "+format+"\n", args...)
}

func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Spin shows an indeterminate spinner until the returned stop func runs.
func (p *Printer) Spin(description string) (stop func()) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("   "+description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	return func() {
		close(done)
		<-finished
		_ = bar.Finish()
	}
}
