package results

import (
	"bufio"
	"encoding/json"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/testforge/e2ekit/internal/domain"
)

// event is one line of `go test -json` output.
type event struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`
}

type goTest struct {
	pkg, name string
	status    domain.Status
	elapsed   float64
	output    []string
	done      bool
}

var fileLine = regexp.MustCompile(`^\s*([\w./-]+_test\.go):(\d+):`)

// ParseGoTest reads a test2json stream. Only leaf tests are reported:
// a test with subtests contributes through its subtests.
func ParseGoTest(r io.Reader) ([]Result, error) {
	tests := make(map[string]*goTest)
	var order []string

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, domain.ErrParseFailed("go test event on line "+strconv.Itoa(lineNo), err)
		}
		if ev.Test == "" {
			continue
		}

		key := ev.Package + "\x00" + ev.Test
		t, ok := tests[key]
		if !ok {
			t = &goTest{pkg: ev.Package, name: ev.Test, status: domain.StatusNotRun}
			tests[key] = t
			order = append(order, key)
		}

		switch ev.Action {
		case "output":
			t.output = append(t.output, ev.Output)
		case "pass":
			t.status, t.elapsed, t.done = domain.StatusPass, ev.Elapsed, true
		case "fail":
			t.status, t.elapsed, t.done = domain.StatusFail, ev.Elapsed, true
		case "skip":
			t.status, t.elapsed, t.done = domain.StatusSkipped, ev.Elapsed, true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, domain.ErrParseFailed("go test stream", err)
	}

	parents := make(map[string]bool)
	for _, key := range order {
		t := tests[key]
		if i := strings.LastIndex(t.name, "/"); i > 0 {
			parents[t.pkg+"\x00"+t.name[:i]] = true
		}
	}

	var out []Result
	for _, key := range order {
		t := tests[key]
		if parents[key] || !t.done {
			continue
		}
		out = append(out, t.result())
	}
	return out, nil
}

func (t *goTest) result() Result {
	title := t.name
	if i := strings.LastIndex(title, "/"); i >= 0 {
		title = title[i+1:]
	}
	title = strings.ReplaceAll(title, "_", " ")

	r := Result{
		ID:       ExtractTestID(title),
		Title:    title,
		Suite:    t.pkg,
		Status:   t.status,
		Duration: time.Duration(t.elapsed * float64(time.Second)),
	}

	var msgs []string
	for _, o := range t.output {
		trimmed := strings.TrimSpace(o)
		if trimmed == "" || strings.HasPrefix(trimmed, "=== ") || strings.HasPrefix(trimmed, "--- ") {
			continue
		}
		if m := fileLine.FindStringSubmatch(o); m != nil && r.File == "" {
			r.File = m[1]
			r.Line, _ = strconv.Atoi(m[2])
		}
		msgs = append(msgs, trimmed)
	}
	if t.status == domain.StatusFail {
		r.Error = strings.Join(msgs, "\n")
	}
	return r
}
