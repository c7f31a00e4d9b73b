package e2etest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testforge/e2ekit/pkg/browser"
	"github.com/testforge/e2ekit/pkg/locator"
	"github.com/testforge/e2ekit/pkg/locator/fakedom"
)

// recorder is a testing.TB that records failures and skips instead of
// stopping the goroutine.
type recorder struct {
	testing.TB
	failed  bool
	skipped bool
	fatal   bool
	msgs    []string
}

func (r *recorder) Helper() {}

func (r *recorder) Errorf(format string, args ...any) {
	r.failed = true
	r.msgs = append(r.msgs, fmt.Sprintf(format, args...))
}

func (r *recorder) Fatalf(format string, args ...any) {
	r.fatal = true
	r.Errorf(format, args...)
}

func (r *recorder) Skipf(format string, args ...any) {
	r.skipped = true
	r.msgs = append(r.msgs, fmt.Sprintf(format, args...))
}

func shortTimeout(t *testing.T) {
	prev := ExpectTimeout
	ExpectTimeout = 100 * time.Millisecond
	t.Cleanup(func() { ExpectTimeout = prev })
}

func stubLaunch(t *testing.T, err error) {
	prev := launch
	launch = func(browser.Options, *zap.Logger) (*browser.Session, error) { return nil, err }
	t.Cleanup(func() { launch = prev })
}

func TestStart_SkipsWithoutBrowser(t *testing.T) {
	stubLaunch(t, errors.New("driver not installed"))
	t.Setenv(RequireEnv, "")

	rec := &recorder{TB: t}
	assert.Nil(t, Start(rec, browser.DefaultOptions()))
	assert.True(t, rec.skipped)
	assert.False(t, rec.failed)
	assert.Contains(t, rec.msgs[0], "driver not installed")
}

func TestStart_FailsWhenRequired(t *testing.T) {
	stubLaunch(t, errors.New("driver not installed"))
	t.Setenv(RequireEnv, "1")

	rec := &recorder{TB: t}
	assert.Nil(t, Start(rec, browser.DefaultOptions()))
	assert.True(t, rec.fatal)
	assert.False(t, rec.skipped)
}

func TestStartAPI(t *testing.T) {
	var got browser.APIOptions
	prev := newAPIClient
	newAPIClient = func(opts browser.APIOptions, _ *zap.Logger) (*browser.APIClient, error) {
		got = opts
		return nil, errors.New("driver not installed")
	}
	t.Cleanup(func() { newAPIClient = prev })
	t.Setenv("E2E_BASE_URL", "https://api.example.com")
	t.Setenv(RequireEnv, "")

	rec := &recorder{TB: t}
	assert.Nil(t, StartAPI(rec))
	assert.True(t, rec.skipped)
	assert.Equal(t, "https://api.example.com", got.BaseURL)
	assert.Equal(t, 30*time.Second, got.Timeout)

	t.Setenv(RequireEnv, "1")
	rec = &recorder{TB: t}
	assert.Nil(t, StartAPI(rec))
	assert.True(t, rec.fatal)
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("E2E_BASE_URL", "https://practice.expandtesting.com")
	t.Setenv("E2E_BROWSER", "Firefox")
	t.Setenv("E2E_HEADLESS", "false")
	t.Setenv("E2E_SLOW_MO", "250ms")

	opts, err := OptionsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, browser.Firefox, opts.Kind)
	assert.False(t, opts.Headless)
	assert.Equal(t, 250*time.Millisecond, opts.SlowMo)
	assert.Equal(t, "https://practice.expandtesting.com", opts.BaseURL)
	assert.Equal(t, 1280, opts.ViewportWidth)
	assert.Equal(t, 30*time.Second, opts.DefaultTimeout)
}

func TestOptionsFromEnv_Invalid(t *testing.T) {
	t.Setenv("E2E_HEADLESS", "maybe")
	_, err := OptionsFromEnv()
	assert.Error(t, err)
}

func TestExpectVisible(t *testing.T) {
	shortTimeout(t)
	doc := fakedom.New(&fakedom.Element{ID: "a", Selectors: []string{"#a"}, Hidden: true})
	r := locator.NewResolver(doc)
	s := locator.MustNew("A", "#a", "", "")

	go func() {
		time.Sleep(20 * time.Millisecond)
		doc.SetHidden("a", false)
	}()
	assert.True(t, ExpectVisible(t, r, s))

	rec := &recorder{TB: t}
	assert.False(t, ExpectVisible(rec, r, locator.MustNew("B", "#b", "", "")))
	assert.True(t, rec.failed)
}

func TestExpectHidden(t *testing.T) {
	shortTimeout(t)
	doc := fakedom.New()
	r := locator.NewResolver(doc)
	assert.True(t, ExpectHidden(t, r, locator.MustNew("Spinner", ".spinner", "", "")))
}

func TestExpectText(t *testing.T) {
	shortTimeout(t)
	doc := fakedom.New(&fakedom.Element{ID: "msg", Selectors: []string{"#msg"}, Text: "Loading"})
	h := doc.Locator("#msg")

	go func() {
		time.Sleep(20 * time.Millisecond)
		doc.SetText("msg", "Saved successfully")
	}()
	assert.True(t, ExpectText(t, h, "Saved"))

	rec := &recorder{TB: t}
	assert.False(t, ExpectText(rec, h, "Deleted"))
	require.True(t, rec.failed)
	all := strings.Join(rec.msgs, "\n")
	assert.Contains(t, all, `"Deleted"`)
	assert.Contains(t, all, `"Saved successfully"`, "last seen text is reported")
}

// stuckHandle answers reads only when the caller's context ends, the way a
// playwright read on a missing element waits out its timeout.
type stuckHandle struct {
	locator.Handle
	reads atomic.Int32
}

func (h *stuckHandle) Selector() string { return "#never" }

func (h *stuckHandle) block(ctx context.Context) (string, error) {
	h.reads.Add(1)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(2 * time.Second):
		return "", errors.New("read outlived its context")
	}
}

func (h *stuckHandle) TextContent(ctx context.Context) (string, error) { return h.block(ctx) }

func (h *stuckHandle) InputValue(ctx context.Context) (string, error) { return h.block(ctx) }

func TestExpect_BoundedByExpectTimeout(t *testing.T) {
	shortTimeout(t)

	tests := []struct {
		name   string
		expect func(testing.TB, locator.Handle) bool
	}{
		{"text", func(tb testing.TB, h locator.Handle) bool { return ExpectText(tb, h, "Saved") }},
		{"value", func(tb testing.TB, h locator.Handle) bool { return ExpectValue(tb, h, "3") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &stuckHandle{}
			rec := &recorder{TB: t}

			start := time.Now()
			assert.False(t, tt.expect(rec, h))
			assert.Less(t, time.Since(start), time.Second)
			assert.True(t, rec.failed)
			assert.Positive(t, h.reads.Load())
		})
	}
}

func TestExpectValue(t *testing.T) {
	shortTimeout(t)
	doc := fakedom.New(&fakedom.Element{ID: "n", Selectors: []string{"#n"}, Value: "3"})
	assert.True(t, ExpectValue(t, doc.Locator("#n"), "3"))

	rec := &recorder{TB: t}
	assert.False(t, ExpectValue(rec, doc.Locator("#n"), "4"))
}

type fakePage struct {
	url   atomic.Value
	title string
}

func (p *fakePage) URL() string { return p.url.Load().(string) }

func (p *fakePage) Title(context.Context) (string, error) { return p.title, nil }

func TestExpectURL(t *testing.T) {
	shortTimeout(t)
	p := &fakePage{title: "Inputs | Practice"}
	p.url.Store("https://example.com/login")

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.url.Store("https://example.com/secure")
	}()
	assert.True(t, ExpectURL(t, p, `/secure$`))

	rec := &recorder{TB: t}
	assert.False(t, ExpectURL(rec, p, `/logout`))
	assert.False(t, ExpectURL(rec, p, `(`))
}

func TestExpectTitle(t *testing.T) {
	shortTimeout(t)
	p := &fakePage{title: "Inputs | Practice"}
	assert.True(t, ExpectTitle(t, p, "Inputs"))

	rec := &recorder{TB: t}
	assert.False(t, ExpectTitle(rec, p, "Login"))
}
