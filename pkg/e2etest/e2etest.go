// Package e2etest starts browsers for go test and provides web-first
// assertions that poll until they hold or time out.
package e2etest

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/testforge/e2ekit/pkg/browser"
	"github.com/testforge/e2ekit/pkg/locator"
)

// RequireEnv makes Start fail instead of skip when set to a non-empty value.
const RequireEnv = "E2E_REQUIRE_BROWSER"

// ExpectTimeout bounds every Expect helper.
var ExpectTimeout = 5 * time.Second

const tick = 50 * time.Millisecond

// Env is the E2E_* environment read by OptionsFromEnv.
type Env struct {
	BaseURL   string        `envconfig:"BASE_URL"`
	Browser   string        `envconfig:"BROWSER" default:"chromium"`
	Headless  bool          `envconfig:"HEADLESS" default:"true"`
	SlowMo    time.Duration `envconfig:"SLOW_MO"`
	Timeout   time.Duration `envconfig:"TIMEOUT" default:"30s"`
	Width     int           `envconfig:"VIEWPORT_WIDTH" default:"1280"`
	Height    int           `envconfig:"VIEWPORT_HEIGHT" default:"720"`
	UserAgent string        `envconfig:"USER_AGENT"`
}

// OptionsFromEnv builds browser options from E2E_* variables.
func OptionsFromEnv() (browser.Options, error) {
	var e Env
	if err := envconfig.Process("E2E", &e); err != nil {
		return browser.Options{}, fmt.Errorf("reading E2E environment: %w", err)
	}
	return browser.Options{
		Kind:           browser.Kind(strings.ToLower(e.Browser)),
		Headless:       e.Headless,
		SlowMo:         e.SlowMo,
		BaseURL:        e.BaseURL,
		ViewportWidth:  e.Width,
		ViewportHeight: e.Height,
		UserAgent:      e.UserAgent,
		DefaultTimeout: e.Timeout,
	}, nil
}

var launch = browser.Launch

// Start launches a session for the test and opens one page. The session is
// closed on cleanup. When the browser cannot start the test is skipped,
// unless RequireEnv is set.
func Start(t testing.TB, opts browser.Options) *browser.Page {
	t.Helper()

	s, err := launch(opts, zaptest.NewLogger(t))
	if err != nil {
		if os.Getenv(RequireEnv) != "" {
			t.Fatalf("starting browser: %v", err)
		} else {
			t.Skipf("browser unavailable: %v", err)
		}
		return nil
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("closing browser: %v", err)
		}
	})

	page, err := s.NewPage()
	if err != nil {
		t.Fatalf("opening page: %v", err)
		return nil
	}
	return page
}

// StartFromEnv is Start with OptionsFromEnv.
func StartFromEnv(t testing.TB) *browser.Page {
	t.Helper()
	opts, err := OptionsFromEnv()
	if err != nil {
		t.Fatalf("%v", err)
		return nil
	}
	return Start(t, opts)
}

var newAPIClient = browser.NewAPIClient

// StartAPI opens a browserless API client rooted at E2E_BASE_URL. It is
// closed on cleanup and skips like Start when playwright is unavailable.
func StartAPI(t testing.TB) *browser.APIClient {
	t.Helper()
	opts, err := OptionsFromEnv()
	if err != nil {
		t.Fatalf("%v", err)
		return nil
	}
	c, err := newAPIClient(browser.APIOptions{BaseURL: opts.BaseURL, Timeout: opts.DefaultTimeout}, zaptest.NewLogger(t))
	if err != nil {
		if os.Getenv(RequireEnv) != "" {
			t.Fatalf("starting API client: %v", err)
		} else {
			t.Skipf("playwright unavailable: %v", err)
		}
		return nil
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Logf("closing API client: %v", err)
		}
	})
	return c
}

// ExpectVisible waits for s to resolve to a visible element.
func ExpectVisible(t testing.TB, r *locator.Resolver, s locator.Strategy) bool {
	t.Helper()
	_, err := r.WaitVisible(context.Background(), s, ExpectTimeout)
	return assert.NoError(t, err, "expected %s to be visible", s)
}

// ExpectHidden waits for s to be hidden or absent.
func ExpectHidden(t testing.TB, r *locator.Resolver, s locator.Strategy) bool {
	t.Helper()
	err := r.WaitHidden(context.Background(), s, ExpectTimeout)
	return assert.NoError(t, err, "expected %s to be hidden", s)
}

// ExpectText polls until h's text content contains want.
func ExpectText(t testing.TB, h locator.Handle, want string) bool {
	t.Helper()
	return eventually(t, func(ctx context.Context, c *assert.CollectT) {
		got, err := h.TextContent(ctx)
		if assert.NoError(c, err) {
			assert.Contains(c, got, want, "text of %s", h.Selector())
		}
	}, "text of %s never contained %q", h.Selector(), want)
}

// ExpectValue polls until h's input value equals want.
func ExpectValue(t testing.TB, h locator.Handle, want string) bool {
	t.Helper()
	return eventually(t, func(ctx context.Context, c *assert.CollectT) {
		got, err := h.InputValue(ctx)
		if assert.NoError(c, err) {
			assert.Equal(c, want, got, "value of %s", h.Selector())
		}
	}, "value of %s never became %q", h.Selector(), want)
}

// URLer is anything with a current URL.
type URLer interface {
	URL() string
}

// ExpectURL polls until the page URL matches pattern.
func ExpectURL(t testing.TB, p URLer, pattern string) bool {
	t.Helper()
	re, err := regexp.Compile(pattern)
	if !assert.NoError(t, err) {
		return false
	}
	return eventually(t, func(_ context.Context, c *assert.CollectT) {
		assert.Regexp(c, re, p.URL())
	}, "URL never matched %q", pattern)
}

// Titler is anything with a document title.
type Titler interface {
	Title(ctx context.Context) (string, error)
}

// ExpectTitle polls until the title contains want.
func ExpectTitle(t testing.TB, p Titler, want string) bool {
	t.Helper()
	return eventually(t, func(ctx context.Context, c *assert.CollectT) {
		got, err := p.Title(ctx)
		if assert.NoError(c, err) {
			assert.Contains(c, got, want, "title")
		}
	}, "title never contained %q", want)
}

// eventually retries cond every tick until it passes or ExpectTimeout
// elapses. Every attempt shares one context that expires with the deadline,
// so a read blocked on a missing element cannot outlive it. On failure the
// last attempt's errors are reported.
func eventually(t testing.TB, cond func(ctx context.Context, c *assert.CollectT), msg string, args ...any) bool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), ExpectTimeout)
	defer cancel()
	return assert.EventuallyWithT(t, func(c *assert.CollectT) { cond(ctx, c) }, ExpectTimeout, tick, append([]any{msg}, args...)...)
}
