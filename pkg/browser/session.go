// Package browser binds the locator and page-object layers to playwright.
package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// Kind selects the browser engine.
type Kind string

const (
	Chromium Kind = "chromium"
	Firefox  Kind = "firefox"
	WebKit   Kind = "webkit"
)

// Options configures a browser session.
type Options struct {
	Kind           Kind
	Headless       bool
	SlowMo         time.Duration
	BaseURL        string
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	DefaultTimeout time.Duration
	// Install downloads the browser driver before starting when true.
	Install bool
}

// DefaultOptions returns headless chromium at 1280x720.
func DefaultOptions() Options {
	return Options{
		Kind:           Chromium,
		Headless:       true,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		DefaultTimeout: 30 * time.Second,
	}
}

// Session owns a playwright driver, one browser and one context.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    Options
	logger  *zap.Logger
}

// Launch starts playwright and opens a browser context.
func Launch(opts Options, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOptions()
	if opts.Kind == "" {
		opts.Kind = defaults.Kind
	}
	if opts.ViewportWidth == 0 || opts.ViewportHeight == 0 {
		opts.ViewportWidth, opts.ViewportHeight = defaults.ViewportWidth, defaults.ViewportHeight
	}
	if opts.DefaultTimeout == 0 {
		opts.DefaultTimeout = defaults.DefaultTimeout
	}

	if opts.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{string(opts.Kind)}}); err != nil {
			return nil, fmt.Errorf("installing playwright %s: %w", opts.Kind, err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	var bt playwright.BrowserType
	switch opts.Kind {
	case Chromium:
		bt = pw.Chromium
	case Firefox:
		bt = pw.Firefox
	case WebKit:
		bt = pw.WebKit
	default:
		pw.Stop()
		return nil, fmt.Errorf("unknown browser kind %q", opts.Kind)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.SlowMo > 0 {
		launch.SlowMo = playwright.Float(float64(opts.SlowMo.Milliseconds()))
	}

	browser, err := bt.Launch(launch)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launching %s: %w", opts.Kind, err)
	}

	ctxOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	}
	if opts.BaseURL != "" {
		ctxOpts.BaseURL = playwright.String(opts.BaseURL)
	}
	if opts.UserAgent != "" {
		ctxOpts.UserAgent = playwright.String(opts.UserAgent)
	}

	bctx, err := browser.NewContext(ctxOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}
	bctx.SetDefaultTimeout(float64(opts.DefaultTimeout.Milliseconds()))

	logger.Debug("browser session started",
		zap.String("browser", string(opts.Kind)),
		zap.Bool("headless", opts.Headless),
		zap.String("base_url", opts.BaseURL))

	return &Session{
		pw:      pw,
		browser: browser,
		context: bctx,
		opts:    opts,
		logger:  logger,
	}, nil
}

// Options returns the options the session was launched with.
func (s *Session) Options() Options { return s.opts }

// NewPage opens a new tab in the session's context.
func (s *Session) NewPage() (*Page, error) {
	p, err := s.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	return &Page{page: p, logger: s.logger}, nil
}

// Close tears down the context, browser and driver.
func (s *Session) Close() error {
	var errs []error
	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing context: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing browser: %w", err))
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping playwright: %w", err))
		}
	}
	return errors.Join(errs...)
}
