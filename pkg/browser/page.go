package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/testforge/e2ekit/pkg/locator"
	"github.com/testforge/e2ekit/pkg/pages"
)

var _ pages.Driver = (*Page)(nil)

// Page adapts a playwright page to pages.Driver.
type Page struct {
	page   playwright.Page
	logger *zap.Logger
}

// Wrap adapts an existing playwright page.
func Wrap(p playwright.Page, logger *zap.Logger) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Page{page: p, logger: logger}
}

// Raw returns the underlying playwright page.
func (p *Page) Raw() playwright.Page { return p.page }

// Locator implements locator.Document.
func (p *Page) Locator(selector string) locator.Handle {
	return &handle{loc: p.page.Locator(selector), selector: selector}
}

func (p *Page) Goto(ctx context.Context, url string, waitUntil pages.WaitUntil, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntilState(waitUntil),
		Timeout:   timeoutMs(ctx, timeout),
	})
	if err != nil {
		return mapError(ctx, fmt.Errorf("navigating to %s: %w", url, err))
	}
	return nil
}

func (p *Page) WaitForLoadState(ctx context.Context, state pages.WaitUntil, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   loadState(state),
		Timeout: timeoutMs(ctx, timeout),
	})
	if err != nil {
		return mapError(ctx, fmt.Errorf("waiting for %s: %w", state, err))
	}
	return nil
}

func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return data, nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Title()
}

func (p *Page) URL() string {
	return p.page.URL()
}

func (p *Page) ViewportSize() (pages.Viewport, bool) {
	size := p.page.ViewportSize()
	if size == nil {
		return pages.Viewport{}, false
	}
	return pages.Viewport{Width: size.Width, Height: size.Height}, true
}

func (p *Page) SetViewportSize(ctx context.Context, v pages.Viewport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.SetViewportSize(v.Width, v.Height)
}

func (p *Page) Reload(ctx context.Context, waitUntil pages.WaitUntil) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Reload(playwright.PageReloadOptions{
		WaitUntil: waitUntilState(waitUntil),
		Timeout:   timeoutMs(ctx, 0),
	})
	return mapError(ctx, err)
}

func (p *Page) GoBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.GoBack(playwright.PageGoBackOptions{Timeout: timeoutMs(ctx, 0)})
	return mapError(ctx, err)
}

func (p *Page) GoForward(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.GoForward(playwright.PageGoForwardOptions{Timeout: timeoutMs(ctx, 0)})
	return mapError(ctx, err)
}

func (p *Page) Evaluate(ctx context.Context, expression string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if arg == nil {
		return p.page.Evaluate(expression)
	}
	return p.page.Evaluate(expression, arg)
}

// Content returns the serialized DOM.
func (p *Page) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Content()
}

// Close closes the tab.
func (p *Page) Close() error {
	return p.page.Close()
}

func waitUntilState(w pages.WaitUntil) *playwright.WaitUntilState {
	switch w {
	case pages.WaitLoad:
		return playwright.WaitUntilStateLoad
	case pages.WaitNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	default:
		return playwright.WaitUntilStateDomcontentloaded
	}
}

func loadState(w pages.WaitUntil) *playwright.LoadState {
	switch w {
	case pages.WaitLoad:
		return playwright.LoadStateLoad
	case pages.WaitDOMContentLoaded:
		return playwright.LoadStateDomcontentloaded
	default:
		return playwright.LoadStateNetworkidle
	}
}

// timeoutMs bounds timeout by the context deadline. Zero means "use the
// context default" and yields nil unless the context has a deadline.
func timeoutMs(ctx context.Context, timeout time.Duration) *float64 {
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = time.Millisecond
		}
		if timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil
	}
	return playwright.Float(float64(timeout.Milliseconds()))
}

// mapError turns playwright timeouts into locator.ErrTimeout so callers can
// tell a slow page from a wrong selector.
func mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", locator.ErrTimeout, ctx.Err())
		}
		return fmt.Errorf("%w: %v", locator.ErrTimeout, err)
	}
	return err
}
