// Package pages holds the page-object base and the concrete page objects.
// Page objects are stateless proxies: every accessor builds a fresh handle
// and every query reads the live document.
package pages

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/testforge/e2ekit/pkg/locator"
)

// MobileBreakpoint is the viewport width below which a page counts as mobile.
const MobileBreakpoint = 768

// DefaultNavigationTimeout bounds navigations and load-state waits.
const DefaultNavigationTimeout = 30 * time.Second

// Base carries the navigation, screenshot and debug surface shared by all
// page objects. It owns a resolver whose debug flag is private to it.
type Base struct {
	driver        Driver
	resolver      *locator.Resolver
	logger        *zap.Logger
	baseURL       string
	screenshotDir string
	navTimeout    time.Duration
	store         ArtifactStore
	storePrefix   string
	now           func() time.Time
	resolverOpts  []locator.Option
}

// Option configures a Base.
type Option func(*Base)

func WithLogger(l *zap.Logger) Option {
	return func(b *Base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithBaseURL makes relative navigation targets resolve against u.
func WithBaseURL(u string) Option {
	return func(b *Base) { b.baseURL = u }
}

func WithScreenshotDir(dir string) Option {
	return func(b *Base) { b.screenshotDir = dir }
}

func WithNavigationTimeout(d time.Duration) Option {
	return func(b *Base) {
		if d > 0 {
			b.navTimeout = d
		}
	}
}

// WithArtifactStore uploads every screenshot under prefix after it is
// written locally.
func WithArtifactStore(store ArtifactStore, prefix string) Option {
	return func(b *Base) {
		b.store = store
		b.storePrefix = prefix
	}
}

// WithResolverOptions passes options through to the page's resolver.
func WithResolverOptions(opts ...locator.Option) Option {
	return func(b *Base) { b.resolverOpts = append(b.resolverOpts, opts...) }
}

// WithClock replaces time.Now for screenshot names.
func WithClock(now func() time.Time) Option {
	return func(b *Base) { b.now = now }
}

// NewBase builds the shared page surface over d.
func NewBase(d Driver, opts ...Option) *Base {
	b := &Base{
		driver:        d,
		logger:        zap.NewNop(),
		screenshotDir: "screenshots",
		navTimeout:    DefaultNavigationTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	ropts := append([]locator.Option{locator.WithLogger(b.logger)}, b.resolverOpts...)
	b.resolver = locator.NewResolver(d, ropts...)
	return b
}

// Driver returns the underlying page driver.
func (b *Base) Driver() Driver { return b.driver }

// Resolver returns this page's resolver.
func (b *Base) Resolver() *locator.Resolver { return b.resolver }

// Logger returns the page logger.
func (b *Base) Logger() *zap.Logger { return b.logger }

// Navigate loads target and waits for the given milestone. The zero value
// waits for DOMContentLoaded.
func (b *Base) Navigate(ctx context.Context, target string, wait WaitUntil) error {
	if wait == "" {
		wait = WaitDOMContentLoaded
	}
	full, err := b.absoluteURL(target)
	if err != nil {
		return err
	}

	b.logger.Debug("navigating", zap.String("url", full), zap.String("wait_until", string(wait)))

	if err := b.driver.Goto(ctx, full, wait, b.navTimeout); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	return nil
}

// WaitForPageLoad waits until the network is idle.
func (b *Base) WaitForPageLoad(ctx context.Context) error {
	if err := b.driver.WaitForLoadState(ctx, WaitNetworkIdle, b.navTimeout); err != nil {
		return fmt.Errorf("wait for page load: %w", err)
	}
	return nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// TakeScreenshot writes a PNG to <dir>/<name>-<timestamp>.png and returns
// the path. Two calls with the same name never overwrite each other.
func (b *Base) TakeScreenshot(ctx context.Context, name string, fullPage bool) (string, error) {
	data, err := b.driver.Screenshot(ctx, fullPage)
	if err != nil {
		return "", fmt.Errorf("take screenshot %s: %w", name, err)
	}

	if err := os.MkdirAll(b.screenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("creating screenshot dir: %w", err)
	}

	stem := unsafeName.ReplaceAllString(name, "-")
	if stem == "" {
		stem = "screenshot"
	}
	stamp := Timestamp(b.now())

	var out string
	for i := 0; ; i++ {
		candidate := fmt.Sprintf("%s-%s.png", stem, stamp)
		if i > 0 {
			candidate = fmt.Sprintf("%s-%s-%d.png", stem, stamp, i)
		}
		out = filepath.Join(b.screenshotDir, candidate)

		f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("writing screenshot: %w", err)
		}
		_, werr := f.Write(data)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			return "", fmt.Errorf("writing screenshot: %w", err)
		}
		break
	}

	b.logger.Debug("screenshot saved", zap.String("path", out), zap.Bool("full_page", fullPage))

	if b.store != nil {
		key := path.Join(b.storePrefix, filepath.Base(out))
		if uri, err := b.store.Upload(ctx, key, data, "image/png"); err != nil {
			b.logger.Warn("screenshot upload failed", zap.String("key", key), zap.Error(err))
		} else {
			b.logger.Debug("screenshot uploaded", zap.String("uri", uri))
		}
	}

	return out, nil
}

// Timestamp renders t as an ISO-8601 UTC timestamp with ':' and '.'
// replaced by '-', safe for file names.
func Timestamp(t time.Time) string {
	s := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(s)
}

func (b *Base) Title(ctx context.Context) (string, error) {
	return b.driver.Title(ctx)
}

func (b *Base) CurrentURL() string {
	return b.driver.URL()
}

// ViewportSize returns the viewport, or false when the page has none.
func (b *Base) ViewportSize() (Viewport, bool) {
	return b.driver.ViewportSize()
}

func (b *Base) SetViewportSize(ctx context.Context, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid viewport %dx%d", width, height)
	}
	return b.driver.SetViewportSize(ctx, Viewport{Width: width, Height: height})
}

// IsMobile reports whether the viewport is narrower than MobileBreakpoint.
func (b *Base) IsMobile() bool {
	v, ok := b.driver.ViewportSize()
	return ok && v.Width < MobileBreakpoint
}

func (b *Base) Reload(ctx context.Context) error {
	return b.driver.Reload(ctx, WaitDOMContentLoaded)
}

func (b *Base) GoBack(ctx context.Context) error {
	return b.driver.GoBack(ctx)
}

func (b *Base) GoForward(ctx context.Context) error {
	return b.driver.GoForward(ctx)
}

// Wait pauses for d or until ctx is done.
func (b *Base) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (b *Base) Evaluate(ctx context.Context, expression string, arg any) (any, error) {
	return b.driver.Evaluate(ctx, expression, arg)
}

// EnableDebug turns on per-attempt resolution logging for this page only.
func (b *Base) EnableDebug() { b.resolver.SetDebug(true) }

// DisableDebug turns per-attempt resolution logging off.
func (b *Base) DisableDebug() { b.resolver.SetDebug(false) }

// Debug reports the page's debug flag.
func (b *Base) Debug() bool { return b.resolver.Debug() }

// Fill resolves s through its fallback chain and fills it.
func (b *Base) Fill(ctx context.Context, s locator.Strategy, value string) error {
	h, err := b.resolver.Resolve(ctx, s)
	if err != nil {
		return err
	}
	return h.Fill(ctx, value)
}

// Click resolves s through its fallback chain and clicks it.
func (b *Base) Click(ctx context.Context, s locator.Strategy) error {
	h, err := b.resolver.Resolve(ctx, s)
	if err != nil {
		return err
	}
	return h.Click(ctx)
}

// Value resolves s and reads its input value.
func (b *Base) Value(ctx context.Context, s locator.Strategy) (string, error) {
	h, err := b.resolver.Resolve(ctx, s)
	if err != nil {
		return "", err
	}
	return h.InputValue(ctx)
}

// Text resolves s and reads its text content.
func (b *Base) Text(ctx context.Context, s locator.Strategy) (string, error) {
	h, err := b.resolver.Resolve(ctx, s)
	if err != nil {
		return "", err
	}
	return h.TextContent(ctx)
}

// Read resolves s and returns its input value, or its text content when the
// element is not a form control.
func (b *Base) Read(ctx context.Context, s locator.Strategy) (string, error) {
	h, err := b.resolver.Resolve(ctx, s)
	if err != nil {
		return "", err
	}
	if v, err := h.InputValue(ctx); err == nil {
		return v, nil
	}
	return h.TextContent(ctx)
}

// SelectOption waits for s to be visible and selects values in it.
func (b *Base) SelectOption(ctx context.Context, s locator.Strategy, values ...string) ([]string, error) {
	h, err := b.resolver.WaitVisible(ctx, s, 0)
	if err != nil {
		return nil, err
	}
	return h.SelectOption(ctx, values...)
}

// IsVisible reports whether s resolves to a visible element. It never fails.
func (b *Base) IsVisible(ctx context.Context, s locator.Strategy) bool {
	h, err := b.resolver.Resolve(ctx, s)
	if err != nil {
		return false
	}
	ok, err := h.IsVisible(ctx)
	return err == nil && ok
}

func (b *Base) absoluteURL(target string) (string, error) {
	if b.baseURL == "" {
		return target, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", target, err)
	}
	if u.IsAbs() {
		return target, nil
	}
	base, err := url.Parse(b.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url %q: %w", b.baseURL, err)
	}
	return base.ResolveReference(u).String(), nil
}

// lookup resolves dotted table paths, collecting every missing one.
func lookup(table *locator.Table, paths ...string) ([]locator.Strategy, error) {
	if table == nil {
		return nil, errors.New("locator table is nil")
	}
	out := make([]locator.Strategy, len(paths))
	var missing []string
	for i, p := range paths {
		s, err := table.Lookup(p)
		if err != nil {
			missing = append(missing, strconv.Quote(p))
			continue
		}
		out[i] = s
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: table %s lacks %s", locator.ErrUnknownLocator, table.Page(), strings.Join(missing, ", "))
	}
	return out, nil
}
