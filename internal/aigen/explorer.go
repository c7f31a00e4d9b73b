// Package aigen explores a live page and asks a language model to design a
// test suite for it.
package aigen

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/pkg/pages"
)

// Limits applied to what a snapshot carries into the prompt.
const (
	MaxLinks     = 15
	MaxHTMLChars = 3000
)

// Tab is the slice of a browser page the explorer drives.
// *browser.Page satisfies it.
type Tab interface {
	Goto(ctx context.Context, url string, waitUntil pages.WaitUntil, timeout time.Duration) error
	Evaluate(ctx context.Context, expression string, arg any) (any, error)
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	Title(ctx context.Context) (string, error)
	URL() string
	Close() error
}

// Element is an interactive element found on the page.
type Element struct {
	Kind        string `json:"type"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder,omitempty"`
	Locator     string `json:"locator"`
	Name        string `json:"name,omitempty"`
	InputType   string `json:"inputType,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Href        string `json:"href,omitempty"`
}

type Form struct {
	ID      string `json:"id"`
	Action  string `json:"action"`
	Inputs  int    `json:"inputs"`
	Buttons int    `json:"buttons"`
}

// Structure summarizes the page layout.
type Structure struct {
	HasHeader bool     `json:"hasHeader"`
	HasNav    bool     `json:"hasNav"`
	HasMain   bool     `json:"hasMain"`
	HasFooter bool     `json:"hasFooter"`
	Forms     int      `json:"forms"`
	Inputs    int      `json:"inputs"`
	Buttons   int      `json:"buttons"`
	Links     int      `json:"links"`
	Tables    int      `json:"tables"`
	Headings  []string `json:"headings"`
	MainText  string   `json:"mainText"`
}

// Snapshot is everything the generator learns about one page.
type Snapshot struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Inputs     []Element `json:"inputs"`
	Buttons    []Element `json:"buttons"`
	Links      []Element `json:"links"`
	Forms      []Form    `json:"forms"`
	Structure  Structure `json:"pageStructure"`
	HTML       string    `json:"html"`
	Screenshot []byte    `json:"-"`
}

// extractScript runs in the page and returns a Snapshot-shaped object.
const extractScript = `() => {
  const text = (el) => (el && el.textContent ? el.textContent.trim() : '');
  const inputs = Array.from(document.querySelectorAll('input, textarea, select')).map((el, idx) => ({
    type: 'input',
    label: el.getAttribute('aria-label') || el.getAttribute('placeholder') || el.getAttribute('title') || el.name || el.id || 'input-' + idx,
    placeholder: el.placeholder || '',
    locator: el.id ? '#' + el.id : el.name ? '[name="' + el.name + '"]' : 'input:nth-of-type(' + (idx + 1) + ')',
    name: el.name || '',
    inputType: el.type || 'text',
    required: !!el.required,
  }));
  const buttons = Array.from(document.querySelectorAll('button, [type="submit"], [role="button"]')).map((el, idx) => ({
    type: 'button',
    label: text(el) || el.value || el.getAttribute('aria-label') || 'button-' + idx,
    locator: el.id ? '#' + el.id : text(el) ? 'button:has-text("' + text(el) + '")' : 'button:nth-of-type(' + (idx + 1) + ')',
    name: el.name || '',
  }));
  const allLinks = Array.from(document.querySelectorAll('a[href]'));
  const links = allLinks.slice(0, %d).map((el) => ({
    type: 'link',
    label: text(el),
    locator: 'a:has-text("' + text(el) + '")',
    href: el.href,
  }));
  const forms = Array.from(document.querySelectorAll('form')).map((f) => ({
    id: f.id || '',
    action: f.action || '',
    inputs: f.querySelectorAll('input').length,
    buttons: f.querySelectorAll('button').length,
  }));
  const main = document.querySelector('main, [role="main"], .content');
  return {
    url: window.location.href,
    title: document.title,
    inputs, buttons, links, forms,
    pageStructure: {
      hasHeader: !!document.querySelector('header, [role="banner"]'),
      hasNav: !!document.querySelector('nav, [role="navigation"]'),
      hasMain: !!main,
      hasFooter: !!document.querySelector('footer, [role="contentinfo"]'),
      forms: forms.length,
      inputs: inputs.length,
      buttons: buttons.length,
      links: allLinks.length,
      tables: document.querySelectorAll('table').length,
      headings: Array.from(document.querySelectorAll('h1, h2, h3')).map(text),
      mainText: main ? text(main).substring(0, 500) : '',
    },
    html: document.body ? document.body.innerHTML.substring(0, %d) : '',
  };
}`

// Explorer opens pages and extracts Snapshots.
type Explorer struct {
	open   func() (Tab, error)
	logger *zap.Logger

	idleTimeout time.Duration
	domTimeout  time.Duration
	settle      time.Duration
}

type ExplorerOption func(*Explorer)

func WithExplorerLogger(l *zap.Logger) ExplorerOption {
	return func(e *Explorer) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSettle sets how long to wait for dynamic content after load.
func WithSettle(d time.Duration) ExplorerOption {
	return func(e *Explorer) { e.settle = d }
}

// WithLoadTimeouts sets the networkidle and domcontentloaded budgets.
func WithLoadTimeouts(idle, dom time.Duration) ExplorerOption {
	return func(e *Explorer) { e.idleTimeout, e.domTimeout = idle, dom }
}

// NewExplorer builds an explorer that gets a fresh tab from open for
// every page.
func NewExplorer(open func() (Tab, error), opts ...ExplorerOption) *Explorer {
	e := &Explorer{
		open:        open,
		logger:      zap.NewNop(),
		idleTimeout: 60 * time.Second,
		domTimeout:  30 * time.Second,
		settle:      3 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Explore loads url, waiting for the network to go idle and falling back to
// DOMContentLoaded, then extracts the page.
func (e *Explorer) Explore(ctx context.Context, url string) (*Snapshot, error) {
	tab, err := e.open()
	if err != nil {
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	defer tab.Close()

	e.logger.Info("exploring page", zap.String("url", url))

	if err := tab.Goto(ctx, url, pages.WaitNetworkIdle, e.idleTimeout); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("network idle timeout, falling back to domcontentloaded",
			zap.String("url", url), zap.Error(err))
		if err := tab.Goto(ctx, url, pages.WaitDOMContentLoaded, e.domTimeout); err != nil {
			return nil, domain.ErrTimeout("loading " + url).WithCause(err)
		}
	}

	if e.settle > 0 {
		timer := time.NewTimer(e.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	shot, err := tab.Screenshot(ctx, false)
	if err != nil {
		e.logger.Warn("screenshot failed", zap.String("url", url), zap.Error(err))
	}

	raw, err := tab.Evaluate(ctx, fmt.Sprintf(extractScript, MaxLinks, MaxHTMLChars), nil)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", url, err)
	}
	snap, err := decodeSnapshot(raw)
	if err != nil {
		return nil, err
	}
	snap.Screenshot = shot
	if snap.URL == "" {
		snap.URL = tab.URL()
	}
	if snap.Title == "" {
		snap.Title, _ = tab.Title(ctx)
	}
	snap.clamp()

	e.logger.Info("page explored",
		zap.String("url", snap.URL),
		zap.Int("inputs", len(snap.Inputs)),
		zap.Int("buttons", len(snap.Buttons)),
		zap.Int("links", len(snap.Links)),
		zap.Int("forms", len(snap.Forms)),
	)
	return snap, nil
}

// ExploreAll explores urls with at most limit pages open at once. Results
// keep the order of urls; the first failure cancels the rest.
func (e *Explorer) ExploreAll(ctx context.Context, urls []string, limit int) ([]*Snapshot, error) {
	out := make([]*Snapshot, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, u := range urls {
		g.Go(func() error {
			snap, err := e.Explore(ctx, u)
			if err != nil {
				return fmt.Errorf("exploring %s: %w", u, err)
			}
			out[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeSnapshot(raw any) (*Snapshot, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, domain.ErrParseFailed("page snapshot", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, domain.ErrParseFailed("page snapshot", err)
	}
	return &snap, nil
}

// clamp enforces the link and HTML limits whatever the script returned.
func (s *Snapshot) clamp() {
	if len(s.Links) > MaxLinks {
		s.Links = s.Links[:MaxLinks]
	}
	if r := []rune(s.HTML); len(r) > MaxHTMLChars {
		s.HTML = string(r[:MaxHTMLChars])
	}
}
