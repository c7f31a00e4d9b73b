// Package locator resolves declarative selector strategies against a live
// document through a fixed fallback chain: primary, data-test-id, fallback.
package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds waits that do not specify their own timeout.
const DefaultTimeout = 5 * time.Second

// Observer receives resolution outcomes, typically for metrics.
type Observer interface {
	Resolved(description string, tier Tier, elapsed time.Duration)
	Exhausted(description string, attempted int, elapsed time.Duration)
}

// Resolution is the outcome of a validated resolution.
type Resolution struct {
	Handle    Handle
	Tier      Tier
	Selector  string
	Attempted []string
}

// Resolver turns strategies into handles on one document. A resolver
// belongs to one page object; its debug flag is not shared.
type Resolver struct {
	doc      Document
	logger   *zap.Logger
	observer Observer
	timeout  atomic.Int64
	debug    atomic.Bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver attaches a resolution observer.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// WithTimeout sets the default wait timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout.Store(int64(d))
		}
	}
}

// WithDebug starts the resolver with debug logging on or off.
func WithDebug(on bool) Option {
	return func(r *Resolver) { r.debug.Store(on) }
}

// NewResolver creates a resolver over doc.
func NewResolver(doc Document, opts ...Option) *Resolver {
	r := &Resolver{
		doc:    doc,
		logger: zap.NewNop(),
	}
	r.timeout.Store(int64(DefaultTimeout))
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetDebug toggles per-attempt logging for this resolver only.
func (r *Resolver) SetDebug(on bool) { r.debug.Store(on) }

// Debug reports whether per-attempt logging is on.
func (r *Resolver) Debug() bool { return r.debug.Load() }

// Timeout returns the default wait timeout.
func (r *Resolver) Timeout() time.Duration { return time.Duration(r.timeout.Load()) }

// SetTimeout changes the default wait timeout for later waits. Non-positive
// values are ignored.
func (r *Resolver) SetTimeout(d time.Duration) {
	if d > 0 {
		r.timeout.Store(int64(d))
	}
}

// Document returns the document the resolver queries.
func (r *Resolver) Document() Document { return r.doc }

// Locate returns a handle on the primary selector without querying the
// document. Failures surface on first use of the handle.
func (r *Resolver) Locate(s Strategy) Handle {
	return r.doc.Locator(s.Primary)
}

// Resolve walks the fallback chain and returns the first candidate with at
// least one match. When nothing matches it returns an *ExhaustedError.
func (r *Resolver) Resolve(ctx context.Context, s Strategy) (Handle, error) {
	res, err := r.Trace(ctx, s)
	if err != nil {
		return nil, err
	}
	return res.Handle, nil
}

// ResolveOrPrimary is Resolve without the exhaustion failure: when nothing
// matches it returns the primary handle so the next wait reports the problem.
func (r *Resolver) ResolveOrPrimary(ctx context.Context, s Strategy) (Handle, error) {
	h, err := r.Resolve(ctx, s)
	if IsExhausted(err) {
		return r.Locate(s), nil
	}
	return h, err
}

// Trace is Resolve with diagnostics: the winning tier and every selector
// queried, in order, up to and including the winner.
func (r *Resolver) Trace(ctx context.Context, s Strategy) (Resolution, error) {
	if err := s.Validate(); err != nil {
		return Resolution{}, err
	}

	start := time.Now()
	debug := r.debug.Load()
	var attempted []string

	for _, c := range s.Candidates() {
		if err := ctx.Err(); err != nil {
			return Resolution{Attempted: attempted}, fmt.Errorf("resolving %s: %w", s.label(), err)
		}

		attempted = append(attempted, c.Selector)
		h := r.doc.Locator(c.Selector)

		count, err := h.Count(ctx)
		if err != nil {
			if debug {
				r.logger.Debug("selector query failed",
					zap.String("element", s.label()),
					zap.String("tier", string(c.Tier)),
					zap.String("selector", c.Selector),
					zap.Error(err))
			}
			continue
		}

		if debug {
			r.logger.Debug("selector queried",
				zap.String("element", s.label()),
				zap.String("tier", string(c.Tier)),
				zap.String("selector", c.Selector),
				zap.Int("count", count))
		}

		if count > 0 {
			if r.observer != nil {
				r.observer.Resolved(s.label(), c.Tier, time.Since(start))
			}
			return Resolution{
				Handle:    h,
				Tier:      c.Tier,
				Selector:  c.Selector,
				Attempted: attempted,
			}, nil
		}
	}

	if r.observer != nil {
		r.observer.Exhausted(s.label(), len(attempted), time.Since(start))
	}
	if debug {
		r.logger.Debug("fallback chain exhausted",
			zap.String("element", s.label()),
			zap.Strings("attempted", attempted))
	}

	return Resolution{Attempted: attempted}, &ExhaustedError{
		Description: s.Description,
		Attempted:   attempted,
	}
}

// Exists reports whether any selector in the chain matches. It never fails.
func (r *Resolver) Exists(ctx context.Context, s Strategy) bool {
	_, err := r.Resolve(ctx, s)
	return err == nil
}

// WaitVisible resolves s and waits until the match is visible. A zero
// timeout uses the resolver default.
func (r *Resolver) WaitVisible(ctx context.Context, s Strategy, timeout time.Duration) (Handle, error) {
	h, err := r.Resolve(ctx, s)
	if err != nil {
		return nil, err
	}
	if err := r.wait(ctx, h, StateVisible, timeout); err != nil {
		return nil, err
	}
	return h, nil
}

// WaitHidden waits until s is hidden. A strategy with no matches at all is
// already hidden, so it waits on the primary selector.
func (r *Resolver) WaitHidden(ctx context.Context, s Strategy, timeout time.Duration) error {
	h, err := r.ResolveOrPrimary(ctx, s)
	if err != nil {
		return err
	}
	return r.wait(ctx, h, StateHidden, timeout)
}

// ByText resolves s and narrows it to matches containing text.
func (r *Resolver) ByText(ctx context.Context, s Strategy, text string) (Handle, error) {
	h, err := r.Resolve(ctx, s)
	if err != nil {
		return nil, err
	}
	return h.FilterText(text), nil
}

// All resolves s and returns one handle per match. The length is fixed at
// the moment of the call.
func (r *Resolver) All(ctx context.Context, s Strategy) ([]Handle, error) {
	h, err := r.Resolve(ctx, s)
	if err != nil {
		return nil, err
	}
	count, err := h.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting %q: %w", h.Selector(), err)
	}
	out := make([]Handle, count)
	for i := range out {
		out[i] = h.Nth(i)
	}
	return out, nil
}

// IndexOfText resolves s and returns the zero-based index of the first match
// whose trimmed text equals text, or -1 when none does.
func (r *Resolver) IndexOfText(ctx context.Context, s Strategy, text string) (int, error) {
	all, err := r.All(ctx, s)
	if err != nil {
		return -1, err
	}
	for i, h := range all {
		got, err := h.TextContent(ctx)
		if err != nil {
			return -1, fmt.Errorf("reading text of %q: %w", h.Selector(), err)
		}
		if strings.TrimSpace(got) == text {
			return i, nil
		}
	}
	return -1, nil
}

func (r *Resolver) wait(ctx context.Context, h Handle, state State, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = r.Timeout()
	}
	err := h.WaitFor(ctx, state, timeout)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{
			Selector: h.Selector(),
			State:    state,
			Timeout:  timeout,
			Err:      err,
		}
	}
	return fmt.Errorf("waiting for %q to be %s: %w", h.Selector(), state, err)
}
