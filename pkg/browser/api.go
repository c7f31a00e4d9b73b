package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// APIOptions configures a standalone API client.
type APIOptions struct {
	BaseURL string
	Headers map[string]string
	// Timeout bounds each request. Zero uses playwright's default.
	Timeout time.Duration
}

// APIClient sends HTTP requests through a playwright request context. A
// client from Session.API shares cookies with the browser pages.
type APIClient struct {
	req     playwright.APIRequestContext
	timeout time.Duration
	logger  *zap.Logger
	// stop tears down what the client owns. Nil for borrowed contexts.
	stop func() error
}

// WrapAPI adapts an existing request context. Close does not dispose it.
func WrapAPI(req playwright.APIRequestContext, logger *zap.Logger) *APIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIClient{req: req, logger: logger}
}

// NewAPIClient starts playwright without a browser and opens a request
// context. Close stops the driver.
func NewAPIClient(opts APIOptions, logger *zap.Logger) (*APIClient, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	ctxOpts := playwright.APIRequestNewContextOptions{
		ExtraHttpHeaders: opts.Headers,
	}
	if opts.BaseURL != "" {
		ctxOpts.BaseURL = playwright.String(opts.BaseURL)
	}
	if opts.Timeout > 0 {
		ctxOpts.Timeout = playwright.Float(float64(opts.Timeout.Milliseconds()))
	}
	req, err := pw.Request.NewContext(ctxOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("creating request context: %w", err)
	}

	c := WrapAPI(req, logger)
	c.timeout = opts.Timeout
	c.stop = func() error {
		var errs []error
		if err := req.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("disposing request context: %w", err))
		}
		if err := pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping playwright: %w", err))
		}
		return errors.Join(errs...)
	}
	return c, nil
}

// API returns a client bound to the session's browser context.
func (s *Session) API() *APIClient {
	c := WrapAPI(s.context.Request(), s.logger)
	c.timeout = s.opts.DefaultTimeout
	return c
}

// Close releases the request context when the client owns it.
func (c *APIClient) Close() error {
	if c.stop == nil {
		return nil
	}
	return c.stop()
}

// APIResponse is a fully read response.
type APIResponse struct {
	Status  int
	URL     string
	Headers map[string]string
	Body    []byte
}

// JSON decodes the body into v.
func (r *APIResponse) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding %s response: %w", r.URL, err)
	}
	return nil
}

// StatusError reports a response whose status was not one of Want.
type StatusError struct {
	Method string
	URL    string
	Status int
	Want   []int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d, want %v: %s", e.Method, e.URL, e.Status, e.Want, e.Body)
}

// RequestOption configures one request.
type RequestOption func(*request)

type request struct {
	headers map[string]string
	params  map[string]any
	data    any
	expect  []int
}

// WithHeader sets one request header.
func WithHeader(name, value string) RequestOption {
	return func(r *request) {
		if r.headers == nil {
			r.headers = make(map[string]string)
		}
		r.headers[name] = value
	}
}

// WithQuery adds a query parameter.
func WithQuery(name string, value any) RequestOption {
	return func(r *request) {
		if r.params == nil {
			r.params = make(map[string]any)
		}
		r.params[name] = value
	}
}

// WithBody sets the payload. Structs and maps are sent as JSON, strings and
// byte slices as is.
func WithBody(v any) RequestOption {
	return func(r *request) { r.data = v }
}

// ExpectStatus replaces the method's default status check. With no codes
// any status is accepted.
func ExpectStatus(codes ...int) RequestOption {
	return func(r *request) { r.expect = codes }
}

// Get expects 200 unless told otherwise.
func (c *APIClient) Get(ctx context.Context, url string, opts ...RequestOption) (*APIResponse, error) {
	return c.Do(ctx, http.MethodGet, url, append([]RequestOption{ExpectStatus(http.StatusOK)}, opts...)...)
}

// Post accepts any status unless told otherwise.
func (c *APIClient) Post(ctx context.Context, url string, body any, opts ...RequestOption) (*APIResponse, error) {
	return c.Do(ctx, http.MethodPost, url, append([]RequestOption{WithBody(body)}, opts...)...)
}

// Put expects 200 unless told otherwise.
func (c *APIClient) Put(ctx context.Context, url string, body any, opts ...RequestOption) (*APIResponse, error) {
	return c.Do(ctx, http.MethodPut, url, append([]RequestOption{WithBody(body), ExpectStatus(http.StatusOK)}, opts...)...)
}

// Delete expects 200 unless told otherwise.
func (c *APIClient) Delete(ctx context.Context, url string, opts ...RequestOption) (*APIResponse, error) {
	return c.Do(ctx, http.MethodDelete, url, append([]RequestOption{ExpectStatus(http.StatusOK)}, opts...)...)
}

// Do sends one request and reads the whole response. When a status check is
// set and fails, the response is returned along with a *StatusError.
func (c *APIClient) Do(ctx context.Context, method, url string, opts ...RequestOption) (*APIResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var r request
	for _, opt := range opts {
		opt(&r)
	}

	start := time.Now()
	resp, err := c.req.Fetch(url, playwright.APIRequestContextFetchOptions{
		Method:  playwright.String(method),
		Headers: r.headers,
		Params:  r.params,
		Data:    r.data,
		Timeout: timeoutMs(ctx, c.timeout),
	})
	if err != nil {
		return nil, mapError(ctx, fmt.Errorf("%s %s: %w", method, url, err))
	}
	defer resp.Dispose()

	body, err := resp.Body()
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", method, url, err)
	}
	out := &APIResponse{
		Status:  resp.Status(),
		URL:     resp.URL(),
		Headers: resp.Headers(),
		Body:    body,
	}

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("url", out.URL),
		zap.Int("status", out.Status),
		zap.Duration("duration", time.Since(start)))

	if len(r.expect) > 0 && !slices.Contains(r.expect, out.Status) {
		return out, &StatusError{
			Method: method,
			URL:    out.URL,
			Status: out.Status,
			Want:   r.expect,
			Body:   snippet(body, 200),
		}
	}
	return out, nil
}

func snippet(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
