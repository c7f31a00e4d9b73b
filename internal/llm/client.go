package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/testforge/e2ekit/internal/config"
	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/resilience"
)

// Completer turns a system and user prompt into model text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, *Usage, error)
}

// Usage contains token usage information
type Usage struct {
	InputTokens  int  `json:"input_tokens"`
	OutputTokens int  `json:"output_tokens"`
	Cached       bool `json:"cached,omitempty"`
}

// Recorder receives per-request measurements. observability.Metrics
// satisfies it.
type Recorder interface {
	RecordLLMRequest(provider, model, status string, duration time.Duration, inputTokens, outputTokens int)
	RecordCacheHit(backend string)
	RecordCacheMiss(backend string)
}

type nopRecorder struct{}

func (nopRecorder) RecordLLMRequest(string, string, string, time.Duration, int, int) {}
func (nopRecorder) RecordCacheHit(string)                                            {}
func (nopRecorder) RecordCacheMiss(string)                                           {}

// Config for a provider client
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
	RateLimitRPM int // Requests per minute
	MaxRetries   int
	Backoff      time.Duration // first retry delay, doubled per attempt

	// Attribution headers, OpenRouter only
	Referer string
	Title   string
}

// merge fills unset fields of cfg from def.
func merge(cfg, def Config) Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RateLimitRPM == 0 {
		cfg.RateLimitRPM = def.RateLimitRPM
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.Referer == "" {
		cfg.Referer = def.Referer
	}
	if cfg.Title == "" {
		cfg.Title = def.Title
	}
	return cfg
}

// Option customizes a client
type Option func(*transport)

func WithLogger(l *zap.Logger) Option {
	return func(t *transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithCache enables response caching.
func WithCache(c Cache) Option {
	return func(t *transport) { t.cache = c }
}

func WithRecorder(r Recorder) Option {
	return func(t *transport) {
		if r != nil {
			t.rec = r
		}
	}
}

// WithBreaker replaces the client's own circuit breaker, typically with
// one from a shared resilience.Registry.
func WithBreaker(b *resilience.Breaker) Option {
	return func(t *transport) {
		if b != nil {
			t.breaker = b
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(t *transport) {
		if c != nil {
			t.http = c
		}
	}
}

// transport holds what both providers share: rate limiting, caching, the
// circuit breaker, retries and metrics.
type transport struct {
	provider string
	cfg      Config
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	cache    Cache
	rec      Recorder
	logger   *zap.Logger
}

func newTransport(provider string, cfg Config, opts []Option) *transport {
	t := &transport{
		provider: provider,
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		// tokens per second = RPM / 60
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPM)/60.0), 1),
		rec:     nopRecorder{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.breaker == nil {
		bc := resilience.DefaultConfig(provider)
		bc.Failed = BreakerFailed
		t.breaker = resilience.New(bc)
	}
	return t
}

// BreakerFailed is the failure filter for LLM breakers: only retryable
// upstream errors count.
func BreakerFailed(err error) bool { return domain.IsRetryable(err) }

type sendFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error)

func (t *transport) complete(ctx context.Context, systemPrompt, userPrompt string, send sendFunc) (string, *Usage, error) {
	var key string
	if t.cache != nil {
		key = CacheKey(t.cfg.Model, systemPrompt, userPrompt, t.cfg.MaxTokens, t.cfg.Temperature)
		if text, ok := t.cache.Get(ctx, key); ok {
			t.rec.RecordCacheHit(t.cache.Backend())
			t.logger.Debug("completion cache hit",
				zap.String("provider", t.provider),
				zap.String("key", key[:16]),
			)
			return text, &Usage{Cached: true}, nil
		}
		t.rec.RecordCacheMiss(t.cache.Backend())
	}

	type reply struct {
		text  string
		usage Usage
	}

	var (
		out     reply
		lastErr error
		backoff = t.cfg.Backoff
	)
	attempts := t.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			t.logger.Warn("retrying completion",
				zap.String("provider", t.provider),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
			if err := sleep(ctx, backoff); err != nil {
				return "", nil, err
			}
			backoff *= 2
		}

		if err := t.limiter.Wait(ctx); err != nil {
			return "", nil, fmt.Errorf("rate limit: %w", err)
		}

		start := time.Now()
		r, err := resilience.Call(ctx, t.breaker, func(ctx context.Context) (reply, error) {
			text, usage, err := send(ctx, systemPrompt, userPrompt)
			return reply{text, usage}, err
		})
		elapsed := time.Since(start)

		if errors.Is(err, resilience.ErrOpen) || errors.Is(err, resilience.ErrTooManyProbes) {
			t.rec.RecordLLMRequest(t.provider, t.cfg.Model, "rejected", elapsed, 0, 0)
			return "", nil, domain.ErrServiceUnavailable(t.provider).WithCause(err)
		}
		if err != nil {
			t.rec.RecordLLMRequest(t.provider, t.cfg.Model, "error", elapsed, 0, 0)
			lastErr = err
			if !domain.IsRetryable(err) {
				return "", nil, err
			}
			continue
		}

		t.rec.RecordLLMRequest(t.provider, t.cfg.Model, "success", elapsed, r.usage.InputTokens, r.usage.OutputTokens)
		t.logger.Debug("completion finished",
			zap.String("provider", t.provider),
			zap.String("model", t.cfg.Model),
			zap.Duration("duration", elapsed),
			zap.Int("input_tokens", r.usage.InputTokens),
			zap.Int("output_tokens", r.usage.OutputTokens),
		)
		out, lastErr = r, nil
		break
	}
	if lastErr != nil {
		return "", nil, fmt.Errorf("%s: failed after %d attempts: %w", t.provider, attempts, lastErr)
	}

	if strings.TrimSpace(out.text) == "" {
		return "", &out.usage, domain.ErrExternalAPI(t.provider, errors.New("empty response"))
	}
	if t.cache != nil {
		t.cache.Set(ctx, key, out.text)
	}
	return out.text, &out.usage, nil
}

// post sends body and returns the response body for 200 replies.
func (t *transport) post(ctx context.Context, url string, body io.Reader, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.ErrExternalAPI(t.provider, fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrExternalAPI(t.provider, fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(t.provider, resp.StatusCode, data)
	}
	return data, nil
}

// statusError marks 429 and 5xx replies retryable; other client errors
// are permanent.
func statusError(provider string, status int, body []byte) *domain.AppError {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 500 {
		msg = msg[:500]
	}
	cause := fmt.Errorf("API error (status %d): %s", status, msg)
	if status == http.StatusTooManyRequests || status >= 500 {
		return domain.ErrExternalAPI(provider, cause).WithMetadata("status", status)
	}
	return domain.NewError(domain.ErrCodeExternalAPI, fmt.Sprintf("External API error: %s", provider), http.StatusBadGateway).
		WithCause(cause).
		WithMetadata("service", provider).
		WithMetadata("status", status)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// New builds the Completer selected by cfg.Provider.
func New(cfg config.LLMConfig, opts ...Option) (Completer, error) {
	pc := Config{
		MaxTokens:    cfg.MaxTokens,
		Temperature:  cfg.Temperature,
		Timeout:      cfg.Timeout,
		RateLimitRPM: cfg.RateLimitRPM,
		MaxRetries:   cfg.MaxRetries,
	}
	switch cfg.Provider {
	case config.ProviderAnthropic:
		pc.APIKey, pc.Model = cfg.AnthropicAPIKey, cfg.AnthropicModel
		c, err := NewClient(pc, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ProviderOpenRouter, "":
		pc.APIKey, pc.Model, pc.BaseURL = cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterURL
		c, err := NewOpenRouterClient(pc, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, domain.ErrValidationField("LLM_PROVIDER", fmt.Sprintf("unknown LLM provider %q", cfg.Provider))
	}
}
