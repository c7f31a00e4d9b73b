package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/testforge/e2ekit/internal/results"
	"github.com/testforge/e2ekit/pkg/locator"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "e2ekit"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	// Locator resolution metrics
	Resolutions         *prometheus.CounterVec
	ResolutionDuration  *prometheus.HistogramVec
	ExhaustedStrategies *prometheus.CounterVec

	// LLM metrics
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	LLMTokensUsed      *prometheus.CounterVec
	LLMCacheHits       *prometheus.CounterVec
	LLMCacheMisses     *prometheus.CounterVec

	// Reporting metrics
	ReportsGenerated prometheus.Counter
	TestsReported    *prometheus.CounterVec

	// Circuit breaker state, 0 closed, 1 open, 2 half-open
	BreakerState *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates a new metrics instance registered on reg. A nil reg
// uses the process-wide default registry.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	f := promauto.With(registerer)

	m := &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_active",
				Help:      "Number of active HTTP requests",
			},
		),

		Resolutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "locator_resolutions_total",
				Help:      "Locator resolutions by winning tier and outcome",
			},
			[]string{"tier", "outcome"},
		),
		ResolutionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "locator_resolution_duration_seconds",
				Help:      "Time spent resolving a locator strategy",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"outcome"},
		),
		ExhaustedStrategies: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "locator_exhausted_total",
				Help:      "Strategies whose every candidate failed, by element",
			},
			[]string{"element"},
		),

		LLMRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Total completion requests",
			},
			[]string{"provider", "model", "status"},
		),
		LLMRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Completion request duration",
				Buckets:   []float64{.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"provider", "model"},
		),
		LLMTokensUsed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Tokens consumed by completion requests",
			},
			[]string{"provider", "type"},
		),
		LLMCacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_cache_hits_total",
				Help:      "Completion cache hits",
			},
			[]string{"backend"},
		),
		LLMCacheMisses: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_cache_misses_total",
				Help:      "Completion cache misses",
			},
			[]string{"backend"},
		),

		ReportsGenerated: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_generated_total",
				Help:      "HTML reports written",
			},
		),
		TestsReported: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tests_reported_total",
				Help:      "Tests included in generated reports, by status",
			},
			[]string{"status"},
		),

		BreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"name"},
		),

		gatherer: gatherer,
	}

	return m
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Resolved implements locator.Observer.
func (m *Metrics) Resolved(_ string, tier locator.Tier, elapsed time.Duration) {
	m.Resolutions.WithLabelValues(string(tier), "resolved").Inc()
	m.ResolutionDuration.WithLabelValues("resolved").Observe(elapsed.Seconds())
}

// Exhausted implements locator.Observer.
func (m *Metrics) Exhausted(description string, _ int, elapsed time.Duration) {
	m.Resolutions.WithLabelValues("none", "exhausted").Inc()
	m.ResolutionDuration.WithLabelValues("exhausted").Observe(elapsed.Seconds())
	m.ExhaustedStrategies.WithLabelValues(description).Inc()
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLLMRequest records one completion call
func (m *Metrics) RecordLLMRequest(provider, model, status string, duration time.Duration, inputTokens, outputTokens int) {
	m.LLMRequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	m.LLMTokensUsed.WithLabelValues(provider, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(provider, "output").Add(float64(outputTokens))
}

func (m *Metrics) RecordCacheHit(backend string) {
	m.LLMCacheHits.WithLabelValues(backend).Inc()
}

func (m *Metrics) RecordCacheMiss(backend string) {
	m.LLMCacheMisses.WithLabelValues(backend).Inc()
}

// ReportGenerated implements report.Observer.
func (m *Metrics) ReportGenerated(s results.Summary) {
	m.ReportsGenerated.Inc()
	m.TestsReported.WithLabelValues("pass").Add(float64(s.Passed))
	m.TestsReported.WithLabelValues("fail").Add(float64(s.Failed))
	m.TestsReported.WithLabelValues("flaky").Add(float64(s.Flaky))
	m.TestsReported.WithLabelValues("skipped").Add(float64(s.Skipped))
}

// RecordBreakerState stores the numeric state of a named breaker.
func (m *Metrics) RecordBreakerState(name string, state float64) {
	m.BreakerState.WithLabelValues(name).Set(state)
}

// HTTPMiddleware returns middleware for recording HTTP metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsActive.Inc()
		defer m.HTTPRequestsActive.Dec()

		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		m.RecordHTTPRequest(r.Method, routePattern(r), wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routePattern keeps path labels bounded: report file names collapse to
// their directory.
func routePattern(r *http.Request) string {
	p := r.URL.Path
	for _, prefix := range []string{"/reports/", "/api/reports/"} {
		if len(p) > len(prefix) && p[:len(prefix)] == prefix {
			return prefix + "*"
		}
	}
	return p
}
