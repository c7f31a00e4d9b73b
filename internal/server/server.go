// Package server serves generated HTML reports, their listing, health and
// Prometheus metrics over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/testforge/e2ekit/internal/config"
	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/observability"
	"github.com/testforge/e2ekit/internal/report"
	"github.com/testforge/e2ekit/internal/resilience"
	"github.com/testforge/e2ekit/pkg/httputil"
)

// RouterConfig contains configuration for the router
type RouterConfig struct {
	ReportsDir     string
	Metrics        *observability.Metrics
	Breakers       *resilience.Registry
	AllowedOrigins []string
	Logger         *zap.Logger
	Version        string
}

// ReportEntry is one report in the listing.
type ReportEntry struct {
	Name     string    `json:"name"`
	URL      string    `json:"url"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// NewRouter creates the HTTP router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(recoverer(cfg.Logger))
	r.Use(requestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.HTTPMiddleware)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", healthHandler(cfg.Breakers, cfg.Version))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	r.Get("/api/reports", listReportsHandler(cfg.ReportsDir))
	r.Get("/reports/*", reportFileHandler(cfg.ReportsDir))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.Fail(w, r, domain.ErrNotFound("route", r.URL.Path))
	})

	return r
}

// healthHandler reports every breaker's state. Any open breaker makes the
// service degraded but it still answers 200: reports are served from disk.
func healthHandler(breakers *resilience.Registry, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		states := map[string]string{}
		if breakers != nil {
			for name, s := range breakers.States() {
				states[name] = s.String()
				if s == resilience.StateOpen {
					status = "degraded"
				}
			}
		}

		httputil.JSON(w, http.StatusOK, map[string]any{
			"status":   status,
			"service":  "e2ekit",
			"version":  version,
			"breakers": states,
		})
	}
}

func listReportsHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := report.List(dir)
		if err != nil {
			httputil.Fail(w, r, domain.ErrIO("listing", dir, err))
			return
		}

		entries := make([]ReportEntry, 0, len(names))
		for _, name := range names {
			info, err := os.Stat(filepath.Join(dir, name))
			if err != nil {
				continue
			}
			entries = append(entries, ReportEntry{
				Name:     name,
				URL:      "/reports/" + name,
				Size:     info.Size(),
				Modified: info.ModTime().UTC(),
			})
		}
		httputil.JSON(w, http.StatusOK, entries)
	}
}

// reportFileHandler serves files from dir. Directory listings are not
// exposed; /api/reports is the index.
func reportFileHandler(dir string) http.HandlerFunc {
	files := http.StripPrefix("/reports/", http.FileServer(http.Dir(dir)))
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "*")
		if name == "" || strings.HasSuffix(name, "/") {
			httputil.Fail(w, r, domain.ErrNotFound("report", name))
			return
		}
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+name))))
		if err != nil || info.IsDir() {
			httputil.Fail(w, r, domain.ErrNotFound("report", name))
			return
		}
		files.ServeHTTP(w, r)
	}
}

// Server runs the report router until its context ends.
type Server struct {
	http   *http.Server
	cfg    config.ServerConfig
	logger *zap.Logger
}

// New builds a server listening on cfg.Addr().
func New(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		http: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down within the configured
// timeout.
func (s *Server) Run(ctx context.Context) error {
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("Report server listening", zap.String("addr", s.http.Addr))
		serverErrors <- s.http.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		s.logger.Info("Shutdown requested")

		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Graceful shutdown failed, forcing close", zap.Error(err))
			_ = s.http.Close()
			return err
		}
		<-serverErrors
		s.logger.Info("Server stopped gracefully")
		return nil
	}
}
