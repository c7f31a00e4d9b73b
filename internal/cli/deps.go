package cli

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/testforge/e2ekit/internal/config"
	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/llm"
	"github.com/testforge/e2ekit/internal/report"
	"github.com/testforge/e2ekit/internal/storage"
	"github.com/testforge/e2ekit/pkg/browser"
)

// completer builds the configured LLM client with caching, metrics and the
// shared breaker. The close func releases the cache.
func (a *app) completer(ctx context.Context) (llm.Completer, func() error, error) {
	if a.cfg.LLM.APIKey() == "" {
		key := "OPENROUTER_API_KEY"
		if a.cfg.LLM.Provider == config.ProviderAnthropic {
			key = "ANTHROPIC_API_KEY"
		}
		return nil, nil, domain.ErrValidationField(key, key+" is not set. Add it to .env or the environment")
	}

	cache, closeCache := llm.NewCache(ctx, a.cfg.LLM, a.cfg.Redis, a.logger)
	opts := []llm.Option{
		llm.WithLogger(a.logger),
		llm.WithRecorder(a.metrics),
		llm.WithBreaker(a.breakers.Get(a.cfg.LLM.Provider)),
	}
	if cache != nil {
		opts = append(opts, llm.WithCache(cache))
	}

	c, err := llm.New(a.cfg.LLM, opts...)
	if err != nil {
		_ = closeCache()
		return nil, nil, err
	}
	return c, closeCache, nil
}

// store returns the artifact store, or nil when storage is disabled.
func (a *app) store(ctx context.Context) (*storage.Store, error) {
	if !a.cfg.Storage.Enabled {
		return nil, nil
	}
	s, err := storage.New(a.cfg.Storage, a.logger)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// uploader is store as a report.Uploader, keeping a nil store a nil
// interface.
func (a *app) uploader(ctx context.Context) (report.Uploader, error) {
	s, err := a.store(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	return s, nil
}

// upload copies a local file into the artifact store when one is
// configured. Failures are warnings: the local file is what matters.
func (a *app) upload(ctx context.Context, prefix, path string) {
	s, err := a.store(ctx)
	if err != nil {
		a.out.Warn("Artifact store unavailable: %v", err)
		return
	}
	if s == nil {
		return
	}
	uri, err := s.UploadFile(ctx, storage.Key(prefix, path), path)
	if err != nil {
		a.out.Warn("Upload failed: %v", err)
		return
	}
	a.out.Bullet("Uploaded: %s", uri)
}

func (a *app) browserOptions() browser.Options {
	b := a.cfg.Browser
	return browser.Options{
		Kind:           browser.Kind(strings.ToLower(b.Kind)),
		Headless:       b.Headless,
		SlowMo:         b.SlowMo,
		BaseURL:        b.BaseURL,
		ViewportWidth:  b.ViewportWidth,
		ViewportHeight: b.ViewportHeight,
		UserAgent:      b.UserAgent,
		DefaultTimeout: b.DefaultTimeout,
		Install:        b.Install,
	}
}

// launch starts a browser session. The caller closes it.
func (a *app) launch() (*browser.Session, error) {
	session, err := browser.Launch(a.browserOptions(), a.logger)
	if err != nil {
		return nil, domain.ErrServiceUnavailable("browser").WithCause(err).
			WithDetails("run with PLAYWRIGHT_INSTALL=true once to download the browser")
	}
	return session, nil
}

func (a *app) closeSession(s *browser.Session) {
	if err := s.Close(); err != nil {
		a.logger.Warn("closing browser session", zap.Error(err))
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	if strings.HasSuffix(word, "x") || strings.HasSuffix(word, "s") {
		return fmt.Sprintf("%d %ses", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
