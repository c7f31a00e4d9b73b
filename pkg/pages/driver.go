package pages

import (
	"context"
	"time"

	"github.com/testforge/e2ekit/pkg/locator"
)

// WaitUntil is the load milestone a navigation waits for.
type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle      WaitUntil = "networkidle"
)

// Viewport is a page viewport in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Driver is the page-level surface a page object needs on top of element
// lookup. pkg/browser implements it over playwright.
type Driver interface {
	locator.Document

	Goto(ctx context.Context, url string, waitUntil WaitUntil, timeout time.Duration) error
	WaitForLoadState(ctx context.Context, state WaitUntil, timeout time.Duration) error
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	Title(ctx context.Context) (string, error)
	URL() string
	ViewportSize() (Viewport, bool)
	SetViewportSize(ctx context.Context, v Viewport) error
	Reload(ctx context.Context, waitUntil WaitUntil) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error
	Evaluate(ctx context.Context, expression string, arg any) (any, error)
}

// ArtifactStore receives screenshots after they are written locally.
type ArtifactStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
