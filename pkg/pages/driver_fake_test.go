package pages_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/testforge/e2ekit/pkg/locator/fakedom"
	"github.com/testforge/e2ekit/pkg/pages"
)

type navigation struct {
	URL     string
	Wait    pages.WaitUntil
	Timeout time.Duration
}

// fakeDriver is a pages.Driver over an in-memory document.
type fakeDriver struct {
	*fakedom.Document

	mu          sync.Mutex
	navigations []navigation
	loadStates  []pages.WaitUntil
	url         string
	title       string
	viewport    *pages.Viewport
	shot        []byte
	shotErr     error
	gotoErr     error
	history     int
}

func newFakeDriver(doc *fakedom.Document) *fakeDriver {
	return &fakeDriver{
		Document: doc,
		title:    "Fake Page",
		viewport: &pages.Viewport{Width: 1280, Height: 720},
		shot:     []byte("\x89PNG fake"),
	}
}

func (d *fakeDriver) Goto(_ context.Context, url string, wait pages.WaitUntil, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gotoErr != nil {
		return d.gotoErr
	}
	d.navigations = append(d.navigations, navigation{URL: url, Wait: wait, Timeout: timeout})
	d.url = url
	return nil
}

func (d *fakeDriver) WaitForLoadState(_ context.Context, state pages.WaitUntil, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loadStates = append(d.loadStates, state)
	return nil
}

func (d *fakeDriver) Screenshot(context.Context, bool) ([]byte, error) {
	return d.shot, d.shotErr
}

func (d *fakeDriver) Title(context.Context) (string, error) { return d.title, nil }

func (d *fakeDriver) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

func (d *fakeDriver) ViewportSize() (pages.Viewport, bool) {
	if d.viewport == nil {
		return pages.Viewport{}, false
	}
	return *d.viewport, true
}

func (d *fakeDriver) SetViewportSize(_ context.Context, v pages.Viewport) error {
	d.viewport = &v
	return nil
}

func (d *fakeDriver) Reload(context.Context, pages.WaitUntil) error { return nil }

func (d *fakeDriver) GoBack(context.Context) error {
	d.history--
	return nil
}

func (d *fakeDriver) GoForward(context.Context) error {
	d.history++
	return nil
}

func (d *fakeDriver) Evaluate(_ context.Context, expression string, _ any) (any, error) {
	if expression == "" {
		return nil, errors.New("empty expression")
	}
	return expression, nil
}

func (d *fakeDriver) lastNavigation() navigation {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.navigations) == 0 {
		return navigation{}
	}
	return d.navigations[len(d.navigations)-1]
}

type fakeStore struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (s *fakeStore) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.keys = append(s.keys, key)
	return "s3://artifacts/" + key, nil
}
