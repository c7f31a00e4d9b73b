// Package fakedom is an in-memory locator.Document for tests that exercise
// resolution and page objects without a browser.
package fakedom

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/testforge/e2ekit/pkg/locator"
)

var (
	// ErrNoElement is returned by interactions on a handle with no match.
	ErrNoElement = errors.New("no element matches selector")
	// ErrNotInput is returned by InputValue on a Static element.
	ErrNotInput = errors.New("element is not an input")
)

const pollInterval = 5 * time.Millisecond

// Element is one node. Selectors lists every selector string that matches it.
type Element struct {
	ID        string
	Selectors []string
	Text      string
	Value     string
	Hidden    bool
	// Static elements are not form controls: InputValue fails on them.
	Static bool
	// Options makes the element a <select> with these option values.
	Options []string
	// OnClick runs after a click, outside the document lock.
	OnClick func(d *Document)
}

// Document holds elements in insertion order.
type Document struct {
	mu       sync.Mutex
	elements []*Element
	invalid  map[string]error
	queries  []string
}

// New creates a document with the given elements.
func New(elements ...*Element) *Document {
	d := &Document{invalid: make(map[string]error)}
	for _, e := range elements {
		d.Add(e)
	}
	return d
}

// Add appends an element.
func (d *Document) Add(e *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements = append(d.elements, e)
}

// Remove detaches every element with id.
func (d *Document) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements = slices.DeleteFunc(d.elements, func(e *Element) bool { return e.ID == id })
}

// SetValue sets the value of element id.
func (d *Document) SetValue(id, value string) {
	d.update(id, func(e *Element) { e.Value = value })
}

// SetHidden sets the visibility of element id.
func (d *Document) SetHidden(id string, hidden bool) {
	d.update(id, func(e *Element) { e.Hidden = hidden })
}

// SetText sets the text content of element id.
func (d *Document) SetText(id, text string) {
	d.update(id, func(e *Element) { e.Text = text })
}

// Value returns the current value of element id.
func (d *Document) Value(id string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.elements {
		if e.ID == id {
			return e.Value
		}
	}
	return ""
}

// SetInvalid makes every Count on selector fail with err.
func (d *Document) SetInvalid(selector string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		err = fmt.Errorf("malformed selector %q", selector)
	}
	d.invalid[selector] = err
}

// Queries returns the selectors passed to Count, in call order.
func (d *Document) Queries() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.queries)
}

// ResetQueries clears the query log.
func (d *Document) ResetQueries() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = nil
}

// Locator implements locator.Document.
func (d *Document) Locator(selector string) locator.Handle {
	return &handle{doc: d, selector: selector, nth: -1}
}

func (d *Document) update(id string, fn func(*Element)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.elements {
		if e.ID == id {
			fn(e)
		}
	}
}

type handle struct {
	doc      *Document
	selector string
	hasText  string
	nth      int
}

func (h *handle) Selector() string {
	s := h.selector
	if h.hasText != "" {
		s += " >> has-text=" + strconv.Quote(h.hasText)
	}
	if h.nth >= 0 {
		s += " >> nth=" + strconv.Itoa(h.nth)
	}
	return s
}

// matches must be called with the document lock held.
func (h *handle) matches() []*Element {
	var out []*Element
	for _, e := range h.doc.elements {
		if !slices.Contains(e.Selectors, h.selector) {
			continue
		}
		if h.hasText != "" && !strings.Contains(e.Text, h.hasText) {
			continue
		}
		out = append(out, e)
	}
	if h.nth >= 0 {
		if h.nth < len(out) {
			return out[h.nth : h.nth+1]
		}
		return nil
	}
	return out
}

func (h *handle) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	h.doc.queries = append(h.doc.queries, h.selector)
	if err, ok := h.doc.invalid[h.selector]; ok {
		return 0, err
	}
	return len(h.matches()), nil
}

func (h *handle) WaitFor(ctx context.Context, state locator.State, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if h.inState(state) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s: %w", h.Selector(), locator.ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (h *handle) inState(state locator.State) bool {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	m := h.matches()
	switch state {
	case locator.StateVisible:
		return len(m) > 0 && !m[0].Hidden
	case locator.StateHidden:
		return len(m) == 0 || m[0].Hidden
	case locator.StateAttached:
		return len(m) > 0
	case locator.StateDetached:
		return len(m) == 0
	}
	return false
}

func (h *handle) first() (*Element, error) {
	m := h.matches()
	if len(m) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, h.Selector())
	}
	return m[0], nil
}

func (h *handle) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	e, err := h.first()
	if err != nil {
		return err
	}
	e.Value = value
	return nil
}

func (h *handle) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.doc.mu.Lock()
	e, err := h.first()
	if err == nil && e.Hidden {
		err = fmt.Errorf("element %s is not visible", h.Selector())
	}
	var onClick func(*Document)
	if err == nil {
		onClick = e.OnClick
	}
	h.doc.mu.Unlock()

	if err != nil {
		return err
	}
	if onClick != nil {
		onClick(h.doc)
	}
	return nil
}

func (h *handle) InputValue(ctx context.Context) (string, error) {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	e, err := h.first()
	if err != nil {
		return "", err
	}
	if e.Static {
		return "", fmt.Errorf("%w: %s", ErrNotInput, h.Selector())
	}
	return e.Value, nil
}

// SelectOption sets the element's value to the first of values. Every value
// must be one of the element's Options.
func (h *handle) SelectOption(ctx context.Context, values ...string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	e, err := h.first()
	if err != nil {
		return nil, err
	}
	if len(e.Options) == 0 {
		return nil, fmt.Errorf("element %s is not a select", h.Selector())
	}
	for _, v := range values {
		if !slices.Contains(e.Options, v) {
			return nil, fmt.Errorf("%s has no option %q", h.Selector(), v)
		}
	}
	e.Value = ""
	if len(values) > 0 {
		e.Value = values[0]
	}
	return slices.Clone(values), nil
}

func (h *handle) TextContent(ctx context.Context) (string, error) {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	e, err := h.first()
	if err != nil {
		return "", err
	}
	return e.Text, nil
}

func (h *handle) IsVisible(ctx context.Context) (bool, error) {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	m := h.matches()
	return len(m) > 0 && !m[0].Hidden, nil
}

func (h *handle) FilterText(text string) locator.Handle {
	c := *h
	c.hasText = text
	return &c
}

func (h *handle) Nth(i int) locator.Handle {
	c := *h
	c.nth = i
	return &c
}
