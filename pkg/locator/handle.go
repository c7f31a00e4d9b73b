package locator

import (
	"context"
	"time"
)

// State is a visibility state a handle can be waited into.
type State string

const (
	StateVisible  State = "visible"
	StateHidden   State = "hidden"
	StateAttached State = "attached"
	StateDetached State = "detached"
)

// Handle is a live, uncached reference to the nodes matching one selector.
// Every call re-queries the document.
type Handle interface {
	Selector() string
	Count(ctx context.Context) (int, error)
	WaitFor(ctx context.Context, state State, timeout time.Duration) error
	Fill(ctx context.Context, value string) error
	Click(ctx context.Context) error
	InputValue(ctx context.Context) (string, error)
	TextContent(ctx context.Context) (string, error)
	IsVisible(ctx context.Context) (bool, error)
	// SelectOption selects the options of a <select> by value or label and
	// returns the values now selected.
	SelectOption(ctx context.Context, values ...string) ([]string, error)
	// FilterText narrows the handle to matches whose text contains text.
	FilterText(text string) Handle
	// Nth narrows the handle to the i-th match (zero based).
	Nth(i int) Handle
}

// Document builds handles from selectors. It is the only capability the
// resolver needs from a browser binding.
type Document interface {
	Locator(selector string) Handle
}
