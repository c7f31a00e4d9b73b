package locator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoMatch matches every selector-exhaustion failure.
	ErrNoMatch = errors.New("no matching selector")

	// ErrTimeout matches every wait that expired before reaching its state.
	ErrTimeout = errors.New("timed out")

	// ErrInvalidStrategy is returned for strategies without a primary selector.
	ErrInvalidStrategy = errors.New("invalid locator strategy")

	// ErrUnknownLocator is returned by table lookups for missing entries.
	ErrUnknownLocator = errors.New("unknown locator")
)

// ExhaustedError reports that no selector in a fallback chain matched.
// Attempted lists every selector queried, in order.
type ExhaustedError struct {
	Description string
	Attempted   []string
}

func (e *ExhaustedError) Error() string {
	quoted := make([]string, len(e.Attempted))
	for i, s := range e.Attempted {
		quoted[i] = strconv.Quote(s)
	}
	name := e.Description
	if name == "" {
		name = "element"
	}
	return fmt.Sprintf("no matching selector for %s: tried %s", name, strings.Join(quoted, ", "))
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrNoMatch
}

// TimeoutError reports that a resolved element never reached State.
type TimeoutError struct {
	Selector string
	State    State
	Timeout  time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("waiting for %q to be %s: timed out after %s", e.Selector, e.State, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// IsExhausted reports whether err is a selector-exhaustion failure.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrNoMatch)
}

// IsTimeout reports whether err is a wait timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
