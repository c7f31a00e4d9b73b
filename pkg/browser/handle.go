package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/testforge/e2ekit/pkg/locator"
)

// handle adapts a playwright.Locator to locator.Handle. Playwright locators
// are lazy, so each call queries the live page.
type handle struct {
	loc      playwright.Locator
	selector string
}

func (h *handle) Selector() string { return h.selector }

func (h *handle) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := h.loc.Count()
	if err != nil {
		return 0, fmt.Errorf("counting %q: %w", h.selector, err)
	}
	return n, nil
}

func (h *handle) WaitFor(ctx context.Context, state locator.State, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := h.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   selectorState(state),
		Timeout: timeoutMs(ctx, timeout),
	})
	return mapError(ctx, err)
}

func (h *handle) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := h.loc.Fill(value, playwright.LocatorFillOptions{Timeout: timeoutMs(ctx, 0)})
	if err != nil {
		return mapError(ctx, fmt.Errorf("filling %q: %w", h.selector, err))
	}
	return nil
}

func (h *handle) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := h.loc.Click(playwright.LocatorClickOptions{Timeout: timeoutMs(ctx, 0)})
	if err != nil {
		return mapError(ctx, fmt.Errorf("clicking %q: %w", h.selector, err))
	}
	return nil
}

func (h *handle) InputValue(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := h.loc.InputValue(playwright.LocatorInputValueOptions{Timeout: timeoutMs(ctx, 0)})
	if err != nil {
		return "", mapError(ctx, fmt.Errorf("reading value of %q: %w", h.selector, err))
	}
	return v, nil
}

func (h *handle) TextContent(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := h.loc.TextContent(playwright.LocatorTextContentOptions{Timeout: timeoutMs(ctx, 0)})
	if err != nil {
		return "", mapError(ctx, fmt.Errorf("reading text of %q: %w", h.selector, err))
	}
	return v, nil
}

func (h *handle) IsVisible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return h.loc.IsVisible()
}

func (h *handle) SelectOption(ctx context.Context, values ...string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	selected, err := h.loc.SelectOption(
		playwright.SelectOptionValues{Values: &values},
		playwright.LocatorSelectOptionOptions{Timeout: timeoutMs(ctx, 0)},
	)
	if err != nil {
		return nil, mapError(ctx, fmt.Errorf("selecting %q in %q: %w", values, h.selector, err))
	}
	return selected, nil
}

func (h *handle) FilterText(text string) locator.Handle {
	return &handle{
		loc:      h.loc.Filter(playwright.LocatorFilterOptions{HasText: text}),
		selector: h.selector + " >> has-text=" + strconv.Quote(text),
	}
}

func (h *handle) Nth(i int) locator.Handle {
	return &handle{
		loc:      h.loc.Nth(i),
		selector: h.selector + " >> nth=" + strconv.Itoa(i),
	}
}

func selectorState(s locator.State) *playwright.WaitForSelectorState {
	switch s {
	case locator.StateHidden:
		return playwright.WaitForSelectorStateHidden
	case locator.StateAttached:
		return playwright.WaitForSelectorStateAttached
	case locator.StateDetached:
		return playwright.WaitForSelectorStateDetached
	default:
		return playwright.WaitForSelectorStateVisible
	}
}
