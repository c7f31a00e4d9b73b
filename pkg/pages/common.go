package pages

import (
	"context"

	"github.com/testforge/e2ekit/pkg/locator"
)

// Common exposes elements shared by every page: the loading spinner,
// status messages, header and footer.
type Common struct {
	base                          *Base
	spinner, errorMsg, successMsg locator.Strategy
	header, footer                locator.Strategy
}

// NewCommon binds shared elements from a base table with
// common.{loadingSpinner,errorMessage,successMessage} and
// navigation.{header,footer}.
func NewCommon(b *Base, table *locator.Table) (*Common, error) {
	s, err := lookup(table,
		"common.loadingSpinner", "common.errorMessage", "common.successMessage",
		"navigation.header", "navigation.footer",
	)
	if err != nil {
		return nil, err
	}
	return &Common{
		base:       b,
		spinner:    s[0],
		errorMsg:   s[1],
		successMsg: s[2],
		header:     s[3],
		footer:     s[4],
	}, nil
}

// WaitForLoadingToFinish waits until the spinner is hidden or absent.
func (c *Common) WaitForLoadingToFinish(ctx context.Context) error {
	return c.base.Resolver().WaitHidden(ctx, c.spinner, 0)
}

// ErrorMessage returns the visible error text, or "" when none is shown.
func (c *Common) ErrorMessage(ctx context.Context) (string, error) {
	return c.message(ctx, c.errorMsg)
}

// SuccessMessage returns the visible success text, or "" when none is shown.
func (c *Common) SuccessMessage(ctx context.Context) (string, error) {
	return c.message(ctx, c.successMsg)
}

func (c *Common) HasHeader(ctx context.Context) bool {
	return c.base.Resolver().Exists(ctx, c.header)
}

func (c *Common) HasFooter(ctx context.Context) bool {
	return c.base.Resolver().Exists(ctx, c.footer)
}

func (c *Common) message(ctx context.Context, s locator.Strategy) (string, error) {
	h, err := c.base.Resolver().Resolve(ctx, s)
	if locator.IsExhausted(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return h.TextContent(ctx)
}
