package pages

import (
	"context"

	"github.com/testforge/e2ekit/pkg/locator"
)

// LandingPage is the application home: one example input, a submit button
// and the main container.
type LandingPage struct {
	*Base
	*Common
	example, submit, main locator.Strategy
}

// NewLandingPage binds the page to its own table and the shared base table.
func NewLandingPage(d Driver, table, common *locator.Table, opts ...Option) (*LandingPage, error) {
	s, err := lookup(table, "inputs.example", "buttons.submit", "containers.main")
	if err != nil {
		return nil, err
	}
	base := NewBase(d, opts...)
	c, err := NewCommon(base, common)
	if err != nil {
		return nil, err
	}
	return &LandingPage{
		Base:    base,
		Common:  c,
		example: s[0],
		submit:  s[1],
		main:    s[2],
	}, nil
}

func (p *LandingPage) ExampleInput() locator.Handle  { return p.Resolver().Locate(p.example) }
func (p *LandingPage) SubmitButton() locator.Handle  { return p.Resolver().Locate(p.submit) }
func (p *LandingPage) MainContainer() locator.Handle { return p.Resolver().Locate(p.main) }

// Open navigates to the root path and waits for the network to settle.
func (p *LandingPage) Open(ctx context.Context) error {
	if err := p.Navigate(ctx, "/", WaitDOMContentLoaded); err != nil {
		return err
	}
	return p.WaitForPageLoad(ctx)
}

// IsLoaded reports whether the main container is present.
func (p *LandingPage) IsLoaded(ctx context.Context) bool {
	return p.Resolver().Exists(ctx, p.main)
}

func (p *LandingPage) FillExample(ctx context.Context, v string) error {
	return p.Fill(ctx, p.example, v)
}

func (p *LandingPage) Submit(ctx context.Context) error {
	return p.Click(ctx, p.submit)
}
