package pages

import (
	"context"
	"fmt"

	"github.com/testforge/e2ekit/pkg/locator"
)

// LoginPath is the route of the login form.
const LoginPath = "/login"

// LoginPage drives an email and password login form.
type LoginPage struct {
	*Base
	email, password, submit locator.Strategy
}

// NewLoginPage binds the page to a table with inputs.{email,password} and
// buttons.submit.
func NewLoginPage(d Driver, table *locator.Table, opts ...Option) (*LoginPage, error) {
	s, err := lookup(table, "inputs.email", "inputs.password", "buttons.submit")
	if err != nil {
		return nil, err
	}
	return &LoginPage{
		Base:     NewBase(d, opts...),
		email:    s[0],
		password: s[1],
		submit:   s[2],
	}, nil
}

func (p *LoginPage) Email() locator.Handle    { return p.Resolver().Locate(p.email) }
func (p *LoginPage) Password() locator.Handle { return p.Resolver().Locate(p.password) }
func (p *LoginPage) Submit() locator.Handle   { return p.Resolver().Locate(p.submit) }

// Open navigates to the login form.
func (p *LoginPage) Open(ctx context.Context) error {
	return p.Navigate(ctx, LoginPath, WaitDOMContentLoaded)
}

// Login fills both fields and submits.
func (p *LoginPage) Login(ctx context.Context, email, password string) error {
	if err := p.Fill(ctx, p.email, email); err != nil {
		return fmt.Errorf("login: email: %w", err)
	}
	if err := p.Fill(ctx, p.password, password); err != nil {
		return fmt.Errorf("login: password: %w", err)
	}
	if err := p.Click(ctx, p.submit); err != nil {
		return fmt.Errorf("login: submit: %w", err)
	}
	return nil
}
