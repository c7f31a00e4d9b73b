package pages

import (
	"context"
	"fmt"

	"github.com/testforge/e2ekit/pkg/locator"
)

// InputsPath is the route of the inputs practice page.
const InputsPath = "/inputs"

// InputsData is one value per tracked input.
type InputsData struct {
	Number   string `json:"number"`
	Text     string `json:"text"`
	Password string `json:"password"`
	Date     string `json:"date"`
}

// Empty reports whether every field is empty.
func (d InputsData) Empty() bool {
	return d == InputsData{}
}

// InputsPage drives the page with number, text, password and date inputs
// plus display and clear buttons.
type InputsPage struct {
	*Base

	number, text, password, date             locator.Strategy
	display, clear                           locator.Strategy
	outNumber, outText, outPassword, outDate locator.Strategy
}

// NewInputsPage binds the page to table. The table must define
// inputs.{number,text,password,date}, buttons.{display,clear} and
// outputs.{number,text,password,date}.
func NewInputsPage(d Driver, table *locator.Table, opts ...Option) (*InputsPage, error) {
	s, err := lookup(table,
		"inputs.number", "inputs.text", "inputs.password", "inputs.date",
		"buttons.display", "buttons.clear",
		"outputs.number", "outputs.text", "outputs.password", "outputs.date",
	)
	if err != nil {
		return nil, err
	}
	return &InputsPage{
		Base:        NewBase(d, opts...),
		number:      s[0],
		text:        s[1],
		password:    s[2],
		date:        s[3],
		display:     s[4],
		clear:       s[5],
		outNumber:   s[6],
		outText:     s[7],
		outPassword: s[8],
		outDate:     s[9],
	}, nil
}

func (p *InputsPage) NumberInput() locator.Handle   { return p.Resolver().Locate(p.number) }
func (p *InputsPage) TextInput() locator.Handle     { return p.Resolver().Locate(p.text) }
func (p *InputsPage) PasswordInput() locator.Handle { return p.Resolver().Locate(p.password) }
func (p *InputsPage) DateInput() locator.Handle     { return p.Resolver().Locate(p.date) }
func (p *InputsPage) DisplayButton() locator.Handle { return p.Resolver().Locate(p.display) }
func (p *InputsPage) ClearButton() locator.Handle   { return p.Resolver().Locate(p.clear) }

func (p *InputsPage) NumberOutput() locator.Handle   { return p.Resolver().Locate(p.outNumber) }
func (p *InputsPage) TextOutput() locator.Handle     { return p.Resolver().Locate(p.outText) }
func (p *InputsPage) PasswordOutput() locator.Handle { return p.Resolver().Locate(p.outPassword) }
func (p *InputsPage) DateOutput() locator.Handle     { return p.Resolver().Locate(p.outDate) }

// Open navigates to the inputs page and waits for the number input.
func (p *InputsPage) Open(ctx context.Context) error {
	if err := p.Navigate(ctx, InputsPath, WaitDOMContentLoaded); err != nil {
		return err
	}
	if _, err := p.Resolver().WaitVisible(ctx, p.number, 0); err != nil {
		return fmt.Errorf("inputs page not ready: %w", err)
	}
	return nil
}

func (p *InputsPage) FillNumber(ctx context.Context, v string) error {
	return p.Fill(ctx, p.number, v)
}

func (p *InputsPage) FillText(ctx context.Context, v string) error {
	return p.Fill(ctx, p.text, v)
}

func (p *InputsPage) FillPassword(ctx context.Context, v string) error {
	return p.Fill(ctx, p.password, v)
}

// FillDate expects YYYY-MM-DD.
func (p *InputsPage) FillDate(ctx context.Context, v string) error {
	return p.Fill(ctx, p.date, v)
}

// FillAll fills every input, stopping at the first failure.
func (p *InputsPage) FillAll(ctx context.Context, data InputsData) error {
	steps := []struct {
		name string
		fn   func(context.Context, string) error
		v    string
	}{
		{"number", p.FillNumber, data.Number},
		{"text", p.FillText, data.Text},
		{"password", p.FillPassword, data.Password},
		{"date", p.FillDate, data.Date},
	}
	for _, s := range steps {
		if err := s.fn(ctx, s.v); err != nil {
			return fmt.Errorf("fill %s: %w", s.name, err)
		}
	}
	return nil
}

func (p *InputsPage) ClickDisplay(ctx context.Context) error {
	return p.Click(ctx, p.display)
}

func (p *InputsPage) ClickClear(ctx context.Context) error {
	return p.Click(ctx, p.clear)
}

// ClearAllInputs empties every input directly, without the clear button.
func (p *InputsPage) ClearAllInputs(ctx context.Context) error {
	return p.FillAll(ctx, InputsData{})
}

func (p *InputsPage) NumberValue(ctx context.Context) (string, error) {
	return p.Value(ctx, p.number)
}

func (p *InputsPage) TextValue(ctx context.Context) (string, error) {
	return p.Value(ctx, p.text)
}

func (p *InputsPage) PasswordValue(ctx context.Context) (string, error) {
	return p.Value(ctx, p.password)
}

func (p *InputsPage) DateValue(ctx context.Context) (string, error) {
	return p.Value(ctx, p.date)
}

// Values reads all four inputs.
func (p *InputsPage) Values(ctx context.Context) (InputsData, error) {
	var out InputsData
	var err error
	if out.Number, err = p.NumberValue(ctx); err != nil {
		return InputsData{}, fmt.Errorf("read number: %w", err)
	}
	if out.Text, err = p.TextValue(ctx); err != nil {
		return InputsData{}, fmt.Errorf("read text: %w", err)
	}
	if out.Password, err = p.PasswordValue(ctx); err != nil {
		return InputsData{}, fmt.Errorf("read password: %w", err)
	}
	if out.Date, err = p.DateValue(ctx); err != nil {
		return InputsData{}, fmt.Errorf("read date: %w", err)
	}
	return out, nil
}

// AreAllInputsEmpty reads every input and reports whether all are empty.
func (p *InputsPage) AreAllInputsEmpty(ctx context.Context) (bool, error) {
	v, err := p.Values(ctx)
	if err != nil {
		return false, err
	}
	return v.Empty(), nil
}

// DisplayedOutputs reads the output area shown after ClickDisplay.
func (p *InputsPage) DisplayedOutputs(ctx context.Context) (InputsData, error) {
	var out InputsData
	var err error
	if out.Number, err = p.Text(ctx, p.outNumber); err != nil {
		return InputsData{}, fmt.Errorf("read number output: %w", err)
	}
	if out.Text, err = p.Text(ctx, p.outText); err != nil {
		return InputsData{}, fmt.Errorf("read text output: %w", err)
	}
	if out.Password, err = p.Text(ctx, p.outPassword); err != nil {
		return InputsData{}, fmt.Errorf("read password output: %w", err)
	}
	if out.Date, err = p.Text(ctx, p.outDate); err != nil {
		return InputsData{}, fmt.Errorf("read date output: %w", err)
	}
	return out, nil
}
