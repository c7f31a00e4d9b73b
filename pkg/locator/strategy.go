package locator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Tier names one position in a strategy's fallback chain.
type Tier string

const (
	TierPrimary    Tier = "primary"
	TierDataTestID Tier = "dataTestId"
	TierFallback   Tier = "fallback"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Optional selectors may be empty but never whitespace only.
	_ = validate.RegisterValidation("selector", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		return v == "" || strings.TrimSpace(v) != ""
	})
}

// Strategy describes how to find one logical UI element. The chain order
// is fixed: Primary, then DataTestID, then Fallback.
type Strategy struct {
	Primary     string `yaml:"primary" json:"primary" validate:"required,selector"`
	DataTestID  string `yaml:"dataTestId,omitempty" json:"dataTestId,omitempty" validate:"selector"`
	Fallback    string `yaml:"fallback,omitempty" json:"fallback,omitempty" validate:"selector"`
	Description string `yaml:"description" json:"description"`
}

// Candidate is one selector in a strategy's fallback chain.
type Candidate struct {
	Tier     Tier
	Selector string
}

// New builds a validated strategy.
func New(description, primary, dataTestID, fallback string) (Strategy, error) {
	s := Strategy{
		Primary:     primary,
		DataTestID:  dataTestID,
		Fallback:    fallback,
		Description: description,
	}
	if err := s.Validate(); err != nil {
		return Strategy{}, err
	}
	return s, nil
}

// MustNew is New for static tables; it panics on an invalid strategy.
func MustNew(description, primary, dataTestID, fallback string) Strategy {
	s, err := New(description, primary, dataTestID, fallback)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate rejects a strategy without a usable primary selector.
func (s Strategy) Validate() error {
	if strings.TrimSpace(s.Primary) == "" {
		return fmt.Errorf("%w: primary selector is required (%s)", ErrInvalidStrategy, s.label())
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidStrategy, s.label(), err)
	}
	return nil
}

// Candidates returns the defined selectors in resolution order.
func (s Strategy) Candidates() []Candidate {
	out := make([]Candidate, 0, 3)
	for _, c := range []Candidate{
		{Tier: TierPrimary, Selector: s.Primary},
		{Tier: TierDataTestID, Selector: s.DataTestID},
		{Tier: TierFallback, Selector: s.Fallback},
	} {
		if c.Selector == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Demote returns a strategy with primary as the new primary selector. The
// previous primary replaces Fallback.
func (s Strategy) Demote(primary string) Strategy {
	if primary == "" || primary == s.Primary {
		return s
	}
	out := s
	out.Fallback = s.Primary
	out.Primary = primary
	if out.DataTestID == primary {
		out.DataTestID = ""
	}
	return out
}

func (s Strategy) label() string {
	if s.Description != "" {
		return s.Description
	}
	if s.Primary != "" {
		return s.Primary
	}
	return "unnamed strategy"
}

func (s Strategy) String() string {
	parts := []string{"primary=" + s.Primary}
	if s.DataTestID != "" {
		parts = append(parts, "dataTestId="+s.DataTestID)
	}
	if s.Fallback != "" {
		parts = append(parts, "fallback="+s.Fallback)
	}
	return s.label() + " {" + strings.Join(parts, ", ") + "}"
}
