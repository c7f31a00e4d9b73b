package autofix

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/llm"
	"github.com/testforge/e2ekit/internal/locators"
	"github.com/testforge/e2ekit/pkg/locator"
)

// Healer repairs strategies whose selectors stopped matching.
type Healer struct {
	llm    llm.Completer
	logger *zap.Logger
}

func NewHealer(c llm.Completer, logger *zap.Logger) *Healer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Healer{llm: c, logger: logger}
}

// Heal asks the model for a selector that matches the intended element
// today. The repaired selector becomes the primary; the failed primary is
// kept as the fallback.
func (h *Healer) Heal(ctx context.Context, req HealRequest) (*HealResult, error) {
	if req.Table == nil {
		return nil, domain.ErrValidationField("table", "locator table is required")
	}
	current, ok := req.Table.Get(req.Category, req.Element)
	if !ok {
		return nil, domain.ErrNotFound("locator", req.Category+"."+req.Element)
	}

	id := uuid.New()
	h.logger.Info("healing selector",
		zap.String("request_id", id.String()),
		zap.String("page", req.Table.Page()),
		zap.String("element", req.Category+"."+req.Element),
		zap.String("primary", current.Primary))

	var repair Repair
	if _, err := llm.CompleteJSON(ctx, h.llm, repairSystemPrompt, repairPrompt(req, current), &repair); err != nil {
		return nil, fmt.Errorf("repairing %s.%s: %w", req.Category, req.Element, err)
	}

	primary := pickSelector(repair, current)
	if primary == "" {
		return nil, domain.ErrGenerationFailed("no usable repaired selector", nil).
			WithMetadata("element", req.Category+"."+req.Element)
	}

	healed := current.Demote(primary)
	if healed.DataTestID == "" {
		for _, alt := range repair.Alternatives {
			s := strings.TrimSpace(alt.Selector)
			if alt.Type == "testid" && s != "" && s != healed.Primary && s != healed.Fallback {
				healed.DataTestID = s
				break
			}
		}
	}
	if err := healed.Validate(); err != nil {
		return nil, domain.ErrGenerationFailed("repaired strategy is invalid", err)
	}

	h.logger.Info("selector healed",
		zap.String("request_id", id.String()),
		zap.String("previous", current.Primary),
		zap.String("healed", healed.Primary),
		zap.String("change_type", repair.ChangeType),
		zap.Float64("confidence", repair.Confidence))

	return &HealResult{ID: id, Previous: current, Healed: healed, Repair: repair}, nil
}

// pickSelector returns the repaired selector, or the most confident
// alternative when the model handed back the selector that failed.
func pickSelector(r Repair, current locator.Strategy) string {
	if s := strings.TrimSpace(r.RepairedSelector); s != "" && s != current.Primary {
		return s
	}
	best, score := "", -1.0
	for _, alt := range r.Alternatives {
		s := strings.TrimSpace(alt.Selector)
		if s == "" || s == current.Primary {
			continue
		}
		if alt.Confidence > score {
			best, score = s, alt.Confidence
		}
	}
	return best
}

// Apply writes res.Healed into the table of req and saves the table under
// dir, returning the written path.
func Apply(dir string, req HealRequest, res *HealResult) (string, error) {
	t, err := req.Table.With(req.Category, req.Element, res.Healed)
	if err != nil {
		return "", err
	}
	path, err := locators.Save(dir, t)
	if err != nil {
		return "", err
	}
	res.Path = path
	return path, nil
}
