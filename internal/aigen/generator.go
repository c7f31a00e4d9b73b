package aigen

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/llm"
	"github.com/testforge/e2ekit/internal/testsuite"
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Generator turns a Snapshot into a test suite.
type Generator struct {
	llm    llm.Completer
	logger *zap.Logger
	now    func() time.Time
}

func NewGenerator(c llm.Completer, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{llm: c, logger: logger, now: time.Now}
}

// Generate designs a suite named name for the explored page. The returned
// suite has unique ids, valid enums and expanded placeholders.
func (g *Generator) Generate(ctx context.Context, snap *Snapshot, name string) (*domain.Suite, error) {
	if snap == nil {
		return nil, domain.ErrValidation("snapshot is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, domain.ErrValidationField("name", "suite name is required")
	}

	start := g.now()
	var suite domain.Suite
	usage, err := llm.CompleteJSON(ctx, g.llm, SystemPrompt(), SuitePrompt(snap), &suite)
	if err != nil {
		return nil, err
	}

	if suite.Total() == 0 {
		return nil, domain.ErrGenerationFailed("AI generated 0 test cases", nil)
	}

	suite.Name = name
	if suite.URL == "" {
		suite.URL = snap.URL
	}
	if suite.Description == "" {
		suite.Description = fmt.Sprintf("Generated test cases for %s", snap.URL)
	}
	suite.Timestamp = g.now().UTC().Format(time.RFC3339Nano)
	normalizeCases(&suite)
	suite.Normalize()
	testsuite.ExpandPlaceholders(&suite)

	if err := testsuite.Validate(&suite); err != nil {
		return nil, err
	}

	counts := suite.CountByType()
	g.logger.Info("suite generated",
		zap.String("suite", name),
		zap.Int("total", suite.Total()),
		zap.Int("positive", counts[domain.TestTypeHappyPath]),
		zap.Int("negative", counts[domain.TestTypeNegative]),
		zap.Int("edge", counts[domain.TestTypeEdgeCase]),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Duration("duration", g.now().Sub(start)),
	)
	return &suite, nil
}

// IDPrefix derives the test id prefix from a suite name: "login page"
// becomes "TC-LOGIN-PAGE".
func IDPrefix(name string) string {
	stem := strings.Trim(nonAlnum.ReplaceAllString(name, "-"), "-")
	if stem == "" {
		return "TC"
	}
	return "TC-" + strings.ToUpper(stem)
}

// normalizeCases renumbers ids in list order and replaces enum values the
// model invented with the list's own type, Medium priority and Not Run.
func normalizeCases(s *domain.Suite) {
	prefix := IDPrefix(s.Name)
	n := 0
	groups := []struct {
		cases []domain.TestCase
		typ   domain.TestType
	}{
		{s.PositiveCases, domain.TestTypeHappyPath},
		{s.NegativeCases, domain.TestTypeNegative},
		{s.EdgeCases, domain.TestTypeEdgeCase},
		{s.TestCases, domain.TestTypeHappyPath},
	}
	for _, grp := range groups {
		for i := range grp.cases {
			tc := &grp.cases[i]
			n++
			tc.ID = fmt.Sprintf("%s-%03d", prefix, n)
			tc.Suite = s.Name
			if !tc.Type.IsValid() {
				tc.Type = grp.typ
			}
			if !tc.Priority.IsValid() {
				tc.Priority = domain.PriorityMedium
			}
			if !tc.Status.IsValid() {
				tc.Status = domain.StatusNotRun
			}
			if strings.TrimSpace(tc.Title) == "" {
				tc.Title = tc.ID
			}
			for j := range tc.Steps {
				if tc.Steps[j].Action == "" {
					tc.Steps[j].Action = "wait"
				}
			}
		}
	}
}
