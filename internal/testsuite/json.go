package testsuite

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/testforge/e2ekit/internal/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// MaxPlaceholderLength caps {{LARGE_STRING_n}} expansion.
const MaxPlaceholderLength = 100_000

var (
	whitespace  = regexp.MustCompile(`\s+`)
	placeholder = regexp.MustCompile(`^\{\{LARGE_STRING_(\d+)\}\}$`)
)

// FileStem turns a suite name into a file name stem: runs of whitespace
// become underscores.
func FileStem(name string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(name), "_")
}

// SuitePath is where the JSON suite named name lives under dir.
func SuitePath(dir, name string) string {
	return filepath.Join(dir, FileStem(name)+"-test-cases.json")
}

// LoadSuite reads, normalizes and validates a JSON suite.
func LoadSuite(path string) (*domain.Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite: %w", err)
	}
	s, err := DecodeSuite(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// DecodeSuite parses suite JSON, expands placeholders, normalizes and
// validates it.
func DecodeSuite(data []byte) (*domain.Suite, error) {
	var s domain.Suite
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, domain.ErrParseFailed("suite JSON", err)
	}
	s.Normalize()
	ExpandPlaceholders(&s)
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSuite writes s as indented JSON to SuitePath(dir, s.Name) and returns
// the path.
func SaveSuite(dir string, s *domain.Suite) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domain.ErrIO("creating", dir, err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding suite: %w", err)
	}
	path := SuitePath(dir, s.Name)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", domain.ErrIO("writing", path, err)
	}
	return path, nil
}

// Validate checks required fields, then the enums and id uniqueness.
func Validate(s *domain.Suite) error {
	if err := validate.Struct(s); err != nil {
		return domain.ErrValidation("suite validation failed").WithCause(err)
	}

	var problems []string
	seen := make(map[string]bool)
	for _, tc := range s.AllCases() {
		if seen[tc.ID] {
			problems = append(problems, fmt.Sprintf("duplicate test id %s", tc.ID))
		}
		seen[tc.ID] = true
		if tc.Type != "" && !tc.Type.IsValid() {
			problems = append(problems, fmt.Sprintf("%s: unknown type %q", tc.ID, tc.Type))
		}
		if tc.Priority != "" && !tc.Priority.IsValid() {
			problems = append(problems, fmt.Sprintf("%s: unknown priority %q", tc.ID, tc.Priority))
		}
		if !tc.Status.IsValid() {
			problems = append(problems, fmt.Sprintf("%s: unknown status %q", tc.ID, tc.Status))
		}
	}
	if len(problems) > 0 {
		return domain.ErrValidation("suite validation failed").
			WithCause(errors.New(strings.Join(problems, "; ")))
	}
	return nil
}

// ExpandPlaceholders replaces step values and test data that are exactly
// {{LARGE_STRING_n}} with n copies of 'a'.
func ExpandPlaceholders(s *domain.Suite) {
	lists := [][]domain.TestCase{s.PositiveCases, s.NegativeCases, s.EdgeCases, s.TestCases}
	for _, cases := range lists {
		for i := range cases {
			tc := &cases[i]
			for j := range tc.Steps {
				tc.Steps[j].Value = Expand(tc.Steps[j].Value)
			}
			for k, v := range tc.TestData {
				if str, ok := v.(string); ok {
					tc.TestData[k] = Expand(str)
				}
			}
		}
	}
}

// Expand returns the expansion of v when it is a placeholder, else v.
func Expand(v string) string {
	m := placeholder.FindStringSubmatch(v)
	if m == nil {
		return v
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > MaxPlaceholderLength {
		return v
	}
	return strings.Repeat("a", n)
}
