package scaffold

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/testforge/e2ekit/internal/locators"
	"github.com/testforge/e2ekit/pkg/locator"
)

// TemplateTable is the starter table for a new page: one input, one
// submit button and the main container.
func TemplateTable(page string) locator.TableFile {
	return locator.TableFile{
		Page:        page,
		Description: fmt.Sprintf("%s page locators. Update selectors here when the site changes.", page),
		Locators: map[string]map[string]locator.Strategy{
			"inputs": {
				"example": {
					Primary:     "#example-input",
					DataTestID:  `[data-testid="example-input"]`,
					Fallback:    `input[name="example"]`,
					Description: "Example input field",
				},
			},
			"buttons": {
				"submit": {
					Primary:     `button[type="submit"]`,
					DataTestID:  `[data-testid="submit-button"]`,
					Fallback:    ".submit-btn",
					Description: "Submit button",
				},
			},
			"containers": {
				"main": {
					Primary:     ".main-container",
					Fallback:    "main",
					Description: "Main content container",
				},
			},
		},
	}
}

// Locators writes the starter table for suite to dir/<stem>.yaml and
// returns the path.
func Locators(dir, suite string, force bool) (string, error) {
	page := PackageName(suite)
	data, err := yaml.Marshal(TemplateTable(page))
	if err != nil {
		return "", fmt.Errorf("encoding locator table: %w", err)
	}
	// round trip so a broken template never reaches disk
	if _, err := locator.ParseTable(data); err != nil {
		return "", err
	}

	path := locators.Path(dir, page)
	if err := writeNew(path, data, force); err != nil {
		return "", err
	}
	return path, nil
}
