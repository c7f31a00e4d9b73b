package cli

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/locators"
	"github.com/testforge/e2ekit/internal/scaffold"
	"github.com/testforge/e2ekit/internal/testsuite"
)

func newGenCSVCmd(a *app) *cobra.Command {
	var (
		dir   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "gen-csv <suite>",
		Short: "Create a test case sheet with three starter cases",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suite := args[0]
			if dir == "" {
				dir = a.cfg.Paths.Suites
			}
			path := testsuite.CSVPath(dir, suite)

			a.out.Header("Generate test case sheet: " + suite)
			if !force {
				if _, err := os.Stat(path); err == nil {
					return domain.ErrFileExists(path).WithDetails("use --force to overwrite")
				} else if !errors.Is(err, fs.ErrNotExist) {
					return domain.ErrIO("checking", path, err)
				}
			}

			rows := testsuite.Template(suite)
			if err := testsuite.WriteCSVFile(path, rows); err != nil {
				return err
			}

			a.out.Success("Created %s", path)
			counts := testsuite.CountByType(rows)
			for _, typ := range []domain.TestType{domain.TestTypeHappyPath, domain.TestTypeNegative, domain.TestTypeEdgeCase} {
				a.out.Bullet("%s: %d", typ, counts[string(typ)])
			}
			a.out.Info("\nNext: fill in the cases, then run gen-locators %s", suite)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default SUITES_DIR)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing sheet")
	return cmd
}

func newGenLocatorsCmd(a *app) *cobra.Command {
	var (
		dir   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "gen-locators <suite>",
		Short: "Create a starter locator table for a page",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.Locator.TablesDir
			}
			a.out.Header("Generate locators: " + args[0])

			path, err := scaffold.Locators(dir, args[0], force)
			if err != nil {
				return err
			}
			a.out.Success("Created %s", path)
			a.out.Bullet("Replace the template selectors with the page's real ones")
			a.out.Info("\nNext: run gen-page %s", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default LOCATOR_DIR)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing table")
	return cmd
}

func newGenPageCmd(a *app) *cobra.Command {
	var (
		dir   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "gen-page <suite>",
		Short: "Generate a Go page object from the suite's locator table",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suite := args[0]
			if dir == "" {
				dir = a.cfg.Paths.Pages
			}
			a.out.Header("Generate page object: " + suite)

			table, err := locators.Load(a.cfg.Locator.TablesDir, scaffold.PackageName(suite))
			if err != nil {
				return domain.ErrNotFound("locator table", locators.Path(a.cfg.Locator.TablesDir, scaffold.PackageName(suite))).
					WithCause(err).WithDetails("run gen-locators first")
			}

			path, err := scaffold.Page(dir, suite, table, force)
			if err != nil {
				return err
			}
			a.out.Success("Created %s", path)
			for _, cat := range table.Categories() {
				a.out.Bullet("%s: %s", cat, plural(len(table.Names(cat)), "element"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default PAGES_DIR)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing page object")
	return cmd
}

func newGenTestsCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "gen-tests <suite.json>",
		Short: "Generate Go tests from a JSON test suite",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.Paths.Tests
			}
			suite, err := testsuite.LoadSuite(args[0])
			if err != nil {
				return err
			}
			a.out.Header("Generate tests: " + suite.Name)

			path, err := scaffold.Tests(dir, suite)
			if err != nil {
				return err
			}
			a.out.Success("Created %s with %s", path, plural(suite.Total(), "test case"))
			counts := suite.CountByType()
			for _, typ := range []domain.TestType{domain.TestTypeHappyPath, domain.TestTypeNegative, domain.TestTypeEdgeCase} {
				a.out.Bullet("%s: %d", typ, counts[typ])
			}
			a.out.Info("\nRun with: go test ./%s/...", dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default TESTS_DIR)")
	return cmd
}
