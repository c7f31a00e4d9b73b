package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/testforge/e2ekit/internal/aigen"
	"github.com/testforge/e2ekit/internal/autofix"
	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/locators"
	"github.com/testforge/e2ekit/internal/testsuite"
	"github.com/testforge/e2ekit/pkg/locator"
	"github.com/testforge/e2ekit/pkg/pages"
)

// suiteNameFromURL turns https://example.com/login into "login", and a bare
// host into its first label.
func suiteNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "page"
	}
	if p := strings.Trim(u.Path, "/"); p != "" {
		parts := strings.Split(p, "/")
		return parts[len(parts)-1]
	}
	if host := u.Hostname(); host != "" {
		return strings.Split(strings.TrimPrefix(host, "www."), ".")[0]
	}
	return "page"
}

func newGenSuiteCmd(a *app) *cobra.Command {
	var (
		dir        string
		screenshot bool
	)
	cmd := &cobra.Command{
		Use:   "gen-suite <url> [name]",
		Short: "Explore a page in the browser and have the model design a test suite",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target := args[0]
			name := suiteNameFromURL(target)
			if len(args) == 2 {
				name = args[1]
			}
			if dir == "" {
				dir = a.cfg.Paths.Suites
			}

			c, closeCache, err := a.completer(ctx)
			if err != nil {
				return err
			}
			defer closeCache()

			a.out.Header("AI test generation: " + name)
			a.out.Info("🎯 Target: %s", target)

			a.out.Section("Exploring page")
			session, err := a.launch()
			if err != nil {
				return err
			}
			defer a.closeSession(session)

			explorer := aigen.NewExplorer(func() (aigen.Tab, error) {
				page, err := session.NewPage()
				if err != nil {
					return nil, err
				}
				return page, nil
			}, aigen.WithExplorerLogger(a.logger))

			stop := a.out.Spin("Loading and extracting...")
			snap, err := explorer.Explore(ctx, target)
			stop()
			if err != nil {
				return err
			}
			a.out.Success("Explored %q", snap.Title)
			a.out.Bullet("Inputs: %d", len(snap.Inputs))
			a.out.Bullet("Buttons: %d", len(snap.Buttons))
			a.out.Bullet("Links: %d", len(snap.Links))
			a.out.Bullet("Forms: %d", len(snap.Forms))

			if screenshot && len(snap.Screenshot) > 0 {
				shot := filepath.Join(a.cfg.Paths.Screenshots, fmt.Sprintf("%s-%s.png", testsuite.FileStem(name), pages.Timestamp(time.Now())))
				if err := os.MkdirAll(filepath.Dir(shot), 0o755); err == nil {
					if err := os.WriteFile(shot, snap.Screenshot, 0o644); err == nil {
						a.out.Bullet("Screenshot: %s", shot)
						a.upload(ctx, "screenshots", shot)
					}
				}
			}

			a.out.Section("Generating test cases")
			stop = a.out.Spin("Waiting for the model...")
			suite, err := aigen.NewGenerator(c, a.logger).Generate(ctx, snap, name)
			stop()
			if err != nil {
				return err
			}

			path, err := testsuite.SaveSuite(dir, suite)
			if err != nil {
				return err
			}
			counts := suite.CountByType()
			a.out.Success("Generated %s", plural(suite.Total(), "test case"))
			a.out.Bullet("Positive: %d", counts[domain.TestTypeHappyPath])
			a.out.Bullet("Negative: %d", counts[domain.TestTypeNegative])
			a.out.Bullet("Edge: %d", counts[domain.TestTypeEdgeCase])
			a.out.Success("Saved %s", path)
			a.upload(ctx, "suites", path)

			a.out.Info("\nNext: gen-tests %s", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default SUITES_DIR)")
	cmd.Flags().BoolVar(&screenshot, "screenshot", true, "Save the page screenshot")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var noFix bool
	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Have the model review a test file and apply its fixes",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, closeCache, err := a.completer(ctx)
			if err != nil {
				return err
			}
			defer closeCache()

			a.out.Header("Verify: " + filepath.Base(args[0]))
			stop := a.out.Spin("Reviewing...")
			res, err := autofix.NewVerifier(c, a.logger).Verify(ctx, args[0], autofix.VerifyOptions{NoFix: noFix})
			stop()
			if err != nil {
				if res != nil && res.BackupKept() {
					a.out.Warn("Backup kept at %s", res.Backup)
				}
				return err
			}

			if !res.Review.HasIssues {
				a.out.Success("No issues found")
				a.out.Bullet("%s", res.Review.Explanation)
				return nil
			}

			a.out.Section(fmt.Sprintf("Found %s", plural(len(res.Review.Issues), "issue")))
			for _, issue := range res.Review.Issues {
				line := ""
				if issue.Line > 0 {
					line = fmt.Sprintf("line %d: ", issue.Line)
				}
				switch issue.Severity {
				case domain.SeverityError:
					a.out.Fail("%s%s", line, issue.Issue)
				case domain.SeverityWarning:
					a.out.Warn("%s%s", line, issue.Issue)
				default:
					a.out.Info("ℹ %s%s", line, issue.Issue)
				}
				if issue.Suggestion != "" {
					a.out.Bullet("%s", issue.Suggestion)
				}
			}

			a.out.Section("Result")
			a.out.Info("%s", res.Review.Explanation)
			switch {
			case res.Applied:
				a.out.Success("Fixes applied to %s", res.File)
			case noFix:
				a.out.Warn("Fixes not applied (--no-fix)")
			default:
				a.out.Warn("No code changes proposed")
			}
			if res.BackupKept() {
				a.out.Bullet("Backup: %s", res.Backup)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noFix, "no-fix", false, "Report issues without changing the file")
	return cmd
}

func newHealCmd(a *app) *cobra.Command {
	var (
		tableName string
		dir       string
		category  string
		element   string
		pageURL   string
		htmlFile  string
		errText   string
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "heal",
		Short: "Repair a broken locator strategy from the live page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if dir == "" {
				dir = a.cfg.Locator.TablesDir
			}
			table, err := locators.Load(dir, tableName)
			if err != nil {
				return err
			}
			current, ok := table.Get(category, element)
			if !ok {
				return domain.ErrNotFound("locator", fmt.Sprintf("%s.%s.%s", tableName, category, element))
			}

			a.out.Header(fmt.Sprintf("Heal %s.%s.%s", tableName, category, element))
			a.out.Bullet("Current: %s", current)

			req := autofix.HealRequest{
				Table:    table,
				Category: category,
				Element:  element,
				PageURL:  pageURL,
				Error:    errText,
			}

			switch {
			case htmlFile != "":
				data, err := os.ReadFile(htmlFile)
				if err != nil {
					return domain.ErrIO("reading", htmlFile, err)
				}
				req.PageHTML = string(data)
			case pageURL != "":
				html, traceErr, err := a.probe(cmd, pageURL, current)
				if err != nil {
					return err
				}
				if traceErr == nil {
					a.out.Success("Strategy still resolves on %s, nothing to heal", pageURL)
					return nil
				}
				req.PageHTML = html
				if req.Error == "" {
					req.Error = traceErr.Error()
				}
			default:
				return domain.ErrValidation("one of --url or --html is required")
			}
			if req.Error == "" {
				req.Error = fmt.Sprintf("locator %s not found", current)
			}

			c, closeCache, err := a.completer(ctx)
			if err != nil {
				return err
			}
			defer closeCache()

			stop := a.out.Spin("Asking the model for a repair...")
			res, err := autofix.NewHealer(c, a.logger).Heal(ctx, req)
			stop()
			if err != nil {
				return err
			}

			a.out.Success("Healed: %s", res.Healed)
			if res.Repair.Explanation != "" {
				a.out.Bullet("%s", res.Repair.Explanation)
			}
			a.out.Bullet("Confidence: %.0f%%", res.Repair.Confidence*100)
			if dryRun {
				a.out.Warn("Table not written (--dry-run)")
				return nil
			}
			path, err := autofix.Apply(dir, req, res)
			if err != nil {
				return err
			}
			a.out.Success("Updated %s", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&tableName, "table", "", "Locator table name, e.g. login")
	cmd.Flags().StringVar(&dir, "dir", "", "Locator table directory (default LOCATOR_DIR)")
	cmd.Flags().StringVar(&category, "category", "", "Element category, e.g. inputs")
	cmd.Flags().StringVar(&element, "element", "", "Element name, e.g. email")
	cmd.Flags().StringVar(&pageURL, "url", "", "Page to probe and read the HTML from")
	cmd.Flags().StringVar(&pageURL, "page", "", "Alias of --url")
	cmd.Flags().StringVar(&htmlFile, "html", "", "Read the page HTML from a file instead of the browser")
	cmd.Flags().StringVar(&errText, "error", "", "The failure message the test reported")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the repair without writing the table")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("element")
	return cmd
}

// probe opens pageURL, traces s on it and returns the page HTML with the
// trace error. A nil trace error means s still resolves.
func (a *app) probe(cmd *cobra.Command, pageURL string, s locator.Strategy) (string, error, error) {
	ctx := cmd.Context()
	session, err := a.launch()
	if err != nil {
		return "", nil, err
	}
	defer a.closeSession(session)

	page, err := session.NewPage()
	if err != nil {
		return "", nil, err
	}
	defer page.Close()

	base := pages.NewBase(page,
		pages.WithLogger(a.logger),
		pages.WithNavigationTimeout(a.cfg.Browser.NavTimeout),
		pages.WithResolverOptions(
			locator.WithObserver(a.metrics),
			locator.WithLogger(a.logger),
			locator.WithTimeout(a.cfg.Locator.WaitTimeout),
		),
	)
	stop := a.out.Spin("Probing " + pageURL + "...")
	defer stop()
	if err := base.Navigate(ctx, pageURL, pages.WaitDOMContentLoaded); err != nil {
		return "", nil, err
	}
	if err := base.WaitForPageLoad(ctx); err != nil {
		a.logger.Debug("page did not settle before probing")
	}

	res, traceErr := base.Resolver().Trace(ctx, s)
	if traceErr == nil {
		a.logger.Debug("strategy resolved", zap.String("tier", string(res.Tier)))
		return "", nil, nil
	}

	html, err := page.Content(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("reading page HTML: %w", err)
	}
	return html, traceErr, nil
}
