package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/testforge/e2ekit/internal/analysis"
	"github.com/testforge/e2ekit/internal/report"
	"github.com/testforge/e2ekit/internal/results"
	"github.com/testforge/e2ekit/internal/testsuite"
)

func newUpdateCSVCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update-csv <csv> <results>",
		Short: "Write run results back into a test case sheet",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheet, resultsFile := args[0], args[1]
			a.out.Header("Update test sheet")

			rows, err := testsuite.ReadCSVFile(sheet)
			if err != nil {
				return err
			}
			rs, err := results.ParseFile(resultsFile)
			if err != nil {
				return err
			}

			updated := testsuite.UpdateResults(rows, rs)
			if err := testsuite.WriteCSVFile(sheet, rows); err != nil {
				return err
			}

			a.out.Success("Updated %s of %s in %s", plural(updated, "row"), plural(len(rows), "row"), sheet)
			if missing := len(rows) - updated; missing > 0 {
				a.out.Warn("%s had no matching result", plural(missing, "row"))
			}
			return nil
		},
	}
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "analyze <results>",
		Short: "Classify the failures of a run by root cause",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.Paths.Analysis
			}
			rs, err := results.ParseFile(args[0])
			if err != nil {
				return err
			}
			a.out.Header("Failure analysis")

			rep := analysis.Analyze(rs, time.Now())
			if len(rep.Failures) == 0 {
				a.out.Success("No failures in %s", plural(len(rs), "result"))
				return nil
			}

			a.out.Fail("%s", plural(len(rep.Failures), "failure"))
			groups := rep.ByCause()
			for _, c := range rep.Causes() {
				a.out.Section(fmt.Sprintf("%s (%d)", c.Short(), len(groups[c])))
				for _, f := range groups[c] {
					a.out.Bullet("%s", f.Name())
				}
			}

			path, err := analysis.Save(dir, rep)
			if err != nil {
				return err
			}
			a.out.Info("")
			a.out.Success("Saved %s", path)
			a.upload(cmd.Context(), "analysis", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default ANALYSIS_DIR)")
	return cmd
}

func newAutofixCmd(a *app) *cobra.Command {
	var (
		dir    string
		root   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "autofix <results>",
		Short: "Propose and apply fixes for failed tests",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.Paths.Analysis
			}
			rs, err := results.ParseFile(args[0])
			if err != nil {
				return err
			}
			a.out.Header("Auto-fix")

			rep := analysis.Analyze(rs, time.Now())
			if len(rep.Failures) == 0 {
				a.out.Success("No failures to fix")
				return nil
			}

			fixes := analysis.ProposeFixes(root, rep)
			applied := 0
			if !dryRun {
				if applied, err = analysis.ApplyFixes(root, fixes); err != nil {
					return err
				}
			}

			for _, f := range fixes {
				loc := f.File
				if f.Line > 0 {
					loc = fmt.Sprintf("%s:%d", f.File, f.Line)
				}
				if f.AutoApplied {
					a.out.Success("%s %s", f.TestID, loc)
				} else {
					a.out.Warn("%s %s (%s confidence)", f.TestID, loc, f.Confidence)
				}
				a.out.Bullet("%s", f.Issue)
				if f.SuggestedCode != "" {
					a.out.Bullet("→ %s", f.SuggestedCode)
				}
			}

			path, err := analysis.SaveFixes(dir, fixes)
			if err != nil {
				return err
			}
			a.out.Info("")
			a.out.Success("Applied %s of %s", plural(applied, "fix"), plural(len(fixes), "proposal"))
			a.out.Bullet("Proposals: %s", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default ANALYSIS_DIR)")
	cmd.Flags().StringVar(&root, "root", ".", "Directory test file paths are relative to")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Propose fixes without editing files")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var (
		dir   string
		title string
	)
	cmd := &cobra.Command{
		Use:   "report <results>",
		Short: "Render an HTML report for a run",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if dir == "" {
				dir = a.cfg.Paths.Reports
			}
			rs, err := results.ParseFile(args[0])
			if err != nil {
				return err
			}
			a.out.Header("Test report")

			up, err := a.uploader(ctx)
			if err != nil {
				a.out.Warn("Artifact store unavailable: %v", err)
				up = nil
			}
			gen, err := report.NewGenerator(report.Config{
				Dir:          dir,
				UploadPrefix: a.cfg.Storage.ReportPath,
			}, up, a.logger)
			if err != nil {
				return err
			}
			gen.SetObserver(a.metrics)

			out, err := gen.Generate(ctx, title, rs)
			if err != nil {
				return err
			}
			s := out.Report.Summary
			a.out.Bullet("Total: %d", s.Total)
			a.out.Bullet("Passed: %d", s.Passed)
			a.out.Bullet("Failed: %d", s.Failed)
			a.out.Bullet("Flaky: %d", s.Flaky)
			a.out.Bullet("Skipped: %d", s.Skipped)
			a.out.Bullet("Pass rate: %.1f%%", s.PassRate())
			a.out.Success("Saved %s", out.Path)
			if out.URI != "" {
				a.out.Bullet("Uploaded: %s", out.URI)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default REPORTS_DIR)")
	cmd.Flags().StringVar(&title, "title", report.DefaultTitle, "Report title")
	return cmd
}
