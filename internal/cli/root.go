// Package cli implements the e2ekit command line: generators for test
// sheets, locator tables, page objects and tests, the AI suite generator,
// test verification and selector healing, result processing and the report
// server.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/testforge/e2ekit/internal/config"
	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/llm"
	"github.com/testforge/e2ekit/internal/observability"
	"github.com/testforge/e2ekit/internal/resilience"
)

// app carries what every command shares. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	version string
	verbose bool
	logFile string

	cfg      *config.Config
	logger   *zap.Logger
	out      *Printer
	metrics  *observability.Metrics
	breakers *resilience.Registry
}

// NewRootCmd creates the root command
func NewRootCmd(version string) *cobra.Command {
	a := &app{version: version}

	rootCmd := &cobra.Command{
		Use:   "e2ekit",
		Short: "Browser end-to-end testing toolkit",
		Long: `e2ekit - page objects with self-describing locator strategies, plus the
tooling around them: test sheets, generated page objects and tests, AI suite
generation, test review, selector healing and run reports.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Also write JSON logs to this file (rotated)")

	rootCmd.AddCommand(
		newGenCSVCmd(a),
		newGenLocatorsCmd(a),
		newGenPageCmd(a),
		newGenTestsCmd(a),
		newGenSuiteCmd(a),
		newVerifyCmd(a),
		newHealCmd(a),
		newUpdateCSVCmd(a),
		newAnalyzeCmd(a),
		newAutofixCmd(a),
		newReportCmd(a),
		newServeCmd(a),
	)

	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.GetLogLevel()
	if a.verbose {
		level = "debug"
	} else if !cfg.Debug {
		// the step printer is the user interface; logs are for problems
		level = "warn"
	}
	file := a.logFile
	if file == "" {
		file = cfg.LogFile
	}
	a.logger = observability.NewLogger(observability.LogConfig{
		Level:       level,
		File:        file,
		Development: cfg.IsDevelopment() || a.verbose,
	})

	a.out = NewPrinter(cmd.OutOrStdout())
	a.metrics = observability.NewMetrics("", prometheus.NewRegistry())
	a.breakers = resilience.NewRegistry(func(name string) resilience.Config {
		c := resilience.DefaultConfig(name)
		c.Failed = llm.BreakerFailed
		c.OnStateChange = func(name string, from, to resilience.State) {
			a.metrics.RecordBreakerState(name, float64(to))
			a.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		}
		return c
	})
	return nil
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute(version string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd(version)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		red.Fprintf(os.Stderr, "✗ %v\n", err)
		if appErr, ok := domain.AsAppError(err); ok && appErr.Details != "" {
			yellow.Fprintf(os.Stderr, "  %s\n", appErr.Details)
		}
		stop()
		os.Exit(1)
	}
}

// exactArgs is cobra.ExactArgs with the usage line in the error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("usage: %s", cmd.UseLine())
		}
		return nil
	}
}
