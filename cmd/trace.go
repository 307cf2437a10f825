package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stain/internal/config"
	"github.com/xkilldash9x/stain/internal/observability"
	"github.com/xkilldash9x/stain/internal/reporting"
	"github.com/xkilldash9x/stain/internal/scenario"
)

// newTraceCmd creates and configures the `trace` command.
func newTraceCmd() *cobra.Command {
	traceCmd := &cobra.Command{
		Use:   "trace [scenarios...]",
		Short: "Run propagation scenarios and report the evidence",
		Long: `Executes taint propagation scenarios, each against a fresh tracker, and
writes one trace report per scenario. Arguments may name scenario files or
directories; with no arguments the configured scenario directory is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			// Flags override the config file and environment.
			flags := cmd.Flags()
			if flags.Changed("format") {
				cfg.Report.Format, _ = flags.GetString("format")
			}
			if flags.Changed("output") {
				cfg.Report.Output, _ = flags.GetString("output")
			}
			if flags.Changed("no-color") {
				cfg.Report.NoColor, _ = flags.GetBool("no-color")
			}
			if flags.Changed("concurrency") {
				cfg.Trace.Concurrency, _ = flags.GetInt("concurrency")
			}
			if flags.Changed("fail-fast") {
				cfg.Trace.FailFast, _ = flags.GetBool("fail-fast")
			}
			if flags.Changed("timeout") {
				cfg.Trace.Timeout, _ = flags.GetDuration("timeout")
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			// Delegate to the testable core logic function.
			return runTrace(ctx, logger, cfg, args)
		},
	}

	traceCmd.Flags().StringP("format", "f", "", "Report format: console, json or junit. (Overrides config/env)")
	traceCmd.Flags().StringP("output", "o", "", "Report destination; a path ending in .br is compressed. (Overrides config/env)")
	traceCmd.Flags().Bool("no-color", false, "Disable styled console output. (Overrides config/env)")
	traceCmd.Flags().IntP("concurrency", "j", 0, "Scenarios to run in parallel. (Overrides config/env)")
	traceCmd.Flags().Bool("fail-fast", false, "Stop at the first failing scenario. (Overrides config/env)")
	traceCmd.Flags().Duration("timeout", 0, "Per-scenario timeout. (Overrides config/env)")

	return traceCmd
}

// runTrace contains the core, testable logic of the trace command.
func runTrace(ctx context.Context, logger *zap.Logger, cfg *config.Config, args []string) error {
	scenarios, err := collectScenarios(args, cfg.Trace.ScenarioDir)
	if err != nil {
		return err
	}
	logger.Info("Starting trace run",
		zap.Int("scenarios", len(scenarios)),
		zap.Int("concurrency", cfg.Trace.Concurrency),
		zap.String("format", cfg.Report.Format),
	)

	reporter, err := newReporter(cfg.Report)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}

	runner := scenario.NewRunner(scenario.Options{
		Engine:      cfg.Taint,
		Concurrency: cfg.Trace.Concurrency,
		FailFast:    cfg.Trace.FailFast,
		Timeout:     cfg.Trace.Timeout,
	}, logger.Named("trace"))

	reports, runErr := runner.RunAll(ctx, scenarios)

	// Write whatever ran, even under fail-fast or cancellation.
	var failed int
	var writeErr error
	for _, report := range reports {
		if !report.Passed {
			failed++
		}
		if writeErr == nil {
			writeErr = reporter.Write(report)
		}
	}
	if err := reporter.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		return fmt.Errorf("failed to write report: %w", writeErr)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Warn("Trace run aborted", zap.Int("completed", len(reports)))
		}
		return runErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(reports))
	}
	logger.Info("Trace run completed", zap.Int("scenarios", len(reports)))
	return nil
}

// collectScenarios resolves the scenario set: files or directories from args,
// or the configured scenario directory when no args are given.
func collectScenarios(args []string, fallbackDir string) ([]*scenario.Scenario, error) {
	if len(args) == 0 {
		dir, err := homedir.Expand(fallbackDir)
		if err != nil {
			return nil, fmt.Errorf("could not resolve scenario directory %q: %w", fallbackDir, err)
		}
		return scenario.LoadDir(dir)
	}

	var scenarios []*scenario.Scenario
	for _, arg := range args {
		path, err := homedir.Expand(arg)
		if err != nil {
			return nil, fmt.Errorf("could not resolve scenario path %q: %w", arg, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read scenario path %s: %w", path, err)
		}
		if info.IsDir() {
			loaded, err := scenario.LoadDir(path)
			if err != nil {
				return nil, err
			}
			scenarios = append(scenarios, loaded...)
			continue
		}
		sc, err := scenario.Load(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// newReporter builds the configured reporter, expanding a home-relative
// output path first.
func newReporter(cfg config.ReportConfig) (reporting.Reporter, error) {
	output := cfg.Output
	if output != "" && output != "stdout" {
		expanded, err := homedir.Expand(output)
		if err != nil {
			return nil, fmt.Errorf("could not resolve output path %q: %w", output, err)
		}
		output = expanded
	}
	return reporting.New(cfg.Format, output, cfg.NoColor)
}
