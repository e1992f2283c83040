package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"convoy/internal/config"
	"convoy/internal/history"
	"convoy/internal/logging"
	"convoy/internal/metrics"
	"convoy/internal/preflight"
	"convoy/internal/progress"
	"convoy/internal/workflow"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		outputDir       string
		noVerify        bool
		noResourceCheck bool
		verbose         bool
	)

	cmd := &cobra.Command{
		Use:   "batch <paths...>",
		Short: "Convert the given files, directories or glob patterns once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyOutputDir(cfg, outputDir); err != nil {
				return err
			}
			if noVerify {
				cfg.Verify.Enabled = false
			}
			if verbose {
				cfg.Logging.Level = "debug"
			}

			paths, err := workflow.ExpandInputs(args, cfg.Encoder.SupportedFormats, cfg.Paths.OutputDir)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return errors.New("no video files found in the given paths")
			}
			if err := preflight.Error(preflight.RunAll(cmd.Context(), cfg, false)); err != nil {
				return err
			}

			logger, err := ctx.newLogger(cfg, "batch")
			if err != nil {
				return err
			}
			store := openHistory(cfg, logger)
			if store != nil {
				defer store.Close()
			}

			errOut := cmd.ErrOrStderr()
			opts := []workflow.Option{workflow.WithProgressOutput(errOut, progress.IsTerminal(errOut))}
			if noResourceCheck {
				opts = append(opts, workflow.WithoutResourceGate())
			}
			orchestrator, err := workflow.New(cfg, workflow.Deps{
				Journal: journalFor(store),
				Logger:  logger,
			}, opts...)
			if err != nil {
				return err
			}

			runCtx, stop, cleanup := withInterrupts(cmd.Context(), errOut)
			defer cleanup()
			result := orchestrator.RunBatch(runCtx, stop, paths)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, progress.RenderSummary(result.Summary, result.Outcomes))
			fmt.Fprintf(out, "Run %s finished in %s\n", result.RunID, result.Elapsed.Round(time.Second))

			switch {
			case result.Interrupted:
				return fmt.Errorf("batch interrupted; %d file(s) not processed", result.Summary.Pending())
			case !result.Succeeded():
				return fmt.Errorf("%d file(s) failed", result.Summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (overrides paths.output_dir)")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip post-encode verification")
	cmd.Flags().BoolVar(&noResourceCheck, "no-resource-check", false, "Start encodes regardless of CPU and memory load")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		watchDir      string
		outputDir     string
		interval      int
		metricsListen string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Convert files as they appear in the watch directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(watchDir) != "" {
				expanded, err := config.ExpandPath(strings.TrimSpace(watchDir))
				if err != nil {
					return fmt.Errorf("resolve watch directory: %w", err)
				}
				cfg.Paths.WatchDir = expanded
			}
			if err := applyOutputDir(cfg, outputDir); err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				if interval <= 0 {
					return errors.New("--interval must be positive")
				}
				cfg.Watch.IntervalSeconds = interval
			}
			if strings.TrimSpace(metricsListen) != "" {
				cfg.Metrics.Listen = strings.TrimSpace(metricsListen)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := preflight.Error(preflight.RunAll(cmd.Context(), cfg, true)); err != nil {
				return err
			}

			logger, err := ctx.newLogger(cfg, "watch")
			if err != nil {
				return err
			}
			store := openHistory(cfg, logger)
			if store != nil {
				defer store.Close()
			}

			errOut := cmd.ErrOrStderr()
			runCtx, stop, cleanup := withInterrupts(cmd.Context(), errOut)
			defer cleanup()

			recorder := metrics.New()
			if cfg.Metrics.Listen != "" {
				go func() {
					if err := recorder.Serve(runCtx, cfg.Metrics.Listen, logger); err != nil {
						logging.WarnWithContext(logger, "metrics endpoint stopped", "metrics_serve_failed",
							logging.Error(err),
							logging.String(logging.FieldErrorHint, "check metrics.listen for a free address"),
							logging.String(logging.FieldImpact, "metrics unavailable for this session"),
						)
					}
				}()
			}

			orchestrator, err := workflow.New(cfg, workflow.Deps{
				Journal: journalFor(store),
				Metrics: recorder,
				Logger:  logger,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(errOut, "Watching %s (Ctrl+C to stop)\n", cfg.Paths.WatchDir)
			result, err := orchestrator.Watch(runCtx, stop)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, progress.RenderSummary(result.Summary, nil))
			fmt.Fprintf(out, "Processed %d file(s) in %d scan(s)\n", result.Processed, result.Cycles)
			if len(result.Failed) > 0 {
				rows := make([][]string, 0, len(result.Failed))
				for _, path := range result.Failed {
					rows = append(rows, []string{path})
				}
				fmt.Fprintln(out, renderTable([]string{"Failed file"}, rows, nil))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&watchDir, "watch", "w", "", "Directory to watch (overrides paths.watch_dir)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (overrides paths.output_dir)")
	cmd.Flags().IntVarP(&interval, "interval", "i", 0, "Seconds between scans (overrides watch.interval_seconds)")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func applyOutputDir(cfg *config.Config, outputDir string) error {
	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return nil
	}
	expanded, err := config.ExpandPath(outputDir)
	if err != nil {
		return fmt.Errorf("resolve output directory: %w", err)
	}
	cfg.Paths.OutputDir = expanded
	return cfg.EnsureDirectories()
}

// openHistory opens the history journal. Runs continue without it when the
// database cannot be opened.
func openHistory(cfg *config.Config, logger *slog.Logger) *history.Store {
	store, err := history.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on "+cfg.HistoryDBPath()),
			logging.String(logging.FieldImpact, "this run will not be recorded"),
		)
		return nil
	}
	return store
}

func journalFor(store *history.Store) workflow.Journal {
	if store == nil {
		return nil
	}
	return store
}
