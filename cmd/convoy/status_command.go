package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"convoy/internal/config"
	"convoy/internal/deps"
	"convoy/internal/history"
	"convoy/internal/preflight"
	"convoy/internal/resources"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check dependencies, directories and recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			lines = append(lines, renderSectionHeader("Configuration", colorize)...)
			lines = append(lines, configStatusLine(ctx, colorize))
			lines = append(lines, renderStatusLine("Encoder", statusInfo, cfg.Encoder.Backend, colorize))
			lines = append(lines, "")

			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			failed := false
			for _, status := range preflight.CheckSystemDeps(cfg) {
				line, ok := dependencyStatusLine(cmd.Context(), status, colorize)
				if !ok {
					failed = true
				}
				lines = append(lines, line)
			}
			lines = append(lines, "")

			lines = append(lines, renderSectionHeader("Directories", colorize)...)
			for _, result := range []preflight.Result{
				preflight.CheckDirectoryReadable("Watch", cfg.Paths.WatchDir),
				preflight.CheckDirectoryAccess("Output", cfg.Paths.OutputDir),
				preflight.CheckDirectoryAccess("State", cfg.Paths.StateDir),
				preflight.CheckDirectoryAccess("Logs", cfg.Paths.LogDir),
			} {
				lines = append(lines, resultStatusLine(result, statusError, colorize))
				if !result.Passed {
					failed = true
				}
			}
			lines = append(lines, "")

			lines = append(lines, renderSectionHeader("System", colorize)...)
			lines = append(lines, resourceStatusLine(cmd.Context(), cfg, colorize))
			lines = append(lines, resultStatusLine(preflight.CheckNotificationsFromConfig(cfg), statusWarn, colorize))
			lines = append(lines, lastRunStatusLine(cmd.Context(), cfg, colorize))

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			if failed {
				return fmt.Errorf("status checks failed")
			}
			return nil
		},
	}
}

func configStatusLine(ctx *commandContext, colorize bool) string {
	if !ctx.configSeen {
		return renderStatusLine("Config", statusWarn, "defaults ("+ctx.configPath+" not found)", colorize)
	}
	return renderStatusLine("Config", statusOK, ctx.configPath, colorize)
}

func dependencyStatusLine(ctx context.Context, status deps.Status, colorize bool) (string, bool) {
	if !status.Available {
		kind := statusError
		if status.Optional {
			kind = statusWarn
		}
		return renderStatusLine(status.Name, kind, status.Detail, colorize), status.Optional
	}
	detail := status.Command
	if version := deps.BinaryVersion(ctx, status.Command); version != "" {
		detail = version
	}
	return renderStatusLine(status.Name, statusOK, detail, colorize), true
}

func resultStatusLine(result preflight.Result, failKind statusKind, colorize bool) string {
	if result.Passed {
		return renderStatusLine(result.Name, statusOK, result.Detail, colorize)
	}
	return renderStatusLine(result.Name, failKind, result.Detail, colorize)
}

func resourceStatusLine(ctx context.Context, cfg *config.Config, colorize bool) string {
	const label = "Load"
	sampler, err := resources.NewProcSampler(500 * time.Millisecond)
	if err != nil {
		return renderStatusLine(label, statusInfo, "unavailable", colorize)
	}
	sample, err := sampler.Sample(ctx)
	if err != nil {
		return renderStatusLine(label, statusInfo, "unavailable", colorize)
	}
	detail := fmt.Sprintf("CPU %.0f%%, %.1f GiB memory available", sample.CPUPercent, sample.AvailableMemoryGiB())
	if !cfg.Resources.Enabled {
		return renderStatusLine(label, statusInfo, detail+" (gating disabled)", colorize)
	}
	if sample.CPUPercent > cfg.Resources.MaxCPUPercent || sample.AvailableMemoryGiB() < cfg.Resources.MinAvailableMemoryGiB {
		return renderStatusLine(label, statusWarn, detail+"; encodes would wait", colorize)
	}
	return renderStatusLine(label, statusOK, detail, colorize)
}

func lastRunStatusLine(ctx context.Context, cfg *config.Config, colorize bool) string {
	const label = "Last run"
	store, err := history.Open(cfg)
	if err != nil {
		return renderStatusLine(label, statusWarn, "history unavailable", colorize)
	}
	defer store.Close()
	runs, err := store.Runs(ctx, 1)
	if err != nil || len(runs) == 0 {
		return renderStatusLine(label, statusInfo, "none", colorize)
	}
	run := runs[0]
	detail := fmt.Sprintf("%s %s: %d done, %d failed, %d skipped (%s)",
		run.Mode, run.StartedAt.Local().Format("2006-01-02 15:04"),
		run.Completed, run.Failed, run.Skipped, runState(run))
	kind := statusOK
	if run.Failed > 0 || run.Interrupted {
		kind = statusWarn
	}
	return renderStatusLine(label, kind, detail, colorize)
}
