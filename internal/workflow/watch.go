package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"convoy/internal/logging"
	"convoy/internal/notifications"
	"convoy/internal/progress"
)

// WatchResult summarises a watch session.
type WatchResult struct {
	RunID     string
	Summary   progress.Summary
	Processed int
	Failed    []string
	Cycles    int
}

// Watch scans the configured watch directory every interval, processing new
// files in discovery order, until stop is closed or ctx is cancelled. It
// holds the per-directory instance lock for the whole session.
func (o *Orchestrator) Watch(ctx context.Context, stop <-chan struct{}) (WatchResult, error) {
	watchRoot, err := CanonicalPath(o.cfg.Paths.WatchDir)
	if err != nil {
		return WatchResult{}, err
	}
	lock, err := AcquireInstanceLock(o.cfg.Paths.StateDir, watchRoot)
	if err != nil {
		return WatchResult{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			o.logger.Debug("failed to release watch lock", logging.Error(err))
		}
	}()

	runCtx, agg := o.beginRun(ctx, string(ModeWatch), 0)
	runID, _ := logging.RunIDFromContext(runCtx)
	logger := logging.WithContext(runCtx, o.logger)
	interval := o.cfg.WatchInterval()

	logger.Info("watching for new files",
		logging.String("watch_dir", watchRoot),
		logging.String("output_dir", o.cfg.Paths.OutputDir),
		logging.Duration("interval", interval),
		logging.String("lock", lock.Path()),
		logging.String(logging.FieldEventType, "watch_started"),
	)

	cycles := 0
	for !stopped(stop) && runCtx.Err() == nil {
		cycles++
		o.scanOnce(runCtx, stop, logger, watchRoot)
		if stopped(stop) || runCtx.Err() != nil {
			break
		}
		if !waitInterval(runCtx, stop, interval) {
			break
		}
	}

	summary := o.endRun(runCtx, agg, runCtx.Err() != nil)
	result := WatchResult{
		RunID:     runID,
		Summary:   summary,
		Processed: o.registry.ProcessedCount(),
		Failed:    o.registry.Failed(),
		Cycles:    cycles,
	}
	logger.Info("watch stopped",
		logging.Int("processed", result.Processed),
		logging.Int("failed", len(result.Failed)),
		logging.Int("cycles", cycles),
		logging.String(logging.FieldEventType, "watch_stopped"),
	)
	if err := o.notifier.Publish(context.WithoutCancel(runCtx), notifications.EventWatchStopped, notifications.Payload{
		"watchDir":  watchRoot,
		"processed": result.Processed,
	}); err != nil {
		logger.Debug("watch notification failed", logging.Error(err))
	}

	if err := runCtx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return result, err
	}
	return result, nil
}

// scanOnce runs one discovery cycle.
func (o *Orchestrator) scanOnce(ctx context.Context, stop <-chan struct{}, logger *slog.Logger, watchRoot string) {
	files, err := Discover(watchRoot, o.cfg.Encoder.SupportedFormats, o.cfg.Paths.OutputDir)
	if err != nil {
		logging.WarnWithContext(logger, "scan failed", "watch_scan_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("check that %s is readable", watchRoot)),
			logging.String(logging.FieldImpact, "retrying on the next interval"),
		)
		return
	}
	pending := files[:0]
	for _, path := range files {
		if !o.registry.Known(path) {
			pending = append(pending, path)
		}
	}
	if len(pending) == 0 {
		return
	}
	logger.Info("new files found",
		logging.Int("count", len(pending)),
		logging.String(logging.FieldEventType, "watch_files_found"),
	)
	for _, path := range pending {
		if stopped(stop) || ctx.Err() != nil {
			return
		}
		o.Process(ctx, path, ModeWatch)
	}
}

// waitInterval sleeps for d, returning false when stop or ctx fires first.
func waitInterval(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}
