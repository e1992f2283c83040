package workflow

import (
	"context"
	"time"

	"convoy/internal/logging"
	"convoy/internal/notifications"
	"convoy/internal/progress"
)

// BatchResult summarises a batch run.
type BatchResult struct {
	RunID       string
	Summary     progress.Summary
	Outcomes    []Outcome
	Interrupted bool
	Elapsed     time.Duration
}

// Succeeded reports whether every file finished without failure.
func (r BatchResult) Succeeded() bool {
	return !r.Interrupted && r.Summary.Failed == 0 && r.Summary.Pending() == 0
}

// RunBatch converts paths sequentially in the given order. Closing stop ends
// the batch after the current file; cancelling ctx aborts it.
func (o *Orchestrator) RunBatch(ctx context.Context, stop <-chan struct{}, paths []string) BatchResult {
	started := time.Now()
	runCtx, agg := o.beginRun(ctx, string(ModeBatch), len(paths))
	runID, _ := logging.RunIDFromContext(runCtx)
	logger := logging.WithContext(runCtx, o.logger)

	logger.Info("batch started",
		logging.Int("files", len(paths)),
		logging.String(logging.FieldEventType, "batch_started"),
	)
	if o.gate != nil {
		o.gate.LogSnapshot(runCtx)
	}

	interrupted := false
	for _, path := range paths {
		if stopped(stop) || runCtx.Err() != nil {
			interrupted = true
			break
		}
		o.Process(runCtx, path, ModeBatch)
	}
	if runCtx.Err() != nil {
		interrupted = true
	}

	summary := o.endRun(runCtx, agg, interrupted)
	result := BatchResult{
		RunID:       runID,
		Summary:     summary,
		Outcomes:    agg.Outcomes(),
		Interrupted: interrupted,
		Elapsed:     time.Since(started),
	}

	attrs := []logging.Attr{
		logging.Int("total", summary.Total),
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("elapsed", result.Elapsed.Round(time.Second)),
	}
	if interrupted {
		logging.WarnWithContext(logger, "batch interrupted", "batch_interrupted",
			append(attrs,
				logging.Int("pending", summary.Pending()),
				logging.String(logging.FieldErrorHint, "rerun the same command to resume"),
				logging.String(logging.FieldImpact, "remaining files were not converted"),
			)...)
	} else {
		attrs = append(attrs, logging.String(logging.FieldEventType, "batch_completed"))
		logger.Info("batch finished", logging.Args(attrs...)...)
	}

	if err := o.notifier.Publish(context.WithoutCancel(runCtx), notifications.EventBatchCompleted, notifications.Payload{
		"completed": summary.Completed,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"elapsed":   result.Elapsed,
	}); err != nil {
		logger.Debug("batch notification failed", logging.Error(err))
	}
	return result
}

func stopped(stop <-chan struct{}) bool {
	if stop == nil {
		return false
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
