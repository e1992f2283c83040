package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"convoy/internal/encoding"
	"convoy/internal/fileutil"
	"convoy/internal/history"
	"convoy/internal/logging"
	"convoy/internal/notifications"
	"convoy/internal/probe"
	"convoy/internal/progress"
	"convoy/internal/router"
	"convoy/internal/verify"
)

// Mode selects batch or watch behaviour in the pipeline.
type Mode string

const (
	ModeBatch Mode = "batch"
	ModeWatch Mode = "watch"
)

// Outcome is the terminal result of one file.
type Outcome = progress.Outcome

// fileRecord carries the details written to history for one file.
type fileRecord struct {
	outputPath    string
	attempts      int
	category      router.Type
	quality       string
	inputBytes    int64
	outputBytes   int64
	mediaSeconds  float64
	encodeSeconds float64
}

// Process runs one file through the pipeline. It returns false when the file
// produced no terminal outcome: it was already known to this run, or it was
// still being written in watch mode and was released for a later cycle.
func (o *Orchestrator) Process(ctx context.Context, path string, mode Mode) (outcome Outcome, final bool) {
	if !o.registry.Claim(path) {
		return Outcome{}, false
	}
	release := o.metrics.FileStarted()
	defer release()

	ctx = logging.WithPath(ctx, path)
	logger := logging.WithContext(ctx, o.logger)
	rec := &fileRecord{}

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "conversion panicked", "pipeline_panic",
				logging.Any("panic", r),
				logging.String(logging.FieldErrorHint, "report this as a bug"),
			)
			outcome = Outcome{Path: path, Kind: progress.Failure, Reason: fmt.Sprintf("internal error: %v", r)}
			final = true
		}
		if !final {
			o.registry.Release(path)
			return
		}
		o.record(ctx, logger, outcome, rec)
	}()

	logger.Info("new file detected", logging.String(logging.FieldMode, string(mode)))
	outcome, final = o.run(ctx, logger, path, mode, rec)
	return outcome, final
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, path string, mode Mode, rec *fileRecord) (Outcome, bool) {
	fail := func(err error) (Outcome, bool) {
		return Outcome{Path: path, Kind: progress.Failure, Reason: reasonFor(err)}, true
	}

	if !o.stability.IsStable(ctx, path, o.cfg.StabilityWait()) {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		logger.Info("file still being copied; waiting",
			logging.Duration("grace", o.cfg.StabilityGrace()),
			logging.String(logging.FieldEventType, "stability_wait"),
		)
		if err := o.sleep(ctx, o.cfg.StabilityGrace()); err != nil {
			return fail(err)
		}
		if mode == ModeWatch && !o.stability.IsStable(ctx, path, o.cfg.StabilityWait()) {
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			logger.Info("file still growing; deferring to next scan",
				logging.Args(logging.DecisionAttrs("stability", "deferred", "size changed after grace delay")...)...)
			return Outcome{}, false
		}
	}

	meta, err := o.validateInput(ctx, logger, path)
	if err != nil {
		logging.WarnWithContext(logger, "input rejected", "input_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, reasonFor(err)),
			logging.String(logging.FieldImpact, "file will not be converted"),
		)
		return fail(err)
	}
	rec.inputBytes = meta.SizeBytes
	rec.mediaSeconds = meta.DurationSeconds
	rec.quality = meta.Quality

	if o.cfg.Encoder.SkipHEVCSources && meta.IsHEVC() {
		logger.Info("input already HEVC; skipping",
			logging.Args(logging.DecisionAttrs("codec", "skip", "already x265")...)...)
		return Outcome{Path: path, Kind: progress.Skipped, Reason: reasonAlreadyHEVC}, true
	}
	if meta.IsLowQuality() {
		logging.WarnWithContext(logger, "low quality input", "input_low_quality",
			logging.String("quality", meta.Quality),
			logging.String(logging.FieldErrorHint, "converting sources below 720p loses further detail"),
			logging.String(logging.FieldImpact, "conversion continues"),
		)
	}

	category := o.router.Categorize(path, o.cfg.Paths.OutputDir)
	rec.category = category.Type
	rec.outputPath = category.OutputFile
	logger = logger.With(logging.String(logging.FieldOutputPath, category.OutputFile))

	if o.resume.ResolveWithInput(ctx, meta, category.OutputFile) == SkipAlreadyDone {
		return Outcome{Path: path, Kind: progress.Skipped, Reason: reasonAlreadyConverted}, true
	}

	o.awaitResources(ctx, logger)

	o.mu.Lock()
	agg := o.agg
	o.sampler.Reset()
	o.mu.Unlock()
	if agg != nil {
		agg.Start(path)
	}

	logger.Info("conversion started",
		logging.String("category", string(category.Type)),
		logging.String("quality", meta.Quality),
		logging.String(logging.FieldEventType, "conversion_started"),
	)
	started := time.Now()
	result := o.retry.Attempt(ctx, path, o.cfg.Retry.MaxAttempts, func(ctx context.Context, attempt int) error {
		// The source may have changed since the last attempt.
		current, err := o.prober.Probe(ctx, path)
		if err != nil {
			return err
		}
		if err := probe.Validate(current); err != nil {
			return err
		}
		target := o.router.Categorize(path, o.cfg.Paths.OutputDir)
		rec.inputBytes = current.SizeBytes
		rec.mediaSeconds = current.DurationSeconds
		rec.quality = current.Quality
		rec.category = target.Type
		rec.outputPath = target.OutputFile
		return o.convertAndVerify(ctx, logger, path, target.OutputFile, current)
	})
	rec.attempts = result.Attempts
	rec.encodeSeconds = time.Since(started).Seconds()

	if !result.Success {
		return fail(result.Err)
	}
	if info, err := os.Stat(rec.outputPath); err == nil {
		rec.outputBytes = info.Size()
	}
	return Outcome{Path: path, Kind: progress.Success}, true
}

func (o *Orchestrator) validateInput(ctx context.Context, logger *slog.Logger, path string) (probe.MediaMetadata, error) {
	if err := probe.CheckFormat(path, o.cfg.Encoder.SupportedFormats); err != nil {
		return probe.MediaMetadata{}, err
	}
	meta, err := o.prober.Probe(ctx, path)
	if err != nil {
		return probe.MediaMetadata{}, err
	}
	if err := probe.Validate(meta); err != nil {
		return meta, err
	}
	logger.Debug("input probed",
		logging.Float64("duration_seconds", meta.DurationSeconds),
		logging.Int("width", meta.Width),
		logging.Int("height", meta.Height),
		logging.String("video_codec", meta.VideoCodec),
		logging.String("audio_codec", meta.AudioCodec),
	)
	return meta, nil
}

// awaitResources holds the encode back while the system is overloaded. The
// wait is advisory: on timeout the encode starts anyway.
func (o *Orchestrator) awaitResources(ctx context.Context, logger *slog.Logger) {
	if o.gate == nil {
		return
	}
	poll := time.Duration(o.cfg.Resources.PollIntervalSeconds) * time.Second
	timeout := time.Duration(o.cfg.Resources.WaitTimeoutSeconds) * time.Second
	result := o.gate.WaitForResources(ctx, poll, timeout)
	switch {
	case result.Free && result.Polls == 0:
		return
	case result.Free:
		o.metrics.ResourceWait("free")
		logger.Info("resources available",
			logging.Int("polls", result.Polls),
			logging.String(logging.FieldEventType, "resource_free"),
		)
		return
	case ctx.Err() != nil:
		return
	}
	o.metrics.ResourceWait("timeout")
	logging.WarnWithContext(logger, "system still busy; starting conversion anyway", "resource_wait_timeout",
		logging.Duration("timeout", timeout),
		logging.String(logging.FieldErrorHint, "raise resources.max_cpu_percent or lower the load"),
		logging.String(logging.FieldImpact, "encode competes with other work"),
	)
}

// convertAndVerify encodes into a hidden partial beside the destination and
// only renames it into place after verification. A partial that fails
// verification is quarantined; one from a failed encode is removed.
func (o *Orchestrator) convertAndVerify(ctx context.Context, logger *slog.Logger, input, output string, meta probe.MediaMetadata) error {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	partial := encoding.PartialPath(output)
	if err := fileutil.RemoveIfExists(partial); err != nil {
		return fmt.Errorf("clear stale partial: %w", err)
	}

	started := time.Now()
	err := o.invoker.Convert(ctx, input, partial, meta)
	o.metrics.EncodeAttempt(time.Since(started), err)
	if err != nil {
		if rmErr := fileutil.RemoveIfExists(partial); rmErr != nil {
			logger.Debug("failed to remove partial output", logging.Error(rmErr))
		}
		return err
	}

	if err := o.verifier.Verify(ctx, partial, meta.DurationSeconds, meta.SizeBytes); err != nil {
		target, qErr := encoding.Quarantine(partial, output, o.cfg.Paths.OutputDir, o.cfg.Encoder.KeepIncomplete)
		switch {
		case qErr != nil:
			logger.Debug("failed to dispose of unverified output", logging.Error(qErr))
		case target != "":
			logging.WarnWithContext(logger, "unverified output moved aside", "output_quarantined",
				logging.String("incomplete_path", target),
				logging.String(logging.FieldErrorHint, "inspect the file in "+encoding.IncompleteDir),
				logging.String(logging.FieldImpact, "destination left untouched"),
			)
		}
		return err
	}
	logger.Debug("output verified", logging.String(logging.FieldEventType, "verification_passed"))

	return encoding.Finalize(partial, output)
}

// record folds a terminal outcome into every sink and marks the path
// processed.
func (o *Orchestrator) record(ctx context.Context, logger *slog.Logger, outcome Outcome, rec *fileRecord) {
	o.registry.Finish(outcome.Path, outcome.Kind == progress.Failure)

	o.mu.Lock()
	agg := o.agg
	runID := o.runID
	o.mu.Unlock()
	if agg != nil {
		agg.Update(outcome)
	}
	o.metrics.Outcome(outcome.Kind.String())

	attrs := []logging.Attr{
		logging.String(logging.FieldOutcome, outcome.Kind.String()),
		logging.Int(logging.FieldAttempt, rec.attempts),
		logging.String(logging.FieldEventType, "file_finished"),
	}
	if outcome.Reason != "" {
		attrs = append(attrs, logging.String("reason", outcome.Reason))
	}
	switch outcome.Kind {
	case progress.Failure:
		logging.ErrorWithContext(logger, "conversion failed", "file_failed",
			append(attrs, logging.String(logging.FieldErrorHint, outcome.Reason))...)
	default:
		logger.Info("file finished", logging.Args(attrs...)...)
	}

	// History and notifications are written even when the run is aborting.
	detached := context.WithoutCancel(ctx)
	if o.journal != nil && runID != "" {
		entry := history.Entry{
			RunID:         runID,
			SourcePath:    outcome.Path,
			OutputPath:    rec.outputPath,
			Outcome:       outcome.Kind.String(),
			Reason:        outcome.Reason,
			Attempts:      rec.attempts,
			Category:      string(rec.category),
			Quality:       rec.quality,
			InputBytes:    rec.inputBytes,
			OutputBytes:   rec.outputBytes,
			MediaSeconds:  rec.mediaSeconds,
			EncodeSeconds: rec.encodeSeconds,
		}
		if _, err := o.journal.Record(detached, entry); err != nil {
			logger.Debug("failed to record history entry", logging.Error(err))
		}
	}
	if outcome.Kind == progress.Failure {
		if err := o.notifier.Publish(detached, notifications.EventFileFailed, notifications.Payload{
			"path":   outcome.Path,
			"reason": outcome.Reason,
		}); err != nil {
			logger.Debug("failure notification failed", logging.Error(err))
		}
	}
}

const (
	reasonAlreadyHEVC      = "already x265"
	reasonAlreadyConverted = "already converted"
)

// reasonFor turns an error into the short message shown to operators.
func reasonFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "interrupted by user"
	case errors.Is(err, probe.ErrUnsupportedFormat):
		return "unsupported file format"
	case errors.Is(err, probe.ErrNotFound):
		return "input file not found; it may have been moved or deleted"
	case errors.Is(err, probe.ErrNoVideo):
		return "input has no video stream; check that the file is intact"
	case errors.Is(err, probe.ErrProbe):
		return "could not read media information; the file may be corrupt"
	case errors.Is(err, encoding.ErrDiskFull):
		return "not enough disk space"
	case errors.Is(err, encoding.ErrTimeout):
		return "conversion took too long and was stopped"
	case errors.Is(err, verify.ErrVerification):
		return "output failed verification"
	case errors.Is(err, encoding.ErrEncoderFailed):
		return "encoder error; the input may be corrupt"
	default:
		return err.Error()
	}
}
