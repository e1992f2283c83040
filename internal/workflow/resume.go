package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"convoy/internal/fileutil"
	"convoy/internal/logging"
	"convoy/internal/probe"
)

// Decision is the resume verdict for one input.
type Decision int

const (
	// FreshStart means no output exists yet.
	FreshStart Decision = iota
	// SkipAlreadyDone means an output exists and its duration matches.
	SkipAlreadyDone
	// RedoCorruptOutput means an output existed but was truncated or
	// unreadable; it has been removed.
	RedoCorruptOutput
)

func (d Decision) String() string {
	switch d {
	case FreshStart:
		return "fresh_start"
	case SkipAlreadyDone:
		return "skip_already_done"
	case RedoCorruptOutput:
		return "redo_corrupt_output"
	default:
		return "unknown"
	}
}

// ResumePolicy judges previously produced output.
type ResumePolicy struct {
	prober    probe.Prober
	tolerance float64
	logger    *slog.Logger
}

// NewResumePolicy builds a policy that accepts outputs whose duration is
// within tolerance seconds of the input.
func NewResumePolicy(prober probe.Prober, tolerance float64, logger *slog.Logger) *ResumePolicy {
	return &ResumePolicy{
		prober:    prober,
		tolerance: tolerance,
		logger:    logging.NewComponentLogger(logger, "resume"),
	}
}

// Resolve probes path and decides what to do about outputPath. A probe
// failure on the input is returned as an error.
func (p *ResumePolicy) Resolve(ctx context.Context, path, outputPath string) (Decision, error) {
	if !fileutil.Exists(outputPath) {
		return FreshStart, nil
	}
	input, err := p.prober.Probe(ctx, path)
	if err != nil {
		return FreshStart, fmt.Errorf("probe input: %w", err)
	}
	return p.ResolveWithInput(ctx, input, outputPath), nil
}

// ResolveWithInput decides using already probed input metadata. An output
// that cannot be probed counts as zero length.
func (p *ResumePolicy) ResolveWithInput(ctx context.Context, input probe.MediaMetadata, outputPath string) Decision {
	if !fileutil.Exists(outputPath) {
		return FreshStart
	}
	logger := logging.WithContext(ctx, p.logger).With(logging.String(logging.FieldOutputPath, outputPath))

	var outputDuration float64
	if output, err := p.prober.Probe(ctx, outputPath); err == nil {
		outputDuration = output.DurationSeconds
	} else {
		logger.Debug("existing output unreadable", logging.Error(err))
	}

	delta := math.Abs(input.DurationSeconds - outputDuration)
	if delta < p.tolerance {
		logger.Info("output already complete",
			logging.Args(append(logging.DecisionAttrs("resume", SkipAlreadyDone.String(), "duration matches input"),
				logging.Float64("output_duration_seconds", outputDuration),
			)...)...,
		)
		return SkipAlreadyDone
	}

	logging.WarnWithContext(logger, "existing output is incomplete; converting again", "resume_redo",
		append(logging.DecisionAttrs("resume", RedoCorruptOutput.String(), "duration mismatch"),
			logging.Float64("input_duration_seconds", input.DurationSeconds),
			logging.Float64("output_duration_seconds", outputDuration),
			logging.String(logging.FieldErrorHint, "a previous conversion was likely interrupted"),
			logging.String(logging.FieldImpact, "output will be replaced"),
		)...,
	)
	if err := fileutil.RemoveIfExists(outputPath); err != nil {
		logging.WarnWithContext(logger, "failed to delete incomplete output", "resume_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the output directory"),
			logging.String(logging.FieldImpact, "the new conversion will overwrite it"),
		)
	}
	return RedoCorruptOutput
}
