package encoding

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"
	"github.com/google/uuid"

	"convoy/internal/fileutil"
	"convoy/internal/logging"
	"convoy/internal/probe"
)

// Drapto encodes through the drapto library. Drapto names its output after
// the input stem inside a directory, so each encode runs in a scratch
// directory beside the requested output and the result is moved into place.
type Drapto struct {
	progress ProgressFunc
	logger   *slog.Logger
	encode   func(ctx context.Context, input, outputDir string, rep draptolib.Reporter) error
}

// NewDrapto constructs the drapto backend.
func NewDrapto(opts ...Option) *Drapto {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Drapto{
		progress: o.progress,
		logger:   logging.NewComponentLogger(o.logger, "drapto"),
		encode:   encodeWithLibrary,
	}
}

// Convert encodes input and leaves the result at output.
func (d *Drapto) Convert(ctx context.Context, input, output string, meta probe.MediaMetadata) error {
	scratch := filepath.Join(filepath.Dir(output), ".convoy-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("%w: create scratch dir: %v", ErrEncoderFailed, err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			d.logger.Warn("drapto scratch cleanup failed", logging.String(logging.FieldPath, scratch), logging.Error(err))
		}
	}()

	d.logger.Info("drapto encode started",
		logging.String(logging.FieldPath, input),
		logging.String(logging.FieldOutputPath, output),
		logging.String("quality", meta.Quality),
	)
	rep := &draptoReporter{input: input, progress: d.progress, logger: d.logger, sampler: logging.NewProgressSampler(10)}
	if err := d.encode(ctx, input, scratch, rep); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("encode cancelled: %w", ctx.Err())
		}
		if reDiskFull.MatchString(err.Error()) {
			return fmt.Errorf("%w: %v", ErrDiskFull, err)
		}
		return fmt.Errorf("%w: %v", ErrEncoderFailed, err)
	}

	base := filepath.Base(input)
	produced := filepath.Join(scratch, strings.TrimSuffix(base, filepath.Ext(base))+".mkv")
	if !fileutil.Exists(produced) {
		return fmt.Errorf("%w: drapto produced no output for %s", ErrEncoderFailed, base)
	}
	if err := fileutil.MoveFile(produced, output); err != nil {
		return fmt.Errorf("%w: move drapto output: %v", ErrEncoderFailed, err)
	}
	return nil
}

func encodeWithLibrary(ctx context.Context, input, outputDir string, rep draptolib.Reporter) error {
	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return fmt.Errorf("init drapto: %w", err)
	}
	_, err = encoder.EncodeWithReporter(ctx, input, outputDir, rep)
	return err
}

// draptoReporter forwards drapto events to the progress observer and logger.
type draptoReporter struct {
	input    string
	progress ProgressFunc
	logger   *slog.Logger
	sampler  *logging.ProgressSampler
}

func (r *draptoReporter) report(percent float64) {
	if r.progress != nil {
		r.progress(r.input, percent)
	}
	if r.sampler.ShouldLog(percent) {
		r.logger.Debug("drapto progress",
			logging.String(logging.FieldPath, r.input),
			logging.Float64("progress_percent", percent),
		)
	}
}

func (r *draptoReporter) Hardware(draptolib.HardwareSummary) {}

func (r *draptoReporter) Initialization(s draptolib.InitializationSummary) {
	r.logger.Debug("drapto initialized",
		logging.String(logging.FieldPath, r.input),
		logging.Any("resolution", s.Resolution),
		logging.Any("dynamic_range", s.DynamicRange),
	)
}

func (r *draptoReporter) StageProgress(s draptolib.StageProgress) {
	r.logger.Debug("drapto stage", logging.Any("stage", s.Stage), logging.Any("message", s.Message))
}

func (r *draptoReporter) CropResult(s draptolib.CropSummary) {
	r.logger.Debug("drapto crop detection", logging.Any("crop", s.Crop), logging.Any("required", s.Required))
}

func (r *draptoReporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.logger.Info("drapto encoding config",
		logging.String(logging.FieldPath, r.input),
		logging.Any("encoder", s.Encoder),
		logging.Any("preset", s.Preset),
		logging.Any("quality", s.Quality),
	)
}

func (r *draptoReporter) EncodingStarted(uint64) { r.report(0) }

func (r *draptoReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.report(float64(s.Percent))
}

func (r *draptoReporter) ValidationComplete(s draptolib.ValidationSummary) {
	if s.Passed {
		return
	}
	logging.WarnWithContext(r.logger, "drapto validation failed", "drapto_validation_failed",
		logging.String(logging.FieldPath, r.input),
		logging.String(logging.FieldImpact, "output will be checked again before it is kept"),
	)
}

func (r *draptoReporter) EncodingComplete(draptolib.EncodingOutcome) { r.report(100) }

func (r *draptoReporter) Warning(message string) {
	logging.WarnWithContext(r.logger, "drapto warning", "drapto_warning",
		logging.String(logging.FieldPath, r.input),
		logging.String("drapto_warning", strings.TrimSpace(message)),
	)
}

func (r *draptoReporter) Error(e draptolib.ReporterError) {
	logging.ErrorWithContext(r.logger, "drapto error", "drapto_error",
		logging.String(logging.FieldPath, r.input),
		logging.Any("drapto_error_title", e.Title),
		logging.Any("drapto_error_message", e.Message),
		logging.Any(logging.FieldErrorHint, e.Suggestion),
	)
}

func (r *draptoReporter) OperationComplete(string) {}

func (r *draptoReporter) BatchStarted(draptolib.BatchStartInfo) {}

func (r *draptoReporter) FileProgress(draptolib.FileProgressContext) {}

func (r *draptoReporter) BatchComplete(draptolib.BatchSummary) {}

var _ draptolib.Reporter = (*draptoReporter)(nil)
