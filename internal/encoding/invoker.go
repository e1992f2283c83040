package encoding

import (
	"context"
	"fmt"
	"log/slog"

	"convoy/internal/config"
	"convoy/internal/probe"
)

// Invoker converts input into output.
type Invoker interface {
	Convert(ctx context.Context, input, output string, meta probe.MediaMetadata) error
}

// ProgressFunc receives encode progress for input as a percentage in [0,100].
type ProgressFunc func(input string, percent float64)

// Option configures a backend built by New.
type Option func(*options)

type options struct {
	progress ProgressFunc
	logger   *slog.Logger
}

// WithProgress registers a progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// WithLogger sets the logger used for encoder diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New builds the backend named by cfg.Encoder.Backend.
func New(cfg *config.Config, opts ...Option) (Invoker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("encoding: config required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	switch cfg.Encoder.Backend {
	case "ffmpeg", "":
		return NewFFmpeg(cfg.Encoder, cfg.Quality.Presets, cfg.EncoderTimeout(), opts...), nil
	case "drapto":
		return NewDrapto(opts...), nil
	default:
		return nil, fmt.Errorf("encoding: unsupported backend %q", cfg.Encoder.Backend)
	}
}
