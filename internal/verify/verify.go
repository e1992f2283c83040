// Package verify checks an encoded file before it replaces anything at its
// destination.
package verify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"convoy/internal/config"
	"convoy/internal/probe"
)

// ErrVerification marks an output that exists but is not a faithful encode.
var ErrVerification = errors.New("verification failed")

// Verifier validates an encoded output against facts about its input.
type Verifier interface {
	Verify(ctx context.Context, output string, expectedDuration float64, inputSize int64) error
}

// ProbeVerifier re-probes the output and compares it with the input.
type ProbeVerifier struct {
	prober       probe.Prober
	tolerance    float64
	minSizeRatio float64
}

// New returns a ProbeVerifier using the configured tolerances.
func New(prober probe.Prober, cfg config.Verify) *ProbeVerifier {
	return &ProbeVerifier{prober: prober, tolerance: cfg.DurationTolerance, minSizeRatio: cfg.MinSizeRatio}
}

// Verify requires a non-empty file with a video stream whose duration is
// strictly within tolerance of expectedDuration and whose size is at least the
// configured fraction of inputSize. Zero expectations skip their check.
func (v *ProbeVerifier) Verify(ctx context.Context, output string, expectedDuration float64, inputSize int64) error {
	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("%w: output missing: %v", ErrVerification, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: output is empty", ErrVerification)
	}

	meta, err := v.prober.Probe(ctx, output)
	if err != nil {
		return fmt.Errorf("%w: output unreadable: %v", ErrVerification, err)
	}
	if !meta.HasVideo {
		return fmt.Errorf("%w: output has no video stream", ErrVerification)
	}
	if expectedDuration > 0 && v.tolerance > 0 {
		if delta := math.Abs(meta.DurationSeconds - expectedDuration); delta >= v.tolerance {
			return fmt.Errorf("%w: duration %.2fs differs from input %.2fs", ErrVerification, meta.DurationSeconds, expectedDuration)
		}
	}
	if inputSize > 0 && v.minSizeRatio > 0 {
		if float64(info.Size()) < float64(inputSize)*v.minSizeRatio {
			return fmt.Errorf("%w: output size %d bytes is implausibly small for %d byte input", ErrVerification, info.Size(), inputSize)
		}
	}
	return nil
}

// Nop accepts every output. It backs --no-verify.
type Nop struct{}

func (Nop) Verify(context.Context, string, float64, int64) error { return nil }
