package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"

	"convoy/internal/logging"
)

// StabilityDetector decides whether a file has finished being written.
type StabilityDetector struct {
	lockProbe bool
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *slog.Logger
}

// NewStabilityDetector builds a detector. With lockProbe set, a file whose
// size held steady must also be free of other processes' flocks.
func NewStabilityDetector(lockProbe bool, sleep func(ctx context.Context, d time.Duration) error, logger *slog.Logger) *StabilityDetector {
	if sleep == nil {
		sleep = sleepContext
	}
	return &StabilityDetector{
		lockProbe: lockProbe,
		sleep:     sleep,
		logger:    logging.NewComponentLogger(logger, "stability"),
	}
}

// IsStable samples the size of path, waits, and samples again. It is true
// only when both samples succeed and match. A cancelled wait reports false.
func (s *StabilityDetector) IsStable(ctx context.Context, path string, wait time.Duration) bool {
	before, err := os.Stat(path)
	if err != nil {
		return false
	}
	if err := s.sleep(ctx, wait); err != nil {
		return false
	}
	after, err := os.Stat(path)
	if err != nil {
		return false
	}
	if before.Size() != after.Size() {
		s.logger.Debug("file still growing",
			logging.String(logging.FieldPath, path),
			logging.Int64("size_before", before.Size()),
			logging.Int64("size_after", after.Size()),
		)
		return false
	}
	if s.lockProbe && s.lockedByWriter(path) {
		return false
	}
	return true
}

// lockedByWriter tries a non-blocking exclusive flock. The file is opened
// read-only so a path that vanished in between is never recreated. Errors
// other than contention leave the size verdict standing.
func (s *StabilityDetector) lockedByWriter(path string) bool {
	lock := flock.New(path, flock.SetFlag(os.O_RDONLY))
	locked, err := lock.TryLock()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("lock probe unavailable",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
			)
		}
		return false
	}
	if !locked {
		s.logger.Debug("file locked by another process", logging.String(logging.FieldPath, path))
		return true
	}
	_ = lock.Unlock()
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
