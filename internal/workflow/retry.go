package workflow

import (
	"context"
	"log/slog"
	"time"

	"convoy/internal/logging"
)

// AttemptResult is the outcome of a bounded retry.
type AttemptResult struct {
	Success  bool
	Attempts int
	// Err is the last error when Success is false.
	Err error
}

// RetryController runs an operation up to a fixed number of times.
type RetryController struct {
	delay  time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// NewRetryController builds a controller pausing delay between attempts.
func NewRetryController(delay time.Duration, sleep func(ctx context.Context, d time.Duration) error, logger *slog.Logger) *RetryController {
	if sleep == nil {
		sleep = sleepContext
	}
	return &RetryController{delay: delay, sleep: sleep, logger: logging.NewComponentLogger(logger, "retry")}
}

// Attempt calls op up to maxAttempts times (at least once), pausing between
// a failure and the next call. A cancelled ctx ends the loop with failure.
func (r *RetryController) Attempt(ctx context.Context, path string, maxAttempts int, op func(ctx context.Context, attempt int) error) AttemptResult {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	logger := logging.WithContext(ctx, r.logger).With(logging.String(logging.FieldPath, path))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return AttemptResult{Attempts: attempt - 1, Err: lastErr}
		}
		if attempt > 1 {
			logger.Info("retrying conversion",
				logging.Int(logging.FieldAttempt, attempt),
				logging.Int("max_attempts", maxAttempts),
			)
		}
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return AttemptResult{Success: true, Attempts: attempt}
		}
		logging.WarnWithContext(logger, "conversion attempt failed", "attempt_failed",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", maxAttempts),
			logging.Error(lastErr),
			logging.String(logging.FieldImpact, impactFor(attempt, maxAttempts)),
		)
		if attempt == maxAttempts {
			break
		}
		if err := r.sleep(ctx, r.delay); err != nil {
			return AttemptResult{Attempts: attempt, Err: lastErr}
		}
	}
	return AttemptResult{Attempts: maxAttempts, Err: lastErr}
}

func impactFor(attempt, maxAttempts int) string {
	if attempt < maxAttempts {
		return "will retry"
	}
	return "file marked failed"
}
