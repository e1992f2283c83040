package resources

import (
	"context"
	"log/slog"
	"time"

	"convoy/internal/config"
	"convoy/internal/logging"
)

// Monitor applies the configured thresholds to samples.
type Monitor struct {
	sampler   Sampler
	maxCPU    float64
	minMemory uint64
	logger    *slog.Logger
	observer  func(Sample)
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithObserver is called with every successful sample.
func WithObserver(fn func(Sample)) Option {
	return func(m *Monitor) { m.observer = fn }
}

// WithClock replaces the time source and sleep used by WaitForResources.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Monitor) {
		m.now = now
		m.sleep = sleep
	}
}

// NewMonitor builds a Monitor from the resources config section.
func NewMonitor(cfg config.Resources, sampler Sampler, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		sampler:   sampler,
		maxCPU:    cfg.MaxCPUPercent,
		minMemory: uint64(cfg.MinAvailableMemoryGiB * (1 << 30)),
		logger:    logging.NewComponentLogger(logger, "resources"),
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsOverloaded reports whether CPU use exceeds the ceiling or available
// memory is under the floor. Sampling errors report false.
func (m *Monitor) IsOverloaded(ctx context.Context) bool {
	sample, err := m.sampler.Sample(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Debug("resource sample failed; assuming idle", logging.Error(err))
		}
		return false
	}
	if m.observer != nil {
		m.observer(sample)
	}
	overloaded := sample.CPUPercent > m.maxCPU || sample.AvailableMemoryBytes < m.minMemory
	if overloaded {
		m.logger.Debug("host overloaded",
			logging.Float64("cpu_percent", round1(sample.CPUPercent)),
			logging.Float64("available_memory_gib", round1(sample.AvailableMemoryGiB())),
		)
	}
	return overloaded
}

// WaitResult reports how a WaitForResources call ended. Polls counts the
// sleeps taken while the host stayed overloaded.
type WaitResult struct {
	Free  bool
	Polls int
}

// WaitForResources polls IsOverloaded every poll until the host is free or
// timeout elapses or ctx ends. The first sample doubles as the admission
// check, so an idle host costs one sample and no sleep. A host that is
// overloaded for N polls costs exactly N sleeps.
func (m *Monitor) WaitForResources(ctx context.Context, poll, timeout time.Duration) WaitResult {
	deadline := m.now().Add(timeout)
	var result WaitResult
	for {
		if !m.IsOverloaded(ctx) {
			result.Free = true
			return result
		}
		if ctx.Err() != nil || !m.now().Before(deadline) {
			return result
		}
		if result.Polls == 0 {
			m.logger.Info("system busy; waiting for resources",
				logging.Duration("poll", poll),
				logging.Duration("timeout", timeout),
				logging.String(logging.FieldEventType, "resource_wait"),
			)
		}
		if err := m.sleep(ctx, poll); err != nil {
			return result
		}
		result.Polls++
	}
}

// LogSnapshot records current load at info level.
func (m *Monitor) LogSnapshot(ctx context.Context) {
	sample, err := m.sampler.Sample(ctx)
	if err != nil {
		m.logger.Info("system resources unavailable", logging.Error(err))
		return
	}
	if m.observer != nil {
		m.observer(sample)
	}
	m.logger.Info("system resources",
		logging.Float64("cpu_percent", round1(sample.CPUPercent)),
		logging.Float64("available_memory_gib", round1(sample.AvailableMemoryGiB())),
		logging.Float64("max_cpu_percent", m.maxCPU),
		logging.Float64("min_available_memory_gib", float64(m.minMemory)/(1<<30)),
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
