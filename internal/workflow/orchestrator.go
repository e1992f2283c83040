package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"convoy/internal/config"
	"convoy/internal/encoding"
	"convoy/internal/history"
	"convoy/internal/logging"
	"convoy/internal/metrics"
	"convoy/internal/notifications"
	"convoy/internal/probe"
	"convoy/internal/progress"
	"convoy/internal/resources"
	"convoy/internal/router"
	"convoy/internal/verify"
)

// Categorizer maps an input to its destination.
type Categorizer interface {
	Categorize(path, outputRoot string) router.Categorization
}

// ResourceGate paces encodes against system load.
type ResourceGate interface {
	WaitForResources(ctx context.Context, poll, timeout time.Duration) resources.WaitResult
	LogSnapshot(ctx context.Context)
}

// Journal persists run and outcome records. *history.Store implements it.
type Journal interface {
	StartRun(ctx context.Context, id, mode string) (history.Run, error)
	FinishRun(ctx context.Context, id string, totals history.Totals, interrupted bool) error
	Record(ctx context.Context, entry history.Entry) (int64, error)
}

// Deps are the collaborators of an Orchestrator. Nil fields are built from
// the config, except Journal and Metrics which stay disabled, and Gate
// which is only built when resource checks are enabled.
type Deps struct {
	Prober   probe.Prober
	Router   Categorizer
	Invoker  encoding.Invoker
	Verifier verify.Verifier
	Gate     ResourceGate
	Journal  Journal
	Metrics  *metrics.Recorder
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithSleep replaces the wait used for stability checks, grace delays and
// retry pauses.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithProgressOutput enables the live progress display on w.
func WithProgressOutput(w io.Writer, live bool) Option {
	return func(o *Orchestrator) {
		o.progressOut = w
		o.live = live
	}
}

// WithoutResourceGate disables load-based pacing regardless of config.
func WithoutResourceGate() Option {
	return func(o *Orchestrator) { o.noGate = true }
}

// Orchestrator runs conversions. It is not safe for concurrent runs.
type Orchestrator struct {
	cfg      *config.Config
	prober   probe.Prober
	router   Categorizer
	invoker  encoding.Invoker
	verifier verify.Verifier
	gate     ResourceGate
	journal  Journal
	metrics  *metrics.Recorder
	notifier notifications.Service
	logger   *slog.Logger

	registry  *Registry
	stability *StabilityDetector
	resume    *ResumePolicy
	retry     *RetryController

	sleep       func(ctx context.Context, d time.Duration) error
	progressOut io.Writer
	live        bool
	noGate      bool

	mu      sync.Mutex
	agg     *progress.Aggregator
	sampler *logging.ProgressSampler
	runID   string
}

// New wires an Orchestrator from cfg and deps.
func New(cfg *config.Config, deps Deps, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow: config required")
	}
	o := &Orchestrator{
		cfg:      cfg,
		prober:   deps.Prober,
		router:   deps.Router,
		invoker:  deps.Invoker,
		verifier: deps.Verifier,
		gate:     deps.Gate,
		journal:  deps.Journal,
		metrics:  deps.Metrics,
		notifier: deps.Notifier,
		logger:   logging.NewComponentLogger(deps.Logger, "workflow"),
		registry: NewRegistry(),
		sleep:    sleepContext,
		sampler:  logging.NewProgressSampler(10),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.prober == nil {
		o.prober = probe.NewFFprobe(cfg.Encoder.FFprobeBinary)
	}
	if o.router == nil {
		r, err := router.New(cfg.Categories, cfg.Encoder.OutputExtension)
		if err != nil {
			return nil, fmt.Errorf("build router: %w", err)
		}
		o.router = r
	}
	if o.invoker == nil {
		invoker, err := encoding.New(cfg,
			encoding.WithProgress(o.reportProgress),
			encoding.WithLogger(deps.Logger),
		)
		if err != nil {
			return nil, err
		}
		o.invoker = invoker
	}
	if o.verifier == nil {
		if cfg.Verify.Enabled {
			o.verifier = verify.New(o.prober, cfg.Verify)
		} else {
			o.verifier = verify.Nop{}
		}
	}
	if o.noGate {
		o.gate = nil
	} else if o.gate == nil && cfg.Resources.Enabled {
		sampler, err := resources.NewProcSampler(time.Duration(cfg.Resources.SampleWindowMillis) * time.Millisecond)
		if err != nil {
			logging.WarnWithContext(o.logger, "resource monitoring unavailable", "resource_monitor_unavailable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "/proc is required for load checks"),
				logging.String(logging.FieldImpact, "encodes start without load gating"),
			)
		} else {
			o.gate = resources.NewMonitor(cfg.Resources, sampler, deps.Logger,
				resources.WithObserver(o.metrics.ObserveSample))
		}
	}
	if o.notifier == nil {
		o.notifier = notifications.NewService(cfg)
	}

	o.stability = NewStabilityDetector(cfg.Stability.LockProbe, o.sleep, deps.Logger)
	o.resume = NewResumePolicy(o.prober, cfg.Resume.DurationTolerance, deps.Logger)
	o.retry = NewRetryController(cfg.RetryDelay(), o.sleep, deps.Logger)
	return o, nil
}

// Registry exposes the run registry.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

func (o *Orchestrator) beginRun(ctx context.Context, mode string, total int) (context.Context, *progress.Aggregator) {
	runID := history.NewRunID()
	if o.journal != nil {
		if run, err := o.journal.StartRun(ctx, runID, mode); err != nil {
			logging.WarnWithContext(o.logger, "failed to record run start", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the history database in state_dir"),
				logging.String(logging.FieldImpact, "this run will be missing from history"),
			)
		} else {
			runID = run.ID
		}
	}
	agg := progress.New(total, progress.Options{Output: o.progressOut, Live: o.live, Title: mode})

	o.mu.Lock()
	o.agg = agg
	o.runID = runID
	o.mu.Unlock()

	return logging.WithRunID(ctx, runID), agg
}

func (o *Orchestrator) endRun(ctx context.Context, agg *progress.Aggregator, interrupted bool) progress.Summary {
	agg.Close()
	summary := agg.Summary()

	o.mu.Lock()
	runID := o.runID
	o.agg = nil
	o.mu.Unlock()

	if o.journal != nil {
		totals := history.Totals{
			Total:     summary.Total,
			Completed: summary.Completed,
			Failed:    summary.Failed,
			Skipped:   summary.Skipped,
		}
		// The run context may already be cancelled by an abort.
		if err := o.journal.FinishRun(context.WithoutCancel(ctx), runID, totals, interrupted); err != nil {
			o.logger.Debug("failed to record run end", logging.Error(err))
		}
	}
	return summary
}

// reportProgress receives encoder progress and forwards it to the live
// display, logging at coarse steps.
func (o *Orchestrator) reportProgress(input string, percent float64) {
	o.mu.Lock()
	agg := o.agg
	sampler := o.sampler
	o.mu.Unlock()

	if agg != nil {
		agg.Progress(input, percent)
	}
	if sampler != nil && sampler.ShouldLog(percent) {
		o.logger.Info("encoding progress",
			logging.String(logging.FieldPath, input),
			logging.Float64("percent", percent),
			logging.String(logging.FieldEventType, "encode_progress"),
		)
	}
}
