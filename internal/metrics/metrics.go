package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"convoy/internal/logging"
	"convoy/internal/resources"
)

const namespace = "convoy"

// Recorder owns the collectors for one process.
type Recorder struct {
	registry      *prometheus.Registry
	outcomes      *prometheus.CounterVec
	attempts      *prometheus.CounterVec
	resourceWaits *prometheus.CounterVec
	inFlight      prometheus.Gauge
	encodeSeconds prometheus.Histogram
	cpuPercent    prometheus.Gauge
	memAvailable  prometheus.Gauge
}

// New registers the convoy collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files finalized, by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encode_attempts_total",
			Help:      "Encode attempts, by result.",
		}, []string{"result"}),
		resourceWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_waits_total",
			Help:      "Times an encode waited on system load, by how the wait ended.",
		}, []string{"result"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files_in_flight",
			Help:      "Files currently inside the conversion pipeline.",
		}),
		encodeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_duration_seconds",
			Help:      "Wall time of successful encodes.",
			Buckets:   prometheus.ExponentialBuckets(30, 2, 10),
		}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_cpu_percent",
			Help:      "Last sampled system CPU utilisation.",
		}),
		memAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_memory_available_bytes",
			Help:      "Last sampled available memory.",
		}),
	}
	r.registry.MustRegister(
		r.outcomes,
		r.attempts,
		r.resourceWaits,
		r.inFlight,
		r.encodeSeconds,
		r.cpuPercent,
		r.memAvailable,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Outcome counts one finalized file.
func (r *Recorder) Outcome(kind string) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(kind).Inc()
}

// FileStarted marks a file entering the pipeline and returns the matching
// release func.
func (r *Recorder) FileStarted() func() {
	if r == nil {
		return func() {}
	}
	r.inFlight.Inc()
	return r.inFlight.Dec
}

// EncodeAttempt records one encode attempt. Duration is observed only for
// successful attempts.
func (r *Recorder) EncodeAttempt(elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.attempts.WithLabelValues("failure").Inc()
		return
	}
	r.attempts.WithLabelValues("success").Inc()
	r.encodeSeconds.Observe(elapsed.Seconds())
}

// ResourceWait records how a load wait ended: "free" or "timeout".
func (r *Recorder) ResourceWait(result string) {
	if r == nil {
		return
	}
	r.resourceWaits.WithLabelValues(result).Inc()
}

// ObserveSample updates the system gauges. It matches the resources
// observer signature.
func (r *Recorder) ObserveSample(sample resources.Sample) {
	if r == nil {
		return
	}
	r.cpuPercent.Set(sample.CPUPercent)
	r.memAvailable.Set(float64(sample.AvailableMemoryBytes))
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if r == nil {
		return errors.New("metrics recorder not configured")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "metrics_listen"),
	)
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
