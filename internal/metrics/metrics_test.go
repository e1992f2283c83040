package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"convoy/internal/resources"
)

func TestRecorderCounters(t *testing.T) {
	r := New()
	r.Outcome("success")
	r.Outcome("success")
	r.Outcome("failure")

	if got := testutil.ToFloat64(r.outcomes.WithLabelValues("success")); got != 2 {
		t.Fatalf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.outcomes.WithLabelValues("failure")); got != 1 {
		t.Fatalf("failure count = %v, want 1", got)
	}

	r.EncodeAttempt(90*time.Second, nil)
	r.EncodeAttempt(time.Second, errors.New("boom"))
	if got := testutil.ToFloat64(r.attempts.WithLabelValues("failure")); got != 1 {
		t.Fatalf("failed attempts = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.encodeSeconds); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}

	r.ResourceWait("timeout")
	if got := testutil.ToFloat64(r.resourceWaits.WithLabelValues("timeout")); got != 1 {
		t.Fatalf("resource timeouts = %v, want 1", got)
	}
}

func TestRecorderInFlight(t *testing.T) {
	r := New()
	release := r.FileStarted()
	if got := testutil.ToFloat64(r.inFlight); got != 1 {
		t.Fatalf("in flight = %v, want 1", got)
	}
	release()
	if got := testutil.ToFloat64(r.inFlight); got != 0 {
		t.Fatalf("in flight = %v, want 0", got)
	}
}

func TestRecorderObserveSample(t *testing.T) {
	r := New()
	r.ObserveSample(resources.Sample{CPUPercent: 42.5, AvailableMemoryBytes: 1 << 30})
	if got := testutil.ToFloat64(r.cpuPercent); got != 42.5 {
		t.Fatalf("cpu gauge = %v", got)
	}
	if got := testutil.ToFloat64(r.memAvailable); got != float64(1<<30) {
		t.Fatalf("memory gauge = %v", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.Outcome("success")
	r.FileStarted()()
	r.EncodeAttempt(time.Second, nil)
	r.ResourceWait("free")
	r.ObserveSample(resources.Sample{})
	if r.Registry() != nil {
		t.Fatal("expected nil registry")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.Outcome("skipped")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `convoy_files_total{outcome="skipped"} 1`) {
		t.Fatalf("expected skipped counter in output:\n%s", body)
	}
}
