package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"convoy/internal/notifications"
	"convoy/internal/progress"
	"convoy/internal/testsupport"
)

func TestWatchProcessesNewFilesUntilStopped(t *testing.T) {
	h := newHarness(t)
	a := h.input(t, "A.mp4", 10)
	b := h.input(t, "B.mp4", 10)
	ignored := filepath.Join(h.cfg.Paths.WatchDir, "notes.txt")
	testsupport.WriteFile(t, ignored, 8)

	stop := make(chan struct{})
	h.invoker.onSuccess = func(input, _ string) {
		if input == b {
			close(stop)
		}
	}
	o := h.orchestrator(t)

	done := make(chan WatchResult, 1)
	go func() {
		result, err := o.Watch(context.Background(), stop)
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
		done <- result
	}()

	var result WatchResult
	select {
	case result = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop")
	}

	if result.Summary != (progress.Summary{Total: 2, Completed: 2}) {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
	if result.Processed != 2 || len(result.Failed) != 0 || result.Cycles != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if h.invoker.callsFor(a) != 1 || h.invoker.callsFor(b) != 1 {
		t.Fatal("each file should be encoded once")
	}
	if h.notifier.count(notifications.EventWatchStopped) != 1 {
		t.Fatal("expected a watch stopped notification")
	}
	if len(h.journal.runs) != 1 || h.journal.finished[result.RunID].Completed != 2 {
		t.Fatalf("expected one recorded run, got %v", h.journal.runs)
	}
}

func TestWatchRescansAndRetriesDeferredFiles(t *testing.T) {
	h := newHarness(t)
	h.cfg.Watch.IntervalSeconds = 1
	input := h.input(t, "Growing.mp4", 10)

	grows := 3
	h.sleeper.hook = func() {
		if grows > 0 {
			grows--
			appendBytes(t, input)
		}
	}
	stop := make(chan struct{})
	h.invoker.onSuccess = func(string, string) { close(stop) }
	o := h.orchestrator(t)

	result, err := o.Watch(context.Background(), stop)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if result.Cycles != 2 {
		t.Fatalf("expected the deferred file to be picked up on the second cycle, got %d", result.Cycles)
	}
	if result.Summary.Completed != 1 || h.invoker.callsFor(input) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestWatchRefusesSecondInstance(t *testing.T) {
	h := newHarness(t)
	root, err := CanonicalPath(h.cfg.Paths.WatchDir)
	if err != nil {
		t.Fatal(err)
	}
	held, err := AcquireInstanceLock(h.cfg.Paths.StateDir, root)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer held.Release()

	if _, err := h.orchestrator(t).Watch(context.Background(), nil); !errors.Is(err, ErrWatchLocked) {
		t.Fatalf("expected ErrWatchLocked, got %v", err)
	}
}

func TestWatchEndsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.orchestrator(t).Watch(ctx, nil)
	if err != nil {
		t.Fatalf("cancellation is a normal exit, got %v", err)
	}
	if result.Cycles != 0 {
		t.Fatalf("expected no cycles, got %d", result.Cycles)
	}
}
