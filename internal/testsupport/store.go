package testsupport

import (
	"context"
	"testing"

	"convoy/internal/config"
	"convoy/internal/history"
)

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// StartRun records a run for tests using the provided store.
func StartRun(t testing.TB, store *history.Store, mode string) history.Run {
	t.Helper()

	run, err := store.StartRun(context.Background(), "", mode)
	if err != nil {
		t.Fatalf("store.StartRun: %v", err)
	}
	return run
}
