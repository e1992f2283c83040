package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"convoy/internal/history"
	"convoy/internal/testsupport"
)

func TestHistoryEmpty(t *testing.T) {
	env := setupCLIEnv(t)
	out, _, err := runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded yet")
}

func TestHistoryRunsAndEntries(t *testing.T) {
	env := setupCLIEnv(t)
	store := testsupport.MustOpenHistory(t, env.cfg)
	ctx := context.Background()
	run := testsupport.StartRun(t, store, "batch")
	for _, entry := range []history.Entry{
		{RunID: run.ID, SourcePath: "/in/Good.mp4", Outcome: "success", Attempts: 1, InputBytes: 1000, OutputBytes: 400},
		{RunID: run.ID, SourcePath: "/in/Bad.mp4", Outcome: "failure", Attempts: 2, Reason: "encoder error; the input may be corrupt"},
	} {
		if _, err := store.Record(ctx, entry); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := store.FinishRun(ctx, run.ID, history.Totals{Total: 2, Completed: 1, Failed: 1}, false); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	out, _, err := runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, run.ID)
	requireContains(t, out, "failures")

	out, _, err = runCLI(t, env, "history", "--run", run.ID)
	if err != nil {
		t.Fatalf("history --run: %v", err)
	}
	requireContains(t, out, "Good.mp4")
	requireContains(t, out, "40%")
	requireContains(t, out, "encoder error")

	out, _, err = runCLI(t, env, "history", "--outcome", "failure", "--json")
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}
	var entries []entryView
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].SourcePath != "/in/Bad.mp4" || entries[0].Attempts != 2 {
		t.Fatalf("unexpected entries %+v", entries)
	}

	out, _, err = runCLI(t, env, "history", "--json")
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}
	var runs []runView
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Failed != 1 || runs[0].FinishedAt == nil {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestHistoryUnknownRun(t *testing.T) {
	env := setupCLIEnv(t)
	_, _, err := runCLI(t, env, "history", "--run", "missing")
	if !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHistoryPrune(t *testing.T) {
	env := setupCLIEnv(t)
	store := testsupport.MustOpenHistory(t, env.cfg)
	testsupport.StartRun(t, store, "watch")

	out, _, err := runCLI(t, env, "history", "--prune-days", "30")
	if err != nil {
		t.Fatalf("history --prune-days: %v", err)
	}
	requireContains(t, out, "Removed 0 run(s)")
}

func TestSizeChange(t *testing.T) {
	if got := sizeChange(1000, 250); got != "25%" {
		t.Fatalf("sizeChange = %q", got)
	}
	if got := sizeChange(0, 250); got != "-" {
		t.Fatalf("sizeChange = %q", got)
	}
}
