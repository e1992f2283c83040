package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestAggregatorCounts(t *testing.T) {
	agg := New(4, Options{})
	agg.Update(Outcome{Path: "/a", Kind: Success})
	agg.Update(Outcome{Path: "/b", Kind: Failure, Reason: "encoder failed"})
	agg.Update(Outcome{Path: "/c", Kind: Skipped, Reason: "already converted"})

	got := agg.Summary()
	want := Summary{Total: 4, Completed: 1, Failed: 1, Skipped: 1}
	if got != want {
		t.Fatalf("Summary = %+v, want %+v", got, want)
	}
	if got.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", got.Pending())
	}

	agg.Update(Outcome{Path: "/d", Kind: Success})
	if s := agg.Summary(); s.Finished() != s.Total || s.Pending() != 0 {
		t.Fatalf("expected all files finished, got %+v", s)
	}
	if len(agg.Outcomes()) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(agg.Outcomes()))
	}
	agg.Close()
}

func TestAggregatorGrowsTotal(t *testing.T) {
	agg := New(2, Options{})
	agg.Update(Outcome{Kind: Success})
	agg.Update(Outcome{Kind: Success})
	agg.Update(Outcome{Kind: Failure})
	if s := agg.Summary(); s.Total != 3 || s.Finished() != 3 {
		t.Fatalf("expected total to track finished files, got %+v", s)
	}
}

func TestAggregatorIgnoresUnknownKind(t *testing.T) {
	agg := New(1, Options{})
	agg.Update(Outcome{Kind: Kind(42)})
	if s := agg.Summary(); s.Finished() != 0 {
		t.Fatalf("expected unknown kind ignored, got %+v", s)
	}
}

func TestAggregatorCloseIsIdempotentWithoutUpdates(t *testing.T) {
	agg := New(0, Options{})
	agg.Close()
	agg.Close()

	live := New(0, Options{Output: &bytes.Buffer{}, Live: true})
	live.Close()
	live.Close()
}

func TestAggregatorConcurrentUpdates(t *testing.T) {
	agg := New(100, Options{})
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agg.Update(Outcome{Kind: Kind(i % 3)})
		}(i)
	}
	wg.Wait()
	if s := agg.Summary(); s.Finished() != 100 || s.Completed != 34 || s.Failed != 33 || s.Skipped != 33 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestAggregatorLiveTracksFiles(t *testing.T) {
	var buf syncBuffer
	agg := New(2, Options{Output: &buf, Live: true, Title: "Batch"})
	agg.Start("/in/a.mkv")
	agg.Progress("/in/a.mkv", 50)
	agg.Progress("/in/other.mkv", 75)
	agg.Update(Outcome{Path: "/in/a.mkv", Kind: Success})
	agg.Start("/in/b.mkv")
	agg.Update(Outcome{Path: "/in/b.mkv", Kind: Failure})
	agg.Close()

	if s := agg.Summary(); s.Completed != 1 || s.Failed != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(Summary{Total: 3, Completed: 1, Failed: 1}, []Outcome{
		{Path: "/in/ok.mkv", Kind: Success},
		{Path: "/in/bad.mkv", Kind: Failure, Reason: "verification failed"},
	})
	for _, want := range []string{"Completed", "/in/bad.mkv", "verification failed", "1 not processed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in summary:\n%s", want, out)
		}
	}
	if strings.Contains(out, "/in/ok.mkv") {
		t.Fatalf("successful files should not be listed:\n%s", out)
	}
	if strings.Contains(out, "COMPLETED") || strings.Contains(out, "NOT PROCESSED") {
		t.Fatalf("header and footer should keep their case:\n%s", out)
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Fatal("buffer is not a terminal")
	}
	if IsTerminal(nil) {
		t.Fatal("nil is not a terminal")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}
