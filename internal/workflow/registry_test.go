package workflow

import (
	"reflect"
	"sync"
	"testing"
)

func TestRegistryClaimFinishRelease(t *testing.T) {
	r := NewRegistry()
	if !r.Claim("/a") {
		t.Fatal("first claim should succeed")
	}
	if r.Claim("/a") {
		t.Fatal("claim of in-flight path should fail")
	}
	if !r.IsInFlight("/a") || r.IsProcessed("/a") {
		t.Fatal("claimed path should be in flight only")
	}

	r.Release("/a")
	if r.Known("/a") {
		t.Fatal("released path should be unknown")
	}
	if !r.Claim("/a") {
		t.Fatal("released path should be claimable again")
	}

	r.Finish("/a", false)
	if r.IsInFlight("/a") || !r.IsProcessed("/a") {
		t.Fatal("finished path should be processed only")
	}
	if r.Claim("/a") {
		t.Fatal("processed path must not be claimed again")
	}
}

func TestRegistryFailedView(t *testing.T) {
	r := NewRegistry()
	for _, path := range []string{"/c", "/b", "/a"} {
		r.Claim(path)
	}
	r.Finish("/c", true)
	r.Finish("/b", false)
	r.Finish("/a", true)

	if got := r.ProcessedCount(); got != 3 {
		t.Fatalf("ProcessedCount = %d, want 3", got)
	}
	if got := r.Failed(); !reflect.DeepEqual(got, []string{"/a", "/c"}) {
		t.Fatalf("Failed = %v", got)
	}
}

func TestRegistryConcurrentClaimsAreExclusive(t *testing.T) {
	r := NewRegistry()
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Claim("/same") {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if won != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", won)
	}
}
