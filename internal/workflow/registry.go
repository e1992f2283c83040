package workflow

import (
	"sort"
	"sync"
)

// Registry tracks which paths this run has claimed and finished. A path is
// in at most one of in-flight or processed at any time.
type Registry struct {
	mu        sync.Mutex
	processed map[string]struct{}
	inFlight  map[string]struct{}
	failed    map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		processed: make(map[string]struct{}),
		inFlight:  make(map[string]struct{}),
		failed:    make(map[string]struct{}),
	}
}

// Claim marks path in-flight. It returns false when path is already
// in-flight or processed.
func (r *Registry) Claim(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.processed[path]; ok {
		return false
	}
	if _, ok := r.inFlight[path]; ok {
		return false
	}
	r.inFlight[path] = struct{}{}
	return true
}

// Finish moves path from in-flight to processed. Failed paths are also
// remembered in the failed view.
func (r *Registry) Finish(path string, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, path)
	r.processed[path] = struct{}{}
	if failed {
		r.failed[path] = struct{}{}
	}
}

// Release drops an in-flight claim without finishing it, so a later cycle
// can pick the path up again.
func (r *Registry) Release(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, path)
}

// Known reports whether path is in-flight or processed.
func (r *Registry) Known(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, processed := r.processed[path]
	_, inFlight := r.inFlight[path]
	return processed || inFlight
}

// IsProcessed reports whether path reached a terminal outcome.
func (r *Registry) IsProcessed(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.processed[path]
	return ok
}

// IsInFlight reports whether path is currently claimed.
func (r *Registry) IsInFlight(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inFlight[path]
	return ok
}

// ProcessedCount returns the number of finished paths.
func (r *Registry) ProcessedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processed)
}

// Failed returns the paths that finished with a failure, sorted.
func (r *Registry) Failed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.failed))
	for path := range r.failed {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}
