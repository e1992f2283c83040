package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"convoy/internal/config"
	"convoy/internal/history"
	"convoy/internal/notifications"
	"convoy/internal/probe"
	"convoy/internal/resources"
	"convoy/internal/testsupport"
)

type stubProber struct {
	mu     sync.Mutex
	meta   map[string]probe.MediaMetadata
	errs   map[string]error
	probed []string
}

func newStubProber() *stubProber {
	return &stubProber{meta: map[string]probe.MediaMetadata{}, errs: map[string]error{}}
}

func (p *stubProber) set(path string, duration float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meta[path] = probe.MediaMetadata{
		DurationSeconds: duration,
		Width:           1920,
		Height:          1080,
		HasVideo:        true,
		HasAudio:        true,
		VideoCodec:      "h264",
		AudioCodec:      "aac",
		SizeBytes:       1 << 20,
		Quality:         "1080p",
	}
}

func (p *stubProber) setMeta(path string, meta probe.MediaMetadata) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meta[path] = meta
}

func (p *stubProber) Probe(_ context.Context, path string) (probe.MediaMetadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, path)
	if err, ok := p.errs[path]; ok {
		return probe.MediaMetadata{}, err
	}
	meta, ok := p.meta[path]
	if !ok {
		return probe.MediaMetadata{}, probe.ErrProbe
	}
	return meta, nil
}

// stubInvoker writes a small file to the requested output unless convert
// overrides the behaviour.
type stubInvoker struct {
	mu      sync.Mutex
	calls   map[string]int
	convert func(ctx context.Context, input, output string) error
	// onSuccess runs after a default successful write.
	onSuccess func(input, output string)
}

func newStubInvoker() *stubInvoker {
	return &stubInvoker{calls: map[string]int{}}
}

func (s *stubInvoker) Convert(ctx context.Context, input, output string, _ probe.MediaMetadata) error {
	s.mu.Lock()
	s.calls[input]++
	convert := s.convert
	onSuccess := s.onSuccess
	s.mu.Unlock()

	if convert != nil {
		return convert(ctx, input, output)
	}
	if err := os.WriteFile(output, []byte("encoded"), 0o644); err != nil {
		return err
	}
	if onSuccess != nil {
		onSuccess(input, output)
	}
	return nil
}

func (s *stubInvoker) callsFor(input string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[input]
}

func (s *stubInvoker) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

type stubVerifier struct {
	err error
}

func (v stubVerifier) Verify(context.Context, string, float64, int64) error { return v.err }

// stubGate reports an overloaded host that frees up (or not) after one poll.
type stubGate struct {
	mu         sync.Mutex
	overloaded bool
	frees      bool
	waits      int
	snapshots  int
}

func (g *stubGate) WaitForResources(context.Context, time.Duration, time.Duration) resources.WaitResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.waits++
	if !g.overloaded {
		return resources.WaitResult{Free: true}
	}
	return resources.WaitResult{Free: g.frees, Polls: 1}
}

func (g *stubGate) LogSnapshot(context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshots++
}

type stubNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (s *stubNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubNotifier) count(event notifications.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e == event {
			n++
		}
	}
	return n
}

type stubJournal struct {
	mu       sync.Mutex
	runs     []string
	finished map[string]history.Totals
	entries  []history.Entry
}

func (j *stubJournal) StartRun(_ context.Context, id, mode string) (history.Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, id)
	return history.Run{ID: id, Mode: mode}, nil
}

func (j *stubJournal) FinishRun(_ context.Context, id string, totals history.Totals, _ bool) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finished == nil {
		j.finished = map[string]history.Totals{}
	}
	j.finished[id] = totals
	return nil
}

func (j *stubJournal) Record(_ context.Context, entry history.Entry) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return int64(len(j.entries)), nil
}

// recordingSleep returns immediately, remembering each requested duration.
// hook, when set, runs on every call (e.g. to grow a file mid-check).
type recordingSleep struct {
	mu    sync.Mutex
	calls []time.Duration
	hook  func()
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ctx.Err()
}

func (s *recordingSleep) count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == d {
			n++
		}
	}
	return n
}

type harness struct {
	cfg      *config.Config
	prober   *stubProber
	invoker  *stubInvoker
	verifier *stubVerifier
	gate     *stubGate
	notifier *stubNotifier
	journal  *stubJournal
	sleeper  *recordingSleep
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	for _, dir := range []string{cfg.Paths.WatchDir, cfg.Paths.OutputDir, cfg.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return &harness{
		cfg:      cfg,
		prober:   newStubProber(),
		invoker:  newStubInvoker(),
		verifier: &stubVerifier{},
		notifier: &stubNotifier{},
		journal:  &stubJournal{},
		sleeper:  &recordingSleep{},
	}
}

func (h *harness) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	deps := Deps{
		Prober:   h.prober,
		Invoker:  h.invoker,
		Verifier: h.verifier,
		Journal:  h.journal,
		Notifier: h.notifier,
	}
	if h.gate != nil {
		deps.Gate = h.gate
	}
	o, err := New(h.cfg, deps, WithSleep(h.sleeper.sleep))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

// input creates a video file under the watch dir and registers its duration.
func (h *harness) input(t *testing.T, name string, duration float64) string {
	t.Helper()
	path := filepath.Join(h.cfg.Paths.WatchDir, name)
	testsupport.WriteFile(t, path, 4096)
	h.prober.set(path, duration)
	return path
}

// existingOutput writes a prior output for input and registers its duration.
func (h *harness) existingOutput(t *testing.T, input string, duration float64) string {
	t.Helper()
	stem := filepath.Base(input)
	stem = stem[:len(stem)-len(filepath.Ext(stem))]
	path := filepath.Join(h.cfg.Paths.OutputDir, "movies", stem+".mkv")
	testsupport.WriteFile(t, path, 1024)
	h.prober.set(path, duration)
	return path
}

func outputFor(cfg *config.Config, name string) string {
	stem := name[:len(name)-len(filepath.Ext(name))]
	return filepath.Join(cfg.Paths.OutputDir, "movies", stem+".mkv")
}

var errEncode = errors.New("encoder exploded")
