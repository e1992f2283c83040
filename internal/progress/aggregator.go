package progress

import (
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

// Kind is the terminal result of one file.
type Kind int

const (
	Success Kind = iota
	Failure
	Skipped
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome records what happened to one file.
type Outcome struct {
	Path   string
	Kind   Kind
	Reason string
}

// Summary holds the run counters. Counters never decrease.
type Summary struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
}

// Finished returns the number of files with a terminal outcome.
func (s Summary) Finished() int {
	return s.Completed + s.Failed + s.Skipped
}

// Pending returns the number of files not yet finalized, e.g. after an
// interrupted batch.
func (s Summary) Pending() int {
	if p := s.Total - s.Finished(); p > 0 {
		return p
	}
	return 0
}

// Options configures an Aggregator.
type Options struct {
	// Output receives the live display. Nil disables it.
	Output io.Writer
	// Live enables the live display; callers normally pass IsTerminal(Output).
	Live  bool
	Title string
}

// Aggregator counts outcomes and optionally renders live progress.
type Aggregator struct {
	mu       sync.Mutex
	summary  Summary
	outcomes []Outcome
	closed   bool

	writer  progress.Writer
	overall *progress.Tracker
	current *progress.Tracker
	active  string
}

// New returns an Aggregator expecting total files. When more outcomes arrive
// than expected, as in watch mode which starts at zero, the total grows with
// them.
func New(total int, opts Options) *Aggregator {
	if total < 0 {
		total = 0
	}
	a := &Aggregator{summary: Summary{Total: total}}
	if opts.Live && opts.Output != nil {
		a.startLive(opts)
	}
	return a
}

func (a *Aggregator) startLive(opts Options) {
	pw := progress.NewWriter()
	pw.SetOutputWriter(opts.Output)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(250 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Percentage = true

	title := opts.Title
	if title == "" {
		title = "Files"
	}
	a.overall = &progress.Tracker{Message: title, Total: int64(a.summary.Total), Units: progress.UnitsDefault}
	pw.AppendTracker(a.overall)
	a.writer = pw
	go pw.Render()
}

// Start shows a per-file tracker for path.
func (a *Aggregator) Start(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.writer == nil || a.closed {
		return
	}
	a.finishCurrent(false)
	a.active = path
	a.current = &progress.Tracker{Message: filepath.Base(path), Total: 100, Units: progress.UnitsDefault}
	a.writer.AppendTracker(a.current)
}

// Progress moves the per-file tracker of path to percent.
func (a *Aggregator) Progress(path string, percent float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil || a.active != path {
		return
	}
	if percent > 100 {
		percent = 100
	}
	a.current.SetValue(int64(percent))
}

// Update folds one terminal outcome into the counters.
func (a *Aggregator) Update(outcome Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch outcome.Kind {
	case Success:
		a.summary.Completed++
	case Failure:
		a.summary.Failed++
	case Skipped:
		a.summary.Skipped++
	default:
		return
	}
	if a.summary.Finished() > a.summary.Total {
		a.summary.Total = a.summary.Finished()
		if a.overall != nil {
			a.overall.UpdateTotal(int64(a.summary.Total))
		}
	}
	a.outcomes = append(a.outcomes, outcome)
	if a.overall != nil {
		a.overall.Increment(1)
	}
	if a.current != nil && a.active == outcome.Path {
		a.finishCurrent(outcome.Kind == Failure)
	}
}

func (a *Aggregator) finishCurrent(failed bool) {
	if a.current == nil {
		return
	}
	if failed {
		a.current.MarkAsErrored()
	} else {
		a.current.MarkAsDone()
	}
	a.current = nil
	a.active = ""
}

// Summary returns a snapshot of the counters.
func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summary
}

// Outcomes returns the recorded outcomes in the order they arrived.
func (a *Aggregator) Outcomes() []Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Outcome(nil), a.outcomes...)
}

// Close stops the live display. It is idempotent.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	pw := a.writer
	if pw != nil {
		a.finishCurrent(false)
		if a.overall != nil {
			a.overall.MarkAsDone()
		}
	}
	a.mu.Unlock()

	if pw == nil {
		return
	}
	pw.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for pw.IsRenderInProgress() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}
