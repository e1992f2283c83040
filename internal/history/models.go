package history

import "time"

// Run is one invocation of batch or watch mode.
type Run struct {
	ID          string
	Mode        string
	StartedAt   time.Time
	FinishedAt  time.Time
	Total       int
	Completed   int
	Failed      int
	Skipped     int
	Interrupted bool
}

// Finished reports whether the run recorded its final totals.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Totals are the counters written when a run ends.
type Totals struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
}

// Entry is the terminal outcome of one file within a run.
type Entry struct {
	ID            int64
	RunID         string
	SourcePath    string
	OutputPath    string
	Outcome       string
	Reason        string
	Attempts      int
	Category      string
	Quality       string
	InputBytes    int64
	OutputBytes   int64
	MediaSeconds  float64
	EncodeSeconds float64
	RecordedAt    time.Time
}

// Filter narrows List results. A zero Filter returns the most recent entries.
type Filter struct {
	RunID   string
	Outcome string
	Limit   int
}

const defaultListLimit = 50
