package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("history record not found")

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// StartRun records the beginning of a run. An empty id is replaced with a
// fresh one.
func (s *Store) StartRun(ctx context.Context, id, mode string) (Run, error) {
	if strings.TrimSpace(id) == "" {
		id = NewRunID()
	}
	run := Run{ID: id, Mode: mode, StartedAt: time.Now().UTC()}
	if _, err := s.exec(ctx,
		"INSERT INTO runs (id, mode, started_at) VALUES (?, ?, ?)",
		run.ID, run.Mode, formatTime(run.StartedAt),
	); err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final counters of a run.
func (s *Store) FinishRun(ctx context.Context, id string, totals Totals, interrupted bool) error {
	res, err := s.exec(ctx,
		`UPDATE runs SET finished_at = ?, total = ?, completed = ?, failed = ?, skipped = ?, interrupted = ?
		 WHERE id = ?`,
		formatTime(time.Now().UTC()), totals.Total, totals.Completed, totals.Failed, totals.Skipped,
		boolToInt(interrupted), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

// Record appends a terminal outcome.
func (s *Store) Record(ctx context.Context, entry Entry) (int64, error) {
	if strings.TrimSpace(entry.RunID) == "" {
		return 0, errors.New("history entry requires a run id")
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	res, err := s.exec(ctx,
		`INSERT INTO conversions (
			run_id, source_path, output_path, outcome, reason, attempts, category, quality,
			input_bytes, output_bytes, media_seconds, encode_seconds, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.SourcePath, nullString(entry.OutputPath), entry.Outcome, nullString(entry.Reason),
		entry.Attempts, nullString(entry.Category), nullString(entry.Quality),
		entry.InputBytes, entry.OutputBytes, entry.MediaSeconds, entry.EncodeSeconds,
		formatTime(entry.RecordedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert conversion: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("conversion id: %w", err)
	}
	return id, nil
}

const entryColumns = "id, run_id, source_path, output_path, outcome, reason, attempts, category, quality, input_bytes, output_bytes, media_seconds, encode_seconds, recorded_at"

// List returns entries newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	ctx = ensureContext(ctx)
	var (
		where []string
		args  []any
	)
	if filter.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, filter.Outcome)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := "SELECT " + entryColumns + " FROM conversions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, started_at, finished_at, total, completed, failed, skipped, interrupted
		 FROM runs ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, mode, started_at, finished_at, total, completed, failed, skipped, interrupted
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Prune deletes runs started before cutoff along with their entries.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	stamp := formatTime(cutoff.UTC())
	// Pragmas apply per pooled connection, so entries are removed explicitly
	// instead of relying on ON DELETE CASCADE.
	if _, err := s.exec(ctx,
		"DELETE FROM conversions WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)", stamp,
	); err != nil {
		return 0, fmt.Errorf("prune conversions: %w", err)
	}
	res, err := s.exec(ctx, "DELETE FROM runs WHERE started_at < ?", stamp)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return n, nil
}
