package history

import (
	"database/sql"
	"time"
)

type scanner interface{ Scan(dest ...any) error }

func scanEntry(row scanner) (Entry, error) {
	var (
		entry       Entry
		outputPath  sql.NullString
		reason      sql.NullString
		category    sql.NullString
		quality     sql.NullString
		recordedRaw string
	)
	if err := row.Scan(
		&entry.ID,
		&entry.RunID,
		&entry.SourcePath,
		&outputPath,
		&entry.Outcome,
		&reason,
		&entry.Attempts,
		&category,
		&quality,
		&entry.InputBytes,
		&entry.OutputBytes,
		&entry.MediaSeconds,
		&entry.EncodeSeconds,
		&recordedRaw,
	); err != nil {
		return Entry{}, err
	}
	entry.OutputPath = outputPath.String
	entry.Reason = reason.String
	entry.Category = category.String
	entry.Quality = quality.String
	entry.RecordedAt = parseTime(recordedRaw)
	return entry, nil
}

func scanRun(row scanner) (Run, error) {
	var (
		run         Run
		startedRaw  string
		finishedRaw sql.NullString
		interrupted int
	)
	if err := row.Scan(
		&run.ID,
		&run.Mode,
		&startedRaw,
		&finishedRaw,
		&run.Total,
		&run.Completed,
		&run.Failed,
		&run.Skipped,
		&interrupted,
	); err != nil {
		return Run{}, err
	}
	run.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid {
		run.FinishedAt = parseTime(finishedRaw.String)
	}
	run.Interrupted = interrupted != 0
	return run, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
