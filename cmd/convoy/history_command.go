package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"convoy/internal/history"
)

type runView struct {
	ID          string     `json:"id"`
	Mode        string     `json:"mode"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Total       int        `json:"total"`
	Completed   int        `json:"completed"`
	Failed      int        `json:"failed"`
	Skipped     int        `json:"skipped"`
	Interrupted bool       `json:"interrupted"`
}

type entryView struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	SourcePath    string    `json:"source_path"`
	OutputPath    string    `json:"output_path,omitempty"`
	Outcome       string    `json:"outcome"`
	Reason        string    `json:"reason,omitempty"`
	Attempts      int       `json:"attempts"`
	Category      string    `json:"category,omitempty"`
	Quality       string    `json:"quality,omitempty"`
	InputBytes    int64     `json:"input_bytes"`
	OutputBytes   int64     `json:"output_bytes"`
	EncodeSeconds float64   `json:"encode_seconds"`
	RecordedAt    time.Time `json:"recorded_at"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit     int
		runID     string
		outcome   string
		asJSON    bool
		pruneDays int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs, or the files of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if pruneDays > 0 {
				removed, err := store.Prune(cmd.Context(), time.Now().AddDate(0, 0, -pruneDays))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d run(s) older than %d day(s)\n", removed, pruneDays)
				return nil
			}

			runID = strings.TrimSpace(runID)
			outcome = strings.ToLower(strings.TrimSpace(outcome))
			if runID == "" && outcome == "" {
				runs, err := store.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					views := make([]runView, 0, len(runs))
					for _, run := range runs {
						views = append(views, toRunView(run))
					}
					return writeJSON(cmd, views)
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded yet")
					return nil
				}
				fmt.Fprintln(out, renderRunsTable(runs))
				return nil
			}

			if runID != "" {
				if _, err := store.GetRun(cmd.Context(), runID); err != nil {
					return err
				}
			}
			entries, err := store.List(cmd.Context(), history.Filter{RunID: runID, Outcome: outcome, Limit: limit})
			if err != nil {
				return err
			}
			if asJSON {
				views := make([]entryView, 0, len(entries))
				for _, entry := range entries {
					views = append(views, toEntryView(entry))
				}
				return writeJSON(cmd, views)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No matching files")
				return nil
			}
			fmt.Fprintln(out, renderEntriesTable(entries))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of rows to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show the files processed by this run")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Only show files with this outcome (success, failure, skipped)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "Delete runs older than this many days and exit")
	return cmd
}

func toRunView(run history.Run) runView {
	view := runView{
		ID:          run.ID,
		Mode:        run.Mode,
		StartedAt:   run.StartedAt,
		Total:       run.Total,
		Completed:   run.Completed,
		Failed:      run.Failed,
		Skipped:     run.Skipped,
		Interrupted: run.Interrupted,
	}
	if run.Finished() {
		finished := run.FinishedAt
		view.FinishedAt = &finished
	}
	return view
}

func toEntryView(entry history.Entry) entryView {
	return entryView{
		ID:            entry.ID,
		RunID:         entry.RunID,
		SourcePath:    entry.SourcePath,
		OutputPath:    entry.OutputPath,
		Outcome:       entry.Outcome,
		Reason:        entry.Reason,
		Attempts:      entry.Attempts,
		Category:      entry.Category,
		Quality:       entry.Quality,
		InputBytes:    entry.InputBytes,
		OutputBytes:   entry.OutputBytes,
		EncodeSeconds: entry.EncodeSeconds,
		RecordedAt:    entry.RecordedAt,
	}
}

func renderRunsTable(runs []history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.Mode,
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			runDuration(run),
			strconv.Itoa(run.Total),
			strconv.Itoa(run.Completed),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.Skipped),
			runState(run),
		})
	}
	return renderTable(
		[]string{"Run", "Mode", "Started", "Duration", "Total", "Done", "Failed", "Skipped", "State"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func renderEntriesTable(entries []history.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			filepath.Base(entry.SourcePath),
			entry.Outcome,
			strconv.Itoa(entry.Attempts),
			sizeChange(entry.InputBytes, entry.OutputBytes),
			entry.Reason,
		})
	}
	return renderTable(
		[]string{"File", "Outcome", "Attempts", "Size", "Reason"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func runDuration(run history.Run) string {
	if !run.Finished() {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}

func runState(run history.Run) string {
	switch {
	case !run.Finished():
		return "running"
	case run.Interrupted:
		return "interrupted"
	case run.Failed > 0:
		return "failures"
	default:
		return "ok"
	}
}

// sizeChange renders the output size as a share of the input.
func sizeChange(input, output int64) string {
	if input <= 0 || output <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", float64(output)/float64(input)*100)
}
