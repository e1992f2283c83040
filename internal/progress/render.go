package progress

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w any) bool {
	file, ok := w.(*os.File)
	if !ok || file == nil {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// RenderSummary renders the counters, followed by one row per failed file
// when there are any.
func RenderSummary(summary Summary, outcomes []Outcome) string {
	tw := newTable()
	tw.AppendHeader(table.Row{"Total", "Completed", "Failed", "Skipped"})
	tw.AppendRow(table.Row{
		strconv.Itoa(summary.Total),
		strconv.Itoa(summary.Completed),
		strconv.Itoa(summary.Failed),
		strconv.Itoa(summary.Skipped),
	})
	if pending := summary.Pending(); pending > 0 {
		tw.AppendFooter(table.Row{fmt.Sprintf("%d not processed", pending), "", "", ""})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	out := tw.Render()

	var failed table.Writer
	for _, outcome := range outcomes {
		if outcome.Kind != Failure {
			continue
		}
		if failed == nil {
			failed = newTable()
			failed.AppendHeader(table.Row{"Failed file", "Reason"})
		}
		failed.AppendRow(table.Row{outcome.Path, outcome.Reason})
	}
	if failed != nil {
		out += "\n" + failed.Render()
	}
	return out
}

// newTable keeps header and footer text as written; the rounded style would
// otherwise upper-case it.
func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault
	return tw
}
