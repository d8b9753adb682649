package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/0xmhha/shot-relay/pkg/state"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatSummary implements Formatter.FormatSummary.
func (f *tableFormatter) FormatSummary(w io.Writer, summary Summary) error {
	if err := writeHeader(w, "Delivery State", f.config.Compact); err != nil {
		return err
	}

	rows := [][]string{
		{"State File", summary.StateFile},
		{"Tracked", formatNumber(summary.Total)},
		{"Sent", formatNumber(summary.Sent)},
		{"Pending", formatNumber(summary.Pending)},
		{"Due Now", formatNumber(summary.Due)},
	}

	if f.config.ShowTimestamps {
		rows = append(rows,
			[]string{"Oldest Pending", formatTime(summary.OldestPending)},
			[]string{"Last Sent", formatTime(summary.LastSent)},
		)
	}

	return f.writeTable(w, []string{"Metric", "Value"}, rows)
}

// FormatRecords implements Formatter.FormatRecords.
func (f *tableFormatter) FormatRecords(w io.Writer, entries []state.Entry) error {
	if err := writeHeader(w, "Tracked Screenshots", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Status", "Attempts", "Path"}
	if f.config.ShowTimestamps {
		header = append(header, "First Seen", "Next Retry", "Sent At")
	}
	header = append(header, "Last Error")

	rows := make([][]string, len(entries))
	for i, entry := range entries {
		row := []string{
			string(entry.Status),
			strconv.Itoa(entry.Attempts),
			entry.Path,
		}
		if f.config.ShowTimestamps {
			firstSeen := entry.FirstSeenAt
			row = append(row,
				formatTime(&firstSeen),
				formatTime(entry.NextRetryAt),
				formatTime(entry.SentAt),
			)
		}
		row = append(row, formatError(entry.LastError))
		rows[i] = row
	}

	return f.writeTable(w, header, rows)
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row. The last cell is not padded.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	gap := "  "
	if f.config.Compact {
		gap = " "
	}

	for i, cell := range cells {
		if i > 0 {
			if _, err := fmt.Fprint(w, gap); err != nil {
				return err
			}
		}

		if i == len(cells)-1 {
			if _, err := fmt.Fprint(w, cell); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%-*s", widths[i], cell); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}
