package display

import (
	"fmt"
	"io"

	"github.com/0xmhha/shot-relay/pkg/state"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatSummary implements Formatter.FormatSummary.
func (f *simpleFormatter) FormatSummary(w io.Writer, summary Summary) error {
	_, err := fmt.Fprintf(w, "Tracked: %s | Sent: %s | Pending: %s | Due: %s\n",
		formatNumber(summary.Total),
		formatNumber(summary.Sent),
		formatNumber(summary.Pending),
		formatNumber(summary.Due))
	return err
}

// FormatRecords implements Formatter.FormatRecords.
func (f *simpleFormatter) FormatRecords(w io.Writer, entries []state.Entry) error {
	for _, entry := range entries {
		line := fmt.Sprintf("%s %s (attempts: %d)", entry.Status, entry.Path, entry.Attempts)
		if entry.Status == state.StatusPending {
			line += " next: " + formatTime(entry.NextRetryAt)
			if entry.LastError != nil {
				line += " error: " + *entry.LastError
			}
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}
