// Package display provides output formatting for delivery state.
//
// It supports multiple output formats (table, JSON, simple text)
// for the records kept in the state file and a summary of them.
package display

import (
	"io"
	"time"

	"github.com/0xmhha/shot-relay/pkg/state"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays records in a formatted table.
	FormatTable Format = "table"

	// FormatJSON displays records as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays records in simple text format.
	FormatSimple Format = "simple"
)

// ParseFormat returns the Format named by s, or false if it is unknown.
func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case FormatTable, FormatJSON, FormatSimple:
		return Format(s), true
	default:
		return "", false
	}
}

// Formatter formats delivery state.
type Formatter interface {
	// FormatSummary formats counts across all records.
	FormatSummary(w io.Writer, summary Summary) error

	// FormatRecords formats individual records.
	FormatRecords(w io.Writer, entries []state.Entry) error
}

// Summary aggregates a set of records.
type Summary struct {
	// StateFile is the file the records were read from.
	StateFile string `json:"state_file"`

	// Total is the number of records.
	Total int `json:"total"`

	// Sent is the number of delivered records.
	Sent int `json:"sent"`

	// Pending is the number of undelivered records.
	Pending int `json:"pending"`

	// Due is the number of pending records eligible for redelivery now.
	Due int `json:"due"`

	// OldestPending is the first_seen_at of the oldest pending record.
	OldestPending *time.Time `json:"oldest_pending,omitempty"`

	// LastSent is the most recent sent_at.
	LastSent *time.Time `json:"last_sent,omitempty"`
}

// Summarize builds a Summary of entries as of now.
func Summarize(stateFile string, entries []state.Entry, now time.Time) Summary {
	s := Summary{StateFile: stateFile, Total: len(entries)}
	for i := range entries {
		rec := entries[i].Record
		switch rec.Status {
		case state.StatusSent:
			s.Sent++
			if rec.SentAt != nil && (s.LastSent == nil || rec.SentAt.After(*s.LastSent)) {
				t := *rec.SentAt
				s.LastSent = &t
			}
		default:
			s.Pending++
			if rec.NextRetryAt == nil || !rec.NextRetryAt.After(now) {
				s.Due++
			}
			if s.OldestPending == nil || rec.FirstSeenAt.Before(*s.OldestPending) {
				t := rec.FirstSeenAt
				s.OldestPending = &t
			}
		}
	}
	return s
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// ShowTimestamps enables timestamp columns.
	// Default: false.
	ShowTimestamps bool

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool
}
