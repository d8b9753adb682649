package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/shot-relay/pkg/state"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

// FormatSummary implements Formatter.FormatSummary.
func (f *jsonFormatter) FormatSummary(w io.Writer, summary Summary) error {
	return f.encoder(w).Encode(summary)
}

// FormatRecords implements Formatter.FormatRecords.
func (f *jsonFormatter) FormatRecords(w io.Writer, entries []state.Entry) error {
	if entries == nil {
		entries = []state.Entry{}
	}
	return f.encoder(w).Encode(entries)
}

func (f *jsonFormatter) encoder(w io.Writer) *json.Encoder {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder
}
