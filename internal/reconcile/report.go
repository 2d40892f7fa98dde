package reconcile

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// reportVersion is bumped when the JSONL layout changes.
const reportVersion = "1"

// header is the first JSONL record written by WriteJSONL.
type header struct {
	Version       string    `json:"version"`
	Type          string    `json:"type"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
	EventCount    int       `json:"eventCount"`
	MismatchCount int       `json:"mismatchCount"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type     string   `json:"type"`
	Data     Mismatch `json:"data"`
	Orphaned int      `json:"orphaned"`
}

// WriteJSONL writes the report as a header line followed by one line per mismatch.
func WriteJSONL(r *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:       reportVersion,
		Type:          "header",
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		EventCount:    r.Events,
		MismatchCount: len(r.Mismatches),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, m := range r.Mismatches {
		if err := enc.Encode(record{Type: "mismatch", Data: m, Orphaned: m.Orphaned()}); err != nil {
			return fmt.Errorf("encode mismatch %s: %w", m.EventID, err)
		}
	}
	return nil
}
