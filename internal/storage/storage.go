package storage

import "time"

// TimestampLayout is how timestamps are rendered in the spreadsheet log.
const TimestampLayout = "2006-01-02 15:04:05"

// Entry is one attempted chat interaction, successful or not.
// ResponseTime is nil when the call failed. RunID and Model are kept only
// by the journal; the spreadsheet has a fixed set of columns.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	UserPrompt   string    `json:"user_prompt"`
	SystemPrompt string    `json:"system_prompt"`
	Response     string    `json:"response"`
	ResponseTime *float64  `json:"response_time_s"`
	RunID        string    `json:"run_id,omitempty"`
	Model        string    `json:"model,omitempty"`
}

// Failed reports whether the entry records a failed call.
func (e Entry) Failed() bool { return e.ResponseTime == nil }

// Recorder abstracts persistence of interaction entries.
// LoadInteractions returns entries in the order they were appended.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(entry Entry) error
	LoadInteractions() ([]Entry, error)
}
