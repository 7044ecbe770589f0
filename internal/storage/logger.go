package storage

import (
	"strings"
	"time"

	"ai-batcher/internal/llm"
)

// InteractionLogger turns chat outcomes into log entries.
type InteractionLogger struct {
	rec   Recorder
	runID string
	now   func() time.Time
}

func NewInteractionLogger(rec Recorder, runID string) *InteractionLogger {
	return &InteractionLogger{rec: rec, runID: runID, now: time.Now}
}

// WithClock replaces the timestamp source.
func (l *InteractionLogger) WithClock(now func() time.Time) *InteractionLogger {
	l.now = now
	return l
}

func (l *InteractionLogger) LogSuccess(userPrompt, systemPrompt string, resp llm.Response) error {
	seconds := float64(resp.TotalDuration.Nanoseconds()) / 1e9
	return l.rec.AppendInteraction(Entry{
		Timestamp:    l.stamp(),
		UserPrompt:   userPrompt,
		SystemPrompt: systemPrompt,
		Response:     CleanResponse(resp.Content),
		ResponseTime: &seconds,
		RunID:        l.runID,
		Model:        resp.Model,
	})
}

func (l *InteractionLogger) LogFailure(userPrompt, systemPrompt string, callErr error) error {
	return l.rec.AppendInteraction(Entry{
		Timestamp:    l.stamp(),
		UserPrompt:   userPrompt,
		SystemPrompt: systemPrompt,
		Response:     "ERROR: " + callErr.Error(),
		RunID:        l.runID,
	})
}

// stamp drops sub-second precision; the log renders whole seconds only.
func (l *InteractionLogger) stamp() time.Time {
	return l.now().Truncate(time.Second)
}

// CleanResponse turns literal backslash-n sequences into newlines and trims
// surrounding whitespace.
func CleanResponse(content string) string {
	return strings.TrimSpace(strings.ReplaceAll(content, `\n`, "\n"))
}
