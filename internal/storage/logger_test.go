package storage

import (
	"errors"
	"testing"
	"time"

	"ai-batcher/internal/llm"
)

type memRecorder struct{ entries []Entry }

func (m *memRecorder) AppendInteraction(e Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRecorder) LoadInteractions() ([]Entry, error) { return m.entries, nil }

func TestCleanResponse(t *testing.T) {
	tests := map[string]string{
		`hi\nthere`:            "hi\nthere",
		"  padded  \n":         "padded",
		`\n\nlead and trail\n`: "lead and trail",
		"real\nnewline":        "real\nnewline",
		`a\\nb`:                "a\\\nb",
		"":                     "",
	}
	for in, want := range tests {
		if got := CleanResponse(in); got != want {
			t.Errorf("CleanResponse(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInteractionLogger_Success(t *testing.T) {
	rec := &memRecorder{}
	at := time.Date(2024, 1, 2, 3, 4, 5, 600, time.Local)
	l := NewInteractionLogger(rec, "run-1").WithClock(func() time.Time { return at })

	err := l.LogSuccess("hello", "A", llm.Response{Content: `hi\nthere `, Model: "m", TotalDuration: 2 * time.Second})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if len(rec.entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(rec.entries))
	}
	e := rec.entries[0]
	if e.UserPrompt != "hello" || e.SystemPrompt != "A" || e.Response != "hi\nthere" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.ResponseTime == nil || *e.ResponseTime != 2.0 {
		t.Fatalf("response time: %v", e.ResponseTime)
	}
	if !e.Timestamp.Equal(at.Truncate(time.Second)) || e.RunID != "run-1" || e.Model != "m" {
		t.Fatalf("metadata: %+v", e)
	}
}

func TestInteractionLogger_ResponseTimeIsNanosecondsOverBillion(t *testing.T) {
	rec := &memRecorder{}
	l := NewInteractionLogger(rec, "")
	const ns = 1234567891
	if err := l.LogSuccess("u", "", llm.Response{Content: "x", TotalDuration: time.Duration(ns)}); err != nil {
		t.Fatalf("log: %v", err)
	}
	if got := *rec.entries[0].ResponseTime; got != float64(ns)/1e9 {
		t.Fatalf("got %v", got)
	}
}

func TestInteractionLogger_Failure(t *testing.T) {
	rec := &memRecorder{}
	l := NewInteractionLogger(rec, "run-2")
	if err := l.LogFailure("hello", "", errors.New("connection refused")); err != nil {
		t.Fatalf("log: %v", err)
	}
	e := rec.entries[0]
	if e.Response != "ERROR: connection refused" || e.ResponseTime != nil || !e.Failed() {
		t.Fatalf("unexpected entry: %+v", e)
	}
}
