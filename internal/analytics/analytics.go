package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"ai-batcher/internal/storage"
)

// Stats summarizes a set of log entries.
type Stats struct {
	From               time.Time                    `json:"from"`
	To                 time.Time                    `json:"to"`
	Total              int                          `json:"total"`
	Succeeded          int                          `json:"succeeded"`
	Failed             int                          `json:"failed"`
	EmptySystemPrompts int                          `json:"empty_system_prompts"`
	MeanResponseTime   float64                      `json:"mean_response_time_s"`
	MinResponseTime    float64                      `json:"min_response_time_s"`
	MaxResponseTime    float64                      `json:"max_response_time_s"`
	BySystemPrompt     map[string]SystemPromptStats `json:"by_system_prompt"`
}

// SystemPromptStats holds per-system-prompt counters. The empty prompt is keyed by "".
type SystemPromptStats struct {
	Uses             int     `json:"uses"`
	Failures         int     `json:"failures"`
	MeanResponseTime float64 `json:"mean_response_time_s"`
}

// Analyze computes statistics over all entries.
func Analyze(entries []storage.Entry) *Stats {
	return analyze(entries, func(storage.Entry) bool { return true })
}

// AnalyzeDay computes statistics over entries logged on the calendar day of targetDate.
func AnalyzeDay(entries []storage.Entry, targetDate time.Time) *Stats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)
	return analyze(entries, func(e storage.Entry) bool {
		return !e.Timestamp.Before(startOfDay) && e.Timestamp.Before(endOfDay)
	})
}

func analyze(entries []storage.Entry, keep func(storage.Entry) bool) *Stats {
	stats := &Stats{BySystemPrompt: make(map[string]SystemPromptStats)}
	var sum float64
	sums := make(map[string]float64)
	stats.MinResponseTime = math.Inf(1)

	for _, e := range entries {
		if !keep(e) {
			continue
		}
		stats.Total++
		if stats.From.IsZero() || e.Timestamp.Before(stats.From) {
			stats.From = e.Timestamp
		}
		if e.Timestamp.After(stats.To) {
			stats.To = e.Timestamp
		}
		if e.SystemPrompt == "" {
			stats.EmptySystemPrompts++
		}

		ps := stats.BySystemPrompt[e.SystemPrompt]
		ps.Uses++
		if e.Failed() {
			stats.Failed++
			ps.Failures++
			stats.BySystemPrompt[e.SystemPrompt] = ps
			continue
		}

		rt := *e.ResponseTime
		stats.Succeeded++
		sum += rt
		sums[e.SystemPrompt] += rt
		stats.MinResponseTime = math.Min(stats.MinResponseTime, rt)
		stats.MaxResponseTime = math.Max(stats.MaxResponseTime, rt)
		stats.BySystemPrompt[e.SystemPrompt] = ps
	}

	if stats.Succeeded == 0 {
		stats.MinResponseTime = 0
		return stats
	}
	stats.MeanResponseTime = sum / float64(stats.Succeeded)
	for prompt, ps := range stats.BySystemPrompt {
		if ok := ps.Uses - ps.Failures; ok > 0 {
			ps.MeanResponseTime = sums[prompt] / float64(ok)
			stats.BySystemPrompt[prompt] = ps
		}
	}
	return stats
}

// SuccessRate is the share of successful calls in [0,1], or 0 for an empty log.
func (s *Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total)
}

// Summary renders the statistics for the console.
func (s *Stats) Summary() string {
	if s.Total == 0 {
		return "No interactions logged.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Interactions from %s to %s:\n", s.From.Format(storage.TimestampLayout), s.To.Format(storage.TimestampLayout))
	fmt.Fprintf(&b, "- Total: %d\n", s.Total)
	fmt.Fprintf(&b, "- Succeeded: %d (%.1f%%)\n", s.Succeeded, s.SuccessRate()*100)
	fmt.Fprintf(&b, "- Failed: %d\n", s.Failed)
	fmt.Fprintf(&b, "- Empty system prompt: %d\n", s.EmptySystemPrompts)
	if s.Succeeded > 0 {
		fmt.Fprintf(&b, "- Response time (s): mean %.3f, min %.3f, max %.3f\n", s.MeanResponseTime, s.MinResponseTime, s.MaxResponseTime)
	}

	prompts := make([]string, 0, len(s.BySystemPrompt))
	for p := range s.BySystemPrompt {
		prompts = append(prompts, p)
	}
	sort.Slice(prompts, func(i, j int) bool {
		a, b := s.BySystemPrompt[prompts[i]], s.BySystemPrompt[prompts[j]]
		if a.Uses != b.Uses {
			return a.Uses > b.Uses
		}
		return prompts[i] < prompts[j]
	})
	fmt.Fprintf(&b, "\nSystem prompts (%d):\n", len(prompts))
	for _, p := range prompts {
		ps := s.BySystemPrompt[p]
		label := p
		if label == "" {
			label = "(empty)"
		} else if r := []rune(label); len(r) > 50 {
			label = string(r[:50]) + "..."
		}
		fmt.Fprintf(&b, "- %s: %d uses, %d failures", label, ps.Uses, ps.Failures)
		if ps.Uses > ps.Failures {
			fmt.Fprintf(&b, ", mean %.3fs", ps.MeanResponseTime)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ToJSON serializes the statistics for machine consumption.
func (s *Stats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
