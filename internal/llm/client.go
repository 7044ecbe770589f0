package llm

import (
	"context"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Response is the validated result of one chat call.
// TotalDuration is reported by the server when it can; otherwise it is the
// wall-clock time of the request.
type Response struct {
	Content          string
	Model            string
	TotalDuration    time.Duration
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}

// Conversation builds the two-message request every batch iteration sends.
// The system message is included even when empty.
func Conversation(system, user string) []Message {
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}
