package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient speaks the OpenAI-compatible chat completions API that most
// local model servers also expose under /v1.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	baseURL string
}

func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	config.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		baseURL: config.BaseURL,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: oaMsgs,
		Stream:   false,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		return Response{}, c.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, malformed("no choices in completion")
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return Response{
		Content:          resp.Choices[0].Message.Content,
		Model:            model,
		TotalDuration:    elapsed,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func (c *OpenAIClient) mapError(err error) error {
	url := c.baseURL + "/chat/completions"
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &NetworkError{URL: url, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &NetworkError{URL: url, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &NetworkError{URL: url, Err: err}
}
