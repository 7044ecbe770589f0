package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OllamaClient talks to the native /api/chat endpoint.
type OllamaClient struct {
	url        string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse uses pointers for the fields a reply must carry so that an
// absent field can be told apart from a zero value.
type chatResponse struct {
	Model   string `json:"model"`
	Message *struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"message"`
	TotalDuration   *int64 `json:"total_duration"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// NewOllama builds a client for baseURL. A zero timeout means the call is
// bounded only by the caller's context.
func NewOllama(baseURL, model string, timeout time.Duration, logger *zap.Logger) *OllamaClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaClient{
		url:        strings.TrimRight(baseURL, "/") + "/api/chat",
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *OllamaClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	req := chatRequest{Model: c.model, Stream: false, Messages: make([]chatMessage, 0, len(messages))}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, &NetworkError{URL: c.url, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("chat request", zap.String("url", c.url), zap.String("model", c.model), zap.Int("messages", len(messages)))
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, &NetworkError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, statusError(c.url, resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &NetworkError{URL: c.url, Err: fmt.Errorf("read response body: %w", err)}
	}
	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Response{}, malformed("decode body: %v", err)
	}
	if decoded.Error != "" {
		return Response{}, &NetworkError{URL: c.url, StatusCode: resp.StatusCode, Message: decoded.Error}
	}
	if decoded.Message == nil || decoded.Message.Content == nil {
		return Response{}, malformed("missing message.content")
	}
	if decoded.TotalDuration == nil {
		return Response{}, malformed("missing total_duration")
	}

	model := decoded.Model
	if model == "" {
		model = c.model
	}
	out := Response{
		Content:          *decoded.Message.Content,
		Model:            model,
		TotalDuration:    time.Duration(*decoded.TotalDuration),
		PromptTokens:     decoded.PromptEvalCount,
		CompletionTokens: decoded.EvalCount,
		TotalTokens:      decoded.PromptEvalCount + decoded.EvalCount,
	}
	c.logger.Debug("chat response", zap.String("model", out.Model), zap.Duration("total_duration", out.TotalDuration), zap.Int("tokens", out.TotalTokens))
	return out, nil
}

// statusError reads the server's {"error": "..."} body when there is one.
func statusError(url string, resp *http.Response) *NetworkError {
	ne := &NetworkError{URL: url, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&errResp); err == nil && errResp.Error != "" {
		ne.Message = errResp.Error
	}
	return ne
}
