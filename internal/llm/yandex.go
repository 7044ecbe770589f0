package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/Morwran/yagpt"
)

type YandexClient struct {
	ya       yagpt.YaGPTFace
	iamToken string
}

func NewYandex(oauthToken, folderID string) (*YandexClient, error) {
	// Create IAM token from OAuth token
	iam, err := yagpt.NewYaIam(oauthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init yandex iam: %w", err)
	}
	resp, err := iam.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create iam token: %w", err)
	}

	ya, err := yagpt.NewYagpt(folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to init yagpt: %w", err)
	}

	return &YandexClient{
		ya:       ya,
		iamToken: resp.IamToken,
	}, nil
}

// Generate sends the conversation as is. YandexGPT rejects empty texts, so an
// empty system message is left out.
func (c *YandexClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	var yaMsgs []yagpt.Message
	for _, m := range messages {
		if m.Role == RoleSystem && m.Content == "" {
			continue
		}
		yaMsgs = append(yaMsgs, yagpt.Message{Role: m.Role, Content: m.Content})
	}

	start := time.Now()
	resp, err := c.ya.CompletionWithCtx(ctx, c.iamToken, yaMsgs)
	elapsed := time.Since(start)
	if err != nil {
		return Response{}, &NetworkError{URL: "yandexgpt", Err: fmt.Errorf("yagpt completion failed: %w", err)}
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return Response{}, malformed("yagpt returned empty response")
	}
	out := Response{Content: resp.Alternatives[0].Message.Content, Model: yagpt.YaModelLite, TotalDuration: elapsed}
	out.PromptTokens = int(resp.Usage.InputTextTokens)
	out.CompletionTokens = int(resp.Usage.CompletionTokens)
	out.TotalTokens = int(resp.Usage.TotalTokens)
	return out, nil
}
