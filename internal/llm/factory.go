package llm

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ai-batcher/internal/config"
)

// Factory creates LLM clients with consistent logic
type Factory struct {
	Endpoint         string
	Timeout          time.Duration
	OpenaiAPIKey     string
	YandexOAuthToken string
	YandexFolderID   string
	Logger           *zap.Logger
}

func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		Endpoint:         cfg.Endpoint,
		Timeout:          cfg.RequestTimeout,
		OpenaiAPIKey:     cfg.OpenAIAPIKey,
		YandexOAuthToken: cfg.YandexOAuthToken,
		YandexFolderID:   cfg.YandexFolderID,
		Logger:           logger,
	}
}

func (f *Factory) CreateClient(provider config.LLMProvider, model string) (Client, error) {
	switch config.LLMProvider(strings.ToLower(string(provider))) {
	case config.ProviderOllama, "":
		return NewOllama(f.Endpoint, model, f.Timeout, f.Logger), nil
	case config.ProviderOpenAI:
		return NewOpenAI(f.OpenaiAPIKey, strings.TrimRight(f.Endpoint, "/")+"/v1", model, f.Timeout), nil
	case config.ProviderYandex:
		return NewYandex(f.YandexOAuthToken, f.YandexFolderID)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
