package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOllama LLMProvider = "ollama"
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

// DefaultModel is the model every chat request is sent with unless MODEL overrides it.
const DefaultModel = "hf.co/KBTG-Labs/THaLLE-0.1-7B-fa-GGUF:F16"

// ErrConfigurationMissing is returned when a required setting is absent or unusable.
var ErrConfigurationMissing = errors.New("configuration missing")

type Config struct {
	// LLM settings
	Endpoint         string        `env:"ENDPOINT"`
	LLMProvider      LLMProvider   `env:"LLM_PROVIDER" envDefault:"ollama"`
	Model            string        `env:"MODEL" envDefault:"hf.co/KBTG-Labs/THaLLE-0.1-7B-fa-GGUF:F16"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"0s"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	YandexOAuthToken string        `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string        `env:"YANDEX_FOLDER_ID"`

	// Prompts
	SystemMessagePath      string  `env:"SYSTEM_MESSAGE_PATH" envDefault:"system_message.txt"`
	UserMessagePath        string  `env:"USER_MESSAGE_PATH" envDefault:"user_message.txt"`
	EmptySystemProbability float64 `env:"EMPTY_SYSTEM_PROBABILITY" envDefault:"0.2"`

	// Storage
	LogFilePath string `env:"LOG_FILE_PATH" envDefault:"chat_logs.xlsx"`
	JournalPath string `env:"JOURNAL_PATH"`

	// Pacing and scheduling
	RequestInterval time.Duration `env:"REQUEST_INTERVAL" envDefault:"0s"`
	Schedule        string        `env:"SCHEDULE"`
}

// New parses the process environment. The result is not validated; call Validate
// once command-line overrides have been applied.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	cfg.LLMProvider = LLMProvider(strings.ToLower(strings.TrimSpace(string(cfg.LLMProvider))))
	return cfg, nil
}

// Validate reports the first setting that would make a batch run unusable.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOllama, ProviderOpenAI:
		if c.Endpoint == "" {
			return fmt.Errorf("%w: ENDPOINT is not set", ErrConfigurationMissing)
		}
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: ENDPOINT %q is not an absolute URL", ErrConfigurationMissing, c.Endpoint)
		}
	case ProviderYandex:
		if c.YandexOAuthToken == "" || c.YandexFolderID == "" {
			return fmt.Errorf("%w: YANDEX_OAUTH_TOKEN and YANDEX_FOLDER_ID are required", ErrConfigurationMissing)
		}
	default:
		return fmt.Errorf("%w: unknown llm provider %q", ErrConfigurationMissing, c.LLMProvider)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: MODEL is empty", ErrConfigurationMissing)
	}
	if c.SystemMessagePath == "" || c.UserMessagePath == "" {
		return fmt.Errorf("%w: message file paths are empty", ErrConfigurationMissing)
	}
	if c.LogFilePath == "" {
		return fmt.Errorf("%w: LOG_FILE_PATH is empty", ErrConfigurationMissing)
	}
	if c.EmptySystemProbability < 0 || c.EmptySystemProbability > 1 {
		return fmt.Errorf("EMPTY_SYSTEM_PROBABILITY must be within [0,1], got %v", c.EmptySystemProbability)
	}
	if c.RequestTimeout < 0 || c.RequestInterval < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT and REQUEST_INTERVAL must not be negative")
	}
	return nil
}
