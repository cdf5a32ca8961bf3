package llm

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
)

type Config struct {
	Provider  string        `envconfig:"LLM_PROVIDER" default:"openai"`
	APIKey    string        `envconfig:"LLM_API_KEY"`
	Model     string        `envconfig:"LLM_MODEL" default:""`
	BaseURL   string        `envconfig:"LLM_BASE_URL" default:""`
	MaxTokens int           `envconfig:"LLM_MAX_TOKENS" default:"800"`
	Timeout   time.Duration `envconfig:"LLM_TIMEOUT" default:"45s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func (c Config) model() string {
	if c.Model != "" {
		return c.Model
	}
	if c.Provider == ProviderDeepSeek {
		return "deepseek-chat"
	}
	return "gpt-4"
}
