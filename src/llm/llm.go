// Package llm builds the chat model used by the research generator.
package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cryptoagents/src/utils"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

var ErrMissingAPIKey = errors.New("LLM_API_KEY is missing or a placeholder")

// ChatModel is the part of an eino chat model the pipeline needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// NewChatModel builds an OpenAI-compatible or DeepSeek chat model.
func NewChatModel(ctx context.Context, cfg Config) (ChatModel, error) {
	if utils.IsPlaceholder(cfg.APIKey) {
		return nil, ErrMissingAPIKey
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		maxTokens := cfg.MaxTokens
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.model(),
			MaxTokens: &maxTokens,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai chat model: %w", err)
		}
		return cm, nil
	case ProviderDeepSeek:
		// the deepseek client always talks to the public DeepSeek API
		cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.model(),
			MaxTokens: cfg.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("create deepseek chat model: %w", err)
		}
		return cm, nil
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.Provider)
	}
}

// Complete sends a system and a user prompt and returns the reply text.
func Complete(ctx context.Context, cm ChatModel, system, user string) (string, error) {
	reply, err := cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
	if err != nil {
		return "", err
	}
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		return "", errors.New("empty completion")
	}
	return reply.Content, nil
}

var confidencePattern = regexp.MustCompile(`(?i)confidence[:\s]+(\d+)`)

// ParseConfidence extracts "confidence: NN" from free text, clamped to
// 0..100. def is returned when nothing matches.
func ParseConfidence(text string, def float64) float64 {
	m := confidencePattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return def
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return def
	}
	if v > 100 {
		return 100
	}
	return v
}
