package llmgateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"finyx/internal/config"
)

// NewFromConfig builds a Gateway around the backend selected by
// cfg.Provider (spec.md §6's LITELLM_PROVIDER), defaulting to Anthropic.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, log zerolog.Logger) (*Gateway, error) {
	var provider Provider
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		provider = NewOpenAIClient(cfg.OpenAIKey, cfg.Model, cfg.EmbeddingModel)
	case "gemini":
		gc, err := NewGeminiClient(ctx, cfg.GeminiKey, cfg.Model, cfg.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		provider = gc
	case "anthropic", "":
		provider = NewAnthropicClient(cfg.AnthropicKey, cfg.Model)
	default:
		return nil, fmt.Errorf("llmgateway: unknown provider %q", cfg.Provider)
	}
	return New(provider, 0, log), nil
}
