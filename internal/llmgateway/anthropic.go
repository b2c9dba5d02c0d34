package llmgateway

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicProviderName = "anthropic"

// AnthropicClient wraps the Anthropic SDK as a Provider, grounded on the
// teacher's internal/llm/anthropic/client.go Chat method but trimmed to a
// single non-streaming completion (no tool calling, no thought-signature
// bookkeeping — the agent pipeline here never calls tools).
type AnthropicClient struct {
	sdk   anthropic.Client
	model string
}

// NewAnthropicClient builds an AnthropicClient authenticated with apiKey.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &AnthropicClient{sdk: anthropic.NewClient(opts...), model: model}
}

func (c *AnthropicClient) Name() string { return anthropicProviderName }

func (c *AnthropicClient) Complete(ctx context.Context, msgs []Message, model string, temperature float64, maxTokens int) (CompletionResult, error) {
	if model == "" {
		model = c.model
	}
	var system []anthropic.TextBlockParam
	var converted []anthropic.MessageParam
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case "assistant":
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		Messages:    converted,
		System:      system,
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return CompletionResult{}, classifyAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}

	promptTokens := int(resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens + resp.Usage.InputTokens)
	completionTokens := int(resp.Usage.OutputTokens)
	return CompletionResult{
		Content:          sb.String(),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}, nil
}

func (c *AnthropicClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, &Error{Kind: KindOther, Provider: anthropicProviderName, Err: errAnthropicNoEmbeddings}
}

var errAnthropicNoEmbeddings = errNoEmbeddings("anthropic")

type errNoEmbeddings string

func (e errNoEmbeddings) Error() string { return string(e) + " does not expose an embeddings endpoint" }

func classifyAnthropicError(err error) *Error {
	var apiErr *anthropic.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		return classifyStatus(anthropicProviderName, apiErr.StatusCode, err)
	}
	return &Error{Kind: KindOther, Provider: anthropicProviderName, Err: err}
}

func asAnthropicError(err error, target **anthropic.Error) bool {
	if ae, ok := err.(*anthropic.Error); ok {
		*target = ae
		return true
	}
	return false
}
