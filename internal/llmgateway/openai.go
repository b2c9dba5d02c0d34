package llmgateway

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"
)

const openaiProviderName = "openai"

// OpenAIClient wraps the OpenAI SDK as a Provider, grounded on the teacher's
// internal/llm/openai_client.go CallLLM (chat) and internal/llm/embeddings.go
// (GenerateEmbeddings), ported from the raw-HTTP v1 pattern to the SDK's
// chat-completions and embeddings endpoints.
type OpenAIClient struct {
	sdk            openai.Client
	model          string
	embeddingModel string
}

// NewOpenAIClient builds an OpenAIClient authenticated with apiKey.
func NewOpenAIClient(apiKey, model, embeddingModel string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}
	return &OpenAIClient{sdk: openai.NewClient(opts...), model: model, embeddingModel: embeddingModel}
}

func (c *OpenAIClient) Name() string { return openaiProviderName }

func (c *OpenAIClient) Complete(ctx context.Context, msgs []Message, model string, temperature float64, maxTokens int) (CompletionResult, error) {
	if model == "" {
		model = c.model
	}
	var converted []openai.ChatCompletionMessageParamUnion
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			converted = append(converted, openai.SystemMessage(m.Content))
		case "assistant":
			converted = append(converted, openai.AssistantMessage(m.Content))
		default:
			converted = append(converted, openai.UserMessage(m.Content))
		}
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    converted,
		Temperature: param.NewOpt(temperature),
		MaxTokens:   param.NewOpt(int64(maxTokens)),
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return CompletionResult{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, &Error{Kind: KindOther, Provider: openaiProviderName, Err: errNoChoices}
	}

	return CompletionResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.sdk.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) == 0 {
		return nil, &Error{Kind: KindOther, Provider: openaiProviderName, Err: errNoEmbeddingData}
	}
	raw := resp.Data[0].Embedding
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out, nil
}

var (
	errNoChoices       = noChoicesError("no choices returned")
	errNoEmbeddingData = noChoicesError("no embedding data returned")
)

type noChoicesError string

func (e noChoicesError) Error() string { return string(e) }

func classifyOpenAIError(err error) *Error {
	if apiErr, ok := err.(*openai.Error); ok {
		return classifyStatus(openaiProviderName, apiErr.StatusCode, err)
	}
	return &Error{Kind: KindOther, Provider: openaiProviderName, Err: err}
}
