package llmgateway

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

const geminiProviderName = "gemini"

// GeminiClient wraps the Gemini SDK as a Provider, grounded on the teacher's
// internal/llm/google/client.go Chat/toContents/messageFromResponse, trimmed
// to a single non-streaming completion (no tool calling, no thought
// signatures, no image generation — out of scope for this pipeline).
type GeminiClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
}

// NewGeminiClient builds a GeminiClient authenticated with apiKey.
func NewGeminiClient(ctx context.Context, apiKey, model, embeddingModel string) (*GeminiClient, error) {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if embeddingModel == "" {
		embeddingModel = "text-embedding-004"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: strings.TrimSpace(apiKey)})
	if err != nil {
		return nil, &Error{Kind: KindOther, Provider: geminiProviderName, Err: fmt.Errorf("init gemini client: %w", err)}
	}
	return &GeminiClient{client: client, model: model, embeddingModel: embeddingModel}, nil
}

func (c *GeminiClient) Name() string { return geminiProviderName }

func (c *GeminiClient) Complete(ctx context.Context, msgs []Message, model string, temperature float64, maxTokens int) (CompletionResult, error) {
	if model == "" {
		model = c.model
	}
	contents, err := toGeminiContents(msgs)
	if err != nil {
		return CompletionResult{}, &Error{Kind: KindBadRequest, Provider: geminiProviderName, Err: err}
	}

	temp := float32(temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if maxTokens > 0 {
		mt := int32(maxTokens)
		cfg.MaxOutputTokens = mt
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return CompletionResult{}, &Error{Kind: KindOther, Provider: geminiProviderName, Err: err}
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return CompletionResult{}, &Error{Kind: KindBadRequest, Provider: geminiProviderName, Err: fmt.Errorf("request blocked: %s", resp.PromptFeedback.BlockReason)}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return CompletionResult{}, &Error{Kind: KindOther, Provider: geminiProviderName, Err: fmt.Errorf("no candidates in gemini response")}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}

	var promptTokens, completionTokens, totalTokens int
	if resp.UsageMetadata != nil {
		promptTokens = int(resp.UsageMetadata.PromptTokenCount)
		completionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		totalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return CompletionResult{
		Content:          sb.String(),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      totalTokens,
	}, nil
}

func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), nil)
	if err != nil {
		return nil, &Error{Kind: KindOther, Provider: geminiProviderName, Err: err}
	}
	if len(resp.Embeddings) == 0 {
		return nil, &Error{Kind: KindOther, Provider: geminiProviderName, Err: fmt.Errorf("no embedding returned")}
	}
	return resp.Embeddings[0].Values, nil
}

func toGeminiContents(msgs []Message) ([]*genai.Content, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("messages required")
	}
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.RoleUser
		text := m.Content
		switch strings.ToLower(m.Role) {
		case "assistant":
			role = genai.RoleModel
		case "system":
			text = "[system] " + text
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}
	return contents, nil
}
