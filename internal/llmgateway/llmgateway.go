// Package llmgateway implements the LLM gateway contract (spec.md §6): a
// single completion method and a single embedding method, backed by
// whichever provider config.LLMConfig.Provider selects, with the shared
// retry/backoff policy applied uniformly across backends.
package llmgateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Message is a single chat turn passed to Complete.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// CompletionResult is the LLM gateway's complete() return value (spec.md §6).
type CompletionResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ErrorKind distinguishes gateway failures for the retry policy (spec.md §6).
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindRateLimit
	KindAuth
	KindBadRequest
)

// Error is the llmgateway error type (SPEC_FULL.md "llmgateway.Error{Kind}").
type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llmgateway(%s): %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) retryable() bool {
	return e.Kind == KindOther || e.Kind == KindRateLimit
}

// classifyStatus maps an HTTP status code to an ErrorKind, mirroring
// internal/sources' classifyStatus (spec.md §4.5/§6 share the same
// rate-limit/auth/other taxonomy shape).
func classifyStatus(provider string, status int, err error) *Error {
	switch {
	case status == 429:
		return &Error{Kind: KindRateLimit, Provider: provider, Err: err}
	case status == 401 || status == 403:
		return &Error{Kind: KindAuth, Provider: provider, Err: err}
	case status >= 400 && status < 500:
		return &Error{Kind: KindBadRequest, Provider: provider, Err: err}
	default:
		return &Error{Kind: KindOther, Provider: provider, Err: err}
	}
}

// maxRetryAttempts and the exponential backoff schedule mirror
// internal/sources' retry policy (spec.md §6: "Retries for Other/RateLimit
// only, exponential backoff 2^attempt seconds, max 3 attempts").
const maxRetryAttempts = 3

// Provider is the backend contract every LLM SDK wrapper implements.
type Provider interface {
	Name() string
	Complete(ctx context.Context, msgs []Message, model string, temperature float64, maxTokens int) (CompletionResult, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// defaultEmbeddingDim is the degraded-fallback vector width returned when a
// provider's embed call fails, matching the teacher's zero-vector fallback
// in internal/llm/embeddings.go (GenerateEmbeddings: "using zero vector").
const defaultEmbeddingDim = 768

// Gateway wraps a Provider with the shared retry policy and the
// embed-degrades-to-zero-vector fallback (spec.md §6).
type Gateway struct {
	provider     Provider
	embeddingDim int
	log          zerolog.Logger
	backoffUnit  time.Duration // 2^attempt * backoffUnit; overridable by tests
}

// New builds a Gateway around the given Provider. embeddingDim sizes the
// zero-vector fallback returned by Embed on failure; pass 0 to use the
// teacher's historical default (768).
func New(provider Provider, embeddingDim int, log zerolog.Logger) *Gateway {
	if embeddingDim <= 0 {
		embeddingDim = defaultEmbeddingDim
	}
	return &Gateway{provider: provider, embeddingDim: embeddingDim, log: log, backoffUnit: time.Second}
}

// Complete retries Other/RateLimit failures with exponential backoff
// (2^attempt seconds, max 3 attempts); Auth/BadRequest fail immediately.
func (g *Gateway) Complete(ctx context.Context, msgs []Message, model string, temperature float64, maxTokens int) (CompletionResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		result, err := g.provider.Complete(ctx, msgs, model, temperature, maxTokens)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var gwErr *Error
		if !errors.As(err, &gwErr) || !gwErr.retryable() || attempt == maxRetryAttempts {
			return CompletionResult{}, err
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * g.backoffUnit
		g.log.Warn().Err(err).Str("provider", g.provider.Name()).Int("attempt", attempt).
			Dur("backoff", backoff).Msg("llm completion retrying")

		select {
		case <-ctx.Done():
			return CompletionResult{}, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return CompletionResult{}, lastErr
}

// Embed returns a degraded zero vector (of embeddingDim width) instead of an
// error when the provider's embed call fails, so callers can disable
// semantic-search paths rather than aborting (spec.md §6).
func (g *Gateway) Embed(ctx context.Context, text string) []float32 {
	vec, err := g.provider.Embed(ctx, text)
	if err != nil {
		g.log.Warn().Err(err).Str("provider", g.provider.Name()).Msg("embedding failed, returning degraded zero vector")
		return make([]float32, g.embeddingDim)
	}
	if len(vec) == 0 {
		return make([]float32, g.embeddingDim)
	}
	return vec
}
