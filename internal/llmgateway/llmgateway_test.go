package llmgateway

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name        string
	completeErr []error // one per call, nil means success
	calls       int
	embedding   []float32
	embedErr    error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, msgs []Message, model string, temperature float64, maxTokens int) (CompletionResult, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.completeErr) && f.completeErr[idx] != nil {
		return CompletionResult{}, f.completeErr[idx]
	}
	return CompletionResult{Content: "ok", TotalTokens: 10}, nil
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedding, nil
}

func TestComplete_RetriesRateLimitThenSucceeds(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{
		name: "fake",
		completeErr: []error{
			&Error{Kind: KindRateLimit, Provider: "fake"},
			&Error{Kind: KindRateLimit, Provider: "fake"},
			nil,
		},
	}
	gw := newTestGateway(p)
	result, err := gw.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, "", 0.2, 100)
	require.NoError(t, err)
	require.Equal(t, "ok", result.Content)
	require.Equal(t, 3, p.calls)
}

func TestComplete_AuthErrorFailsImmediately(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{name: "fake", completeErr: []error{&Error{Kind: KindAuth, Provider: "fake"}}}
	gw := newTestGateway(p)
	_, err := gw.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, "", 0.2, 100)
	require.Error(t, err)
	require.Equal(t, 1, p.calls)
}

func TestComplete_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{name: "fake", completeErr: []error{
		&Error{Kind: KindOther, Provider: "fake"},
		&Error{Kind: KindOther, Provider: "fake"},
		&Error{Kind: KindOther, Provider: "fake"},
	}}
	gw := newTestGateway(p)
	_, err := gw.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, "", 0.2, 100)
	require.Error(t, err)
	require.Equal(t, maxRetryAttempts, p.calls)
}

func TestEmbed_DegradesToZeroVectorOnFailure(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{name: "fake", embedErr: &Error{Kind: KindOther, Provider: "fake"}}
	gw := New(p, 128, zerolog.Nop())
	vec := gw.Embed(context.Background(), "hello")
	require.Len(t, vec, 128)
	for _, v := range vec {
		require.Zero(t, v)
	}
}

func TestEmbed_PassesThroughSuccessfulEmbedding(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{name: "fake", embedding: []float32{0.1, 0.2, 0.3}}
	gw := New(p, 128, zerolog.Nop())
	vec := gw.Embed(context.Background(), "hello")
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

// newTestGateway builds a Gateway whose retry backoff is scaled down to
// microseconds so retry tests don't sleep through the real 2s/4s schedule.
func newTestGateway(p Provider) *Gateway {
	gw := New(p, 0, zerolog.Nop())
	gw.backoffUnit = time.Microsecond
	return gw
}
