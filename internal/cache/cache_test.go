package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity_IdenticalVectorsAreOne(t *testing.T) {
	t.Parallel()
	v := []float32{1, 2, 3}
	require.InDelta(t, 1.0, cosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarity_OrthogonalVectorsAreZero(t *testing.T) {
	t.Parallel()
	require.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{0, 1}))
}

func TestCosineSimilarity_MismatchedLengthReturnsZero(t *testing.T) {
	t.Parallel()
	require.Zero(t, cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
}

func TestCosineSimilarity_EmptyVectorReturnsZero(t *testing.T) {
	t.Parallel()
	require.Zero(t, cosineSimilarity(nil, []float32{1}))
	require.Zero(t, cosineSimilarity([]float32{1}, nil))
}

func TestCosineSimilarity_ZeroVectorReturnsZero(t *testing.T) {
	t.Parallel()
	// A degraded embedding (llmgateway.Embed's failure fallback) must compare
	// as dissimilar to everything rather than dividing by zero.
	require.Zero(t, cosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3}))
}

func TestContextCacheKey_IncludesSymbolAndDataType(t *testing.T) {
	t.Parallel()
	k1 := contextCacheKey("AAPL", "news")
	k2 := contextCacheKey("AAPL", "fundamentals")
	k3 := contextCacheKey("MSFT", "news")
	require.NotEqual(t, k1, k2)
	require.NotEqual(t, k1, k3)
}

func TestQueryRingKey_PerSession(t *testing.T) {
	t.Parallel()
	require.NotEqual(t, queryRingKey("session-a"), queryRingKey("session-b"))
}

func TestVectorQueryCacheKey_Namespaced(t *testing.T) {
	t.Parallel()
	require.Contains(t, vectorQueryCacheKey("abc123"), "abc123")
}

func TestContextCache_NilReceiverIsSafeMiss(t *testing.T) {
	t.Parallel()
	var c *ContextCache
	var dest map[string]string
	ok, err := c.GetData(nil, "AAPL", "news", &dest)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, c.SetData(nil, "AAPL", "news", map[string]string{"a": "b"}))
	require.NoError(t, c.Invalidate(nil, "AAPL", "news"))
}

func TestQueryHistoryRing_NilReceiverIsSafe(t *testing.T) {
	t.Parallel()
	var r *QueryHistoryRing
	require.NoError(t, r.Record(nil, "s1", "q1", "text", []float32{1, 2}))
	results, err := r.SimilarQueries(nil, "s1", []float32{1, 2}, 5)
	require.NoError(t, err)
	require.Nil(t, results)
}

func TestVectorQueryCache_NilReceiverIsSafeMiss(t *testing.T) {
	t.Parallel()
	var v *VectorQueryCache
	results, ok := v.Get(nil, "key")
	require.False(t, ok)
	require.Nil(t, results)
	v.Set(nil, "key", 0, nil) // must not panic
}
