package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSanitizeMetadata_DropsNilsAndStringifiesNonScalars(t *testing.T) {
	out := sanitizeMetadata(map[string]any{
		"symbol":  "AAPL",
		"count":   3,
		"missing": nil,
		"tags":    []string{"a", "b"},
	})
	require.Equal(t, "AAPL", out["symbol"])
	require.Equal(t, "3", out["count"])
	require.NotContains(t, out, "missing")
	require.Equal(t, `["a","b"]`, out["tags"])
}

func TestQueryCacheKey_StableAcrossWhereKeyOrder(t *testing.T) {
	emb := []float32{0.1, 0.2, 0.3}
	k1 := queryCacheKey("financial_news", "AAPL outlook", emb, 5, map[string]string{"symbol": "AAPL", "source": "fmp"})
	k2 := queryCacheKey("financial_news", "AAPL outlook", emb, 5, map[string]string{"source": "fmp", "symbol": "AAPL"})
	require.Equal(t, k1, k2)
}

func TestQueryCacheKey_DiffersOnCollectionOrN(t *testing.T) {
	emb := []float32{0.1, 0.2}
	base := queryCacheKey("financial_news", "q", emb, 5, nil)
	require.NotEqual(t, base, queryCacheKey("company_analysis", "q", emb, 5, nil))
	require.NotEqual(t, base, queryCacheKey("financial_news", "q", emb, 10, nil))
}

type fakeQueryCache struct {
	store map[string][]Result
}

func newFakeQueryCache() *fakeQueryCache { return &fakeQueryCache{store: map[string][]Result{}} }

func (f *fakeQueryCache) Get(ctx context.Context, key string) ([]Result, bool) {
	r, ok := f.store[key]
	return r, ok
}

func (f *fakeQueryCache) Set(ctx context.Context, key string, ttl time.Duration, results []Result) {
	f.store[key] = results
}

func TestFakeQueryCache_RoundTrips(t *testing.T) {
	c := newFakeQueryCache()
	key := queryCacheKey("market_trends", "", []float32{1, 2}, 3, nil)
	_, ok := c.Get(context.Background(), key)
	require.False(t, ok)

	want := []Result{{ID: "a", Document: "doc", Distance: 0.1}}
	c.Set(context.Background(), key, QueryCacheTTL, want)

	got, ok := c.Get(context.Background(), key)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestPointID_PreservesNonUUIDOriginal(t *testing.T) {
	uuidStr, original := pointID("AAPL-news-17")
	require.NotEmpty(t, uuidStr)
	require.Equal(t, "AAPL-news-17", original)

	uuidStr2, original2 := pointID(uuidStr)
	require.Equal(t, uuidStr, uuidStr2)
	require.Empty(t, original2)
}

func TestIsDimensionError(t *testing.T) {
	require.True(t, isDimensionError(&Error{Kind: KindConnection, Op: "upsert", Err: errDim}))
	require.False(t, isDimensionError(nil))
	require.False(t, isDimensionError(&Error{Kind: KindConnection, Op: "upsert", Err: errOther}))
}

type stringError string

func (e stringError) Error() string { return string(e) }

var (
	errDim   = stringError("wrong input: vector dimension error, expected 1536 got 768")
	errOther = stringError("connection refused")
)
