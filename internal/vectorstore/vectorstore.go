// Package vectorstore implements the VectorStore adapter (spec.md §6
// "Vector-store contract"): a thin, collection-oriented contract over an
// embedding-indexed store, with dimension-mismatch recovery and a 1h query
// cache.
package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Collection names created on demand (spec.md §6).
const (
	CollectionFinancialNews    = "financial_news"
	CollectionCompanyAnalysis  = "company_analysis"
	CollectionMarketTrends     = "market_trends"
)

// QueryCacheTTL is the vector-store query cache lifetime (spec.md §5, 3600s).
const QueryCacheTTL = 1 * time.Hour

// ErrorKind classifies vectorstore failures.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindConnection
	KindDimensionMismatch
	KindNotFound
)

// Error is the vectorstore error type (SPEC_FULL.md "vectorstore.Error{Kind}").
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vectorstore: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("vectorstore: %s", e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

// Embedder abstracts the LLM gateway's embed operation so this package
// never imports internal/llmgateway (structural typing, same pattern as
// integrations.EnabledResolver).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Document is a unit of addDocument input.
type Document struct {
	ID        string
	Text      string
	Metadata  map[string]any
	Embedding []float32 // optional; computed via Embedder when nil
}

// Result is one hit returned by query/searchSimilar.
type Result struct {
	ID       string
	Document string
	Metadata map[string]any
	Distance float64
}

// QueryCache is the pluggable 1h result cache backing query() (spec.md §6,
// §5 "vector-store query cache"). internal/cache implements this over Redis;
// a nil QueryCache disables caching.
type QueryCache interface {
	Get(ctx context.Context, key string) ([]Result, bool)
	Set(ctx context.Context, key string, ttl time.Duration, results []Result)
}

// Store is the VectorStore adapter contract every backend implements.
type Store interface {
	AddDocument(ctx context.Context, collection string, doc Document) error
	Query(ctx context.Context, collection, text string, embedding []float32, n int, where map[string]string) ([]Result, error)
	SearchSimilar(ctx context.Context, collection string, embedding []float32, n int, where map[string]string) ([]Result, error)
}

// sanitizeMetadata enforces "metadata values must be scalar; null values are
// dropped; non-scalar values are stringified" (spec.md §6).
func sanitizeMetadata(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = val
		case bool, int, int32, int64, float32, float64:
			out[k] = fmt.Sprintf("%v", val)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				out[k] = fmt.Sprintf("%v", val)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

// queryCacheKey hashes (collection, queryText, queryEmbedding, nResults,
// where) into a stable cache key (spec.md §5), following the teacher's
// sha256-with-separators pattern (internal/rag/ingest/preprocess.go ComputeHash).
func queryCacheKey(collection, text string, embedding []float32, n int, where map[string]string) string {
	h := sha256.New()
	h.Write([]byte(collection))
	h.Write([]byte{'|'})
	h.Write([]byte(text))
	h.Write([]byte{'|'})
	for _, f := range embedding {
		fmt.Fprintf(h, "%g,", f)
	}
	h.Write([]byte{'|'})
	fmt.Fprintf(h, "%d|", n)
	keys := sortedKeys(where)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(where[k]))
		h.Write([]byte{';'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
