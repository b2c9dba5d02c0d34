package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"finyx/internal/sharedcontext"
)

// QueryHistoryRingSize bounds the per-session query-history ring (spec.md
// §4.1 component C: "query-history ring <= 100 entries").
const QueryHistoryRingSize = 100

// QueryHistoryRing records recent query embeddings per session and surfaces
// the most similar prior queries for a new one, via client-side cosine
// similarity over the ring (Qdrant is for document retrieval, not this
// per-session, ephemeral, very-small-N comparison).
type QueryHistoryRing struct {
	client *Client
}

// NewQueryHistoryRing wraps client.
func NewQueryHistoryRing(client *Client) *QueryHistoryRing {
	return &QueryHistoryRing{client: client}
}

func queryRingKey(sessionID string) string {
	return fmt.Sprintf("finyx:queries:%s", sessionID)
}

type ringEntry struct {
	QueryID   string    `json:"queryId"`
	QueryText string    `json:"queryText"`
	Embedding []float32 `json:"embedding"`
}

// Record appends a query to the session's ring, trimming it to
// QueryHistoryRingSize entries (newest first), mirroring the teacher's
// Redis list-based recent-items caches (LPush+LTrim).
func (r *QueryHistoryRing) Record(ctx context.Context, sessionID, queryID, queryText string, embedding []float32) error {
	if r == nil || r.client == nil {
		return nil
	}
	raw, err := json.Marshal(ringEntry{QueryID: queryID, QueryText: queryText, Embedding: embedding})
	if err != nil {
		return fmt.Errorf("cache: marshal query ring entry: %w", err)
	}
	key := queryRingKey(sessionID)
	pipe := r.client.rdb.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, QueryHistoryRingSize-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: record query %s: %w", queryID, err)
	}
	return nil
}

// SimilarQueries returns the n most cosine-similar prior queries in
// sessionID's ring to embedding, highest similarity first.
func (r *QueryHistoryRing) SimilarQueries(ctx context.Context, sessionID string, embedding []float32, n int) ([]sharedcontext.SimilarQuery, error) {
	if r == nil || r.client == nil || n <= 0 {
		return nil, nil
	}
	raws, err := r.client.rdb.LRange(ctx, queryRingKey(sessionID), 0, QueryHistoryRingSize-1).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: read query ring %s: %w", sessionID, err)
	}

	scored := make([]sharedcontext.SimilarQuery, 0, len(raws))
	for _, raw := range raws {
		var entry ringEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue // skip malformed entries rather than fail the whole lookup
		}
		sim := cosineSimilarity(embedding, entry.Embedding)
		scored = append(scored, sharedcontext.SimilarQuery{
			QueryID:    entry.QueryID,
			QueryText:  entry.QueryText,
			Similarity: sim,
		})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored, nil
}

// cosineSimilarity returns 0 for mismatched or empty vectors rather than
// erroring, since degraded zero-vector embeddings (llmgateway.Embed's
// failure fallback) must compare as dissimilar, not blow up the ring scan.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
