package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
)

// payloadTextField and payloadIDField mirror the teacher's original-ID
// preservation trick (Qdrant only accepts UUID/integer point IDs).
const (
	payloadIDField   = "_original_id"
	payloadTextField = "_text"
)

// QdrantStore is the Store implementation backed by Qdrant (SPEC_FULL.md
// "internal/vectorstore/qdrant.go"), grounded on the teacher's
// internal/persistence/databases/qdrant_vector.go.
type QdrantStore struct {
	client   *qdrant.Client
	metric   string
	embedder Embedder
	cache    QueryCache
	log      zerolog.Logger

	mu         sync.Mutex
	dimensions map[string]int // collection -> last-known vector width
}

// NewQdrantStore connects to Qdrant's gRPC API (default port 6334). An
// optional "api_key" query parameter on dsn authenticates the client.
// Collections are created lazily on first AddDocument/Query call per
// collection, not eagerly (spec.md §6 "Collections are created on demand").
func NewQdrantStore(dsn, metric string, embedder Embedder, cache QueryCache, log zerolog.Logger) (*QdrantStore, error) {
	parsedURL, err := url.Parse(dsn)
	if err != nil {
		return nil, &Error{Kind: KindOther, Op: "parse dsn", Err: err}
	}
	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsedURL.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, &Error{Kind: KindOther, Op: "parse dsn port", Err: err}
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsedURL.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsedURL.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Op: "connect", Err: err}
	}
	return &QdrantStore{
		client:     client,
		metric:     strings.ToLower(strings.TrimSpace(metric)),
		embedder:   embedder,
		cache:      cache,
		log:        log,
		dimensions: make(map[string]int),
	}, nil
}

func (q *QdrantStore) distance() qdrant.Distance {
	switch q.metric {
	case "l2", "euclidean":
		return qdrant.Distance_Euclid
	case "ip", "dot":
		return qdrant.Distance_Dot
	case "manhattan":
		return qdrant.Distance_Manhattan
	default:
		return qdrant.Distance_Cosine
	}
}

// pointID maps an arbitrary caller-supplied ID to the UUID Qdrant requires,
// preserving the original under payloadIDField when it wasn't already a UUID.
func pointID(id string) (uuidStr string, original string) {
	if _, err := uuid.Parse(id); err == nil {
		return id, ""
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(), id
}

// ensureCollection creates the collection if absent, and recreates it if
// the requested width mismatches an empty collection's configured width
// (spec.md §6 dimension-mismatch recovery, the "collection is empty" case).
func (q *QdrantStore) ensureCollection(ctx context.Context, collection string, width int) error {
	if width <= 0 {
		return &Error{Kind: KindOther, Op: "ensure collection", Err: fmt.Errorf("embedding width must be > 0")}
	}

	q.mu.Lock()
	cached, ok := q.dimensions[collection]
	q.mu.Unlock()
	if ok && cached == width {
		return nil
	}

	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return &Error{Kind: KindConnection, Op: "collection exists", Err: err}
	}
	if !exists {
		if err := q.createCollection(ctx, collection, width); err != nil {
			return err
		}
		q.setDimension(collection, width)
		return nil
	}

	info, err := q.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return &Error{Kind: KindConnection, Op: "get collection info", Err: err}
	}
	configured := int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	if configured == width || configured == 0 {
		q.setDimension(collection, width)
		return nil
	}

	empty := info.GetPointsCount() == 0
	if empty {
		if err := q.recreateCollection(ctx, collection, width); err != nil {
			return err
		}
	}
	// Non-empty mismatches are left alone here; AddDocument's insertion
	// probe drives recovery for that case.
	q.setDimension(collection, width)
	return nil
}

func (q *QdrantStore) setDimension(collection string, width int) {
	q.mu.Lock()
	q.dimensions[collection] = width
	q.mu.Unlock()
}

func (q *QdrantStore) createCollection(ctx context.Context, collection string, width int) error {
	err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(width),
			Distance: q.distance(),
		}),
	})
	if err != nil {
		return &Error{Kind: KindConnection, Op: "create collection", Err: err}
	}
	return nil
}

func (q *QdrantStore) recreateCollection(ctx context.Context, collection string, width int) error {
	if _, err := q.client.DeleteCollection(ctx, collection); err != nil {
		return &Error{Kind: KindConnection, Op: "delete collection", Err: err}
	}
	return q.createCollection(ctx, collection, width)
}

func isDimensionError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "dimension")
}

// AddDocument embeds doc.Text when doc.Embedding is nil, inserts into
// collection, and recovers from a non-empty collection's dimension
// mismatch by recreating it once and retrying the insert (spec.md §6).
func (q *QdrantStore) AddDocument(ctx context.Context, collection string, doc Document) error {
	embedding := doc.Embedding
	if embedding == nil {
		if q.embedder == nil {
			return &Error{Kind: KindOther, Op: "add document", Err: fmt.Errorf("no embedding supplied and no embedder configured")}
		}
		emb, err := q.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return &Error{Kind: KindOther, Op: "embed", Err: err}
		}
		embedding = emb
	}

	if err := q.ensureCollection(ctx, collection, len(embedding)); err != nil {
		return err
	}

	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}

	err := q.upsert(ctx, collection, id, doc.Text, embedding, doc.Metadata)
	if err != nil && isDimensionError(err) {
		if rerr := q.recreateCollection(ctx, collection, len(embedding)); rerr != nil {
			return rerr
		}
		q.setDimension(collection, len(embedding))
		err = q.upsert(ctx, collection, id, doc.Text, embedding, doc.Metadata)
	}
	return err
}

func (q *QdrantStore) upsert(ctx context.Context, collection, id, text string, embedding []float32, metadata map[string]any) error {
	uuidStr, original := pointID(id)
	meta := sanitizeMetadata(metadata)
	payload := make(map[string]any, len(meta)+2)
	for k, v := range meta {
		payload[k] = v
	}
	payload[payloadTextField] = text
	if original != "" {
		payload[payloadIDField] = original
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(uuidStr),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return &Error{Kind: KindConnection, Op: "upsert", Err: err}
	}
	return nil
}

// Query implements the vector-store query() contract: embeds text when no
// embedding is supplied, consults the 1h query cache, and falls through to
// Qdrant on a miss (spec.md §6).
func (q *QdrantStore) Query(ctx context.Context, collection, text string, embedding []float32, n int, where map[string]string) ([]Result, error) {
	if embedding == nil {
		if text == "" {
			return nil, &Error{Kind: KindOther, Op: "query", Err: fmt.Errorf("either text or embedding is required")}
		}
		if q.embedder == nil {
			return nil, &Error{Kind: KindOther, Op: "query", Err: fmt.Errorf("no embedding supplied and no embedder configured")}
		}
		emb, err := q.embedder.Embed(ctx, text)
		if err != nil {
			return nil, &Error{Kind: KindOther, Op: "embed", Err: err}
		}
		embedding = emb
	}

	key := queryCacheKey(collection, text, embedding, n, where)
	if q.cache != nil {
		if cached, ok := q.cache.Get(ctx, key); ok {
			return cached, nil
		}
	}

	results, err := q.search(ctx, collection, embedding, n, where)
	if err != nil {
		return nil, err
	}
	if q.cache != nil {
		q.cache.Set(ctx, key, QueryCacheTTL, results)
	}
	return results, nil
}

// SearchSimilar is a convenience wrapper returning a flat array, bypassing
// the text-embed path (spec.md §6).
func (q *QdrantStore) SearchSimilar(ctx context.Context, collection string, embedding []float32, n int, where map[string]string) ([]Result, error) {
	return q.search(ctx, collection, embedding, n, where)
}

func (q *QdrantStore) search(ctx context.Context, collection string, embedding []float32, n int, where map[string]string) ([]Result, error) {
	if n <= 0 {
		n = 10
	}
	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	var filter *qdrant.Filter
	if len(where) > 0 {
		must := make([]*qdrant.Condition, 0, len(where))
		for k, v := range where {
			must = append(must, qdrant.NewMatch(k, v))
		}
		filter = &qdrant.Filter{Must: must}
	}

	limit := uint64(n)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &Error{Kind: KindConnection, Op: "search", Err: err}
	}

	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		uuidStr := hit.Id.GetUuid()
		if uuidStr == "" {
			uuidStr = hit.Id.String()
		}
		metadata := make(map[string]any)
		id := uuidStr
		text := ""
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				switch k {
				case payloadIDField:
					id = v.GetStringValue()
				case payloadTextField:
					text = v.GetStringValue()
				default:
					metadata[k] = v.GetStringValue()
				}
			}
		}
		out = append(out, Result{
			ID:       id,
			Document: text,
			Metadata: metadata,
			Distance: float64(hit.Score),
		})
	}
	return out, nil
}

// Close releases the underlying gRPC connection.
func (q *QdrantStore) Close() error {
	return q.client.Close()
}
