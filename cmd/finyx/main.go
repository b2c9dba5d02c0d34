// Command finyx runs one financial-query pipeline end to end: it loads
// configuration, wires every collaborator (finance-data sources, the vector
// store, the LLM gateway, caches, and the optional durable-backing stores),
// and drives a single query through internal/orchestrator.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"finyx/internal/agents"
	"finyx/internal/cache"
	"finyx/internal/config"
	"finyx/internal/dataclient"
	"finyx/internal/eventbus"
	"finyx/internal/guardrails"
	"finyx/internal/integrations"
	"finyx/internal/llmgateway"
	"finyx/internal/observability"
	"finyx/internal/orchestrator"
	"finyx/internal/sharedcontext"
	"finyx/internal/sources"
	"finyx/internal/store"
	"finyx/internal/vectorstore"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("finyx")
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.Load()
	observability.InitLogger(cfg.LogDir, cfg.LogLevel)

	query := os.Getenv("FINYX_QUERY")
	if len(os.Args) > 1 {
		query = os.Args[1]
	}
	if query == "" {
		return fmt.Errorf("finyx: usage: finyx \"<query>\" (or set FINYX_QUERY)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sanitized, verr := guardrails.SanitizeInput(query)
	if verr != nil {
		return fmt.Errorf("finyx: %s", verr.Error())
	}
	if verr := guardrails.ValidateQuery(sanitized); verr != nil {
		return fmt.Errorf("finyx: %s", verr.Error())
	}

	wf, err := wire(ctx, cfg)
	if err != nil {
		return fmt.Errorf("finyx: wire dependencies: %w", err)
	}

	intent := guardrails.CheckQueryIntent(sanitized)
	initial := wf.State.CreateInitial(sanitized, sharedcontext.QueryType(intent.QueryType), intent.Symbols, "")

	final, err := wf.Run(ctx, initial)
	if err != nil {
		return fmt.Errorf("finyx: %w", err)
	}

	fmt.Println(final.FinalReport)
	if final.PartialSuccess {
		log.Warn().Strs("symbols", final.Symbols).Msg("finyx: run completed with partial success")
	}
	return nil
}

// wire builds every collaborator from cfg and assembles the fixed-graph
// Workflow. The Postgres, ClickHouse and Kafka collaborators are optional:
// an empty DSN/broker list simply omits that collaborator rather than
// failing startup (spec.md §4.1 "best-effort"). S3 snapshot archival
// (store.SnapshotArchiver) is not wired here.
func wire(ctx context.Context, cfg config.Config) (*orchestrator.Workflow, error) {
	log := log.Logger

	llm, err := llmgateway.NewFromConfig(ctx, cfg.LLM, log)
	if err != nil {
		return nil, fmt.Errorf("llm gateway: %w", err)
	}

	var redisClient *redis.Client
	var cacheClient *cache.Client
	if cfg.Store.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Store.RedisURL})
		cacheClient = cache.NewClientFrom(redisClient, log)
	}
	contextCache := cache.NewContextCache(cacheClient, cfg.ContextCacheTTL)
	vectorQueryCache := cache.NewVectorQueryCache(cacheClient)

	vecStore, err := vectorstore.NewQdrantStore(cfg.Store.QdrantURL, "cosine", gatewayEmbedder{llm}, vectorQueryCache, log)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}

	httpClient := observability.NewHTTPClient(&http.Client{Timeout: 30 * time.Second})
	yahoo := sources.NewYahooClient(httpClient, log, cfg.Store.NewsExtractFull)
	alphaVantage := sources.NewAlphaVantageClient(httpClient, cfg.Integrations.AlphaVantageAPIKey, log)
	fmpClient := sources.NewFMPClient(httpClient, cfg.Integrations.FMPAPIKey, log)
	if redisClient != nil {
		yahoo.RateLimiter().WithRedis(redisClient, "finyx:ratelimit:yahoo_finance")
		alphaVantage.RateLimiter().WithRedis(redisClient, "finyx:ratelimit:alpha_vantage")
		fmpClient.RateLimiter().WithRedis(redisClient, "finyx:ratelimit:fmp")
	}

	integ := integrations.New(cfg.Integrations)
	dataClient := dataclient.New(map[string]sources.Client{
		integrations.SourceYahooFinance: yahoo,
		integrations.SourceAlphaVantage: alphaVantage,
		integrations.SourceFMP:          fmpClient,
	}, integ, log)

	state := sharedcontext.NewStateManager(log)
	deps := &agents.Deps{
		Data:    dataClient,
		Store:   vecStore,
		LLM:     llm,
		State:   state,
		Context: contextCache,
		Log:     log,
	}

	wf := orchestrator.New(deps, state, log)
	wf.ContextBudget = cfg.ContextSizeBudget
	wf.Publisher = eventbus.NewPublisher(cfg.Store.KafkaBrokers, "finyx.progress", log)

	if cfg.Store.DatabaseURL != "" {
		session, err := store.NewPostgresSessionStore(ctx, cfg.Store.DatabaseURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("finyx: postgres session store unavailable, continuing without persistence")
		} else {
			wf.Session = session
		}
	}
	if cfg.Store.ClickHouseDSN != "" {
		analytics, err := store.NewAnalyticsSink(ctx, cfg.Store.ClickHouseDSN, log)
		if err != nil {
			log.Warn().Err(err).Msg("finyx: clickhouse analytics sink unavailable, continuing without it")
		} else {
			wf.Analytics = analytics
		}
	}

	return wf, nil
}

// gatewayEmbedder adapts Gateway.Embed, which returns a zero vector instead
// of an error, to vectorstore.Embedder.
type gatewayEmbedder struct{ g *llmgateway.Gateway }

func (e gatewayEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.g.Embed(ctx, text), nil
}
