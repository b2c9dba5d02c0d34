// Package config loads finyx's process configuration from the environment.
//
// This package has no dependencies on other internal packages to avoid
// import cycles — every other package that needs configuration imports this
// one, never the reverse.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LLMConfig selects and authenticates the LLM gateway backend (§6).
type LLMConfig struct {
	Provider       string // "anthropic" | "openai" | "gemini"
	AnthropicKey   string
	OpenAIKey      string
	GeminiKey      string
	Model          string
	EmbeddingModel string
}

// IntegrationsConfig carries the ENABLE_<NAME> overrides for finance sources.
type IntegrationsConfig struct {
	EnableYahooFinance bool
	EnableAlphaVantage bool
	EnableFMP          bool
	AlphaVantageAPIKey string
	FMPAPIKey          string
}

// StoreConfig configures the optional durable-backing stores. Every field is
// best-effort: an empty DSN disables the corresponding backend without
// failing startup (spec.md §4.1, "best-effort, never fail the workflow").
type StoreConfig struct {
	DatabaseURL     string // Postgres DSN for session/history persistence
	RedisURL        string // ContextCache + rate-limiter backing
	QdrantURL       string
	QdrantAPIKey    string
	SessionS3Bucket string
	ClickHouseDSN   string
	KafkaBrokers    []string
	NewsExtractFull bool // NEWS_EXTRACT_FULL_TEXT
}

// Config is the root configuration object, assembled once at process start.
type Config struct {
	LLM          LLMConfig
	Integrations IntegrationsConfig
	Store        StoreConfig
	LogDir       string
	LogLevel     string

	ContextCacheTTL   time.Duration
	VectorQueryTTL    time.Duration
	ContextSizeBudget int
	QueryHistoryLimit int
}

// Load reads the environment and applies the documented defaults (spec.md §6).
func Load() Config {
	cfg := Config{
		LLM: LLMConfig{
			Provider:       firstNonEmpty(os.Getenv("LITELLM_PROVIDER"), "anthropic"),
			AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
			OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
			GeminiKey:      os.Getenv("GEMINI_API_KEY"),
			Model:          firstNonEmpty(os.Getenv("FINYX_MODEL"), defaultModelFor(os.Getenv("LITELLM_PROVIDER"))),
			EmbeddingModel: firstNonEmpty(os.Getenv("EMBEDDING_MODEL"), "text-embedding-3-small"),
		},
		Integrations: IntegrationsConfig{
			EnableYahooFinance: envBool("ENABLE_YAHOO_FINANCE", true),
			EnableAlphaVantage: envBool("ENABLE_ALPHA_VANTAGE", true),
			EnableFMP:          envBool("ENABLE_FMP", true),
			AlphaVantageAPIKey: os.Getenv("ALPHA_VANTAGE_API_KEY"),
			FMPAPIKey:          os.Getenv("FMP_API_KEY"),
		},
		Store: StoreConfig{
			DatabaseURL:     os.Getenv("DATABASE_URL"),
			RedisURL:        os.Getenv("REDIS_URL"),
			QdrantURL:       firstNonEmpty(os.Getenv("QDRANT_URL"), os.Getenv("CHROMA_DB_PATH")),
			QdrantAPIKey:    os.Getenv("QDRANT_API_KEY"),
			SessionS3Bucket: os.Getenv("SESSION_S3_BUCKET"),
			ClickHouseDSN:   os.Getenv("CLICKHOUSE_DSN"),
			KafkaBrokers:    splitCSV(os.Getenv("KAFKA_BROKERS")),
			NewsExtractFull: envBool("NEWS_EXTRACT_FULL_TEXT", false),
		},
		LogDir:   os.Getenv("LOG_DIR"),
		LogLevel: firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),

		ContextCacheTTL:   24 * time.Hour,
		VectorQueryTTL:    time.Hour,
		ContextSizeBudget: 1_000_000,
		QueryHistoryLimit: 100,
	}
	return cfg
}

// IsEnabled resolves an integration's enabled state honoring the
// ENABLE_<UPPER> env-var override (which wins over the config-file value),
// defaulting to true when unset (spec.md §4.4).
func (c IntegrationsConfig) IsEnabled(name string) bool {
	switch strings.ToLower(name) {
	case "yahoo_finance":
		return c.EnableYahooFinance
	case "alpha_vantage":
		return c.EnableAlphaVantage
	case "fmp":
		return c.EnableFMP
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultModelFor(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return "gpt-4o-mini"
	case "gemini":
		return "gemini-2.0-flash"
	default:
		return "claude-sonnet-4-5"
	}
}
