package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog"

	"finyx/internal/sharedcontext"
)

// AnalyticsSink mirrors a completed run's token usage and citation counts
// into ClickHouse for durable, queryable history, following the teacher's
// in-memory-counters-mirrored-to-clickhouse idiom
// (internal/agentd/metrics_clickhouse.go). It never blocks or fails the
// workflow: every method here is expected to be called after a run
// completes, with the caller logging and discarding any error.
type AnalyticsSink struct {
	conn clickhouse.Conn
	log  zerolog.Logger
}

// NewAnalyticsSink opens a ClickHouse connection from dsn and ensures the
// backing tables exist.
func NewAnalyticsSink(ctx context.Context, dsn string, log zerolog.Logger) (*AnalyticsSink, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse clickhouse dsn: %w", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store: ping clickhouse: %w", err)
	}

	s := &AnalyticsSink{conn: conn, log: log}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AnalyticsSink) init(ctx context.Context) error {
	if err := s.conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS finyx_token_usage (
    transaction_id String,
    session_id     String,
    agent          String,
    tokens         UInt32,
    recorded_at    DateTime
) ENGINE = MergeTree()
ORDER BY (transaction_id, agent, recorded_at)
`); err != nil {
		return fmt.Errorf("store: create token usage table: %w", err)
	}

	if err := s.conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS finyx_citations (
    transaction_id String,
    session_id     String,
    symbol         String,
    source         String,
    data_point     String,
    recorded_at    DateTime
) ENGINE = MergeTree()
ORDER BY (transaction_id, symbol, recorded_at)
`); err != nil {
		return fmt.Errorf("store: create citations table: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *AnalyticsSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// RecordRun inserts one row per agent's token tally and one row per
// citation accumulated during a completed pipeline run.
func (s *AnalyticsSink) RecordRun(ctx context.Context, c *sharedcontext.Context) error {
	now := time.Now()

	if len(c.TokenUsage) > 0 {
		batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO finyx_token_usage")
		if err != nil {
			return fmt.Errorf("store: prepare token usage batch: %w", err)
		}
		for agent, tokens := range c.TokenUsage {
			if err := batch.Append(c.TransactionID, c.SessionID, agent, uint32(tokens), now); err != nil {
				return fmt.Errorf("store: append token usage row: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("store: send token usage batch: %w", err)
		}
	}

	if len(c.Citations) > 0 {
		batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO finyx_citations")
		if err != nil {
			return fmt.Errorf("store: prepare citations batch: %w", err)
		}
		for _, cit := range c.Citations {
			if err := batch.Append(c.TransactionID, c.SessionID, cit.Symbol, cit.Source, cit.DataPoint, now); err != nil {
				return fmt.Errorf("store: append citation row: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("store: send citations batch: %w", err)
		}
	}

	return nil
}

// TotalTokens returns the all-time summed token usage for an agent across
// every recorded run, supporting the "historical queries" use case
// described in SPEC_FULL.md's analytics-sink rationale.
func (s *AnalyticsSink) TotalTokens(ctx context.Context, agent string) (int64, error) {
	row := s.conn.QueryRow(ctx,
		`SELECT sum(tokens) FROM finyx_token_usage WHERE agent = ?`, agent)
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("store: total tokens: %w", err)
	}
	return total, nil
}
