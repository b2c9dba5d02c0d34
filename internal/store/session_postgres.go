// Package store implements the durable-backing adapters behind
// sharedcontext.SessionStore and the best-effort analytics sink: Postgres
// for session snapshots and query history, S3 for large snapshot blobs, and
// ClickHouse for token-usage/execution analytics (spec.md §6 "Persisted
// state").
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PostgresSessionStore persists session snapshots and query history in
// Postgres. It implements sharedcontext.SessionStore structurally.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgresSessionStore connects to dsn and ensures the backing tables
// exist. An empty dsn is a caller error (wire-time validation); callers
// that want the store to be optional should skip construction entirely
// when config.StoreConfig.DatabaseURL is empty (spec.md §6 "best-effort").
func NewPostgresSessionStore(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresSessionStore, error) {
	if dsn == "" {
		return nil, errors.New("store: postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	s := &PostgresSessionStore{pool: pool, log: log}
	if err := s.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSessionStore) init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS finyx_session_snapshots (
    session_id TEXT PRIMARY KEY,
    data       BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS finyx_query_history (
    id         BIGSERIAL PRIMARY KEY,
    session_id TEXT NOT NULL,
    entry      BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS finyx_query_history_session_idx
    ON finyx_query_history(session_id, created_at);
`)
	if err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSessionStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SaveSnapshot upserts the session's latest serialized context.
func (s *PostgresSessionStore) SaveSnapshot(ctx context.Context, sessionID string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO finyx_session_snapshots (session_id, data, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (session_id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
`, sessionID, data)
	if err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the session's latest serialized context, or a nil
// slice with no error when none has been saved yet.
func (s *PostgresSessionStore) LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM finyx_session_snapshots WHERE session_id = $1`, sessionID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load snapshot: %w", err)
	}
	return data, nil
}

// AppendQueryHistory records one serialized query-history entry.
func (s *PostgresSessionStore) AppendQueryHistory(ctx context.Context, sessionID string, entry []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO finyx_query_history (session_id, entry) VALUES ($1, $2)`, sessionID, entry)
	if err != nil {
		return fmt.Errorf("store: append query history: %w", err)
	}
	return nil
}

// GetQueryHistory returns a session's query-history entries, oldest first.
func (s *PostgresSessionStore) GetQueryHistory(ctx context.Context, sessionID string) ([][]byte, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entry FROM finyx_query_history WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: get query history: %w", err)
	}
	defer rows.Close()

	var entries [][]byte
	for rows.Next() {
		var entry []byte
		if err := rows.Scan(&entry); err != nil {
			return nil, fmt.Errorf("store: scan query history: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
