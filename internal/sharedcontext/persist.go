package sharedcontext

import (
	"context"
	"encoding/json"
)

const queryHistoryRingSize = 100

// SessionStore is the durable-backing contract StateManager persists
// through. Implementations (internal/store) are best-effort: every method
// here must never cause the workflow to fail on error — callers log and
// continue (spec.md §4.1, §6 "Persisted state").
type SessionStore interface {
	SaveSnapshot(ctx context.Context, sessionID string, data []byte) error
	LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error)
	AppendQueryHistory(ctx context.Context, sessionID string, entry []byte) error
	GetQueryHistory(ctx context.Context, sessionID string) ([][]byte, error)
}

// SaveStateForSession serializes c and hands it to store. Failures are
// logged and swallowed — persistence is best-effort (spec.md §4.1).
func (sm *StateManager) SaveStateForSession(ctx context.Context, store SessionStore, sessionID string, c *Context) {
	if store == nil || sessionID == "" {
		return
	}
	b, err := json.Marshal(c)
	if err != nil {
		sm.log.Warn().Err(err).Str("sessionId", sessionID).Msg("session snapshot serialization failed")
		return
	}
	if err := store.SaveSnapshot(ctx, sessionID, b); err != nil {
		sm.log.Warn().Err(err).Str("sessionId", sessionID).Msg("session snapshot save failed")
	}
}

// LoadStateForSession returns nil (not an error) when no snapshot exists or
// the backend is unavailable — missing files are not errors (spec.md §6).
func (sm *StateManager) LoadStateForSession(ctx context.Context, store SessionStore, sessionID string) *Context {
	if store == nil || sessionID == "" {
		return nil
	}
	b, err := store.LoadSnapshot(ctx, sessionID)
	if err != nil || len(b) == 0 {
		return nil
	}
	var c Context
	if err := json.Unmarshal(b, &c); err != nil {
		sm.log.Warn().Err(err).Str("sessionId", sessionID).Msg("session snapshot deserialization failed")
		return nil
	}
	return &c
}

// SaveQueryToHistory appends c's query to sessionID's history ring
// (capped at 100 entries, spec.md §6).
func (sm *StateManager) SaveQueryToHistory(ctx context.Context, store SessionStore, sessionID string, c *Context) {
	if store == nil || sessionID == "" {
		return
	}
	entry := queryHistoryEntry{
		TransactionID: c.TransactionID,
		QueryText:     c.QueryText,
		QueryType:     c.QueryType,
		Symbols:       c.Symbols,
	}
	b, err := json.Marshal(entry)
	if err != nil {
		sm.log.Warn().Err(err).Str("sessionId", sessionID).Msg("query history serialization failed")
		return
	}
	if err := store.AppendQueryHistory(ctx, sessionID, b); err != nil {
		sm.log.Warn().Err(err).Str("sessionId", sessionID).Msg("query history append failed")
	}
}

// GetQueryHistory returns up to the last 100 history entries for sessionID,
// newest last. Backend failures return an empty slice, never an error.
func (sm *StateManager) GetQueryHistory(ctx context.Context, store SessionStore, sessionID string) []queryHistoryEntry {
	if store == nil || sessionID == "" {
		return nil
	}
	raw, err := store.GetQueryHistory(ctx, sessionID)
	if err != nil {
		sm.log.Warn().Err(err).Str("sessionId", sessionID).Msg("query history fetch failed")
		return nil
	}
	if len(raw) > queryHistoryRingSize {
		raw = raw[len(raw)-queryHistoryRingSize:]
	}
	out := make([]queryHistoryEntry, 0, len(raw))
	for _, b := range raw {
		var e queryHistoryEntry
		if err := json.Unmarshal(b, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

// queryHistoryEntry is one ring entry of a session's query history
// (spec.md §6 "<sessionId>_history.json").
type queryHistoryEntry struct {
	TransactionID string    `json:"transactionId"`
	QueryText     string    `json:"queryText"`
	QueryType     QueryType `json:"queryType"`
	Symbols       []string  `json:"symbols"`
}
