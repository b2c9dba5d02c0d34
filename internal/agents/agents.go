// Package agents implements the four fixed pipeline stages — Research,
// Analyst, Comparison, Reporting (spec.md §4.7-§4.10) — as functions over a
// shared Deps bundle. Each agent clones the incoming context per unit of
// fan-out work, lets the unit mutate only its own clone through the
// StateManager, and merges clones back with sharedcontext.MergeParallelContexts
// — the same ownership discipline state_manager.go documents for the
// orchestrator as a whole.
package agents

import (
	"time"

	"github.com/rs/zerolog"

	"finyx/internal/cache"
	"finyx/internal/dataclient"
	"finyx/internal/llmgateway"
	"finyx/internal/progress"
	"finyx/internal/sharedcontext"
	"finyx/internal/vectorstore"
)

// Agent display names, matching the original's agent names (spec.md §8
// Scenario S1: agentsExecuted == ["Research Agent", "Analyst Agent",
// "Comparison Agent", "Reporting Agent"]). Used everywhere an agent label is
// threaded into progress events, execution bookkeeping, or agentsExecuted.
const (
	AgentResearch   = "Research Agent"
	AgentAnalyst    = "Analyst Agent"
	AgentComparison = "Comparison Agent"
	AgentReporting  = "Reporting Agent"
)

// Deps bundles every collaborator an agent needs. Constructed once by
// cmd/finyx and shared read-only across the whole pipeline run.
type Deps struct {
	Data    *dataclient.Client
	Store   vectorstore.Store
	LLM     *llmgateway.Gateway
	State   *sharedcontext.StateManager
	Context *cache.ContextCache
	Log     zerolog.Logger
}

// dataFetchWorkerLimit is the Research agent's data-fetching pool size
// (spec.md §4.7 "Data-fetching: min(|symbols| x 5, 20)").
func dataFetchWorkerLimit(numSymbols int) int {
	return min(numSymbols*5, 20)
}

// analysisWorkerLimit is the Analyst agent's pool size (spec.md §4.7/§4.8
// "Analysis: min(|symbols| x 4, 16)").
func analysisWorkerLimit(numSymbols int) int {
	return min(numSymbols*4, 16)
}

// cloneForFanout builds an empty child context carrying only the identity
// and query fields every fan-out unit needs to read, so concurrent units
// never share a mutable Context (spec.md §4.1 ownership discipline).
func cloneForFanout(parent *sharedcontext.Context) *sharedcontext.Context {
	return &sharedcontext.Context{
		TransactionID:     parent.TransactionID,
		SessionID:         parent.SessionID,
		ContextVersion:    parent.ContextVersion,
		QueryText:         parent.QueryText,
		QueryType:         parent.QueryType,
		Symbols:           parent.Symbols,
		QueryEmbedding:    parent.QueryEmbedding,
		ResearchData:      map[string]sharedcontext.ResearchPayload{},
		ResearchMetadata:  map[string]sharedcontext.ResearchMeta{},
		AnalysisResults:   map[string]sharedcontext.AnalysisResult{},
		AnalysisReasoning: map[string]string{},
		SentimentAnalysis: map[string]sharedcontext.SentimentResult{},
		TrendAnalysis:     map[string]sharedcontext.TrendResult{},
		ComparisonData:    sharedcontext.ComparisonData{Metrics: map[string]any{}},
		Visualizations:    map[string]any{},
		TokenUsage:        map[string]int{},
		ExecutionTime:     map[string]float64{},
		SymbolStatus:      map[string]sharedcontext.SymbolStatus{},
		SymbolErrors:      map[string]string{},
	}
}

// runWithLifecycle wraps an agent body with the canonical start/complete
// progress events, execution-order bookkeeping, and agentsExecuted marker
// (spec.md §4.2), merging fanOuts (per-unit clones produced by the body)
// back into parent via MergeParallelContexts before returning.
func runWithLifecycle(sm *sharedcontext.StateManager, parent *sharedcontext.Context, agent string, body func() ([]*sharedcontext.Context, error)) (*sharedcontext.Context, error) {
	order := len(parent.ProgressEvents)
	sm.AddProgressEvent(parent, progress.AgentStart(agent, parent.TransactionID, order, false))

	start := time.Now()
	fanOuts, err := body()
	end := time.Now()

	merged := sm.MergeParallelContexts(append([]*sharedcontext.Context{parent}, fanOuts...))
	sm.AddExecutionOrderEntry(merged, agent, start, &end)
	sm.TrackExecutionTime(merged, agent, end.Sub(start).Seconds())
	sm.AddProgressEvent(merged, progress.AgentComplete(agent, merged.TransactionID, len(merged.ProgressEvents), false))
	sm.MarkAgentExecuted(merged, agent)
	return merged, err
}
