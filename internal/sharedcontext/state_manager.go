package sharedcontext

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"finyx/internal/guardrails"
	"finyx/internal/progress"
)

// Default size budgets and thresholds (spec.md §3, §4.1).
const (
	DefaultMaxContextBytes = 1_000_000
	maxAnalysisReasonLen   = 1000
	truncatedReasonLen     = 500
	progressEventTail      = 50
	metadataMaxAge         = 24 * time.Hour
)

// StateManager is the sole mutator of Context. Every write path funnels
// through it so that callers never hold a mutable alias into a Context
// another goroutine is simultaneously writing (spec.md §4.1).
type StateManager struct {
	log zerolog.Logger
}

// NewStateManager builds a StateManager that logs size-accounting warnings
// through log.
func NewStateManager(log zerolog.Logger) *StateManager {
	return &StateManager{log: log}
}

// CreateInitial builds a fresh Context for a new query. queryType and
// symbols are derived when not supplied by the caller (spec.md §4.1).
func (sm *StateManager) CreateInitial(query string, queryType QueryType, symbols []string, transactionID string) *Context {
	if transactionID == "" {
		transactionID = newTransactionID()
	}
	if queryType == "" {
		queryType = DetectQueryType(query)
	}
	if symbols == nil {
		symbols = guardrails.ExtractSymbols(query)
	}

	c := &Context{
		TransactionID:     transactionID,
		ContextVersion:    1,
		QueryText:         query,
		QueryType:         queryType,
		Symbols:           symbols,
		ResearchData:      map[string]ResearchPayload{},
		ResearchMetadata:  map[string]ResearchMeta{},
		AnalysisResults:   map[string]AnalysisResult{},
		AnalysisReasoning: map[string]string{},
		SentimentAnalysis: map[string]SentimentResult{},
		TrendAnalysis:     map[string]TrendResult{},
		ComparisonData:    ComparisonData{Metrics: map[string]any{}},
		Visualizations:    map[string]any{},
		TokenUsage:        map[string]int{},
		ExecutionTime:     map[string]float64{},
		CurrentTasks:      map[string][]string{},
		SymbolStatus:      map[string]SymbolStatus{},
		SymbolErrors:      map[string]string{},
	}
	sm.calculateContextSize(c)
	return c
}

// DetectQueryType applies the case-insensitive, first-match-wins keyword
// table (spec.md §9).
func DetectQueryType(query string) QueryType {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, "compare", "comparison", "vs", "versus"):
		return QueryTypeComparison
	case containsAny(q, "trend", "trends", "pattern", "patterns"):
		return QueryTypeTrend
	case containsAny(q, "sentiment", "news", "impact"):
		return QueryTypeSentiment
	case containsAny(q, "similar", "like", "same as"):
		return QueryTypeSimilarity
	default:
		return QueryTypeSingleStock
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func newTransactionID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// UpdateResearchData attaches a symbol's research payload and bumps contextVersion.
func (sm *StateManager) UpdateResearchData(c *Context, symbol string, payload ResearchPayload, meta ResearchMeta) {
	if c.ResearchData == nil {
		c.ResearchData = map[string]ResearchPayload{}
	}
	if c.ResearchMetadata == nil {
		c.ResearchMetadata = map[string]ResearchMeta{}
	}
	c.ResearchData[symbol] = payload
	c.ResearchMetadata[symbol] = meta
	sm.bumpVersion(c)
}

// UpdateAnalysisResults attaches a symbol's analysis synthesis.
func (sm *StateManager) UpdateAnalysisResults(c *Context, symbol string, result AnalysisResult, reasoning string) {
	if c.AnalysisResults == nil {
		c.AnalysisResults = map[string]AnalysisResult{}
	}
	if c.AnalysisReasoning == nil {
		c.AnalysisReasoning = map[string]string{}
	}
	c.AnalysisResults[symbol] = result
	if reasoning != "" {
		c.AnalysisReasoning[symbol] = reasoning
	}
	if result.Sentiment != nil {
		if c.SentimentAnalysis == nil {
			c.SentimentAnalysis = map[string]SentimentResult{}
		}
		c.SentimentAnalysis[symbol] = *result.Sentiment
	}
	if result.Trend != nil {
		if c.TrendAnalysis == nil {
			c.TrendAnalysis = map[string]TrendResult{}
		}
		c.TrendAnalysis[symbol] = *result.Trend
	}
	sm.bumpVersion(c)
}

// UpdateComparisonData sets the Comparison agent's single output field.
func (sm *StateManager) UpdateComparisonData(c *Context, data ComparisonData) {
	c.ComparisonData = data
	sm.bumpVersion(c)
}

// UpdateFinalReport sets the Reporting agent's terminal output.
func (sm *StateManager) UpdateFinalReport(c *Context, report string, visualizations map[string]any) {
	c.FinalReport = report
	if visualizations != nil {
		c.Visualizations = visualizations
	}
	sm.bumpVersion(c)
}

// MarkSymbolStatus records a symbol's partial-success outcome.
func (sm *StateManager) MarkSymbolStatus(c *Context, symbol string, status SymbolStatus, errMsg string) {
	if c.SymbolStatus == nil {
		c.SymbolStatus = map[string]SymbolStatus{}
	}
	c.SymbolStatus[symbol] = status
	if status == SymbolStatusFailed {
		if c.SymbolErrors == nil {
			c.SymbolErrors = map[string]string{}
		}
		c.SymbolErrors[symbol] = errMsg
		c.PartialSuccess = true
	}
}

// AddCitation appends a citation, deduping on exact identity (spec.md §3).
func (sm *StateManager) AddCitation(c *Context, cit Citation) {
	key := cit.IdentityKey()
	for _, existing := range c.Citations {
		if existing.IdentityKey() == key {
			return
		}
	}
	c.Citations = append(c.Citations, cit)
}

// TrackTokenUsage additively accumulates tokens spent by an agent.
func (sm *StateManager) TrackTokenUsage(c *Context, agent string, tokens int) {
	if c.TokenUsage == nil {
		c.TokenUsage = map[string]int{}
	}
	c.TokenUsage[agent] += tokens
}

// TrackExecutionTime overwrites the last-known execution time for an agent.
func (sm *StateManager) TrackExecutionTime(c *Context, agent string, seconds float64) {
	if c.ExecutionTime == nil {
		c.ExecutionTime = map[string]float64{}
	}
	c.ExecutionTime[agent] = seconds
}

// MarkAgentExecuted idempotently appends agent to the ordered agentsExecuted list.
func (sm *StateManager) MarkAgentExecuted(c *Context, agent string) {
	for _, a := range c.AgentsExecuted {
		if a == agent {
			return
		}
	}
	c.AgentsExecuted = append(c.AgentsExecuted, agent)
}

// AddProgressEvent appends an event and refreshes currentAgent/currentTasks.
func (sm *StateManager) AddProgressEvent(c *Context, e progress.Event) {
	c.ProgressEvents = append(c.ProgressEvents, e)
	c.CurrentAgent = progress.CurrentAgent(c.ProgressEvents)
	c.CurrentTasks = progress.CurrentTasks(c.ProgressEvents)
}

// AddExecutionOrderEntry appends an agent's wall-clock span.
func (sm *StateManager) AddExecutionOrderEntry(c *Context, agent string, start time.Time, end *time.Time) {
	entry := ExecutionOrderEntry{Agent: agent, StartTime: start, EndTime: end}
	if end != nil {
		entry.Duration = end.Sub(start)
	}
	c.ExecutionOrder = append(c.ExecutionOrder, entry)
}

func (sm *StateManager) bumpVersion(c *Context) {
	c.ContextVersion++
	sm.calculateContextSize(c)
}

// calculateContextSize recomputes contextSizeBytes using a stable JSON
// encoding. Serialization failures degrade to size 0 plus a warning log,
// never an error return (spec.md §4.1).
func (sm *StateManager) calculateContextSize(c *Context) {
	b, err := json.Marshal(c)
	if err != nil {
		c.ContextSizeBytes = 0
		sm.log.Warn().Err(err).Str("transactionId", c.TransactionID).Msg("context size accounting failed")
		return
	}
	c.ContextSizeBytes = len(b)
}

// CalculateContextSize is the exported form used by callers outside the
// package (the orchestrator, tests) that need an up-to-date byte count
// without performing a mutation.
func (sm *StateManager) CalculateContextSize(c *Context) int {
	sm.calculateContextSize(c)
	return c.ContextSizeBytes
}
