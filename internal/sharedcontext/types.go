// Package sharedcontext implements the versioned, size-bounded, mergeable
// context object that threads through the fixed agent graph
// (Research -> Analyst -> Comparison -> Reporting). See spec.md §3-4.1.
package sharedcontext

import (
	"time"

	"finyx/internal/progress"
)

// QueryType classifies the user's financial query.
type QueryType string

const (
	QueryTypeSingleStock QueryType = "single_stock"
	QueryTypeComparison  QueryType = "comparison"
	QueryTypeTrend       QueryType = "trend"
	QueryTypeSentiment   QueryType = "sentiment"
	QueryTypeSimilarity  QueryType = "similarity"
)

// DataQuality describes how completely a symbol's research was gathered.
type DataQuality string

const (
	DataQualityComplete DataQuality = "complete"
	DataQualityPartial  DataQuality = "partial"
	DataQualityError    DataQuality = "error"
)

// SymbolStatus tracks per-symbol partial-success bookkeeping.
type SymbolStatus string

const (
	SymbolStatusSuccess SymbolStatus = "success"
	SymbolStatusFailed  SymbolStatus = "failed"
)

// ComparisonType distinguishes the two Comparison agent output shapes.
type ComparisonType string

const (
	ComparisonTypeBenchmark   ComparisonType = "benchmark"
	ComparisonTypeSideBySide  ComparisonType = "side_by_side"
)

// PriceData is the normalized stock_price payload (spec.md §6).
type PriceData struct {
	Symbol            string    `json:"symbol"`
	CurrentPrice      float64   `json:"currentPrice"`
	PreviousClose     float64   `json:"previousClose"`
	Change            float64   `json:"change"`
	ChangePercent     float64   `json:"changePercent"`
	Volume            int64     `json:"volume"`
	DayHigh           float64   `json:"dayHigh"`
	DayLow            float64   `json:"dayLow"`
	Open              *float64  `json:"open,omitempty"`
	MarketCap         *float64  `json:"marketCap,omitempty"`
	FiftyTwoWeekHigh  *float64  `json:"fiftyTwoWeekHigh,omitempty"`
	FiftyTwoWeekLow   *float64  `json:"fiftyTwoWeekLow,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// CompanyInfo is the normalized company_info payload.
type CompanyInfo struct {
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	Sector      string    `json:"sector"`
	Industry    string    `json:"industry"`
	Description string    `json:"description"`
	Employees   *int      `json:"employees,omitempty"`
	Website     string    `json:"website,omitempty"`
	Address     string    `json:"address,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// OHLCV is one bar of historical price data.
type OHLCV struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// HistoricalData is the normalized historical_data payload.
type HistoricalData struct {
	Symbol    string    `json:"symbol"`
	Period    string    `json:"period"`
	Data      []OHLCV   `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// FinancialStatements is the normalized financial_statements payload.
type FinancialStatements struct {
	Symbol        string         `json:"symbol"`
	StatementType string         `json:"statementType"`
	Data          map[string]any `json:"data"`
	Count         int            `json:"count"`
	Timestamp     time.Time      `json:"timestamp"`
}

// NewsArticle is one entry of a news payload.
type NewsArticle struct {
	Title         string    `json:"title"`
	Text          string    `json:"text,omitempty"`
	URL           string    `json:"url,omitempty"`
	Publisher     string    `json:"publisher,omitempty"`
	PublishedDate time.Time `json:"publishedDate"`
}

// NewsData is the normalized news payload.
type NewsData struct {
	Symbol    string        `json:"symbol"`
	Articles  []NewsArticle `json:"articles"`
	Count     int           `json:"count"`
	Timestamp time.Time     `json:"timestamp"`
}

// TechnicalIndicatorData is the normalized technical_indicators payload.
type TechnicalIndicatorData struct {
	Symbol     string         `json:"symbol"`
	Indicator  string         `json:"indicator"`
	Interval   string         `json:"interval"`
	TimePeriod int            `json:"timePeriod"`
	Data       map[string]any `json:"data"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ResearchPayload is everything the Research agent may attach to a symbol.
type ResearchPayload struct {
	Price       *PriceData              `json:"price,omitempty"`
	Company     *CompanyInfo            `json:"company,omitempty"`
	News        *NewsData               `json:"news,omitempty"`
	Historical  *HistoricalData         `json:"historical,omitempty"`
	Financials  *FinancialStatements    `json:"financials,omitempty"`
	Indicators  *TechnicalIndicatorData `json:"indicators,omitempty"`
}

// ResearchMeta describes how a symbol's research was assembled.
type ResearchMeta struct {
	Sources     []string    `json:"sources"`
	Timestamp   time.Time   `json:"timestamp"`
	DataQuality DataQuality `json:"dataQuality"`
}

// Recommendation is the Analyst agent's trade-action synthesis.
type Recommendation struct {
	Action     string `json:"action"` // buy | sell | hold
	Confidence string `json:"confidence"`
}

// SentimentResult is the Analyst agent's LLM-derived sentiment for a symbol.
type SentimentResult struct {
	Sentiment string   `json:"sentiment"`
	Score     float64  `json:"score"`
	Factors   []string `json:"factors,omitempty"`
	Summary   string   `json:"summary"`
}

// TrendResult is the placeholder trend-analysis output (spec.md §4.8 step 4).
type TrendResult struct {
	Periods    int    `json:"periods"`
	DataPoints int    `json:"dataPoints"`
	Trend      string `json:"trend"`
}

// AnalysisResult is the Analyst agent's per-symbol synthesis.
type AnalysisResult struct {
	Financial         map[string]float64 `json:"financial"`
	Sentiment         *SentimentResult   `json:"sentiment,omitempty"`
	Trend             *TrendResult       `json:"trend,omitempty"`
	HistoricalContext []string           `json:"historicalContext"`
	Recommendation    Recommendation     `json:"recommendation"`
}

// ComparisonTable is the side-by-side comparison grid.
type ComparisonTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ComparisonData is the Comparison agent's single output field.
type ComparisonData struct {
	Symbol              string             `json:"symbol,omitempty"`
	Symbols             []string           `json:"symbols,omitempty"`
	ComparisonType      ComparisonType     `json:"comparisonType"`
	Metrics             map[string]any     `json:"metrics"`
	HistoricalPatterns  []string           `json:"historicalPatterns,omitempty"`
	ComparisonTable     *ComparisonTable   `json:"comparisonTable,omitempty"`
	Insights            string             `json:"insights"`
}

// Citation ties a data point back to its source (spec.md §3).
type Citation struct {
	Source    string `json:"source"`
	URL       string `json:"url,omitempty"`
	Date      string `json:"date"`
	Agent     string `json:"agent,omitempty"`
	DataPoint string `json:"dataPoint,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
}

// IdentityKey returns the tuple that defines citation identity for dedup on
// exact match during merge (spec.md §3 invariants).
func (c Citation) IdentityKey() string {
	return c.Source + "\x00" + c.DataPoint + "\x00" + c.Symbol + "\x00" + c.Date
}

// ExecutionOrderEntry records one agent's wall-clock span within the run.
type ExecutionOrderEntry struct {
	Agent     string        `json:"agent"`
	StartTime time.Time     `json:"startTime"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// SimilarQuery is a prior query surfaced by the ContextCache's similarity ring.
type SimilarQuery struct {
	QueryID    string  `json:"queryId"`
	QueryText  string  `json:"queryText"`
	Similarity float64 `json:"similarity"`
}

// Context is the single evolving record passed between agents (spec.md §3).
// It is owned exclusively by the orchestrator/StateManager; agents never
// mutate it directly — see §9 "Ownership re-architecture" option (b): an
// immutable value with copy-on-write maps and an explicit merge at fan-in.
type Context struct {
	// Identity
	TransactionID  string
	SessionID      string
	ContextVersion int
	ContextSizeBytes int

	// Query
	QueryText      string
	QueryType      QueryType
	Symbols        []string
	QueryEmbedding []float32

	// Research outputs
	ResearchData     map[string]ResearchPayload
	ResearchMetadata map[string]ResearchMeta

	// Analyst outputs
	AnalysisResults  map[string]AnalysisResult
	AnalysisReasoning map[string]string
	SentimentAnalysis map[string]SentimentResult
	TrendAnalysis     map[string]TrendResult

	// Comparison
	ComparisonData ComparisonData

	// Final
	FinalReport    string
	Visualizations map[string]any

	// Attribution
	Citations         []Citation
	VectorDBReferences []string

	// Accounting
	TokenUsage     map[string]int
	ExecutionTime  map[string]float64
	AgentsExecuted []string

	// Progress
	ProgressEvents []progress.Event
	CurrentAgent   string
	CurrentTasks   map[string][]string
	ExecutionOrder []ExecutionOrderEntry

	// Incremental/similarity
	PreviousQueryID   string
	PreviousSymbols   []string
	NewSymbols        []string
	IsIncremental     bool
	SimilarQueries    []SimilarQuery
	RelatedContextIDs []string

	// Partial success
	PartialSuccess bool
	SymbolStatus   map[string]SymbolStatus
	SymbolErrors   map[string]string
}
