package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"finyx/internal/llmgateway"
	"finyx/internal/progress"
	"finyx/internal/sharedcontext"
	"finyx/internal/vectorstore"
)

const (
	sentimentArticleLimit   = 5
	historicalPatternHits   = 5
	sentimentBuyThreshold   = 0.3
	sentimentSellThreshold  = -0.3
	sentimentSummaryMaxLen  = 200
	analysisTemperature     = 0.3
	analysisMaxTokens       = 600
)

// RunAnalyst executes the Analyst agent (spec.md §4.8).
func (d *Deps) RunAnalyst(ctx context.Context, parent *sharedcontext.Context) (*sharedcontext.Context, error) {
	if len(parent.ResearchData) == 0 {
		return parent, fmt.Errorf("analyst: researchData is required")
	}

	return runWithLifecycle(d.State, parent, AgentAnalyst, func() ([]*sharedcontext.Context, error) {
		symbols := make([]string, 0, len(parent.ResearchData))
		for symbol := range parent.ResearchData {
			symbols = append(symbols, symbol)
		}
		limit := analysisWorkerLimit(len(symbols))
		clones := make([]*sharedcontext.Context, len(symbols))
		parallelForEach(ctx, limit, symbols, func(ctx context.Context, idx int, symbol string) {
			clones[idx] = d.analyzeSymbol(ctx, parent, symbol)
		})
		return clones, nil
	})
}

// analyzeSymbol runs the four concurrent analysis subtasks for symbol, then
// synthesizes a recommendation (spec.md §4.8).
func (d *Deps) analyzeSymbol(ctx context.Context, parent *sharedcontext.Context, symbol string) *sharedcontext.Context {
	child := cloneForFanout(parent)
	order := len(parent.ProgressEvents)
	d.State.AddProgressEvent(child, progress.TaskStart(AgentAnalyst, "analyze", symbol, parent.TransactionID, order, true))

	research := parent.ResearchData[symbol]

	var (
		mu         sync.Mutex
		historical []string
		financial  = map[string]float64{}
		sentiment  *sharedcontext.SentimentResult
		trend      *sharedcontext.TrendResult
	)

	type subtask struct{ name string }
	subtasks := []subtask{{"historical_pattern"}, {"financial"}, {"sentiment"}, {"trend"}}

	parallelForEach(ctx, len(subtasks), subtasks, func(ctx context.Context, _ int, st subtask) {
		switch st.name {
		case "historical_pattern":
			hits := d.historicalPatternLookup(ctx, symbol, research)
			mu.Lock()
			historical = hits
			mu.Unlock()
		case "financial":
			metrics := extractFinancialMetrics(research)
			mu.Lock()
			for k, v := range metrics {
				financial[k] = v
			}
			mu.Unlock()
		case "sentiment":
			if research.News == nil || len(research.News.Articles) == 0 {
				return
			}
			s, tokens := d.analyzeSentiment(ctx, symbol, research.News)
			mu.Lock()
			sentiment = s
			mu.Unlock()
			d.State.TrackTokenUsage(child, AgentAnalyst, tokens)
		case "trend":
			if research.Historical == nil {
				return
			}
			if parent.QueryType != sharedcontext.QueryTypeTrend && parent.QueryType != sharedcontext.QueryTypeComparison {
				return
			}
			t := trendPlaceholder(research.Historical)
			mu.Lock()
			trend = &t
			mu.Unlock()
		}
	})

	recommendation := synthesizeRecommendation(sentiment)
	reasoning := buildAnalysisReasoning(symbol, financial, sentiment, recommendation)

	result := sharedcontext.AnalysisResult{
		Financial:         financial,
		Sentiment:         sentiment,
		Trend:             trend,
		HistoricalContext: historical,
		Recommendation:    recommendation,
	}
	d.State.UpdateAnalysisResults(child, symbol, result, reasoning)
	d.State.MarkSymbolStatus(child, symbol, sharedcontext.SymbolStatusSuccess, "")
	d.State.AddProgressEvent(child, progress.TaskComplete(AgentAnalyst, "analyze", symbol, parent.TransactionID, order, true))
	return child
}

// historicalPatternLookup composes a query from price/market-cap/sector and
// searches the company_analysis collection for similar prior analyses,
// excluding the current symbol (spec.md §4.8 step 1). The adapter's where
// clause only supports equality matches, so "symbol != current" is applied
// client-side after retrieval rather than pushed into the query filter.
func (d *Deps) historicalPatternLookup(ctx context.Context, symbol string, research sharedcontext.ResearchPayload) []string {
	if d.Store == nil {
		return nil
	}
	var parts []string
	if research.Price != nil {
		parts = append(parts, fmt.Sprintf("price %.2f", research.Price.CurrentPrice))
		if research.Price.MarketCap != nil {
			parts = append(parts, fmt.Sprintf("market cap %.0f", *research.Price.MarketCap))
		}
	}
	if research.Company != nil {
		parts = append(parts, "sector "+research.Company.Sector)
	}
	if len(parts) == 0 {
		return nil
	}
	query := strings.Join(parts, ", ")
	embedding := d.LLM.Embed(ctx, query)
	results, err := d.Store.SearchSimilar(ctx, vectorstore.CollectionCompanyAnalysis, embedding, historicalPatternHits+1, nil)
	if err != nil {
		d.Log.Warn().Err(err).Str("symbol", symbol).Msg("historical pattern lookup failed")
		return nil
	}
	out := make([]string, 0, historicalPatternHits)
	for _, r := range results {
		if sym, ok := r.Metadata["symbol"]; ok && fmt.Sprintf("%v", sym) == symbol {
			continue
		}
		out = append(out, r.Document)
		if len(out) >= historicalPatternHits {
			break
		}
	}
	return out
}

// extractFinancialMetrics builds a flat numeric map from price and
// financials (spec.md §4.8 step 2).
func extractFinancialMetrics(research sharedcontext.ResearchPayload) map[string]float64 {
	out := map[string]float64{}
	if research.Price != nil {
		out["currentPrice"] = research.Price.CurrentPrice
		out["changePercent"] = research.Price.ChangePercent
		out["volume"] = float64(research.Price.Volume)
		if research.Price.MarketCap != nil {
			out["marketCap"] = *research.Price.MarketCap
		}
	}
	if research.Financials != nil {
		for k, v := range research.Financials.Data {
			if f, ok := toFloat(v); ok {
				out[k] = f
			}
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// sentimentSchema is the structured JSON the Analyst agent asks the LLM for
// (spec.md §4.8 step 3).
type sentimentSchema struct {
	Sentiment string   `json:"sentiment"`
	Score     float64  `json:"score"`
	Factors   []string `json:"factors"`
	Summary   string   `json:"summary"`
}

// analyzeSentiment concatenates up to sentimentArticleLimit articles and asks
// the LLM for structured sentiment, downgrading to a neutral default on
// unparseable output (spec.md §4.8 step 3).
func (d *Deps) analyzeSentiment(ctx context.Context, symbol string, news *sharedcontext.NewsData) (*sharedcontext.SentimentResult, int) {
	var b strings.Builder
	for i, a := range news.Articles {
		if i >= sentimentArticleLimit {
			break
		}
		fmt.Fprintf(&b, "Title: %s\n%s\n\n", a.Title, a.Text)
	}

	prompt := fmt.Sprintf(
		"Analyze the sentiment of this news for %s. Respond with JSON only: "+
			`{"sentiment": "positive|neutral|negative", "score": <float -1..1>, "factors": [...], "summary": "..."}`+
			"\n\n%s", symbol, b.String())

	result, err := d.LLM.Complete(ctx, []llmgateway.Message{
		{Role: "system", Content: "You are a financial sentiment analyst. Respond with JSON only."},
		{Role: "user", Content: prompt},
	}, "", analysisTemperature, analysisMaxTokens)
	if err != nil {
		d.Log.Warn().Err(err).Str("symbol", symbol).Msg("sentiment completion failed")
		return &sharedcontext.SentimentResult{Sentiment: "neutral", Score: 0, Summary: "sentiment analysis unavailable"}, 0
	}

	var parsed sentimentSchema
	if err := json.Unmarshal([]byte(extractJSON(result.Content)), &parsed); err != nil {
		summary := result.Content
		if len(summary) > sentimentSummaryMaxLen {
			summary = summary[:sentimentSummaryMaxLen]
		}
		return &sharedcontext.SentimentResult{Sentiment: "neutral", Score: 0, Summary: summary}, result.TotalTokens
	}
	return &sharedcontext.SentimentResult{
		Sentiment: parsed.Sentiment,
		Score:     parsed.Score,
		Factors:   parsed.Factors,
		Summary:   parsed.Summary,
	}, result.TotalTokens
}

// extractJSON trims any leading/trailing prose a model adds around a JSON
// object despite being asked for JSON only.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// trendPlaceholder captures the Trend-analysis placeholder shape (spec.md
// §4.8 step 4: "captures periods, dataPoints, trend:'analyzing'").
func trendPlaceholder(hist *sharedcontext.HistoricalData) sharedcontext.TrendResult {
	return sharedcontext.TrendResult{
		Periods:    len(hist.Data),
		DataPoints: len(hist.Data),
		Trend:      "analyzing",
	}
}

// synthesizeRecommendation applies the sentiment-score recommendation rule
// (spec.md §4.8 synthesis step).
func synthesizeRecommendation(sentiment *sharedcontext.SentimentResult) sharedcontext.Recommendation {
	rec := sharedcontext.Recommendation{Action: "hold", Confidence: "medium"}
	if sentiment == nil {
		return rec
	}
	switch {
	case sentiment.Score > sentimentBuyThreshold:
		rec.Action = "buy"
	case sentiment.Score < sentimentSellThreshold:
		rec.Action = "sell"
	}
	return rec
}

// buildAnalysisReasoning concatenates the financial, sentiment, and
// recommendation lines into a human-readable summary (spec.md §4.8).
func buildAnalysisReasoning(symbol string, financial map[string]float64, sentiment *sharedcontext.SentimentResult, rec sharedcontext.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s financial metrics: ", symbol)
	if price, ok := financial["currentPrice"]; ok {
		fmt.Fprintf(&b, "price %.2f, ", price)
	}
	if change, ok := financial["changePercent"]; ok {
		fmt.Fprintf(&b, "change %.2f%%. ", change)
	} else {
		b.WriteString(". ")
	}
	if sentiment != nil {
		fmt.Fprintf(&b, "Sentiment: %s (score %.2f) - %s. ", sentiment.Sentiment, sentiment.Score, sentiment.Summary)
	}
	fmt.Fprintf(&b, "Recommendation: %s (%s confidence).", rec.Action, rec.Confidence)
	return b.String()
}
