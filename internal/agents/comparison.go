package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"finyx/internal/llmgateway"
	"finyx/internal/progress"
	"finyx/internal/sharedcontext"
)

const comparisonColumns = "Symbol,Price,MarketCap,P/E,Sector,Sentiment,Recommendation"

// RunComparison executes the Comparison agent, which always runs and
// branches on the number of valid symbols (spec.md §4.9).
func (d *Deps) RunComparison(ctx context.Context, parent *sharedcontext.Context) (*sharedcontext.Context, error) {
	return runWithLifecycle(d.State, parent, AgentComparison, func() ([]*sharedcontext.Context, error) {
		child := cloneForFanout(parent)
		order := len(parent.ProgressEvents)
		d.State.AddProgressEvent(child, progress.TaskStart(AgentComparison, "compare", "", parent.TransactionID, order, false))

		validSymbols := validSymbolsFor(parent)

		var data sharedcontext.ComparisonData
		var tokens int
		if len(validSymbols) <= 1 {
			data, tokens = d.benchmarkComparison(ctx, parent, validSymbols)
		} else {
			data, tokens = d.sideBySideComparison(ctx, parent, validSymbols)
		}

		d.State.UpdateComparisonData(child, data)
		d.State.TrackTokenUsage(child, AgentComparison, tokens)
		d.State.AddProgressEvent(child, progress.TaskComplete(AgentComparison, "compare", "", parent.TransactionID, order, false))
		return []*sharedcontext.Context{child}, nil
	})
}

func validSymbolsFor(c *sharedcontext.Context) []string {
	out := make([]string, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		if c.SymbolStatus[s] == sharedcontext.SymbolStatusFailed {
			continue
		}
		out = append(out, s)
	}
	return out
}

// benchmarkComparison builds the single-symbol narrative branch (spec.md
// §4.9 "Single symbol (benchmark)").
func (d *Deps) benchmarkComparison(ctx context.Context, parent *sharedcontext.Context, symbols []string) (sharedcontext.ComparisonData, int) {
	data := sharedcontext.ComparisonData{ComparisonType: sharedcontext.ComparisonTypeBenchmark, Metrics: map[string]any{}}
	if len(symbols) == 0 {
		data.Insights = "no valid symbols to compare"
		return data, 0
	}
	symbol := symbols[0]
	data.Symbol = symbol
	research := parent.ResearchData[symbol]
	patterns := d.historicalPatternLookup(ctx, symbol, research)
	data.HistoricalPatterns = patterns
	data.Metrics = metricsFor(symbol, parent)

	prompt := fmt.Sprintf(
		"Write a benchmark comparison narrative for %s using the following metrics: %s.\n"+
			"Similar historical patterns:\n%s",
		symbol, formatMetrics(data.Metrics), strings.Join(patterns, "\n"))

	result, err := d.LLM.Complete(ctx, []llmgateway.Message{
		{Role: "system", Content: "You are a financial analyst writing a benchmark comparison."},
		{Role: "user", Content: prompt},
	}, "", analysisTemperature, analysisMaxTokens)
	if err != nil {
		d.Log.Warn().Err(err).Str("symbol", symbol).Msg("benchmark comparison completion failed")
		data.Insights = "benchmark comparison unavailable"
		return data, 0
	}
	data.Insights = result.Content
	return data, result.TotalTokens
}

// sideBySideComparison builds the multi-symbol table branch (spec.md §4.9
// "Multiple symbols (side_by_side)").
func (d *Deps) sideBySideComparison(ctx context.Context, parent *sharedcontext.Context, symbols []string) (sharedcontext.ComparisonData, int) {
	columns := strings.Split(comparisonColumns, ",")
	table := &sharedcontext.ComparisonTable{Columns: columns}
	metrics := map[string]any{}

	for _, symbol := range symbols {
		m := metricsFor(symbol, parent)
		metrics[symbol] = m
		sentiment := "n/a"
		if s, ok := parent.SentimentAnalysis[symbol]; ok {
			sentiment = s.Sentiment
		}
		recommendation := "hold"
		if a, ok := parent.AnalysisResults[symbol]; ok {
			recommendation = a.Recommendation.Action
		}
		table.Rows = append(table.Rows, []string{
			symbol,
			fmt.Sprintf("%v", m["price"]),
			fmt.Sprintf("%v", m["marketCap"]),
			fmt.Sprintf("%v", m["pe"]),
			fmt.Sprintf("%v", m["sector"]),
			sentiment,
			recommendation,
		})
	}

	tableJSON, _ := json.Marshal(table)
	prompt := fmt.Sprintf("Write a structured side-by-side comparison for these symbols using this table:\n%s", string(tableJSON))

	result, err := d.LLM.Complete(ctx, []llmgateway.Message{
		{Role: "system", Content: "You are a financial analyst writing a side-by-side comparison."},
		{Role: "user", Content: prompt},
	}, "", analysisTemperature, analysisMaxTokens)

	data := sharedcontext.ComparisonData{
		Symbols:         symbols,
		ComparisonType:  sharedcontext.ComparisonTypeSideBySide,
		Metrics:         metrics,
		ComparisonTable: table,
	}
	if err != nil {
		d.Log.Warn().Err(err).Strs("symbols", symbols).Msg("side-by-side comparison completion failed")
		data.Insights = "side-by-side comparison unavailable"
		return data, 0
	}
	data.Insights = result.Content
	return data, result.TotalTokens
}

func metricsFor(symbol string, parent *sharedcontext.Context) map[string]any {
	m := map[string]any{"price": "n/a", "marketCap": "n/a", "pe": "n/a", "sector": "n/a"}
	research := parent.ResearchData[symbol]
	if research.Price != nil {
		m["price"] = research.Price.CurrentPrice
		if research.Price.MarketCap != nil {
			m["marketCap"] = *research.Price.MarketCap
		}
	}
	if research.Company != nil {
		m["sector"] = research.Company.Sector
	}
	if research.Financials != nil {
		if pe, ok := toFloat(research.Financials.Data["peRatio"]); ok {
			m["pe"] = pe
		}
	}
	return m
}

func formatMetrics(m map[string]any) string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ", ")
}
