package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finyx/internal/sharedcontext"
)

func TestTopCitations_CapsAtTen(t *testing.T) {
	t.Parallel()
	var citations []sharedcontext.Citation
	for i := 0; i < 15; i++ {
		citations = append(citations, sharedcontext.Citation{Source: "yahoo_finance", DataPoint: "price"})
	}
	out := topCitations(citations)
	require.Equal(t, 10, countLines(out))
}

func TestTopCitations_EmptyInput(t *testing.T) {
	t.Parallel()
	require.Equal(t, "", topCitations(nil))
}

func countLines(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}

func TestBuildVisualizations_IncludesPriceTrendsAndSentiment(t *testing.T) {
	t.Parallel()
	parent := &sharedcontext.Context{
		ResearchData: map[string]sharedcontext.ResearchPayload{
			"AAPL": {
				Historical: &sharedcontext.HistoricalData{Data: []sharedcontext.OHLCV{
					{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Close: 150},
				}},
				Price: &sharedcontext.PriceData{CurrentPrice: 151, Volume: 100},
			},
		},
		SentimentAnalysis: map[string]sharedcontext.SentimentResult{
			"AAPL": {Sentiment: "positive", Score: 0.5},
		},
	}
	viz := buildVisualizations(parent)
	require.Contains(t, viz, "AAPL")
	entry := viz["AAPL"].(map[string]any)
	require.Contains(t, entry, "price_trends")
	require.Contains(t, entry, "comparison_charts")
	require.Contains(t, entry, "sentiment_charts")
}

func TestBuildSystemPrompt_ListsAvailableDataTypes(t *testing.T) {
	t.Parallel()
	parent := &sharedcontext.Context{
		ResearchData: map[string]sharedcontext.ResearchPayload{
			"AAPL": {Price: &sharedcontext.PriceData{}, News: &sharedcontext.NewsData{}},
		},
	}
	prompt := buildSystemPrompt(parent)
	require.Contains(t, prompt, "stock_price")
	require.Contains(t, prompt, "news")
	require.NotContains(t, prompt, "financial_statements")
}

func TestSummarizeResearch_IsDeterministicallyOrdered(t *testing.T) {
	t.Parallel()
	parent := &sharedcontext.Context{
		ResearchData: map[string]sharedcontext.ResearchPayload{
			"MSFT": {Price: &sharedcontext.PriceData{CurrentPrice: 300}},
			"AAPL": {Price: &sharedcontext.PriceData{CurrentPrice: 150}},
		},
	}
	summary := summarizeResearch(parent)
	require.Less(t, indexOf(summary, "AAPL"), indexOf(summary, "MSFT"))
}

func TestPartialResultsDisclosure_ListsFailedSymbolsSortedWithErrors(t *testing.T) {
	t.Parallel()
	parent := &sharedcontext.Context{
		SymbolErrors: map[string]string{
			"BADCO": "every data type failed",
			"AAPL":  "rate limited",
		},
	}
	out := partialResultsDisclosure(parent)
	require.Contains(t, out, "AAPL: rate limited")
	require.Contains(t, out, "BADCO: every data type failed")
	require.Less(t, indexOf(out, "AAPL"), indexOf(out, "BADCO"))
}

func TestRunReporting_AppendsPartialResultsDisclosureWhenPartialSuccess(t *testing.T) {
	t.Parallel()
	deps, _ := newTestDeps(t, nil)
	parent := &sharedcontext.Context{
		TransactionID:   "tx1",
		ResearchData:    map[string]sharedcontext.ResearchPayload{"AAPL": {Price: &sharedcontext.PriceData{CurrentPrice: 150}}},
		AnalysisResults: map[string]sharedcontext.AnalysisResult{"AAPL": {}},
		PartialSuccess:  true,
		SymbolStatus: map[string]sharedcontext.SymbolStatus{
			"AAPL":  sharedcontext.SymbolStatusSuccess,
			"BADCO": sharedcontext.SymbolStatusFailed,
		},
		SymbolErrors: map[string]string{"BADCO": "every data type failed"},
	}

	result, err := deps.RunReporting(context.Background(), parent)
	require.NoError(t, err)
	require.Contains(t, result.FinalReport, "Partial Results")
	require.Contains(t, result.FinalReport, "BADCO: every data type failed")
}

func TestRunReporting_OmitsPartialResultsDisclosureOnFullSuccess(t *testing.T) {
	t.Parallel()
	deps, _ := newTestDeps(t, nil)
	parent := &sharedcontext.Context{
		TransactionID:   "tx1",
		ResearchData:    map[string]sharedcontext.ResearchPayload{"AAPL": {Price: &sharedcontext.PriceData{CurrentPrice: 150}}},
		AnalysisResults: map[string]sharedcontext.AnalysisResult{"AAPL": {}},
		PartialSuccess:  false,
	}

	result, err := deps.RunReporting(context.Background(), parent)
	require.NoError(t, err)
	require.NotContains(t, result.FinalReport, "Partial Results")
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
