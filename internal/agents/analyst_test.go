package agents

import (
	"testing"

	"github.com/stretchr/testify/require"

	"finyx/internal/sharedcontext"
)

func TestSynthesizeRecommendation_ThresholdRule(t *testing.T) {
	t.Parallel()
	require.Equal(t, "buy", synthesizeRecommendation(&sharedcontext.SentimentResult{Score: 0.5}).Action)
	require.Equal(t, "sell", synthesizeRecommendation(&sharedcontext.SentimentResult{Score: -0.5}).Action)
	require.Equal(t, "hold", synthesizeRecommendation(&sharedcontext.SentimentResult{Score: 0.1}).Action)
	require.Equal(t, "hold", synthesizeRecommendation(nil).Action)
	require.Equal(t, "medium", synthesizeRecommendation(nil).Confidence)
}

func TestExtractFinancialMetrics_PullsPriceAndFinancialsFields(t *testing.T) {
	t.Parallel()
	marketCap := 1_000_000.0
	research := sharedcontext.ResearchPayload{
		Price: &sharedcontext.PriceData{CurrentPrice: 150, ChangePercent: 2.5, Volume: 1000, MarketCap: &marketCap},
		Financials: &sharedcontext.FinancialStatements{
			Data: map[string]any{"peRatio": 22.5, "notANumber": "x"},
		},
	}
	metrics := extractFinancialMetrics(research)
	require.Equal(t, 150.0, metrics["currentPrice"])
	require.Equal(t, 2.5, metrics["changePercent"])
	require.Equal(t, 1_000_000.0, metrics["marketCap"])
	require.Equal(t, 22.5, metrics["peRatio"])
	require.NotContains(t, metrics, "notANumber")
}

func TestTrendPlaceholder_CapturesPeriodsAndDataPoints(t *testing.T) {
	t.Parallel()
	hist := &sharedcontext.HistoricalData{Data: make([]sharedcontext.OHLCV, 5)}
	trend := trendPlaceholder(hist)
	require.Equal(t, 5, trend.Periods)
	require.Equal(t, 5, trend.DataPoints)
	require.Equal(t, "analyzing", trend.Trend)
}

func TestExtractJSON_StripsSurroundingProse(t *testing.T) {
	t.Parallel()
	raw := `Sure, here you go: {"sentiment":"positive","score":0.6} thanks!`
	require.Equal(t, `{"sentiment":"positive","score":0.6}`, extractJSON(raw))
}

func TestExtractJSON_ReturnsInputWhenNoBraces(t *testing.T) {
	t.Parallel()
	require.Equal(t, "no json here", extractJSON("no json here"))
}

func TestBuildAnalysisReasoning_IncludesRecommendation(t *testing.T) {
	t.Parallel()
	reasoning := buildAnalysisReasoning("AAPL", map[string]float64{"currentPrice": 150, "changePercent": 1.2},
		&sharedcontext.SentimentResult{Sentiment: "positive", Score: 0.4, Summary: "good quarter"},
		sharedcontext.Recommendation{Action: "buy", Confidence: "medium"})
	require.Contains(t, reasoning, "AAPL")
	require.Contains(t, reasoning, "buy")
	require.Contains(t, reasoning, "positive")
}
