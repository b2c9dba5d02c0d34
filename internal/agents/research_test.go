package agents

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"finyx/internal/cache"
	"finyx/internal/dataclient"
	"finyx/internal/integrations"
	"finyx/internal/llmgateway"
	"finyx/internal/sharedcontext"
	"finyx/internal/sources"
	"finyx/internal/vectorstore"
)

// fakeSource is a minimal sources.Client stub; failSymbols causes every
// method to error for the given symbols so per-symbol failure isolation can
// be exercised without a live network.
type fakeSource struct {
	name        string
	failSymbols map[string]bool
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) GetStockPrice(ctx context.Context, symbol string) (*sharedcontext.PriceData, error) {
	if f.failSymbols[symbol] {
		return nil, errFakeSource
	}
	return &sharedcontext.PriceData{Symbol: symbol, CurrentPrice: 100, ChangePercent: 1.5}, nil
}

func (f *fakeSource) GetCompanyInfo(ctx context.Context, symbol string) (*sharedcontext.CompanyInfo, error) {
	if f.failSymbols[symbol] {
		return nil, errFakeSource
	}
	return &sharedcontext.CompanyInfo{Symbol: symbol, Name: symbol + " Inc", Sector: "Technology"}, nil
}

func (f *fakeSource) GetHistoricalData(ctx context.Context, symbol, period string) (*sharedcontext.HistoricalData, error) {
	if f.failSymbols[symbol] {
		return nil, errFakeSource
	}
	return &sharedcontext.HistoricalData{Symbol: symbol, Data: []sharedcontext.OHLCV{{Date: time.Now(), Close: 100}}}, nil
}

func (f *fakeSource) GetFinancials(ctx context.Context, symbol, statementType string) (*sharedcontext.FinancialStatements, error) {
	if f.failSymbols[symbol] {
		return nil, errFakeSource
	}
	return &sharedcontext.FinancialStatements{Symbol: symbol, Data: map[string]any{"peRatio": 20.0}}, nil
}

func (f *fakeSource) GetNews(ctx context.Context, symbol string, n int) (*sharedcontext.NewsData, error) {
	if f.failSymbols[symbol] {
		return nil, errFakeSource
	}
	return &sharedcontext.NewsData{Symbol: symbol, Articles: []sharedcontext.NewsArticle{
		{Title: "Good news for " + symbol, Text: "things are looking up"},
	}}, nil
}

func (f *fakeSource) GetTechnicalIndicators(ctx context.Context, symbol, indicator, interval string, period int) (*sharedcontext.TechnicalIndicatorData, error) {
	return nil, errFakeSource
}

func (f *fakeSource) Citations() []sharedcontext.Citation { return nil }

var errFakeSource = &fakeSourceErr{}

type fakeSourceErr struct{}

func (*fakeSourceErr) Error() string { return "fake source failure" }

// fakeStore is a no-op vectorstore.Store recording every AddDocument call.
type fakeStore struct {
	docs []vectorstore.Document
}

func (s *fakeStore) AddDocument(ctx context.Context, collection string, doc vectorstore.Document) error {
	s.docs = append(s.docs, doc)
	return nil
}

func (s *fakeStore) Query(ctx context.Context, collection, text string, embedding []float32, n int, where map[string]string) ([]vectorstore.Result, error) {
	return nil, nil
}

func (s *fakeStore) SearchSimilar(ctx context.Context, collection string, embedding []float32, n int, where map[string]string) ([]vectorstore.Result, error) {
	return nil, nil
}

// fakeLLMProvider implements llmgateway.Provider with canned responses.
type fakeLLMProvider struct{}

func (fakeLLMProvider) Name() string { return "fake" }

func (fakeLLMProvider) Complete(ctx context.Context, msgs []llmgateway.Message, model string, temperature float64, maxTokens int) (llmgateway.CompletionResult, error) {
	return llmgateway.CompletionResult{
		Content:     `{"sentiment":"positive","score":0.5,"factors":["earnings beat"],"summary":"strong quarter"}`,
		TotalTokens: 42,
	}, nil
}

func (fakeLLMProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func newTestDeps(t *testing.T, failSymbols map[string]bool) (*Deps, *fakeStore) {
	t.Helper()
	src := &fakeSource{name: integrations.SourceYahooFinance, failSymbols: failSymbols}
	integ := integrations.New(nil)
	dc := dataclient.New(map[string]sources.Client{integrations.SourceYahooFinance: src}, integ, zerolog.Nop())
	store := &fakeStore{}
	deps := &Deps{
		Data:    dc,
		Store:   store,
		LLM:     llmgateway.New(fakeLLMProvider{}, 3, zerolog.Nop()),
		State:   sharedcontext.NewStateManager(zerolog.Nop()),
		Context: cache.NewContextCache(nil, 0),
		Log:     zerolog.Nop(),
	}
	return deps, store
}

func TestRunResearch_PopulatesPerSymbolDataAndCitesNewsEmbeddings(t *testing.T) {
	t.Parallel()
	deps, store := newTestDeps(t, nil)
	sm := deps.State
	parent := sm.CreateInitial("compare AAPL and MSFT", sharedcontext.QueryTypeComparison, []string{"AAPL", "MSFT"}, "")

	result, err := deps.RunResearch(context.Background(), parent)
	require.NoError(t, err)
	require.Contains(t, result.ResearchData, "AAPL")
	require.Contains(t, result.ResearchData, "MSFT")
	require.Equal(t, sharedcontext.DataQualityComplete, result.ResearchMetadata["AAPL"].DataQuality)
	require.Equal(t, sharedcontext.SymbolStatusSuccess, result.SymbolStatus["AAPL"])
	require.False(t, result.PartialSuccess)
	require.NotEmpty(t, store.docs) // news articles embedded and stored
	require.Contains(t, result.AgentsExecuted, AgentResearch)
}

func TestRunResearch_IsolatesPerSymbolFailure(t *testing.T) {
	t.Parallel()
	deps, _ := newTestDeps(t, map[string]bool{"BADCO": true})
	sm := deps.State
	parent := sm.CreateInitial("compare AAPL and BADCO", sharedcontext.QueryTypeComparison, []string{"AAPL", "BADCO"}, "")

	result, err := deps.RunResearch(context.Background(), parent)
	require.NoError(t, err)
	require.Equal(t, sharedcontext.SymbolStatusSuccess, result.SymbolStatus["AAPL"])
	require.Equal(t, sharedcontext.SymbolStatusFailed, result.SymbolStatus["BADCO"])
	require.Equal(t, sharedcontext.DataQualityError, result.ResearchMetadata["BADCO"].DataQuality)
	require.True(t, result.PartialSuccess)
	require.Contains(t, result.ResearchData, "AAPL")
}

func TestRunResearch_RequiresQuerySymbolsAndType(t *testing.T) {
	t.Parallel()
	deps, _ := newTestDeps(t, nil)
	_, err := deps.RunResearch(context.Background(), &sharedcontext.Context{})
	require.Error(t, err)
}

func TestFullPipeline_ResearchThroughReporting(t *testing.T) {
	t.Parallel()
	deps, store := newTestDeps(t, nil)
	sm := deps.State
	ctx := context.Background()

	c := sm.CreateInitial("compare AAPL and MSFT", sharedcontext.QueryTypeComparison, []string{"AAPL", "MSFT"}, "")

	c, err := deps.RunResearch(ctx, c)
	require.NoError(t, err)

	c, err = deps.RunAnalyst(ctx, c)
	require.NoError(t, err)
	require.Contains(t, c.AnalysisResults, "AAPL")
	require.Equal(t, "buy", c.AnalysisResults["AAPL"].Recommendation.Action)

	c, err = deps.RunComparison(ctx, c)
	require.NoError(t, err)
	require.Equal(t, sharedcontext.ComparisonTypeSideBySide, c.ComparisonData.ComparisonType)
	require.Len(t, c.ComparisonData.ComparisonTable.Rows, 2)

	c, err = deps.RunReporting(ctx, c)
	require.NoError(t, err)
	require.NotEmpty(t, c.FinalReport)
	require.Contains(t, c.Visualizations, "AAPL")

	// the report itself was embedded and stored in company_analysis
	found := false
	for _, d := range store.docs {
		if d.Metadata["source"] == "reporting" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRunReporting_RequiresResearchAndAnalysis(t *testing.T) {
	t.Parallel()
	deps, _ := newTestDeps(t, nil)
	_, err := deps.RunReporting(context.Background(), &sharedcontext.Context{})
	require.Error(t, err)
}
