package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"finyx/internal/agents"
	"finyx/internal/cache"
	"finyx/internal/dataclient"
	"finyx/internal/integrations"
	"finyx/internal/llmgateway"
	"finyx/internal/sharedcontext"
	"finyx/internal/sources"
	"finyx/internal/vectorstore"
)

type fakeSource struct{ name string }

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) GetStockPrice(ctx context.Context, symbol string) (*sharedcontext.PriceData, error) {
	return &sharedcontext.PriceData{Symbol: symbol, CurrentPrice: 100}, nil
}
func (f *fakeSource) GetCompanyInfo(ctx context.Context, symbol string) (*sharedcontext.CompanyInfo, error) {
	return &sharedcontext.CompanyInfo{Symbol: symbol, Name: symbol + " Inc"}, nil
}
func (f *fakeSource) GetHistoricalData(ctx context.Context, symbol, period string) (*sharedcontext.HistoricalData, error) {
	return &sharedcontext.HistoricalData{Symbol: symbol, Data: []sharedcontext.OHLCV{{Date: time.Now(), Close: 100}}}, nil
}
func (f *fakeSource) GetFinancials(ctx context.Context, symbol, statementType string) (*sharedcontext.FinancialStatements, error) {
	return &sharedcontext.FinancialStatements{Symbol: symbol, Data: map[string]any{"peRatio": 18.0}}, nil
}
func (f *fakeSource) GetNews(ctx context.Context, symbol string, n int) (*sharedcontext.NewsData, error) {
	return &sharedcontext.NewsData{Symbol: symbol, Articles: []sharedcontext.NewsArticle{{Title: "ok", Text: "fine"}}}, nil
}
func (f *fakeSource) GetTechnicalIndicators(ctx context.Context, symbol, indicator, interval string, period int) (*sharedcontext.TechnicalIndicatorData, error) {
	return nil, errUnsupported
}
func (f *fakeSource) Citations() []sharedcontext.Citation { return nil }

var errUnsupported = &unsupportedErr{}

type unsupportedErr struct{}

func (*unsupportedErr) Error() string { return "unsupported" }

type fakeStore struct{}

func (s *fakeStore) AddDocument(ctx context.Context, collection string, doc vectorstore.Document) error {
	return nil
}
func (s *fakeStore) Query(ctx context.Context, collection, text string, embedding []float32, n int, where map[string]string) ([]vectorstore.Result, error) {
	return nil, nil
}
func (s *fakeStore) SearchSimilar(ctx context.Context, collection string, embedding []float32, n int, where map[string]string) ([]vectorstore.Result, error) {
	return nil, nil
}

type fakeLLM struct{}

func (fakeLLM) Name() string { return "fake" }
func (fakeLLM) Complete(ctx context.Context, msgs []llmgateway.Message, model string, temperature float64, maxTokens int) (llmgateway.CompletionResult, error) {
	return llmgateway.CompletionResult{Content: `{"sentiment":"neutral","score":0,"factors":[],"summary":"n/a"}`, TotalTokens: 10}, nil
}
func (fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func newTestWorkflow(t *testing.T) *Workflow {
	t.Helper()
	src := &fakeSource{name: integrations.SourceYahooFinance}
	integ := integrations.New(nil)
	dc := dataclient.New(map[string]sources.Client{integrations.SourceYahooFinance: src}, integ, zerolog.Nop())
	sm := sharedcontext.NewStateManager(zerolog.Nop())
	deps := &agents.Deps{
		Data:    dc,
		Store:   &fakeStore{},
		LLM:     llmgateway.New(fakeLLM{}, 3, zerolog.Nop()),
		State:   sm,
		Context: cache.NewContextCache(nil, 0),
		Log:     zerolog.Nop(),
	}
	return New(deps, sm, zerolog.Nop())
}

func TestRun_ExecutesAllFourNodesInOrder(t *testing.T) {
	t.Parallel()
	wf := newTestWorkflow(t)
	initial := wf.State.CreateInitial("compare AAPL and MSFT", sharedcontext.QueryTypeComparison, []string{"AAPL", "MSFT"}, "")

	final, err := wf.Run(context.Background(), initial)
	require.NoError(t, err)
	require.Equal(t, []string{"Research Agent", "Analyst Agent", "Comparison Agent", "Reporting Agent"}, final.AgentsExecuted)
	require.NotEmpty(t, final.FinalReport)
}

func TestStream_EmitsOneSnapshotPerNode(t *testing.T) {
	t.Parallel()
	wf := newTestWorkflow(t)
	initial := wf.State.CreateInitial("analyze AAPL", sharedcontext.QueryTypeSingleStock, []string{"AAPL"}, "")

	snapshots, errCh := wf.Stream(context.Background(), initial)

	var seen []string
	for s := range snapshots {
		seen = append(seen, s.Node)
	}
	require.NoError(t, <-errCh)
	require.Equal(t, []string{"Research Agent", "Analyst Agent", "Comparison Agent", "Reporting Agent"}, seen)
}
