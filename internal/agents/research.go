package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"finyx/internal/progress"
	"finyx/internal/sharedcontext"
	"finyx/internal/vectorstore"
)

const historicalPeriod = "1y"
const financialStatementType = "income_statement"
const newsArticleLimit = 10

// researchDataType enumerates the up-to-5 data types a symbol may fetch
// (spec.md §4.7).
type researchDataType string

const (
	dtPrice      researchDataType = "price"
	dtCompany    researchDataType = "company"
	dtNews       researchDataType = "news"
	dtHistorical researchDataType = "historical"
	dtFinancials researchDataType = "financials"
)

// dataTypesFor returns the data types fetched for a symbol given queryType
// (spec.md §4.7: "filtering historical to trend/comparison and financials to
// single_stock/comparison").
func dataTypesFor(queryType sharedcontext.QueryType) []researchDataType {
	out := []researchDataType{dtPrice, dtCompany, dtNews}
	if queryType == sharedcontext.QueryTypeTrend || queryType == sharedcontext.QueryTypeComparison {
		out = append(out, dtHistorical)
	}
	if queryType == sharedcontext.QueryTypeSingleStock || queryType == sharedcontext.QueryTypeComparison {
		out = append(out, dtFinancials)
	}
	return out
}

// RunResearch executes the Research agent (spec.md §4.7).
func (d *Deps) RunResearch(ctx context.Context, parent *sharedcontext.Context) (*sharedcontext.Context, error) {
	if parent.QueryText == "" || len(parent.Symbols) == 0 || parent.QueryType == "" {
		return parent, fmt.Errorf("research: query, symbols, and queryType are required")
	}

	return runWithLifecycle(d.State, parent, AgentResearch, func() ([]*sharedcontext.Context, error) {
		limit := dataFetchWorkerLimit(len(parent.Symbols))
		clones := make([]*sharedcontext.Context, len(parent.Symbols))
		parallelForEach(ctx, limit, parent.Symbols, func(ctx context.Context, idx int, symbol string) {
			clones[idx] = d.researchSymbol(ctx, parent, symbol)
		})
		return clones, nil
	})
}

// researchSymbol fetches every applicable data type for symbol, embeds and
// stores any news articles, and returns symbol's isolated context clone.
func (d *Deps) researchSymbol(ctx context.Context, parent *sharedcontext.Context, symbol string) *sharedcontext.Context {
	child := cloneForFanout(parent)
	order := len(parent.ProgressEvents)
	d.State.AddProgressEvent(child, progress.TaskStart(AgentResearch, "fetch_data", symbol, parent.TransactionID, order, true))

	types := dataTypesFor(parent.QueryType)

	var mu sync.Mutex
	payload := sharedcontext.ResearchPayload{}
	var sources []string
	var successCount int

	parallelForEach(ctx, len(types), types, func(ctx context.Context, _ int, dt researchDataType) {
		d.fetchDataType(ctx, symbol, dt, &payload, &mu, &sources, &successCount)
	})

	quality := sharedcontext.DataQualityComplete
	switch {
	case successCount == 0:
		quality = sharedcontext.DataQualityError
	case successCount < len(types):
		quality = sharedcontext.DataQualityPartial
	}

	d.State.UpdateResearchData(child, symbol, payload, sharedcontext.ResearchMeta{
		Sources:     sources,
		Timestamp:   time.Now(),
		DataQuality: quality,
	})

	if successCount == 0 {
		d.State.MarkSymbolStatus(child, symbol, sharedcontext.SymbolStatusFailed, symbol+": every data type failed")
	} else {
		d.State.MarkSymbolStatus(child, symbol, sharedcontext.SymbolStatusSuccess, "")
	}

	if payload.News != nil && len(payload.News.Articles) > 0 {
		d.embedNewsArticles(ctx, child, symbol, payload.News)
	}

	for _, cit := range d.Data.DrainCitations() {
		d.State.AddCitation(child, cit)
	}

	d.State.AddProgressEvent(child, progress.TaskComplete(AgentResearch, "fetch_data", symbol, parent.TransactionID, order, true))
	return child
}

// fetchDataType consults the ContextCache for (symbol, dataType), falling
// through to UnifiedDataClient on miss and writing the result back (spec.md
// §4.7 "Each data-type task consults the ContextCache first").
func (d *Deps) fetchDataType(ctx context.Context, symbol string, dt researchDataType, payload *sharedcontext.ResearchPayload, mu *sync.Mutex, sources *[]string, successCount *int) {
	switch dt {
	case dtPrice:
		var v sharedcontext.PriceData
		if ok, _ := d.Context.GetData(ctx, symbol, string(dt), &v); ok {
			mu.Lock()
			payload.Price = &v
			*successCount++
			mu.Unlock()
			return
		}
		v2, err := d.Data.GetStockPrice(ctx, AgentResearch, symbol, "", 0)
		if err != nil || v2 == nil {
			return
		}
		_ = d.Context.SetData(ctx, symbol, string(dt), v2)
		mu.Lock()
		payload.Price = v2
		*sources = append(*sources, "price")
		*successCount++
		mu.Unlock()

	case dtCompany:
		var v sharedcontext.CompanyInfo
		if ok, _ := d.Context.GetData(ctx, symbol, string(dt), &v); ok {
			mu.Lock()
			payload.Company = &v
			*successCount++
			mu.Unlock()
			return
		}
		v2, err := d.Data.GetCompanyInfo(ctx, AgentResearch, symbol, "", 0)
		if err != nil || v2 == nil {
			return
		}
		_ = d.Context.SetData(ctx, symbol, string(dt), v2)
		mu.Lock()
		payload.Company = v2
		*sources = append(*sources, "company")
		*successCount++
		mu.Unlock()

	case dtNews:
		var v sharedcontext.NewsData
		if ok, _ := d.Context.GetData(ctx, symbol, string(dt), &v); ok {
			mu.Lock()
			payload.News = &v
			*successCount++
			mu.Unlock()
			return
		}
		v2, err := d.Data.GetNews(ctx, AgentResearch, symbol, newsArticleLimit, "", 0)
		if err != nil || v2 == nil {
			return
		}
		_ = d.Context.SetData(ctx, symbol, string(dt), v2)
		mu.Lock()
		payload.News = v2
		*sources = append(*sources, "news")
		*successCount++
		mu.Unlock()

	case dtHistorical:
		var v sharedcontext.HistoricalData
		if ok, _ := d.Context.GetData(ctx, symbol, string(dt), &v); ok {
			mu.Lock()
			payload.Historical = &v
			*successCount++
			mu.Unlock()
			return
		}
		v2, err := d.Data.GetHistoricalData(ctx, AgentResearch, symbol, historicalPeriod, "", 0)
		if err != nil || v2 == nil {
			return
		}
		_ = d.Context.SetData(ctx, symbol, string(dt), v2)
		mu.Lock()
		payload.Historical = v2
		*sources = append(*sources, "historical")
		*successCount++
		mu.Unlock()

	case dtFinancials:
		var v sharedcontext.FinancialStatements
		if ok, _ := d.Context.GetData(ctx, symbol, string(dt), &v); ok {
			mu.Lock()
			payload.Financials = &v
			*successCount++
			mu.Unlock()
			return
		}
		v2, err := d.Data.GetFinancials(ctx, AgentResearch, symbol, financialStatementType, "", 0)
		if err != nil || v2 == nil {
			return
		}
		_ = d.Context.SetData(ctx, symbol, string(dt), v2)
		mu.Lock()
		payload.Financials = v2
		*sources = append(*sources, "financials")
		*successCount++
		mu.Unlock()
	}
}

// embedNewsArticles embeds title+body for each article and inserts it into
// the financial_news collection with source attribution metadata (spec.md
// §4.7). Embedding/insertion failures are logged, not fatal — news storage
// is best-effort against the research result itself.
func (d *Deps) embedNewsArticles(ctx context.Context, child *sharedcontext.Context, symbol string, news *sharedcontext.NewsData) {
	if d.Store == nil {
		return
	}
	for _, article := range news.Articles {
		text := strings.TrimSpace(article.Title + "\n\n" + article.Text)
		if text == "" {
			continue
		}
		embedding := d.LLM.Embed(ctx, text)
		err := d.Store.AddDocument(ctx, vectorstore.CollectionFinancialNews, vectorstore.Document{
			Text:      text,
			Embedding: embedding,
			Metadata: map[string]any{
				"symbol":        symbol,
				"title":         article.Title,
				"url":           article.URL,
				"publisher":     article.Publisher,
				"publishedDate": article.PublishedDate.Format(time.RFC3339),
				"source":        "research",
			},
		})
		if err != nil {
			d.Log.Warn().Err(err).Str("symbol", symbol).Str("title", article.Title).Msg("failed to store news article in vector store")
			continue
		}
		child.VectorDBReferences = append(child.VectorDBReferences, vectorstore.CollectionFinancialNews+":"+symbol)
	}
}
