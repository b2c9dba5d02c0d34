package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"finyx/internal/sharedcontext"
)

const SourceNameFMP = "fmp"

const fmpMinInterval = 500 * time.Millisecond

// FMPClient is the fmp (Financial Modeling Prep) SourceClient: company
// info, financial statements, and news (spec.md §4.4 preferred-order table).
type FMPClient struct {
	base
	baseURL string
	apiKey  string
}

// NewFMPClient builds an FMPClient authenticated with apiKey.
func NewFMPClient(httpClient *http.Client, apiKey string, log zerolog.Logger) *FMPClient {
	return &FMPClient{
		base:    newBase(SourceNameFMP, httpClient, fmpMinInterval, log),
		baseURL: "https://financialmodelingprep.com/api/v3",
		apiKey:  apiKey,
	}
}

type fmpQuote struct {
	Symbol            string  `json:"symbol"`
	Price             float64 `json:"price"`
	PreviousClose     float64 `json:"previousClose"`
	Change            float64 `json:"change"`
	ChangesPercentage float64 `json:"changesPercentage"`
	DayHigh           float64 `json:"dayHigh"`
	DayLow            float64 `json:"dayLow"`
	Volume            int64   `json:"volume"`
	MarketCap         float64 `json:"marketCap"`
	YearHigh          float64 `json:"yearHigh"`
	YearLow           float64 `json:"yearLow"`
}

func (c *FMPClient) GetStockPrice(ctx context.Context, symbol string) (*sharedcontext.PriceData, error) {
	url := fmt.Sprintf("%s/quote/%s?apikey=%s", c.baseURL, symbol, c.apiKey)
	var quotes []fmpQuote
	if err := c.getJSON(ctx, url, &quotes); err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, &Error{Source: c.name, Kind: KindEmpty}
	}
	q := quotes[0]
	price := &sharedcontext.PriceData{
		Symbol:           symbol,
		CurrentPrice:     q.Price,
		PreviousClose:    q.PreviousClose,
		Change:           q.Change,
		ChangePercent:    q.ChangesPercentage,
		Volume:           q.Volume,
		DayHigh:          q.DayHigh,
		DayLow:           q.DayLow,
		MarketCap:        floatPtrOrNil(q.MarketCap),
		FiftyTwoWeekHigh: floatPtrOrNil(q.YearHigh),
		FiftyTwoWeekLow:  floatPtrOrNil(q.YearLow),
		Timestamp:        time.Now().UTC(),
	}
	c.addCitation("price", symbol, url)
	return price, nil
}

type fmpCompanyProfile struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	Sector      string `json:"sector"`
	Industry    string `json:"industry"`
	Description string `json:"description"`
	FullTimeEmployees string `json:"fullTimeEmployees"`
	Website     string `json:"website"`
	Address     string `json:"address"`
	City        string `json:"city"`
}

func (c *FMPClient) GetCompanyInfo(ctx context.Context, symbol string) (*sharedcontext.CompanyInfo, error) {
	url := fmt.Sprintf("%s/profile/%s?apikey=%s", c.baseURL, symbol, c.apiKey)
	var profiles []fmpCompanyProfile
	if err := c.getJSON(ctx, url, &profiles); err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, &Error{Source: c.name, Kind: KindEmpty}
	}
	p := profiles[0]
	info := &sharedcontext.CompanyInfo{
		Symbol:      symbol,
		Name:        p.CompanyName,
		Sector:      p.Sector,
		Industry:    p.Industry,
		Description: p.Description,
		Website:     p.Website,
		Address:     p.Address + ", " + p.City,
		Timestamp:   time.Now().UTC(),
	}
	if emp := parseInt(p.FullTimeEmployees); emp > 0 {
		info.Employees = &emp
	}
	c.addCitation("company_info", symbol, url)
	return info, nil
}

func (c *FMPClient) GetHistoricalData(ctx context.Context, symbol, period string) (*sharedcontext.HistoricalData, error) {
	return nil, &ErrNotSupported{Source: c.name, Method: "historical_data"}
}

type fmpFinancialStatementEntry map[string]any

func (c *FMPClient) GetFinancials(ctx context.Context, symbol, statementType string) (*sharedcontext.FinancialStatements, error) {
	endpoint := financialStatementEndpoint(statementType)
	url := fmt.Sprintf("%s/%s/%s?apikey=%s", c.baseURL, endpoint, symbol, c.apiKey)
	var entries []fmpFinancialStatementEntry
	if err := c.getJSON(ctx, url, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &Error{Source: c.name, Kind: KindEmpty}
	}
	out := &sharedcontext.FinancialStatements{
		Symbol:        symbol,
		StatementType: statementType,
		Data:          map[string]any{"statements": entries},
		Count:         len(entries),
		Timestamp:     time.Now().UTC(),
	}
	c.addCitation("financial_statements", symbol, url)
	return out, nil
}

func financialStatementEndpoint(statementType string) string {
	switch statementType {
	case "balance_sheet":
		return "balance-sheet-statement"
	case "cash_flow":
		return "cash-flow-statement"
	default:
		return "income-statement"
	}
}

type fmpNewsItem struct {
	Title       string `json:"title"`
	Text        string `json:"text"`
	URL         string `json:"url"`
	Site        string `json:"site"`
	PublishedDate string `json:"publishedDate"`
}

func (c *FMPClient) GetNews(ctx context.Context, symbol string, n int) (*sharedcontext.NewsData, error) {
	url := fmt.Sprintf("%s/stock_news?tickers=%s&limit=%d&apikey=%s", c.baseURL, symbol, n, c.apiKey)
	var items []fmpNewsItem
	if err := c.getJSON(ctx, url, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &Error{Source: c.name, Kind: KindEmpty}
	}
	news := &sharedcontext.NewsData{Symbol: symbol, Timestamp: time.Now().UTC()}
	for i, item := range items {
		if i >= n {
			break
		}
		published, _ := time.Parse("2006-01-02 15:04:05", item.PublishedDate)
		news.Articles = append(news.Articles, sharedcontext.NewsArticle{
			Title:         item.Title,
			Text:          item.Text,
			URL:           item.URL,
			Publisher:     item.Site,
			PublishedDate: published.UTC(),
		})
	}
	news.Count = len(news.Articles)
	c.addCitation("news", symbol, url)
	return news, nil
}

func (c *FMPClient) GetTechnicalIndicators(ctx context.Context, symbol, indicator, interval string, period int) (*sharedcontext.TechnicalIndicatorData, error) {
	return nil, &ErrNotSupported{Source: c.name, Method: "technical_indicators"}
}

func (c *FMPClient) getJSON(ctx context.Context, url string, out any) error {
	return c.doWithRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return &Error{Source: c.name, Kind: KindConnection, Err: err}
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return &Error{Source: c.name, Kind: KindTimeout, Err: err}
			}
			return &Error{Source: c.name, Kind: KindConnection, Err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return httpErrorFromStatus(c.name, resp)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

func parseInt(s string) int {
	v := parseFloat(s)
	return int(v)
}
