package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"finyx/internal/sharedcontext"
)

const SourceNameAlphaVantage = "alpha_vantage"

// alphaVantageMinInterval honors the 5-calls/min free tier (spec.md §4.5).
const alphaVantageMinInterval = 12 * time.Second

// AlphaVantageClient is the alpha_vantage SourceClient: price, historical,
// and technical indicators (it has no company_info or news endpoint wired).
type AlphaVantageClient struct {
	base
	baseURL string
	apiKey  string
}

// NewAlphaVantageClient builds an AlphaVantageClient authenticated with apiKey.
func NewAlphaVantageClient(httpClient *http.Client, apiKey string, log zerolog.Logger) *AlphaVantageClient {
	return &AlphaVantageClient{
		base:    newBase(SourceNameAlphaVantage, httpClient, alphaVantageMinInterval, log),
		baseURL: "https://www.alphavantage.co/query",
		apiKey:  apiKey,
	}
}

type alphaVantageGlobalQuote struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		PreviousClose string `json:"08. previous close"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
		High          string `json:"03. high"`
		Low           string `json:"04. low"`
	} `json:"Global Quote"`
}

func (c *AlphaVantageClient) GetStockPrice(ctx context.Context, symbol string) (*sharedcontext.PriceData, error) {
	url := fmt.Sprintf("%s?function=GLOBAL_QUOTE&symbol=%s&apikey=%s", c.baseURL, symbol, c.apiKey)
	var resp alphaVantageGlobalQuote
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if resp.GlobalQuote.Symbol == "" {
		return nil, &Error{Source: c.name, Kind: KindEmpty}
	}
	price := &sharedcontext.PriceData{
		Symbol:        symbol,
		CurrentPrice:  parseFloat(resp.GlobalQuote.Price),
		PreviousClose: parseFloat(resp.GlobalQuote.PreviousClose),
		Change:        parseFloat(resp.GlobalQuote.Change),
		ChangePercent: parsePercent(resp.GlobalQuote.ChangePercent),
		Volume:        int64(parseFloat(resp.GlobalQuote.Volume)),
		DayHigh:       parseFloat(resp.GlobalQuote.High),
		DayLow:        parseFloat(resp.GlobalQuote.Low),
		Timestamp:     time.Now().UTC(),
	}
	c.addCitation("price", symbol, url)
	return price, nil
}

func (c *AlphaVantageClient) GetCompanyInfo(ctx context.Context, symbol string) (*sharedcontext.CompanyInfo, error) {
	return nil, &ErrNotSupported{Source: c.name, Method: "company_info"}
}

type alphaVantageDailySeries struct {
	TimeSeries map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	} `json:"Time Series (Daily)"`
}

func (c *AlphaVantageClient) GetHistoricalData(ctx context.Context, symbol, period string) (*sharedcontext.HistoricalData, error) {
	url := fmt.Sprintf("%s?function=TIME_SERIES_DAILY&symbol=%s&apikey=%s", c.baseURL, symbol, c.apiKey)
	var resp alphaVantageDailySeries
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if len(resp.TimeSeries) == 0 {
		return nil, &Error{Source: c.name, Kind: KindEmpty}
	}
	hist := &sharedcontext.HistoricalData{Symbol: symbol, Period: period, Timestamp: time.Now().UTC()}
	for dateStr, bar := range resp.TimeSeries {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		hist.Data = append(hist.Data, sharedcontext.OHLCV{
			Date:   date,
			Open:   parseFloat(bar.Open),
			High:   parseFloat(bar.High),
			Low:    parseFloat(bar.Low),
			Close:  parseFloat(bar.Close),
			Volume: int64(parseFloat(bar.Volume)),
		})
	}
	c.addCitation("historical_data", symbol, url)
	return hist, nil
}

func (c *AlphaVantageClient) GetFinancials(ctx context.Context, symbol, statementType string) (*sharedcontext.FinancialStatements, error) {
	return nil, &ErrNotSupported{Source: c.name, Method: "financial_statements"}
}

func (c *AlphaVantageClient) GetNews(ctx context.Context, symbol string, n int) (*sharedcontext.NewsData, error) {
	return nil, &ErrNotSupported{Source: c.name, Method: "news"}
}

type alphaVantageIndicator struct {
	MetaData struct {
		Symbol   string `json:"2: Symbol"`
		Interval string `json:"3: Interval"`
	} `json:"Meta Data"`
}

func (c *AlphaVantageClient) GetTechnicalIndicators(ctx context.Context, symbol, indicator, interval string, period int) (*sharedcontext.TechnicalIndicatorData, error) {
	url := fmt.Sprintf("%s?function=%s&symbol=%s&interval=%s&time_period=%d&series_type=close&apikey=%s",
		c.baseURL, indicator, symbol, interval, period, c.apiKey)

	var raw map[string]json.RawMessage
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &Error{Source: c.name, Kind: KindEmpty}
	}

	data := map[string]any{}
	for key, v := range raw {
		if key == "Meta Data" {
			continue
		}
		var parsed map[string]any
		if err := json.Unmarshal(v, &parsed); err == nil {
			data[key] = parsed
		}
	}

	out := &sharedcontext.TechnicalIndicatorData{
		Symbol:     symbol,
		Indicator:  indicator,
		Interval:   interval,
		TimePeriod: period,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}
	c.addCitation("technical_indicators", symbol, url)
	return out, nil
}

func (c *AlphaVantageClient) getJSON(ctx context.Context, url string, out any) error {
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

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parsePercent(s string) float64 {
	if len(s) > 0 && s[len(s)-1] == '%' {
		s = s[:len(s)-1]
	}
	return parseFloat(s)
}
