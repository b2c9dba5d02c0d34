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

const yahooMinInterval = 100 * time.Millisecond

// YahooClient is the yahoo_finance SourceClient: price, company, historical,
// and news (spec.md §4.4 preferred-order table; §4.5).
type YahooClient struct {
	base
	chartBaseURL   string
	quoteSummaryURL string
	newsBaseURL    string
	extractor      *NewsExtractor
}

// NewYahooClient builds a YahooClient. extractFullText, when true, fetches
// and extracts each news article's full body via go-readability instead of
// relying on the headline summary (config.StoreConfig.NewsExtractFull).
func NewYahooClient(httpClient *http.Client, log zerolog.Logger, extractFullText bool) *YahooClient {
	c := &YahooClient{
		base:            newBase(SourceNameYahoo, httpClient, yahooMinInterval, log),
		chartBaseURL:    "https://query1.finance.yahoo.com/v8/finance/chart",
		quoteSummaryURL: "https://query2.finance.yahoo.com/v10/finance/quoteSummary",
		newsBaseURL:     "https://query1.finance.yahoo.com/v1/finance/search",
	}
	if extractFullText {
		c.extractor = NewNewsExtractor(httpClient)
	}
	return c
}

const SourceNameYahoo = "yahoo_finance"

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
				RegularMarketVolume int64   `json:"regularMarketVolume"`
				FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow    float64 `json:"fiftyTwoWeekLow"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *YahooClient) GetStockPrice(ctx context.Context, symbol string) (*sharedcontext.PriceData, error) {
	var resp yahooChartResponse
	url := fmt.Sprintf("%s/%s?interval=1d&range=1d", c.chartBaseURL, symbol)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if len(resp.Chart.Result) == 0 {
		return nil, &Error{Source: c.name, Kind: KindEmpty}
	}
	meta := resp.Chart.Result[0].Meta
	price := &sharedcontext.PriceData{
		Symbol:           symbol,
		CurrentPrice:     meta.RegularMarketPrice,
		PreviousClose:    meta.PreviousClose,
		Change:           meta.RegularMarketPrice - meta.PreviousClose,
		Volume:           meta.RegularMarketVolume,
		DayHigh:          meta.RegularMarketDayHigh,
		DayLow:           meta.RegularMarketDayLow,
		FiftyTwoWeekHigh: floatPtrOrNil(meta.FiftyTwoWeekHigh),
		FiftyTwoWeekLow:  floatPtrOrNil(meta.FiftyTwoWeekLow),
		Timestamp:        time.Now().UTC(),
	}
	if meta.PreviousClose != 0 {
		price.ChangePercent = price.Change / meta.PreviousClose * 100
	}
	c.addCitation("price", symbol, url)
	return price, nil
}

type yahooQuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Sector            string `json:"sector"`
				Industry          string `json:"industry"`
				LongBusinessSummary string `json:"longBusinessSummary"`
				FullTimeEmployees int    `json:"fullTimeEmployees"`
				Website           string `json:"website"`
				Address1          string `json:"address1"`
				City              string `json:"city"`
			} `json:"assetProfile"`
			QuoteType struct {
				LongName string `json:"longName"`
			} `json:"quoteType"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

func (c *YahooClient) GetCompanyInfo(ctx context.Context, symbol string) (*sharedcontext.CompanyInfo, error) {
	var resp yahooQuoteSummaryResponse
	url := fmt.Sprintf("%s/%s?modules=assetProfile,quoteType", c.quoteSummaryURL, symbol)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, &Error{Source: c.name, Kind: KindEmpty}
	}
	r := resp.QuoteSummary.Result[0]
	info := &sharedcontext.CompanyInfo{
		Symbol:      symbol,
		Name:        r.QuoteType.LongName,
		Sector:      r.AssetProfile.Sector,
		Industry:    r.AssetProfile.Industry,
		Description: r.AssetProfile.LongBusinessSummary,
		Website:     r.AssetProfile.Website,
		Address:     r.AssetProfile.Address1 + ", " + r.AssetProfile.City,
		Timestamp:   time.Now().UTC(),
	}
	if r.AssetProfile.FullTimeEmployees > 0 {
		info.Employees = &r.AssetProfile.FullTimeEmployees
	}
	c.addCitation("company_info", symbol, url)
	return info, nil
}

func (c *YahooClient) GetHistoricalData(ctx context.Context, symbol, period string) (*sharedcontext.HistoricalData, error) {
	var resp yahooChartResponse
	url := fmt.Sprintf("%s/%s?interval=1d&range=%s", c.chartBaseURL, symbol, period)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if len(resp.Chart.Result) == 0 {
		return nil, &Error{Source: c.name, Kind: KindEmpty}
	}
	result := resp.Chart.Result[0]
	hist := &sharedcontext.HistoricalData{Symbol: symbol, Period: period, Timestamp: time.Now().UTC()}
	if len(result.Indicators.Quote) > 0 {
		q := result.Indicators.Quote[0]
		for i, ts := range result.Timestamp {
			bar := sharedcontext.OHLCV{Date: time.Unix(ts, 0).UTC()}
			if i < len(q.Open) && q.Open[i] != nil {
				bar.Open = *q.Open[i]
			}
			if i < len(q.High) && q.High[i] != nil {
				bar.High = *q.High[i]
			}
			if i < len(q.Low) && q.Low[i] != nil {
				bar.Low = *q.Low[i]
			}
			if i < len(q.Close) && q.Close[i] != nil {
				bar.Close = *q.Close[i]
			}
			if i < len(q.Volume) && q.Volume[i] != nil {
				bar.Volume = *q.Volume[i]
			}
			hist.Data = append(hist.Data, bar)
		}
	}
	if len(hist.Data) == 0 {
		return nil, &Error{Source: c.name, Kind: KindEmpty}
	}
	c.addCitation("historical_data", symbol, url)
	return hist, nil
}

func (c *YahooClient) GetFinancials(ctx context.Context, symbol, statementType string) (*sharedcontext.FinancialStatements, error) {
	return nil, &ErrNotSupported{Source: c.name, Method: "financial_statements"}
}

type yahooSearchResponse struct {
	News []struct {
		Title         string `json:"title"`
		Link          string `json:"link"`
		Publisher     string `json:"publisher"`
		ProviderPublishTime int64 `json:"providerPublishTime"`
		Summary       string `json:"summary"`
	} `json:"news"`
}

func (c *YahooClient) GetNews(ctx context.Context, symbol string, n int) (*sharedcontext.NewsData, error) {
	var resp yahooSearchResponse
	url := fmt.Sprintf("%s?q=%s&newsCount=%d", c.newsBaseURL, symbol, n)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if len(resp.News) == 0 {
		return nil, &Error{Source: c.name, Kind: KindEmpty}
	}
	news := &sharedcontext.NewsData{Symbol: symbol, Timestamp: time.Now().UTC()}
	for i, item := range resp.News {
		if i >= n {
			break
		}
		article := sharedcontext.NewsArticle{
			Title:         item.Title,
			Text:          item.Summary,
			URL:           item.Link,
			Publisher:     item.Publisher,
			PublishedDate: time.Unix(item.ProviderPublishTime, 0).UTC(),
		}
		if c.extractor != nil && article.URL != "" {
			if full, err := c.extractor.Extract(ctx, article.URL); err == nil && full != "" {
				article.Text = full
			}
		}
		news.Articles = append(news.Articles, article)
	}
	news.Count = len(news.Articles)
	c.addCitation("news", symbol, url)
	return news, nil
}

func (c *YahooClient) GetTechnicalIndicators(ctx context.Context, symbol, indicator, interval string, period int) (*sharedcontext.TechnicalIndicatorData, error) {
	return nil, &ErrNotSupported{Source: c.name, Method: "technical_indicators"}
}

func (c *YahooClient) getJSON(ctx context.Context, url string, out any) error {
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

func floatPtrOrNil(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}
