// Package dataclient implements the UnifiedDataClient: the single entry
// point agents use to fetch finance data, with priority-ordered,
// short-circuiting multi-source dispatch (spec.md §4.6).
package dataclient

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"finyx/internal/guardrails"
	"finyx/internal/integrations"
	"finyx/internal/progress"
	"finyx/internal/sharedcontext"
	"finyx/internal/sources"
)

// ErrNoSources is raised when IntegrationConfig resolves zero enabled
// sources for a data type (spec.md §4.6 step 2).
var ErrNoSources = errors.New("no enabled integrations for data type")

// ErrAllSourcesFailed is raised when every candidate source failed or
// returned empty (spec.md §4.6 step 5).
var ErrAllSourcesFailed = errors.New("all sources failed")

// Client is the UnifiedDataClient.
type Client struct {
	sourcesByName map[string]sources.Client
	integrations  *integrations.Config
	log           zerolog.Logger

	// onEvent, when set, receives every api_call_* progress event emitted
	// during dispatch so the caller can forward it into the shared context.
	onEvent func(progress.Event)
}

// New builds a Client dispatching across the supplied named source clients.
func New(sourceClients map[string]sources.Client, integ *integrations.Config, log zerolog.Logger) *Client {
	return &Client{sourcesByName: sourceClients, integrations: integ, log: log}
}

// OnEvent registers a callback invoked for every progress event the client emits.
func (c *Client) OnEvent(fn func(progress.Event)) { c.onEvent = fn }

func (c *Client) emit(e progress.Event) {
	if c.onEvent != nil {
		c.onEvent(e)
	}
}

// dispatch runs the priority-ordered, short-circuiting source walk common to
// every public method (spec.md §4.6 steps 2-5). fn must return (nonEmpty, error).
func dispatch[T any](
	ctx context.Context,
	c *Client,
	agent string,
	dataType integrations.DataType,
	symbol, preferredSource string,
	order int,
	fn func(ctx context.Context, src sources.Client) (T, error),
) (T, error) {
	var zero T

	if err := guardrails.ValidateSymbol(symbol); err != nil {
		return zero, err
	}

	enabled := c.integrations.EnabledSourcesForDataType(dataType)
	if len(enabled) == 0 {
		return zero, ErrNoSources
	}

	candidates := orderWithPreferred(enabled, preferredSource)

	var lastErr error
	for _, name := range candidates {
		src, ok := c.sourcesByName[name]
		if !ok {
			continue
		}
		if !c.integrations.IsEnabled(name) {
			c.emit(progress.APICallSkipped(agent, name, string(dataType), symbol, "", order, true))
			continue
		}

		c.emit(progress.APICallStart(agent, name, string(dataType), symbol, "", order, true))
		result, err := fn(ctx, src)
		if err == nil {
			c.emit(progress.APICallSuccess(agent, name, string(dataType), symbol, "", order, true))
			return result, nil
		}
		c.log.Debug().Err(err).Str("source", name).Str("symbol", symbol).Str("dataType", string(dataType)).Msg("source call failed")
		c.emit(progress.APICallFailed(agent, name, string(dataType), symbol, "", order, true, err))
		lastErr = err
	}

	if lastErr == nil {
		lastErr = ErrAllSourcesFailed
	}
	return zero, errors.Join(ErrAllSourcesFailed, lastErr)
}

func orderWithPreferred(enabled []string, preferred string) []string {
	if preferred == "" {
		return enabled
	}
	found := false
	for _, s := range enabled {
		if s == preferred {
			found = true
			break
		}
	}
	if !found {
		return enabled
	}
	out := make([]string, 0, len(enabled))
	out = append(out, preferred)
	for _, s := range enabled {
		if s != preferred {
			out = append(out, s)
		}
	}
	return out
}

// GetStockPrice dispatches a stock_price fetch across enabled sources.
func (c *Client) GetStockPrice(ctx context.Context, agent, symbol, preferredSource string, order int) (*sharedcontext.PriceData, error) {
	return dispatch(ctx, c, agent, integrations.DataTypeStockPrice, symbol, preferredSource, order,
		func(ctx context.Context, src sources.Client) (*sharedcontext.PriceData, error) {
			return src.GetStockPrice(ctx, symbol)
		})
}

// GetCompanyInfo dispatches a company_info fetch across enabled sources.
func (c *Client) GetCompanyInfo(ctx context.Context, agent, symbol, preferredSource string, order int) (*sharedcontext.CompanyInfo, error) {
	return dispatch(ctx, c, agent, integrations.DataTypeCompanyInfo, symbol, preferredSource, order,
		func(ctx context.Context, src sources.Client) (*sharedcontext.CompanyInfo, error) {
			return src.GetCompanyInfo(ctx, symbol)
		})
}

// GetHistoricalData dispatches a historical_data fetch across enabled sources.
func (c *Client) GetHistoricalData(ctx context.Context, agent, symbol, period, preferredSource string, order int) (*sharedcontext.HistoricalData, error) {
	return dispatch(ctx, c, agent, integrations.DataTypeHistoricalData, symbol, preferredSource, order,
		func(ctx context.Context, src sources.Client) (*sharedcontext.HistoricalData, error) {
			return src.GetHistoricalData(ctx, symbol, period)
		})
}

// GetFinancials dispatches a financial_statements fetch across enabled sources.
func (c *Client) GetFinancials(ctx context.Context, agent, symbol, statementType, preferredSource string, order int) (*sharedcontext.FinancialStatements, error) {
	return dispatch(ctx, c, agent, integrations.DataTypeFinancialStatements, symbol, preferredSource, order,
		func(ctx context.Context, src sources.Client) (*sharedcontext.FinancialStatements, error) {
			return src.GetFinancials(ctx, symbol, statementType)
		})
}

// GetNews dispatches a news fetch across enabled sources.
func (c *Client) GetNews(ctx context.Context, agent, symbol string, n int, preferredSource string, order int) (*sharedcontext.NewsData, error) {
	return dispatch(ctx, c, agent, integrations.DataTypeNews, symbol, preferredSource, order,
		func(ctx context.Context, src sources.Client) (*sharedcontext.NewsData, error) {
			return src.GetNews(ctx, symbol, n)
		})
}

// GetTechnicalIndicators dispatches a technical_indicators fetch across enabled sources.
func (c *Client) GetTechnicalIndicators(ctx context.Context, agent, symbol, indicator, interval string, period int, preferredSource string, order int) (*sharedcontext.TechnicalIndicatorData, error) {
	return dispatch(ctx, c, agent, integrations.DataTypeTechnicalIndicators, symbol, preferredSource, order,
		func(ctx context.Context, src sources.Client) (*sharedcontext.TechnicalIndicatorData, error) {
			return src.GetTechnicalIndicators(ctx, symbol, indicator, interval, period)
		})
}

// DrainCitations collects and clears the citation buffers of every
// underlying source client (spec.md §4.7 "Forwards the UnifiedDataClient's
// citation buffer into the shared context").
func (c *Client) DrainCitations() []sharedcontext.Citation {
	var out []sharedcontext.Citation
	for _, src := range c.sourcesByName {
		out = append(out, src.Citations()...)
	}
	return out
}
