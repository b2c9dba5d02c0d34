package sources

import (
	"context"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"finyx/internal/sharedcontext"
)

const maxRetryAttempts = 3

// Client is the common contract the three concrete source clients satisfy
// (spec.md §4.5). Not every client implements every method — callers probe
// availability via the method returning ErrNotSupported.
type Client interface {
	Name() string
	GetStockPrice(ctx context.Context, symbol string) (*sharedcontext.PriceData, error)
	GetCompanyInfo(ctx context.Context, symbol string) (*sharedcontext.CompanyInfo, error)
	GetHistoricalData(ctx context.Context, symbol, period string) (*sharedcontext.HistoricalData, error)
	GetFinancials(ctx context.Context, symbol, statementType string) (*sharedcontext.FinancialStatements, error)
	GetNews(ctx context.Context, symbol string, n int) (*sharedcontext.NewsData, error)
	GetTechnicalIndicators(ctx context.Context, symbol, indicator, interval string, period int) (*sharedcontext.TechnicalIndicatorData, error)
	// Citations drains the client-local citation buffer accumulated since
	// the last call (spec.md §4.7 "Forwards the UnifiedDataClient's
	// citation buffer into the shared context").
	Citations() []sharedcontext.Citation
}

// ErrNotSupported signals a client does not implement a given data type
// (e.g. Alpha Vantage has no company_info endpoint wired here).
type ErrNotSupported struct {
	Source, Method string
}

func (e *ErrNotSupported) Error() string {
	return e.Source + " does not support " + e.Method
}

// base is embedded by the three concrete clients; it owns the HTTP
// transport, rate limiter, retry loop, and citation buffer common to all of
// them (spec.md §4.5 "Common contract"). A single base instance is shared
// across the concurrent per-symbol/per-data-type fan-outs in internal/agents
// (spec.md §4.7/§4.8 worker pools), so the citation buffer is mutex-guarded.
type base struct {
	name        string
	httpClient  *http.Client
	rateLimiter *RateLimiter
	log         zerolog.Logger

	citationsMu sync.Mutex
	citations   []sharedcontext.Citation
}

func newBase(name string, httpClient *http.Client, minInterval time.Duration, log zerolog.Logger) base {
	return base{
		name:        name,
		httpClient:  httpClient,
		rateLimiter: NewRateLimiter(minInterval),
		log:         log,
	}
}

func (b *base) Name() string { return b.name }

// RateLimiter exposes the client's rate limiter so callers can attach
// cross-process Redis coordination via RateLimiter.WithRedis (spec.md §5
// "Per-source rate limiters are process-wide and shared across all agents
// using that source").
func (b *base) RateLimiter() *RateLimiter { return b.rateLimiter }

func (b *base) Citations() []sharedcontext.Citation {
	b.citationsMu.Lock()
	defer b.citationsMu.Unlock()
	out := b.citations
	b.citations = nil
	return out
}

func (b *base) addCitation(dataPoint, symbol, url string) {
	b.citationsMu.Lock()
	defer b.citationsMu.Unlock()
	b.citations = append(b.citations, sharedcontext.Citation{
		Source:    b.name,
		URL:       url,
		Date:      time.Now().UTC().Format("2006-01-02"),
		DataPoint: dataPoint,
		Symbol:    symbol,
	})
}

// doWithRetry runs fn up to maxRetryAttempts times, honoring the rate
// limiter before every attempt and retrying only on the error kinds spec.md
// §4.5 marks retryable, with exponential backoff 2^attempt seconds.
func (b *base) doWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetryAttempts; attempt++ {
		if err := b.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		srcErr, ok := err.(*Error)
		if !ok || !srcErr.Retryable() {
			return err
		}
		if attempt == maxRetryAttempts-1 {
			break
		}
		backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
		t := time.NewTimer(backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}

func httpErrorFromStatus(source string, resp *http.Response) *Error {
	return classifyStatus(source, resp.StatusCode, nil)
}
