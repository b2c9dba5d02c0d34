package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDoWithRetry_RetriesOnRetryableThenSucceeds(t *testing.T) {
	b := newBase("test", &http.Client{}, 0, zerolog.Nop())
	attempts := 0
	err := b.doWithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return &Error{Source: "test", Kind: KindServer, Status: 500}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDoWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	b := newBase("test", &http.Client{}, 0, zerolog.Nop())
	attempts := 0
	err := b.doWithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return &Error{Source: "test", Kind: KindAuth, Status: 401}
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestDoWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	b := newBase("test", &http.Client{}, 0, zerolog.Nop())
	attempts := 0
	err := b.doWithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return &Error{Source: "test", Kind: KindRateLimited, Status: 429}
	})
	require.Error(t, err)
	require.Equal(t, maxRetryAttempts, attempts)
}

func TestRateLimiter_EnforcesMinimumInterval(t *testing.T) {
	rl := NewRateLimiter(50 * time.Millisecond)
	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	require.NoError(t, rl.Wait(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestYahooClient_GetStockPrice_AddsCitationOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"AAPL","regularMarketPrice":210.5,"chartPreviousClose":208.0,"regularMarketDayHigh":211,"regularMarketDayLow":207,"regularMarketVolume":1000000}}]}}`))
	}))
	defer srv.Close()

	c := NewYahooClient(srv.Client(), zerolog.Nop(), false)
	c.chartBaseURL = srv.URL

	price, err := c.GetStockPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, 210.5, price.CurrentPrice)
	require.Len(t, c.Citations(), 1)
}

func TestYahooClient_GetStockPrice_EmptyResultIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[]}}`))
	}))
	defer srv.Close()

	c := NewYahooClient(srv.Client(), zerolog.Nop(), false)
	c.chartBaseURL = srv.URL

	_, err := c.GetStockPrice(context.Background(), "AAPL")
	require.Error(t, err)
	var srcErr *Error
	require.True(t, errors.As(err, &srcErr))
	require.Equal(t, KindEmpty, srcErr.Kind)
}

func TestYahooClient_GetStockPrice_AuthErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewYahooClient(srv.Client(), zerolog.Nop(), false)
	c.chartBaseURL = srv.URL

	_, err := c.GetStockPrice(context.Background(), "AAPL")
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
