package sources

import (
	"context"
	"net/http"
	"net/url"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"
)

// NewsExtractor fetches a news article's HTML and reduces it to clean
// markdown body text, used when NEWS_EXTRACT_FULL_TEXT is enabled so the
// Analyst agent's sentiment prompt sees full article bodies instead of
// search-result summaries (spec.md §4.8 "concatenate up to 5 articles").
type NewsExtractor struct {
	httpClient *http.Client
}

// NewNewsExtractor builds a NewsExtractor using httpClient for article fetches.
func NewNewsExtractor(httpClient *http.Client) *NewsExtractor {
	return &NewsExtractor{httpClient: httpClient}
}

// Extract downloads articleURL and returns its main content as markdown.
func (e *NewsExtractor) Extract(ctx context.Context, articleURL string) (string, error) {
	u, err := url.Parse(articleURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Source: "news_extract", Kind: KindServer, Status: resp.StatusCode}
	}

	article, err := readability.FromReader(resp.Body, u)
	if err != nil {
		return "", err
	}

	md, err := htmltomarkdown.ConvertString(article.Content)
	if err != nil {
		return article.TextContent, nil
	}
	return md, nil
}

// fetchTimeout bounds a single article extraction so one slow publisher
// cannot stall the sentiment fan-out.
const fetchTimeout = 10 * time.Second

// ExtractWithTimeout is Extract bounded by fetchTimeout, for callers that
// don't already carry a deadline on ctx.
func (e *NewsExtractor) ExtractWithTimeout(ctx context.Context, articleURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	return e.Extract(ctx, articleURL)
}
