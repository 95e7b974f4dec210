package search

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"context"

	"github.com/c360studio/learnpath/course"
)

// maxResponseSize limits the search response body size.
const maxResponseSize = 4 * 1024 * 1024 // 4MB

// Client executes web searches through a configured provider.
type Client struct {
	provider   Provider
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxResults int
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithBaseURL overrides the provider's default endpoint.
func WithBaseURL(url string) ClientOption {
	return func(client *Client) {
		client.baseURL = url
	}
}

// WithMaxResults sets the per-query result cap.
func WithMaxResults(n int) ClientOption {
	return func(client *Client) {
		client.maxResults = n
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a search client for the named provider.
func NewClient(providerName, apiKey string, opts ...ClientOption) (*Client, error) {
	provider := GetProvider(providerName)
	if provider == nil {
		return nil, fmt.Errorf("unknown search provider: %s", providerName)
	}

	c := &Client{
		provider:   provider,
		apiKey:     apiKey,
		maxResults: 5,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Search executes one query. It never returns a Go error: transport or
// provider failures become an error marker on the result so callers can
// proceed with partial research. Cancellation surfaces the same way; callers
// that care check their own context.
func (c *Client) Search(ctx context.Context, query course.SearchQuery, language string) course.SearchResult {
	result := course.SearchResult{
		Query:     query.Keywords,
		Rationale: query.Rationale,
	}

	items, err := c.doSearch(ctx, Query{
		Keywords:   query.Keywords,
		Language:   language,
		MaxResults: c.maxResults,
	})
	if err != nil {
		c.logger.Warn("Search failed",
			"provider", c.provider.Name(),
			"keywords", query.Keywords,
			"error", err)
		result.Err = err.Error()
		return result
	}

	result.Items = items
	return result
}

func (c *Client) doSearch(ctx context.Context, q Query) ([]course.SearchItem, error) {
	req, err := c.provider.BuildRequest(ctx, c.baseURL, c.apiKey, q)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, fmt.Errorf("search API error (status %d): %s", resp.StatusCode, preview)
	}

	items, err := c.provider.ParseResponse(body)
	if err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	return items, nil
}
