// Package providers contains built-in search provider implementations.
// Importing this package registers them with the search registry.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/c360studio/learnpath/course"
	"github.com/c360studio/learnpath/search"
)

const tavilyDefaultURL = "https://api.tavily.com/search"

// TavilyProvider implements the Tavily search API.
type TavilyProvider struct{}

func init() {
	search.RegisterProvider(&TavilyProvider{})
}

// Name returns "tavily".
func (p *TavilyProvider) Name() string {
	return "tavily"
}

// BuildRequest constructs a Tavily search request. Tavily authenticates with
// the API key in the JSON body rather than a header.
func (p *TavilyProvider) BuildRequest(ctx context.Context, baseURL, apiKey string, q search.Query) (*http.Request, error) {
	if baseURL == "" {
		baseURL = tavilyDefaultURL
	}

	payload := map[string]any{
		"api_key":        apiKey,
		"query":          q.Keywords,
		"max_results":    q.MaxResults,
		"search_depth":   "basic",
		"include_answer": false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// ParseResponse extracts search items from a Tavily response.
func (p *TavilyProvider) ParseResponse(body []byte) ([]course.SearchItem, error) {
	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	items := make([]course.SearchItem, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		items = append(items, course.SearchItem{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Source:  "tavily",
		})
	}
	return items, nil
}
