package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/c360studio/learnpath/course"
	"github.com/c360studio/learnpath/search"
)

const braveDefaultURL = "https://api.search.brave.com/res/v1/web/search"

// BraveProvider implements the Brave Web Search API.
type BraveProvider struct{}

func init() {
	search.RegisterProvider(&BraveProvider{})
}

// Name returns "brave".
func (p *BraveProvider) Name() string {
	return "brave"
}

// BuildRequest constructs a Brave search request. Authentication is the
// X-Subscription-Token header; the query goes in the URL.
func (p *BraveProvider) BuildRequest(ctx context.Context, baseURL, apiKey string, q search.Query) (*http.Request, error) {
	if baseURL == "" {
		baseURL = braveDefaultURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse brave URL: %w", err)
	}

	params := u.Query()
	params.Set("q", q.Keywords)
	params.Set("count", strconv.Itoa(q.MaxResults))
	if q.Language != "" {
		params.Set("search_lang", q.Language)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", apiKey)
	return req, nil
}

// ParseResponse extracts search items from a Brave response.
func (p *BraveProvider) ParseResponse(body []byte) ([]course.SearchItem, error) {
	var parsed struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}

	items := make([]course.SearchItem, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		items = append(items, course.SearchItem{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Description,
			Source:  "brave",
		})
	}
	return items, nil
}
