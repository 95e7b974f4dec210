// Package search provides a provider-agnostic web search client. Transport
// and provider failures are absorbed into the returned SearchResult as an
// error marker rather than surfaced as Go errors, so research stages can
// always proceed with whatever results they got.
package search

import (
	"context"
	"net/http"
	"sync"

	"github.com/c360studio/learnpath/course"
)

// Query is one provider-level search request.
type Query struct {
	Keywords   string
	Language   string // BCP-47-ish, e.g. "en"
	MaxResults int
}

// Provider defines the interface for search provider implementations.
type Provider interface {
	// Name returns the provider identifier (e.g., "tavily", "brave").
	Name() string

	// BuildRequest constructs the HTTP request for a query, including
	// authentication headers. baseURL may be empty to use the provider default.
	BuildRequest(ctx context.Context, baseURL, apiKey string, q Query) (*http.Request, error)

	// ParseResponse extracts search items from provider-specific JSON.
	ParseResponse(body []byte) ([]course.SearchItem, error)
}

// providerRegistry holds registered providers.
var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider to the registry.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns all registered provider names.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	return names
}
