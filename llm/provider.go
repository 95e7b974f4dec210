package llm

import (
	"net/http"
	"sync"
)

// Provider adapts one upstream API shape. Implementations register
// themselves in an init func; the client looks them up by the provider name
// in the endpoint config.
type Provider interface {
	Name() string

	// BuildURL resolves the full endpoint URL from the configured base.
	BuildURL(baseURL string) string

	// SetHeaders attaches auth and API-version headers.
	SetHeaders(req *http.Request)

	// BuildRequestBody marshals the provider's request JSON. A nil
	// temperature defers to the provider default.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse decodes the provider's response JSON.
	ParseResponse(body []byte, model string) (*Response, error)
}

var (
	providersMu sync.RWMutex
	providers   = make(map[string]Provider)
)

func RegisterProvider(p Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[p.Name()] = p
}

// GetProvider returns nil when no provider is registered under name.
func GetProvider(name string) Provider {
	providersMu.RLock()
	defer providersMu.RUnlock()
	return providers[name]
}

func ListProviders() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}
