package providers

import (
	"net/http"
	"os"

	"github.com/c360studio/learnpath/llm"
)

// OpenAIProvider targets api.openai.com or an OpenRouter-style gateway. It
// shares the chat completions codec with Ollama but carries its own default
// URL and the optional OpenRouter attribution headers.
type OpenAIProvider struct {
	chatCompletions
}

func init() {
	llm.RegisterProvider(&OpenAIProvider{chatCompletions{
		name:       "openai",
		defaultURL: "https://api.openai.com/v1",
	}})
}

func (o *OpenAIProvider) SetHeaders(req *http.Request) {
	o.chatCompletions.SetHeaders(req)

	if site := os.Getenv("OPENROUTER_SITE_URL"); site != "" {
		req.Header.Set("HTTP-Referer", site)
	}
	if name := os.Getenv("OPENROUTER_SITE_NAME"); name != "" {
		req.Header.Set("X-Title", name)
	}
}
