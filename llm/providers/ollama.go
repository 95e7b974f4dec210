package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/c360studio/learnpath/llm"
)

// chatCompletions is the OpenAI-style wire codec shared by every endpoint
// that speaks /chat/completions: Ollama, vLLM, OpenRouter, and OpenAI proper.
type chatCompletions struct {
	name       string
	defaultURL string
}

func (c *chatCompletions) Name() string { return c.name }

// BuildURL appends the chat completions path unless the base URL already
// carries it (some gateways expose the full path directly).
func (c *chatCompletions) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = c.defaultURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

func (c *chatCompletions) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

type chatBody struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildRequestBody marshals the chat completions body. A nil temperature
// leaves the server default in place; zero means deterministic.
func (c *chatCompletions) BuildRequestBody(model string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	body := chatBody{
		Model:       model,
		Messages:    make([]chatMessage, len(messages)),
		Temperature: temperature,
	}
	for i, msg := range messages {
		body.Messages[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}
	if maxTokens > 0 {
		body.MaxTokens = &maxTokens
	}
	return json.Marshal(body)
}

type chatReply struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *chatCompletions) ParseResponse(body []byte, _ string) (*llm.Response, error) {
	var reply chatReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", c.name, err)
	}
	if len(reply.Choices) == 0 {
		return nil, fmt.Errorf("%s response has no choices", c.name)
	}

	usage := llm.TokenUsage{
		PromptTokens:     reply.Usage.PromptTokens,
		CompletionTokens: reply.Usage.CompletionTokens,
		TotalTokens:      reply.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	return &llm.Response{
		Content:      reply.Choices[0].Message.Content,
		Model:        reply.Model,
		Usage:        usage,
		FinishReason: reply.Choices[0].FinishReason,
	}, nil
}

// OllamaProvider targets a local Ollama (or any vLLM-style) server.
type OllamaProvider struct {
	chatCompletions
}

func init() {
	llm.RegisterProvider(&OllamaProvider{chatCompletions{
		name:       "ollama",
		defaultURL: "http://localhost:11434/v1",
	}})
}
