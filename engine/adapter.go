package engine

import (
	"context"
	"strings"

	"github.com/c360studio/learnpath/llm"
	"github.com/c360studio/learnpath/model"
)

// LLMAdapter turns an llm.Completer into the engine's LLMCapability. The
// template name routes to a model capability tier through the registry
// mapping, so research prompts can run on a cheaper model than authoring.
type LLMAdapter struct {
	completer llm.Completer
}

// NewLLMAdapter wraps completer.
func NewLLMAdapter(completer llm.Completer) *LLMAdapter {
	return &LLMAdapter{completer: completer}
}

// CompleteText runs a free-form completion.
func (a *LLMAdapter) CompleteText(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := a.completer.Complete(ctx, llm.Request{
		Capability:  string(model.CapabilityForTemplate(req.Template)),
		Messages:    []llm.Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// CompleteStructured runs a completion and decodes it into out per the named
// schema. Schema violations surface as *llm.ParseError so the engine's retry
// logic can distinguish them from transport failures.
func (a *LLMAdapter) CompleteStructured(ctx context.Context, req CompletionRequest, schema string, out any) error {
	resp, err := a.completer.Complete(ctx, llm.Request{
		Capability:  string(model.CapabilityForTemplate(req.Template)),
		Messages:    []llm.Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return err
	}
	return llm.DecodeStructured(schema, resp.Content, out)
}
