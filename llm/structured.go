package llm

import (
	"encoding/json"
	"fmt"
)

// ParseError indicates that an LLM response could not be decoded into the
// expected structured form. The engine retries these with corrective feedback
// before degrading to a stage fallback.
type ParseError struct {
	Schema string // schema name the response was expected to conform to
	Reason string // human-readable complaint, safe to feed back to the model
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("structured output did not conform to schema %q: %s", e.Schema, e.Reason)
}

// NewParseError creates a ParseError for the given schema.
func NewParseError(schema, format string, args ...any) *ParseError {
	return &ParseError{Schema: schema, Reason: fmt.Sprintf(format, args...)}
}

// Validatable is implemented by structured payload types that can check
// their own schema constraints beyond what JSON decoding enforces.
type Validatable interface {
	Validate() error
}

// DecodeStructured extracts JSON from a free-form LLM response and decodes it
// into out, then runs out's own validation if it implements Validatable.
// All failures are reported as *ParseError so callers can distinguish
// malformed output from transport errors.
func DecodeStructured(schema, content string, out any) error {
	raw := ExtractJSON(content)
	if raw == "" {
		// Some prompts ask for a bare array rather than an object.
		raw = ExtractJSONArray(content)
	}
	if raw == "" {
		return NewParseError(schema, "no JSON object or array found in response")
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return NewParseError(schema, "invalid JSON: %v", err)
	}

	if v, ok := out.(Validatable); ok {
		if err := v.Validate(); err != nil {
			return NewParseError(schema, "%v", err)
		}
	}

	return nil
}
