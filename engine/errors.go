package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/c360studio/learnpath/course"
	"github.com/c360studio/learnpath/llm"
)

// ErrorKind classifies terminal run failures.
type ErrorKind string

const (
	// KindUpstreamUnavailable marks transport, 5xx, or timeout failures from
	// a capability.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"

	// KindUpstreamRateLimited marks 429-class failures that survived backoff.
	KindUpstreamRateLimited ErrorKind = "upstream_rate_limited"

	// KindStructuredParseFailed marks structured LLM output that never
	// conformed to its schema, after retries.
	KindStructuredParseFailed ErrorKind = "structured_parse_failed"

	// KindInvalidInput marks a request that failed validation.
	KindInvalidInput ErrorKind = "invalid_input"

	// KindCancelled marks caller cancellation.
	KindCancelled ErrorKind = "cancelled"

	// KindInternalInvariant marks programmer errors, e.g. an index out of
	// range after planning.
	KindInternalInvariant ErrorKind = "internal_invariant_violated"
)

// RunError is the single error type a run can return. Partial carries
// whatever result material existed when the run aborted, if any.
type RunError struct {
	Kind    ErrorKind
	Message string
	Partial *course.LearningPath
	cause   error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *RunError) Unwrap() error {
	return e.cause
}

// newRunError builds a RunError wrapping cause.
func newRunError(kind ErrorKind, message string, cause error) *RunError {
	return &RunError{Kind: kind, Message: message, cause: cause}
}

// classifyError maps an arbitrary capability error onto the run taxonomy.
func classifyError(err error) ErrorKind {
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case llm.IsRateLimited(err):
		return KindUpstreamRateLimited
	case isParseError(err):
		return KindStructuredParseFailed
	default:
		return KindUpstreamUnavailable
	}
}

func isParseError(err error) bool {
	var pe *llm.ParseError
	return errors.As(err, &pe)
}
