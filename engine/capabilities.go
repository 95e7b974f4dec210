// Package engine implements the learning-path generation pipeline: a directed
// graph of stages that research a topic through batched web searches, plan
// modules and submodules, develop each submodule's content concurrently, and
// assemble the final path. External services enter only as injected
// capability handles; the engine never constructs providers itself.
package engine

import (
	"context"
	"time"

	"github.com/c360studio/learnpath/course"
)

// CompletionRequest is one LLM call as the engine sees it. Template names the
// prompt for capability routing (a registry can map it to a model tier);
// Prompt carries the fully rendered text.
type CompletionRequest struct {
	Template    string
	Prompt      string
	Temperature *float64
	MaxTokens   int
}

// LLMCapability is the injected language-model handle.
type LLMCapability interface {
	// CompleteText returns a free-form completion.
	CompleteText(ctx context.Context, req CompletionRequest) (string, error)

	// CompleteStructured returns a completion decoded into out, which must
	// conform to the named schema. A conformance failure is reported as an
	// error that matches llm.ParseError; the engine retries those.
	CompleteStructured(ctx context.Context, req CompletionRequest, schema string, out any) error
}

// SearchCapability executes one web search. It never returns a Go error:
// failures travel inside the result as an error marker.
type SearchCapability interface {
	Search(ctx context.Context, query course.SearchQuery, language string) course.SearchResult
}

// ScrapeCapability optionally fetches a result URL's content for authoring
// context. Content is already truncated by the implementation.
type ScrapeCapability interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// ProgressSink receives progress events. Emission is fire-and-forget from the
// engine's view; the sink owns buffering.
type ProgressSink interface {
	Emit(event course.ProgressEvent)
}

// SnapshotStore holds the latest progress event per run, for observers that
// attach late. Writes are best-effort; a failing store never aborts a run.
type SnapshotStore interface {
	Put(ctx context.Context, runID string, event course.ProgressEvent, ttl time.Duration) error
}

// Clock supplies event timestamps. Injected so tests can run on frozen time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used outside tests.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }
