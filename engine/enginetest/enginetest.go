// Package enginetest provides deterministic capability stubs for exercising
// the engine without network services.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/c360studio/learnpath/course"
	"github.com/c360studio/learnpath/engine"
	"github.com/c360studio/learnpath/llm"
)

// Handler produces one stub LLM reply. call starts at 1 and counts calls to
// the same template, retries included.
type Handler func(call int, req engine.CompletionRequest) (string, error)

// StubLLM routes completions by template name. Structured replies are JSON
// strings decoded through the same path production uses, so schema
// violations behave exactly like a misbehaving model.
type StubLLM struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int

	// Delay is applied to every call, for concurrency probes.
	Delay time.Duration

	current int
	peak    int
}

// NewStubLLM creates an empty stub; calls to templates without a handler
// fail.
func NewStubLLM() *StubLLM {
	return &StubLLM{
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
	}
}

// On registers the handler for a template.
func (s *StubLLM) On(template string, h Handler) *StubLLM {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[template] = h
	return s
}

// Reply registers a fixed reply for a template.
func (s *StubLLM) Reply(template, content string) *StubLLM {
	return s.On(template, func(int, engine.CompletionRequest) (string, error) {
		return content, nil
	})
}

// Calls returns how many times the template was invoked.
func (s *StubLLM) Calls(template string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[template]
}

// Peak returns the maximum number of concurrent calls observed.
func (s *StubLLM) Peak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

func (s *StubLLM) invoke(ctx context.Context, req engine.CompletionRequest) (string, error) {
	s.mu.Lock()
	s.calls[req.Template]++
	call := s.calls[req.Template]
	h, ok := s.handlers[req.Template]
	s.current++
	if s.current > s.peak {
		s.peak = s.current
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.current--
		s.mu.Unlock()
	}()

	if !ok {
		return "", fmt.Errorf("no stub handler for template %q", req.Template)
	}
	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.Delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return h(call, req)
}

// CompleteText implements engine.LLMCapability.
func (s *StubLLM) CompleteText(ctx context.Context, req engine.CompletionRequest) (string, error) {
	return s.invoke(ctx, req)
}

// CompleteStructured implements engine.LLMCapability.
func (s *StubLLM) CompleteStructured(ctx context.Context, req engine.CompletionRequest, schema string, out any) error {
	content, err := s.invoke(ctx, req)
	if err != nil {
		return err
	}
	return llm.DecodeStructured(schema, content, out)
}

// StubSearch returns canned results and records the peak number of
// concurrent searches.
type StubSearch struct {
	// Handler overrides the default two-item result.
	Handler func(q course.SearchQuery) course.SearchResult

	// Delay is applied to every search, for concurrency probes.
	Delay time.Duration

	mu      sync.Mutex
	calls   int
	current int
	peak    int
}

// Search implements engine.SearchCapability.
func (s *StubSearch) Search(ctx context.Context, query course.SearchQuery, language string) course.SearchResult {
	s.mu.Lock()
	s.calls++
	s.current++
	if s.current > s.peak {
		s.peak = s.current
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.current--
		s.mu.Unlock()
	}()

	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return course.SearchResult{Query: query.Keywords, Rationale: query.Rationale, Err: ctx.Err().Error()}
		case <-time.After(s.Delay):
		}
	}

	if s.Handler != nil {
		return s.Handler(query)
	}
	return course.SearchResult{
		Query:     query.Keywords,
		Rationale: query.Rationale,
		Items: []course.SearchItem{
			{Title: query.Keywords + " intro", URL: "https://example.com/" + slug(query.Keywords) + "/1", Content: "first result"},
			{Title: query.Keywords + " deep dive", URL: "https://example.com/" + slug(query.Keywords) + "/2", Content: "second result"},
		},
	}
}

// Calls returns the total number of searches executed.
func (s *StubSearch) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Peak returns the maximum number of concurrent searches observed.
func (s *StubSearch) Peak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

func slug(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == ' ' {
			r = '-'
		}
		out = append(out, r)
	}
	return string(out)
}

// CollectSink records every emitted event.
type CollectSink struct {
	mu     sync.Mutex
	events []course.ProgressEvent

	// OnEmit, when set, observes each event as it arrives.
	OnEmit func(course.ProgressEvent)
}

// Emit implements engine.ProgressSink.
func (c *CollectSink) Emit(event course.ProgressEvent) {
	c.mu.Lock()
	c.events = append(c.events, event)
	hook := c.OnEmit
	c.mu.Unlock()
	if hook != nil {
		hook(event)
	}
}

// Events returns a copy of everything emitted so far.
func (c *CollectSink) Events() []course.ProgressEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]course.ProgressEvent{}, c.events...)
}

// Count returns how many events with the given phase and action arrived.
func (c *CollectSink) Count(phase course.Phase, action course.Action) int {
	n := 0
	for _, e := range c.Events() {
		if e.Phase == phase && e.Action == action {
			n++
		}
	}
	return n
}

// MemorySnapshotStore keeps the latest snapshot per key in memory.
type MemorySnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]course.ProgressEvent
	puts      int

	// Err, when set, makes every Put fail.
	Err error
}

// Put implements engine.SnapshotStore.
func (m *MemorySnapshotStore) Put(ctx context.Context, runID string, event course.ProgressEvent, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.Err != nil {
		return m.Err
	}
	if m.snapshots == nil {
		m.snapshots = make(map[string]course.ProgressEvent)
	}
	m.snapshots[runID] = event
	return nil
}

// Puts returns how many Put calls were attempted.
func (m *MemorySnapshotStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// Latest returns the stored snapshot for runID.
func (m *MemorySnapshotStore) Latest(runID string) (course.ProgressEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.snapshots[runID]
	return e, ok
}

// Len returns how many keys the store holds.
func (m *MemorySnapshotStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// FrozenClock always reports the same instant.
type FrozenClock struct {
	At time.Time
}

// Now implements engine.Clock.
func (c FrozenClock) Now() time.Time {
	if c.At.IsZero() {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return c.At
}
