package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/learnpath/course"
)

type recordingSink struct {
	mu     sync.Mutex
	events []course.ProgressEvent
}

func (r *recordingSink) Emit(e course.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) all() []course.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]course.ProgressEvent{}, r.events...)
}

type failingStore struct {
	mu   sync.Mutex
	puts int
}

func (f *failingStore) Put(ctx context.Context, runID string, event course.ProgressEvent, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	return errors.New("kv unavailable")
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func newTestEmitter(sink ProgressSink, store SnapshotStore) *Emitter {
	clock := fixedClock{at: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return newEmitter(sink, store, "test-run", time.Hour, clock, slog.Default())
}

func TestEmitterStampsTimestamp(t *testing.T) {
	sink := &recordingSink{}
	em := newTestEmitter(sink, nil)

	em.Emit(course.ProgressEvent{Message: "hello"})

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), events[0].Timestamp)
}

func TestEmitterClampsProgressMonotonic(t *testing.T) {
	sink := &recordingSink{}
	em := newTestEmitter(sink, nil)

	em.Emit(course.ProgressEvent{Message: "a", OverallProgress: progressPtr(0.5)})
	em.Emit(course.ProgressEvent{Message: "b", OverallProgress: progressPtr(0.3)})
	em.Emit(course.ProgressEvent{Message: "c", OverallProgress: progressPtr(0.7)})
	em.Emit(course.ProgressEvent{Message: "d", OverallProgress: progressPtr(1.5)})

	events := sink.all()
	require.Len(t, events, 4)
	assert.Equal(t, 0.5, *events[0].OverallProgress)
	assert.Equal(t, 0.5, *events[1].OverallProgress, "regression clamped to last value")
	assert.Equal(t, 0.7, *events[2].OverallProgress)
	assert.Equal(t, 1.0, *events[3].OverallProgress, "progress never exceeds 1")
}

func TestEmitterTerminalEventsOnce(t *testing.T) {
	sink := &recordingSink{}
	em := newTestEmitter(sink, nil)

	completion := course.ProgressEvent{Phase: course.PhaseCompletion, Action: course.ActionCompleted}
	failure := course.ProgressEvent{Phase: course.PhaseError, Action: course.ActionError}

	em.Emit(completion)
	em.Emit(completion)
	em.Emit(failure)
	em.Emit(failure)

	assert.Len(t, sink.all(), 2)
}

func TestEmitterDisablesStoreAfterFailure(t *testing.T) {
	store := &failingStore{}
	em := newTestEmitter(nil, store)

	em.Emit(course.ProgressEvent{Message: "a"})
	em.Emit(course.ProgressEvent{Message: "b"})
	em.Emit(course.ProgressEvent{Message: "c"})

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.puts, "store abandoned after first failure")
}

func TestEmitterNilSinkAndStore(t *testing.T) {
	em := newTestEmitter(nil, nil)
	assert.NotPanics(t, func() {
		em.Emit(course.ProgressEvent{Message: "into the void"})
	})
}
