package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/learnpath/course"
)

// snapshotWriteTimeout bounds one best-effort snapshot write.
const snapshotWriteTimeout = 2 * time.Second

// DefaultSnapshotTTL is how long a latest-progress snapshot stays readable.
const DefaultSnapshotTTL = 24 * time.Hour

// Emitter delivers progress events for one run. It stamps timestamps, keeps
// overall progress non-decreasing, suppresses duplicate terminal events, and
// mirrors the latest event into the snapshot store when one is configured.
type Emitter struct {
	sink        ProgressSink
	store       SnapshotStore
	snapshotKey string
	snapshotTTL time.Duration
	clock       Clock
	logger      *slog.Logger

	mu             sync.Mutex
	lastOverall    float64
	completionSent bool
	errorSent      bool
	storeBroken    bool
}

// newEmitter builds an emitter for one run. sink and store may be nil.
func newEmitter(sink ProgressSink, store SnapshotStore, snapshotKey string, ttl time.Duration, clock Clock, logger *slog.Logger) *Emitter {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Emitter{
		sink:        sink,
		store:       store,
		snapshotKey: snapshotKey,
		snapshotTTL: ttl,
		clock:       clock,
		logger:      logger,
	}
}

// Emit delivers one event. Terminal events (completion, error) pass through
// at most once per run; later duplicates are dropped. A present
// OverallProgress is clamped so the observed sequence never decreases.
func (e *Emitter) Emit(event course.ProgressEvent) {
	e.mu.Lock()

	if event.Phase == course.PhaseCompletion && event.Action == course.ActionCompleted {
		if e.completionSent {
			e.mu.Unlock()
			return
		}
		e.completionSent = true
	}
	if event.Phase == course.PhaseError {
		if e.errorSent {
			e.mu.Unlock()
			return
		}
		e.errorSent = true
	}

	if event.OverallProgress != nil {
		p := *event.OverallProgress
		if p < e.lastOverall {
			p = e.lastOverall
		}
		if p > 1 {
			p = 1
		}
		e.lastOverall = p
		event.OverallProgress = &p
	}

	event.Timestamp = e.clock.Now()
	broken := e.storeBroken
	e.mu.Unlock()

	if e.sink != nil {
		e.sink.Emit(event)
	}

	if e.store != nil && !broken {
		e.writeSnapshot(event)
	}
}

// writeSnapshot mirrors the event to the store. The first failure marks the
// store unusable for the rest of the run.
func (e *Emitter) writeSnapshot(event course.ProgressEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotWriteTimeout)
	defer cancel()

	if err := e.store.Put(ctx, e.snapshotKey, event, e.snapshotTTL); err != nil {
		e.logger.Warn("Progress snapshot write failed, disabling store for this run",
			"key", e.snapshotKey,
			"error", err)
		e.mu.Lock()
		e.storeBroken = true
		e.mu.Unlock()
	}
}

// progressPtr is a convenience for literal progress values.
func progressPtr(v float64) *float64 {
	return &v
}
