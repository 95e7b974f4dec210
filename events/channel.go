package events

import (
	"log/slog"
	"sync"

	"github.com/c360studio/learnpath/course"
)

// DefaultChannelCapacity bounds the in-process event queue.
const DefaultChannelCapacity = 256

// ChannelSink buffers progress events for an in-process consumer draining
// Events(). Emission never blocks the engine: when the consumer falls more
// than the capacity behind, the oldest buffered event is discarded to make
// room, and the loss is logged once.
type ChannelSink struct {
	ch     chan course.ProgressEvent
	logger *slog.Logger

	mu         sync.Mutex
	closed     bool
	lossLogged bool
}

// NewChannelSink creates a sink with the given capacity; capacity <= 0 uses
// the default.
func NewChannelSink(capacity int, logger *slog.Logger) *ChannelSink {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelSink{
		ch:     make(chan course.ProgressEvent, capacity),
		logger: logger,
	}
}

// Events is the consumer side. It is closed by Close.
func (s *ChannelSink) Events() <-chan course.ProgressEvent {
	return s.ch
}

// Emit enqueues one event, evicting the oldest buffered event if the queue
// is full.
func (s *ChannelSink) Emit(event course.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for {
		select {
		case s.ch <- event:
			return
		default:
		}

		select {
		case <-s.ch:
			if !s.lossLogged {
				s.logger.Warn("Progress consumer falling behind, dropping oldest events")
				s.lossLogged = true
			}
		default:
		}
	}
}

// Close stops the sink; subsequent Emit calls are no-ops.
func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
