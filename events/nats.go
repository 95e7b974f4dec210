// Package events delivers progress events to observers: an in-process
// channel sink, a NATS publisher for remote observers, and a JetStream KV
// store holding the latest event per run for late-attaching clients.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/learnpath/course"
)

// subjectTokenRe restricts correlation ids embedded in NATS subjects.
var subjectTokenRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ProgressSubject builds the per-run progress subject. The correlation id is
// validated so an attacker-controlled id cannot inject subject tokens.
func ProgressSubject(correlationID string) (string, error) {
	if !subjectTokenRe.MatchString(correlationID) {
		return "", fmt.Errorf("invalid correlation id %q for subject", correlationID)
	}
	return "learnpath.progress." + correlationID, nil
}

// Publisher emits progress events onto a NATS subject, one JSON object per
// event. Publishing is best-effort: a failed publish is logged and dropped.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *slog.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the logger.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher for one run's subject.
func NewPublisher(nc *nats.Conn, correlationID string, opts ...PublisherOption) (*Publisher, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS connection required")
	}
	subject, err := ProgressSubject(correlationID)
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		nc:      nc,
		subject: subject,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Emit publishes one event.
func (p *Publisher) Emit(event course.ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("Failed to marshal progress event", "error", err)
		return
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		p.logger.Warn("Failed to publish progress event",
			"subject", p.subject,
			"error", err)
	}
}
