package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/learnpath/course"
)

// ProgressBucket is the KV bucket holding latest-progress snapshots.
const ProgressBucket = "LEARNPATH_PROGRESS"

// DefaultSnapshotTTL expires snapshots of finished or abandoned runs.
const DefaultSnapshotTTL = 24 * time.Hour

// KVSnapshotStore keeps the newest progress event per run in a JetStream KV
// bucket. Each put overwrites the previous entry, so storage per run stays
// constant no matter how many events a run emits.
type KVSnapshotStore struct {
	bucket jetstream.KeyValue
	logger *slog.Logger
}

// KVSnapshotStoreOption configures a KVSnapshotStore.
type KVSnapshotStoreOption func(*kvStoreConfig)

type kvStoreConfig struct {
	ttl    time.Duration
	logger *slog.Logger
}

// WithSnapshotTTL sets the bucket TTL applied at creation.
func WithSnapshotTTL(ttl time.Duration) KVSnapshotStoreOption {
	return func(c *kvStoreConfig) {
		c.ttl = ttl
	}
}

// WithSnapshotLogger sets the logger.
func WithSnapshotLogger(logger *slog.Logger) KVSnapshotStoreOption {
	return func(c *kvStoreConfig) {
		c.logger = logger
	}
}

// NewKVSnapshotStore creates or updates the snapshot bucket. The context
// bounds the bucket creation only.
func NewKVSnapshotStore(ctx context.Context, nc *nats.Conn, opts ...KVSnapshotStoreOption) (*KVSnapshotStore, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS connection required")
	}

	cfg := kvStoreConfig{
		ttl:    DefaultSnapshotTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("get jetstream: %w", err)
	}

	// CreateOrUpdateKeyValue is idempotent and handles race conditions.
	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      ProgressBucket,
		Description: "Latest progress snapshot per generation run",
		TTL:         cfg.ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update kv bucket: %w", err)
	}

	return &KVSnapshotStore{bucket: bucket, logger: cfg.logger}, nil
}

// Put overwrites the snapshot for runID. The ttl argument is advisory here:
// JetStream KV expires per bucket, not per key, so the bucket TTL chosen at
// creation governs expiry.
func (s *KVSnapshotStore) Put(ctx context.Context, runID string, event course.ProgressEvent, ttl time.Duration) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if _, err := s.bucket.Put(ctx, runID, data); err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// Get returns the latest snapshot for runID, or nil when none exists.
func (s *KVSnapshotStore) Get(ctx context.Context, runID string) (*course.ProgressEvent, error) {
	entry, err := s.bucket.Get(ctx, runID)
	if err != nil {
		if err == jetstream.ErrKeyNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var event course.ProgressEvent
	if err := json.Unmarshal(entry.Value(), &event); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &event, nil
}
