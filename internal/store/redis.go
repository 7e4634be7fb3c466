package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sumanthd032/collabtext/internal/clock"
	"github.com/sumanthd032/collabtext/internal/session"
)

const snapshotTTL = 30 * time.Minute

// RedisStore is the fast half of the session store: a TTL'd snapshot cache
// keyed by document_id, plus pub/sub channels other server processes can
// use to learn a document changed. Every raw message relay is replaced by
// "cache and notify": a Session, not Redis itself, owns reconciliation.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

type cachedSnapshot struct {
	Revision uint64            `json:"revision"`
	Content  string            `json:"content"`
	Clock    clock.VectorClock `json:"clock"`
}

// NewRedisStore connects to addr, retrying with exponential backoff.
func NewRedisStore(ctx context.Context, addr string, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var client *redis.Client
	connect := func() error {
		c := redis.NewClient(&redis.Options{Addr: addr})
		if err := c.Ping(ctx).Err(); err != nil {
			c.Close()
			return err
		}
		client = c
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(connect, b); err != nil {
		return nil, fmt.Errorf("store: connect to redis: %w", err)
	}

	return &RedisStore{client: client, logger: logger}, nil
}

func snapshotKey(documentID string) string {
	return "collabtext:snapshot:" + documentID
}

func changeChannel(documentID string) string {
	return "collabtext:changed:" + documentID
}

// Load implements registry.Loader against the cache. A cache miss is not
// an error; the registry's composite store falls through to Postgres.
func (s *RedisStore) Load(ctx context.Context, documentID string) (uint64, string, clock.VectorClock, bool, error) {
	raw, err := s.client.Get(ctx, snapshotKey(documentID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return 0, "", nil, false, nil
		}
		return 0, "", nil, false, err
	}
	var cached cachedSnapshot
	if err := json.Unmarshal(raw, &cached); err != nil {
		return 0, "", nil, false, fmt.Errorf("store: decode cached snapshot: %w", err)
	}
	return cached.Revision, cached.Content, cached.Clock, true, nil
}

// Persist implements registry.Persister against the cache, and publishes a
// change notification so other server processes holding a stale read of
// this document can invalidate it.
func (s *RedisStore) Persist(ctx context.Context, snap session.Snapshot) error {
	raw, err := json.Marshal(cachedSnapshot{Revision: snap.Revision, Content: snap.Content, Clock: snap.Clock})
	if err != nil {
		return fmt.Errorf("store: encode cached snapshot: %w", err)
	}
	if err := s.client.Set(ctx, snapshotKey(snap.DocumentID), raw, snapshotTTL).Err(); err != nil {
		return err
	}
	return s.client.Publish(ctx, changeChannel(snap.DocumentID), snap.Revision).Err()
}

// Subscribe returns a channel of revision-change notifications for
// documentID, published by any process's Persist call, and a function that
// closes the subscription. No package in this module calls it.
func (s *RedisStore) Subscribe(ctx context.Context, documentID string) (<-chan *redis.Message, func()) {
	pubsub := s.client.Subscribe(ctx, changeChannel(documentID))
	return pubsub.Channel(), func() { pubsub.Close() }
}

// Close releases the underlying connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
