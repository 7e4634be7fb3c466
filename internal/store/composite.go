package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/sumanthd032/collabtext/internal/clock"
	"github.com/sumanthd032/collabtext/internal/document"
	"github.com/sumanthd032/collabtext/internal/session"
)

// cacheLayer and durableLayer are the narrow shapes Composite depends on;
// *RedisStore and *PostgresStore both satisfy them. Depending on interfaces
// rather than the concrete adapters keeps Composite testable with fakes and
// keeps store's three files decoupled from one another.
type cacheLayer interface {
	Load(ctx context.Context, documentID string) (uint64, string, clock.VectorClock, bool, error)
	Persist(ctx context.Context, snap session.Snapshot) error
}

type durableLayer interface {
	Load(ctx context.Context, documentID string) (uint64, string, clock.VectorClock, bool, error)
	Persist(ctx context.Context, snap session.Snapshot) error
	Record(documentID string, entry document.Entry)
}

// Composite layers a fast cache in front of a durable store: Load checks
// the cache first and falls back to the durable store on a miss; Persist
// writes through both.
type Composite struct {
	cache   cacheLayer
	durable durableLayer
	logger  *zap.Logger
}

// NewComposite builds a Composite from whichever adapters are configured.
// Either may be nil; a nil cache just skips straight to durable, a nil
// durable store makes the cache authoritative (accepting its TTL as the
// effective retention window) and turns Record into a no-op.
func NewComposite(cache *RedisStore, durable *PostgresStore, logger *zap.Logger) *Composite {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Composite{logger: logger}
	if cache != nil {
		c.cache = cache
	}
	if durable != nil {
		c.durable = durable
	}
	return c
}

// Load implements registry.Loader.
func (c *Composite) Load(ctx context.Context, documentID string) (uint64, string, clock.VectorClock, bool, error) {
	if c.cache != nil {
		rev, content, vc, found, err := c.cache.Load(ctx, documentID)
		if err == nil && found {
			return rev, content, vc, true, nil
		}
		if err != nil {
			c.logger.Warn("cache load failed, falling back to durable store",
				zap.String("document_id", documentID), zap.Error(err))
		}
	}
	if c.durable == nil {
		return 0, "", nil, false, nil
	}
	return c.durable.Load(ctx, documentID)
}

// Persist implements registry.Persister, writing through both layers.
// A cache failure is logged but does not fail the call; the durable write
// is the one that must succeed for Persist to report success.
func (c *Composite) Persist(ctx context.Context, snap session.Snapshot) error {
	if c.cache != nil {
		if err := c.cache.Persist(ctx, snap); err != nil {
			c.logger.Warn("cache persist failed", zap.String("document_id", snap.DocumentID), zap.Error(err))
		}
	}
	if c.durable == nil {
		return nil
	}
	return c.durable.Persist(ctx, snap)
}

// Record implements session.Recorder by delegating to the durable store's
// operation log; the cache has no equivalent since it only ever holds the
// latest snapshot.
func (c *Composite) Record(documentID string, entry document.Entry) {
	if c.durable == nil {
		return
	}
	c.durable.Record(documentID, entry)
}
