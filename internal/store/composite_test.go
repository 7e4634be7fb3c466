package store

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/sumanthd032/collabtext/internal/clock"
	"github.com/sumanthd032/collabtext/internal/document"
	"github.com/sumanthd032/collabtext/internal/session"
)

type fakeCache struct {
	rev     uint64
	content string
	found   bool
	loadErr error

	persisted []session.Snapshot
}

func (f *fakeCache) Load(ctx context.Context, documentID string) (uint64, string, clock.VectorClock, bool, error) {
	if f.loadErr != nil {
		return 0, "", nil, false, f.loadErr
	}
	return f.rev, f.content, clock.New(), f.found, nil
}

func (f *fakeCache) Persist(ctx context.Context, snap session.Snapshot) error {
	f.persisted = append(f.persisted, snap)
	return nil
}

type fakeDurable struct {
	rev       uint64
	content   string
	found     bool
	persisted []session.Snapshot
	recorded  []document.Entry
}

func (f *fakeDurable) Load(ctx context.Context, documentID string) (uint64, string, clock.VectorClock, bool, error) {
	return f.rev, f.content, clock.New(), f.found, nil
}

func (f *fakeDurable) Persist(ctx context.Context, snap session.Snapshot) error {
	f.persisted = append(f.persisted, snap)
	return nil
}

func (f *fakeDurable) Record(documentID string, entry document.Entry) {
	f.recorded = append(f.recorded, entry)
}

func TestCompositeLoadPrefersCacheHit(t *testing.T) {
	cache := &fakeCache{rev: 5, content: "from-cache", found: true}
	durable := &fakeDurable{rev: 1, content: "from-durable", found: true}
	c := &Composite{cache: cache, durable: durable, logger: zap.NewNop()}

	rev, content, _, found, err := c.Load(context.Background(), "doc-1")
	if err != nil || !found {
		t.Fatalf("unexpected result: found=%v err=%v", found, err)
	}
	if rev != 5 || content != "from-cache" {
		t.Fatalf("expected cache hit to win, got rev=%d content=%q", rev, content)
	}
}

func TestCompositeLoadFallsBackToDurableOnCacheMiss(t *testing.T) {
	cache := &fakeCache{found: false}
	durable := &fakeDurable{rev: 7, content: "durable-copy", found: true}
	c := &Composite{cache: cache, durable: durable, logger: zap.NewNop()}

	rev, content, _, found, err := c.Load(context.Background(), "doc-1")
	if err != nil || !found {
		t.Fatalf("unexpected result: found=%v err=%v", found, err)
	}
	if rev != 7 || content != "durable-copy" {
		t.Fatalf("expected fallback to durable store, got rev=%d content=%q", rev, content)
	}
}

func TestCompositeLoadFallsBackOnCacheError(t *testing.T) {
	cache := &fakeCache{loadErr: errors.New("connection reset")}
	durable := &fakeDurable{rev: 2, content: "still-here", found: true}
	c := &Composite{cache: cache, durable: durable, logger: zap.NewNop()}

	rev, content, _, found, err := c.Load(context.Background(), "doc-1")
	if err != nil || !found {
		t.Fatalf("unexpected result: found=%v err=%v", found, err)
	}
	if rev != 2 || content != "still-here" {
		t.Fatalf("expected durable fallback despite cache error, got rev=%d content=%q", rev, content)
	}
}

func TestCompositeLoadWithNoDurableStoreReportsNotFound(t *testing.T) {
	cache := &fakeCache{found: false}
	c := &Composite{cache: cache, logger: zap.NewNop()}

	_, _, _, found, err := c.Load(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("expected not found when neither layer has the document")
	}
}

func TestCompositePersistWritesThroughBothLayers(t *testing.T) {
	cache := &fakeCache{}
	durable := &fakeDurable{}
	c := &Composite{cache: cache, durable: durable, logger: zap.NewNop()}

	snap := session.Snapshot{DocumentID: "doc-1", Revision: 3, Content: "abc"}
	if err := c.Persist(context.Background(), snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cache.persisted) != 1 || len(durable.persisted) != 1 {
		t.Fatalf("expected write-through to both layers, got cache=%d durable=%d",
			len(cache.persisted), len(durable.persisted))
	}
}

func TestCompositeRecordDelegatesToDurable(t *testing.T) {
	durable := &fakeDurable{}
	c := &Composite{durable: durable, logger: zap.NewNop()}

	entry := document.Entry{Revision: 1}
	c.Record("doc-1", entry)
	if len(durable.recorded) != 1 {
		t.Fatalf("expected the entry to reach the durable recorder")
	}
}

func TestCompositeRecordWithNoDurableStoreIsNoop(t *testing.T) {
	c := &Composite{logger: zap.NewNop()}
	c.Record("doc-1", document.Entry{Revision: 1}) // must not panic
}
