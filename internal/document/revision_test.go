package document_test

import (
	"testing"
	"time"

	"github.com/sumanthd032/collabtext/internal/clock"
	"github.com/sumanthd032/collabtext/internal/document"
	"github.com/sumanthd032/collabtext/internal/operation"
	"github.com/sumanthd032/collabtext/internal/session"
)

func drainEvent(t *testing.T, adapter *session.ClientAdapter, timeout time.Duration) session.Event {
	t.Helper()
	select {
	case ev := <-adapter.Events():
		return ev
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for an event")
		return session.Event{}
	}
}

// TestNoopCollapseDoesNotAdvanceRevision drives two clients deleting the
// identical range through a real Session, so the second delete rebases into
// a zero-length Retain, and checks the document's committed revision only
// reflects the one Delete that actually mutated the buffer.
func TestNoopCollapseDoesNotAdvanceRevision(t *testing.T) {
	doc := document.New(0)
	cfg := session.Config{MaxOpsPerSec: 1000, MaxClientsPerDoc: 4, IdleTimeout: time.Hour, OutboundQueueSize: 8}
	sess := session.New("doc-1", doc, cfg, nil, nil)

	a1 := session.NewClientAdapter("c1", 8)
	a2 := session.NewClientAdapter("c2", 8)
	if _, err := sess.Join("c1", a1); err != nil {
		t.Fatalf("join c1: %v", err)
	}
	if _, err := sess.Join("c2", a2); err != nil {
		t.Fatalf("join c2: %v", err)
	}

	seed, err := operation.NewInsert(operation.Config{
		ClientID:    "c1",
		VectorClock: clock.VectorClock{"c1": 1},
		Position:    0,
	}, "hello world")
	if err != nil {
		t.Fatalf("build seed insert: %v", err)
	}
	if _, err := sess.Submit("c1", seed); err != nil {
		t.Fatalf("seed submit: %v", err)
	}
	drainEvent(t, a2, time.Second)

	del1, err := operation.NewDelete(operation.Config{
		ClientID:     "c1",
		VectorClock:  clock.VectorClock{"c1": 1},
		BaseRevision: 1,
		Position:     0,
	}, 5)
	if err != nil {
		t.Fatalf("build del1: %v", err)
	}
	del2, err := operation.NewDelete(operation.Config{
		ClientID:     "c2",
		VectorClock:  clock.VectorClock{"c2": 1},
		BaseRevision: 1,
		Position:     0,
	}, 5)
	if err != nil {
		t.Fatalf("build del2: %v", err)
	}

	result1, err := sess.Submit("c1", del1)
	if err != nil {
		t.Fatalf("submit del1: %v", err)
	}
	if result1.Revision != 2 {
		t.Fatalf("expected revision 2 after del1, got %d", result1.Revision)
	}
	drainEvent(t, a2, time.Second)

	// del2 targets the exact range c1 already deleted; it rebases into a
	// no-op and must not bump the document's revision.
	result2, err := sess.Submit("c2", del2)
	if err != nil {
		t.Fatalf("submit del2: %v", err)
	}
	if result2.Revision != 2 {
		t.Fatalf("no-op delete must not advance the revision, got %d", result2.Revision)
	}

	joined, err := sess.Join("c1", a1)
	if err != nil {
		t.Fatalf("re-join to snapshot: %v", err)
	}
	if joined.Revision != 2 {
		t.Fatalf("document revision changed unexpectedly, got %d", joined.Revision)
	}
	if joined.Content != " world" {
		t.Fatalf("got %q, want %q", joined.Content, " world")
	}
}
