package operation

import (
	"encoding/json"
	"testing"

	"github.com/sumanthd032/collabtext/internal/clock"
)

func mustInsert(t *testing.T, client clock.ClientID, position int, content string) Operation {
	t.Helper()
	op, err := NewInsert(Config{ClientID: client, VectorClock: clock.New(), Position: position}, content)
	if err != nil {
		t.Fatalf("unexpected error building insert: %v", err)
	}
	return op
}

func TestNewInsertRejectsEmptyContent(t *testing.T) {
	_, err := NewInsert(Config{ClientID: "c1", VectorClock: clock.New(), Position: 0}, "")
	if err == nil {
		t.Fatalf("expected error for empty insert content")
	}
}

func TestNewDeleteRejectsNonPositiveLength(t *testing.T) {
	_, err := NewDelete(Config{ClientID: "c1", VectorClock: clock.New(), Position: 0}, 0)
	if err == nil {
		t.Fatalf("expected error for zero-length delete")
	}
}

func TestNewRetainAllowsZeroLength(t *testing.T) {
	op, err := NewRetain(Config{ClientID: "c1", VectorClock: clock.New(), Position: 3}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !op.IsNoop() {
		t.Fatalf("expected zero-length retain to be a no-op")
	}
}

func TestApplyInsert(t *testing.T) {
	op := mustInsert(t, "c1", 5, "hello")
	got, err := op.Apply("xxxxxyyyyy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "xxxxxhelloyyyyy"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestApplyDeleteOutOfRange(t *testing.T) {
	op, err := NewDelete(Config{ClientID: "c1", VectorClock: clock.New(), Position: 8}, 5)
	if err != nil {
		t.Fatalf("unexpected error building op: %v", err)
	}
	if _, err := op.Apply("short"); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	original := mustInsert(t, "c1", 2, "ab")
	blob, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var decoded Operation
	if err := json.Unmarshal(blob, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if decoded.Kind() != Insert || decoded.Position() != 2 || decoded.Content() != "ab" || decoded.ClientID() != "c1" {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestJSONRejectsUnknownKind(t *testing.T) {
	blob := []byte(`{"kind":"bogus","client_id":"c1","position":0}`)
	var decoded Operation
	if err := json.Unmarshal(blob, &decoded); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
