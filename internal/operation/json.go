package operation

import (
	"encoding/json"
	"fmt"

	"github.com/sumanthd032/collabtext/internal/clock"
)

// wireOperation is the JSON shape used both on the wire and in the
// persisted operation log; the same encoding serves both, so a WAL row
// decodes through the identical path as an inbound client message.
type wireOperation struct {
	Kind         Kind              `json:"kind"`
	ClientID     clock.ClientID    `json:"client_id"`
	Timestamp    int64             `json:"timestamp"`
	VectorClock  clock.VectorClock `json:"vector_clock"`
	BaseRevision uint64            `json:"base_revision"`
	Position     int               `json:"position"`
	Length       int               `json:"length,omitempty"`
	Content      string            `json:"content,omitempty"`
}

// MarshalJSON encodes op using the wire representation shared by transport
// messages and the persisted operation log.
func (op Operation) MarshalJSON() ([]byte, error) {
	w := wireOperation{
		Kind:         op.kind,
		ClientID:     op.clientID,
		Timestamp:    op.timestamp,
		VectorClock:  op.vectorClock,
		BaseRevision: op.baseRevision,
		Position:     op.position,
	}
	switch op.kind {
	case Insert:
		w.Content = op.content
	default:
		w.Length = op.length
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes op from the wire representation and re-validates it
// through the same constructors used for locally built operations, so a
// malformed payload is rejected the same way a bad local call would be.
func (op *Operation) UnmarshalJSON(data []byte) error {
	var w wireOperation
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}

	cfg := Config{
		ClientID:     w.ClientID,
		Timestamp:    w.Timestamp,
		VectorClock:  w.VectorClock,
		BaseRevision: w.BaseRevision,
		Position:     w.Position,
	}
	if cfg.VectorClock == nil {
		cfg.VectorClock = clock.New()
	}

	var built Operation
	var err error
	switch w.Kind {
	case Insert:
		built, err = NewInsert(cfg, w.Content)
	case Delete:
		built, err = NewDelete(cfg, w.Length)
	case Retain:
		built, err = NewRetain(cfg, w.Length)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOperation, w.Kind)
	}
	if err != nil {
		return err
	}
	*op = built
	return nil
}
