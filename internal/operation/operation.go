// Package operation defines the atomic edit record exchanged between
// clients and a document session, and the validity rules a stored operation
// must satisfy.
package operation

import (
	"errors"
	"fmt"

	"github.com/sumanthd032/collabtext/internal/clock"
)

// Kind tags which variant an Operation carries.
type Kind string

const (
	Insert Kind = "insert"
	Delete Kind = "delete"
	Retain Kind = "retain"
)

// ErrInvalidOperation is wrapped with a specific reason whenever a
// constructor rejects a shape or invariant violation.
var ErrInvalidOperation = errors.New("operation: invalid")

// Operation is an immutable, validated edit record. Instances are only ever
// produced through the New* constructors or the package's internal
// transform helpers, so a live Operation value always satisfies its
// storage invariants.
type Operation struct {
	kind         Kind
	clientID     clock.ClientID
	timestamp    int64
	vectorClock  clock.VectorClock
	baseRevision uint64
	position     int
	length       int    // Delete, Retain
	content      string // Insert
}

// Config bundles the fields common to every variant.
type Config struct {
	ClientID     clock.ClientID
	Timestamp    int64
	VectorClock  clock.VectorClock
	BaseRevision uint64
	Position     int
}

func (cfg Config) validate() error {
	if cfg.ClientID == "" {
		return fmt.Errorf("%w: empty client id", ErrInvalidOperation)
	}
	if cfg.Position < 0 {
		return fmt.Errorf("%w: negative position %d", ErrInvalidOperation, cfg.Position)
	}
	return nil
}

// NewInsert validates and constructs an Insert operation. content must be
// non-empty and position must be non-negative; the caller's document-length
// bound is checked later, against live state, by the OT engine/session.
func NewInsert(cfg Config, content string) (Operation, error) {
	if err := cfg.validate(); err != nil {
		return Operation{}, err
	}
	if content == "" {
		return Operation{}, fmt.Errorf("%w: empty insert content", ErrInvalidOperation)
	}
	return Operation{
		kind:         Insert,
		clientID:     cfg.ClientID,
		timestamp:    cfg.Timestamp,
		vectorClock:  cfg.VectorClock.Clone(),
		baseRevision: cfg.BaseRevision,
		position:     cfg.Position,
		content:      content,
	}, nil
}

// NewDelete validates and constructs a Delete operation. length must be
// strictly positive.
func NewDelete(cfg Config, length int) (Operation, error) {
	if err := cfg.validate(); err != nil {
		return Operation{}, err
	}
	if length <= 0 {
		return Operation{}, fmt.Errorf("%w: non-positive delete length %d", ErrInvalidOperation, length)
	}
	return Operation{
		kind:         Delete,
		clientID:     cfg.ClientID,
		timestamp:    cfg.Timestamp,
		vectorClock:  cfg.VectorClock.Clone(),
		baseRevision: cfg.BaseRevision,
		position:     cfg.Position,
		length:       length,
	}, nil
}

// NewRetain validates and constructs a Retain operation. Retain is a no-op
// placeholder left behind when a transform fully annihilates an operation;
// length must be non-negative.
func NewRetain(cfg Config, length int) (Operation, error) {
	if err := cfg.validate(); err != nil {
		return Operation{}, err
	}
	if length < 0 {
		return Operation{}, fmt.Errorf("%w: negative retain length %d", ErrInvalidOperation, length)
	}
	return Operation{
		kind:         Retain,
		clientID:     cfg.ClientID,
		timestamp:    cfg.Timestamp,
		vectorClock:  cfg.VectorClock.Clone(),
		baseRevision: cfg.BaseRevision,
		position:     cfg.Position,
		length:       length,
	}, nil
}

func (op Operation) Kind() Kind                     { return op.kind }
func (op Operation) ClientID() clock.ClientID       { return op.clientID }
func (op Operation) Timestamp() int64               { return op.timestamp }
func (op Operation) VectorClock() clock.VectorClock { return op.vectorClock.Clone() }
func (op Operation) BaseRevision() uint64           { return op.baseRevision }
func (op Operation) Position() int                  { return op.position }
func (op Operation) Content() string                { return op.content }

// Length returns the run length affected: len(content) for Insert, the
// explicit length for Delete/Retain.
func (op Operation) Length() int {
	switch op.kind {
	case Insert:
		return len([]rune(op.content))
	default:
		return op.length
	}
}

// IsNoop reports whether op is a zero-length Retain, i.e. an operation that
// a transform has fully annihilated.
func (op Operation) IsNoop() bool {
	return op.kind == Retain && op.length == 0
}

// Repositioned returns a copy of op with a new position; all other fields,
// including causal metadata, are preserved.
func (op Operation) Repositioned(position int) Operation {
	out := op
	out.position = position
	return out
}

// Relengthed returns a copy of op with a new length. Only meaningful for
// Delete and Retain; Insert operations carry their length via Content.
func (op Operation) Relengthed(length int) Operation {
	out := op
	out.length = length
	return out
}

// AsRetain collapses op into a zero-length Retain at position, preserving
// causal metadata. Used when a transform fully annihilates op.
func (op Operation) AsRetain(position int) Operation {
	out := op
	out.kind = Retain
	out.position = position
	out.length = 0
	out.content = ""
	return out
}

// WithVectorClock returns a copy of op carrying the given vector clock,
// used when a session merges the server's clock into a broadcast copy.
func (op Operation) WithVectorClock(vc clock.VectorClock) Operation {
	out := op
	out.vectorClock = vc.Clone()
	return out
}

// WithBaseRevision returns a copy of op stamped with a new base revision,
// used when a session rewrites a committed op's base before broadcast.
func (op Operation) WithBaseRevision(rev uint64) Operation {
	out := op
	out.baseRevision = rev
	return out
}

// Apply returns the result of applying op to content. It is the caller's
// responsibility to have already rebased op onto content's revision; Apply
// itself only checks in-range positions.
func (op Operation) Apply(content string) (string, error) {
	runes := []rune(content)
	switch op.kind {
	case Insert:
		if op.position < 0 || op.position > len(runes) {
			return "", fmt.Errorf("%w: insert position %d out of range [0,%d]", ErrInvalidOperation, op.position, len(runes))
		}
		out := make([]rune, 0, len(runes)+len([]rune(op.content)))
		out = append(out, runes[:op.position]...)
		out = append(out, []rune(op.content)...)
		out = append(out, runes[op.position:]...)
		return string(out), nil
	case Delete:
		end := op.position + op.length
		if op.position < 0 || end > len(runes) {
			return "", fmt.Errorf("%w: delete range [%d,%d) out of range [0,%d]", ErrInvalidOperation, op.position, end, len(runes))
		}
		out := make([]rune, 0, len(runes)-op.length)
		out = append(out, runes[:op.position]...)
		out = append(out, runes[end:]...)
		return string(out), nil
	case Retain:
		return content, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidOperation, op.kind)
	}
}

// ValidateAgainst checks op's shape against a document of the given length:
// positions and lengths must not overflow the target buffer.
func (op Operation) ValidateAgainst(docLength int) error {
	switch op.kind {
	case Insert:
		if op.position < 0 || op.position > docLength {
			return fmt.Errorf("%w: insert position %d out of range [0,%d]", ErrInvalidOperation, op.position, docLength)
		}
	case Delete:
		if op.length <= 0 {
			return fmt.Errorf("%w: non-positive delete length %d", ErrInvalidOperation, op.length)
		}
		if op.position < 0 || op.position+op.length > docLength {
			return fmt.Errorf("%w: delete range [%d,%d) out of range [0,%d]", ErrInvalidOperation, op.position, op.position+op.length, docLength)
		}
	case Retain:
		if op.length < 0 {
			return fmt.Errorf("%w: negative retain length %d", ErrInvalidOperation, op.length)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOperation, op.kind)
	}
	return nil
}
