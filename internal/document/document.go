// Package document holds the character buffer, revision counter, and
// bounded operation history that a Session mutates on every committed
// operation.
package document

import (
	"errors"
	"fmt"

	"github.com/sumanthd032/collabtext/internal/clock"
	"github.com/sumanthd032/collabtext/internal/operation"
)

const defaultHistorySize = 10000

var (
	// ErrOutOfRange means op's position/length is invalid against the
	// current content.
	ErrOutOfRange = errors.New("document: operation out of range")
	// ErrHistoryExhausted means the requested base revision predates what
	// the bounded history still retains; the caller must resync.
	ErrHistoryExhausted = errors.New("document: history exhausted")
)

// State is a document's character buffer plus the metadata needed to
// rebase and broadcast operations against it. All mutation must happen
// from the single goroutine that owns the enclosing Session; State itself
// holds no lock.
type State struct {
	content  []rune
	revision uint64
	history  *history
	clock    clock.VectorClock
}

// New returns an empty Document State with the given history bound. A
// historyLimit of zero uses the default of 10,000.
func New(historyLimit int) *State {
	return &State{
		history: newHistory(historyLimit),
		clock:   clock.New(),
	}
}

// NewWithContent seeds State from a persisted snapshot (used when a Session
// is restored from the external store after a restart or a cold join).
func NewWithContent(content string, revision uint64, vc clock.VectorClock, historyLimit int) *State {
	s := New(historyLimit)
	s.content = []rune(content)
	s.revision = revision
	s.history.floor = revision
	if vc != nil {
		s.clock = vc.Clone()
	}
	return s
}

// Apply mutates the buffer per op's semantics, appends it to history,
// bumps the revision, and merges op's clock into the document's clock. op
// must already be rebased onto the current revision. It returns the new
// revision.
func (s *State) Apply(op operation.Operation) (uint64, error) {
	if err := op.ValidateAgainst(len(s.content)); err != nil {
		return s.revision, fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}

	next, err := op.Apply(string(s.content))
	if err != nil {
		return s.revision, fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}

	s.content = []rune(next)
	s.revision++
	s.history.append(Entry{Operation: op, Revision: s.revision})
	s.clock = clock.Merge(s.clock, op.VectorClock())
	return s.revision, nil
}

// Snapshot returns a cheap, consistent read of the document's current
// revision, content, and vector clock.
func (s *State) Snapshot() (revision uint64, content string, vc clock.VectorClock) {
	return s.revision, string(s.content), s.clock.Clone()
}

// Revision returns the current committed revision.
func (s *State) Revision() uint64 {
	return s.revision
}

// Len returns the current content length in runes, used by callers that
// need to validate an operation before Apply.
func (s *State) Len() int {
	return len(s.content)
}

// OperationsSince returns the committed operations after rev, in commit
// order. It returns ErrHistoryExhausted if rev is older than the retained
// window.
func (s *State) OperationsSince(rev uint64) ([]Entry, error) {
	if rev > s.revision {
		return nil, fmt.Errorf("%w: requested revision %d exceeds current %d", ErrOutOfRange, rev, s.revision)
	}
	entries, ok := s.history.since(rev)
	if !ok {
		return nil, fmt.Errorf("%w: revision %d no longer retained", ErrHistoryExhausted, rev)
	}
	return entries, nil
}

// EvictBefore drops history entries at or before rev. Callers must only
// pass a revision every connected client has already acknowledged.
func (s *State) EvictBefore(rev uint64) {
	s.history.evictBefore(rev)
}

// HistoryLen reports how many operations are currently retained, mostly
// for tests and diagnostics.
func (s *State) HistoryLen() int {
	return s.history.len()
}

// Replay rebuilds content from an ordered operation sequence starting from
// empty, used to verify the history<->content agreement invariant in
// tests.
func Replay(ops []operation.Operation) (string, error) {
	content := ""
	for i, op := range ops {
		var err error
		content, err = op.Apply(content)
		if err != nil {
			return "", fmt.Errorf("replay op %d: %w", i, err)
		}
	}
	return content, nil
}
