package ot

import (
	"github.com/sumanthd032/collabtext/internal/clock"
	"github.com/sumanthd032/collabtext/internal/operation"
)

// Primary decides the tie-break token between two operations that may be
// concurrent. It is deterministic and symmetric: Primary(a, b) == !Primary(b, a)
// whenever a and b have distinct identities. Total order: vector-clock
// comparison first (the causally earlier operation wins), then lexical
// client_id (the smaller wins), and only as a last resort the timestamp
// hint.
func Primary(a, b operation.Operation) bool {
	switch clock.Compare(a.VectorClock(), b.VectorClock()) {
	case clock.Before:
		return true
	case clock.After:
		return false
	}

	if a.ClientID() != b.ClientID() {
		return a.ClientID() < b.ClientID()
	}

	return a.Timestamp() <= b.Timestamp()
}
