// Package ot implements the operational-transform algebra: given two
// operations that were both composed against the same base document state,
// derive the form of the first that can be applied after the second so that
// applying either order converges on the same content. It is a pure
// function library with no side effects and no shared state; correctness
// (convergence, intention preservation, deterministic tie-breaking) lives
// entirely here.
package ot

import (
	"errors"
	"fmt"

	"github.com/sumanthd032/collabtext/internal/operation"
)

// ErrMalformedTransform is returned when Transform is asked to reconcile
// operations whose shape it cannot reason about (e.g. a negative length
// slipped past construction-time validation).
var ErrMalformedTransform = errors.New("ot: malformed transform input")

// Transform returns the form of a that should be applied after b has
// already been applied, so that applying b then Transform(a, b, ...)
// converges to the same content as applying a then Transform(b, a, ...)
// with the boolean flipped. The result has length 1 except when an Insert
// splits a concurrent Delete, which yields two Delete operations in
// document order.
//
// aIsPrimary is the tie-break token for same-position concurrent inserts;
// see Primary for how callers must derive it. It must be supplied
// consistently: if one observer transforms (a, b) with aIsPrimary=true,
// every other observer transforming (b, a) must pass false.
func Transform(a, b operation.Operation, aIsPrimary bool) ([]operation.Operation, error) {
	if a.Kind() == operation.Delete && a.Length() <= 0 {
		return nil, fmt.Errorf("%w: delete with non-positive length %d", ErrMalformedTransform, a.Length())
	}
	if b.Kind() == operation.Delete && b.Length() <= 0 {
		return nil, fmt.Errorf("%w: delete with non-positive length %d", ErrMalformedTransform, b.Length())
	}
	if a.Position() < 0 || b.Position() < 0 {
		return nil, fmt.Errorf("%w: negative position", ErrMalformedTransform)
	}

	switch a.Kind() {
	case operation.Insert:
		return transformInsert(a, b, aIsPrimary)
	case operation.Delete:
		return transformDelete(a, b, aIsPrimary)
	case operation.Retain:
		return transformRetain(a, b)
	default:
		return nil, fmt.Errorf("%w: unknown operation kind %q", ErrMalformedTransform, a.Kind())
	}
}

func transformInsert(a, b operation.Operation, aIsPrimary bool) ([]operation.Operation, error) {
	p := a.Position()

	switch b.Kind() {
	case operation.Insert:
		q, contentLen := b.Position(), b.Length()
		switch {
		case p < q:
			return []operation.Operation{a}, nil
		case p > q:
			return []operation.Operation{a.Repositioned(p + contentLen)}, nil
		default: // p == q
			if aIsPrimary {
				return []operation.Operation{a}, nil
			}
			return []operation.Operation{a.Repositioned(p + contentLen)}, nil
		}
	case operation.Delete:
		q, length := b.Position(), b.Length()
		switch {
		case p <= q:
			return []operation.Operation{a}, nil
		case p >= q+length:
			return []operation.Operation{a.Repositioned(p - length)}, nil
		default: // q < p < q+length
			return []operation.Operation{a.Repositioned(q)}, nil
		}
	case operation.Retain:
		return transformAgainstRetain(a, b)
	default:
		return nil, fmt.Errorf("%w: unknown operation kind %q", ErrMalformedTransform, b.Kind())
	}
}

func transformDelete(a, b operation.Operation, aIsPrimary bool) ([]operation.Operation, error) {
	p, m := a.Position(), a.Length()

	switch b.Kind() {
	case operation.Insert:
		q, contentLen := b.Position(), b.Length()
		switch {
		case p+m <= q:
			return []operation.Operation{a}, nil
		case p >= q:
			return []operation.Operation{a.Repositioned(p + contentLen)}, nil
		default: // p < q < p+m: insert splits the delete
			left := a.Repositioned(p).Relengthed(q - p)
			right := a.Repositioned(q + contentLen).Relengthed(p + m + contentLen - (q + contentLen))
			return []operation.Operation{left, right}, nil
		}
	case operation.Delete:
		q, length := b.Position(), b.Length()
		aEnd, bEnd := p+m, q+length
		switch {
		case aEnd <= q:
			// a entirely before b: unaffected.
			return []operation.Operation{a}, nil
		case bEnd <= p:
			// b entirely before a: a shifts back by b's length.
			return []operation.Operation{a.Repositioned(p - length)}, nil
		default:
			// Ranges overlap (including the identical-range case, where the
			// overlap equals both lengths and a collapses to a no-op:
			// deleting an already-deleted span is idempotent, so no
			// primacy tie-break is needed here).
			pos := minInt(p, q)
			overlap := maxInt(0, minInt(aEnd, bEnd)-maxInt(p, q))
			remaining := m - overlap
			if remaining <= 0 {
				return []operation.Operation{a.AsRetain(pos)}, nil
			}
			return []operation.Operation{a.Repositioned(pos).Relengthed(remaining)}, nil
		}
	case operation.Retain:
		return transformAgainstRetain(a, b)
	default:
		return nil, fmt.Errorf("%w: unknown operation kind %q", ErrMalformedTransform, b.Kind())
	}
}

func transformRetain(a, b operation.Operation) ([]operation.Operation, error) {
	return transformAgainstRetain(a, b)
}

// transformAgainstRetain repositions a without tie-breaking: an Insert b at
// or before a's position shifts a forward, a Delete b before a shifts it back
// (or clamps it to b's position when b covers it), and a Retain b leaves it
// unchanged. Covers both the "Retain against anything" row and any op
// transformed against a Retain.
func transformAgainstRetain(a, b operation.Operation) ([]operation.Operation, error) {
	p := a.Position()

	switch b.Kind() {
	case operation.Insert, operation.Retain:
		q := b.Position()
		if p >= q && b.Kind() == operation.Insert && b.Length() > 0 {
			return []operation.Operation{a.Repositioned(p + b.Length())}, nil
		}
		return []operation.Operation{a}, nil
	case operation.Delete:
		q, length := b.Position(), b.Length()
		switch {
		case p >= q+length:
			return []operation.Operation{a.Repositioned(p - length)}, nil
		case p >= q:
			return []operation.Operation{a.Repositioned(q)}, nil
		default:
			return []operation.Operation{a}, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown operation kind %q", ErrMalformedTransform, b.Kind())
	}
}

func minInt(x, y int) int {
	if x < y {
		return x
	}
	return y
}

func maxInt(x, y int) int {
	if x > y {
		return x
	}
	return y
}
