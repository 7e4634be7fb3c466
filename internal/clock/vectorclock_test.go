package clock

import "testing"

func TestCompareConcurrent(t *testing.T) {
	a := VectorClock{"c1": 2, "c2": 1}
	b := VectorClock{"c1": 1, "c2": 2}

	if rel := Compare(a, b); rel != Concurrent {
		t.Fatalf("expected concurrent, got %v", rel)
	}
	if rel := Compare(b, a); rel != Concurrent {
		t.Fatalf("expected concurrent (symmetric), got %v", rel)
	}
}

func TestCompareAfterBothSides(t *testing.T) {
	a := VectorClock{"c1": 2, "c2": 1}
	b := VectorClock{"c1": 1, "c2": 2}
	merged := Merge(a, b)

	if merged["c1"] != 2 || merged["c2"] != 2 {
		t.Fatalf("unexpected merge result: %+v", merged)
	}
	if rel := Compare(merged, a); rel != After {
		t.Fatalf("expected merged after a, got %v", rel)
	}
	if rel := Compare(merged, b); rel != After {
		t.Fatalf("expected merged after b, got %v", rel)
	}
}

func TestEmptyClockComparison(t *testing.T) {
	empty := VectorClock{}
	other := VectorClock{"c1": 1}

	if rel := Compare(empty, other); rel != Before {
		t.Fatalf("expected empty before other, got %v", rel)
	}

	merged := Merge(empty, other)
	if len(merged) != 1 || merged["c1"] != 1 {
		t.Fatalf("unexpected merge of empty clock: %+v", merged)
	}
}

func TestMissingKeysStaySparse(t *testing.T) {
	vc := VectorClock{"c1": 1}
	if vc.Get("c2") != 0 {
		t.Fatalf("expected missing key to read as zero")
	}
	if _, ok := vc["c2"]; ok {
		t.Fatalf("reading a missing key must not materialize it")
	}
}

func TestMergeCommutativeAssociativeIdempotent(t *testing.T) {
	a := VectorClock{"c1": 3, "c2": 1}
	b := VectorClock{"c1": 1, "c2": 4, "c3": 2}
	c := VectorClock{"c3": 5}

	ab := Merge(a, b)
	ba := Merge(b, a)
	if Compare(ab, ba) != Equal {
		t.Fatalf("merge not commutative: %+v vs %+v", ab, ba)
	}

	abc1 := Merge(Merge(a, b), c)
	abc2 := Merge(a, Merge(b, c))
	if Compare(abc1, abc2) != Equal {
		t.Fatalf("merge not associative: %+v vs %+v", abc1, abc2)
	}

	if Compare(Merge(a, a), a) != Equal {
		t.Fatalf("merge not idempotent")
	}
}

func TestIncrementDoesNotMutateReceiver(t *testing.T) {
	vc := VectorClock{"c1": 1}
	next := vc.Increment("c1")

	if vc["c1"] != 1 {
		t.Fatalf("increment mutated receiver: %+v", vc)
	}
	if next["c1"] != 2 {
		t.Fatalf("expected incremented counter of 2, got %d", next["c1"])
	}
}

func TestCompareAntisymmetricAndTotal(t *testing.T) {
	cases := []struct {
		a, b VectorClock
	}{
		{VectorClock{"c1": 1}, VectorClock{"c1": 1}},
		{VectorClock{"c1": 2}, VectorClock{"c1": 1}},
		{VectorClock{"c1": 1, "c2": 1}, VectorClock{"c1": 1, "c2": 2}},
	}
	for _, tc := range cases {
		fwd := Compare(tc.a, tc.b)
		back := Compare(tc.b, tc.a)
		switch fwd {
		case Equal:
			if back != Equal {
				t.Fatalf("equal not symmetric: %v vs %v", fwd, back)
			}
		case Before:
			if back != After {
				t.Fatalf("before/after not antisymmetric: %v vs %v", fwd, back)
			}
		case After:
			if back != Before {
				t.Fatalf("after/before not antisymmetric: %v vs %v", fwd, back)
			}
		case Concurrent:
			if back != Concurrent {
				t.Fatalf("concurrent not symmetric: %v vs %v", fwd, back)
			}
		}
	}
}
