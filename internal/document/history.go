package document

import "github.com/sumanthd032/collabtext/internal/operation"

// Entry is a committed operation paired with the revision it produced.
type Entry struct {
	Operation operation.Operation
	Revision  uint64
}

// history is a bounded FIFO of committed operations, newest last. It backs
// Document State's operations_since and eviction rules.
type history struct {
	entries []Entry
	limit   int
	// floor is the revision of the first retained entry minus 1,
	// i.e. the base a caller must supply to get the whole retained window.
	// It advances every time entries are evicted from the front.
	floor uint64
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = defaultHistorySize
	}
	return &history{limit: limit}
}

func (h *history) append(entry Entry) {
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.limit {
		// Hard cap: this only triggers when the session failed to evict an
		// acknowledged prefix in time; drop the oldest entry so memory stays
		// bounded and record the new floor so operationsSince can report
		// HistoryExhausted for callers that needed it.
		h.floor = h.entries[0].Revision
		h.entries = h.entries[1:]
	}
}

// since returns the entries with Revision > rev, in order. ok is false when
// rev is older than what remains retained (the caller must resync).
func (h *history) since(rev uint64) (entries []Entry, ok bool) {
	if rev < h.floor {
		return nil, false
	}
	if len(h.entries) == 0 {
		if rev == h.floor {
			return nil, true
		}
		return nil, false
	}
	head := h.entries[0].Revision - 1
	if rev < head {
		return nil, false
	}
	idx := int(rev - head)
	if idx > len(h.entries) {
		return nil, false
	}
	out := make([]Entry, len(h.entries)-idx)
	copy(out, h.entries[idx:])
	return out, true
}

// evictBefore drops entries with Revision <= rev, provided rev refers to a
// revision every connected client has already acknowledged. Callers (the
// Session) are responsible for only calling this with an acked prefix.
func (h *history) evictBefore(rev uint64) {
	i := 0
	for i < len(h.entries) && h.entries[i].Revision <= rev {
		i++
	}
	if i == 0 {
		return
	}
	h.floor = h.entries[i-1].Revision
	h.entries = h.entries[i:]
}

func (h *history) len() int {
	return len(h.entries)
}
