package session

import (
	"sync"
	"time"
)

// tokenBucket is a per-client operation-rate limiter, hand-rolled against
// the standard library since a per-command actor gate doesn't fit an HTTP
// rate-limiting middleware shape.
type tokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	last       time.Time
	now        func() time.Time
}

func newTokenBucket(ratePerSec float64, now func() time.Time) *tokenBucket {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if now == nil {
		now = time.Now
	}
	return &tokenBucket{
		capacity:   ratePerSec,
		tokens:     ratePerSec,
		refillRate: ratePerSec,
		last:       now(),
		now:        now,
	}
}

// allow reports whether a token is available and, if so, consumes it.
func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.now()
	elapsed := current.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = current
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
