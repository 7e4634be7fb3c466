package httpapi

import (
	"net/http"
	"sync/atomic"
)

// HealthState tracks whether the process is currently accepting new
// sessions, matching the unchanged health probe contract: 200 while
// accepting, 503 during graceful shutdown.
type HealthState struct {
	accepting atomic.Bool
}

// NewHealthState returns a HealthState that reports healthy until Drain is
// called.
func NewHealthState() *HealthState {
	h := &HealthState{}
	h.accepting.Store(true)
	return h
}

// Drain marks the process as no longer accepting sessions, for use during
// graceful shutdown.
func (h *HealthState) Drain() {
	h.accepting.Store(false)
}

func (h *HealthState) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.accepting.Load() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte("draining"))
}
