package throttle

import (
	"sync"
	"time"

	"github.com/helixir/syllabus-review-service/internal/observability"
)

// Registry holds one throttler per session. Throttlers are created on first
// use and dropped by Forget when the session ends.
type Registry[T any] struct {
	name    string
	minGap  time.Duration
	metrics *observability.Metrics

	mu       sync.Mutex
	sessions map[string]*Throttler[T]
}

// NewRegistry creates a registry whose throttlers use minGap.
func NewRegistry[T any](name string, minGap time.Duration, metrics *observability.Metrics) *Registry[T] {
	return &Registry[T]{
		name:     name,
		minGap:   minGap,
		metrics:  metrics,
		sessions: make(map[string]*Throttler[T]),
	}
}

// For returns the throttler for sessionID, creating it if needed.
func (r *Registry[T]) For(sessionID string) *Throttler[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.sessions[sessionID]
	if !ok {
		t = New[T](r.name, r.minGap, r.metrics)
		r.sessions[sessionID] = t
	}
	return t
}

// Forget drops the throttler for sessionID.
func (r *Registry[T]) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Len returns the number of live sessions.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
