// Package throttle limits how often a list endpoint hits the backend. Each
// list keeps its last good snapshot and hands it back while a refresh is in
// flight or the minimum gap since the last completed refresh has not passed.
package throttle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/helixir/syllabus-review-service/internal/observability"
)

// ErrSuppressed is returned when a call is suppressed before any snapshot exists.
var ErrSuppressed = errors.New("refresh suppressed")

// Outcome describes how a call was served.
type Outcome struct {
	// Suppressed is true when the snapshot was served without fetching.
	Suppressed bool
	// FetchedAt is when the returned snapshot was fetched.
	FetchedAt time.Time
}

// Throttler guards one list. It is safe for concurrent use.
type Throttler[T any] struct {
	name    string
	minGap  time.Duration
	now     func() time.Time
	metrics *observability.Metrics

	mu       sync.Mutex
	inFlight int
	// started numbers fetches in start order; snapGen is the number of the
	// fetch that produced the snapshot.
	started     uint64
	snapGen     uint64
	lastDone    time.Time
	snapshot    T
	hasSnapshot bool
	fetchedAt   time.Time
}

// New creates a throttler for the list called name.
func New[T any](name string, minGap time.Duration, metrics *observability.Metrics) *Throttler[T] {
	return &Throttler[T]{name: name, minGap: minGap, now: time.Now, metrics: metrics}
}

// Do calls fetch unless a refresh is running or the last one completed less
// than the minimum gap ago. force bypasses both checks. A successful fetch
// replaces the snapshot unless a fetch started after it already did; the
// caller then gets that newer snapshot. A failed fetch keeps the previous
// snapshot and still counts as a completed call.
func (t *Throttler[T]) Do(ctx context.Context, force bool, fetch func(context.Context) (T, error)) (T, Outcome, error) {
	t.mu.Lock()
	if !force && (t.inFlight > 0 || (!t.lastDone.IsZero() && t.now().Sub(t.lastDone) < t.minGap)) {
		snap, has, at := t.snapshot, t.hasSnapshot, t.fetchedAt
		t.mu.Unlock()

		t.metrics.RecordThrottle(t.name, true)
		if !has {
			var zero T
			return zero, Outcome{Suppressed: true}, ErrSuppressed
		}
		return snap, Outcome{Suppressed: true, FetchedAt: at}, nil
	}
	t.inFlight++
	t.started++
	gen := t.started
	t.mu.Unlock()

	t.metrics.RecordThrottle(t.name, false)

	finished := false
	defer func() {
		if !finished {
			t.mu.Lock()
			t.inFlight--
			t.mu.Unlock()
		}
	}()
	val, err := fetch(ctx)
	finished = true

	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight--
	t.lastDone = t.now()
	if err != nil {
		var zero T
		return zero, Outcome{}, err
	}
	if gen > t.snapGen {
		t.snapshot, t.hasSnapshot, t.fetchedAt, t.snapGen = val, true, t.lastDone, gen
	}
	return t.snapshot, Outcome{FetchedAt: t.fetchedAt}, nil
}

// Reset drops the snapshot and timing state.
func (t *Throttler[T]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	t.snapshot, t.hasSnapshot, t.snapGen = zero, false, t.started
	t.lastDone, t.fetchedAt = time.Time{}, time.Time{}
}
