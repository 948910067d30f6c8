package throttle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualTime struct {
	mu sync.Mutex
	t  time.Time
}

func (m *manualTime) now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

func (m *manualTime) advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = m.t.Add(d)
}

func newTestThrottler(gap time.Duration) (*Throttler[[]string], *manualTime) {
	clock := &manualTime{t: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)}
	th := New[[]string]("review_queue", gap, nil)
	th.now = clock.now
	return th, clock
}

func TestThrottler_MinGap(t *testing.T) {
	th, clock := newTestThrottler(8 * time.Second)
	var calls int32
	fetch := func(context.Context) ([]string, error) {
		n := atomic.AddInt32(&calls, 1)
		return []string{"item", string(rune('0' + n))}, nil
	}
	ctx := context.Background()

	v, out, err := th.Do(ctx, false, fetch)
	require.NoError(t, err)
	assert.False(t, out.Suppressed)
	assert.Equal(t, []string{"item", "1"}, v)

	clock.advance(3 * time.Second)
	v, out, err = th.Do(ctx, false, fetch)
	require.NoError(t, err)
	assert.True(t, out.Suppressed)
	assert.Equal(t, []string{"item", "1"}, v)

	v, out, err = th.Do(ctx, true, fetch)
	require.NoError(t, err)
	assert.False(t, out.Suppressed)
	assert.Equal(t, []string{"item", "2"}, v)

	// The gap restarts from the forced call.
	clock.advance(7 * time.Second)
	_, out, _ = th.Do(ctx, false, fetch)
	assert.True(t, out.Suppressed)

	clock.advance(time.Second)
	v, out, err = th.Do(ctx, false, fetch)
	require.NoError(t, err)
	assert.False(t, out.Suppressed)
	assert.Equal(t, []string{"item", "3"}, v)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestThrottler_GapMeasuredFromCompletion(t *testing.T) {
	th, clock := newTestThrottler(time.Second)
	slow := func(context.Context) ([]string, error) {
		clock.advance(5 * time.Second)
		return []string{"a"}, nil
	}

	_, _, err := th.Do(context.Background(), false, slow)
	require.NoError(t, err)

	clock.advance(500 * time.Millisecond)
	_, out, err := th.Do(context.Background(), false, slow)
	require.NoError(t, err)
	assert.True(t, out.Suppressed)
}

func TestThrottler_InFlightGuard(t *testing.T) {
	th, clock := newTestThrottler(time.Second)
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	var slowResult []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		slowResult, _, _ = th.Do(ctx, false, func(context.Context) ([]string, error) {
			close(started)
			<-release
			return []string{"stale-auto"}, nil
		})
	}()
	<-started

	mustNotFetch := func(context.Context) ([]string, error) {
		t.Error("must not fetch while another refresh is running")
		return nil, nil
	}

	_, out, err := th.Do(ctx, false, mustNotFetch)
	assert.True(t, out.Suppressed)
	assert.ErrorIs(t, err, ErrSuppressed)

	v, out, err := th.Do(ctx, true, func(context.Context) ([]string, error) {
		return []string{"fresh-forced"}, nil
	})
	require.NoError(t, err)
	assert.False(t, out.Suppressed)
	assert.Equal(t, []string{"fresh-forced"}, v)

	// The gap has passed but the first refresh is still running.
	clock.advance(2 * time.Second)
	v, out, err = th.Do(ctx, false, mustNotFetch)
	require.NoError(t, err)
	assert.True(t, out.Suppressed)
	assert.Equal(t, []string{"fresh-forced"}, v)

	close(release)
	<-done
	assert.Equal(t, []string{"fresh-forced"}, slowResult, "older fetch must not replace a newer snapshot")

	v, out, err = th.Do(ctx, false, mustNotFetch)
	require.NoError(t, err)
	assert.True(t, out.Suppressed)
	assert.Equal(t, []string{"fresh-forced"}, v)
}

func TestThrottler_PanickingFetchReleasesGuard(t *testing.T) {
	th, _ := newTestThrottler(0)
	ctx := context.Background()

	assert.Panics(t, func() {
		_, _, _ = th.Do(ctx, false, func(context.Context) ([]string, error) {
			panic("fetch exploded")
		})
	})

	v, out, err := th.Do(ctx, false, func(context.Context) ([]string, error) {
		return []string{"recovered"}, nil
	})
	require.NoError(t, err)
	assert.False(t, out.Suppressed)
	assert.Equal(t, []string{"recovered"}, v)
}

func TestThrottler_ResetDiscardsInFlightResult(t *testing.T) {
	th, _ := newTestThrottler(time.Hour)
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = th.Do(ctx, false, func(context.Context) ([]string, error) {
			close(started)
			<-release
			return []string{"before-reset"}, nil
		})
	}()
	<-started

	th.Reset()
	close(release)
	<-done

	_, out, err := th.Do(ctx, false, func(context.Context) ([]string, error) {
		t.Error("must not fetch inside the gap")
		return nil, nil
	})
	assert.True(t, out.Suppressed)
	assert.ErrorIs(t, err, ErrSuppressed)
}

func TestThrottler_FailedFetchKeepsSnapshot(t *testing.T) {
	th, clock := newTestThrottler(time.Second)
	ctx := context.Background()

	_, _, err := th.Do(ctx, false, func(context.Context) ([]string, error) { return []string{"good"}, nil })
	require.NoError(t, err)

	clock.advance(2 * time.Second)
	boom := errors.New("db down")
	_, _, err = th.Do(ctx, false, func(context.Context) ([]string, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	v, out, err := th.Do(ctx, false, func(context.Context) ([]string, error) { return nil, boom })
	require.NoError(t, err)
	assert.True(t, out.Suppressed)
	assert.Equal(t, []string{"good"}, v)
}

func TestThrottler_Reset(t *testing.T) {
	th, _ := newTestThrottler(time.Hour)
	ctx := context.Background()
	_, _, _ = th.Do(ctx, false, func(context.Context) ([]string, error) { return []string{"a"}, nil })

	th.Reset()
	v, out, err := th.Do(ctx, false, func(context.Context) ([]string, error) { return []string{"b"}, nil })
	require.NoError(t, err)
	assert.False(t, out.Suppressed)
	assert.Equal(t, []string{"b"}, v)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry[int]("lecturer_list", time.Second, nil)

	a := r.For("session-a")
	assert.Same(t, a, r.For("session-a"))
	assert.NotSame(t, a, r.For("session-b"))
	assert.Equal(t, 2, r.Len())

	r.Forget("session-a")
	assert.Equal(t, 1, r.Len())
	assert.NotSame(t, a, r.For("session-a"))

	r.Forget("unknown")
	assert.Equal(t, 2, r.Len())
}
