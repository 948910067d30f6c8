package cache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/observability"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "clo-check:s-1", SyllabusKey("s-1"))
	assert.Equal(t, "summary:s-1:d-2", DocumentKey("s-1", "d-2"))
	assert.NotEqual(t, SyllabusKey("s-1"), DocumentKey("s-1", ""))
}

func TestNewEntry(t *testing.T) {
	at := time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)
	e := NewEntry(SyllabusKey("s-1"), domain.JobKindCLOCheck, "job-1", []byte(`"{\"score\":9}"`), at)

	assert.Equal(t, "clo-check:s-1", e.Key)
	assert.Equal(t, "job-1", e.JobID)
	assert.JSONEq(t, `{"score":9}`, string(e.Result))
	assert.Equal(t, "04 Mar 2025 09:30 UTC", e.DisplayTime)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	e := NewEntry(DocumentKey("s-1", "d-1"), domain.JobKindSummary, "job-1", []byte(`{"summary":"a"}`), time.Now())
	require.NoError(t, s.Put(ctx, e))

	got, err := s.Get(ctx, e.Key)
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.JobID)

	// Returned entries do not alias stored state.
	got.Result[0] = 'x'
	again, err := s.Get(ctx, e.Key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"a"}`, string(again.Result))

	replacement := NewEntry(e.Key, domain.JobKindSummary, "job-2", []byte(`{"summary":"b"}`), time.Now())
	require.NoError(t, s.Put(ctx, replacement))
	got, err = s.Get(ctx, e.Key)
	require.NoError(t, err)
	assert.Equal(t, "job-2", got.JobID)

	require.NoError(t, s.Delete(ctx, e.Key))
	require.NoError(t, s.Delete(ctx, e.Key))
	_, err = s.Get(ctx, e.Key)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Put(ctx, NewEntry("a", domain.JobKindSummary, "j", nil, time.Now())))
	require.NoError(t, s.Put(ctx, NewEntry("b", domain.JobKindSummary, "j", nil, time.Now())))
	assert.Equal(t, 2, s.Len())
	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_PutValidates(t *testing.T) {
	s := NewMemoryStore()
	assert.ErrorIs(t, s.Put(context.Background(), Entry{JobID: "j"}), domain.ErrInvalidInput)
	assert.ErrorIs(t, s.Put(context.Background(), Entry{Key: "k"}), domain.ErrInvalidInput)
}

func TestWithMetrics(t *testing.T) {
	ctx := context.Background()
	m := observability.NewMetrics("test_cache")
	s := WithMetrics(NewMemoryStore(), m)

	_, _ = s.Get(ctx, SyllabusKey("s-1"))
	require.NoError(t, s.Put(ctx, NewEntry(SyllabusKey("s-1"), domain.JobKindCLOCheck, "job-1", []byte(`{}`), time.Now())))
	_, err := s.Get(ctx, SyllabusKey("s-1"))
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMisses.WithLabelValues("clo-check")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHits.WithLabelValues("CLO_CHECK")))
}
