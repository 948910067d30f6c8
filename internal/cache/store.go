// Package cache stores completed AI job results against the entity that
// requested them, so repeated views reuse the result instead of submitting a
// new job.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/observability"
)

// ErrMiss is returned by Get when no entry exists for the key.
var ErrMiss = errors.New("cache miss")

// DisplayTimeLayout formats CompletedAt for display next to a cached result.
const DisplayTimeLayout = "02 Jan 2006 15:04 MST"

// Entry is a cached job result. Entries never expire; they are replaced by a
// newer successful job or removed explicitly.
type Entry struct {
	Key         string          `json:"key"`
	Kind        domain.JobKind  `json:"kind"`
	JobID       string          `json:"jobId"`
	Result      json.RawMessage `json:"result"`
	CompletedAt time.Time       `json:"completedAt"`
	DisplayTime string          `json:"displayTime"`
}

// NewEntry builds an entry for a successful job completed at t.
func NewEntry(key string, kind domain.JobKind, jobID string, result json.RawMessage, t time.Time) Entry {
	return Entry{
		Key:         key,
		Kind:        kind,
		JobID:       jobID,
		Result:      domain.NormalizeJobResult(result),
		CompletedAt: t.UTC(),
		DisplayTime: t.UTC().Format(DisplayTimeLayout),
	}
}

// Store is a keyed result cache.
type Store interface {
	// Get returns the entry for key or ErrMiss.
	Get(ctx context.Context, key string) (*Entry, error)
	// Put inserts or replaces the entry under e.Key.
	Put(ctx context.Context, e Entry) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Clear removes every entry.
	Clear(ctx context.Context) error
}

// SyllabusKey is the key of the CLO check result for a syllabus version.
func SyllabusKey(syllabusID string) string {
	return "clo-check:" + syllabusID
}

// DocumentKey is the key of a document summary.
func DocumentKey(syllabusID, documentID string) string {
	return "summary:" + syllabusID + ":" + documentID
}

func validateEntry(e Entry) error {
	if e.Key == "" {
		return domain.NewValidationError("key", "is required")
	}
	if e.JobID == "" {
		return domain.NewValidationError("job_id", "is required")
	}
	return nil
}

// instrumented records hits and misses for the wrapped store.
type instrumented struct {
	Store
	metrics *observability.Metrics
}

// WithMetrics wraps s so every Get is counted as a hit or miss.
func WithMetrics(s Store, m *observability.Metrics) Store {
	if m == nil {
		return s
	}
	return &instrumented{Store: s, metrics: m}
}

func (i *instrumented) Get(ctx context.Context, key string) (*Entry, error) {
	e, err := i.Store.Get(ctx, key)
	switch {
	case err == nil:
		i.metrics.RecordCacheLookup(string(e.Kind), true)
	case errors.Is(err, ErrMiss):
		i.metrics.RecordCacheLookup(kindOfKey(key), false)
	}
	return e, err
}

func kindOfKey(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}
