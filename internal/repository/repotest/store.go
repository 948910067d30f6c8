// Package repotest provides in-memory repositories for service tests. They
// enforce the same uniqueness rules as the PostgreSQL schema.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/repository"
)

// Store holds all tables. WithinTx serializes transactions and restores the
// previous state when fn fails.
type Store struct {
	mu        sync.Mutex
	txMu      sync.Mutex
	syllabi   map[uuid.UUID]domain.SyllabusVersion
	items     map[uuid.UUID]domain.WorkflowItem
	documents map[uuid.UUID]domain.Document

	// Calls counts repository method invocations by name.
	Calls map[string]int
}

var _ repository.Transactor = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		syllabi:   make(map[uuid.UUID]domain.SyllabusVersion),
		items:     make(map[uuid.UUID]domain.WorkflowItem),
		documents: make(map[uuid.UUID]domain.Document),
		Calls:     make(map[string]int),
	}
}

// Repositories returns repositories operating directly on the store.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Syllabi:       &syllabusRepo{s: s},
		WorkflowItems: &itemRepo{s: s},
		Documents:     &documentRepo{s: s},
	}
}

// WithinTx implements repository.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s.Repositories()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// CallCount returns how often the named method was called.
func (s *Store) CallCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[name]
}

// PutSyllabus stores v as is, bypassing invariants.
func (s *Store) PutSyllabus(v *domain.SyllabusVersion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syllabi[v.ID] = cloneVersion(*v)
}

// PutItem stores item as is.
func (s *Store) PutItem(item *domain.WorkflowItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = *item
}

// Items returns every workflow item of entityID, oldest first.
func (s *Store) Items(entityID uuid.UUID) []domain.WorkflowItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.WorkflowItem
	for _, it := range s.items {
		if it.EntityID == entityID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type snapshot struct {
	syllabi   map[uuid.UUID]domain.SyllabusVersion
	items     map[uuid.UUID]domain.WorkflowItem
	documents map[uuid.UUID]domain.Document
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		syllabi:   make(map[uuid.UUID]domain.SyllabusVersion, len(s.syllabi)),
		items:     make(map[uuid.UUID]domain.WorkflowItem, len(s.items)),
		documents: make(map[uuid.UUID]domain.Document, len(s.documents)),
	}
	for k, v := range s.syllabi {
		snap.syllabi[k] = cloneVersion(v)
	}
	for k, v := range s.items {
		snap.items[k] = v
	}
	for k, v := range s.documents {
		snap.documents[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syllabi, s.items, s.documents = snap.syllabi, snap.items, snap.documents
}

func (s *Store) count(name string) {
	s.Calls[name]++
}

func cloneVersion(v domain.SyllabusVersion) domain.SyllabusVersion {
	v.Content.CLOPairIDs = append([]string(nil), v.Content.CLOPairIDs...)
	v.Content.Objectives = append([]string(nil), v.Content.Objectives...)
	v.Content.Modules = append([]domain.SyllabusModule(nil), v.Content.Modules...)
	v.Content.AssessmentWeights = append([]domain.AssessmentWeight(nil), v.Content.AssessmentWeights...)
	v.SubmittedAt = cloneTime(v.SubmittedAt)
	v.ReviewedAt = cloneTime(v.ReviewedAt)
	v.ApprovedAt = cloneTime(v.ApprovedAt)
	v.RejectedAt = cloneTime(v.RejectedAt)
	v.PublishedAt = cloneTime(v.PublishedAt)
	return v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
