package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/syllabus-review-service/internal/domain"
)

// DocumentRepository persists syllabus documents and their AI job pointers.
type DocumentRepository interface {
	// Create inserts a document. Returns domain.ErrNotFound if the syllabus
	// does not exist.
	Create(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID.
	Get(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	// ListBySyllabus returns the documents of a syllabus version, newest first.
	ListBySyllabus(ctx context.Context, syllabusID uuid.UUID) ([]*domain.Document, error)

	// SetJobID persists the job pointer of the given kind. Only INGEST and
	// SUMMARY have a pointer column.
	SetJobID(ctx context.Context, id uuid.UUID, kind domain.JobKind, jobID string) error
}
