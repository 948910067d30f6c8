package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/syllabus-review-service/internal/domain"
)

var _ DocumentRepository = (*PgDocumentRepository)(nil)

const documentColumns = `id, syllabus_id, file_name, content_type, storage_url, uploaded_by,
			ai_ingestion_job_id, ai_summary_job_id, created_at, updated_at`

// PgDocumentRepository is a PostgreSQL implementation of DocumentRepository.
type PgDocumentRepository struct {
	db DBTX
}

// NewPgDocumentRepository creates a new PostgreSQL document repository.
func NewPgDocumentRepository(db DBTX) *PgDocumentRepository {
	return &PgDocumentRepository{db: db}
}

// Create inserts a document.
func (r *PgDocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return domain.NewValidationError("document", "document cannot be nil")
	}
	if doc.SyllabusID == uuid.Nil {
		return domain.NewValidationError("syllabus_id", "syllabus ID is required")
	}
	if doc.FileName == "" {
		return domain.NewValidationError("file_name", "file name is required")
	}
	if doc.StorageURL == "" {
		return domain.NewValidationError("storage_url", "storage URL is required")
	}

	query := `
		INSERT INTO syllabus_documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		doc.ID, doc.SyllabusID, doc.FileName, nullString(doc.ContentType), doc.StorageURL, doc.UploadedBy,
		nullString(doc.AIIngestionJobID), nullString(doc.AISummaryJobID), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("document", doc.ID.String())
		}
		if isPgForeignKeyViolation(err) {
			return domain.NewNotFoundError("syllabus", doc.SyllabusID.String())
		}
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// Get retrieves a document by ID.
func (r *PgDocumentRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM syllabus_documents WHERE id = $1`

	doc, err := scanDocument(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("document", id.String())
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListBySyllabus returns the documents of a syllabus version.
func (r *PgDocumentRepository) ListBySyllabus(ctx context.Context, syllabusID uuid.UUID) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + `
		FROM syllabus_documents
		WHERE syllabus_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, syllabusID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

// SetJobID persists a job pointer.
func (r *PgDocumentRepository) SetJobID(ctx context.Context, id uuid.UUID, kind domain.JobKind, jobID string) error {
	var column string
	switch kind {
	case domain.JobKindIngest:
		column = "ai_ingestion_job_id"
	case domain.JobKindSummary:
		column = "ai_summary_job_id"
	default:
		return domain.NewValidationError("kind", fmt.Sprintf("documents do not track %s jobs", kind))
	}

	query := fmt.Sprintf(`
		UPDATE syllabus_documents
		SET %s = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`, column)

	result, err := r.db.Exec(ctx, query, nullString(jobID), id)
	if err != nil {
		return fmt.Errorf("failed to set %s job pointer: %w", kind, err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("document", id.String())
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var (
		doc         domain.Document
		contentType *string
		ingestJob   *string
		summaryJob  *string
	)
	if err := row.Scan(
		&doc.ID, &doc.SyllabusID, &doc.FileName, &contentType, &doc.StorageURL, &doc.UploadedBy,
		&ingestJob, &summaryJob, &doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	doc.ContentType = derefString(contentType)
	doc.AIIngestionJobID = derefString(ingestJob)
	doc.AISummaryJobID = derefString(summaryJob)
	return &doc, nil
}
