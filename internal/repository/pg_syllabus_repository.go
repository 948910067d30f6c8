package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/syllabus-review-service/internal/domain"
)

// Compile-time interface verification.
var _ SyllabusRepository = (*PgSyllabusRepository)(nil)

const syllabusColumns = `id, root_id, version_no, status, content, rejection_reason, created_by,
			created_at, updated_at, submitted_at, reviewed_at, approved_at, rejected_at, published_at`

// PgSyllabusRepository is a PostgreSQL implementation of SyllabusRepository.
type PgSyllabusRepository struct {
	db DBTX
}

// NewPgSyllabusRepository creates a new PostgreSQL syllabus repository.
func NewPgSyllabusRepository(db DBTX) *PgSyllabusRepository {
	return &PgSyllabusRepository{db: db}
}

// Create inserts a new syllabus version.
func (r *PgSyllabusRepository) Create(ctx context.Context, v *domain.SyllabusVersion) error {
	if v == nil {
		return domain.NewValidationError("syllabus", "syllabus version cannot be nil")
	}
	if v.ID == uuid.Nil {
		return domain.NewValidationError("id", "syllabus version ID is required")
	}
	if v.RootID == uuid.Nil {
		return domain.NewValidationError("root_id", "root ID is required")
	}
	if v.VersionNo < 1 {
		return domain.NewValidationError("version_no", "version number must be positive")
	}
	if v.CreatedBy == "" {
		return domain.NewValidationError("created_by", "author is required")
	}

	contentJSON, err := json.Marshal(v.Content)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	query := `
		INSERT INTO syllabus_versions (
			id, root_id, version_no, status, content, rejection_reason, created_by,
			created_at, updated_at, submitted_at, reviewed_at, approved_at, rejected_at, published_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14
		)`

	_, err = r.db.Exec(ctx, query,
		v.ID, v.RootID, v.VersionNo, string(v.Status), contentJSON, nullString(v.RejectionReason), v.CreatedBy,
		v.CreatedAt, v.UpdatedAt, v.SubmittedAt, v.ReviewedAt, v.ApprovedAt, v.RejectedAt, v.PublishedAt,
	)
	if err != nil {
		return r.mapWriteError(err, v)
	}
	return nil
}

// Get retrieves a syllabus version by ID.
func (r *PgSyllabusRepository) Get(ctx context.Context, id uuid.UUID) (*domain.SyllabusVersion, error) {
	query := `SELECT ` + syllabusColumns + ` FROM syllabus_versions WHERE id = $1`

	v, err := scanSyllabus(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("syllabus", id.String())
		}
		return nil, fmt.Errorf("failed to get syllabus: %w", err)
	}
	return v, nil
}

// GetForUpdate retrieves a version with a row lock.
func (r *PgSyllabusRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.SyllabusVersion, error) {
	query := `SELECT ` + syllabusColumns + ` FROM syllabus_versions WHERE id = $1 FOR UPDATE`

	v, err := scanSyllabus(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("syllabus", id.String())
		}
		return nil, fmt.Errorf("failed to lock syllabus: %w", err)
	}
	return v, nil
}

// Save persists the mutable columns of v.
func (r *PgSyllabusRepository) Save(ctx context.Context, v *domain.SyllabusVersion) error {
	contentJSON, err := json.Marshal(v.Content)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	v.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE syllabus_versions SET
			status = $1,
			content = $2,
			rejection_reason = $3,
			updated_at = $4,
			submitted_at = $5,
			reviewed_at = $6,
			approved_at = $7,
			rejected_at = $8,
			published_at = $9
		WHERE id = $10`

	result, err := r.db.Exec(ctx, query,
		string(v.Status), contentJSON, nullString(v.RejectionReason), v.UpdatedAt,
		v.SubmittedAt, v.ReviewedAt, v.ApprovedAt, v.RejectedAt, v.PublishedAt,
		v.ID,
	)
	if err != nil {
		return r.mapWriteError(err, v)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("syllabus", v.ID.String())
	}
	return nil
}

// Update applies fn to a locked copy of the version and saves it. See
// SyllabusRepository.Update.
func (r *PgSyllabusRepository) Update(ctx context.Context, id uuid.UUID, fn func(*domain.SyllabusVersion) error) error {
	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for update: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		txRepo := &PgSyllabusRepository{db: tx}
		if err := txRepo.updateInTx(ctx, id, fn); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	return r.updateInTx(ctx, id, fn)
}

func (r *PgSyllabusRepository) updateInTx(ctx context.Context, id uuid.UUID, fn func(*domain.SyllabusVersion) error) error {
	v, err := r.GetForUpdate(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(v); err != nil {
		return err
	}
	return r.Save(ctx, v)
}

// LatestByRoot returns the newest version of a root.
func (r *PgSyllabusRepository) LatestByRoot(ctx context.Context, rootID uuid.UUID) (*domain.SyllabusVersion, error) {
	query := `SELECT ` + syllabusColumns + `
		FROM syllabus_versions
		WHERE root_id = $1
		ORDER BY version_no DESC
		LIMIT 1`

	v, err := scanSyllabus(r.db.QueryRow(ctx, query, rootID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("syllabus root", rootID.String())
		}
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	return v, nil
}

// InFlightByRoot returns the version of a root under review.
func (r *PgSyllabusRepository) InFlightByRoot(ctx context.Context, rootID uuid.UUID) (*domain.SyllabusVersion, error) {
	query := `SELECT ` + syllabusColumns + `
		FROM syllabus_versions
		WHERE root_id = $1 AND status IN ('PENDING_REVIEW', 'PENDING_APPROVAL')
		LIMIT 1`

	v, err := scanSyllabus(r.db.QueryRow(ctx, query, rootID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("in-flight version", rootID.String())
		}
		return nil, fmt.Errorf("failed to get in-flight version: %w", err)
	}
	return v, nil
}

// ListByRoot returns the version history of a root.
func (r *PgSyllabusRepository) ListByRoot(ctx context.Context, rootID uuid.UUID) ([]*domain.SyllabusVersion, error) {
	query := `SELECT ` + syllabusColumns + `
		FROM syllabus_versions
		WHERE root_id = $1
		ORDER BY version_no ASC`

	rows, err := r.db.Query(ctx, query, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	return collectSyllabi(rows)
}

// List retrieves versions matching the filter.
func (r *PgSyllabusRepository) List(ctx context.Context, filter SyllabusFilter) ([]*domain.SyllabusVersion, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	conditions := []string{"TRUE"}
	args := []interface{}{}
	argIndex := 1

	if filter.CreatedBy != "" {
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", argIndex))
		args = append(args, filter.CreatedBy)
		argIndex++
	}

	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status::text = ANY($%d)", argIndex))
		args = append(args, statuses)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM syllabus_versions WHERE %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count syllabi: %w", err)
	}

	selectQuery := fmt.Sprintf(`SELECT %s
		FROM syllabus_versions
		WHERE %s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d`,
		syllabusColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list syllabi: %w", err)
	}
	defer rows.Close()

	versions, err := collectSyllabi(rows)
	if err != nil {
		return nil, 0, err
	}
	return versions, total, nil
}

// mapWriteError converts constraint violations into domain errors.
func (r *PgSyllabusRepository) mapWriteError(err error, v *domain.SyllabusVersion) error {
	code, constraint := pgErrorCode(err)
	switch {
	case code == pgUniqueViolation && constraint == constraintOneInFlight:
		return &domain.InFlightConflictError{RootID: v.RootID.String()}
	case code == pgUniqueViolation && constraint == constraintRootVersionUniq:
		return domain.NewAlreadyExistsError("syllabus version", fmt.Sprintf("%s@%d", v.RootID, v.VersionNo))
	case code == pgUniqueViolation:
		return domain.NewAlreadyExistsError("syllabus", v.ID.String())
	}
	return fmt.Errorf("failed to write syllabus: %w", err)
}

// syllabusScanDest holds the destination pointers for scanning a syllabus row.
type syllabusScanDest struct {
	v               domain.SyllabusVersion
	status          string
	contentJSON     []byte
	rejectionReason *string
}

func (d *syllabusScanDest) destinations() []interface{} {
	return []interface{}{
		&d.v.ID, &d.v.RootID, &d.v.VersionNo, &d.status, &d.contentJSON, &d.rejectionReason, &d.v.CreatedBy,
		&d.v.CreatedAt, &d.v.UpdatedAt, &d.v.SubmittedAt, &d.v.ReviewedAt, &d.v.ApprovedAt, &d.v.RejectedAt, &d.v.PublishedAt,
	}
}

func (d *syllabusScanDest) finalize() (*domain.SyllabusVersion, error) {
	d.v.Status = domain.SyllabusStatus(d.status)
	d.v.RejectionReason = derefString(d.rejectionReason)
	if len(d.contentJSON) > 0 {
		if err := json.Unmarshal(d.contentJSON, &d.v.Content); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content: %w", err)
		}
	}
	return &d.v, nil
}

func scanSyllabus(row pgx.Row) (*domain.SyllabusVersion, error) {
	var dest syllabusScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

func collectSyllabi(rows pgx.Rows) ([]*domain.SyllabusVersion, error) {
	var versions []*domain.SyllabusVersion
	for rows.Next() {
		var dest syllabusScanDest
		if err := rows.Scan(dest.destinations()...); err != nil {
			return nil, fmt.Errorf("failed to scan syllabus: %w", err)
		}
		v, err := dest.finalize()
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating syllabi: %w", err)
	}
	return versions, nil
}
