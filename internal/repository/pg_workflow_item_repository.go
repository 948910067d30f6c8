package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/syllabus-review-service/internal/domain"
)

var _ WorkflowItemRepository = (*PgWorkflowItemRepository)(nil)

const workflowItemColumns = `id, entity_id, status, role, action_by, comment, created_at, resolved_at`

// PgWorkflowItemRepository is a PostgreSQL implementation of WorkflowItemRepository.
type PgWorkflowItemRepository struct {
	db DBTX
}

// NewPgWorkflowItemRepository creates a new PostgreSQL workflow item repository.
func NewPgWorkflowItemRepository(db DBTX) *PgWorkflowItemRepository {
	return &PgWorkflowItemRepository{db: db}
}

// Create inserts a pending item.
func (r *PgWorkflowItemRepository) Create(ctx context.Context, item *domain.WorkflowItem) error {
	if item == nil {
		return domain.NewValidationError("workflow_item", "workflow item cannot be nil")
	}
	if item.EntityID == uuid.Nil {
		return domain.NewValidationError("entity_id", "entity ID is required")
	}
	if item.Role == "" {
		return domain.NewValidationError("role", "role is required")
	}

	query := `
		INSERT INTO workflow_items (id, entity_id, status, role, action_by, comment, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		item.ID, item.EntityID, string(item.Status), string(item.Role),
		nullString(item.ActionBy), nullString(item.Comment), item.CreatedAt, item.ResolvedAt,
	)
	if err != nil {
		_, constraint := pgErrorCode(err)
		switch {
		case isPgUniqueViolation(err) && constraint == constraintOnePendingItem:
			return domain.NewAlreadyExistsError("pending workflow item", item.EntityID.String())
		case isPgUniqueViolation(err):
			return domain.NewAlreadyExistsError("workflow item", item.ID.String())
		case isPgForeignKeyViolation(err):
			return domain.NewNotFoundError("syllabus", item.EntityID.String())
		}
		return fmt.Errorf("failed to create workflow item: %w", err)
	}
	return nil
}

// GetPending returns the open item for entityID.
func (r *PgWorkflowItemRepository) GetPending(ctx context.Context, entityID uuid.UUID) (*domain.WorkflowItem, error) {
	query := `SELECT ` + workflowItemColumns + `
		FROM workflow_items
		WHERE entity_id = $1 AND status = 'pending'`

	item, err := scanWorkflowItem(r.db.QueryRow(ctx, query, entityID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("pending workflow item", entityID.String())
		}
		return nil, fmt.Errorf("failed to get pending workflow item: %w", err)
	}
	return item, nil
}

// Resolve writes the resolution of a pending item.
func (r *PgWorkflowItemRepository) Resolve(ctx context.Context, item *domain.WorkflowItem) error {
	if item.ResolvedAt == nil || item.Status == domain.WorkflowItemPending {
		return domain.NewValidationError("status", "workflow item is not resolved")
	}

	query := `
		UPDATE workflow_items SET
			status = $1,
			action_by = $2,
			comment = $3,
			resolved_at = $4
		WHERE id = $5 AND status = 'pending'`

	result, err := r.db.Exec(ctx, query,
		string(item.Status), nullString(item.ActionBy), nullString(item.Comment), item.ResolvedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve workflow item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("pending workflow item", item.ID.String())
	}
	return nil
}

// ListPending returns open items for role.
func (r *PgWorkflowItemRepository) ListPending(ctx context.Context, role domain.Role, limit, offset int) ([]*domain.WorkflowItem, error) {
	applyPaginationDefaults(&limit, &offset)

	query := `SELECT ` + workflowItemColumns + `
		FROM workflow_items
		WHERE role = $1 AND status = 'pending'
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, string(role), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending workflow items: %w", err)
	}
	defer rows.Close()

	return collectWorkflowItems(rows)
}

// ListByEntity returns every item of an entity.
func (r *PgWorkflowItemRepository) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*domain.WorkflowItem, error) {
	query := `SELECT ` + workflowItemColumns + `
		FROM workflow_items
		WHERE entity_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow items: %w", err)
	}
	defer rows.Close()

	return collectWorkflowItems(rows)
}

type workflowItemScanDest struct {
	item     domain.WorkflowItem
	status   string
	role     string
	actionBy *string
	comment  *string
}

func (d *workflowItemScanDest) destinations() []interface{} {
	return []interface{}{
		&d.item.ID, &d.item.EntityID, &d.status, &d.role, &d.actionBy, &d.comment, &d.item.CreatedAt, &d.item.ResolvedAt,
	}
}

func (d *workflowItemScanDest) finalize() *domain.WorkflowItem {
	d.item.Status = domain.WorkflowItemStatus(d.status)
	d.item.Role = domain.Role(d.role)
	d.item.ActionBy = derefString(d.actionBy)
	d.item.Comment = derefString(d.comment)
	return &d.item
}

func scanWorkflowItem(row pgx.Row) (*domain.WorkflowItem, error) {
	var dest workflowItemScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize(), nil
}

func collectWorkflowItems(rows pgx.Rows) ([]*domain.WorkflowItem, error) {
	var items []*domain.WorkflowItem
	for rows.Next() {
		var dest workflowItemScanDest
		if err := rows.Scan(dest.destinations()...); err != nil {
			return nil, fmt.Errorf("failed to scan workflow item: %w", err)
		}
		items = append(items, dest.finalize())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow items: %w", err)
	}
	return items, nil
}
