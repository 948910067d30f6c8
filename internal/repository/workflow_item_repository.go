package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/syllabus-review-service/internal/domain"
)

// WorkflowItemRepository persists reviewer tasks.
type WorkflowItemRepository interface {
	// Create opens a new item. Returns domain.ErrAlreadyExists if the entity
	// already has a pending item.
	Create(ctx context.Context, item *domain.WorkflowItem) error

	// GetPending returns the open item of an entity.
	// Returns domain.ErrNotFound if the entity has none.
	GetPending(ctx context.Context, entityID uuid.UUID) (*domain.WorkflowItem, error)

	// Resolve writes the resolution of a pending item. Resolving an item that
	// is no longer pending returns domain.ErrNotFound.
	Resolve(ctx context.Context, item *domain.WorkflowItem) error

	// ListPending returns open items addressed to role, oldest first.
	ListPending(ctx context.Context, role domain.Role, limit, offset int) ([]*domain.WorkflowItem, error)

	// ListByEntity returns the item history of an entity, oldest first.
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*domain.WorkflowItem, error)
}
