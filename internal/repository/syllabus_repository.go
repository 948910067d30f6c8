package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/syllabus-review-service/internal/domain"
)

// SyllabusRepository persists syllabus versions.
type SyllabusRepository interface {
	// Create inserts a new version.
	// Returns domain.ErrAlreadyExists if the ID or (root, version number) is taken.
	// Returns domain.ErrInvalidInput if required fields are missing.
	Create(ctx context.Context, v *domain.SyllabusVersion) error

	// Get retrieves a version by ID.
	// Returns domain.ErrNotFound if no matching version exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.SyllabusVersion, error)

	// GetForUpdate retrieves a version and locks its row until the surrounding
	// transaction ends. Must be called on a transaction-bound repository.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.SyllabusVersion, error)

	// Save writes every mutable column of v back to its row.
	// Returns domain.ErrInFlight if the write would put a second version of the
	// root under review.
	Save(ctx context.Context, v *domain.SyllabusVersion) error

	// Update loads the version with SELECT FOR UPDATE, applies fn and saves the
	// result. When the repository is bound to a pool the whole sequence runs in
	// its own transaction. If fn returns an error nothing is written.
	Update(ctx context.Context, id uuid.UUID, fn func(*domain.SyllabusVersion) error) error

	// LatestByRoot returns the highest-numbered version of a root.
	// Returns domain.ErrNotFound if the root has no versions.
	LatestByRoot(ctx context.Context, rootID uuid.UUID) (*domain.SyllabusVersion, error)

	// InFlightByRoot returns the version of a root currently under review.
	// Returns domain.ErrNotFound if none is.
	InFlightByRoot(ctx context.Context, rootID uuid.UUID) (*domain.SyllabusVersion, error)

	// ListByRoot returns every version of a root ordered by version number.
	ListByRoot(ctx context.Context, rootID uuid.UUID) ([]*domain.SyllabusVersion, error)

	// List retrieves versions matching the filter criteria and the total
	// number of matching rows.
	List(ctx context.Context, filter SyllabusFilter) ([]*domain.SyllabusVersion, int64, error)
}

// SyllabusFilter specifies criteria for listing syllabus versions.
type SyllabusFilter struct {
	// CreatedBy restricts results to one author (optional).
	CreatedBy string

	// Status filters by one or more statuses (optional).
	Status []domain.SyllabusStatus

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks the filter and applies pagination defaults.
func (f *SyllabusFilter) Validate() error {
	for _, s := range f.Status {
		if !s.IsValid() {
			return domain.NewValidationError("status", "unknown syllabus status "+string(s))
		}
	}
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
