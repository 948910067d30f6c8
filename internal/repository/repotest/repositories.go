package repotest

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/repository"
)

type syllabusRepo struct{ s *Store }

var _ repository.SyllabusRepository = (*syllabusRepo)(nil)

// checkInFlight must be called with s.mu held.
func (r *syllabusRepo) checkInFlight(v *domain.SyllabusVersion) error {
	if !v.Status.IsInFlight() {
		return nil
	}
	for _, other := range r.s.syllabi {
		if other.RootID == v.RootID && other.ID != v.ID && other.Status.IsInFlight() {
			return &domain.InFlightConflictError{RootID: v.RootID.String(), VersionID: other.ID.String()}
		}
	}
	return nil
}

func (r *syllabusRepo) Create(_ context.Context, v *domain.SyllabusVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("Syllabi.Create")

	if _, ok := r.s.syllabi[v.ID]; ok {
		return domain.NewAlreadyExistsError("syllabus_version", v.ID.String())
	}
	for _, other := range r.s.syllabi {
		if other.RootID == v.RootID && other.VersionNo == v.VersionNo {
			return domain.NewAlreadyExistsError("syllabus_version", v.RootID.String())
		}
	}
	if err := r.checkInFlight(v); err != nil {
		return err
	}
	r.s.syllabi[v.ID] = cloneVersion(*v)
	return nil
}

func (r *syllabusRepo) Get(_ context.Context, id uuid.UUID) (*domain.SyllabusVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("Syllabi.Get")

	v, ok := r.s.syllabi[id]
	if !ok {
		return nil, domain.NewNotFoundError("syllabus_version", id.String())
	}
	c := cloneVersion(v)
	return &c, nil
}

func (r *syllabusRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.SyllabusVersion, error) {
	return r.Get(ctx, id)
}

func (r *syllabusRepo) Save(_ context.Context, v *domain.SyllabusVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("Syllabi.Save")

	if _, ok := r.s.syllabi[v.ID]; !ok {
		return domain.NewNotFoundError("syllabus_version", v.ID.String())
	}
	if err := r.checkInFlight(v); err != nil {
		return err
	}
	v.UpdatedAt = time.Now().UTC()
	r.s.syllabi[v.ID] = cloneVersion(*v)
	return nil
}

func (r *syllabusRepo) Update(ctx context.Context, id uuid.UUID, fn func(*domain.SyllabusVersion) error) error {
	v, err := r.GetForUpdate(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(v); err != nil {
		return err
	}
	return r.Save(ctx, v)
}

func (r *syllabusRepo) byRoot(rootID uuid.UUID) []*domain.SyllabusVersion {
	var out []*domain.SyllabusVersion
	for _, v := range r.s.syllabi {
		if v.RootID == rootID {
			c := cloneVersion(v)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNo < out[j].VersionNo })
	return out
}

func (r *syllabusRepo) LatestByRoot(_ context.Context, rootID uuid.UUID) (*domain.SyllabusVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("Syllabi.LatestByRoot")

	versions := r.byRoot(rootID)
	if len(versions) == 0 {
		return nil, domain.NewNotFoundError("syllabus_root", rootID.String())
	}
	return versions[len(versions)-1], nil
}

func (r *syllabusRepo) InFlightByRoot(_ context.Context, rootID uuid.UUID) (*domain.SyllabusVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("Syllabi.InFlightByRoot")

	for _, v := range r.byRoot(rootID) {
		if v.Status.IsInFlight() {
			return v, nil
		}
	}
	return nil, domain.NewNotFoundError("in_flight_version", rootID.String())
}

func (r *syllabusRepo) ListByRoot(_ context.Context, rootID uuid.UUID) ([]*domain.SyllabusVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("Syllabi.ListByRoot")
	return r.byRoot(rootID), nil
}

func (r *syllabusRepo) List(_ context.Context, filter repository.SyllabusFilter) ([]*domain.SyllabusVersion, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("Syllabi.List")

	statuses := make(map[domain.SyllabusStatus]bool, len(filter.Status))
	for _, st := range filter.Status {
		statuses[st] = true
	}
	var out []*domain.SyllabusVersion
	for _, v := range r.s.syllabi {
		if filter.CreatedBy != "" && v.CreatedBy != filter.CreatedBy {
			continue
		}
		if len(statuses) > 0 && !statuses[v.Status] {
			continue
		}
		c := cloneVersion(v)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })

	total := int64(len(out))
	if filter.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

type itemRepo struct{ s *Store }

var _ repository.WorkflowItemRepository = (*itemRepo)(nil)

func (r *itemRepo) Create(_ context.Context, item *domain.WorkflowItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("WorkflowItems.Create")

	if _, ok := r.s.syllabi[item.EntityID]; !ok {
		return domain.NewNotFoundError("syllabus_version", item.EntityID.String())
	}
	if item.Status == domain.WorkflowItemPending {
		for _, other := range r.s.items {
			if other.EntityID == item.EntityID && other.Status == domain.WorkflowItemPending {
				return domain.NewAlreadyExistsError("workflow_item", item.EntityID.String())
			}
		}
	}
	r.s.items[item.ID] = *item
	return nil
}

func (r *itemRepo) GetPending(_ context.Context, entityID uuid.UUID) (*domain.WorkflowItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("WorkflowItems.GetPending")

	for _, it := range r.s.items {
		if it.EntityID == entityID && it.Status == domain.WorkflowItemPending {
			c := it
			return &c, nil
		}
	}
	return nil, domain.NewNotFoundError("workflow_item", entityID.String())
}

func (r *itemRepo) Resolve(_ context.Context, item *domain.WorkflowItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("WorkflowItems.Resolve")

	if item.ResolvedAt == nil || item.Status == domain.WorkflowItemPending {
		return domain.NewValidationError("status", "item must be resolved")
	}
	cur, ok := r.s.items[item.ID]
	if !ok || cur.Status != domain.WorkflowItemPending {
		return domain.NewNotFoundError("workflow_item", item.ID.String())
	}
	r.s.items[item.ID] = *item
	return nil
}

func (r *itemRepo) ListPending(_ context.Context, role domain.Role, limit, offset int) ([]*domain.WorkflowItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("WorkflowItems.ListPending")

	var out []*domain.WorkflowItem
	for _, it := range r.s.items {
		if it.Status == domain.WorkflowItemPending && it.Role == role {
			c := it
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *itemRepo) ListByEntity(_ context.Context, entityID uuid.UUID) ([]*domain.WorkflowItem, error) {
	var out []*domain.WorkflowItem
	for _, it := range r.s.Items(entityID) {
		c := it
		out = append(out, &c)
	}
	return out, nil
}

type documentRepo struct{ s *Store }

var _ repository.DocumentRepository = (*documentRepo)(nil)

func (r *documentRepo) Create(_ context.Context, doc *domain.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("Documents.Create")

	if _, ok := r.s.syllabi[doc.SyllabusID]; !ok {
		return domain.NewNotFoundError("syllabus_version", doc.SyllabusID.String())
	}
	if _, ok := r.s.documents[doc.ID]; ok {
		return domain.NewAlreadyExistsError("document", doc.ID.String())
	}
	r.s.documents[doc.ID] = *doc
	return nil
}

func (r *documentRepo) Get(_ context.Context, id uuid.UUID) (*domain.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("Documents.Get")

	d, ok := r.s.documents[id]
	if !ok {
		return nil, domain.NewNotFoundError("document", id.String())
	}
	return &d, nil
}

func (r *documentRepo) ListBySyllabus(_ context.Context, syllabusID uuid.UUID) ([]*domain.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("Documents.ListBySyllabus")

	var out []*domain.Document
	for _, d := range r.s.documents {
		if d.SyllabusID == syllabusID {
			c := d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *documentRepo) SetJobID(_ context.Context, id uuid.UUID, kind domain.JobKind, jobID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.count("Documents.SetJobID")

	if kind != domain.JobKindIngest && kind != domain.JobKindSummary {
		return domain.NewValidationError("kind", "no job pointer for "+string(kind))
	}
	d, ok := r.s.documents[id]
	if !ok {
		return domain.NewNotFoundError("document", id.String())
	}
	d.SetJobID(kind, jobID)
	d.UpdatedAt = time.Now().UTC()
	r.s.documents[id] = d
	return nil
}
