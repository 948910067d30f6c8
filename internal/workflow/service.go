package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/events"
	"github.com/helixir/syllabus-review-service/internal/observability"
	"github.com/helixir/syllabus-review-service/internal/repository"
)

// actionEdit labels content edits in errors and metrics. It is not an edge of
// the review graph.
const actionEdit domain.Action = "edit"

// Service applies workflow transitions and version management.
type Service struct {
	tx      repository.Transactor
	emitter *events.Emitter
	now     func() time.Time
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// Option customizes a Service.
type Option func(*Service)

// WithEmitter publishes transition events after commit.
func WithEmitter(e *events.Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithMetrics records transition outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNow overrides the clock used for lifecycle stamps.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service over tx.
func NewService(tx repository.Transactor, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		tx:     tx,
		now:    time.Now,
		logger: logger.With().Str("component", "workflow_service").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.emitter == nil {
		s.emitter = events.NewEmitter(nil, logger)
	}
	return s
}

// Transition applies action to the version on behalf of actor. The version
// row is locked for the duration of the transaction. Reject requires a
// non-blank reason.
func (s *Service) Transition(ctx context.Context, versionID uuid.UUID, action domain.Action, actor domain.Actor, reason string) (v *domain.SyllabusVersion, err error) {
	ctx, span := observability.StartSpan(ctx, "workflow.Transition",
		attribute.String("syllabus_id", versionID.String()),
		attribute.String("action", string(action)),
		attribute.String("role", string(actor.Role)))
	defer func() {
		s.metrics.RecordTransition(string(action), outcomeLabel(err))
		observability.EndSpan(span, err)
	}()

	reason = strings.TrimSpace(reason)
	var from domain.SyllabusStatus

	err = s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		cur, err := repos.Syllabi.GetForUpdate(ctx, versionID)
		if err != nil {
			return err
		}

		rule, err := Lookup(action, cur.Status, actor.Role)
		if err != nil {
			var stale *domain.StaleStateError
			if errors.As(err, &stale) {
				stale.ID = cur.ID.String()
			}
			return err
		}
		if rule.OwnerOnly && actor.ID != cur.CreatedBy {
			return &domain.ForbiddenRoleError{
				Action:   action,
				Role:     actor.Role,
				Required: rule.Role,
				Reason:   "only the author may " + string(action) + " this syllabus",
			}
		}
		if action == domain.ActionReject && reason == "" {
			return domain.NewValidationError("reason", "a rejection reason is required")
		}
		if action == domain.ActionSubmit {
			if err := checkNoOtherInFlight(ctx, repos.Syllabi, cur); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		from = cur.Status
		cur.Status = rule.To
		if rule.Stamp != nil {
			if stamp := rule.Stamp(cur); *stamp == nil {
				*stamp = &now
			}
		}
		if action == domain.ActionReject {
			cur.RejectionReason = reason
		}
		if err := repos.Syllabi.Save(ctx, cur); err != nil {
			return err
		}

		if rule.ResolveItem != "" {
			if err := s.resolveItem(ctx, repos.WorkflowItems, cur.ID, rule.ResolveItem, actor.ID, reason, now); err != nil {
				return err
			}
		}
		if rule.OpenItemFor != "" {
			item := domain.NewWorkflowItem(cur.ID, rule.OpenItemFor)
			item.CreatedAt = now
			if err := repos.WorkflowItems.Create(ctx, item); err != nil {
				return err
			}
		}

		v = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger := observability.WithSyllabusContext(s.logger, v.ID.String(), v.RootID.String())
	logger.Info().
		Str("action", string(action)).
		Str("from", string(from)).
		Str("to", string(v.Status)).
		Str("actor_id", actor.ID).
		Msg("syllabus transitioned")

	s.emitter.EmitTransition(ctx, domain.SyllabusTransitionPayload{
		SyllabusID: v.ID,
		RootID:     v.RootID,
		VersionNo:  v.VersionNo,
		Action:     action,
		From:       from,
		To:         v.Status,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Reason:     reason,
	})
	return v, nil
}

func checkNoOtherInFlight(ctx context.Context, syllabi repository.SyllabusRepository, cur *domain.SyllabusVersion) error {
	other, err := syllabi.InFlightByRoot(ctx, cur.RootID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != cur.ID:
		return &domain.InFlightConflictError{RootID: cur.RootID.String(), VersionID: other.ID.String()}
	}
	return nil
}

func (s *Service) resolveItem(ctx context.Context, items repository.WorkflowItemRepository, entityID uuid.UUID,
	status domain.WorkflowItemStatus, actorID, comment string, at time.Time) error {
	item, err := items.GetPending(ctx, entityID)
	if errors.Is(err, domain.ErrNotFound) {
		// Versions moved into review before items were tracked have none.
		s.logger.Warn().Str("syllabus_id", entityID.String()).Msg("no pending workflow item to resolve")
		return nil
	}
	if err != nil {
		return err
	}
	item.Resolve(status, actorID, comment, at)
	return items.Resolve(ctx, item)
}

// CreateSyllabus starts a new root at version 1.
func (s *Service) CreateSyllabus(ctx context.Context, actor domain.Actor, content domain.SyllabusContent) (*domain.SyllabusVersion, error) {
	if actor.Role != domain.RoleLecturer {
		return nil, &domain.ForbiddenRoleError{Action: "create", Role: actor.Role, Required: domain.RoleLecturer}
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}

	v := domain.NewSyllabusVersion(uuid.Nil, 1, actor.ID, content)
	v.CreatedAt = s.now().UTC()
	v.UpdatedAt = v.CreatedAt
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Syllabi.Create(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	logger := observability.WithSyllabusContext(s.logger, v.ID.String(), v.RootID.String())
	logger.Info().
		Str("actor_id", actor.ID).Msg("syllabus created")
	return v, nil
}

// CreateVersion branches a new draft from the latest version of rootID. The
// latest version must be DRAFT or REJECTED. Content is copied from it.
func (s *Service) CreateVersion(ctx context.Context, rootID uuid.UUID, actor domain.Actor) (*domain.SyllabusVersion, error) {
	if actor.Role != domain.RoleLecturer {
		return nil, &domain.ForbiddenRoleError{Action: "create_version", Role: actor.Role, Required: domain.RoleLecturer}
	}

	var v *domain.SyllabusVersion
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		latest, err := repos.Syllabi.LatestByRoot(ctx, rootID)
		if err != nil {
			return err
		}
		if !latest.Status.AllowsNewVersion() {
			return &domain.StaleStateError{
				Entity: "syllabus",
				ID:     latest.ID.String(),
				Action: "create_version",
				Actual: latest.Status,
			}
		}
		if latest.CreatedBy != actor.ID {
			return &domain.ForbiddenRoleError{
				Action: "create_version",
				Role:   actor.Role,
				Reason: "only the author may branch this syllabus",
			}
		}

		v = domain.NewSyllabusVersion(rootID, latest.VersionNo+1, actor.ID, latest.Content)
		v.CreatedAt = s.now().UTC()
		v.UpdatedAt = v.CreatedAt
		return repos.Syllabi.Create(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	logger := observability.WithSyllabusContext(s.logger, v.ID.String(), v.RootID.String())
	logger.Info().
		Int("version_no", v.VersionNo).Msg("syllabus version created")
	return v, nil
}

// EditContent replaces the content of a draft version owned by actor.
func (s *Service) EditContent(ctx context.Context, versionID uuid.UUID, actor domain.Actor, content domain.SyllabusContent) (*domain.SyllabusVersion, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}

	var v *domain.SyllabusVersion
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Syllabi.Update(ctx, versionID, func(cur *domain.SyllabusVersion) error {
			if cur.Status != domain.SyllabusStatusDraft {
				return &domain.StaleStateError{
					Entity:   "syllabus",
					ID:       cur.ID.String(),
					Action:   actionEdit,
					Expected: domain.SyllabusStatusDraft,
					Actual:   cur.Status,
				}
			}
			if actor.Role != domain.RoleLecturer || actor.ID != cur.CreatedBy {
				return &domain.ForbiddenRoleError{
					Action:   actionEdit,
					Role:     actor.Role,
					Required: domain.RoleLecturer,
					Reason:   "only the author may edit this syllabus",
				}
			}
			cur.Content = content
			v = cur
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Get returns one version.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.SyllabusVersion, error) {
	var v *domain.SyllabusVersion
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		v, err = repos.Syllabi.Get(ctx, id)
		return err
	})
	return v, err
}

// ListVersions returns the version history of rootID, oldest first.
func (s *Service) ListVersions(ctx context.Context, rootID uuid.UUID) ([]*domain.SyllabusVersion, error) {
	var out []*domain.SyllabusVersion
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		out, err = repos.Syllabi.ListByRoot(ctx, rootID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.NewNotFoundError("syllabus_root", rootID.String())
	}
	return out, nil
}

// History returns the workflow items recorded for a version, oldest first.
func (s *Service) History(ctx context.Context, versionID uuid.UUID) ([]*domain.WorkflowItem, error) {
	var out []*domain.WorkflowItem
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		out, err = repos.WorkflowItems.ListByEntity(ctx, versionID)
		return err
	})
	return out, err
}

func validateContent(c domain.SyllabusContent) error {
	if strings.TrimSpace(c.SubjectCode) == "" {
		return domain.NewValidationError("subjectCode", "subject code is required")
	}
	if strings.TrimSpace(c.SubjectName) == "" {
		return domain.NewValidationError("subjectName", "subject name is required")
	}
	if c.Credits < 0 {
		return domain.NewValidationError("credits", "credits must not be negative")
	}
	var total float64
	for _, w := range c.AssessmentWeights {
		if w.Weight < 0 {
			return domain.NewValidationError("assessmentWeights", "weights must not be negative")
		}
		total += w.Weight
	}
	if total > 100 {
		return domain.NewValidationError("assessmentWeights", "weights must not exceed 100")
	}
	return nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrStaleState):
		return "stale_state"
	case errors.Is(err, domain.ErrForbiddenRole):
		return "forbidden_role"
	case errors.Is(err, domain.ErrInFlight):
		return "in_flight"
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNotFound):
		return "invalid"
	default:
		return "error"
	}
}
