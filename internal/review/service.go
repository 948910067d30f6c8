// Package review serves the reviewer queues and the lecturer's syllabus list.
// Both lists are refreshed through per-session throttlers so dashboards that
// poll aggressively do not hammer the database.
package review

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/observability"
	"github.com/helixir/syllabus-review-service/internal/repository"
	"github.com/helixir/syllabus-review-service/internal/throttle"
)

// Default minimum gaps between list refreshes.
const (
	DefaultQueueGap        = 8 * time.Second
	DefaultLecturerListGap = time.Second
)

// queueLimit bounds the pending items loaded per refresh.
const queueLimit = 200

// LecturerList is the lecturer's own versions with per-status counts.
type LecturerList struct {
	Versions []*domain.SyllabusVersion
	Total    int64
	Stats    domain.StatusCounts
}

// Config configures a Service.
type Config struct {
	Tx              repository.Transactor
	QueueGap        time.Duration
	LecturerListGap time.Duration
	Logger          zerolog.Logger
	Metrics         *observability.Metrics
}

// Service serves throttled review lists.
type Service struct {
	tx     repository.Transactor
	queues *throttle.Registry[[]domain.PendingItem]
	lists  *throttle.Registry[LecturerList]
	logger zerolog.Logger
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	if cfg.QueueGap <= 0 {
		cfg.QueueGap = DefaultQueueGap
	}
	if cfg.LecturerListGap <= 0 {
		cfg.LecturerListGap = DefaultLecturerListGap
	}
	return &Service{
		tx:     cfg.Tx,
		queues: throttle.NewRegistry[[]domain.PendingItem]("review_queue", cfg.QueueGap, cfg.Metrics),
		lists:  throttle.NewRegistry[LecturerList]("lecturer_list", cfg.LecturerListGap, cfg.Metrics),
		logger: cfg.Logger.With().Str("component", "review_service").Logger(),
	}
}

func sessionKey(sessionID string, actor domain.Actor) string {
	if sessionID == "" {
		sessionID = actor.ID
	}
	return sessionID + "|" + string(actor.Role)
}

// PendingQueue returns the open workflow items for the actor's reviewer role,
// each joined with its syllabus version.
func (s *Service) PendingQueue(ctx context.Context, sessionID string, actor domain.Actor, force bool) ([]domain.PendingItem, throttle.Outcome, error) {
	if actor.Role != domain.RoleHOD && actor.Role != domain.RoleAcademicAffairs {
		return nil, throttle.Outcome{}, &domain.ForbiddenRoleError{
			Action: "list_pending",
			Role:   actor.Role,
			Reason: "only reviewers have a pending queue",
		}
	}

	return s.queues.For(sessionKey(sessionID, actor)).Do(ctx, force, func(ctx context.Context) ([]domain.PendingItem, error) {
		return s.loadQueue(ctx, actor.Role)
	})
}

func (s *Service) loadQueue(ctx context.Context, role domain.Role) ([]domain.PendingItem, error) {
	var out []domain.PendingItem
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		items, err := repos.WorkflowItems.ListPending(ctx, role, queueLimit, 0)
		if err != nil {
			return err
		}
		out = make([]domain.PendingItem, 0, len(items))
		for _, item := range items {
			v, err := repos.Syllabi.Get(ctx, item.EntityID)
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn().Str("item_id", item.ID.String()).Msg("pending item refers to a missing syllabus")
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, domain.PendingItem{Item: item, Version: v})
		}
		return nil
	})
	return out, err
}

// LecturerList returns the actor's own versions and counts by status.
func (s *Service) LecturerList(ctx context.Context, sessionID string, actor domain.Actor, force bool) (LecturerList, throttle.Outcome, error) {
	if actor.Role != domain.RoleLecturer {
		return LecturerList{}, throttle.Outcome{}, &domain.ForbiddenRoleError{
			Action:   "list_mine",
			Role:     actor.Role,
			Required: domain.RoleLecturer,
		}
	}

	return s.lists.For(sessionKey(sessionID, actor)).Do(ctx, force, func(ctx context.Context) (LecturerList, error) {
		var list LecturerList
		err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
			versions, total, err := repos.Syllabi.List(ctx, repository.SyllabusFilter{CreatedBy: actor.ID})
			if err != nil {
				return err
			}
			list = LecturerList{Versions: versions, Total: total, Stats: domain.CountByStatus(versions)}
			return nil
		})
		return list, err
	})
}

// Forget drops the throttle state of every list for the session.
func (s *Service) Forget(sessionID string, actor domain.Actor) {
	key := sessionKey(sessionID, actor)
	s.queues.Forget(key)
	s.lists.Forget(key)
	s.logger.Debug().Str("session_id", sessionID).Msg("session throttle state dropped")
}

// Sessions returns the number of sessions holding throttle state.
func (s *Service) Sessions() int {
	return s.queues.Len() + s.lists.Len()
}
