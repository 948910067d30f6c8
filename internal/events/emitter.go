package events

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/helixir/syllabus-review-service/internal/domain"
)

// Aggregate types carried on events.
const (
	AggregateTypeSyllabus = "syllabus_version"
	AggregateTypeAIJob    = "ai_job"
)

// Emitter builds lifecycle events and publishes them after the change that
// produced them has been committed. Publishing is best effort: failures are
// logged and never undo the change.
type Emitter struct {
	publisher Publisher
	logger    zerolog.Logger
}

// NewEmitter creates an Emitter. A nil publisher drops every event.
func NewEmitter(p Publisher, logger zerolog.Logger) *Emitter {
	if p == nil {
		p = NewNopPublisher(logger)
	}
	return &Emitter{publisher: p, logger: logger.With().Str("component", "event_emitter").Logger()}
}

// EmitTransition publishes the event for a committed workflow transition.
func (e *Emitter) EmitTransition(ctx context.Context, p domain.SyllabusTransitionPayload) {
	eventType := domain.EventTypeForAction(p.Action)
	if eventType == "" {
		e.logger.Warn().Str("action", string(p.Action)).Msg("no event type for action")
		return
	}
	e.emit(ctx, eventType, p.SyllabusID.String(), AggregateTypeSyllabus, p)
}

// EmitJobSucceeded publishes ai_job.succeeded.
func (e *Emitter) EmitJobSucceeded(ctx context.Context, jobID string, kind domain.JobKind, entityID string) {
	e.emit(ctx, domain.EventTypeAIJobSucceeded, jobID, AggregateTypeAIJob, domain.AIJobSucceededPayload{
		JobID:    jobID,
		Kind:     kind,
		EntityID: entityID,
	})
}

func (e *Emitter) emit(ctx context.Context, eventType, aggregateID, aggregateType string, payload interface{}) {
	event, err := domain.NewEvent(eventType, aggregateID, aggregateType, payload)
	if err != nil {
		e.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("aggregate_id", aggregateID).
			Msg("failed to publish event")
	}
}
