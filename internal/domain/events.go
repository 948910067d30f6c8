package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for published lifecycle events.
const (
	EventTypeSyllabusSubmitted      = "syllabus.submitted"
	EventTypeSyllabusReviewApproved = "syllabus.review_approved"
	EventTypeSyllabusApproved       = "syllabus.approved"
	EventTypeSyllabusRejected       = "syllabus.rejected"
	EventTypeSyllabusPublished      = "syllabus.published"
	EventTypeSyllabusRevised        = "syllabus.revised"
	EventTypeAIJobSucceeded         = "ai_job.succeeded"
)

// EventTypeForAction maps a workflow action to the event it emits.
func EventTypeForAction(a Action) string {
	switch a {
	case ActionSubmit:
		return EventTypeSyllabusSubmitted
	case ActionReviewApprove:
		return EventTypeSyllabusReviewApproved
	case ActionApprove:
		return EventTypeSyllabusApproved
	case ActionReject:
		return EventTypeSyllabusRejected
	case ActionPublish:
		return EventTypeSyllabusPublished
	case ActionRevise:
		return EventTypeSyllabusRevised
	default:
		return ""
	}
}

// Event is a lifecycle notification published after a committed change.
type Event struct {
	EventID       string          `json:"event_id"`
	EventVersion  int             `json:"event_version"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewEvent creates an event with the payload JSON-serialized.
func NewEvent(eventType, aggregateID, aggregateType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:       uuid.New().String(),
		EventVersion:  1,
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Payload:       payloadBytes,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// SyllabusTransitionPayload is the payload for syllabus.* events.
type SyllabusTransitionPayload struct {
	SyllabusID uuid.UUID      `json:"syllabus_id"`
	RootID     uuid.UUID      `json:"root_id"`
	VersionNo  int            `json:"version_no"`
	Action     Action         `json:"action"`
	From       SyllabusStatus `json:"from"`
	To         SyllabusStatus `json:"to"`
	ActorID    string         `json:"actor_id"`
	ActorRole  Role           `json:"actor_role"`
	Reason     string         `json:"reason,omitempty"`
	NewVersion *uuid.UUID     `json:"new_version_id,omitempty"`
}

// AIJobSucceededPayload is the payload for ai_job.succeeded events.
type AIJobSucceededPayload struct {
	JobID    string  `json:"job_id"`
	Kind     JobKind `json:"kind"`
	EntityID string  `json:"entity_id"`
}
