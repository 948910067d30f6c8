package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/observability"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	m := observability.NewMetrics("test_events")
	p := newKafkaPublisher(w, zerolog.Nop(), m)

	event, err := domain.NewEvent(domain.EventTypeSyllabusSubmitted, "s-1", AggregateTypeSyllabus, map[string]string{"a": "b"})
	require.NoError(t, err)

	ctx := observability.WithRequestID(context.Background(), "req-1")
	require.NoError(t, p.Publish(ctx, event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "s-1", string(msg.Key))
	assert.Equal(t, domain.EventTypeSyllabusSubmitted, header(msg, "event_type"))
	assert.Equal(t, event.EventID, header(msg, "event_id"))
	assert.Equal(t, "req-1", header(msg, "correlation_id"))

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.JSONEq(t, `{"a":"b"}`, string(decoded.Payload))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsPublished.WithLabelValues(domain.EventTypeSyllabusSubmitted)))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteFailure(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker unavailable")}
	m := observability.NewMetrics("test_events_fail")
	p := newKafkaPublisher(w, zerolog.Nop(), m)

	event, err := domain.NewEvent(domain.EventTypeSyllabusRejected, "s-2", AggregateTypeSyllabus, nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsFailed.WithLabelValues(domain.EventTypeSyllabusRejected)))
}

type capturePublisher struct {
	events []*domain.Event
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, e *domain.Event) error {
	c.events = append(c.events, e)
	return c.err
}

func (c *capturePublisher) Close() error { return nil }

func TestEmitter(t *testing.T) {
	pub := &capturePublisher{}
	e := NewEmitter(pub, zerolog.Nop())
	id := uuid.New()

	e.EmitTransition(context.Background(), domain.SyllabusTransitionPayload{
		SyllabusID: id,
		RootID:     id,
		VersionNo:  1,
		Action:     domain.ActionReject,
		From:       domain.SyllabusStatusPendingReview,
		To:         domain.SyllabusStatusRejected,
		ActorID:    "hod-1",
		ActorRole:  domain.RoleHOD,
		Reason:     "missing assessment weights",
	})
	e.EmitJobSucceeded(context.Background(), "job-1", domain.JobKindCLOCheck, id.String())
	e.EmitTransition(context.Background(), domain.SyllabusTransitionPayload{Action: "archive"})

	require.Len(t, pub.events, 2)
	assert.Equal(t, domain.EventTypeSyllabusRejected, pub.events[0].EventType)
	assert.Equal(t, id.String(), pub.events[0].AggregateID)
	assert.Equal(t, AggregateTypeSyllabus, pub.events[0].AggregateType)

	var payload domain.SyllabusTransitionPayload
	require.NoError(t, json.Unmarshal(pub.events[0].Payload, &payload))
	assert.Equal(t, "missing assessment weights", payload.Reason)

	assert.Equal(t, domain.EventTypeAIJobSucceeded, pub.events[1].EventType)
	assert.Equal(t, AggregateTypeAIJob, pub.events[1].AggregateType)
}

func TestEmitter_PublishFailureIsSwallowed(t *testing.T) {
	pub := &capturePublisher{err: errors.New("down")}
	e := NewEmitter(pub, zerolog.Nop())

	assert.NotPanics(t, func() {
		e.EmitJobSucceeded(context.Background(), "job-2", domain.JobKindSummary, "doc-1")
	})
	assert.Len(t, pub.events, 1)
}

func TestNewEmitter_NilPublisher(t *testing.T) {
	e := NewEmitter(nil, zerolog.Nop())
	assert.NotPanics(t, func() {
		e.EmitJobSucceeded(context.Background(), "job-3", domain.JobKindIngest, "doc-2")
	})
}
