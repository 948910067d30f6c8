package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("stores and retrieves request ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-123")
		assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		assert.Equal(t, "", RequestIDFromContext(context.Background()))
	})
}

func TestActorContext(t *testing.T) {
	t.Run("stores and retrieves actor", func(t *testing.T) {
		ctx := WithActor(context.Background(), "lect-1", "LECTURER")

		actorID, role := ActorFromContext(ctx)
		assert.Equal(t, "lect-1", actorID)
		assert.Equal(t, "LECTURER", role)
	})

	t.Run("returns empty strings when not set", func(t *testing.T) {
		actorID, role := ActorFromContext(context.Background())
		assert.Empty(t, actorID)
		assert.Empty(t, role)
	})
}

func TestSessionIDContext(t *testing.T) {
	ctx := WithSessionID(context.Background(), "sess-1")
	assert.Equal(t, "sess-1", SessionIDFromContext(ctx))
	assert.Empty(t, SessionIDFromContext(context.Background()))
}

func TestTraceSpanContext(t *testing.T) {
	ctx := WithTraceSpan(context.Background(), "trace-abc", "span-xyz")

	traceID, spanID := TraceSpanFromContext(ctx)
	assert.Equal(t, "trace-abc", traceID)
	assert.Equal(t, "span-xyz", spanID)
}

func TestContextValueWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), requestIDKey, 42)
	assert.Empty(t, RequestIDFromContext(ctx))
}

func TestRequestContextRoundTrip(t *testing.T) {
	rc := RequestContext{
		RequestID: "req-1",
		SessionID: "sess-1",
		ActorID:   "hod-1",
		ActorRole: "HOD",
		TraceID:   "trace-1",
		SpanID:    "span-1",
	}

	ctx := WithRequestContext(context.Background(), rc)
	assert.Equal(t, rc, RequestContextFromContext(ctx))
}

func TestRequestContextPartial(t *testing.T) {
	ctx := WithRequestContext(context.Background(), RequestContext{RequestID: "only"})

	got := RequestContextFromContext(ctx)
	assert.Equal(t, "only", got.RequestID)
	assert.Empty(t, got.ActorID)
	assert.Empty(t, got.TraceID)
}
