package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorIDKey   contextKey = "actor_id"
	actorRoleKey contextKey = "actor_role"
	traceIDKey   contextKey = "trace_id"
	spanIDKey    contextKey = "span_id"
	sessionIDKey contextKey = "session_id"
)

func stringValue(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithActor adds the authenticated actor's ID and role to the context.
func WithActor(ctx context.Context, actorID, role string) context.Context {
	ctx = context.WithValue(ctx, actorIDKey, actorID)
	ctx = context.WithValue(ctx, actorRoleKey, role)
	return ctx
}

// ActorFromContext retrieves the actor ID and role from context.
// Returns empty strings if not present.
func ActorFromContext(ctx context.Context) (actorID, role string) {
	return stringValue(ctx, actorIDKey), stringValue(ctx, actorRoleKey)
}

// WithSessionID adds the caller's session identifier to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext retrieves the session ID from context.
func SessionIDFromContext(ctx context.Context) string {
	return stringValue(ctx, sessionIDKey)
}

// WithTraceSpan adds trace and span IDs to the context.
func WithTraceSpan(ctx context.Context, traceID, spanID string) context.Context {
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, spanID)
	return ctx
}

// TraceSpanFromContext retrieves trace and span IDs from context.
// Returns empty strings if not present.
func TraceSpanFromContext(ctx context.Context) (traceID, spanID string) {
	return stringValue(ctx, traceIDKey), stringValue(ctx, spanIDKey)
}

// RequestContext contains the per-request observability data.
type RequestContext struct {
	RequestID string
	SessionID string
	ActorID   string
	ActorRole string
	TraceID   string
	SpanID    string
}

// WithRequestContext adds all non-empty request context to the context.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	if rc.RequestID != "" {
		ctx = WithRequestID(ctx, rc.RequestID)
	}
	if rc.SessionID != "" {
		ctx = WithSessionID(ctx, rc.SessionID)
	}
	if rc.ActorID != "" || rc.ActorRole != "" {
		ctx = WithActor(ctx, rc.ActorID, rc.ActorRole)
	}
	if rc.TraceID != "" || rc.SpanID != "" {
		ctx = WithTraceSpan(ctx, rc.TraceID, rc.SpanID)
	}
	return ctx
}

// RequestContextFromContext extracts all request context from the context.
func RequestContextFromContext(ctx context.Context) RequestContext {
	actorID, role := ActorFromContext(ctx)
	traceID, spanID := TraceSpanFromContext(ctx)

	return RequestContext{
		RequestID: RequestIDFromContext(ctx),
		SessionID: SessionIDFromContext(ctx),
		ActorID:   actorID,
		ActorRole: role,
		TraceID:   traceID,
		SpanID:    spanID,
	}
}
