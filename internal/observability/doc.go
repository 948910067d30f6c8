// Package observability provides logging, metrics, and tracing support for
// the syllabus review service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithSyllabusContext(logger, versionID, rootID)
//	logger.Info().Str("action", "submit").Msg("transition applied")
//
// Request-scoped fields (request ID, actor, trace) travel in the context and
// are attached with FromContext.
//
// # Metrics
//
//	metrics := observability.NewMetrics("syllabus_review")
//	metrics.RecordTransition("submit", "ok")
//	metrics.RecordPollOutcome("succeeded", elapsed.Seconds())
//
// # Tracing
//
// InitTracing installs an OTLP/HTTP tracer provider; StartSpan and EndSpan wrap
// the service tracer.
//
// # Standard Fields
//
//   - request_id: HTTP request identifier
//   - actor_id, actor_role: authenticated caller
//   - syllabus_id, root_id: syllabus version and its lineage
//   - job_id, job_kind: AI job handle and kind
//   - trace_id, span_id: distributed trace identifiers
package observability
