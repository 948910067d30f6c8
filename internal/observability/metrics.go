package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the syllabus review service.
// Metrics are organized by subsystem: workflow transitions, AI jobs and
// polling, the result cache, list throttling, CLO aggregation, events and
// upstream HTTP clients. All collectors are registered via promauto with the
// default Prometheus registry.
//
// Record methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	// TransitionsTotal counts workflow transitions by action and outcome
	// (ok, stale_state, forbidden_role, in_flight, invalid, error).
	TransitionsTotal *prometheus.CounterVec

	// JobsSubmitted counts AI jobs submitted, labeled by kind.
	JobsSubmitted *prometheus.CounterVec

	// JobSubmitFailures counts failed AI job submissions, labeled by kind.
	JobSubmitFailures *prometheus.CounterVec

	// PollAttempts counts status reads issued by the polling orchestrator.
	PollAttempts prometheus.Counter

	// PollOutcomes counts finished poll loops by outcome (succeeded, failed, timeout, error).
	PollOutcomes *prometheus.CounterVec

	// PollDuration observes the wall time of poll loops in seconds.
	PollDuration prometheus.Histogram

	// PollsJoined counts callers that attached to an already running poll loop.
	PollsJoined prometheus.Counter

	// CacheHits counts result cache hits, labeled by entry kind.
	CacheHits *prometheus.CounterVec

	// CacheMisses counts result cache misses, labeled by entry kind.
	CacheMisses *prometheus.CounterVec

	// ThrottleFetches counts list fetches that were allowed through, labeled by list.
	ThrottleFetches *prometheus.CounterVec

	// ThrottleSuppressed counts list refreshes that were suppressed, labeled by list.
	ThrottleSuppressed *prometheus.CounterVec

	// AggregationPartialFailures counts tolerated domain-data failures by step (clo, mapping, plo).
	AggregationPartialFailures *prometheus.CounterVec

	// EventsPublished counts lifecycle events published, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts lifecycle events that could not be published.
	EventsFailed *prometheus.CounterVec

	// UpstreamRequests counts HTTP requests to upstream services by client and endpoint.
	UpstreamRequests *prometheus.CounterVec

	// UpstreamRequestsFailed counts failed upstream requests by client, endpoint and error type.
	UpstreamRequestsFailed *prometheus.CounterVec

	// UpstreamRequestDuration observes upstream request duration in seconds.
	UpstreamRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Workflow
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Total number of syllabus workflow transitions by action and outcome",
		}, []string{"action", "outcome"}),

		// Jobs
		JobsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_jobs_submitted_total",
			Help:      "Total number of AI jobs submitted by kind",
		}, []string{"kind"}),
		JobSubmitFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_job_submit_failures_total",
			Help:      "Total number of failed AI job submissions by kind",
		}, []string{"kind"}),
		PollAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_job_poll_attempts_total",
			Help:      "Total number of AI job status reads",
		}),
		PollOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_job_poll_outcomes_total",
			Help:      "Total number of finished poll loops by outcome",
		}, []string{"outcome"}),
		PollDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_job_poll_duration_seconds",
			Help:      "Duration of AI job poll loops in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		PollsJoined: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_job_polls_joined_total",
			Help:      "Total number of callers that joined an in-flight poll loop",
		}),

		// Cache
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_hits_total",
			Help:      "Total number of result cache hits by kind",
		}, []string{"kind"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_misses_total",
			Help:      "Total number of result cache misses by kind",
		}, []string{"kind"}),

		// Throttle
		ThrottleFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_refresh_fetches_total",
			Help:      "Total number of list refreshes that reached the backend",
		}, []string{"list"}),
		ThrottleSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_refresh_suppressed_total",
			Help:      "Total number of list refreshes suppressed by the throttler",
		}, []string{"list"}),

		// Aggregation
		AggregationPartialFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clo_aggregation_partial_failures_total",
			Help:      "Total number of tolerated domain-data failures during CLO aggregation by step",
		}, []string{"step"}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of lifecycle events published by type",
		}, []string{"event_type"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of lifecycle events that failed to publish by type",
		}, []string{"event_type"}),

		// Upstream clients
		UpstreamRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of requests to upstream services",
		}, []string{"client", "endpoint"}),
		UpstreamRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_failed_total",
			Help:      "Total number of failed requests to upstream services",
		}, []string{"client", "endpoint", "error_type"}),
		UpstreamRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of requests to upstream services in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"client", "endpoint"}),
	}
}

// RecordTransition records a workflow transition attempt.
func (m *Metrics) RecordTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordJobSubmitted records a submitted AI job.
func (m *Metrics) RecordJobSubmitted(kind string) {
	if m == nil {
		return
	}
	m.JobsSubmitted.WithLabelValues(kind).Inc()
}

// RecordJobSubmitFailed records a failed AI job submission.
func (m *Metrics) RecordJobSubmitFailed(kind string) {
	if m == nil {
		return
	}
	m.JobSubmitFailures.WithLabelValues(kind).Inc()
}

// RecordPollAttempt records a single status read.
func (m *Metrics) RecordPollAttempt() {
	if m == nil {
		return
	}
	m.PollAttempts.Inc()
}

// RecordPollOutcome records the end of a poll loop.
func (m *Metrics) RecordPollOutcome(outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.PollOutcomes.WithLabelValues(outcome).Inc()
	m.PollDuration.Observe(durationSeconds)
}

// RecordPollJoined records a caller attaching to a running poll loop.
func (m *Metrics) RecordPollJoined() {
	if m == nil {
		return
	}
	m.PollsJoined.Inc()
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(kind).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(kind).Inc()
}

// RecordThrottle records whether a list refresh was fetched or suppressed.
func (m *Metrics) RecordThrottle(list string, suppressed bool) {
	if m == nil {
		return
	}
	if suppressed {
		m.ThrottleSuppressed.WithLabelValues(list).Inc()
		return
	}
	m.ThrottleFetches.WithLabelValues(list).Inc()
}

// RecordAggregationPartialFailure records a tolerated domain-data failure.
func (m *Metrics) RecordAggregationPartialFailure(step string) {
	if m == nil {
		return
	}
	m.AggregationPartialFailures.WithLabelValues(step).Inc()
}

// RecordEventPublished records a published lifecycle event.
func (m *Metrics) RecordEventPublished(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records a lifecycle event that could not be published.
func (m *Metrics) RecordEventFailed(eventType string) {
	if m == nil {
		return
	}
	m.EventsFailed.WithLabelValues(eventType).Inc()
}

// RecordUpstreamRequest records a request to an upstream service.
func (m *Metrics) RecordUpstreamRequest(client, endpoint string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(client, endpoint).Inc()
	m.UpstreamRequestDuration.WithLabelValues(client, endpoint).Observe(durationSeconds)
}

// RecordUpstreamRequestFailed records a failed request to an upstream service.
func (m *Metrics) RecordUpstreamRequestFailed(client, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.UpstreamRequestsFailed.WithLabelValues(client, endpoint, errorType).Inc()
}
