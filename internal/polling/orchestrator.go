// Package polling waits for AI jobs to finish by reading their status with a
// growing interval.
package polling

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/observability"
)

// StatusReader reads the current status of a job.
type StatusReader interface {
	GetJobStatus(ctx context.Context, jobID string) (*domain.AIJob, error)
}

// Orchestrator runs at most one poll loop per job ID. Concurrent callers for
// the same job share the loop and its result.
type Orchestrator struct {
	jobs    StatusReader
	clock   Clock
	group   singleflight.Group
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithMetrics records poll attempts and outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator creates an Orchestrator reading statuses from jobs.
func NewOrchestrator(jobs StatusReader, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		jobs:   jobs,
		clock:  realClock{},
		logger: logger.With().Str("component", "poll_orchestrator").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AwaitJob blocks until the job succeeds, fails, or the policy gives up.
//
// On success the returned job carries the normalized result. FAILED and
// CANCELED jobs yield *domain.JobFailedError; giving up yields
// *domain.JobTimeoutError and leaves the job running. Errors from the status
// read abort the loop and are returned unchanged.
//
// The loop does not stop when ctx is canceled: ctx only bounds how long this
// caller waits, so another caller (or a later one) can still collect the result.
func (o *Orchestrator) AwaitJob(ctx context.Context, jobID string, p Policy) (*domain.AIJob, error) {
	if jobID == "" {
		return nil, domain.NewValidationError("job_id", "is required")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	loopCtx := context.WithoutCancel(ctx)
	ch := o.group.DoChan(jobID, func() (interface{}, error) {
		return o.poll(loopCtx, jobID, p)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			o.metrics.RecordPollJoined()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.AIJob), nil
	}
}

func (o *Orchestrator) poll(ctx context.Context, jobID string, p Policy) (job *domain.AIJob, err error) {
	ctx, span := observability.StartSpan(ctx, "polling.AwaitJob", attribute.String("job_id", jobID))
	logger := observability.WithJobContext(o.logger, jobID, "")
	start := o.clock.Now()
	outcome := "error"
	defer func() {
		o.metrics.RecordPollOutcome(outcome, o.clock.Now().Sub(start).Seconds())
		observability.EndSpan(span, err)
	}()

	interval := p.InitialInterval
	attempts := 0
	for {
		attempts++
		o.metrics.RecordPollAttempt()

		job, err = o.jobs.GetJobStatus(ctx, jobID)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempts).Msg("job status read failed")
			return nil, err
		}
		if job == nil {
			job = &domain.AIJob{JobID: jobID}
		}
		job.Status = domain.NormalizeJobStatus(string(job.Status))

		switch {
		case job.Status == domain.JobStatusSucceeded:
			job.Result = domain.NormalizeJobResult(job.Result)
			outcome = "succeeded"
			logger.Debug().Int("attempts", attempts).Msg("job succeeded")
			return job, nil
		case job.Status.IsFailure():
			outcome = "failed"
			return nil, &domain.JobFailedError{JobID: jobID, Status: job.Status, Message: job.Error}
		case !job.Status.IsKnown():
			logger.Warn().Str("status", string(job.Status)).Msg("unknown job status, continuing to poll")
		}

		elapsed := o.clock.Now().Sub(start)
		if elapsed >= p.MaxWait || p.attemptsExhausted(attempts) {
			outcome = "timeout"
			logger.Info().Dur("elapsed", elapsed).Int("attempts", attempts).Msg("stopped polling, job still running")
			return nil, &domain.JobTimeoutError{JobID: jobID, Elapsed: elapsed, Attempts: attempts}
		}

		if err = o.clock.Sleep(ctx, interval); err != nil {
			return nil, err
		}
		interval = p.next(interval)
	}
}
