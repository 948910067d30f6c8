// Package consistency runs CLO-PLO consistency checks for syllabus versions.
//
// A check gathers the syllabus's learning outcomes from the domain-data
// service, submits them as a CLO_CHECK job and caches the result against the
// syllabus. Outcome fetches are sequential and tolerate partial failure: a
// missing CLO becomes a placeholder, a failed mapping read counts as no
// mappings, and an unresolvable PLO is dropped. Gaps then show up in the
// result's unmapped and uncovered lists instead of failing the whole check.
package consistency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helixir/syllabus-review-service/internal/cache"
	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/domaindata"
	"github.com/helixir/syllabus-review-service/internal/events"
	"github.com/helixir/syllabus-review-service/internal/observability"
	"github.com/helixir/syllabus-review-service/internal/polling"
)

// JobSubmitter submits AI jobs.
type JobSubmitter interface {
	SubmitJob(ctx context.Context, kind domain.JobKind, payload interface{}) (string, error)
}

// JobAwaiter waits for AI jobs to finish.
type JobAwaiter interface {
	AwaitJob(ctx context.Context, jobID string, p polling.Policy) (*domain.AIJob, error)
}

// Outcome is a completed (or cached) consistency check.
type Outcome struct {
	SyllabusID  string
	JobID       string
	Result      *domain.CLOCheckResult
	Raw         json.RawMessage
	CompletedAt time.Time
	DisplayTime string
	Cached      bool
}

// Aggregator compiles, submits and completes CLO checks.
type Aggregator struct {
	outcomes domaindata.Reader
	jobs     JobSubmitter
	awaiter  JobAwaiter
	store    cache.Store
	emitter  *events.Emitter
	policy   polling.Policy
	now      func() time.Time
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// Config holds the collaborators of an Aggregator.
type Config struct {
	Outcomes domaindata.Reader
	Jobs     JobSubmitter
	Awaiter  JobAwaiter
	Store    cache.Store
	Emitter  *events.Emitter
	// Policy defaults to polling.CLOCheckPolicy().
	Policy  polling.Policy
	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// NewAggregator creates an Aggregator.
func NewAggregator(cfg Config) *Aggregator {
	policy := cfg.Policy
	if policy == (polling.Policy{}) {
		policy = polling.CLOCheckPolicy()
	}
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = events.NewEmitter(nil, cfg.Logger)
	}
	return &Aggregator{
		outcomes: cfg.Outcomes,
		jobs:     cfg.Jobs,
		awaiter:  cfg.Awaiter,
		store:    cfg.Store,
		emitter:  emitter,
		policy:   policy,
		now:      time.Now,
		logger:   cfg.Logger.With().Str("component", "consistency_aggregator").Logger(),
		metrics:  cfg.Metrics,
	}
}

// Check compiles, submits and waits for a CLO check of version.
func (a *Aggregator) Check(ctx context.Context, version *domain.SyllabusVersion) (*Outcome, error) {
	jobID, err := a.Submit(ctx, version)
	if err != nil {
		return nil, err
	}
	return a.Complete(ctx, version.ID.String(), jobID)
}

// Submit compiles the check payload and submits a CLO_CHECK job.
func (a *Aggregator) Submit(ctx context.Context, version *domain.SyllabusVersion) (jobID string, err error) {
	ctx, span := observability.StartSpan(ctx, "consistency.Submit", attribute.String("syllabus_id", version.ID.String()))
	defer func() { observability.EndSpan(span, err) }()

	payload, err := a.Compile(ctx, version)
	if err != nil {
		return "", err
	}

	jobID, err = a.jobs.SubmitJob(ctx, domain.JobKindCLOCheck, payload)
	if err != nil {
		a.metrics.RecordJobSubmitFailed(string(domain.JobKindCLOCheck))
		return "", fmt.Errorf("submit CLO check: %w", err)
	}
	a.metrics.RecordJobSubmitted(string(domain.JobKindCLOCheck))

	logger := observability.WithJobContext(a.logger, jobID, string(domain.JobKindCLOCheck))
	logger.Info().
		Str("syllabus_id", payload.SyllabusID).
		Int("clos", len(payload.CLOList)).
		Int("plos", len(payload.PLOList)).
		Msg("CLO check submitted")
	return jobID, nil
}

// Complete waits for jobID and caches its result under the syllabus.
func (a *Aggregator) Complete(ctx context.Context, syllabusID, jobID string) (out *Outcome, err error) {
	ctx, span := observability.StartSpan(ctx, "consistency.Complete",
		attribute.String("syllabus_id", syllabusID),
		attribute.String("job_id", jobID))
	defer func() { observability.EndSpan(span, err) }()

	job, err := a.awaiter.AwaitJob(ctx, jobID, a.policy)
	if err != nil {
		return nil, err
	}
	if err := job.BelongsTo(domain.JobKindCLOCheck, syllabusID); err != nil {
		return nil, err
	}

	result, err := domain.DecodeCLOCheckResult(job.Result)
	if err != nil {
		return nil, err
	}

	entry := cache.NewEntry(cache.SyllabusKey(syllabusID), domain.JobKindCLOCheck, jobID, job.Result, a.now())
	if err := a.store.Put(ctx, entry); err != nil {
		// The result is still returned; the next view will re-check.
		a.logger.Error().Err(err).Str("syllabus_id", syllabusID).Msg("failed to cache CLO check result")
	}
	a.emitter.EmitJobSucceeded(ctx, jobID, domain.JobKindCLOCheck, syllabusID)

	return outcomeFromEntry(syllabusID, entry, result, false), nil
}

// Cached returns the cached outcome for syllabusID or cache.ErrMiss.
func (a *Aggregator) Cached(ctx context.Context, syllabusID string) (*Outcome, error) {
	entry, err := a.store.Get(ctx, cache.SyllabusKey(syllabusID))
	if err != nil {
		return nil, err
	}
	result, err := domain.DecodeCLOCheckResult(entry.Result)
	if err != nil {
		return nil, fmt.Errorf("cached CLO check for %s: %w", syllabusID, err)
	}
	return outcomeFromEntry(syllabusID, *entry, result, true), nil
}

// Clear removes the cached outcome for syllabusID.
func (a *Aggregator) Clear(ctx context.Context, syllabusID string) error {
	return a.store.Delete(ctx, cache.SyllabusKey(syllabusID))
}

// Compile gathers the outcomes of version into a CLO_CHECK payload.
func (a *Aggregator) Compile(ctx context.Context, version *domain.SyllabusVersion) (*domain.CLOCheckPayload, error) {
	syllabusID := version.ID.String()
	cloIDs := version.Content.CLOPairIDs
	if len(cloIDs) == 0 {
		return nil, &domain.NoLinkedOutcomesError{SyllabusID: syllabusID}
	}
	logger := a.logger.With().Str("syllabus_id", syllabusID).Logger()

	cloList := make([]domain.OutcomeItem, 0, len(cloIDs))
	for _, id := range cloIDs {
		clo, err := a.outcomes.GetCLO(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			a.partialFailure(logger, "clo", id, err)
			cloList = append(cloList, domain.PlaceholderCLO(id))
			continue
		}
		cloList = append(cloList, clo.Item())
	}

	ploIDsByCLO := make([][]string, len(cloIDs))
	var ploOrder []string
	seen := make(map[string]struct{})
	for i, id := range cloIDs {
		mappings, err := a.outcomes.GetPLOMappingsForCLO(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			a.partialFailure(logger, "mapping", id, err)
			continue
		}
		for _, m := range mappings {
			ploIDsByCLO[i] = append(ploIDsByCLO[i], m.PLOID)
			if _, ok := seen[m.PLOID]; !ok {
				seen[m.PLOID] = struct{}{}
				ploOrder = append(ploOrder, m.PLOID)
			}
		}
	}

	ploList := make([]domain.OutcomeItem, 0, len(ploOrder))
	ploCodes := make(map[string]string, len(ploOrder))
	for _, id := range ploOrder {
		plo, err := a.outcomes.GetPLO(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			a.partialFailure(logger, "plo", id, err)
			continue
		}
		ploCodes[id] = plo.Code
		ploList = append(ploList, plo.Item())
	}
	if len(ploList) == 0 {
		return nil, &domain.NoResolvablePLOsError{SyllabusID: syllabusID, Requested: len(ploOrder)}
	}

	mapping := make(map[string][]string)
	for i, clo := range cloList {
		var codes []string
		dup := make(map[string]struct{})
		for _, ploID := range ploIDsByCLO[i] {
			code, ok := ploCodes[ploID]
			if !ok {
				continue
			}
			if _, d := dup[code]; d {
				continue
			}
			dup[code] = struct{}{}
			codes = append(codes, code)
		}
		if len(codes) > 0 {
			mapping[clo.ID] = append(mapping[clo.ID], codes...)
		}
	}

	return &domain.CLOCheckPayload{
		SyllabusID: syllabusID,
		CLOList:    cloList,
		PLOList:    ploList,
		Mapping:    mapping,
	}, nil
}

func (a *Aggregator) partialFailure(logger zerolog.Logger, step, id string, err error) {
	a.metrics.RecordAggregationPartialFailure(step)
	ev := logger.Warn().Err(err).Str("step", step).Str("outcome_id", id)
	if errors.Is(err, domain.ErrNotFound) {
		ev = logger.Info().Err(err).Str("step", step).Str("outcome_id", id)
	}
	ev.Msg("outcome unavailable, continuing")
}

func outcomeFromEntry(syllabusID string, e cache.Entry, result *domain.CLOCheckResult, cached bool) *Outcome {
	return &Outcome{
		SyllabusID:  syllabusID,
		JobID:       e.JobID,
		Result:      result,
		Raw:         e.Result,
		CompletedAt: e.CompletedAt,
		DisplayTime: e.DisplayTime,
		Cached:      cached,
	}
}
