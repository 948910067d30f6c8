// Package documents manages syllabus documents and their AI jobs.
//
// A document carries persisted pointers to its latest ingestion and summary
// jobs. Before submitting a new job the service hydrates from those pointers
// (and, for summaries, from the result cache) so repeated requests reattach to
// work already done or in progress instead of paying for it twice.
package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helixir/syllabus-review-service/internal/cache"
	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/events"
	"github.com/helixir/syllabus-review-service/internal/observability"
	"github.com/helixir/syllabus-review-service/internal/polling"
	"github.com/helixir/syllabus-review-service/internal/repository"
)

// JobClient submits AI jobs and reads their status.
type JobClient interface {
	SubmitJob(ctx context.Context, kind domain.JobKind, payload interface{}) (string, error)
	GetJobStatus(ctx context.Context, jobID string) (*domain.AIJob, error)
}

// JobAwaiter waits for AI jobs to finish.
type JobAwaiter interface {
	AwaitJob(ctx context.Context, jobID string, p polling.Policy) (*domain.AIJob, error)
}

// UploadInput describes a stored file to attach to a syllabus.
type UploadInput struct {
	FileName    string
	ContentType string
	StorageURL  string
}

// Ticket identifies the job serving a request.
type Ticket struct {
	DocumentID uuid.UUID
	SyllabusID uuid.UUID
	Kind       domain.JobKind
	JobID      string
	// Reused is set when an existing job was reattached instead of submitting.
	Reused bool
	// Ready is set when a finished result is already available.
	Ready bool
}

// Result is the outcome of a document job. Ready is false while the job is
// still queued or running.
type Result struct {
	DocumentID  uuid.UUID
	SyllabusID  uuid.UUID
	Kind        domain.JobKind
	JobID       string
	Status      domain.JobStatus
	Ready       bool
	Cached      bool
	Result      json.RawMessage
	CompletedAt time.Time
	DisplayTime string
}

// Config holds the collaborators of a Service.
type Config struct {
	Tx      repository.Transactor
	Jobs    JobClient
	Awaiter JobAwaiter
	Store   cache.Store
	Emitter *events.Emitter
	// Policies default to polling.SummaryPolicy() and polling.IngestPolicy().
	SummaryPolicy polling.Policy
	IngestPolicy  polling.Policy
	Logger        zerolog.Logger
	Metrics       *observability.Metrics
}

// Service implements document upload, ingestion and summaries.
type Service struct {
	tx            repository.Transactor
	jobs          JobClient
	awaiter       JobAwaiter
	store         cache.Store
	emitter       *events.Emitter
	summaryPolicy polling.Policy
	ingestPolicy  polling.Policy
	now           func() time.Time
	logger        zerolog.Logger
	metrics       *observability.Metrics
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	s := &Service{
		tx:            cfg.Tx,
		jobs:          cfg.Jobs,
		awaiter:       cfg.Awaiter,
		store:         cfg.Store,
		emitter:       cfg.Emitter,
		summaryPolicy: cfg.SummaryPolicy,
		ingestPolicy:  cfg.IngestPolicy,
		now:           time.Now,
		logger:        cfg.Logger.With().Str("component", "document_service").Logger(),
		metrics:       cfg.Metrics,
	}
	if s.summaryPolicy == (polling.Policy{}) {
		s.summaryPolicy = polling.SummaryPolicy()
	}
	if s.ingestPolicy == (polling.Policy{}) {
		s.ingestPolicy = polling.IngestPolicy()
	}
	if s.emitter == nil {
		s.emitter = events.NewEmitter(nil, cfg.Logger)
	}
	return s
}

// Upload records a stored file against a syllabus version authored by actor.
func (s *Service) Upload(ctx context.Context, syllabusID uuid.UUID, actor domain.Actor, in UploadInput) (*domain.Document, error) {
	if err := validateUpload(in); err != nil {
		return nil, err
	}

	var doc *domain.Document
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		v, err := repos.Syllabi.Get(ctx, syllabusID)
		if err != nil {
			return err
		}
		if actor.Role != domain.RoleLecturer || actor.ID != v.CreatedBy {
			return &domain.ForbiddenRoleError{
				Action:   "upload",
				Role:     actor.Role,
				Required: domain.RoleLecturer,
				Reason:   "only the author may attach documents",
			}
		}
		doc = domain.NewDocument(syllabusID, strings.TrimSpace(in.FileName), in.ContentType, in.StorageURL, actor.ID)
		return repos.Documents.Create(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("document_id", doc.ID.String()).
		Str("syllabus_id", syllabusID.String()).
		Str("file_name", doc.FileName).
		Msg("document uploaded")
	return doc, nil
}

func validateUpload(in UploadInput) error {
	if strings.TrimSpace(in.FileName) == "" {
		return domain.NewValidationError("fileName", "file name is required")
	}
	u, err := url.Parse(in.StorageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return domain.NewValidationError("storageUrl", "storage URL must be absolute")
	}
	return nil
}

// Get returns one document.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var doc *domain.Document
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		doc, err = repos.Documents.Get(ctx, id)
		return err
	})
	return doc, err
}

// List returns the documents of a syllabus version, newest first.
func (s *Service) List(ctx context.Context, syllabusID uuid.UUID) ([]*domain.Document, error) {
	var docs []*domain.Document
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Syllabi.Get(ctx, syllabusID); err != nil {
			return err
		}
		var err error
		docs, err = repos.Documents.ListBySyllabus(ctx, syllabusID)
		return err
	})
	return docs, err
}

// RequestIngest reattaches to the document's ingestion job or submits one.
func (s *Service) RequestIngest(ctx context.Context, documentID uuid.UUID) (*Ticket, error) {
	doc, v, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if t, err := s.hydrate(ctx, doc, domain.JobKindIngest); t != nil || err != nil {
		return t, err
	}

	return s.submit(ctx, doc, domain.JobKindIngest, domain.IngestPayload{
		SyllabusID:  doc.SyllabusID.String(),
		DocumentID:  doc.ID.String(),
		SubjectName: v.Content.SubjectName,
		FileName:    doc.FileName,
		ContentType: doc.ContentType,
		FileURL:     doc.StorageURL,
	})
}

// RequestSummary returns the cached summary's ticket, reattaches to a live
// summary job, or submits a new one.
func (s *Service) RequestSummary(ctx context.Context, documentID uuid.UUID, length domain.SummaryLength) (*Ticket, error) {
	if length == "" {
		length = domain.SummaryMedium
	}
	switch length {
	case domain.SummaryShort, domain.SummaryMedium, domain.SummaryLong:
	default:
		return nil, domain.NewValidationError("length", fmt.Sprintf("unknown summary length %q", length))
	}

	doc, _, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.Get(ctx, cache.DocumentKey(doc.SyllabusID.String(), doc.ID.String()))
	switch {
	case err == nil:
		return &Ticket{
			DocumentID: doc.ID, SyllabusID: doc.SyllabusID, Kind: domain.JobKindSummary,
			JobID: entry.JobID, Reused: true, Ready: true,
		}, nil
	case !errors.Is(err, cache.ErrMiss):
		s.logger.Warn().Err(err).Str("document_id", doc.ID.String()).Msg("summary cache lookup failed")
	}

	if t, err := s.hydrate(ctx, doc, domain.JobKindSummary); t != nil || err != nil {
		return t, err
	}

	return s.submit(ctx, doc, domain.JobKindSummary, domain.SummaryPayload{
		SyllabusID: doc.SyllabusID.String(),
		DocumentID: doc.ID.String(),
		Length:     length,
	})
}

// Complete waits for jobID and records its result. Summaries are cached
// under the document key.
func (s *Service) Complete(ctx context.Context, documentID uuid.UUID, kind domain.JobKind, jobID string) (res *Result, err error) {
	ctx, span := observability.StartSpan(ctx, "documents.Complete",
		attribute.String("document_id", documentID.String()),
		attribute.String("job_id", jobID),
		attribute.String("kind", string(kind)))
	defer func() { observability.EndSpan(span, err) }()

	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	policy := s.summaryPolicy
	if kind == domain.JobKindIngest {
		policy = s.ingestPolicy
	}
	job, err := s.awaiter.AwaitJob(ctx, jobID, policy)
	if err != nil {
		return nil, err
	}
	if err := job.BelongsTo(kind, doc.ID.String()); err != nil {
		return nil, err
	}
	return s.finish(ctx, doc, kind, jobID, job), nil
}

// Summary returns the document's summary without waiting: from the cache, or
// from a single status read of the persisted summary job. A result that is
// not Ready reports the job's current status.
func (s *Service) Summary(ctx context.Context, documentID uuid.UUID) (*Result, error) {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.Get(ctx, cache.DocumentKey(doc.SyllabusID.String(), doc.ID.String()))
	if err == nil {
		return resultFromEntry(doc, *entry), nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn().Err(err).Str("document_id", doc.ID.String()).Msg("summary cache lookup failed")
	}

	if doc.AISummaryJobID == "" {
		return nil, domain.NewNotFoundError("summary", doc.ID.String())
	}
	job, err := s.jobs.GetJobStatus(ctx, doc.AISummaryJobID)
	if err != nil {
		return nil, err
	}
	job.Status = domain.NormalizeJobStatus(string(job.Status))
	switch {
	case job.Status == domain.JobStatusSucceeded:
		job.Result = domain.NormalizeJobResult(job.Result)
		return s.finish(ctx, doc, domain.JobKindSummary, doc.AISummaryJobID, job), nil
	case job.Status.IsFailure():
		return nil, &domain.JobFailedError{JobID: doc.AISummaryJobID, Status: job.Status, Message: job.Error}
	default:
		return &Result{
			DocumentID: doc.ID,
			SyllabusID: doc.SyllabusID,
			Kind:       domain.JobKindSummary,
			JobID:      doc.AISummaryJobID,
			Status:     job.Status,
		}, nil
	}
}

func (s *Service) load(ctx context.Context, documentID uuid.UUID) (*domain.Document, *domain.SyllabusVersion, error) {
	var doc *domain.Document
	var v *domain.SyllabusVersion
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		if doc, err = repos.Documents.Get(ctx, documentID); err != nil {
			return err
		}
		v, err = repos.Syllabi.Get(ctx, doc.SyllabusID)
		return err
	})
	return doc, v, err
}

// hydrate reattaches to the persisted job for kind. It returns a nil ticket
// when a new job must be submitted.
func (s *Service) hydrate(ctx context.Context, doc *domain.Document, kind domain.JobKind) (*Ticket, error) {
	jobID := doc.JobIDFor(kind)
	if jobID == "" {
		return nil, nil
	}

	job, err := s.jobs.GetJobStatus(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info().Str("job_id", jobID).Msg("persisted job is gone, resubmitting")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	status := domain.NormalizeJobStatus(string(job.Status))
	if status.IsFailure() {
		return nil, nil
	}

	t := &Ticket{DocumentID: doc.ID, SyllabusID: doc.SyllabusID, Kind: kind, JobID: jobID, Reused: true}
	if status == domain.JobStatusSucceeded {
		job.Result = domain.NormalizeJobResult(job.Result)
		s.finish(ctx, doc, kind, jobID, job)
		t.Ready = true
	}
	return t, nil
}

func (s *Service) submit(ctx context.Context, doc *domain.Document, kind domain.JobKind, payload interface{}) (*Ticket, error) {
	jobID, err := s.jobs.SubmitJob(ctx, kind, payload)
	if err != nil {
		s.metrics.RecordJobSubmitFailed(string(kind))
		return nil, fmt.Errorf("submit %s job: %w", kind, err)
	}
	s.metrics.RecordJobSubmitted(string(kind))

	err = s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Documents.SetJobID(ctx, doc.ID, kind, jobID)
	})
	if err != nil {
		return nil, fmt.Errorf("persist %s job pointer: %w", kind, err)
	}

	logger := observability.WithJobContext(s.logger, jobID, string(kind))
	logger.Info().
		Str("document_id", doc.ID.String()).
		Msg("document job submitted")
	return &Ticket{DocumentID: doc.ID, SyllabusID: doc.SyllabusID, Kind: kind, JobID: jobID}, nil
}

// finish records a succeeded job.
func (s *Service) finish(ctx context.Context, doc *domain.Document, kind domain.JobKind, jobID string, job *domain.AIJob) *Result {
	completed := s.now()
	if !job.UpdatedAt.IsZero() {
		completed = job.UpdatedAt
	}
	res := &Result{
		DocumentID:  doc.ID,
		SyllabusID:  doc.SyllabusID,
		Kind:        kind,
		JobID:       jobID,
		Status:      domain.JobStatusSucceeded,
		Ready:       true,
		Result:      job.Result,
		CompletedAt: completed.UTC(),
		DisplayTime: completed.UTC().Format(cache.DisplayTimeLayout),
	}

	if kind == domain.JobKindSummary {
		entry := cache.NewEntry(cache.DocumentKey(doc.SyllabusID.String(), doc.ID.String()), kind, jobID, job.Result, completed)
		if err := s.store.Put(ctx, entry); err != nil {
			s.logger.Error().Err(err).Str("document_id", doc.ID.String()).Msg("failed to cache summary")
		}
	}
	s.emitter.EmitJobSucceeded(ctx, jobID, kind, doc.ID.String())
	return res
}

func resultFromEntry(doc *domain.Document, e cache.Entry) *Result {
	return &Result{
		DocumentID:  doc.ID,
		SyllabusID:  doc.SyllabusID,
		Kind:        e.Kind,
		JobID:       e.JobID,
		Status:      domain.JobStatusSucceeded,
		Ready:       true,
		Cached:      true,
		Result:      e.Result,
		CompletedAt: e.CompletedAt,
		DisplayTime: e.DisplayTime,
	}
}
