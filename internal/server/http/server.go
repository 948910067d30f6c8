// Package httpserver provides the HTTP JSON API of the syllabus review service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/syllabus-review-service/internal/consistency"
	"github.com/helixir/syllabus-review-service/internal/documents"
	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/review"
	"github.com/helixir/syllabus-review-service/internal/throttle"
)

// readinessTimeout bounds each readiness check.
const readinessTimeout = 2 * time.Second

// WorkflowService creates, edits and transitions syllabus versions.
type WorkflowService interface {
	CreateSyllabus(ctx context.Context, actor domain.Actor, content domain.SyllabusContent) (*domain.SyllabusVersion, error)
	CreateVersion(ctx context.Context, rootID uuid.UUID, actor domain.Actor) (*domain.SyllabusVersion, error)
	EditContent(ctx context.Context, versionID uuid.UUID, actor domain.Actor, content domain.SyllabusContent) (*domain.SyllabusVersion, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.SyllabusVersion, error)
	ListVersions(ctx context.Context, rootID uuid.UUID) ([]*domain.SyllabusVersion, error)
	History(ctx context.Context, versionID uuid.UUID) ([]*domain.WorkflowItem, error)
	Transition(ctx context.Context, versionID uuid.UUID, action domain.Action, actor domain.Actor, reason string) (*domain.SyllabusVersion, error)
}

// ReviewService serves the throttled review lists.
type ReviewService interface {
	PendingQueue(ctx context.Context, sessionID string, actor domain.Actor, force bool) ([]domain.PendingItem, throttle.Outcome, error)
	LecturerList(ctx context.Context, sessionID string, actor domain.Actor, force bool) (review.LecturerList, throttle.Outcome, error)
	Forget(sessionID string, actor domain.Actor)
}

// ConsistencyChecker runs CLO consistency checks.
type ConsistencyChecker interface {
	Submit(ctx context.Context, version *domain.SyllabusVersion) (string, error)
	Complete(ctx context.Context, syllabusID, jobID string) (*consistency.Outcome, error)
	Cached(ctx context.Context, syllabusID string) (*consistency.Outcome, error)
	Clear(ctx context.Context, syllabusID string) error
}

// DocumentService manages documents and their AI jobs.
type DocumentService interface {
	Upload(ctx context.Context, syllabusID uuid.UUID, actor domain.Actor, in documents.UploadInput) (*domain.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	List(ctx context.Context, syllabusID uuid.UUID) ([]*domain.Document, error)
	RequestIngest(ctx context.Context, documentID uuid.UUID) (*documents.Ticket, error)
	RequestSummary(ctx context.Context, documentID uuid.UUID, length domain.SummaryLength) (*documents.Ticket, error)
	Complete(ctx context.Context, documentID uuid.UUID, kind domain.JobKind, jobID string) (*documents.Result, error)
	Summary(ctx context.Context, documentID uuid.UUID) (*documents.Result, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps holds the services behind the API.
type Deps struct {
	Workflow    WorkflowService
	Review      ReviewService
	Consistency ConsistencyChecker
	Documents   DocumentService
	// Auth authenticates API requests. Requests without an actor are rejected.
	Auth func(http.Handler) http.Handler
	// Checks are run by /readyz, keyed by dependency name.
	Checks map[string]HealthCheck
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	deps       Deps
	logger     zerolog.Logger

	// background tracks AI job completions started by requests.
	background sync.WaitGroup
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		deps:   deps,
		logger: logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(s.logger))
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		if s.deps.Auth != nil {
			r.Use(s.deps.Auth)
		}
		r.Use(requireActor)

		r.Post("/syllabi", s.createSyllabus)
		r.Get("/syllabi", s.listMySyllabi)
		r.Get("/syllabi/roots/{rootID}/versions", s.listVersions)

		r.Route("/syllabi/{syllabusID}", func(r chi.Router) {
			r.Get("/", s.getSyllabus)
			r.Patch("/content", s.editContent)
			r.Get("/history", s.getHistory)
			// The path parameter is the root ID here.
			r.Post("/versions", s.createVersion)

			r.Post("/submit", s.transition(domain.ActionSubmit))
			r.Post("/review-approve", s.transition(domain.ActionReviewApprove))
			r.Post("/approve", s.transition(domain.ActionApprove))
			r.Post("/reject", s.transition(domain.ActionReject))
			r.Post("/publish", s.transition(domain.ActionPublish))
			r.Post("/revise", s.transition(domain.ActionRevise))

			r.Post("/clo-check", s.startCLOCheck)
			r.Get("/clo-check", s.getCLOCheck)
			r.Delete("/clo-check", s.clearCLOCheck)

			r.Post("/documents", s.uploadDocument)
			r.Get("/documents", s.listDocuments)
		})

		r.Get("/workflow/pending", s.pendingQueue)

		r.Route("/documents/{documentID}", func(r chi.Router) {
			r.Get("/", s.getDocument)
			r.Post("/ingest", s.startIngest)
			r.Post("/summary", s.startSummary)
			r.Get("/summary", s.getSummary)
		})

		r.Delete("/session", s.endSession)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown stops accepting requests, then waits for background job
// completions until ctx expires. Unfinished jobs keep running upstream and are
// picked up again through their persisted job IDs.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("shutdown deadline reached with AI job completions still running")
	}
	return err
}

// runBackground runs fn detached from the request that started it.
func (s *Server) runBackground(ctx context.Context, name string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := fn(ctx); err != nil {
			s.logger.Warn().Err(err).Str("task", name).Msg("background job completion failed")
		}
	}()
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler runs every configured dependency check.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ready"}
	for name, check := range s.deps.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "not_ready"
			body[name] = "unhealthy"
			s.logger.Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
			continue
		}
		body[name] = "healthy"
	}
	writeJSON(w, status, body)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

// writeErrorCode writes a JSON error response with a machine-readable code.
func writeErrorCode(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message, Code: code})
}
