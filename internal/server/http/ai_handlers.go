package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/syllabus-review-service/internal/documents"
	"github.com/helixir/syllabus-review-service/internal/domain"
)

// uploadRequest is the JSON body for attaching a stored file to a syllabus.
type uploadRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType,omitempty" validate:"max=255"`
	StorageURL  string `json:"storageUrl" validate:"required,url"`
}

// summaryRequest is the optional JSON body of a summary request.
type summaryRequest struct {
	Length string `json:"length,omitempty" validate:"omitempty,oneof=SHORT MEDIUM LONG"`
}

// startCLOCheck handles POST /syllabi/{syllabusID}/clo-check. The job is
// awaited in the background; clients read the result from GET.
func (s *Server) startCLOCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "syllabusID"), "syllabusID")
	if !ok {
		return
	}
	v, err := s.deps.Workflow.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	jobID, err := s.deps.Consistency.Submit(r.Context(), v)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	syllabusID := id.String()
	s.runBackground(r.Context(), "clo_check", func(ctx context.Context) error {
		_, err := s.deps.Consistency.Complete(ctx, syllabusID, jobID)
		return err
	})

	writeJSON(w, http.StatusAccepted, jobAcceptedResponse{
		SyllabusID: syllabusID,
		Kind:       string(domain.JobKindCLOCheck),
		JobID:      jobID,
		Status:     string(domain.JobStatusQueued),
	})
}

// getCLOCheck handles GET /syllabi/{syllabusID}/clo-check. With ?jobId= it
// waits for that job; otherwise it returns the cached result.
func (s *Server) getCLOCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "syllabusID"), "syllabusID")
	if !ok {
		return
	}
	syllabusID := id.String()

	if jobID := r.URL.Query().Get("jobId"); jobID != "" {
		out, err := s.deps.Consistency.Complete(r.Context(), syllabusID, jobID)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, outcomeToResponse(out))
		return
	}

	out, err := s.deps.Consistency.Cached(r.Context(), syllabusID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeToResponse(out))
}

// clearCLOCheck handles DELETE /syllabi/{syllabusID}/clo-check.
func (s *Server) clearCLOCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "syllabusID"), "syllabusID")
	if !ok {
		return
	}
	if err := s.deps.Consistency.Clear(r.Context(), id.String()); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadDocument handles POST /syllabi/{syllabusID}/documents.
func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "syllabusID"), "syllabusID")
	if !ok {
		return
	}
	var req uploadRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	doc, err := s.deps.Documents.Upload(r.Context(), id, callerActor(r.Context()), documents.UploadInput{
		FileName:    req.FileName,
		ContentType: req.ContentType,
		StorageURL:  req.StorageURL,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, documentToResponse(doc))
}

// listDocuments handles GET /syllabi/{syllabusID}/documents.
func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "syllabusID"), "syllabusID")
	if !ok {
		return
	}
	docs, err := s.deps.Documents.List(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp := listDocumentsResponse{Documents: make([]documentResponse, len(docs))}
	for i, d := range docs {
		resp.Documents[i] = documentToResponse(d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// getDocument handles GET /documents/{documentID}.
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "documentID"), "documentID")
	if !ok {
		return
	}
	doc, err := s.deps.Documents.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToResponse(doc))
}

// startIngest handles POST /documents/{documentID}/ingest.
func (s *Server) startIngest(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "documentID"), "documentID")
	if !ok {
		return
	}
	ticket, err := s.deps.Documents.RequestIngest(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.acceptTicket(w, r, ticket)
}

// startSummary handles POST /documents/{documentID}/summary.
func (s *Server) startSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "documentID"), "documentID")
	if !ok {
		return
	}
	var req summaryRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	ticket, err := s.deps.Documents.RequestSummary(r.Context(), id, domain.SummaryLength(req.Length))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.acceptTicket(w, r, ticket)
}

// acceptTicket answers 200 when the result is already available, otherwise
// starts a background completion and answers 202.
func (s *Server) acceptTicket(w http.ResponseWriter, r *http.Request, ticket *documents.Ticket) {
	resp := ticketToResponse(ticket)
	if ticket.Ready {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	docID, kind, jobID := ticket.DocumentID, ticket.Kind, ticket.JobID
	s.runBackground(r.Context(), "document_"+string(kind), func(ctx context.Context) error {
		_, err := s.deps.Documents.Complete(ctx, docID, kind, jobID)
		return err
	})
	writeJSON(w, http.StatusAccepted, resp)
}

// getSummary handles GET /documents/{documentID}/summary. It never blocks on
// the AI service: a running job is reported with 202 and its status.
func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "documentID"), "documentID")
	if !ok {
		return
	}
	res, err := s.deps.Documents.Summary(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if !res.Ready {
		status = http.StatusAccepted
	}
	writeJSON(w, status, summaryToResponse(res))
}
