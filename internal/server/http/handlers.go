package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/helixir/syllabus-review-service/internal/cache"
	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/throttle"
)

const maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// contentRequest is the JSON body for creating a syllabus or editing its content.
type contentRequest struct {
	Content *domain.SyllabusContent `json:"content" validate:"required"`
}

// transitionRequest is the optional JSON body of a workflow action.
type transitionRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=2000"`
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
// An empty body is accepted when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		if allowEmpty {
			return true
		}
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// createSyllabus handles POST /syllabi.
func (s *Server) createSyllabus(w http.ResponseWriter, r *http.Request) {
	actor := callerActor(r.Context())
	var req contentRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	v, err := s.deps.Workflow.CreateSyllabus(r.Context(), actor, *req.Content)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, syllabusToResponse(v, actor))
}

// getSyllabus handles GET /syllabi/{syllabusID}.
func (s *Server) getSyllabus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "syllabusID"), "syllabusID")
	if !ok {
		return
	}
	v, err := s.deps.Workflow.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syllabusToResponse(v, callerActor(r.Context())))
}

// editContent handles PATCH /syllabi/{syllabusID}/content.
func (s *Server) editContent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "syllabusID"), "syllabusID")
	if !ok {
		return
	}
	actor := callerActor(r.Context())
	var req contentRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	v, err := s.deps.Workflow.EditContent(r.Context(), id, actor, *req.Content)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syllabusToResponse(v, actor))
}

// createVersion handles POST /syllabi/{syllabusID}/versions, where the path
// parameter names the root.
func (s *Server) createVersion(w http.ResponseWriter, r *http.Request) {
	rootID, ok := parseUUID(w, chi.URLParam(r, "syllabusID"), "rootID")
	if !ok {
		return
	}
	actor := callerActor(r.Context())
	v, err := s.deps.Workflow.CreateVersion(r.Context(), rootID, actor)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, syllabusToResponse(v, actor))
}

// listVersions handles GET /syllabi/roots/{rootID}/versions.
func (s *Server) listVersions(w http.ResponseWriter, r *http.Request) {
	rootID, ok := parseUUID(w, chi.URLParam(r, "rootID"), "rootID")
	if !ok {
		return
	}
	versions, err := s.deps.Workflow.ListVersions(r.Context(), rootID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	actor := callerActor(r.Context())
	resp := versionsResponse{RootID: rootID.String(), Versions: make([]syllabusResponse, len(versions))}
	for i, v := range versions {
		resp.Versions[i] = syllabusToResponse(v, actor)
	}
	writeJSON(w, http.StatusOK, resp)
}

// getHistory handles GET /syllabi/{syllabusID}/history.
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "syllabusID"), "syllabusID")
	if !ok {
		return
	}
	items, err := s.deps.Workflow.History(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp := historyResponse{SyllabusID: id.String(), Items: make([]workflowItemResponse, len(items))}
	for i, it := range items {
		resp.Items[i] = itemToResponse(it)
	}
	writeJSON(w, http.StatusOK, resp)
}

// transition returns the handler for POST /syllabi/{syllabusID}/<action>.
func (s *Server) transition(action domain.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "syllabusID"), "syllabusID")
		if !ok {
			return
		}
		var req transitionRequest
		if !decodeJSON(w, r, &req, true) {
			return
		}
		actor := callerActor(r.Context())
		v, err := s.deps.Workflow.Transition(r.Context(), id, action, actor, req.Reason)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, syllabusToResponse(v, actor))
	}
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Unexpected errors are logged and reported without detail.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	var (
		stale   *domain.StaleStateError
		timeout *domain.JobTimeoutError
		failed  *domain.JobFailedError
		ext     *domain.ExternalAPIError
	)
	switch {
	case errors.As(err, &stale):
		writeErrorCode(w, http.StatusConflict, "stale_state", stale.Error()+"; please reload")
	case errors.Is(err, domain.ErrStaleState):
		writeErrorCode(w, http.StatusConflict, "stale_state", "state changed; please reload")
	case errors.Is(err, domain.ErrForbiddenRole):
		writeErrorCode(w, http.StatusForbidden, "forbidden_role", err.Error())
	case errors.Is(err, domain.ErrInFlight):
		writeErrorCode(w, http.StatusConflict, "in_flight", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeErrorCode(w, http.StatusBadRequest, "invalid_input", ve.Error())
		} else {
			writeErrorCode(w, http.StatusBadRequest, "invalid_input", "invalid input")
		}
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, cache.ErrMiss):
		writeErrorCode(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeErrorCode(w, http.StatusConflict, "already_exists", "resource already exists")
	case errors.As(err, &failed):
		writeErrorCode(w, http.StatusBadGateway, "job_failed", failed.Error())
	case errors.As(err, &timeout):
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  "processing",
			"jobId":   timeout.JobID,
			"message": "job is still running; check again later",
		})
	case errors.Is(err, domain.ErrNoLinkedOutcomes), errors.Is(err, domain.ErrNoResolvablePLOs):
		writeErrorCode(w, http.StatusUnprocessableEntity, "no_outcomes", err.Error())
	case errors.Is(err, throttle.ErrSuppressed):
		writeErrorCode(w, http.StatusTooManyRequests, "refresh_suppressed", "list refresh suppressed; retry shortly")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable), errors.As(err, &ext):
		s.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("upstream failure")
		writeErrorCode(w, http.StatusBadGateway, "upstream_error", "upstream service error")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// The parse error details are not included to avoid echoing potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// queryBool reports whether the query parameter is "true" or "1".
func queryBool(r *http.Request, name string) bool {
	v := strings.ToLower(r.URL.Query().Get(name))
	return v == "true" || v == "1"
}
