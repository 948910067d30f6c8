package httpserver

import (
	"net/http"

	"github.com/helixir/syllabus-review-service/internal/domain"
)

// pendingQueue handles GET /workflow/pending. Refreshes are throttled per
// session; ?force=true bypasses the throttle.
func (s *Server) pendingQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := callerActor(ctx)
	items, out, err := s.deps.Review.PendingQueue(ctx, sessionIDFromContext(ctx), actor, queryBool(r, "force"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pendingToResponse(items, out, actor))
}

// listMySyllabi handles GET /syllabi. Only the caller's own versions are
// listed, so the endpoint is reserved for lecturers.
func (s *Server) listMySyllabi(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := callerActor(ctx)
	if actor.Role != domain.RoleLecturer {
		s.writeDomainError(w, r, &domain.ForbiddenRoleError{
			Action:   "list_own",
			Role:     actor.Role,
			Required: domain.RoleLecturer,
		})
		return
	}
	list, out, err := s.deps.Review.LecturerList(ctx, sessionIDFromContext(ctx), actor, queryBool(r, "force"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lecturerListToResponse(list, out, actor))
}

// endSession handles DELETE /session and drops the caller's list snapshots.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.deps.Review.Forget(sessionIDFromContext(ctx), callerActor(ctx))
	w.WriteHeader(http.StatusNoContent)
}
