package httpserver

import (
	"encoding/json"
	"time"

	"github.com/helixir/syllabus-review-service/internal/consistency"
	"github.com/helixir/syllabus-review-service/internal/documents"
	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/review"
	"github.com/helixir/syllabus-review-service/internal/throttle"
	"github.com/helixir/syllabus-review-service/internal/workflow"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type syllabusResponse struct {
	ID              string                 `json:"id"`
	RootID          string                 `json:"rootId"`
	VersionNo       int                    `json:"versionNo"`
	Status          string                 `json:"status"`
	Content         domain.SyllabusContent `json:"content"`
	RejectionReason string                 `json:"rejectionReason,omitempty"`
	CreatedBy       string                 `json:"createdBy"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
	SubmittedAt     *time.Time             `json:"submittedAt,omitempty"`
	ReviewedAt      *time.Time             `json:"reviewedAt,omitempty"`
	ApprovedAt      *time.Time             `json:"approvedAt,omitempty"`
	RejectedAt      *time.Time             `json:"rejectedAt,omitempty"`
	PublishedAt     *time.Time             `json:"publishedAt,omitempty"`
	// Actions lists what the caller may do next.
	Actions []string `json:"actions"`
}

type versionsResponse struct {
	RootID   string             `json:"rootId"`
	Versions []syllabusResponse `json:"versions"`
}

type workflowItemResponse struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Role       string     `json:"role"`
	ActionBy   string     `json:"actionBy,omitempty"`
	Comment    string     `json:"comment,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

type historyResponse struct {
	SyllabusID string                 `json:"syllabusId"`
	Items      []workflowItemResponse `json:"items"`
}

type pendingItemResponse struct {
	Item     workflowItemResponse `json:"item"`
	Syllabus syllabusResponse     `json:"syllabus"`
}

type pendingQueueResponse struct {
	Items      []pendingItemResponse `json:"items"`
	Suppressed bool                  `json:"suppressed"`
	FetchedAt  *time.Time            `json:"fetchedAt,omitempty"`
}

type lecturerListResponse struct {
	Syllabi    []syllabusResponse `json:"syllabi"`
	TotalCount int64              `json:"totalCount"`
	Stats      map[string]int     `json:"stats"`
	Suppressed bool               `json:"suppressed"`
	FetchedAt  *time.Time         `json:"fetchedAt,omitempty"`
}

type jobAcceptedResponse struct {
	SyllabusID string `json:"syllabusId"`
	DocumentID string `json:"documentId,omitempty"`
	Kind       string `json:"kind"`
	JobID      string `json:"jobId"`
	Status     string `json:"status"`
	Reused     bool   `json:"reused,omitempty"`
	Message    string `json:"message,omitempty"`
}

type cloCheckResponse struct {
	SyllabusID  string                 `json:"syllabusId"`
	JobID       string                 `json:"jobId"`
	Result      *domain.CLOCheckResult `json:"result"`
	CompletedAt time.Time              `json:"completedAt"`
	DisplayTime string                 `json:"displayTime"`
	Cached      bool                   `json:"cached"`
}

type documentResponse struct {
	ID             string    `json:"id"`
	SyllabusID     string    `json:"syllabusId"`
	FileName       string    `json:"fileName"`
	ContentType    string    `json:"contentType,omitempty"`
	StorageURL     string    `json:"storageUrl"`
	UploadedBy     string    `json:"uploadedBy"`
	IngestionJobID string    `json:"ingestionJobId,omitempty"`
	SummaryJobID   string    `json:"summaryJobId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type listDocumentsResponse struct {
	Documents []documentResponse `json:"documents"`
}

type summaryResponse struct {
	DocumentID  string          `json:"documentId"`
	SyllabusID  string          `json:"syllabusId"`
	JobID       string          `json:"jobId"`
	Status      string          `json:"status"`
	Ready       bool            `json:"ready"`
	Cached      bool            `json:"cached"`
	Result      json.RawMessage `json:"result,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	DisplayTime string          `json:"displayTime,omitempty"`
}

// Converter functions

func syllabusToResponse(v *domain.SyllabusVersion, viewer domain.Actor) syllabusResponse {
	return syllabusResponse{
		ID:              v.ID.String(),
		RootID:          v.RootID.String(),
		VersionNo:       v.VersionNo,
		Status:          string(v.Status),
		Content:         v.Content,
		RejectionReason: v.RejectionReason,
		CreatedBy:       v.CreatedBy,
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
		SubmittedAt:     v.SubmittedAt,
		ReviewedAt:      v.ReviewedAt,
		ApprovedAt:      v.ApprovedAt,
		RejectedAt:      v.RejectedAt,
		PublishedAt:     v.PublishedAt,
		Actions:         actionsFor(v, viewer),
	}
}

func actionsFor(v *domain.SyllabusVersion, viewer domain.Actor) []string {
	out := []string{}
	for _, rule := range workflow.Rules() {
		if rule.From != v.Status || rule.Role != viewer.Role {
			continue
		}
		if rule.OwnerOnly && v.CreatedBy != viewer.ID {
			continue
		}
		out = append(out, string(rule.Action))
	}
	return out
}

func itemToResponse(it *domain.WorkflowItem) workflowItemResponse {
	return workflowItemResponse{
		ID:         it.ID.String(),
		Status:     string(it.Status),
		Role:       string(it.Role),
		ActionBy:   it.ActionBy,
		Comment:    it.Comment,
		CreatedAt:  it.CreatedAt,
		ResolvedAt: it.ResolvedAt,
	}
}

func fetchedAt(out throttle.Outcome) *time.Time {
	if out.FetchedAt.IsZero() {
		return nil
	}
	t := out.FetchedAt
	return &t
}

func pendingToResponse(items []domain.PendingItem, out throttle.Outcome, viewer domain.Actor) pendingQueueResponse {
	resp := pendingQueueResponse{
		Items:      make([]pendingItemResponse, len(items)),
		Suppressed: out.Suppressed,
		FetchedAt:  fetchedAt(out),
	}
	for i, p := range items {
		resp.Items[i] = pendingItemResponse{
			Item:     itemToResponse(p.Item),
			Syllabus: syllabusToResponse(p.Version, viewer),
		}
	}
	return resp
}

func lecturerListToResponse(list review.LecturerList, out throttle.Outcome, viewer domain.Actor) lecturerListResponse {
	resp := lecturerListResponse{
		Syllabi:    make([]syllabusResponse, len(list.Versions)),
		TotalCount: list.Total,
		Stats:      make(map[string]int, len(domain.AllSyllabusStatuses)),
		Suppressed: out.Suppressed,
		FetchedAt:  fetchedAt(out),
	}
	for i, v := range list.Versions {
		resp.Syllabi[i] = syllabusToResponse(v, viewer)
	}
	for _, st := range domain.AllSyllabusStatuses {
		resp.Stats[string(st)] = list.Stats[st]
	}
	return resp
}

func outcomeToResponse(o *consistency.Outcome) cloCheckResponse {
	return cloCheckResponse{
		SyllabusID:  o.SyllabusID,
		JobID:       o.JobID,
		Result:      o.Result,
		CompletedAt: o.CompletedAt,
		DisplayTime: o.DisplayTime,
		Cached:      o.Cached,
	}
}

func documentToResponse(d *domain.Document) documentResponse {
	return documentResponse{
		ID:             d.ID.String(),
		SyllabusID:     d.SyllabusID.String(),
		FileName:       d.FileName,
		ContentType:    d.ContentType,
		StorageURL:     d.StorageURL,
		UploadedBy:     d.UploadedBy,
		IngestionJobID: d.AIIngestionJobID,
		SummaryJobID:   d.AISummaryJobID,
		CreatedAt:      d.CreatedAt,
	}
}

func ticketToResponse(t *documents.Ticket) jobAcceptedResponse {
	resp := jobAcceptedResponse{
		SyllabusID: t.SyllabusID.String(),
		DocumentID: t.DocumentID.String(),
		Kind:       string(t.Kind),
		JobID:      t.JobID,
		Status:     string(domain.JobStatusQueued),
		Reused:     t.Reused,
	}
	if t.Ready {
		resp.Status = string(domain.JobStatusSucceeded)
	}
	return resp
}

func summaryToResponse(r *documents.Result) summaryResponse {
	resp := summaryResponse{
		DocumentID:  r.DocumentID.String(),
		SyllabusID:  r.SyllabusID.String(),
		JobID:       r.JobID,
		Status:      string(r.Status),
		Ready:       r.Ready,
		Cached:      r.Cached,
		Result:      r.Result,
		DisplayTime: r.DisplayTime,
	}
	if !r.CompletedAt.IsZero() {
		t := r.CompletedAt
		resp.CompletedAt = &t
	}
	return resp
}
