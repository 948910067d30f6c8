package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JobKind identifies the kind of work submitted to the AI service.
type JobKind string

const (
	JobKindIngest   JobKind = "INGEST"
	JobKindSummary  JobKind = "SUMMARY"
	JobKindCLOCheck JobKind = "CLO_CHECK"
)

// IsValid reports whether k is a known job kind.
func (k JobKind) IsValid() bool {
	switch k {
	case JobKindIngest, JobKindSummary, JobKindCLOCheck:
		return true
	default:
		return false
	}
}

// JobStatus is the AI service's view of a job. Values arrive in any case on
// the wire and are normalized to upper case.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCanceled  JobStatus = "CANCELED"
)

// NormalizeJobStatus upper-cases and trims a wire status. The British
// spelling CANCELLED is folded into CANCELED.
func NormalizeJobStatus(s string) JobStatus {
	st := JobStatus(strings.ToUpper(strings.TrimSpace(s)))
	if st == "CANCELLED" {
		return JobStatusCanceled
	}
	return st
}

// IsTerminal returns true if the job will not change status again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// IsFailure returns true for FAILED and CANCELED.
func (s JobStatus) IsFailure() bool {
	return s == JobStatusFailed || s == JobStatusCanceled
}

// IsKnown reports whether s is one of the five documented statuses.
func (s JobStatus) IsKnown() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusSucceeded, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// AIJob is a snapshot of a job as reported by the AI service.
type AIJob struct {
	JobID              string          `json:"jobId"`
	Kind               JobKind         `json:"taskType,omitempty"`
	Status             JobStatus       `json:"status"`
	Progress           int             `json:"progress,omitempty"`
	Result             json.RawMessage `json:"result,omitempty"`
	Error              string          `json:"error,omitempty"`
	AssociatedEntityID string          `json:"associatedEntityId,omitempty"`
	UpdatedAt          time.Time       `json:"updatedAt,omitempty"`
}

// BelongsTo returns a validation error when the job reports a kind other
// than kind or an associated entity other than entityID. Fields the AI
// service left empty are not checked.
func (j *AIJob) BelongsTo(kind JobKind, entityID string) error {
	if j.Kind != "" && j.Kind != kind {
		return NewValidationError("job_id", fmt.Sprintf("job %s is a %s job, not %s", j.JobID, j.Kind, kind))
	}
	if j.AssociatedEntityID != "" && j.AssociatedEntityID != entityID {
		return NewValidationError("job_id", fmt.Sprintf("job %s belongs to %s, not %s", j.JobID, j.AssociatedEntityID, entityID))
	}
	return nil
}

// NormalizeJobResult returns the structured form of a job result. Some AI
// workers return their result as a JSON-encoded string; those layers are
// decoded until a non-string value (or a string that is not itself JSON) is
// reached. Normalizing an already normalized result returns it unchanged.
func NormalizeJobResult(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	out := json.RawMessage(trimmed)
	for out[0] == '"' {
		var s string
		if err := json.Unmarshal(out, &s); err != nil {
			break
		}
		inner := bytes.TrimSpace([]byte(s))
		if len(inner) == 0 || !json.Valid(inner) {
			break
		}
		out = json.RawMessage(inner)
	}
	return out
}
