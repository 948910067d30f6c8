package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyllabusStatus_Predicates(t *testing.T) {
	tests := []struct {
		status     SyllabusStatus
		inFlight   bool
		terminal   bool
		newVersion bool
	}{
		{SyllabusStatusDraft, false, false, true},
		{SyllabusStatusPendingReview, true, false, false},
		{SyllabusStatusPendingApproval, true, false, false},
		{SyllabusStatusApproved, false, false, false},
		{SyllabusStatusPublished, false, true, false},
		{SyllabusStatusRejected, false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.True(t, tt.status.IsValid())
			assert.Equal(t, tt.inFlight, tt.status.IsInFlight())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.newVersion, tt.status.AllowsNewVersion())
		})
	}

	assert.False(t, SyllabusStatus("ARCHIVED").IsValid())
}

func TestNewSyllabusVersion(t *testing.T) {
	t.Run("new root uses own id", func(t *testing.T) {
		v := NewSyllabusVersion(uuid.Nil, 1, "lect-1", SyllabusContent{SubjectCode: "CS101"})
		assert.Equal(t, v.ID, v.RootID)
		assert.Equal(t, SyllabusStatusDraft, v.Status)
		assert.Equal(t, 1, v.VersionNo)
		assert.Equal(t, "CS101", v.Content.SubjectCode)
	})

	t.Run("branch keeps root", func(t *testing.T) {
		root := uuid.New()
		v := NewSyllabusVersion(root, 3, "lect-1", SyllabusContent{})
		assert.Equal(t, root, v.RootID)
		assert.NotEqual(t, root, v.ID)
	})
}

func TestCountByStatus(t *testing.T) {
	versions := []*SyllabusVersion{
		{Status: SyllabusStatusDraft},
		{Status: SyllabusStatusDraft},
		{Status: SyllabusStatusPublished},
	}
	counts := CountByStatus(versions)
	assert.Equal(t, 2, counts[SyllabusStatusDraft])
	assert.Equal(t, 1, counts[SyllabusStatusPublished])
	assert.Equal(t, 0, counts[SyllabusStatusRejected])
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input string
		want  Role
		ok    bool
	}{
		{"lecturer", RoleLecturer, true},
		{" HOD ", RoleHOD, true},
		{"aa", RoleAcademicAffairs, true},
		{"ACADEMIC_AFFAIRS", RoleAcademicAffairs, true},
		{"rector", RoleRector, true},
		{"student", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseRole(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWorkflowItem_Resolve(t *testing.T) {
	item := NewWorkflowItem(uuid.New(), RoleHOD)
	require.Equal(t, WorkflowItemPending, item.Status)
	require.Nil(t, item.ResolvedAt)

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	item.Resolve(WorkflowItemRejected, "hod-1", "missing CLOs", first)
	item.Resolve(WorkflowItemApproved, "hod-2", "", first.Add(time.Hour))

	assert.Equal(t, WorkflowItemRejected, item.Status)
	assert.Equal(t, "hod-1", item.ActionBy)
	assert.Equal(t, "missing CLOs", item.Comment)
	require.NotNil(t, item.ResolvedAt)
	assert.True(t, item.ResolvedAt.Equal(first))
}

func TestNormalizeJobStatus(t *testing.T) {
	assert.Equal(t, JobStatusRunning, NormalizeJobStatus(" running "))
	assert.Equal(t, JobStatusCanceled, NormalizeJobStatus("cancelled"))
	assert.Equal(t, JobStatusSucceeded, NormalizeJobStatus("Succeeded"))
	assert.False(t, NormalizeJobStatus("paused").IsKnown())

	assert.True(t, JobStatusFailed.IsTerminal())
	assert.True(t, JobStatusFailed.IsFailure())
	assert.True(t, JobStatusSucceeded.IsTerminal())
	assert.False(t, JobStatusSucceeded.IsFailure())
	assert.False(t, JobStatusQueued.IsTerminal())
}

func TestAIJob_BelongsTo(t *testing.T) {
	tests := []struct {
		name    string
		job     AIJob
		wantErr bool
	}{
		{"unlabelled job", AIJob{JobID: "j"}, false},
		{"matching kind and entity", AIJob{JobID: "j", Kind: JobKindCLOCheck, AssociatedEntityID: "s-1"}, false},
		{"kind only", AIJob{JobID: "j", Kind: JobKindCLOCheck}, false},
		{"other kind", AIJob{JobID: "j", Kind: JobKindSummary}, true},
		{"other entity", AIJob{JobID: "j", AssociatedEntityID: "s-2"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.BelongsTo(JobKindCLOCheck, "s-1")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNormalizeJobResult(t *testing.T) {
	object := `{"overallAssessment":{"score":80,"status":"GOOD","summary":"ok"}}`
	once, err := json.Marshal(object)
	require.NoError(t, err)
	twice, err := json.Marshal(string(once))
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"null", "null", ""},
		{"object", object, object},
		{"string encoded once", string(once), object},
		{"string encoded twice", string(twice), object},
		{"plain string kept", `"hello world"`, `"hello world"`},
		{"array", `[1,2]`, `[1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeJobResult(json.RawMessage(tt.in))
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			assert.JSONEq(t, tt.want, string(got))
			assert.Equal(t, string(got), string(NormalizeJobResult(got)), "normalizing twice must not change the result")
		})
	}
}

func TestDecodeCLOCheckResult(t *testing.T) {
	payload := `{"overallAssessment":{"score":72.5,"status":"ACCEPTABLE","summary":"fine"},` +
		`"mappingAnalysis":{"totalClos":2,"totalPlos":1,"coveredClos":1,"coveredPlos":1,"unmappedClos":["CLO2"],"uncoveredPlos":[]},` +
		`"issues":[{"severity":"HIGH","relatedClo":"CLO2","problem":"unmapped","why":"no PLO"}]}`
	encoded, err := json.Marshal(payload)
	require.NoError(t, err)

	res, err := DecodeCLOCheckResult(encoded)
	require.NoError(t, err)
	assert.Equal(t, AssessmentAcceptable, res.OverallAssessment.Status)
	assert.Equal(t, []string{"CLO2"}, res.MappingAnalysis.UnmappedClos)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "no PLO", res.Issues[0].Cause)

	_, err = DecodeCLOCheckResult(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDocument_JobPointers(t *testing.T) {
	doc := NewDocument(uuid.New(), "outline.pdf", "application/pdf", "s3://bucket/outline.pdf", "lect-1")
	doc.SetJobID(JobKindIngest, "job-i")
	doc.SetJobID(JobKindSummary, "job-s")
	doc.SetJobID(JobKindCLOCheck, "ignored")

	assert.Equal(t, "job-i", doc.JobIDFor(JobKindIngest))
	assert.Equal(t, "job-s", doc.JobIDFor(JobKindSummary))
	assert.Empty(t, doc.JobIDFor(JobKindCLOCheck))
}

func TestEventTypeForAction(t *testing.T) {
	assert.Equal(t, EventTypeSyllabusSubmitted, EventTypeForAction(ActionSubmit))
	assert.Equal(t, EventTypeSyllabusRevised, EventTypeForAction(ActionRevise))
	assert.Empty(t, EventTypeForAction(Action("archive")))

	ev, err := NewEvent(EventTypeSyllabusSubmitted, "agg-1", "syllabus", SyllabusTransitionPayload{Action: ActionSubmit})
	require.NoError(t, err)
	assert.Equal(t, 1, ev.EventVersion)
	assert.NotEmpty(t, ev.EventID)
	assert.Contains(t, string(ev.Payload), `"action":"submit"`)
}

func TestErrors_UnwrapToSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", NewValidationError("content", "required"), ErrInvalidInput},
		{"not found", NewNotFoundError("syllabus", "x"), ErrNotFound},
		{"already exists", NewAlreadyExistsError("syllabus", "x"), ErrAlreadyExists},
		{"stale", &StaleStateError{Entity: "syllabus", Action: ActionSubmit, Actual: SyllabusStatusApproved}, ErrStaleState},
		{"forbidden role", &ForbiddenRoleError{Action: ActionApprove, Role: RoleLecturer, Required: RoleAcademicAffairs}, ErrForbiddenRole},
		{"in flight", &InFlightConflictError{RootID: "r"}, ErrInFlight},
		{"job failed", &JobFailedError{JobID: "j", Status: JobStatusFailed}, ErrJobFailed},
		{"job timeout", &JobTimeoutError{JobID: "j", Elapsed: time.Minute, Attempts: 3}, ErrJobTimeout},
		{"no clos", &NoLinkedOutcomesError{SyllabusID: "s"}, ErrNoLinkedOutcomes},
		{"no plos", &NoResolvablePLOsError{SyllabusID: "s", Requested: 2}, ErrNoResolvablePLOs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestExternalAPIError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewExternalAPIError("ai-service", 503, "unavailable", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "status 503")
}
