package temporal

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.temporal.io/api/common/v1"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	workflowpb "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"

	"github.com/helixir/syllabus-review-service/internal/domain"
)

type fakeRun struct {
	client.WorkflowRun
	id     string
	result string
	err    error
}

func (r *fakeRun) GetID() string { return r.id }

func (r *fakeRun) Get(_ context.Context, valuePtr interface{}) error {
	if r.err != nil {
		return r.err
	}
	if valuePtr == nil {
		return nil
	}
	return json.Unmarshal([]byte(r.result), valuePtr)
}

type fakeWorkflowService struct {
	started      client.StartWorkflowOptions
	startedType  interface{}
	startedArgs  []interface{}
	startErr     error
	describe     *workflowservice.DescribeWorkflowExecutionResponse
	describeErr  error
	run          *fakeRun
	canceled     string
	cancelErr    error
	healthErr    error
	closeInvoked bool
}

func (f *fakeWorkflowService) ExecuteWorkflow(_ context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = options
	f.startedType = workflow
	f.startedArgs = args
	return &fakeRun{id: options.ID}, nil
}

func (f *fakeWorkflowService) DescribeWorkflowExecution(_ context.Context, _, _ string) (*workflowservice.DescribeWorkflowExecutionResponse, error) {
	return f.describe, f.describeErr
}

func (f *fakeWorkflowService) GetWorkflow(_ context.Context, _, _ string) client.WorkflowRun {
	return f.run
}

func (f *fakeWorkflowService) CancelWorkflow(_ context.Context, workflowID, _ string) error {
	f.canceled = workflowID
	return f.cancelErr
}

func (f *fakeWorkflowService) CheckHealth(_ context.Context, _ *client.CheckHealthRequest) (*client.CheckHealthResponse, error) {
	return &client.CheckHealthResponse{}, f.healthErr
}

func (f *fakeWorkflowService) Close() { f.closeInvoked = true }

func describeResponse(workflowType string, status enumspb.WorkflowExecutionStatus) *workflowservice.DescribeWorkflowExecutionResponse {
	return &workflowservice.DescribeWorkflowExecutionResponse{
		WorkflowExecutionInfo: &workflowpb.WorkflowExecutionInfo{
			Type:   &commonpb.WorkflowType{Name: workflowType},
			Status: status,
		},
	}
}

func TestJobClient_SubmitJob(t *testing.T) {
	svc := &fakeWorkflowService{}
	jobs := newJobClient(svc, "ai-jobs", zerolog.Nop())

	payload := domain.SummaryPayload{DocumentID: "doc-1"}
	jobID, err := jobs.SubmitJob(context.Background(), domain.JobKindSummary, payload)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(jobID, "summary-"))
	assert.Equal(t, jobID, svc.started.ID)
	assert.Equal(t, "ai-jobs", svc.started.TaskQueue)
	assert.Equal(t, WorkflowSummarize, svc.startedType)
	require.Len(t, svc.startedArgs, 1)
	assert.Equal(t, payload, svc.startedArgs[0])
}

func TestJobClient_SubmitJob_Errors(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		jobs := newJobClient(&fakeWorkflowService{}, "q", zerolog.Nop())
		_, err := jobs.SubmitJob(context.Background(), "TRANSLATE", nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("start failure is wrapped", func(t *testing.T) {
		svc := &fakeWorkflowService{startErr: serviceerror.NewNamespaceNotFound("ai")}
		jobs := newJobClient(svc, "q", zerolog.Nop())
		_, err := jobs.SubmitJob(context.Background(), domain.JobKindCLOCheck, domain.CLOCheckPayload{})
		assert.ErrorIs(t, err, ErrNamespaceNotFound)
	})

	t.Run("closed client", func(t *testing.T) {
		svc := &fakeWorkflowService{}
		jobs := newJobClient(svc, "q", zerolog.Nop())
		jobs.Close()
		assert.True(t, svc.closeInvoked)

		_, err := jobs.SubmitJob(context.Background(), domain.JobKindIngest, domain.IngestPayload{})
		assert.ErrorIs(t, err, ErrClientClosed)
	})
}

func TestJobClient_GetJobStatus(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		svc := &fakeWorkflowService{describe: describeResponse(WorkflowCLOCheck, enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING)}
		job, err := newJobClient(svc, "q", zerolog.Nop()).GetJobStatus(context.Background(), "clo_check-1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusRunning, job.Status)
		assert.Equal(t, domain.JobKindCLOCheck, job.Kind)
		assert.Nil(t, job.Result)
	})

	t.Run("continued as new is still running", func(t *testing.T) {
		svc := &fakeWorkflowService{describe: describeResponse(WorkflowSummarize, enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW)}
		job, err := newJobClient(svc, "q", zerolog.Nop()).GetJobStatus(context.Background(), "summary-1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusRunning, job.Status)
	})

	t.Run("completed loads and normalizes result", func(t *testing.T) {
		svc := &fakeWorkflowService{
			describe: describeResponse(WorkflowSummarize, enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED),
			run:      &fakeRun{result: `"{\"summary\":\"ok\"}"`},
		}
		job, err := newJobClient(svc, "q", zerolog.Nop()).GetJobStatus(context.Background(), "summary-2")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusSucceeded, job.Status)
		assert.Equal(t, 100, job.Progress)
		assert.JSONEq(t, `{"summary":"ok"}`, string(job.Result))
	})

	t.Run("failed carries run error", func(t *testing.T) {
		svc := &fakeWorkflowService{
			describe: describeResponse(WorkflowIngestDocument, enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT),
			run:      &fakeRun{err: errors.New("workflow timeout")},
		}
		job, err := newJobClient(svc, "q", zerolog.Nop()).GetJobStatus(context.Background(), "ingest-3")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, job.Status)
		assert.Equal(t, "workflow timeout", job.Error)
		assert.Equal(t, domain.JobKindIngest, job.Kind)
	})

	t.Run("canceled", func(t *testing.T) {
		svc := &fakeWorkflowService{describe: describeResponse(WorkflowCLOCheck, enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED)}
		job, err := newJobClient(svc, "q", zerolog.Nop()).GetJobStatus(context.Background(), "clo_check-4")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCanceled, job.Status)
	})

	t.Run("unknown workflow is not found", func(t *testing.T) {
		svc := &fakeWorkflowService{describeErr: serviceerror.NewNotFound("no such workflow")}
		_, err := newJobClient(svc, "q", zerolog.Nop()).GetJobStatus(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestJobClient_CancelJob(t *testing.T) {
	svc := &fakeWorkflowService{}
	jobs := newJobClient(svc, "q", zerolog.Nop())

	require.NoError(t, jobs.CancelJob(context.Background(), "summary-9"))
	assert.Equal(t, "summary-9", svc.canceled)

	svc.cancelErr = serviceerror.NewNotFound("gone")
	assert.ErrorIs(t, jobs.CancelJob(context.Background(), "summary-9"), domain.ErrNotFound)
}

func TestJobClient_Health(t *testing.T) {
	svc := &fakeWorkflowService{}
	jobs := newJobClient(svc, "q", zerolog.Nop())
	require.NoError(t, jobs.Health(context.Background()))

	svc.healthErr = errors.New("connection refused")
	assert.ErrorIs(t, jobs.Health(context.Background()), ErrConnectionFailed)
}

func TestJobStatusFor(t *testing.T) {
	assert.Equal(t, domain.JobStatusQueued, jobStatusFor(enumspb.WORKFLOW_EXECUTION_STATUS_UNSPECIFIED))
	assert.Equal(t, domain.JobStatusFailed, jobStatusFor(enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED))
	assert.Equal(t, domain.JobStatusFailed, jobStatusFor(enumspb.WORKFLOW_EXECUTION_STATUS_FAILED))
}
