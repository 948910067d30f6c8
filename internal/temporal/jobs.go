package temporal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"

	"github.com/helixir/syllabus-review-service/internal/aiservice"
	"github.com/helixir/syllabus-review-service/internal/domain"
)

// Workflow type names registered by the AI workers.
const (
	WorkflowIngestDocument = "IngestDocumentWorkflow"
	WorkflowSummarize      = "SummarizeWorkflow"
	WorkflowCLOCheck       = "CLOCheckWorkflow"
)

var workflowTypes = map[domain.JobKind]string{
	domain.JobKindIngest:   WorkflowIngestDocument,
	domain.JobKindSummary:  WorkflowSummarize,
	domain.JobKindCLOCheck: WorkflowCLOCheck,
}

// workflowService is the subset of client.Client used by JobClient.
type workflowService interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error)
	GetWorkflow(ctx context.Context, workflowID, runID string) client.WorkflowRun
	CancelWorkflow(ctx context.Context, workflowID, runID string) error
	CheckHealth(ctx context.Context, request *client.CheckHealthRequest) (*client.CheckHealthResponse, error)
}

var _ workflowService = client.Client(nil)

// JobClient runs AI jobs as workflow executions on the AI task queue. The job
// ID is the workflow ID.
type JobClient struct {
	mu        sync.RWMutex
	client    workflowService
	taskQueue string
	logger    zerolog.Logger
	closed    bool
}

var _ aiservice.JobClient = (*JobClient)(nil)

// NewJobClient creates a JobClient on top of a dialed Temporal client.
func NewJobClient(c client.Client, taskQueue string, logger zerolog.Logger) *JobClient {
	return newJobClient(c, taskQueue, logger)
}

func newJobClient(c workflowService, taskQueue string, logger zerolog.Logger) *JobClient {
	return &JobClient{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger.With().Str("component", "temporal_job_client").Logger(),
	}
}

// Close closes the underlying Temporal client when it supports closing.
func (c *JobClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if closer, ok := c.client.(interface{ Close() }); ok && !c.closed {
		closer.Close()
	}
	c.closed = true
}

func (c *JobClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Health checks the connection to the Temporal server.
func (c *JobClient) Health(ctx context.Context) error {
	if c.isClosed() {
		return &TemporalError{Op: "Health", Kind: ErrClientClosed}
	}
	checkCtx, cancel := context.WithTimeout(ctx, DefaultHealthCheckTimeout)
	defer cancel()

	if _, err := c.client.CheckHealth(checkCtx, &client.CheckHealthRequest{}); err != nil {
		return wrapTemporalError("Health", err, "")
	}
	return nil
}

// SubmitJob starts the workflow for kind with payload as its only argument.
func (c *JobClient) SubmitJob(ctx context.Context, kind domain.JobKind, payload interface{}) (string, error) {
	workflowType, ok := workflowTypes[kind]
	if !ok {
		return "", domain.NewValidationError("kind", fmt.Sprintf("unknown job kind %q", kind))
	}
	if c.isClosed() {
		return "", &TemporalError{Op: "SubmitJob", Kind: ErrClientClosed}
	}

	workflowID := fmt.Sprintf("%s-%s", strings.ToLower(string(kind)), uuid.New())
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: c.taskQueue,
	}, workflowType, payload)
	if err != nil {
		return "", wrapTemporalError("SubmitJob", err, workflowID)
	}

	c.logger.Debug().Str("job_id", run.GetID()).Str("kind", string(kind)).Msg("job workflow started")
	return run.GetID(), nil
}

// GetJobStatus maps the workflow execution status onto the job lifecycle and
// loads the result once the workflow has completed.
func (c *JobClient) GetJobStatus(ctx context.Context, jobID string) (*domain.AIJob, error) {
	if c.isClosed() {
		return nil, &TemporalError{Op: "GetJobStatus", Kind: ErrClientClosed, WorkflowID: jobID}
	}

	resp, err := c.client.DescribeWorkflowExecution(ctx, jobID, "")
	if err != nil {
		werr := wrapTemporalError("GetJobStatus", err, jobID)
		if IsWorkflowNotFound(werr) {
			return nil, domain.NewNotFoundError("job", jobID)
		}
		return nil, werr
	}

	info := resp.GetWorkflowExecutionInfo()
	job := &domain.AIJob{
		JobID:  jobID,
		Kind:   kindForWorkflowType(info.GetType().GetName()),
		Status: jobStatusFor(info.GetStatus()),
	}
	if ct := info.GetCloseTime(); ct != nil {
		job.UpdatedAt = ct.AsTime()
	}

	switch job.Status {
	case domain.JobStatusSucceeded:
		job.Progress = 100
		var raw json.RawMessage
		if err := c.client.GetWorkflow(ctx, jobID, "").Get(ctx, &raw); err != nil {
			return nil, wrapTemporalError("GetJobResult", err, jobID)
		}
		job.Result = domain.NormalizeJobResult(raw)
	case domain.JobStatusFailed:
		if err := c.client.GetWorkflow(ctx, jobID, "").Get(ctx, nil); err != nil {
			job.Error = err.Error()
		}
	}
	return job, nil
}

// CancelJob requests workflow cancellation.
func (c *JobClient) CancelJob(ctx context.Context, jobID string) error {
	if c.isClosed() {
		return &TemporalError{Op: "CancelJob", Kind: ErrClientClosed, WorkflowID: jobID}
	}
	if err := c.client.CancelWorkflow(ctx, jobID, ""); err != nil {
		werr := wrapTemporalError("CancelJob", err, jobID)
		if IsWorkflowNotFound(werr) {
			return domain.NewNotFoundError("job", jobID)
		}
		return werr
	}
	return nil
}

func jobStatusFor(s enumspb.WorkflowExecutionStatus) domain.JobStatus {
	switch s {
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return domain.JobStatusSucceeded
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return domain.JobStatusFailed
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return domain.JobStatusCanceled
	case enumspb.WORKFLOW_EXECUTION_STATUS_UNSPECIFIED:
		return domain.JobStatusQueued
	default:
		return domain.JobStatusRunning
	}
}

func kindForWorkflowType(name string) domain.JobKind {
	for kind, wt := range workflowTypes {
		if wt == name {
			return kind
		}
	}
	return ""
}
