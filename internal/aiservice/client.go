// Package aiservice is the HTTP Job Client for the external AI service.
package aiservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/httpclient"
)

// JobClient submits, inspects and cancels AI jobs. Implementations must be
// safe for concurrent use.
type JobClient interface {
	// SubmitJob starts a job of the given kind and returns its ID.
	SubmitJob(ctx context.Context, kind domain.JobKind, payload interface{}) (string, error)

	// GetJobStatus returns a normalized snapshot of the job.
	GetJobStatus(ctx context.Context, jobID string) (*domain.AIJob, error)

	// CancelJob asks the AI service to stop the job.
	CancelJob(ctx context.Context, jobID string) error
}

// submitPaths maps each job kind to its submission endpoint.
var submitPaths = map[domain.JobKind]string{
	domain.JobKindCLOCheck: "/clo-check",
	domain.JobKindSummary:  "/summary",
	domain.JobKindIngest:   "/documents/ingest",
}

// Client is the HTTP JobClient.
type Client struct {
	http   *httpclient.Client
	logger zerolog.Logger
}

var _ JobClient = (*Client)(nil)

// NewClient creates an AI service client on top of an httpclient.Client
// configured with the service base URL.
func NewClient(hc *httpclient.Client, logger zerolog.Logger) *Client {
	return &Client{
		http:   hc,
		logger: logger.With().Str("component", "ai_service_client").Logger(),
	}
}

type submitResponse struct {
	JobID  string `json:"jobId"`
	JobID2 string `json:"job_id"`
}

// SubmitJob posts payload to the endpoint for kind.
func (c *Client) SubmitJob(ctx context.Context, kind domain.JobKind, payload interface{}) (string, error) {
	path, ok := submitPaths[kind]
	if !ok {
		return "", domain.NewValidationError("kind", fmt.Sprintf("unknown job kind %q", kind))
	}

	var resp submitResponse
	if err := c.http.DoJSON(ctx, httpclient.Request{
		Method:   http.MethodPost,
		Path:     path,
		Body:     payload,
		Endpoint: "submit_" + strings.ToLower(string(kind)),
	}, &resp); err != nil {
		return "", fmt.Errorf("submit %s job: %w", kind, err)
	}

	jobID := resp.JobID
	if jobID == "" {
		jobID = resp.JobID2
	}
	if jobID == "" {
		return "", domain.NewExternalAPIError(c.http.Name(), http.StatusAccepted, "submit response has no jobId", nil)
	}

	c.logger.Debug().Str("job_id", jobID).Str("kind", string(kind)).Msg("job submitted")
	return jobID, nil
}

// jobResponse is the wire shape of GET /jobs/{id}.
type jobResponse struct {
	JobID     string                 `json:"jobId"`
	TaskType  string                 `json:"taskType"`
	Status    string                 `json:"status"`
	Progress  int                    `json:"progress"`
	Meta      map[string]interface{} `json:"meta"`
	Result    json.RawMessage        `json:"result"`
	Error     string                 `json:"error"`
	UpdatedAt *time.Time             `json:"updatedAt"`
}

// envelope accepts both {data: {...}} and bare job bodies.
type envelope struct {
	jobResponse
	Data *jobResponse `json:"data"`
}

// GetJobStatus reads the job once. Status reads are never retried so a poll
// loop sees every transport failure.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*domain.AIJob, error) {
	if jobID == "" {
		return nil, domain.NewValidationError("job_id", "job ID is required")
	}

	var env envelope
	if err := c.http.DoJSON(ctx, httpclient.Request{
		Method:   http.MethodGet,
		Path:     "/jobs/" + url.PathEscape(jobID),
		Endpoint: "job_status",
		NoRetry:  true,
	}, &env); err != nil {
		if httpclient.StatusCode(err) == http.StatusNotFound {
			return nil, domain.NewNotFoundError("job", jobID)
		}
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}

	body := env.jobResponse
	if env.Data != nil {
		body = *env.Data
	}
	return toDomainJob(jobID, body), nil
}

// CancelJob requests cancellation.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	if err := c.http.DoJSON(ctx, httpclient.Request{
		Method:   http.MethodPost,
		Path:     "/jobs/" + url.PathEscape(jobID) + "/cancel",
		Endpoint: "job_cancel",
	}, nil); err != nil {
		return fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	return nil
}

func toDomainJob(requestedID string, r jobResponse) *domain.AIJob {
	job := &domain.AIJob{
		JobID:    r.JobID,
		Kind:     domain.JobKind(strings.ToUpper(r.TaskType)),
		Status:   domain.NormalizeJobStatus(r.Status),
		Progress: r.Progress,
		Result:   domain.NormalizeJobResult(r.Result),
		Error:    r.Error,
	}
	if job.JobID == "" {
		job.JobID = requestedID
	}
	if r.UpdatedAt != nil {
		job.UpdatedAt = *r.UpdatedAt
	}
	for _, key := range []string{"documentId", "syllabusId", "syllabus_id"} {
		if v, ok := r.Meta[key].(string); ok && v != "" {
			job.AssociatedEntityID = v
			break
		}
	}
	return job
}
