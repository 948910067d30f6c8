// Package httpclient provides the rate-limited, retrying JSON client shared
// by the AI service and domain-data integrations.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/observability"
)

// maxErrorBody bounds how much of an error response is kept in the error message.
const maxErrorBody = 4 << 10

// Config configures a Client.
type Config struct {
	// Name labels the upstream in errors and metrics (e.g. "ai_service").
	Name string

	// BaseURL is prefixed to every request path.
	BaseURL string

	// Timeout is the per-attempt request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the maximum number of retry attempts for retryable requests.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional credential sent in APIKeyHeader.
	APIKey string

	// APIKeyHeader is the header carrying APIKey (e.g. "X-API-Key").
	APIKeyHeader string
}

// Client wraps http.Client with rate limiting, retries and JSON helpers.
// It is safe for concurrent use.
type Client struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      Config
	metrics     *observability.Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithMetrics records upstream request counters and latencies.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New creates a client. Zero config values get defaults.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Helixir-SyllabusReviewService/1.0"
	}
	if cfg.Name == "" {
		cfg.Name = "upstream"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		client:      &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the upstream label.
func (c *Client) Name() string { return c.config.Name }

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.config.BaseURL }

// Do executes req with rate limiting, retrying on network errors, 429 (with
// Retry-After support) and 5xx responses.
//
// Requests with a body are only retried when req.GetBody is set.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.setHeaders(req)

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt < c.config.MaxRetries {
				if err := c.waitForRetry(req.Context(), c.config.RetryDelay); err != nil {
					return nil, err
				}
				if err := resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}
			return nil, lastErr
		}

		if shouldRetry(resp.StatusCode) && attempt < c.config.MaxRetries {
			retryDelay := c.getRetryDelay(resp)
			drain(resp)

			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
			if err := c.waitForRetry(req.Context(), retryDelay); err != nil {
				return nil, err
			}
			if err := resetRequestBody(req); err != nil {
				return nil, fmt.Errorf("cannot retry request: %w", err)
			}
			continue
		}

		// Success, non-retryable status, or retries exhausted: the caller
		// inspects the status code.
		return resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("unexpected error: no response received")
}

// DoOnce executes req exactly once after waiting for the rate limiter.
func (c *Client) DoOnce(req *http.Request) (*http.Response, error) {
	c.setHeaders(req)
	if err := c.rateLimiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}
	return c.client.Do(req)
}

// Request describes one JSON call.
type Request struct {
	Method string
	// Path is appended to the base URL.
	Path string
	// Body is JSON-encoded when non-nil.
	Body interface{}
	// Endpoint labels the call in metrics.
	Endpoint string
	// NoRetry sends the request exactly once.
	NoRetry bool
}

// DoJSON sends r and decodes a 2xx response body into out (when out is
// non-nil). Non-2xx responses become a *domain.ExternalAPIError carrying the
// status code and a truncated body.
func (c *Client) DoJSON(ctx context.Context, r Request, out interface{}) error {
	start := time.Now()
	err := c.doJSON(ctx, r, out)
	c.metrics.RecordUpstreamRequest(c.config.Name, r.Endpoint, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordUpstreamRequestFailed(c.config.Name, r.Endpoint, errorType(err))
	}
	return err
}

func (c *Client) doJSON(ctx context.Context, r Request, out interface{}) error {
	var body io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", r.Endpoint, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, c.config.BaseURL+r.Path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", r.Endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var resp *http.Response
	if r.NoRetry {
		resp, err = c.DoOnce(req)
	} else {
		resp, err = c.Do(req)
	}
	if err != nil {
		return domain.NewExternalAPIError(c.config.Name, 0, err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return domain.NewExternalAPIError(c.config.Name, resp.StatusCode, text, nil)
	}

	if out == nil {
		drain(resp)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewExternalAPIError(c.config.Name, resp.StatusCode, "invalid JSON response", err)
	}
	return nil
}

// StatusCode returns the HTTP status carried by an upstream error, or 0.
func StatusCode(err error) int {
	var apiErr *domain.ExternalAPIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func errorType(err error) string {
	switch code := StatusCode(err); {
	case code == 0:
		return "transport"
	case code >= 500:
		return "http_5xx"
	case code == http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "http_4xx"
	}
}

func (c *Client) setHeaders(req *http.Request) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}
}

// shouldRetry returns true for 429 and 5xx.
func shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// getRetryDelay honours Retry-After (seconds or HTTP date) and falls back to
// the configured delay.
func (c *Client) getRetryDelay(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return c.config.RetryDelay
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return c.config.RetryDelay
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return c.config.RetryDelay
}

func (c *Client) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}

func drain(resp *http.Response) {
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
