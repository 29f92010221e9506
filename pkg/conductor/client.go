// Package conductor is a client for the orchestration engine's metadata API.
package conductor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tcmartin/flowstudio/pkg/models"
)

// ErrWorkflowNotFound is returned when the engine has no matching workflow
var ErrWorkflowNotFound = errors.New("workflow not found on engine")

const workflowPath = "/api/metadata/workflow"

// Config controls how the client reaches the engine
type Config struct {
	// BaseURL is the engine server root, such as http://localhost:8080
	BaseURL string

	// AccessKey is sent as X-Authorization when set
	AccessKey string

	// Timeout bounds each HTTP attempt
	Timeout time.Duration

	// RetryCount is the number of retries after the first attempt
	RetryCount int

	// RetryWaitTime is the initial backoff between retries
	RetryWaitTime time.Duration

	// RetryMaxWaitTime caps the backoff
	RetryMaxWaitTime time.Duration
}

// DefaultConfig returns settings for a local engine
func DefaultConfig() Config {
	return Config{
		BaseURL:          "http://localhost:8080",
		Timeout:          30 * time.Second,
		RetryCount:       3,
		RetryWaitTime:    100 * time.Millisecond,
		RetryMaxWaitTime: 2 * time.Second,
	}
}

// APIError is a non-2xx engine response
type APIError struct {
	StatusCode int    `json:"-"`
	Status     int    `json:"status"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	Body       string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("engine returned %d: %s", e.StatusCode, e.Message)
	}
	if e.Body != "" {
		return fmt.Sprintf("engine returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("engine returned %d", e.StatusCode)
}

// Client talks to the engine metadata API
type Client struct {
	client  *resty.Client
	baseURL string
}

// NewClient creates a new engine client
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid engine URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("engine URL scheme must be http or https, got: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("engine URL must have a host, got: %s", baseURL)
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount)

	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.RetryWaitTime > 0 {
		client.SetRetryWaitTime(cfg.RetryWaitTime)
	}
	if cfg.RetryMaxWaitTime > 0 {
		client.SetRetryMaxWaitTime(cfg.RetryMaxWaitTime)
	}
	if cfg.AccessKey != "" {
		client.SetHeader("X-Authorization", cfg.AccessKey)
	}

	client.AddRetryCondition(retryCondition)

	return &Client{client: client, baseURL: baseURL}, nil
}

// BaseURL returns the engine root the client targets
func (c *Client) BaseURL() string {
	return c.baseURL
}

// retryCondition retries transport failures, throttling and server errors
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests
}

// PutWorkflows creates or updates definitions in one call
func (c *Client) PutWorkflows(ctx context.Context, defs ...*models.WorkflowDefinition) error {
	if len(defs) == 0 {
		return nil
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(defs).
		Put(workflowPath)
	if err != nil {
		return fmt.Errorf("failed to put workflows: %w", err)
	}
	return checkResponse(resp)
}

// RegisterWorkflow creates a new definition; the engine rejects an
// existing name and version
func (c *Client) RegisterWorkflow(ctx context.Context, def *models.WorkflowDefinition) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(def).
		Post(workflowPath)
	if err != nil {
		return fmt.Errorf("failed to register workflow: %w", err)
	}
	return checkResponse(resp)
}

// GetWorkflow fetches a definition; version 0 asks for the latest
func (c *Client) GetWorkflow(ctx context.Context, name string, version int) (*models.WorkflowDefinition, error) {
	var def models.WorkflowDefinition

	req := c.client.R().
		SetContext(ctx).
		SetPathParam("name", name).
		SetResult(&def)
	if version > 0 {
		req.SetQueryParam("version", strconv.Itoa(version))
	}

	resp, err := req.Get(workflowPath + "/{name}")
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	return &def, nil
}

// ListWorkflows fetches every definition known to the engine
func (c *Client) ListWorkflows(ctx context.Context) ([]models.WorkflowDefinition, error) {
	var defs []models.WorkflowDefinition

	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&defs).
		Get(workflowPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	return defs, nil
}

// DeleteWorkflow removes one version of a definition from the engine
func (c *Client) DeleteWorkflow(ctx context.Context, name string, version int) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("name", name).
		SetPathParam("version", strconv.Itoa(version)).
		Delete(workflowPath + "/{name}/{version}")
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %s version %d", ErrWorkflowNotFound, name, version)
	}
	return checkResponse(resp)
}

// checkResponse converts a non-2xx response into an APIError
func checkResponse(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Body:       strings.TrimSpace(resp.String()),
	}
	if strings.Contains(resp.Header().Get("Content-Type"), "json") {
		// Best effort; plain bodies stay in Body
		_ = json.Unmarshal(resp.Body(), apiErr)
	}
	return apiErr
}
