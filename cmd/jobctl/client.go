package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/printflow/job-lifecycle/internal/application"
	"github.com/printflow/job-lifecycle/internal/domain"
	"github.com/printflow/job-lifecycle/pkg/api"
	"github.com/printflow/job-lifecycle/pkg/middleware"
)

// APIError is an error response from the lifecycle service
type APIError struct {
	Status int
	middleware.APIErrorResponse
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d): %s", e.Code, e.Status, e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n  %s: %s", k, e.Details[k])
		}
	}
	return b.String()
}

// Client calls the lifecycle HTTP API
type Client struct {
	baseURL    string
	actorID    string
	actorRole  string
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL, actorID, actorRole string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		actorID:   actorID,
		actorRole: actorRole,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doRequest performs an HTTP request and decodes the response
func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.actorID != "" {
		req.Header.Set(middleware.HeaderActorID, c.actorID)
	}
	if c.actorRole != "" {
		req.Header.Set(middleware.HeaderActorRole, c.actorRole)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, &apiErr.APIErrorResponse); err != nil || apiErr.Code == "" {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

// JobListOptions filters a job listing
type JobListOptions struct {
	Status     string
	Department string
	Priority   string
	AssignedTo string
	Page       int64
	PageSize   int64
}

func (o JobListOptions) query() string {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("status", o.Status)
	set("department", o.Department)
	set("priority", o.Priority)
	set("assignedTo", o.AssignedTo)
	if o.Page > 0 {
		q.Set("page", strconv.FormatInt(o.Page, 10))
	}
	if o.PageSize > 0 {
		q.Set("pageSize", strconv.FormatInt(o.PageSize, 10))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListJobs returns one page of jobs
func (c *Client) ListJobs(ctx context.Context, opts JobListOptions) (*api.PageResponse[application.JobDTO], error) {
	var page api.PageResponse[application.JobDTO]
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/jobs"+opts.query(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetJob returns a job with its progress
func (c *Client) GetJob(ctx context.Context, jobID string) (*application.JobDTO, error) {
	var job application.JobDTO
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobInput is the body of a job creation
type CreateJobInput struct {
	JobCardID   string       `json:"jobCardId"`
	Title       string       `json:"title,omitempty"`
	Customer    string       `json:"customer,omitempty"`
	Quantity    int          `json:"quantity"`
	Priority    string       `json:"priority,omitempty"`
	ProcessType string       `json:"processType,omitempty"`
	DueDate     time.Time    `json:"dueDate"`
	Stages      []StageInput `json:"stages,omitempty"`
}

// StageInput is a stage supplied at creation
type StageInput struct {
	Department string `json:"department"`
}

// CreateJob opens a job card
func (c *Client) CreateJob(ctx context.Context, in CreateJobInput) (*application.JobDTO, error) {
	var job application.JobDTO
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/jobs", in, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Transition moves a job's status in one domain
func (c *Client) Transition(ctx context.Context, jobID, statusDomain, toStatus, notes string) (*application.JobDTO, error) {
	body := map[string]string{"domain": statusDomain, "toStatus": toStatus}
	if notes != "" {
		body["notes"] = notes
	}
	var job application.JobDTO
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/jobs/"+url.PathEscape(jobID)+"/transitions", body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// NextStatuses lists the legal successors of a job's status
func (c *Client) NextStatuses(ctx context.Context, jobID, statusDomain string) (*application.NextStatusesDTO, error) {
	var next application.NextStatusesDTO
	path := "/api/v1/jobs/" + url.PathEscape(jobID) + "/transitions/" + url.PathEscape(statusDomain)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// StageUpdateInput is the body of a stage update
type StageUpdateInput struct {
	Status     string  `json:"status"`
	Progress   *int    `json:"progress,omitempty"`
	AssignedTo *string `json:"assignedTo,omitempty"`
}

// UpdateStage changes one department stage
func (c *Client) UpdateStage(ctx context.Context, jobID, department string, in StageUpdateInput) (*application.JobDTO, error) {
	var job application.JobDTO
	path := "/api/v1/jobs/" + url.PathEscape(jobID) + "/stages/" + url.PathEscape(department)
	if err := c.doRequest(ctx, http.MethodPut, path, in, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Assign gives an unheld job to a user
func (c *Client) Assign(ctx context.Context, jobID, assignedTo, notes string) (*application.AssignmentResultDTO, error) {
	return c.appendAssignment(ctx, jobID, "assignments", map[string]string{"assignedTo": assignedTo, "notes": notes})
}

// Reassign moves a job from the holder the caller last saw to assignedTo
func (c *Client) Reassign(ctx context.Context, jobID, assignedTo, previous, notes string) (*application.AssignmentResultDTO, error) {
	return c.appendAssignment(ctx, jobID, "reassignments", map[string]string{
		"assignedTo":       assignedTo,
		"previousAssignee": previous,
		"notes":            notes,
	})
}

// Unassign releases a job from its holder
func (c *Client) Unassign(ctx context.Context, jobID, notes string) (*application.AssignmentResultDTO, error) {
	return c.appendAssignment(ctx, jobID, "unassignments", map[string]string{"notes": notes})
}

func (c *Client) appendAssignment(ctx context.Context, jobID, action string, body map[string]string) (*application.AssignmentResultDTO, error) {
	if body["notes"] == "" {
		delete(body, "notes")
	}
	var result application.AssignmentResultDTO
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/jobs/"+url.PathEscape(jobID)+"/"+action, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// History returns a job's assignment ledger
func (c *Client) History(ctx context.Context, jobID string, descending bool) ([]application.AssignmentRecordDTO, error) {
	order := api.SortAsc
	if descending {
		order = api.SortDesc
	}
	var records []application.AssignmentRecordDTO
	path := "/api/v1/jobs/" + url.PathEscape(jobID) + "/assignments?order=" + string(order)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// DepartmentStats returns the dashboard statistics
func (c *Client) DepartmentStats(ctx context.Context) (*domain.DepartmentStats, error) {
	var stats domain.DepartmentStats
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/stats/departments", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// StateMachine returns a domain's transition table
func (c *Client) StateMachine(ctx context.Context, statusDomain string) (*application.StateMachineDTO, error) {
	var machine application.StateMachineDTO
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/state-machines/"+url.PathEscape(statusDomain), nil, &machine); err != nil {
		return nil, err
	}
	return &machine, nil
}
