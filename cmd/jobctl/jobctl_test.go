package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printflow/job-lifecycle/internal/application"
	"github.com/printflow/job-lifecycle/internal/domain"
	"github.com/printflow/job-lifecycle/pkg/api"
	"github.com/printflow/job-lifecycle/pkg/middleware"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Actor  string
	Body   map[string]any
}

// fakeAPI answers each route with a canned status and body
type fakeAPI struct {
	t        *testing.T
	routes   map[string]func() (int, any)
	mu       sync.Mutex
	requests []recordedRequest
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{t: t, routes: map[string]func() (int, any){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Actor:  r.Header.Get(middleware.HeaderActorID),
		}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			assert.NoError(t, json.Unmarshal(raw, &rec.Body))
		}
		f.mu.Lock()
		f.requests = append(f.requests, rec)
		f.mu.Unlock()

		route, ok := f.routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("no route"))
			return
		}
		status, body := route()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		assert.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) on(method, path string, status int, body any) {
	f.routes[method+" "+path] = func() (int, any) { return status, body }
}

func (f *fakeAPI) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.requests)
	return f.requests[len(f.requests)-1]
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func runCLI(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL, "--actor", "u-1"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func strPtr(s string) *string { return &s }

func sampleJob() application.JobDTO {
	return application.JobDTO{
		ID:                "job-1",
		JobCardID:         "JC-1001",
		Title:             "Hang tags",
		Quantity:          500,
		Priority:          "HIGH",
		Status:            "IN_PROGRESS",
		DomainStatuses:    map[string]string{"job": "IN_PROGRESS", "prepress": "ASSIGNED"},
		CurrentDepartment: "prepress",
		DueDate:           time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
		AssignedToID:      strPtr("designer-4"),
		Stages: []application.StageDTO{
			{Key: "prepress", Department: "prepress", Status: "IN_PROGRESS", Progress: 40, AssignedTo: strPtr("designer-4")},
			{Key: "offset", Department: "offset", Status: "PENDING"},
		},
		Progress: &domain.WorkflowProgress{CurrentStage: "prepress", ProgressPercent: 0},
	}
}

func TestJobsList(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.on(http.MethodGet, "/api/v1/jobs", http.StatusOK, api.NewPageResponse([]application.JobDTO{sampleJob()}, 1, 20, 1))

	out, err := runCLI(t, srv, "jobs", "list", "--status", "IN_PROGRESS", "--assigned-to", "designer-4")
	require.NoError(t, err)

	assert.Contains(t, out, "JC-1001")
	assert.Contains(t, out, "designer-4")
	assert.Contains(t, out, "Page 1 of 1 (1 jobs)")
	assert.Equal(t, "assignedTo=designer-4&status=IN_PROGRESS", fake.last().Query)
	assert.Equal(t, "u-1", fake.last().Actor)
}

func TestJobsList_Empty(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.on(http.MethodGet, "/api/v1/jobs", http.StatusOK, api.NewPageResponse([]application.JobDTO{}, 1, 20, 0))

	out, err := runCLI(t, srv, "jobs", "list")
	require.NoError(t, err)
	assert.Equal(t, "No jobs found\n", out)
	assert.Empty(t, fake.last().Query)
}

func TestJobsShow(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.on(http.MethodGet, "/api/v1/jobs/job-1", http.StatusOK, sampleJob())

	out, err := runCLI(t, srv, "jobs", "show", "job-1")
	require.NoError(t, err)

	assert.Contains(t, out, "Job JC-1001 (job-1)")
	assert.Contains(t, out, "job=IN_PROGRESS, prepress=ASSIGNED")
	assert.Contains(t, out, "offset")
	assert.Contains(t, out, "40%")
}

func TestJobsShow_JSON(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.on(http.MethodGet, "/api/v1/jobs/job-1", http.StatusOK, sampleJob())

	out, err := runCLI(t, srv, "--json", "jobs", "show", "job-1")
	require.NoError(t, err)

	var job application.JobDTO
	require.NoError(t, json.Unmarshal([]byte(out), &job))
	assert.Equal(t, "JC-1001", job.JobCardID)
}

func TestJobsCreate(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.on(http.MethodPost, "/api/v1/jobs", http.StatusCreated, sampleJob())

	_, err := runCLI(t, srv, "jobs", "create", "JC-1001",
		"--quantity", "500", "--priority", "HIGH", "--due", "2026-11-02",
		"--stage", "prepress,offset", "--stage", "cutting")
	require.NoError(t, err)

	body := fake.last().Body
	assert.Equal(t, "JC-1001", body["jobCardId"])
	assert.Equal(t, float64(500), body["quantity"])
	assert.Equal(t, "2026-11-02T00:00:00Z", body["dueDate"])
	assert.Len(t, body["stages"], 3)
}

func TestJobsCreate_RequiresDueDate(t *testing.T) {
	_, srv := newFakeAPI(t)

	_, err := runCLI(t, srv, "jobs", "create", "JC-1001")
	assert.ErrorContains(t, err, "--due")

	_, err = runCLI(t, srv, "jobs", "create", "JC-1001", "--due", "next week")
	assert.ErrorContains(t, err, "invalid due date")
}

func TestTransition_ReportsInvalidTransition(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.on(http.MethodPost, "/api/v1/jobs/job-1/transitions", http.StatusUnprocessableEntity, middleware.APIErrorResponse{
		Code:    "INVALID_TRANSITION",
		Message: "cannot move prepress from PENDING to COMPLETED",
		Details: map[string]string{"currentStatus": "PENDING", "requestedStatus": "COMPLETED"},
	})

	_, err := runCLI(t, srv, "transition", "job-1", "prepress", "COMPLETED", "--notes", "rush")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "INVALID_TRANSITION", apiErr.Code)
	assert.Contains(t, err.Error(), "currentStatus: PENDING")
	assert.Equal(t, map[string]any{"domain": "prepress", "toStatus": "COMPLETED", "notes": "rush"}, fake.last().Body)
}

func TestNext(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.on(http.MethodGet, "/api/v1/jobs/job-1/transitions/prepress", http.StatusOK, application.NextStatusesDTO{
		JobID: "job-1", Domain: "prepress", CurrentStatus: "ASSIGNED", NextStatuses: []string{"CANCELLED", "IN_PROGRESS"},
	})

	out, err := runCLI(t, srv, "next", "job-1", "prepress")
	require.NoError(t, err)
	assert.Contains(t, out, "Current prepress status: ASSIGNED")
	assert.Contains(t, out, "Next: CANCELLED, IN_PROGRESS")
}

func TestStage_OnlySendsChangedFields(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.on(http.MethodPut, "/api/v1/jobs/job-1/stages/prepress", http.StatusOK, sampleJob())

	out, err := runCLI(t, srv, "stage", "job-1", "prepress", "IN_PROGRESS")
	require.NoError(t, err)
	assert.Contains(t, out, "workflow 0% complete")
	assert.Equal(t, map[string]any{"status": "IN_PROGRESS"}, fake.last().Body)

	_, err = runCLI(t, srv, "stage", "job-1", "prepress", "IN_PROGRESS", "--progress", "0", "--assign", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "IN_PROGRESS", "progress": float64(0), "assignedTo": ""}, fake.last().Body)
}

func TestAssignmentCommands(t *testing.T) {
	fake, srv := newFakeAPI(t)
	record := application.AssignmentRecordDTO{ID: 7, JobID: "job-1", ActionType: "REASSIGNED", AssignedTo: strPtr("designer-9"), PreviousAssignee: strPtr("designer-4"), AssignedBy: "u-1"}
	fake.on(http.MethodGet, "/api/v1/jobs/job-1", http.StatusOK, sampleJob())
	fake.on(http.MethodPost, "/api/v1/jobs/job-1/reassignments", http.StatusCreated, application.AssignmentResultDTO{Record: record, CurrentAssignee: strPtr("designer-9")})
	fake.on(http.MethodPost, "/api/v1/jobs/job-1/assignments", http.StatusConflict, middleware.APIErrorResponse{Code: "CONFLICT", Message: "job is already assigned"})
	fake.on(http.MethodPost, "/api/v1/jobs/job-1/unassignments", http.StatusCreated, application.AssignmentResultDTO{Record: record})

	t.Run("reassign defaults --from to the current holder", func(t *testing.T) {
		out, err := runCLI(t, srv, "reassign", "job-1", "designer-9")
		require.NoError(t, err)
		assert.Contains(t, out, "Current assignee: designer-9")
		assert.Equal(t, "designer-4", fake.last().Body["previousAssignee"])
	})

	t.Run("reassign with explicit --from skips the lookup", func(t *testing.T) {
		before := fake.count()
		_, err := runCLI(t, srv, "reassign", "job-1", "designer-9", "--from", "designer-2")
		require.NoError(t, err)
		assert.Equal(t, before+1, fake.count())
		assert.Equal(t, "designer-2", fake.last().Body["previousAssignee"])
	})

	t.Run("assign surfaces conflicts", func(t *testing.T) {
		_, err := runCLI(t, srv, "assign", "job-1", "designer-9")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "CONFLICT", apiErr.Code)
	})

	t.Run("unassign without notes sends an empty object", func(t *testing.T) {
		out, err := runCLI(t, srv, "unassign", "job-1")
		require.NoError(t, err)
		assert.Contains(t, out, "Current assignee: -")
		assert.Empty(t, fake.last().Body)
	})
}

func TestHistory(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.on(http.MethodGet, "/api/v1/jobs/job-1/assignments", http.StatusOK, []application.AssignmentRecordDTO{
		{ID: 2, ActionType: "UNASSIGNED", PreviousAssignee: strPtr("designer-4"), AssignedBy: "u-1"},
		{ID: 1, ActionType: "ASSIGNED", AssignedTo: strPtr("designer-4"), AssignedBy: "u-1"},
	})

	out, err := runCLI(t, srv, "history", "job-1", "--desc")
	require.NoError(t, err)
	assert.Equal(t, "order=desc", fake.last().Query)
	assert.Contains(t, out, "UNASSIGNED")
	assert.Contains(t, out, "ASSIGNED")
}

func TestStats(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.on(http.MethodGet, "/api/v1/stats/departments", http.StatusOK, domain.DepartmentStats{
		WIPByProcess:  map[string]int{"prepress": 2, domain.UnroutedDepartment: 1},
		AgingBuckets:  map[string]int{domain.AgingBucket0To3: 3},
		SLACompliance: []domain.SLACompliance{{ProcessType: "offset", Total: 4, Completed: 2, OnTime: 1, Overdue: 1}},
	})

	out, err := runCLI(t, srv, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Work in progress")
	assert.Contains(t, out, "unrouted")
	assert.Contains(t, out, "15+ days")
	assert.Contains(t, out, "offset")
}

func TestMachine(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.on(http.MethodGet, "/api/v1/state-machines/cutting", http.StatusOK, application.StateMachineDTO{
		Domain:      "cutting",
		Initial:     "Pending",
		Transitions: map[string][]string{"Pending": {"In Progress"}, "In Progress": {"Completed"}},
		Terminal:    []string{"Completed"},
	})

	out, err := runCLI(t, srv, "machine", "cutting")
	require.NoError(t, err)
	assert.Contains(t, out, "Pending (initial)")
	assert.Contains(t, out, "terminal")
}

func TestClient_NonJSONError(t *testing.T) {
	_, srv := newFakeAPI(t)

	_, err := NewClient(srv.URL, "", "").GetJob(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed with status 404")

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
