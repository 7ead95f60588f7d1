package openapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLifecycleValidator(t *testing.T) {
	v, err := NewLifecycleValidator()
	require.NoError(t, err)
	assert.Contains(t, v.Paths(), "/api/v1/jobs/{jobId}/reassignments")
	assert.Contains(t, v.Paths(), "/api/v1/events")
}

func TestValidateRequest(t *testing.T) {
	v, err := NewLifecycleValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		opID    string
		wantErr bool
	}{
		{
			name:   "create job",
			method: http.MethodPost, path: "/api/v1/jobs",
			body: `{"jobCardId":"JC-1","quantity":500,"priority":"HIGH","dueDate":"2024-03-10T00:00:00Z"}`,
			opID: "createJob",
		},
		{
			name:   "create job without quantity",
			method: http.MethodPost, path: "/api/v1/jobs",
			body:    `{"jobCardId":"JC-1","dueDate":"2024-03-10T00:00:00Z"}`,
			opID:    "createJob",
			wantErr: true,
		},
		{
			name:   "reassign",
			method: http.MethodPost, path: "/api/v1/jobs/job-1/reassignments",
			body: `{"assignedTo":"U2","previousAssignee":"U1"}`,
			opID: "reassignJob",
		},
		{
			name:   "transition to unknown domain",
			method: http.MethodPost, path: "/api/v1/jobs/job-1/transitions",
			body:    `{"domain":"binding","toStatus":"DONE"}`,
			opID:    "transitionJob",
			wantErr: true,
		},
		{
			name:   "history descending",
			method: http.MethodGet, path: "/api/v1/jobs/job-1/assignments?order=desc",
			opID: "assignmentHistory",
		},
		{
			name:   "page size too large",
			method: http.MethodGet, path: "/api/v1/jobs?pageSize=1000",
			opID:    "listJobs",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}

			opID, err := v.OperationID(req)
			require.NoError(t, err)
			assert.Equal(t, tt.opID, opID)

			err = v.ValidateRequest(context.Background(), req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateResponse(t *testing.T) {
	v, err := NewLifecycleValidator()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-1/transitions/production", nil)
	header := http.Header{"Content-Type": []string{"application/json"}}

	ok := `{"jobId":"job-1","domain":"production","currentStatus":"Quality Check","nextStatuses":["Completed","On Hold","Rejected"],"terminal":false}`
	assert.NoError(t, v.ValidateResponse(context.Background(), req, http.StatusOK, header, []byte(ok)))

	missing := `{"jobId":"job-1","domain":"production"}`
	assert.Error(t, v.ValidateResponse(context.Background(), req, http.StatusOK, header, []byte(missing)))
}
