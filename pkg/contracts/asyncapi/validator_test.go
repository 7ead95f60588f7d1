package asyncapi

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printflow/job-lifecycle/pkg/cloudevents"
)

func newEvent(t *testing.T, eventType string, payload map[string]any) *cloudevents.LifecycleCloudEvent {
	t.Helper()
	factory := cloudevents.NewEventFactory("test")
	event, err := factory.CreateJobEvent(context.Background(), eventType, "job-1", "JC-2024-001",
		"something happened", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), payload)
	require.NoError(t, err)
	return event
}

func TestNewLifecycleValidator_CoversAllChannels(t *testing.T) {
	v, err := NewLifecycleValidator()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"cutting_status_update",
		"job_assigned",
		"job_created",
		"job_reassigned",
		"job_status_update",
		"job_unassigned",
		"prepress_status_update",
		"production:status_updated",
		"stage_update",
	}, v.SupportedEventTypes())
}

func TestValidateEvent(t *testing.T) {
	v, err := NewLifecycleValidator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		eventType string
		payload   map[string]any
		wantErr   bool
	}{
		{
			name:      "reassignment",
			eventType: "job_reassigned",
			payload: map[string]any{
				"jobId": "job-1", "assignedTo": "U2", "previousAssignee": "U1", "assignedBy": "HOD",
			},
		},
		{
			name:      "reassignment without previous holder",
			eventType: "job_reassigned",
			payload:   map[string]any{"jobId": "job-1", "assignedTo": "U2", "assignedBy": "HOD"},
			wantErr:   true,
		},
		{
			name:      "production status",
			eventType: "production:status_updated",
			payload: map[string]any{
				"jobId": "job-1", "domain": "production", "fromStatus": "Printing", "status": "Quality Check",
			},
		},
		{
			name:      "stage progress out of range",
			eventType: "stage_update",
			payload: map[string]any{
				"jobId": "job-1", "department": "punch", "status": "IN_PROGRESS", "progress": 140,
			},
			wantErr: true,
		},
		{
			name:      "created with unknown priority",
			eventType: "job_created",
			payload: map[string]any{
				"jobId": "job-1", "jobCardId": "JC-1", "status": "OPEN", "priority": "URGENT",
				"quantity": 10, "createdAt": "2024-03-01T09:00:00Z",
			},
			wantErr: true,
		},
		{
			name:      "unknown type",
			eventType: "job_teleported",
			payload:   map[string]any{"jobId": "job-1"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateEvent(newEvent(t, tt.eventType, tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEventJSON_RejectsMissingEnvelope(t *testing.T) {
	v, err := NewLifecycleValidator()
	require.NoError(t, err)

	event := newEvent(t, "job_unassigned", map[string]any{
		"jobId": "job-1", "previousAssignee": "U1", "assignedBy": "HOD",
	})
	event.Data = json.RawMessage(`{"jobId":"job-1","payload":{"jobId":"job-1","previousAssignee":"U1","assignedBy":"HOD"}}`)
	raw, err := json.Marshal(event)
	require.NoError(t, err)

	assert.Error(t, v.ValidateEventJSON(raw))
}
