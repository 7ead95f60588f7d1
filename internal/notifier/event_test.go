package notifier

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printflow/job-lifecycle/internal/domain"
)

func TestFromDomainEvent(t *testing.T) {
	tests := []struct {
		name       string
		event      domain.DomainEvent
		wantStatus string
		wantHolder string
	}{
		{
			name:       "assignment",
			event:      assignedEvent("job-1", "U1"),
			wantHolder: "U1",
		},
		{
			name: "status change",
			event: &domain.StatusChangedEvent{
				JobID:      "job-1",
				JobCardID:  "JC-job-1",
				Domain:     domain.DomainPrepress,
				FromStatus: domain.PrepressStatusPending,
				Status:     domain.PrepressStatusAssigned,
				ChangedAt:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			},
			wantStatus: "ASSIGNED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromDomainEvent(tt.event, "hod")
			require.NoError(t, err)

			_, err = uuid.Parse(got.ID)
			require.NoError(t, err, "event id %q", got.ID)
			assert.Equal(t, tt.event.EventType(), got.Type)
			assert.Equal(t, "job-1", got.JobID)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantHolder, got.AssignedTo)
			assert.Equal(t, "hod", got.ActorRole)
		})
	}
}

func TestFromDomainEvent_DistinctIDs(t *testing.T) {
	e := assignedEvent("job-1", "U1")

	first, err := FromDomainEvent(e, "")
	require.NoError(t, err)
	second, err := FromDomainEvent(e, "")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}
