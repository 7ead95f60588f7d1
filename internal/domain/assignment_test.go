package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id int64, action AssignmentAction, to, previous string, at time.Time) AssignmentRecord {
	return AssignmentRecord{
		ID:               id,
		JobID:            "job-001",
		ActionType:       action,
		AssignedTo:       to,
		AssignedBy:       "hod-1",
		PreviousAssignee: previous,
		CreatedAt:        at,
	}
}

// TestCurrentAssignee tests folding the ledger into the current holder
func TestCurrentAssignee(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	full := []AssignmentRecord{
		record(1, ActionAssigned, "A", "", base),
		record(2, ActionReassigned, "B", "A", base.Add(time.Minute)),
		record(3, ActionUnassigned, "", "B", base.Add(2*time.Minute)),
	}

	tests := []struct {
		name     string
		records  []AssignmentRecord
		expected string
	}{
		{"empty ledger", nil, ""},
		{"single assignment", full[:1], "A"},
		{"after reassignment", full[:2], "B"},
		{"after unassignment", full, ""},
		{"unordered input", []AssignmentRecord{full[1], full[0]}, "B"},
		{"ties broken by id", []AssignmentRecord{
			record(5, ActionReassigned, "C", "A", base),
			record(4, ActionAssigned, "A", "", base),
		}, "C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CurrentAssignee(tt.records))
		})
	}
}

// TestNewAssignmentRecord tests record construction rules
func TestNewAssignmentRecord(t *testing.T) {
	job := &Job{JobID: "job-001", JobCardID: "JC-2024-001"}

	tests := []struct {
		name        string
		action      AssignmentAction
		to, by      string
		previous    string
		expectError bool
	}{
		{"assign", ActionAssigned, "U1", "hod", "", false},
		{"assign without assignee", ActionAssigned, "", "hod", "", true},
		{"assign without actor", ActionAssigned, "U1", "", "", true},
		{"reassign", ActionReassigned, "U2", "hod", "U1", false},
		{"reassign without previous", ActionReassigned, "U2", "hod", "", true},
		{"reassign to same holder", ActionReassigned, "U1", "hod", "U1", true},
		{"unassign", ActionUnassigned, "", "hod", "U1", false},
		{"unassign without previous", ActionUnassigned, "", "hod", "", true},
		{"unknown action", AssignmentAction("TRANSFERRED"), "U1", "hod", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewAssignmentRecord(job, tt.action, tt.to, tt.by, tt.previous, "")
			if tt.expectError {
				assert.ErrorIs(t, err, ErrInvalidAssignment)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "JC-2024-001", rec.JobCardID)
			assert.Equal(t, tt.action, rec.ActionType)
			assert.Zero(t, rec.ID)
		})
	}
}

// TestAssignmentRecord_Check tests the append preconditions
func TestAssignmentRecord_Check(t *testing.T) {
	job := &Job{JobID: "job-001", JobCardID: "JC-2024-001"}

	assign, err := NewAssignmentRecord(job, ActionAssigned, "U1", "hod", "", "")
	require.NoError(t, err)
	assert.NoError(t, assign.Check()(""))
	assert.ErrorIs(t, assign.Check()("U9"), ErrJobAlreadyAssigned)

	reassign, err := NewAssignmentRecord(job, ActionReassigned, "U3", "hod", "U1", "")
	require.NoError(t, err)
	assert.NoError(t, reassign.Check()("U1"))

	err = reassign.Check()("U2")
	var stale *StaleAssignmentError
	require.True(t, errors.As(err, &stale))
	assert.Equal(t, "U2", stale.CurrentAssignee)
	assert.Equal(t, "U1", stale.ExpectedAssignee)
	assert.ErrorIs(t, err, ErrStaleAssignment)

	unassign, err := NewAssignmentRecord(job, ActionUnassigned, "", "hod", "U1", "")
	require.NoError(t, err)
	assert.ErrorIs(t, unassign.Check()(""), ErrStaleAssignment)
}

// TestAssignmentRecord_Event tests the event announced per action
func TestAssignmentRecord_Event(t *testing.T) {
	job := &Job{JobID: "job-001", JobCardID: "JC-2024-001"}

	tests := []struct {
		action   AssignmentAction
		to, prev string
		expected string
	}{
		{ActionAssigned, "U1", "", EventJobAssigned},
		{ActionReassigned, "U2", "U1", EventJobReassigned},
		{ActionUnassigned, "", "U2", EventJobUnassigned},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			rec, err := NewAssignmentRecord(job, tt.action, tt.to, "hod", tt.prev, "")
			require.NoError(t, err)
			event := rec.Event()
			assert.Equal(t, tt.expected, event.EventType())
			jobID, jobCardID := event.JobRef()
			assert.Equal(t, "job-001", jobID)
			assert.Equal(t, "JC-2024-001", jobCardID)
			assert.NotEmpty(t, event.Message())
		})
	}
}
