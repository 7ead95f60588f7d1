package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob(t *testing.T) *Job {
	t.Helper()
	job, err := NewJob(NewJobParams{
		JobID:     "job-001",
		JobCardID: "JC-2024-001",
		Quantity:  5000,
		Priority:  PriorityHigh,
		DueDate:   time.Now().Add(72 * time.Hour),
		CreatedBy: "merch-1",
	})
	require.NoError(t, err)
	return job
}

func intPtr(v int) *int { return &v }

// TestNewJob tests job creation defaults
func TestNewJob(t *testing.T) {
	job := newTestJob(t)

	assert.Equal(t, "JC-2024-001", job.JobCardID)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, PrepressStatusPending, job.PrepressStatus)
	assert.Equal(t, ProductionStatusPending, job.ProductionStatus)
	assert.Equal(t, CuttingStatusPending, job.CuttingStatus)
	assert.Len(t, job.Stages, len(DepartmentSequence))
	assert.Equal(t, DepartmentPunch, job.CurrentDepartment)
	assert.NotZero(t, job.CreatedAt)

	events := job.GetDomainEvents()
	require.Len(t, events, 1)
	created, ok := events[0].(*JobCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, EventJobCreated, created.EventType())
	assert.Equal(t, "HIGH", created.Priority)
}

// TestNewJob_Validation tests rejected inputs
func TestNewJob_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params NewJobParams
	}{
		{"missing job id", NewJobParams{JobCardID: "JC-1", Quantity: 1}},
		{"missing job card", NewJobParams{JobID: "j", Quantity: 1}},
		{"zero quantity", NewJobParams{JobID: "j", JobCardID: "JC-1"}},
		{"unknown department", NewJobParams{JobID: "j", JobCardID: "JC-1", Quantity: 1,
			Stages: []Stage{{Department: "lamination"}}}},
		{"duplicate department", NewJobParams{JobID: "j", JobCardID: "JC-1", Quantity: 1,
			Stages: []Stage{{Department: DepartmentDie}, {Department: DepartmentDie}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJob(tt.params)
			assert.Error(t, err)
		})
	}
}

// TestNewJob_CustomStages tests supplied stages are ordered and normalized
func TestNewJob_CustomStages(t *testing.T) {
	job, err := NewJob(NewJobParams{
		JobID:     "job-002",
		JobCardID: "JC-2024-002",
		Quantity:  10,
		Stages: []Stage{
			{Department: DepartmentDelivery},
			{Department: DepartmentPrepress, Status: StageStatusCompleted},
			{Department: DepartmentCutting},
		},
	})
	require.NoError(t, err)

	require.Len(t, job.Stages, 3)
	assert.Equal(t, DepartmentPrepress, job.Stages[0].Department)
	assert.Equal(t, 100, job.Stages[0].Progress)
	assert.Equal(t, DepartmentCutting, job.Stages[1].Department)
	assert.Equal(t, StageStatusPending, job.Stages[1].Status)
	assert.Equal(t, "cutting", job.Stages[1].Key)
	assert.Equal(t, DepartmentCutting, job.CurrentDepartment)
	assert.Equal(t, PriorityMedium, job.Priority)
}

// TestJobTransition tests status changes per domain
func TestJobTransition(t *testing.T) {
	registry := NewStateMachineRegistry()

	t.Run("valid job transition records event", func(t *testing.T) {
		job := newTestJob(t)
		job.ClearDomainEvents()

		err := job.Transition(registry, TransitionParams{Domain: DomainJob, ToStatus: JobStatusInProgress, ActorID: "U1", ActorRole: "designer"})
		require.NoError(t, err)
		assert.Equal(t, JobStatusInProgress, job.Status)

		events := job.GetDomainEvents()
		require.Len(t, events, 1)
		changed := events[0].(*StatusChangedEvent)
		assert.Equal(t, EventJobStatusUpdate, changed.EventType())
		assert.Equal(t, JobStatusPending, changed.FromStatus)
		assert.Equal(t, "designer", changed.ActorRole)
	})

	t.Run("invalid transition leaves job unchanged", func(t *testing.T) {
		job := newTestJob(t)
		job.ClearDomainEvents()

		err := job.Transition(registry, TransitionParams{Domain: DomainJob, ToStatus: JobStatusCompleted})
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, JobStatusPending, job.Status)
		assert.Empty(t, job.GetDomainEvents())
	})

	t.Run("completion stamps completedAt", func(t *testing.T) {
		job := newTestJob(t)
		for _, to := range []Status{JobStatusInProgress, JobStatusPendingReview, JobStatusCompleted} {
			require.NoError(t, job.Transition(registry, TransitionParams{Domain: DomainJob, ToStatus: to}))
		}
		require.NotNil(t, job.CompletedAt)
		assert.False(t, job.IsOpen())
	})

	t.Run("domain statuses are independent", func(t *testing.T) {
		job := newTestJob(t)
		job.ClearDomainEvents()

		require.NoError(t, job.Transition(registry, TransitionParams{Domain: DomainProduction, ToStatus: ProductionStatusAssigned}))
		require.NoError(t, job.Transition(registry, TransitionParams{Domain: DomainPrepress, ToStatus: PrepressStatusAssigned}))
		assert.Equal(t, JobStatusPending, job.Status)
		assert.Equal(t, ProductionStatusAssigned, job.ProductionStatus)
		assert.Equal(t, PrepressStatusAssigned, job.PrepressStatus)

		events := job.GetDomainEvents()
		require.Len(t, events, 2)
		assert.Equal(t, EventProductionStatusUpdated, events[0].EventType())
		assert.Equal(t, EventPrepressStatusUpdate, events[1].EventType())
	})

	t.Run("unknown domain", func(t *testing.T) {
		job := newTestJob(t)
		err := job.Transition(registry, TransitionParams{Domain: "shipping", ToStatus: "SHIPPED"})
		assert.ErrorIs(t, err, ErrUnknownDomain)
	})
}

// TestJobUpdateStage tests stage updates and the derived current department
func TestJobUpdateStage(t *testing.T) {
	t.Run("completed forces full progress", func(t *testing.T) {
		job := newTestJob(t)
		require.NoError(t, job.UpdateStage(StageUpdate{Department: DepartmentPunch, Status: StageStatusCompleted, Progress: intPtr(40)}, false))
		assert.Equal(t, 100, job.Stages[0].Progress)
		assert.Equal(t, DepartmentPrepress, job.CurrentDepartment)
	})

	t.Run("in progress moves current department", func(t *testing.T) {
		job := newTestJob(t)
		assignee := "U7"
		require.NoError(t, job.UpdateStage(StageUpdate{Department: DepartmentProduction, Status: StageStatusInProgress, Progress: intPtr(30), AssignedTo: &assignee}, false))
		assert.Equal(t, DepartmentProduction, job.CurrentDepartment)
		assert.Equal(t, "U7", job.Stages[4].AssignedTo)
		assert.Equal(t, 30, job.Stages[4].Progress)

		events := job.GetDomainEvents()
		stage := events[len(events)-1].(*StageUpdatedEvent)
		assert.Equal(t, EventStageUpdate, stage.EventType())
		assert.Equal(t, DepartmentProduction, stage.CurrentDepartment)
	})

	t.Run("loose ordering allows out of order starts", func(t *testing.T) {
		job := newTestJob(t)
		require.NoError(t, job.UpdateStage(StageUpdate{Department: DepartmentProduction, Status: StageStatusInProgress}, false))
		require.NoError(t, job.UpdateStage(StageUpdate{Department: DepartmentCutting, Status: StageStatusInProgress}, false))
	})

	t.Run("strict ordering blocks out of order starts", func(t *testing.T) {
		job := newTestJob(t)
		err := job.UpdateStage(StageUpdate{Department: DepartmentDie, Status: StageStatusInProgress}, true)
		assert.ErrorIs(t, err, ErrStageOutOfOrder)
		assert.Contains(t, err.Error(), "punch")

		require.NoError(t, job.UpdateStage(StageUpdate{Department: DepartmentPunch, Status: StageStatusCompleted}, true))
		require.NoError(t, job.UpdateStage(StageUpdate{Department: DepartmentPrepress, Status: StageStatusSkipped}, true))
		assert.NoError(t, job.UpdateStage(StageUpdate{Department: DepartmentDie, Status: StageStatusInProgress}, true))
	})

	t.Run("rejects bad input", func(t *testing.T) {
		job := newTestJob(t)
		assert.ErrorIs(t, job.UpdateStage(StageUpdate{Department: "lamination", Status: StageStatusPending}, false), ErrInvalidStage)
		assert.ErrorIs(t, job.UpdateStage(StageUpdate{Department: DepartmentDie, Status: "DONE"}, false), ErrInvalidStage)
		assert.ErrorIs(t, job.UpdateStage(StageUpdate{Department: DepartmentDie, Status: StageStatusInProgress, Progress: intPtr(101)}, false), ErrInvalidStage)
	})
}
