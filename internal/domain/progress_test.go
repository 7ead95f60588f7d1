package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stagesWith(statuses ...StageStatus) []Stage {
	stages := DefaultStages()
	for i, s := range statuses {
		stages[i].Status = s
		if s == StageStatusCompleted {
			stages[i].Progress = 100
		}
	}
	return stages
}

// TestProjectProgress tests the aggregate percentage and current stage
func TestProjectProgress(t *testing.T) {
	tests := []struct {
		name            string
		stages          []Stage
		expectedPercent int
		expectedCurrent Department
	}{
		{
			name:            "all pending",
			stages:          DefaultStages(),
			expectedPercent: 0,
			expectedCurrent: DepartmentPunch,
		},
		{
			name: "four completed and fifth in progress",
			stages: stagesWith(StageStatusCompleted, StageStatusCompleted, StageStatusCompleted,
				StageStatusCompleted, StageStatusInProgress),
			expectedPercent: 33,
			expectedCurrent: DepartmentProduction,
		},
		{
			name:            "skipped counts as done",
			stages:          stagesWith(StageStatusCompleted, StageStatusSkipped, StageStatusSkipped),
			expectedPercent: 25,
			expectedCurrent: DepartmentPlate,
		},
		{
			name: "in progress wins over earlier pending",
			stages: stagesWith(StageStatusPending, StageStatusPending, StageStatusPending,
				StageStatusPending, StageStatusPending, StageStatusInProgress),
			expectedPercent: 0,
			expectedCurrent: DepartmentCutting,
		},
		{
			name: "blocked is not done",
			stages: []Stage{
				{Key: "die", Department: DepartmentDie, Status: StageStatusBlocked},
				{Key: "plate", Department: DepartmentPlate, Status: StageStatusCompleted, Progress: 100},
			},
			expectedPercent: 50,
			expectedCurrent: DepartmentPlate,
		},
		{
			name: "all terminal reports last stage",
			stages: []Stage{
				{Key: "finishing", Department: DepartmentFinishing, Status: StageStatusCompleted, Progress: 100},
				{Key: "delivery", Department: DepartmentDelivery, Status: StageStatusSkipped},
				{Key: "prepress", Department: DepartmentPrepress, Status: StageStatusCompleted, Progress: 100},
			},
			expectedPercent: 100,
			expectedCurrent: DepartmentDelivery,
		},
		{
			name:            "no stages",
			stages:          nil,
			expectedPercent: 0,
			expectedCurrent: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progress := ProjectProgress(tt.stages)
			assert.Equal(t, tt.expectedPercent, progress.ProgressPercent)
			assert.Equal(t, tt.expectedCurrent, progress.CurrentStage)
			assert.Len(t, progress.Stages, len(tt.stages))
		})
	}
}

// TestProjectProgress_Deterministic tests repeated projections are byte-identical
func TestProjectProgress_Deterministic(t *testing.T) {
	stages := stagesWith(StageStatusCompleted, StageStatusInProgress, StageStatusBlocked)

	first, err := json.Marshal(ProjectProgress(stages))
	require.NoError(t, err)
	second, err := json.Marshal(ProjectProgress(stages))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// TestProjectProgress_Monotonic tests completing one more stage never lowers progress
func TestProjectProgress_Monotonic(t *testing.T) {
	stages := DefaultStages()
	previous := ProjectProgress(stages).ProgressPercent

	for i := range stages {
		stages[i].Status = StageStatusCompleted
		stages[i].Progress = 100
		current := ProjectProgress(stages).ProgressPercent
		assert.GreaterOrEqual(t, current, previous)
		previous = current
	}
	assert.Equal(t, 100, previous)
}

// TestProjectProgress_DoesNotMutateInput tests the input order is preserved
func TestProjectProgress_DoesNotMutateInput(t *testing.T) {
	stages := []Stage{
		{Key: "delivery", Department: DepartmentDelivery, Status: StageStatusPending},
		{Key: "punch", Department: DepartmentPunch, Status: StageStatusPending},
	}

	progress := ProjectProgress(stages)

	assert.Equal(t, DepartmentDelivery, stages[0].Department)
	assert.Equal(t, DepartmentPunch, progress.Stages[0].Department)
	assert.Equal(t, "Punch", progress.Stages[0].Label)
}
