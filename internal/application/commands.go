package application

import (
	"time"

	"github.com/printflow/job-lifecycle/internal/domain"
)

// CreateJobCommand opens a new job card
type CreateJobCommand struct {
	JobCardID   string
	Title       string
	Customer    string
	Quantity    int
	Priority    string
	ProcessType string
	DueDate     time.Time
	Stages      []StageInput
	CreatedBy   string
}

// StageInput is a stage supplied at job creation
type StageInput struct {
	Department string
	Status     string
	Progress   int
	AssignedTo string
}

// GetJobQuery retrieves a job by ID
type GetJobQuery struct {
	JobID string
}

// ListJobsQuery lists jobs with optional filters. AssignedTo restricts the
// result to jobs the given user currently holds.
type ListJobsQuery struct {
	Status     string
	Department string
	Priority   string
	AssignedTo string
	Page       int64
	PageSize   int64
}

// TransitionJobCommand requests a status change in one domain
type TransitionJobCommand struct {
	JobID     string
	Domain    string
	ToStatus  string
	ActorID   string
	ActorRole string
	Notes     string
}

// NextStatusesQuery asks for the legal successors of a job's status
type NextStatusesQuery struct {
	JobID  string
	Domain string
}

// UpdateStageCommand changes one department stage
type UpdateStageCommand struct {
	JobID      string
	Department string
	Status     string
	Progress   *int
	AssignedTo *string
	ActorID    string
}

// AssignJobCommand gives an unheld job to a user
type AssignJobCommand struct {
	JobID      string
	AssignedTo string
	AssignedBy string
	Notes      string
}

// ReassignJobCommand moves a job between users. PreviousAssignee is the
// holder the caller last saw.
type ReassignJobCommand struct {
	JobID            string
	AssignedTo       string
	AssignedBy       string
	PreviousAssignee string
	Notes            string
}

// UnassignJobCommand releases a job from its holder
type UnassignJobCommand struct {
	JobID      string
	AssignedBy string
	Notes      string
}

// AssignmentHistoryQuery reads a job's ledger. Descending returns the most
// recent record first.
type AssignmentHistoryQuery struct {
	JobID      string
	Descending bool
}

// StateMachineQuery reads a domain's transition table
type StateMachineQuery struct {
	Domain string
}

// toDomainStages converts creation input to unsaved stages
func toDomainStages(inputs []StageInput) []domain.Stage {
	if len(inputs) == 0 {
		return nil
	}
	stages := make([]domain.Stage, 0, len(inputs))
	for _, in := range inputs {
		stages = append(stages, domain.Stage{
			Department: domain.Department(in.Department),
			Status:     domain.StageStatus(in.Status),
			Progress:   in.Progress,
			AssignedTo: in.AssignedTo,
		})
	}
	return stages
}
