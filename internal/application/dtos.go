package application

import (
	"time"

	"github.com/printflow/job-lifecycle/internal/domain"
)

// JobDTO is the job read shape
type JobDTO struct {
	ID                string                   `json:"id"`
	JobCardID         string                   `json:"jobCardId"`
	Title             string                   `json:"title,omitempty"`
	Customer          string                   `json:"customer,omitempty"`
	Quantity          int                      `json:"quantity"`
	Priority          string                   `json:"priority"`
	ProcessType       string                   `json:"processType,omitempty"`
	Status            string                   `json:"status"`
	DomainStatuses    map[string]string        `json:"domainStatuses"`
	CurrentDepartment string                   `json:"currentDepartment"`
	DueDate           time.Time                `json:"dueDate"`
	CompletedAt       *time.Time               `json:"completedAt,omitempty"`
	CreatedAt         time.Time                `json:"createdAt"`
	UpdatedAt         time.Time                `json:"updatedAt"`
	AssignedToID      *string                  `json:"assignedToId"`
	Stages            []StageDTO               `json:"stages"`
	Progress          *domain.WorkflowProgress `json:"progress,omitempty"`
}

// StageDTO is one stage of a job
type StageDTO struct {
	Key        string    `json:"key"`
	Department string    `json:"department"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress"`
	AssignedTo *string   `json:"assignedTo"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AssignmentRecordDTO is one ledger entry
type AssignmentRecordDTO struct {
	ID               int64     `json:"id"`
	JobID            string    `json:"jobId"`
	JobCardID        string    `json:"jobCardId"`
	ActionType       string    `json:"actionType"`
	AssignedTo       *string   `json:"assignedTo"`
	AssignedBy       string    `json:"assignedBy"`
	PreviousAssignee *string   `json:"previousAssignee,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// AssignmentResultDTO is returned after a ledger append
type AssignmentResultDTO struct {
	Record          AssignmentRecordDTO `json:"record"`
	CurrentAssignee *string             `json:"currentAssignee"`
}

// NextStatusesDTO lists the legal successors of a job's status
type NextStatusesDTO struct {
	JobID         string   `json:"jobId"`
	Domain        string   `json:"domain"`
	CurrentStatus string   `json:"currentStatus"`
	NextStatuses  []string `json:"nextStatuses"`
	Terminal      bool     `json:"terminal"`
}

// StateMachineDTO is a domain's full transition table
type StateMachineDTO struct {
	Domain      string              `json:"domain"`
	Initial     string              `json:"initial"`
	Transitions map[string][]string `json:"transitions"`
	Terminal    []string            `json:"terminal"`
}
