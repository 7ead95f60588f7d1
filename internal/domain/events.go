package domain

import (
	"fmt"
	"time"
)

// Lifecycle event names as seen on the real-time channel
const (
	EventJobCreated              = "job_created"
	EventJobAssigned             = "job_assigned"
	EventJobReassigned           = "job_reassigned"
	EventJobUnassigned           = "job_unassigned"
	EventJobStatusUpdate         = "job_status_update"
	EventPrepressStatusUpdate    = "prepress_status_update"
	EventProductionStatusUpdated = "production:status_updated"
	EventCuttingStatusUpdate     = "cutting_status_update"
	EventStageUpdate             = "stage_update"
)

// LifecycleEventTypes lists every event name the service emits
var LifecycleEventTypes = []string{
	EventJobCreated,
	EventJobAssigned,
	EventJobReassigned,
	EventJobUnassigned,
	EventJobStatusUpdate,
	EventPrepressStatusUpdate,
	EventProductionStatusUpdated,
	EventCuttingStatusUpdate,
	EventStageUpdate,
}

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
	// JobRef returns the job id and job card id the event concerns
	JobRef() (jobID, jobCardID string)
	Message() string
}

// JobCreatedEvent is published when a job card is opened
type JobCreatedEvent struct {
	JobID     string    `json:"jobId"`
	JobCardID string    `json:"jobCardId"`
	Status    string    `json:"status"`
	Priority  string    `json:"priority"`
	Quantity  int       `json:"quantity"`
	DueDate   time.Time `json:"dueDate"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (e *JobCreatedEvent) EventType() string        { return EventJobCreated }
func (e *JobCreatedEvent) OccurredAt() time.Time    { return e.CreatedAt }
func (e *JobCreatedEvent) JobRef() (string, string) { return e.JobID, e.JobCardID }
func (e *JobCreatedEvent) Message() string {
	return fmt.Sprintf("Job %s created", e.JobCardID)
}

// JobAssignedEvent is published when a job gets its first holder or a new
// holder after being unassigned
type JobAssignedEvent struct {
	JobID      string    `json:"jobId"`
	JobCardID  string    `json:"jobCardId"`
	AssignedTo string    `json:"assignedTo"`
	AssignedBy string    `json:"assignedBy"`
	Notes      string    `json:"notes,omitempty"`
	AssignedAt time.Time `json:"assignedAt"`
}

func (e *JobAssignedEvent) EventType() string        { return EventJobAssigned }
func (e *JobAssignedEvent) OccurredAt() time.Time    { return e.AssignedAt }
func (e *JobAssignedEvent) JobRef() (string, string) { return e.JobID, e.JobCardID }
func (e *JobAssignedEvent) Message() string {
	return fmt.Sprintf("Job %s assigned to %s", e.JobCardID, e.AssignedTo)
}

// JobReassignedEvent is published when custody moves between holders
type JobReassignedEvent struct {
	JobID            string    `json:"jobId"`
	JobCardID        string    `json:"jobCardId"`
	AssignedTo       string    `json:"assignedTo"`
	PreviousAssignee string    `json:"previousAssignee"`
	AssignedBy       string    `json:"assignedBy"`
	Notes            string    `json:"notes,omitempty"`
	ReassignedAt     time.Time `json:"reassignedAt"`
}

func (e *JobReassignedEvent) EventType() string        { return EventJobReassigned }
func (e *JobReassignedEvent) OccurredAt() time.Time    { return e.ReassignedAt }
func (e *JobReassignedEvent) JobRef() (string, string) { return e.JobID, e.JobCardID }
func (e *JobReassignedEvent) Message() string {
	return fmt.Sprintf("Job %s reassigned from %s to %s", e.JobCardID, e.PreviousAssignee, e.AssignedTo)
}

// JobUnassignedEvent is published when a job is released by its holder
type JobUnassignedEvent struct {
	JobID            string    `json:"jobId"`
	JobCardID        string    `json:"jobCardId"`
	PreviousAssignee string    `json:"previousAssignee"`
	AssignedBy       string    `json:"assignedBy"`
	Notes            string    `json:"notes,omitempty"`
	UnassignedAt     time.Time `json:"unassignedAt"`
}

func (e *JobUnassignedEvent) EventType() string        { return EventJobUnassigned }
func (e *JobUnassignedEvent) OccurredAt() time.Time    { return e.UnassignedAt }
func (e *JobUnassignedEvent) JobRef() (string, string) { return e.JobID, e.JobCardID }
func (e *JobUnassignedEvent) Message() string {
	return fmt.Sprintf("Job %s unassigned from %s", e.JobCardID, e.PreviousAssignee)
}

// StatusChangedEvent is published for a transition in any status domain
type StatusChangedEvent struct {
	JobID      string    `json:"jobId"`
	JobCardID  string    `json:"jobCardId"`
	Domain     Domain    `json:"domain"`
	FromStatus Status    `json:"fromStatus"`
	Status     Status    `json:"status"`
	ActorID    string    `json:"actorId,omitempty"`
	ActorRole  string    `json:"actorRole,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	ChangedAt  time.Time `json:"changedAt"`
}

// EventType depends on the domain that changed
func (e *StatusChangedEvent) EventType() string {
	switch e.Domain {
	case DomainPrepress:
		return EventPrepressStatusUpdate
	case DomainProduction:
		return EventProductionStatusUpdated
	case DomainCutting:
		return EventCuttingStatusUpdate
	default:
		return EventJobStatusUpdate
	}
}

func (e *StatusChangedEvent) OccurredAt() time.Time    { return e.ChangedAt }
func (e *StatusChangedEvent) JobRef() (string, string) { return e.JobID, e.JobCardID }
func (e *StatusChangedEvent) Message() string {
	return fmt.Sprintf("Job %s %s status changed from %s to %s", e.JobCardID, e.Domain, e.FromStatus, e.Status)
}

// StageUpdatedEvent is published when a department stage changes
type StageUpdatedEvent struct {
	JobID             string      `json:"jobId"`
	JobCardID         string      `json:"jobCardId"`
	Department        Department  `json:"department"`
	Status            StageStatus `json:"status"`
	Progress          int         `json:"progress"`
	AssignedTo        string      `json:"assignedTo,omitempty"`
	CurrentDepartment Department  `json:"currentDepartment"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

func (e *StageUpdatedEvent) EventType() string        { return EventStageUpdate }
func (e *StageUpdatedEvent) OccurredAt() time.Time    { return e.UpdatedAt }
func (e *StageUpdatedEvent) JobRef() (string, string) { return e.JobID, e.JobCardID }
func (e *StageUpdatedEvent) Message() string {
	return fmt.Sprintf("Job %s %s stage is %s (%d%%)", e.JobCardID, e.Department, e.Status, e.Progress)
}
