package domain

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// defaultRegistry backs the pure helpers that need terminal-state knowledge
var defaultRegistry = NewStateMachineRegistry()

// Job is the aggregate root for a print-production job card
type Job struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	JobID             string             `bson:"jobId" json:"jobId"`
	JobCardID         string             `bson:"jobCardId" json:"jobCardId"`
	Title             string             `bson:"title,omitempty" json:"title,omitempty"`
	Customer          string             `bson:"customer,omitempty" json:"customer,omitempty"`
	Quantity          int                `bson:"quantity" json:"quantity"`
	Priority          Priority           `bson:"priority" json:"priority"`
	ProcessType       string             `bson:"processType,omitempty" json:"processType,omitempty"`
	Status            Status             `bson:"status" json:"status"`
	PrepressStatus    Status             `bson:"prepressStatus" json:"prepressStatus"`
	ProductionStatus  Status             `bson:"productionStatus" json:"productionStatus"`
	CuttingStatus     Status             `bson:"cuttingStatus" json:"cuttingStatus"`
	CurrentDepartment Department         `bson:"currentDepartment" json:"currentDepartment"`
	Stages            []Stage            `bson:"stages" json:"stages"`
	DueDate           time.Time          `bson:"dueDate" json:"dueDate"`
	CompletedAt       *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CreatedBy         string             `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
	DomainEvents      []DomainEvent      `bson:"-" json:"-"`
}

// NewJobParams carries the inputs for opening a job card
type NewJobParams struct {
	JobID       string
	JobCardID   string
	Title       string
	Customer    string
	Quantity    int
	Priority    Priority
	ProcessType string
	DueDate     time.Time
	Stages      []Stage
	CreatedBy   string
}

// NewJob creates a pending Job. With no stages the full department
// sequence is created.
func NewJob(p NewJobParams) (*Job, error) {
	if strings.TrimSpace(p.JobID) == "" {
		return nil, fmt.Errorf("%w: job id is required", ErrInvalidJob)
	}
	if strings.TrimSpace(p.JobCardID) == "" {
		return nil, fmt.Errorf("%w: job card id is required", ErrInvalidJob)
	}
	if p.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidJob)
	}
	if p.Priority.IsZero() {
		p.Priority = PriorityMedium
	}

	now := time.Now()
	stages := p.Stages
	if len(stages) == 0 {
		stages = DefaultStages()
	} else {
		if err := ValidateStages(stages); err != nil {
			return nil, err
		}
		stages = SortStages(stages)
		for i := range stages {
			normalizeStage(&stages[i], now)
		}
	}

	job := &Job{
		JobID:            p.JobID,
		JobCardID:        p.JobCardID,
		Title:            p.Title,
		Customer:         p.Customer,
		Quantity:         p.Quantity,
		Priority:         p.Priority,
		ProcessType:      p.ProcessType,
		Status:           JobStatusPending,
		PrepressStatus:   PrepressStatusPending,
		ProductionStatus: ProductionStatusPending,
		CuttingStatus:    CuttingStatusPending,
		Stages:           stages,
		DueDate:          p.DueDate,
		CreatedBy:        p.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
		DomainEvents:     make([]DomainEvent, 0),
	}
	job.CurrentDepartment = ProjectProgress(job.Stages).CurrentStage

	job.AddDomainEvent(&JobCreatedEvent{
		JobID:     job.JobID,
		JobCardID: job.JobCardID,
		Status:    string(job.Status),
		Priority:  job.Priority.String(),
		Quantity:  job.Quantity,
		DueDate:   job.DueDate,
		CreatedBy: job.CreatedBy,
		CreatedAt: now,
	})

	return job, nil
}

func normalizeStage(s *Stage, now time.Time) {
	if s.Key == "" {
		s.Key = string(s.Department)
	}
	if s.Status == "" {
		s.Status = StageStatusPending
	}
	if s.Status == StageStatusCompleted {
		s.Progress = 100
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
}

// StatusFor returns the job's current status in the domain
func (j *Job) StatusFor(domain Domain) (Status, error) {
	switch domain {
	case DomainJob:
		return j.Status, nil
	case DomainPrepress:
		return j.PrepressStatus, nil
	case DomainProduction:
		return j.ProductionStatus, nil
	case DomainCutting:
		return j.CuttingStatus, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
}

func (j *Job) setStatus(domain Domain, status Status) {
	switch domain {
	case DomainJob:
		j.Status = status
	case DomainPrepress:
		j.PrepressStatus = status
	case DomainProduction:
		j.ProductionStatus = status
	case DomainCutting:
		j.CuttingStatus = status
	}
}

// TransitionParams describes a requested status change
type TransitionParams struct {
	Domain    Domain
	ToStatus  Status
	ActorID   string
	ActorRole string
	Notes     string
}

// Transition moves the job to a new status in one domain. The job is left
// unchanged when the registry rejects the move.
func (j *Job) Transition(registry *StateMachineRegistry, p TransitionParams) error {
	from, err := j.StatusFor(p.Domain)
	if err != nil {
		return err
	}

	to, err := registry.ApplyTransition(p.Domain, from, p.ToStatus)
	if err != nil {
		return err
	}

	now := time.Now()
	j.setStatus(p.Domain, to)
	if p.Domain == DomainJob && to == JobStatusCompleted {
		j.CompletedAt = &now
	}
	j.UpdatedAt = now

	j.AddDomainEvent(&StatusChangedEvent{
		JobID:      j.JobID,
		JobCardID:  j.JobCardID,
		Domain:     p.Domain,
		FromStatus: from,
		Status:     to,
		ActorID:    p.ActorID,
		ActorRole:  p.ActorRole,
		Notes:      p.Notes,
		ChangedAt:  now,
	})

	return nil
}

// StageUpdate describes a change to one department stage. Nil fields are
// left as they are.
type StageUpdate struct {
	Department Department
	Status     StageStatus
	Progress   *int
	AssignedTo *string
}

// UpdateStage applies a stage change and re-derives the current department.
// With strictOrder set a stage may only start once every earlier stage is
// completed or skipped.
func (j *Job) UpdateStage(u StageUpdate, strictOrder bool) error {
	idx := -1
	for i := range j.Stages {
		if j.Stages[i].Department == u.Department {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: job %s has no %s stage", ErrInvalidStage, j.JobCardID, u.Department)
	}
	if !u.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidStage, u.Status)
	}
	if u.Progress != nil && (*u.Progress < 0 || *u.Progress > 100) {
		return fmt.Errorf("%w: progress %d out of range", ErrInvalidStage, *u.Progress)
	}
	if strictOrder && u.Status == StageStatusInProgress {
		if blocking := j.firstUnfinishedBefore(u.Department); blocking != "" {
			return fmt.Errorf("%w: %s must be completed or skipped before %s starts", ErrStageOutOfOrder, blocking, u.Department)
		}
	}

	now := time.Now()
	stage := &j.Stages[idx]
	stage.Status = u.Status
	if u.Progress != nil {
		stage.Progress = *u.Progress
	}
	if u.Status == StageStatusCompleted {
		stage.Progress = 100
	}
	if u.AssignedTo != nil {
		stage.AssignedTo = *u.AssignedTo
	}
	stage.UpdatedAt = now

	j.CurrentDepartment = ProjectProgress(j.Stages).CurrentStage
	j.UpdatedAt = now

	j.AddDomainEvent(&StageUpdatedEvent{
		JobID:             j.JobID,
		JobCardID:         j.JobCardID,
		Department:        stage.Department,
		Status:            stage.Status,
		Progress:          stage.Progress,
		AssignedTo:        stage.AssignedTo,
		CurrentDepartment: j.CurrentDepartment,
		UpdatedAt:         now,
	})

	return nil
}

func (j *Job) firstUnfinishedBefore(d Department) Department {
	pos := d.Position()
	for _, s := range SortStages(j.Stages) {
		if s.Department.Position() >= pos {
			break
		}
		if !s.Status.IsDone() {
			return s.Department
		}
	}
	return ""
}

// IsOpen reports whether the job-domain status is not terminal
func (j *Job) IsOpen() bool {
	return !defaultRegistry.IsTerminal(DomainJob, j.Status)
}

// IsCompleted reports whether the job finished successfully
func (j *Job) IsCompleted() bool {
	return j.Status == JobStatusCompleted
}

// Progress projects the job's stages
func (j *Job) Progress() WorkflowProgress {
	return ProjectProgress(j.Stages)
}

// AddDomainEvent adds a domain event
func (j *Job) AddDomainEvent(event DomainEvent) {
	j.DomainEvents = append(j.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (j *Job) ClearDomainEvents() {
	j.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (j *Job) GetDomainEvents() []DomainEvent {
	return j.DomainEvents
}
