package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/printflow/job-lifecycle/pkg/errors"
	"github.com/printflow/job-lifecycle/pkg/logging"
	"github.com/printflow/job-lifecycle/pkg/metrics"

	"github.com/printflow/job-lifecycle/internal/domain"
)

// Notifier broadcasts lifecycle events to connected actors. Delivery is
// best-effort; a returned error never undoes the mutation that raised the
// events.
type Notifier interface {
	Notify(ctx context.Context, actorRole string, events ...domain.DomainEvent) error
}

// ServiceConfig tunes the lifecycle service
type ServiceConfig struct {
	StrictStageOrder bool
	StatsCacheTTL    time.Duration
}

// JobLifecycleService validates intents against the state machines, appends
// to the assignment ledger, and triggers notifications.
type JobLifecycleService struct {
	jobs     domain.JobRepository
	ledger   domain.AssignmentLedger
	registry *domain.StateMachineRegistry
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *logging.Logger
	stats    *statsCache
	strict   bool
	now      func() time.Time
}

// NewJobLifecycleService creates a new JobLifecycleService. notifier and m
// may be nil.
func NewJobLifecycleService(
	jobs domain.JobRepository,
	ledger domain.AssignmentLedger,
	registry *domain.StateMachineRegistry,
	notifier Notifier,
	m *metrics.Metrics,
	logger *logging.Logger,
	cfg ServiceConfig,
) *JobLifecycleService {
	return &JobLifecycleService{
		jobs:     jobs,
		ledger:   ledger,
		registry: registry,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		stats:    newStatsCache(cfg.StatsCacheTTL),
		strict:   cfg.StrictStageOrder,
		now:      time.Now,
	}
}

// CreateJob opens a new job card
func (s *JobLifecycleService) CreateJob(ctx context.Context, cmd CreateJobCommand) (*JobDTO, error) {
	var priority domain.Priority
	if cmd.Priority != "" {
		p, err := domain.NewPriority(strings.ToUpper(cmd.Priority))
		if err != nil {
			return nil, errors.ErrValidation(fmt.Sprintf("invalid priority %q", cmd.Priority))
		}
		priority = p
	}

	existing, err := s.jobs.FindByJobCardID(ctx, cmd.JobCardID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to look up job card", "jobCardId", cmd.JobCardID)
		return nil, fmt.Errorf("failed to look up job card: %w", err)
	}
	if existing != nil {
		return nil, errors.ErrConflict(fmt.Sprintf("job card %s already exists", cmd.JobCardID))
	}

	job, err := domain.NewJob(domain.NewJobParams{
		JobID:       uuid.NewString(),
		JobCardID:   cmd.JobCardID,
		Title:       cmd.Title,
		Customer:    cmd.Customer,
		Quantity:    cmd.Quantity,
		Priority:    priority,
		ProcessType: cmd.ProcessType,
		DueDate:     cmd.DueDate,
		Stages:      toDomainStages(cmd.Stages),
		CreatedBy:   cmd.CreatedBy,
	})
	if err != nil {
		return nil, errors.ErrValidation(err.Error())
	}

	if err := s.saveAndNotify(ctx, job, "merchandiser"); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordJobCreated(job.Priority.String())
	}
	s.logger.Info("Created job", "jobId", job.JobID, "jobCardId", job.JobCardID, "stages", len(job.Stages))
	return ToJobDTO(job, "", true), nil
}

// GetJob retrieves a job with its derived assignee and progress
func (s *JobLifecycleService) GetJob(ctx context.Context, query GetJobQuery) (*JobDTO, error) {
	job, err := s.findJob(ctx, query.JobID)
	if err != nil {
		return nil, err
	}

	assignee, err := s.ledger.CurrentAssignee(ctx, job.JobID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to derive assignee", "jobId", job.JobID)
		return nil, fmt.Errorf("failed to derive assignee: %w", err)
	}

	return ToJobDTO(job, assignee, true), nil
}

// ListJobs lists jobs matching the query. AssignedTo is resolved through
// the ledger.
func (s *JobLifecycleService) ListJobs(ctx context.Context, query ListJobsQuery) ([]JobDTO, int64, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 {
		query.PageSize = 20
	}

	filter := domain.JobFilter{
		Status:     domain.Status(query.Status),
		Department: domain.Department(query.Department),
		Priority:   strings.ToUpper(query.Priority),
	}
	if filter.Department != "" && !filter.Department.IsValid() {
		return nil, 0, errors.ErrValidation(fmt.Sprintf("unknown department %q", query.Department))
	}

	if query.AssignedTo != "" {
		ids, err := s.ledger.JobsHeldBy(ctx, query.AssignedTo)
		if err != nil {
			s.logger.WithError(err).Error("Failed to resolve held jobs", "userId", query.AssignedTo)
			return nil, 0, fmt.Errorf("failed to resolve held jobs: %w", err)
		}
		if len(ids) == 0 {
			return []JobDTO{}, 0, nil
		}
		filter.JobIDs = ids
	}

	total, err := s.jobs.Count(ctx, filter)
	if err != nil {
		s.logger.WithError(err).Error("Failed to count jobs")
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	filter.Limit = int(query.PageSize)
	filter.Offset = int((query.Page - 1) * query.PageSize)
	jobs, err := s.jobs.FindAll(ctx, filter)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list jobs")
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}

	dtos := make([]JobDTO, 0, len(jobs))
	for _, job := range jobs {
		assignee := query.AssignedTo
		if assignee == "" {
			if assignee, err = s.ledger.CurrentAssignee(ctx, job.JobID); err != nil {
				return nil, 0, fmt.Errorf("failed to derive assignee: %w", err)
			}
		}
		dtos = append(dtos, *ToJobDTO(job, assignee, false))
	}

	return dtos, total, nil
}

// TransitionJob applies a validated status change in one domain
func (s *JobLifecycleService) TransitionJob(ctx context.Context, cmd TransitionJobCommand) (*JobDTO, error) {
	d := domain.Domain(cmd.Domain)
	if !s.registry.HasDomain(d) {
		return nil, errors.ErrValidation(fmt.Sprintf("unknown status domain %q", cmd.Domain))
	}

	job, err := s.findJob(ctx, cmd.JobID)
	if err != nil {
		return nil, err
	}

	if err := job.Transition(s.registry, domain.TransitionParams{
		Domain:    d,
		ToStatus:  domain.Status(cmd.ToStatus),
		ActorID:   cmd.ActorID,
		ActorRole: cmd.ActorRole,
		Notes:     cmd.Notes,
	}); err != nil {
		s.recordTransition(cmd.Domain, "rejected")
		s.logger.Warn("Rejected transition",
			"jobId", job.JobID,
			"domain", cmd.Domain,
			"toStatus", cmd.ToStatus,
			"error", err.Error(),
		)
		return nil, mapDomainError(err)
	}

	if d == domain.DomainPrepress && job.PrepressStatus == domain.PrepressStatusAssigned {
		holder, err := s.ledger.CurrentAssignee(ctx, job.JobID)
		if err != nil {
			return nil, fmt.Errorf("failed to derive assignee: %w", err)
		}
		if holder == "" {
			s.recordTransition(cmd.Domain, "rejected")
			return nil, mapDomainError(fmt.Errorf("%w: assign the job to move prepress to %s",
				domain.ErrJobNotAssigned, domain.PrepressStatusAssigned))
		}
	}

	if err := s.saveAndNotify(ctx, job, cmd.ActorRole); err != nil {
		return nil, err
	}

	s.recordTransition(cmd.Domain, "applied")
	s.logger.Info("Transitioned job", "jobId", job.JobID, "jobCardId", job.JobCardID, "domain", cmd.Domain, "toStatus", cmd.ToStatus)
	return s.jobWithAssignee(ctx, job)
}

// NextStatuses returns the legal successors of the job's current status
func (s *JobLifecycleService) NextStatuses(ctx context.Context, query NextStatusesQuery) (*NextStatusesDTO, error) {
	d := domain.Domain(query.Domain)
	if !s.registry.HasDomain(d) {
		return nil, errors.ErrValidation(fmt.Sprintf("unknown status domain %q", query.Domain))
	}

	job, err := s.findJob(ctx, query.JobID)
	if err != nil {
		return nil, err
	}

	current, err := job.StatusFor(d)
	if err != nil {
		return nil, mapDomainError(err)
	}

	return &NextStatusesDTO{
		JobID:         job.JobID,
		Domain:        query.Domain,
		CurrentStatus: string(current),
		NextStatuses:  statusStrings(s.registry.NextStatuses(d, current)),
		Terminal:      s.registry.IsTerminal(d, current),
	}, nil
}

// GetStateMachine returns a domain's transition table
func (s *JobLifecycleService) GetStateMachine(_ context.Context, query StateMachineQuery) (*StateMachineDTO, error) {
	d := domain.Domain(query.Domain)
	table, err := s.registry.Table(d)
	if err != nil {
		return nil, errors.ErrNotFoundWithID("state machine", query.Domain)
	}
	initial, _ := s.registry.InitialStatus(d)
	return ToStateMachineDTO(d, initial, table), nil
}

// UpdateStage changes one department stage of a job
func (s *JobLifecycleService) UpdateStage(ctx context.Context, cmd UpdateStageCommand) (*JobDTO, error) {
	job, err := s.findJob(ctx, cmd.JobID)
	if err != nil {
		return nil, err
	}

	if err := job.UpdateStage(domain.StageUpdate{
		Department: domain.Department(cmd.Department),
		Status:     domain.StageStatus(cmd.Status),
		Progress:   cmd.Progress,
		AssignedTo: cmd.AssignedTo,
	}, s.strict); err != nil {
		return nil, mapDomainError(err)
	}

	if err := s.saveAndNotify(ctx, job, ""); err != nil {
		return nil, err
	}

	s.logger.Info("Updated stage", "jobId", job.JobID, "department", cmd.Department, "status", cmd.Status)
	return s.jobWithAssignee(ctx, job)
}

// GetWorkflowProgress projects a job's stages
func (s *JobLifecycleService) GetWorkflowProgress(ctx context.Context, query GetJobQuery) (*domain.WorkflowProgress, error) {
	job, err := s.findJob(ctx, query.JobID)
	if err != nil {
		return nil, err
	}
	progress := job.Progress()
	return &progress, nil
}

// AssignJob gives a job nobody holds to a user
func (s *JobLifecycleService) AssignJob(ctx context.Context, cmd AssignJobCommand) (*AssignmentResultDTO, error) {
	return s.appendAssignment(ctx, cmd.JobID, func(job *domain.Job) (*domain.AssignmentRecord, error) {
		return domain.NewAssignmentRecord(job, domain.ActionAssigned, cmd.AssignedTo, cmd.AssignedBy, "", cmd.Notes)
	})
}

// ReassignJob moves a job to another user. The caller's last-known holder
// is checked against the ledger in the same transaction as the append.
func (s *JobLifecycleService) ReassignJob(ctx context.Context, cmd ReassignJobCommand) (*AssignmentResultDTO, error) {
	return s.appendAssignment(ctx, cmd.JobID, func(job *domain.Job) (*domain.AssignmentRecord, error) {
		return domain.NewAssignmentRecord(job, domain.ActionReassigned, cmd.AssignedTo, cmd.AssignedBy, cmd.PreviousAssignee, cmd.Notes)
	})
}

// UnassignJob releases a job from its current holder
func (s *JobLifecycleService) UnassignJob(ctx context.Context, cmd UnassignJobCommand) (*AssignmentResultDTO, error) {
	return s.appendAssignment(ctx, cmd.JobID, func(job *domain.Job) (*domain.AssignmentRecord, error) {
		current, err := s.ledger.CurrentAssignee(ctx, job.JobID)
		if err != nil {
			return nil, fmt.Errorf("failed to derive assignee: %w", err)
		}
		if current == "" {
			return nil, domain.ErrJobNotAssigned
		}
		return domain.NewAssignmentRecord(job, domain.ActionUnassigned, "", cmd.AssignedBy, current, cmd.Notes)
	})
}

// GetAssignmentHistory returns a job's ledger
func (s *JobLifecycleService) GetAssignmentHistory(ctx context.Context, query AssignmentHistoryQuery) ([]AssignmentRecordDTO, error) {
	job, err := s.findJob(ctx, query.JobID)
	if err != nil {
		return nil, err
	}

	records, err := s.ledger.History(ctx, job.JobID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read assignment history", "jobId", job.JobID)
		return nil, fmt.Errorf("failed to read assignment history: %w", err)
	}

	if query.Descending {
		for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
			records[i], records[j] = records[j], records[i]
		}
	}

	return ToAssignmentRecordDTOs(records), nil
}

// GetDepartmentStats computes WIP, aging and SLA views over all jobs
func (s *JobLifecycleService) GetDepartmentStats(ctx context.Context) (*domain.DepartmentStats, error) {
	now := s.now()
	if cached, ok := s.stats.get(now); ok {
		return cached, nil
	}

	gen := s.stats.generation()
	jobs, err := s.jobs.FindAll(ctx, domain.JobFilter{})
	if err != nil {
		s.logger.WithError(err).Error("Failed to load jobs for stats")
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}

	stats := domain.ComputeDepartmentStats(jobs, now)
	s.stats.put(&stats, now, gen)
	return &stats, nil
}

func (s *JobLifecycleService) appendAssignment(
	ctx context.Context,
	jobID string,
	build func(job *domain.Job) (*domain.AssignmentRecord, error),
) (*AssignmentResultDTO, error) {
	job, err := s.findJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	record, err := build(job)
	if err != nil {
		return nil, mapDomainError(err)
	}

	// Closed jobs can still be released, never handed out
	if record.ActionType != domain.ActionUnassigned && s.registry.IsTerminal(domain.DomainJob, job.Status) {
		s.recordAssignment(record.ActionType, "rejected")
		return nil, mapDomainError(fmt.Errorf("%w: job %s is %s", domain.ErrJobClosed, job.JobCardID, job.Status))
	}

	changed, err := s.applyCustodyStatus(job, record)
	if err != nil {
		s.recordAssignment(record.ActionType, "rejected")
		return nil, mapDomainError(err)
	}
	var saveJob *domain.Job
	if changed {
		saveJob = job
	}
	jobEvents := append([]domain.DomainEvent(nil), job.GetDomainEvents()...)

	if err := s.ledger.Append(ctx, record, record.Check(), saveJob); err != nil {
		s.recordAssignment(record.ActionType, "rejected")
		var stale *domain.StaleAssignmentError
		if stderrors.As(err, &stale) {
			s.logger.Warn("Stale assignment conflict",
				"jobId", job.JobID,
				"currentAssignee", stale.CurrentAssignee,
				"expectedAssignee", stale.ExpectedAssignee,
			)
		}
		return nil, mapDomainError(err)
	}

	if changed {
		job.ClearDomainEvents()
		s.recordTransition(string(domain.DomainPrepress), "applied")
	}
	s.recordAssignment(record.ActionType, "appended")
	s.stats.invalidate()
	s.notify(ctx, "", append(jobEvents, record.Event())...)

	s.logger.Info("Appended assignment record",
		"jobId", job.JobID,
		"jobCardId", job.JobCardID,
		"recordId", record.ID,
		"action", string(record.ActionType),
		"assignedTo", record.AssignedTo,
		"prepressStatus", string(job.PrepressStatus),
	)

	current := record.AssignedTo
	if record.ActionType == domain.ActionUnassigned {
		current = ""
	}
	return &AssignmentResultDTO{
		Record:          ToAssignmentRecordDTO(*record),
		CurrentAssignee: optional(current),
	}, nil
}

// applyCustodyStatus moves prepress from PENDING to ASSIGNED when the record
// gives the job a holder. It reports whether the job changed.
func (s *JobLifecycleService) applyCustodyStatus(job *domain.Job, record *domain.AssignmentRecord) (bool, error) {
	if record.ActionType == domain.ActionUnassigned || job.PrepressStatus != domain.PrepressStatusPending {
		return false, nil
	}
	err := job.Transition(s.registry, domain.TransitionParams{
		Domain:   domain.DomainPrepress,
		ToStatus: domain.PrepressStatusAssigned,
		ActorID:  record.AssignedBy,
		Notes:    record.Notes,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *JobLifecycleService) findJob(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get job", "jobId", jobID)
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return nil, errors.ErrNotFoundWithID("job", jobID)
	}
	return job, nil
}

func (s *JobLifecycleService) jobWithAssignee(ctx context.Context, job *domain.Job) (*JobDTO, error) {
	assignee, err := s.ledger.CurrentAssignee(ctx, job.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive assignee: %w", err)
	}
	return ToJobDTO(job, assignee, true), nil
}

// saveAndNotify persists the job with its events in the outbox, then
// broadcasts the same events to local sessions.
func (s *JobLifecycleService) saveAndNotify(ctx context.Context, job *domain.Job, actorRole string) error {
	events := append([]domain.DomainEvent(nil), job.GetDomainEvents()...)

	if err := s.jobs.Save(ctx, job); err != nil {
		if stderrors.Is(err, domain.ErrDuplicateJobCard) {
			return errors.ErrConflict(fmt.Sprintf("job card %s already exists", job.JobCardID))
		}
		s.logger.WithError(err).Error("Failed to save job", "jobId", job.JobID)
		return fmt.Errorf("failed to save job: %w", err)
	}
	job.ClearDomainEvents()
	s.stats.invalidate()

	s.notify(ctx, actorRole, events...)
	return nil
}

func (s *JobLifecycleService) notify(ctx context.Context, actorRole string, events ...domain.DomainEvent) {
	if s.notifier == nil || len(events) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, actorRole, events...); err != nil {
		for _, e := range events {
			if s.metrics != nil {
				s.metrics.RecordNotificationFailure(e.EventType())
			}
		}
		s.logger.WithError(err).Warn("Lifecycle notification failed; clients will catch up on their next refresh",
			"events", len(events))
	}
}

func (s *JobLifecycleService) recordTransition(d, result string) {
	if s.metrics != nil {
		s.metrics.RecordTransition(d, result)
	}
}

func (s *JobLifecycleService) recordAssignment(action domain.AssignmentAction, result string) {
	if s.metrics != nil {
		s.metrics.RecordAssignment(string(action), result)
	}
}
