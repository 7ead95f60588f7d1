package application

import (
	"sort"

	"github.com/printflow/job-lifecycle/internal/domain"
)

// ToJobDTO converts a domain Job to JobDTO. assignee is the ledger-derived
// holder, "" when nobody holds the job.
func ToJobDTO(job *domain.Job, assignee string, withProgress bool) *JobDTO {
	if job == nil {
		return nil
	}

	stages := make([]StageDTO, 0, len(job.Stages))
	for _, s := range domain.SortStages(job.Stages) {
		stages = append(stages, ToStageDTO(s))
	}

	dto := &JobDTO{
		ID:          job.JobID,
		JobCardID:   job.JobCardID,
		Title:       job.Title,
		Customer:    job.Customer,
		Quantity:    job.Quantity,
		Priority:    job.Priority.String(),
		ProcessType: job.ProcessType,
		Status:      string(job.Status),
		DomainStatuses: map[string]string{
			string(domain.DomainJob):        string(job.Status),
			string(domain.DomainPrepress):   string(job.PrepressStatus),
			string(domain.DomainProduction): string(job.ProductionStatus),
			string(domain.DomainCutting):    string(job.CuttingStatus),
		},
		CurrentDepartment: string(job.CurrentDepartment),
		DueDate:           job.DueDate,
		CompletedAt:       job.CompletedAt,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
		AssignedToID:      optional(assignee),
		Stages:            stages,
	}

	if withProgress {
		progress := job.Progress()
		dto.Progress = &progress
	}

	return dto
}

// ToStageDTO converts a domain Stage to StageDTO
func ToStageDTO(s domain.Stage) StageDTO {
	return StageDTO{
		Key:        s.Key,
		Department: string(s.Department),
		Status:     string(s.Status),
		Progress:   s.Progress,
		AssignedTo: optional(s.AssignedTo),
		UpdatedAt:  s.UpdatedAt,
	}
}

// ToAssignmentRecordDTO converts a ledger record
func ToAssignmentRecordDTO(r domain.AssignmentRecord) AssignmentRecordDTO {
	return AssignmentRecordDTO{
		ID:               r.ID,
		JobID:            r.JobID,
		JobCardID:        r.JobCardID,
		ActionType:       string(r.ActionType),
		AssignedTo:       optional(r.AssignedTo),
		AssignedBy:       r.AssignedBy,
		PreviousAssignee: optional(r.PreviousAssignee),
		Notes:            r.Notes,
		CreatedAt:        r.CreatedAt,
	}
}

// ToAssignmentRecordDTOs converts records keeping their order
func ToAssignmentRecordDTOs(records []domain.AssignmentRecord) []AssignmentRecordDTO {
	dtos := make([]AssignmentRecordDTO, 0, len(records))
	for _, r := range records {
		dtos = append(dtos, ToAssignmentRecordDTO(r))
	}
	return dtos
}

// ToStateMachineDTO renders a transition table with sorted keys
func ToStateMachineDTO(d domain.Domain, initial domain.Status, table map[domain.Status][]domain.Status) *StateMachineDTO {
	dto := &StateMachineDTO{
		Domain:      string(d),
		Initial:     string(initial),
		Transitions: make(map[string][]string, len(table)),
		Terminal:    make([]string, 0),
	}
	for from, next := range table {
		dto.Transitions[string(from)] = statusStrings(next)
		if len(next) == 0 {
			dto.Terminal = append(dto.Terminal, string(from))
		}
	}
	sort.Strings(dto.Terminal)
	return dto
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
