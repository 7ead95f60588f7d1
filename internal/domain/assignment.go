package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// AssignmentAction is the kind of custody change a ledger record captures
type AssignmentAction string

const (
	ActionAssigned   AssignmentAction = "ASSIGNED"
	ActionReassigned AssignmentAction = "REASSIGNED"
	ActionUnassigned AssignmentAction = "UNASSIGNED"
)

// IsValid reports whether the action is known
func (a AssignmentAction) IsValid() bool {
	switch a {
	case ActionAssigned, ActionReassigned, ActionUnassigned:
		return true
	}
	return false
}

// AssignmentRecord is an immutable ledger entry. ID and CreatedAt are set by
// the ledger on append.
type AssignmentRecord struct {
	ID               int64            `bson:"_id" json:"id"`
	JobID            string           `bson:"jobId" json:"jobId"`
	JobCardID        string           `bson:"jobCardId" json:"jobCardId"`
	ActionType       AssignmentAction `bson:"actionType" json:"actionType"`
	AssignedTo       string           `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	AssignedBy       string           `bson:"assignedBy" json:"assignedBy"`
	PreviousAssignee string           `bson:"previousAssignee,omitempty" json:"previousAssignee,omitempty"`
	Notes            string           `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt        time.Time        `bson:"createdAt" json:"createdAt"`
}

// AssignmentCheck validates the current assignee read inside the append
// transaction. A non-nil error aborts the append.
type AssignmentCheck func(current string) error

// NewAssignmentRecord builds an unsaved record for the job
func NewAssignmentRecord(job *Job, action AssignmentAction, assignedTo, assignedBy, previous, notes string) (*AssignmentRecord, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidAssignment, action)
	}
	if strings.TrimSpace(assignedBy) == "" {
		return nil, fmt.Errorf("%w: assignedBy is required", ErrInvalidAssignment)
	}

	switch action {
	case ActionAssigned:
		if assignedTo == "" {
			return nil, fmt.Errorf("%w: assignedTo is required", ErrInvalidAssignment)
		}
		previous = ""
	case ActionReassigned:
		if assignedTo == "" || previous == "" {
			return nil, fmt.Errorf("%w: reassignment needs assignedTo and previousAssignee", ErrInvalidAssignment)
		}
		if assignedTo == previous {
			return nil, fmt.Errorf("%w: job is already held by %s", ErrInvalidAssignment, assignedTo)
		}
	case ActionUnassigned:
		if previous == "" {
			return nil, fmt.Errorf("%w: previousAssignee is required", ErrInvalidAssignment)
		}
		assignedTo = ""
	}

	return &AssignmentRecord{
		JobID:            job.JobID,
		JobCardID:        job.JobCardID,
		ActionType:       action,
		AssignedTo:       assignedTo,
		AssignedBy:       assignedBy,
		PreviousAssignee: previous,
		Notes:            notes,
	}, nil
}

// Check returns the precondition the ledger must verify when appending r:
// an ASSIGNED record needs a job nobody holds, the other actions need the
// declared previous assignee to still be current.
func (r *AssignmentRecord) Check() AssignmentCheck {
	if r.ActionType == ActionAssigned {
		return func(current string) error {
			if current != "" {
				return fmt.Errorf("%w: job %s is held by %s", ErrJobAlreadyAssigned, r.JobCardID, current)
			}
			return nil
		}
	}
	return func(current string) error {
		if current != r.PreviousAssignee {
			return &StaleAssignmentError{
				JobID:            r.JobID,
				CurrentAssignee:  current,
				ExpectedAssignee: r.PreviousAssignee,
			}
		}
		return nil
	}
}

// Event returns the lifecycle event announcing the record
func (r *AssignmentRecord) Event() DomainEvent {
	switch r.ActionType {
	case ActionReassigned:
		return &JobReassignedEvent{
			JobID:            r.JobID,
			JobCardID:        r.JobCardID,
			AssignedTo:       r.AssignedTo,
			PreviousAssignee: r.PreviousAssignee,
			AssignedBy:       r.AssignedBy,
			Notes:            r.Notes,
			ReassignedAt:     r.CreatedAt,
		}
	case ActionUnassigned:
		return &JobUnassignedEvent{
			JobID:            r.JobID,
			JobCardID:        r.JobCardID,
			PreviousAssignee: r.PreviousAssignee,
			AssignedBy:       r.AssignedBy,
			Notes:            r.Notes,
			UnassignedAt:     r.CreatedAt,
		}
	default:
		return &JobAssignedEvent{
			JobID:      r.JobID,
			JobCardID:  r.JobCardID,
			AssignedTo: r.AssignedTo,
			AssignedBy: r.AssignedBy,
			Notes:      r.Notes,
			AssignedAt: r.CreatedAt,
		}
	}
}

// SortRecords orders records oldest first by creation time, then id
func SortRecords(records []AssignmentRecord) []AssignmentRecord {
	out := append([]AssignmentRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CurrentAssignee folds a job's ledger into its current holder. It returns
// "" when the log is empty or ends with UNASSIGNED.
func CurrentAssignee(records []AssignmentRecord) string {
	if len(records) == 0 {
		return ""
	}
	last := SortRecords(records)[len(records)-1]
	if last.ActionType == ActionUnassigned {
		return ""
	}
	return last.AssignedTo
}
