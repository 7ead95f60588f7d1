package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errors
var (
	ErrJobNotFound        = errors.New("job not found")
	ErrUnknownDomain      = errors.New("unknown status domain")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrStaleAssignment    = errors.New("stale assignment")
	ErrDuplicateJobCard   = errors.New("job card id already exists")
	ErrJobAlreadyAssigned = errors.New("job already has an assignee")
	ErrJobNotAssigned     = errors.New("job has no assignee")
	ErrJobClosed          = errors.New("job is closed")
	ErrInvalidStage       = errors.New("invalid stage")
	ErrStageOutOfOrder    = errors.New("earlier stage not finished")
	ErrInvalidAssignment  = errors.New("invalid assignment record")
	ErrInvalidJob         = errors.New("invalid job")
)

// InvalidTransitionError reports a rejected transition with the current and
// requested status.
type InvalidTransitionError struct {
	Domain  Domain
	From    Status
	To      Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("invalid %s transition from %q to %q (allowed: %s)",
		e.Domain, e.From, e.To, strings.Join(allowed, ", "))
}

// Is lets errors.Is match ErrInvalidTransition
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// StaleAssignmentError reports a reassignment whose declared previous
// assignee no longer matches the ledger.
type StaleAssignmentError struct {
	JobID            string
	CurrentAssignee  string
	ExpectedAssignee string
}

func (e *StaleAssignmentError) Error() string {
	current := e.CurrentAssignee
	if current == "" {
		current = "<none>"
	}
	return fmt.Sprintf("stale assignment for job %s: current assignee %s, expected %s",
		e.JobID, current, e.ExpectedAssignee)
}

// Is lets errors.Is match ErrStaleAssignment
func (e *StaleAssignmentError) Is(target error) bool {
	return target == ErrStaleAssignment
}
