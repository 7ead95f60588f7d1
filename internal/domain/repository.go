package domain

import "context"

// JobFilter narrows job listings. Zero values match everything.
type JobFilter struct {
	Status     Status
	Department Department
	Priority   string
	JobIDs     []string
	Limit      int
	Offset     int
}

// JobRepository persists jobs with their stages. Save writes the job's
// pending domain events to the outbox in the same transaction.
type JobRepository interface {
	Save(ctx context.Context, job *Job) error
	FindByID(ctx context.Context, jobID string) (*Job, error)
	FindByJobCardID(ctx context.Context, jobCardID string) (*Job, error)
	FindAll(ctx context.Context, filter JobFilter) ([]*Job, error)
	Count(ctx context.Context, filter JobFilter) (int64, error)
}

// AssignmentLedger is the append-only custody log. Records are never
// updated or deleted.
type AssignmentLedger interface {
	// Append assigns the next id and creation time, runs check against the
	// current assignee read in the same transaction, then stores the record
	// and its lifecycle event. A nil check appends unconditionally. A non-nil
	// job is saved with its pending events in that same transaction.
	Append(ctx context.Context, record *AssignmentRecord, check AssignmentCheck, job *Job) error
	// History returns the job's records oldest first
	History(ctx context.Context, jobID string) ([]AssignmentRecord, error)
	CurrentAssignee(ctx context.Context, jobID string) (string, error)
	// JobsHeldBy returns the ids of jobs whose current assignee is userID
	JobsHeldBy(ctx context.Context, userID string) ([]string, error)
}
