package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/printflow/job-lifecycle/internal/domain"
	"github.com/printflow/job-lifecycle/internal/infrastructure/events"
)

// AssignmentLedger is the append-only custody log on assignment_records
type AssignmentLedger struct {
	store     *Store
	envelopes *events.EnvelopeBuilder
	now       func() time.Time
}

// NewAssignmentLedger creates an AssignmentLedger
func NewAssignmentLedger(store *Store, envelopes *events.EnvelopeBuilder) *AssignmentLedger {
	return &AssignmentLedger{store: store, envelopes: envelopes, now: time.Now}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Append stores record and its lifecycle event once check accepts the
// current assignee. The transaction holds the write lock from the history
// read to the insert, so concurrent appends for a job are serialized. When
// job is set its row, stages and pending events commit with the record.
func (l *AssignmentLedger) Append(ctx context.Context, record *domain.AssignmentRecord, check domain.AssignmentCheck, job *domain.Job) error {
	var jobEvents []domain.DomainEvent
	if job != nil {
		job.UpdatedAt = l.now()
		jobEvents = append([]domain.DomainEvent(nil), job.GetDomainEvents()...)
	}

	return l.store.withTx(ctx, func(tx *sql.Tx) error {
		history, err := readHistory(ctx, tx, record.JobID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(domain.CurrentAssignee(history)); err != nil {
				return err
			}
		}

		record.CreatedAt = l.now().UTC().Truncate(time.Millisecond)
		if n := len(history); n > 0 && record.CreatedAt.Before(history[n-1].CreatedAt) {
			record.CreatedAt = history[n-1].CreatedAt
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO assignment_records
				(job_id, job_card_id, action_type, assigned_to, assigned_by, previous_assignee, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			record.JobID, record.JobCardID, string(record.ActionType), record.AssignedTo, record.AssignedBy,
			record.PreviousAssignee, record.Notes, toMillis(record.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to append assignment record: %w", err)
		}
		if record.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read assignment id: %w", err)
		}

		if job != nil {
			if err := writeJob(ctx, tx, job); err != nil {
				return err
			}
		}

		outboxEvents, err := l.envelopes.Build(ctx, append(jobEvents, record.Event())...)
		if err != nil {
			return err
		}
		return insertOutbox(ctx, tx, outboxEvents)
	})
}

// History returns the job's records oldest first
func (l *AssignmentLedger) History(ctx context.Context, jobID string) ([]domain.AssignmentRecord, error) {
	return readHistory(ctx, l.store.db, jobID)
}

// CurrentAssignee folds the job's history; "" means nobody holds the job
func (l *AssignmentLedger) CurrentAssignee(ctx context.Context, jobID string) (string, error) {
	records, err := readHistory(ctx, l.store.db, jobID)
	if err != nil {
		return "", err
	}
	return domain.CurrentAssignee(records), nil
}

// JobsHeldBy returns the jobs whose latest record leaves them with userID
func (l *AssignmentLedger) JobsHeldBy(ctx context.Context, userID string) ([]string, error) {
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT r.job_id
		FROM assignment_records r
		WHERE r.id = (
			SELECT l.id FROM assignment_records l
			WHERE l.job_id = r.job_id
			ORDER BY l.created_at DESC, l.id DESC
			LIMIT 1
		)
		AND r.action_type != ?
		AND r.assigned_to = ?
		ORDER BY r.job_id`,
		string(domain.ActionUnassigned), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve held jobs: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to decode job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func readHistory(ctx context.Context, q queryer, jobID string) ([]domain.AssignmentRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, job_id, job_card_id, action_type, assigned_to, assigned_by, previous_assignee, notes, created_at
		FROM assignment_records
		WHERE job_id = ?
		ORDER BY created_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to read assignment history: %w", err)
	}
	defer rows.Close()

	records := []domain.AssignmentRecord{}
	for rows.Next() {
		var (
			r         domain.AssignmentRecord
			action    string
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.JobID, &r.JobCardID, &action, &r.AssignedTo, &r.AssignedBy,
			&r.PreviousAssignee, &r.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to decode assignment record: %w", err)
		}
		r.ActionType = domain.AssignmentAction(action)
		r.CreatedAt = fromMillis(createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}
