package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/printflow/job-lifecycle/internal/domain"
	"github.com/printflow/job-lifecycle/internal/infrastructure/events"
)

const jobColumns = `job_id, job_card_id, title, customer, quantity, priority, process_type,
	status, prepress_status, production_status, cutting_status, current_department,
	due_date, completed_at, created_by, created_at, updated_at`

// JobRepository stores a job row plus one row per stage
type JobRepository struct {
	store     *Store
	envelopes *events.EnvelopeBuilder
}

// NewJobRepository creates a JobRepository
func NewJobRepository(store *Store, envelopes *events.EnvelopeBuilder) *JobRepository {
	return &JobRepository{store: store, envelopes: envelopes}
}

// Save upserts the job, replaces its stage rows and writes its pending
// domain events to the outbox in one transaction
func (r *JobRepository) Save(ctx context.Context, job *domain.Job) error {
	job.UpdatedAt = time.Now()

	outboxEvents, err := r.envelopes.Build(ctx, job.GetDomainEvents()...)
	if err != nil {
		return err
	}

	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := writeJob(ctx, tx, job); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, outboxEvents)
	})
}

// writeJob upserts the job row and replaces its stage rows inside tx
func writeJob(ctx context.Context, tx *sql.Tx, job *domain.Job) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			job_card_id = excluded.job_card_id,
			title = excluded.title,
			customer = excluded.customer,
			quantity = excluded.quantity,
			priority = excluded.priority,
			process_type = excluded.process_type,
			status = excluded.status,
			prepress_status = excluded.prepress_status,
			production_status = excluded.production_status,
			cutting_status = excluded.cutting_status,
			current_department = excluded.current_department,
			due_date = excluded.due_date,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`,
		job.JobID, job.JobCardID, job.Title, job.Customer, job.Quantity, job.Priority.String(),
		job.ProcessType, string(job.Status), string(job.PrepressStatus), string(job.ProductionStatus),
		string(job.CuttingStatus), string(job.CurrentDepartment), toMillis(job.DueDate),
		nullableMillis(job.CompletedAt), job.CreatedBy, toMillis(job.CreatedAt), toMillis(job.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateJobCard
		}
		return fmt.Errorf("failed to save job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM stages WHERE job_id = ?", job.JobID); err != nil {
		return fmt.Errorf("failed to clear stages: %w", err)
	}
	for i, s := range job.Stages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stages (job_id, department, stage_key, position, status, progress, assigned_to, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			job.JobID, string(s.Department), s.Key, i, string(s.Status), s.Progress, s.AssignedTo,
			toMillis(s.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to save stage %s: %w", s.Department, err)
		}
	}

	return nil
}

// FindByID returns nil, nil when the job does not exist
func (r *JobRepository) FindByID(ctx context.Context, jobID string) (*domain.Job, error) {
	return r.findOne(ctx, "job_id = ?", jobID)
}

// FindByJobCardID returns nil, nil when no job carries the card id
func (r *JobRepository) FindByJobCardID(ctx context.Context, jobCardID string) (*domain.Job, error) {
	return r.findOne(ctx, "job_card_id = ?", jobCardID)
}

func (r *JobRepository) findOne(ctx context.Context, where string, arg any) (*domain.Job, error) {
	row := r.store.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE "+where, arg)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}

	stages, err := r.loadStages(ctx, []string{job.JobID})
	if err != nil {
		return nil, err
	}
	job.Stages = stages[job.JobID]
	return job, nil
}

// FindAll lists matching jobs newest first
func (r *JobRepository) FindAll(ctx context.Context, filter domain.JobFilter) ([]*domain.Job, error) {
	where, args := jobWhere(filter)
	query := "SELECT " + jobColumns + " FROM jobs" + where + " ORDER BY created_at DESC, job_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	} else if filter.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	var (
		jobs []*domain.Job
		ids  []string
	)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to decode job: %w", err)
		}
		jobs = append(jobs, job)
		ids = append(ids, job.JobID)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	_ = rows.Close()

	stages, err := r.loadStages(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		job.Stages = stages[job.JobID]
	}
	return jobs, nil
}

// Count counts matching jobs, ignoring the filter's paging
func (r *JobRepository) Count(ctx context.Context, filter domain.JobFilter) (int64, error) {
	where, args := jobWhere(filter)
	var n int64
	if err := r.store.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM jobs"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return n, nil
}

func jobWhere(filter domain.JobFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Department != "" {
		clauses = append(clauses, "current_department = ?")
		args = append(args, string(filter.Department))
	}
	if filter.Priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, filter.Priority)
	}
	if filter.JobIDs != nil {
		if len(filter.JobIDs) == 0 {
			clauses = append(clauses, "0")
		} else {
			clauses = append(clauses, "job_id IN ("+placeholders(len(filter.JobIDs))+")")
			for _, id := range filter.JobIDs {
				args = append(args, id)
			}
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *JobRepository) loadStages(ctx context.Context, jobIDs []string) (map[string][]domain.Stage, error) {
	out := make(map[string][]domain.Stage, len(jobIDs))
	if len(jobIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(jobIDs))
	for i, id := range jobIDs {
		args[i] = id
	}
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT job_id, department, stage_key, status, progress, assigned_to, updated_at
		FROM stages
		WHERE job_id IN (`+placeholders(len(jobIDs))+`)
		ORDER BY job_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load stages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			jobID, department, status string
			s                         domain.Stage
			updatedAt                 int64
		)
		if err := rows.Scan(&jobID, &department, &s.Key, &status, &s.Progress, &s.AssignedTo, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to decode stage: %w", err)
		}
		s.Department = domain.Department(department)
		s.Status = domain.StageStatus(status)
		s.UpdatedAt = fromMillis(updatedAt)
		out[jobID] = append(out[jobID], s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job                                    domain.Job
		priority, status, prepress, production string
		cutting, department                    string
		dueDate, createdAt, updatedAt          int64
		completedAt                            sql.NullInt64
	)
	err := row.Scan(&job.JobID, &job.JobCardID, &job.Title, &job.Customer, &job.Quantity, &priority,
		&job.ProcessType, &status, &prepress, &production, &cutting, &department,
		&dueDate, &completedAt, &job.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if job.Priority, err = domain.NewPriority(priority); err != nil {
		return nil, err
	}
	job.Status = domain.Status(status)
	job.PrepressStatus = domain.Status(prepress)
	job.ProductionStatus = domain.Status(production)
	job.CuttingStatus = domain.Status(cutting)
	job.CurrentDepartment = domain.Department(department)
	job.DueDate = fromMillis(dueDate)
	job.CompletedAt = fromNullableMillis(completedAt)
	job.CreatedAt = fromMillis(createdAt)
	job.UpdatedAt = fromMillis(updatedAt)
	return &job, nil
}
