package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/printflow/job-lifecycle/pkg/outbox"
)

// OutboxRepository implements outbox.Repository on the outbox_events table
type OutboxRepository struct {
	store *Store
}

var _ outbox.Repository = (*OutboxRepository)(nil)

// NewOutboxRepository creates an OutboxRepository
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

// insertOutbox writes events inside the caller's transaction
func insertOutbox(ctx context.Context, tx *sql.Tx, events []*outbox.OutboxEvent) error {
	for _, e := range events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outbox_events
				(id, aggregate_id, event_type, topic, payload, created_at, retry_count, max_retries)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.AggregateID, e.EventType, e.Topic, []byte(e.Payload),
			toMillis(e.CreatedAt), e.RetryCount, e.MaxRetries,
		)
		if err != nil {
			return fmt.Errorf("failed to save outbox event: %w", err)
		}
	}
	return nil
}

// FindUnpublished returns retryable events, oldest first
func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, topic, payload, created_at, published_at,
		       retry_count, last_error, max_retries
		FROM outbox_events
		WHERE published_at IS NULL AND retry_count < max_retries
		ORDER BY created_at, rowid
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find unpublished events: %w", err)
	}
	defer rows.Close()

	var events []*outbox.OutboxEvent
	for rows.Next() {
		var (
			e           outbox.OutboxEvent
			payload     []byte
			createdAt   int64
			publishedAt sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Topic, &payload, &createdAt,
			&publishedAt, &e.RetryCount, &e.LastError, &e.MaxRetries); err != nil {
			return nil, fmt.Errorf("failed to decode outbox event: %w", err)
		}
		e.Payload = payload
		e.CreatedAt = fromMillis(createdAt)
		e.PublishedAt = fromNullableMillis(publishedAt)
		events = append(events, &e)
	}
	return events, rows.Err()
}

// CountPending counts retryable unpublished events
func (r *OutboxRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.store.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM outbox_events WHERE published_at IS NULL AND retry_count < max_retries",
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending events: %w", err)
	}
	return n, nil
}

// MarkPublished stamps the event's publish time
func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	res, err := r.store.execWithRetry(ctx,
		"UPDATE outbox_events SET published_at = ? WHERE id = ?", toMillis(time.Now()), eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event as published: %w", err)
	}
	return requireRow(res, eventID)
}

// IncrementRetry bumps the retry count and records the last error
func (r *OutboxRepository) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	res, err := r.store.execWithRetry(ctx,
		"UPDATE outbox_events SET retry_count = retry_count + 1, last_error = ? WHERE id = ?", errorMsg, eventID)
	if err != nil {
		return fmt.Errorf("failed to increment retry count: %w", err)
	}
	return requireRow(res, eventID)
}

// DeletePublished removes events published before the cutoff
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.store.execWithRetry(ctx,
		"DELETE FROM outbox_events WHERE published_at IS NOT NULL AND published_at < ?", toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete published events: %w", err)
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result, eventID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("event not found: %s", eventID)
	}
	return nil
}
