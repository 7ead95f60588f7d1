package outbox

import (
	"context"
	"time"
)

// Repository defines outbox persistence. Events are written by the job and
// ledger stores inside their own transactions; the relay only reads and
// marks them.
type Repository interface {
	// FindUnpublished returns up to limit retryable events, oldest first
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// CountPending returns the number of retryable unpublished events
	CountPending(ctx context.Context) (int64, error)

	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry bumps the retry count and records the last error
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	// DeletePublished removes events published before the cutoff
	DeletePublished(ctx context.Context, before time.Time) (int64, error)
}
