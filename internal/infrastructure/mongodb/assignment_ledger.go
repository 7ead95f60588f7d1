package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/printflow/job-lifecycle/internal/domain"
	"github.com/printflow/job-lifecycle/internal/infrastructure/events"
	pkgmongo "github.com/printflow/job-lifecycle/pkg/mongodb"
	outboxMongo "github.com/printflow/job-lifecycle/pkg/outbox/mongodb"
)

const (
	assignmentsCollection = "assignment_records"
	countersCollection    = "counters"
	assignmentCounterID   = "assignment_records"
)

// AssignmentLedger is the append-only custody log. Every append bumps a
// shared counter document, so concurrent appends hit a write conflict and
// the driver reruns the losing transaction against the new ledger state.
type AssignmentLedger struct {
	client     *pkgmongo.InstrumentedClient
	records    *pkgmongo.InstrumentedCollection
	jobs       *pkgmongo.InstrumentedCollection
	counters   *pkgmongo.InstrumentedCollection
	outboxRepo *outboxMongo.OutboxRepository
	envelopes  *events.EnvelopeBuilder
}

// NewAssignmentLedger creates an AssignmentLedger
func NewAssignmentLedger(client *pkgmongo.InstrumentedClient, envelopes *events.EnvelopeBuilder) *AssignmentLedger {
	return &AssignmentLedger{
		client:     client,
		records:    client.Collection(assignmentsCollection),
		jobs:       client.Collection(jobsCollection),
		counters:   client.Collection(countersCollection),
		outboxRepo: outboxMongo.NewOutboxRepository(client.Database()),
		envelopes:  envelopes,
	}
}

// EnsureIndexes creates the ledger indexes
func (l *AssignmentLedger) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "jobId", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "assignedTo", Value: 1}}},
	}
	if err := l.records.CreateIndexes(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create assignment indexes: %w", err)
	}
	return nil
}

// Append stores record and its lifecycle event once check accepts the
// current assignee. When job is set the job document and its pending events
// commit in the same transaction.
func (l *AssignmentLedger) Append(ctx context.Context, record *domain.AssignmentRecord, check domain.AssignmentCheck, job *domain.Job) error {
	var jobEvents []domain.DomainEvent
	if job != nil {
		job.UpdatedAt = time.Now()
		jobEvents = append([]domain.DomainEvent(nil), job.GetDomainEvents()...)
	}

	return l.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		id, err := l.nextID(sessCtx)
		if err != nil {
			return err
		}

		history, err := l.history(sessCtx, record.JobID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(domain.CurrentAssignee(history)); err != nil {
				return err
			}
		}

		record.ID = id
		record.CreatedAt = pkgmongo.Now()
		if n := len(history); n > 0 && record.CreatedAt.Before(history[n-1].CreatedAt) {
			record.CreatedAt = history[n-1].CreatedAt
		}

		if err := l.records.InsertOne(sessCtx, record); err != nil {
			return fmt.Errorf("failed to append assignment record: %w", err)
		}

		if job != nil {
			if err := replaceJob(sessCtx, l.jobs, job); err != nil {
				return err
			}
		}

		outboxEvents, err := l.envelopes.Build(sessCtx, append(jobEvents, record.Event())...)
		if err != nil {
			return err
		}
		return l.outboxRepo.Insert(sessCtx, outboxEvents)
	})
}

func (l *AssignmentLedger) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := l.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": assignmentCounterID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		&counter, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate assignment id: %w", err)
	}
	return counter.Seq, nil
}

// History returns the job's records oldest first
func (l *AssignmentLedger) History(ctx context.Context, jobID string) ([]domain.AssignmentRecord, error) {
	return l.history(ctx, jobID)
}

func (l *AssignmentLedger) history(ctx context.Context, jobID string) ([]domain.AssignmentRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	records := []domain.AssignmentRecord{}
	if err := l.records.Find(ctx, bson.M{"jobId": jobID}, &records, opts); err != nil {
		return nil, fmt.Errorf("failed to read assignment history: %w", err)
	}
	return records, nil
}

// CurrentAssignee folds the job's history; "" means nobody holds the job
func (l *AssignmentLedger) CurrentAssignee(ctx context.Context, jobID string) (string, error) {
	records, err := l.history(ctx, jobID)
	if err != nil {
		return "", err
	}
	return domain.CurrentAssignee(records), nil
}

// JobsHeldBy folds every job's history server-side and returns the jobs
// whose last record leaves them with userID
func (l *AssignmentLedger) JobsHeldBy(ctx context.Context, userID string) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "jobId", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$jobId"},
			{Key: "actionType", Value: bson.M{"$last": "$actionType"}},
			{Key: "assignedTo", Value: bson.M{"$last": "$assignedTo"}},
		}}},
		{{Key: "$match", Value: bson.M{
			"assignedTo": userID,
			"actionType": bson.M{"$ne": domain.ActionUnassigned},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	var rows []struct {
		JobID string `bson:"_id"`
	}
	if err := l.records.Aggregate(ctx, pipeline, &rows); err != nil {
		return nil, fmt.Errorf("failed to resolve held jobs: %w", err)
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.JobID
	}
	return ids, nil
}
