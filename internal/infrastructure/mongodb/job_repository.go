package mongodb

import (
	"context"
	"errors"
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

const jobsCollection = "jobs"

// JobRepository stores jobs with their stages embedded
type JobRepository struct {
	client     *pkgmongo.InstrumentedClient
	collection *pkgmongo.InstrumentedCollection
	outboxRepo *outboxMongo.OutboxRepository
	envelopes  *events.EnvelopeBuilder
}

// NewJobRepository creates a JobRepository. Call EnsureIndexes once at
// startup.
func NewJobRepository(client *pkgmongo.InstrumentedClient, envelopes *events.EnvelopeBuilder) *JobRepository {
	return &JobRepository{
		client:     client,
		collection: client.Collection(jobsCollection),
		outboxRepo: outboxMongo.NewOutboxRepository(client.Database()),
		envelopes:  envelopes,
	}
}

// EnsureIndexes creates the job and outbox indexes
func (r *JobRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "jobId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "jobCardId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "currentDepartment", Value: 1}}},
		{Keys: bson.D{{Key: "priority", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	if err := r.collection.CreateIndexes(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create job indexes: %w", err)
	}
	return r.outboxRepo.EnsureIndexes(ctx)
}

// Save upserts the job and writes its pending domain events to the outbox
// in one transaction
func (r *JobRepository) Save(ctx context.Context, job *domain.Job) error {
	job.UpdatedAt = time.Now()

	outboxEvents, err := r.envelopes.Build(ctx, job.GetDomainEvents()...)
	if err != nil {
		return err
	}

	return r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := replaceJob(sessCtx, r.collection, job); err != nil {
			return err
		}
		return r.outboxRepo.Insert(sessCtx, outboxEvents)
	})
}

// replaceJob upserts the job document. Run it inside a session so it joins
// the caller's transaction.
func replaceJob(sessCtx mongo.SessionContext, jobs *pkgmongo.InstrumentedCollection, job *domain.Job) error {
	opts := options.Replace().SetUpsert(true)
	if err := jobs.ReplaceOne(sessCtx, bson.M{"jobId": job.JobID}, job, opts); err != nil {
		if pkgmongo.IsDuplicateKey(err) {
			return domain.ErrDuplicateJobCard
		}
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// FindByID returns nil, nil when the job does not exist
func (r *JobRepository) FindByID(ctx context.Context, jobID string) (*domain.Job, error) {
	return r.findOne(ctx, bson.M{"jobId": jobID})
}

// FindByJobCardID returns nil, nil when no job carries the card id
func (r *JobRepository) FindByJobCardID(ctx context.Context, jobCardID string) (*domain.Job, error) {
	return r.findOne(ctx, bson.M{"jobCardId": jobCardID})
}

func (r *JobRepository) findOne(ctx context.Context, filter bson.M) (*domain.Job, error) {
	var job domain.Job
	if err := r.collection.FindOne(ctx, filter, &job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	return &job, nil
}

// FindAll lists matching jobs newest first
func (r *JobRepository) FindAll(ctx context.Context, filter domain.JobFilter) ([]*domain.Job, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "createdAt", Value: -1},
		{Key: "jobId", Value: 1},
	})
	opts = pkgmongo.Page(opts, filter.Limit, filter.Offset)

	var jobs []*domain.Job
	if err := r.collection.Find(ctx, jobQuery(filter), &jobs, opts); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Count counts matching jobs, ignoring the filter's paging
func (r *JobRepository) Count(ctx context.Context, filter domain.JobFilter) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, jobQuery(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return n, nil
}

func jobQuery(filter domain.JobFilter) bson.M {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Department != "" {
		query["currentDepartment"] = filter.Department
	}
	if filter.Priority != "" {
		query["priority"] = filter.Priority
	}
	if filter.JobIDs != nil {
		query["jobId"] = bson.M{"$in": filter.JobIDs}
	}
	return query
}
