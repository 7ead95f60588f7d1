package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printflow/job-lifecycle/internal/domain"
	"github.com/printflow/job-lifecycle/internal/infrastructure/events"
	"github.com/printflow/job-lifecycle/pkg/cloudevents"
	"github.com/printflow/job-lifecycle/pkg/logging"
	pkgmongo "github.com/printflow/job-lifecycle/pkg/mongodb"
	outboxMongo "github.com/printflow/job-lifecycle/pkg/outbox/mongodb"
	pftesting "github.com/printflow/job-lifecycle/pkg/testing"
)

type mongoFixture struct {
	client *pkgmongo.InstrumentedClient
	jobs   *JobRepository
	ledger *AssignmentLedger
	outbox *outboxMongo.OutboxRepository
}

func setupMongo(t *testing.T) *mongoFixture {
	t.Helper()
	container := pftesting.StartMongoDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	config := pkgmongo.DefaultConfig()
	config.URI = container.URI
	config.Database = "lifecycle_" + uuid.NewString()[:8]

	client, err := pkgmongo.NewProductionClient(ctx, config, nil, logging.New(logging.DefaultConfig("test")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	envelopes := events.NewEnvelopeBuilder(cloudevents.NewEventFactory("it"), "printflow.job-lifecycle", nil)
	f := &mongoFixture{
		client: client,
		jobs:   NewJobRepository(client, envelopes),
		ledger: NewAssignmentLedger(client, envelopes),
		outbox: outboxMongo.NewOutboxRepository(client.Database()),
	}
	require.NoError(t, f.jobs.EnsureIndexes(ctx))
	require.NoError(t, f.ledger.EnsureIndexes(ctx))
	return f
}

func newTestJob(t *testing.T, cardID string) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(domain.NewJobParams{
		JobID:     uuid.NewString(),
		JobCardID: cardID,
		Quantity:  1000,
		Priority:  domain.PriorityHigh,
		DueDate:   time.Now().Add(48 * time.Hour).UTC().Truncate(time.Millisecond),
	})
	require.NoError(t, err)
	return job
}

func TestJobRepository_SaveAndFind(t *testing.T) {
	f := setupMongo(t)
	ctx := context.Background()

	job := newTestJob(t, "JC-2001")
	require.NoError(t, f.jobs.Save(ctx, job))
	job.ClearDomainEvents()

	found, err := f.jobs.FindByID(ctx, job.JobID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "JC-2001", found.JobCardID)
	assert.Equal(t, domain.PriorityHigh, found.Priority)
	assert.Len(t, found.Stages, len(domain.DepartmentSequence))

	byCard, err := f.jobs.FindByJobCardID(ctx, "JC-2001")
	require.NoError(t, err)
	require.NotNil(t, byCard)
	assert.Equal(t, job.JobID, byCard.JobID)

	missing, err := f.jobs.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	pending, err := f.outbox.FindUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.EventJobCreated, pending[0].EventType)
	assert.Equal(t, job.JobID, pending[0].AggregateID)
}

func TestJobRepository_DuplicateJobCard(t *testing.T) {
	f := setupMongo(t)
	ctx := context.Background()

	require.NoError(t, f.jobs.Save(ctx, newTestJob(t, "JC-DUP")))

	err := f.jobs.Save(ctx, newTestJob(t, "JC-DUP"))
	assert.ErrorIs(t, err, domain.ErrDuplicateJobCard)

	// the rejected job's event must not reach the outbox
	pending, err := f.outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestJobRepository_FindAllAndCount(t *testing.T) {
	f := setupMongo(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		job := newTestJob(t, fmt.Sprintf("JC-L%d", i))
		if i%2 == 0 {
			require.NoError(t, job.Transition(domain.NewStateMachineRegistry(), domain.TransitionParams{
				Domain: domain.DomainJob, ToStatus: domain.JobStatusInProgress, ActorID: "u-1",
			}))
		}
		require.NoError(t, f.jobs.Save(ctx, job))
		ids = append(ids, job.JobID)
	}

	total, err := f.jobs.Count(ctx, domain.JobFilter{Status: domain.JobStatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	page, err := f.jobs.FindAll(ctx, domain.JobFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	subset, err := f.jobs.FindAll(ctx, domain.JobFilter{JobIDs: ids[:2]})
	require.NoError(t, err)
	assert.Len(t, subset, 2)

	none, err := f.jobs.Count(ctx, domain.JobFilter{JobIDs: []string{}})
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestAssignmentLedger_Lifecycle(t *testing.T) {
	f := setupMongo(t)
	ctx := context.Background()
	job := newTestJob(t, "JC-A1")

	appendRecord := func(action domain.AssignmentAction, to, previous string) error {
		record, err := domain.NewAssignmentRecord(job, action, to, "u-lead", previous, "")
		require.NoError(t, err)
		return f.ledger.Append(ctx, record, record.Check(), nil)
	}

	require.NoError(t, appendRecord(domain.ActionAssigned, "u-ana", ""))
	assert.ErrorIs(t, appendRecord(domain.ActionAssigned, "u-ben", ""), domain.ErrJobAlreadyAssigned)
	require.NoError(t, appendRecord(domain.ActionReassigned, "u-ben", "u-ana"))

	err := appendRecord(domain.ActionReassigned, "u-cat", "u-ana")
	var stale *domain.StaleAssignmentError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, "u-ben", stale.CurrentAssignee)

	current, err := f.ledger.CurrentAssignee(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, "u-ben", current)

	held, err := f.ledger.JobsHeldBy(ctx, "u-ben")
	require.NoError(t, err)
	assert.Equal(t, []string{job.JobID}, held)

	require.NoError(t, appendRecord(domain.ActionUnassigned, "", "u-ben"))

	current, err = f.ledger.CurrentAssignee(ctx, job.JobID)
	require.NoError(t, err)
	assert.Empty(t, current)

	held, err = f.ledger.JobsHeldBy(ctx, "u-ben")
	require.NoError(t, err)
	assert.Empty(t, held)

	history, err := f.ledger.History(ctx, job.JobID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.ActionAssigned, history[0].ActionType)
	assert.Equal(t, domain.ActionReassigned, history[1].ActionType)
	assert.Equal(t, domain.ActionUnassigned, history[2].ActionType)
	assert.Less(t, history[0].ID, history[1].ID)

	// one outbox row per accepted record
	pending, err := f.outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending)
}

func TestAssignmentLedger_ConcurrentReassignment(t *testing.T) {
	f := setupMongo(t)
	ctx := context.Background()
	job := newTestJob(t, "JC-RACE")

	first, err := domain.NewAssignmentRecord(job, domain.ActionAssigned, "u-ana", "u-lead", "", "")
	require.NoError(t, err)
	require.NoError(t, f.ledger.Append(ctx, first, first.Check(), nil))

	const racers = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		stale     int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, err := domain.NewAssignmentRecord(job, domain.ActionReassigned,
				fmt.Sprintf("u-%d", i), "u-lead", "u-ana", "")
			if err != nil {
				return
			}
			err = f.ledger.Append(ctx, record, record.Check(), nil)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrStaleAssignment):
				stale++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, racers-1, stale)

	history, err := f.ledger.History(ctx, job.JobID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestAssignmentLedger_HistoryIsAppendOnly(t *testing.T) {
	f := setupMongo(t)
	ctx := context.Background()
	job := newTestJob(t, "JC-A2")

	appendRecord := func(action domain.AssignmentAction, to, previous string) error {
		record, err := domain.NewAssignmentRecord(job, action, to, "u-lead", previous, "")
		require.NoError(t, err)
		return f.ledger.Append(ctx, record, record.Check(), nil)
	}

	require.NoError(t, appendRecord(domain.ActionAssigned, "u-ana", ""))
	require.NoError(t, appendRecord(domain.ActionReassigned, "u-ben", "u-ana"))
	require.NoError(t, appendRecord(domain.ActionUnassigned, "", "u-ben"))

	snapshot, err := f.ledger.History(ctx, job.JobID)
	require.NoError(t, err)
	require.Len(t, snapshot, 3)

	require.ErrorIs(t, appendRecord(domain.ActionReassigned, "u-cat", "u-ben"), domain.ErrStaleAssignment)
	history, err := f.ledger.History(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, snapshot, history, "a rejected append leaves the log untouched")

	require.NoError(t, appendRecord(domain.ActionAssigned, "u-cat", ""))
	history, err = f.ledger.History(ctx, job.JobID)
	require.NoError(t, err)
	require.Len(t, history, len(snapshot)+1)
	assert.Equal(t, snapshot, history[:len(snapshot)])
	assert.Greater(t, history[len(snapshot)].ID, snapshot[len(snapshot)-1].ID)
}

func TestAssignmentLedger_AppendWithJob(t *testing.T) {
	f := setupMongo(t)
	ctx := context.Background()
	registry := domain.NewStateMachineRegistry()

	job := newTestJob(t, "JC-A3")
	require.NoError(t, f.jobs.Save(ctx, job))
	job.ClearDomainEvents()

	require.NoError(t, job.Transition(registry, domain.TransitionParams{
		Domain: domain.DomainPrepress, ToStatus: domain.PrepressStatusAssigned, ActorID: "u-lead",
	}))
	record, err := domain.NewAssignmentRecord(job, domain.ActionAssigned, "u-ana", "u-lead", "", "")
	require.NoError(t, err)
	require.NoError(t, f.ledger.Append(ctx, record, record.Check(), job))
	job.ClearDomainEvents()

	found, err := f.jobs.FindByID(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.PrepressStatusAssigned, found.PrepressStatus)

	pending, err := f.outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending)

	// a rejected append must not persist the job change riding with it
	require.NoError(t, job.Transition(registry, domain.TransitionParams{
		Domain: domain.DomainPrepress, ToStatus: domain.PrepressStatusInProgress, ActorID: "u-lead",
	}))
	second, err := domain.NewAssignmentRecord(job, domain.ActionAssigned, "u-ben", "u-lead", "", "")
	require.NoError(t, err)
	require.ErrorIs(t, f.ledger.Append(ctx, second, second.Check(), job), domain.ErrJobAlreadyAssigned)

	found, err = f.jobs.FindByID(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.PrepressStatusAssigned, found.PrepressStatus)

	pending, err = f.outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending)
}
