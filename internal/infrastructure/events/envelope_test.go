package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printflow/job-lifecycle/internal/domain"
	"github.com/printflow/job-lifecycle/pkg/cloudevents"
	"github.com/printflow/job-lifecycle/pkg/contracts/asyncapi"
	"github.com/printflow/job-lifecycle/pkg/logging"
)

type rejectingValidator struct{}

func (rejectingValidator) ValidateEvent(*cloudevents.LifecycleCloudEvent) error {
	return errors.New("schema mismatch")
}

func newJob(t *testing.T) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(domain.NewJobParams{
		JobID:     "job-1",
		JobCardID: "JC-1001",
		Quantity:  500,
		DueDate:   time.Now().Add(72 * time.Hour),
		CreatedBy: "u-planner",
	})
	require.NoError(t, err)
	return job
}

func TestEnvelopeBuilder_Build(t *testing.T) {
	validator, err := asyncapi.NewLifecycleValidator()
	require.NoError(t, err)

	builder := NewEnvelopeBuilder(cloudevents.NewEventFactory("replica-a"), "printflow.job-lifecycle", validator)
	job := newJob(t)

	ctx := logging.ContextWithActor(context.Background(), "u-planner", "planner")
	ctx = logging.ContextWithCorrelationID(ctx, "corr-42")

	rows, err := builder.Build(ctx, job.GetDomainEvents()...)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "job-1", row.AggregateID)
	assert.Equal(t, "printflow.job-lifecycle", row.Topic)
	assert.Equal(t, domain.EventJobCreated, row.EventType)

	ce, err := row.ToCloudEvent()
	require.NoError(t, err)
	assert.Equal(t, row.ID, ce.ID)
	assert.Equal(t, "planner", ce.ActorRole)
	assert.Equal(t, "corr-42", ce.CorrelationID)
	assert.Equal(t, "JC-1001", ce.JobCardID)
	assert.Equal(t, cloudevents.SourceJobLifecycle+"/replica-a", ce.Source)

	data, err := ce.DecodeData()
	require.NoError(t, err)
	assert.Equal(t, "job-1", data.JobID)
	assert.Contains(t, data.Message, "JC-1001")
}

func TestEnvelopeBuilder_AssignmentEvents(t *testing.T) {
	validator, err := asyncapi.NewLifecycleValidator()
	require.NoError(t, err)
	builder := NewEnvelopeBuilder(cloudevents.NewEventFactory(""), "t", validator)

	job := newJob(t)
	assign, err := domain.NewAssignmentRecord(job, domain.ActionAssigned, "u-ana", "u-lead", "", "")
	require.NoError(t, err)
	reassign, err := domain.NewAssignmentRecord(job, domain.ActionReassigned, "u-ben", "u-lead", "u-ana", "shift change")
	require.NoError(t, err)
	unassign, err := domain.NewAssignmentRecord(job, domain.ActionUnassigned, "", "u-lead", "u-ben", "")
	require.NoError(t, err)

	now := time.Now()
	for _, r := range []*domain.AssignmentRecord{assign, reassign, unassign} {
		r.CreatedAt = now
	}

	rows, err := builder.Build(context.Background(), assign.Event(), reassign.Event(), unassign.Event())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, domain.EventJobAssigned, rows[0].EventType)
	assert.Equal(t, domain.EventJobReassigned, rows[1].EventType)
	assert.Equal(t, domain.EventJobUnassigned, rows[2].EventType)
}

func TestEnvelopeBuilder_RejectedEvent(t *testing.T) {
	builder := NewEnvelopeBuilder(cloudevents.NewEventFactory(""), "t", rejectingValidator{})

	rows, err := builder.Build(context.Background(), newJob(t).GetDomainEvents()...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema mismatch")
	assert.Nil(t, rows)
}

func TestEnvelopeBuilder_NoEvents(t *testing.T) {
	builder := NewEnvelopeBuilder(cloudevents.NewEventFactory(""), "t", nil)

	rows, err := builder.Build(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}
