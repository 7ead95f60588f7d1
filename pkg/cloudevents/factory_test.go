package cloudevents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stageUpdate struct {
	Department string `json:"department"`
	Progress   int    `json:"progress"`
}

func TestEventFactory_CreateJobEvent(t *testing.T) {
	factory := NewEventFactory("api-1")
	assert.Equal(t, "/printflow/job-lifecycle/api-1", factory.Source())

	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	event, err := factory.CreateJobEvent(context.Background(), "stage_update",
		"job-1", "JC-1", "Job JC-1 prepress stage is IN_PROGRESS (45%)", at,
		stageUpdate{Department: "prepress", Progress: 45})
	require.NoError(t, err)

	assert.Equal(t, SpecVersion, event.SpecVersion)
	assert.Equal(t, "stage_update", event.Type)
	assert.Equal(t, "job/job-1", event.Subject)
	assert.Equal(t, "JC-1", event.JobCardID)
	assert.NotEmpty(t, event.ID)
	assert.True(t, event.FromInstance(factory.Source()))
	assert.False(t, event.FromInstance(NewEventFactory("api-2").Source()))

	data, err := event.DecodeData()
	require.NoError(t, err)
	assert.Equal(t, "job-1", data.JobID)
	assert.Equal(t, at, data.OccurredAt)
	assert.JSONEq(t, `{"department":"prepress","progress":45}`, string(data.Payload))
}

func TestLifecycleCloudEvent_Headers(t *testing.T) {
	event, err := NewEventFactory("").CreateEvent(context.Background(), "job_created", "job/1", map[string]string{})
	require.NoError(t, err)
	event.WithCorrelation("corr-1").WithActorRole("merchandiser")

	headers := event.Headers()
	assert.Equal(t, "job_created", headers["ce-type"])
	assert.Equal(t, SourceJobLifecycle, headers["ce-source"])
	assert.Equal(t, "corr-1", headers["ce-pfcorrelationid"])
	assert.Equal(t, "merchandiser", headers["ce-pfactorrole"])
	_, hasTrace := headers["ce-traceparent"]
	assert.False(t, hasTrace)

	var decoded LifecycleCloudEvent
	for k, v := range headers {
		decoded.ApplyHeader(k, v)
	}
	assert.Equal(t, "corr-1", decoded.CorrelationID)
	assert.Equal(t, "merchandiser", decoded.ActorRole)
	assert.False(t, decoded.ApplyHeader("x-unknown", "v"))
}
