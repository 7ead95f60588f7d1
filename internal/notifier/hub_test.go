package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printflow/job-lifecycle/internal/domain"
	"github.com/printflow/job-lifecycle/pkg/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.DefaultConfig("notifier-test"))
}

func assignedEvent(jobID, to string) *domain.JobAssignedEvent {
	return &domain.JobAssignedEvent{
		JobID:      jobID,
		JobCardID:  "JC-" + jobID,
		AssignedTo: to,
		AssignedBy: "hod",
		AssignedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestHub_TypeFilter(t *testing.T) {
	hub := NewHub(8, testLogger(), nil)
	defer hub.Close()

	all, err := hub.Subscribe()
	require.NoError(t, err)
	onlyStages, err := hub.Subscribe(domain.EventStageUpdate)
	require.NoError(t, err)

	require.NoError(t, hub.Notify(context.Background(), "prepress", assignedEvent("job-1", "U1")))

	select {
	case got := <-all.Events():
		assert.Equal(t, domain.EventJobAssigned, got.Type)
		assert.Equal(t, "job-1", got.JobID)
		assert.Equal(t, "U1", got.AssignedTo)
		assert.Equal(t, "prepress", got.ActorRole)
		assert.Contains(t, string(got.Payload), `"assignedTo":"U1"`)
	default:
		t.Fatal("expected event for unfiltered session")
	}

	select {
	case got := <-onlyStages.Events():
		t.Fatalf("stage session received %s", got.Type)
	default:
	}
}

func TestHub_ActorRoleFromContext(t *testing.T) {
	hub := NewHub(1, testLogger(), nil)
	defer hub.Close()

	s, err := hub.Subscribe()
	require.NoError(t, err)

	ctx := logging.ContextWithActor(context.Background(), "u-9", "hod")
	require.NoError(t, hub.Notify(ctx, "", assignedEvent("job-1", "U1")))

	got := <-s.Events()
	assert.Equal(t, "hod", got.ActorRole)
}

func TestHub_FullBufferDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(1, testLogger(), nil)
	defer hub.Close()

	s, err := hub.Subscribe()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = hub.Publish(Event{Type: domain.EventJobAssigned, JobID: "job-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow session")
	}

	delivered, dropped := s.Stats()
	assert.Equal(t, int64(1), delivered)
	assert.Equal(t, int64(4), dropped)
}

func TestHub_CloseFailsDelivery(t *testing.T) {
	hub := NewHub(1, testLogger(), nil)
	s, err := hub.Subscribe()
	require.NoError(t, err)

	hub.Close()

	_, open := <-s.Events()
	assert.False(t, open)
	assert.ErrorIs(t, hub.Publish(Event{Type: domain.EventJobCreated}), ErrDeliveryFailure)
	assert.ErrorIs(t, hub.Notify(context.Background(), "", assignedEvent("job-1", "U1")), ErrDeliveryFailure)

	_, err = hub.Subscribe()
	assert.ErrorIs(t, err, ErrDeliveryFailure)

	// closing a session after the hub is harmless
	s.Close()
	assert.Equal(t, 0, hub.SessionCount())
}

func TestSession_Close(t *testing.T) {
	hub := NewHub(1, testLogger(), nil)
	defer hub.Close()

	s, err := hub.Subscribe(domain.EventJobCreated, "")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.EventJobCreated}, s.Types())
	assert.Equal(t, 1, hub.SessionCount())

	s.Close()
	s.Close()
	assert.Equal(t, 0, hub.SessionCount())
	assert.NoError(t, hub.Publish(Event{Type: domain.EventJobCreated}))
}
