package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printflow/job-lifecycle/internal/application"
	"github.com/printflow/job-lifecycle/internal/domain"
	apperrors "github.com/printflow/job-lifecycle/pkg/errors"
	pftesting "github.com/printflow/job-lifecycle/pkg/testing"
)

type stubJobReader struct {
	GetJobFn func(ctx context.Context, query application.GetJobQuery) (*application.JobDTO, error)
}

func (s *stubJobReader) GetJob(ctx context.Context, query application.GetJobQuery) (*application.JobDTO, error) {
	return s.GetJobFn(ctx, query)
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []Frame
	failAt int
}

func (r *frameRecorder) emit(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	if r.failAt > 0 && len(r.frames) >= r.failAt {
		return errors.New("client went away")
	}
	return nil
}

func (r *frameRecorder) snapshot() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

func TestReconciler_RefetchesJobPerEvent(t *testing.T) {
	hub := NewHub(8, testLogger(), nil)
	defer hub.Close()
	session, err := hub.Subscribe()
	require.NoError(t, err)

	reader := &stubJobReader{GetJobFn: func(_ context.Context, q application.GetJobQuery) (*application.JobDTO, error) {
		if q.JobID == "gone" {
			return nil, apperrors.ErrNotFoundWithID("job", q.JobID)
		}
		return &application.JobDTO{ID: q.JobID, Status: "IN_PROGRESS"}, nil
	}}

	rec := &frameRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewReconciler(session, reader, time.Hour, testLogger()).Run(ctx, rec.emit)
	}()

	require.NoError(t, hub.Notify(ctx, "hod", assignedEvent("job-1", "U1")))
	require.NoError(t, hub.Publish(Event{Type: domain.EventJobUnassigned, JobID: "gone"}))
	require.NoError(t, hub.Publish(Event{Type: "custom_ping"}))

	pftesting.AssertEventually(t, func() bool { return len(rec.snapshot()) == 4 }, time.Second, "four frames")
	cancel()
	require.NoError(t, <-done)

	frames := rec.snapshot()
	assert.Equal(t, EventResync, frames[0].Event)
	assert.Equal(t, "connected", frames[0].Data.(ResyncNotice).Reason)

	assert.Equal(t, domain.EventJobAssigned, frames[1].Event)
	update := frames[1].Data.(Update)
	require.NotNil(t, update.Job)
	assert.Equal(t, "job-1", update.Job.ID)

	assert.Nil(t, frames[2].Data.(Update).Job)
	assert.Equal(t, "custom_ping", frames[3].Event)
}

func TestReconciler_PeriodicResync(t *testing.T) {
	hub := NewHub(1, testLogger(), nil)
	defer hub.Close()
	session, err := hub.Subscribe()
	require.NoError(t, err)

	rec := &frameRecorder{failAt: 3}
	r := NewReconciler(session, &stubJobReader{}, 5*time.Millisecond, testLogger())

	err = r.Run(context.Background(), rec.emit)
	assert.EqualError(t, err, "client went away")

	frames := rec.snapshot()
	require.Len(t, frames, 3)
	for _, f := range frames[1:] {
		assert.Equal(t, EventResync, f.Event)
		assert.Equal(t, "interval", f.Data.(ResyncNotice).Reason)
	}
}

func TestReconciler_EndsWhenSessionCloses(t *testing.T) {
	hub := NewHub(1, testLogger(), nil)
	session, err := hub.Subscribe()
	require.NoError(t, err)

	rec := &frameRecorder{}
	done := make(chan error, 1)
	go func() {
		done <- NewReconciler(session, &stubJobReader{}, time.Hour, testLogger()).Run(context.Background(), rec.emit)
	}()

	hub.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after hub close")
	}
}
