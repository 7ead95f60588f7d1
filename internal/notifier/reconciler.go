package notifier

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/printflow/job-lifecycle/internal/application"
	"github.com/printflow/job-lifecycle/internal/domain"
	"github.com/printflow/job-lifecycle/pkg/errors"
	"github.com/printflow/job-lifecycle/pkg/logging"
	"github.com/printflow/job-lifecycle/pkg/tracing"
)

var tracer = otel.Tracer("github.com/printflow/job-lifecycle/internal/notifier")

// DefaultResyncInterval is how often a session is told to refetch
const DefaultResyncInterval = 30 * time.Second

// EventResync tells a client to refetch everything it displays
const EventResync = "resync"

// JobReader loads the current job state for an event
type JobReader interface {
	GetJob(ctx context.Context, query application.GetJobQuery) (*application.JobDTO, error)
}

// Frame is one message written to a stream
type Frame struct {
	Event string
	ID    string
	Data  any
}

// Update is the body of a job event frame
type Update struct {
	Event Event               `json:"event"`
	Job   *application.JobDTO `json:"job,omitempty"`
}

// ResyncNotice is the body of a resync frame
type ResyncNotice struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Emitter writes a frame to the client; an error ends the session
type Emitter func(Frame) error

type dispatchFunc func(ctx context.Context, event Event) (Frame, bool)

// Reconciler drives one streaming session. Each event is dispatched by type
// to a handler that refetches the job so the client renders server state,
// and periodic resync frames cover anything the session missed.
type Reconciler struct {
	session  *Session
	jobs     JobReader
	interval time.Duration
	logger   *logging.Logger
	handlers map[string]dispatchFunc
	now      func() time.Time
}

// NewReconciler creates a reconciler for session. interval <= 0 uses
// DefaultResyncInterval.
func NewReconciler(session *Session, jobs JobReader, interval time.Duration, logger *logging.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultResyncInterval
	}
	r := &Reconciler{
		session:  session,
		jobs:     jobs,
		interval: interval,
		logger:   logger.WithComponent("reconciler").WithFields(map[string]any{"sessionId": session.ID}),
		handlers: make(map[string]dispatchFunc),
		now:      time.Now,
	}
	for _, t := range domain.LifecycleEventTypes {
		r.handlers[t] = r.refetch
	}
	return r
}

// Run streams until ctx is done, the session closes, or emit fails. A
// resync frame is sent first so reconnecting clients refresh.
func (r *Reconciler) Run(ctx context.Context, emit Emitter) error {
	if err := emit(r.resync("connected")); err != nil {
		return err
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := emit(r.resync("interval")); err != nil {
				return err
			}
		case event, ok := <-r.session.Events():
			if !ok {
				return nil
			}
			frame, ok := r.dispatch(ctx, event)
			if !ok {
				continue
			}
			if err := emit(frame); err != nil {
				return err
			}
		}
	}
}

func (r *Reconciler) dispatch(ctx context.Context, event Event) (Frame, bool) {
	handler, ok := r.handlers[event.Type]
	if !ok {
		return Frame{Event: event.Type, ID: event.ID, Data: Update{Event: event}}, true
	}
	return handler(ctx, event)
}

func (r *Reconciler) refetch(ctx context.Context, event Event) (Frame, bool) {
	frame := Frame{Event: event.Type, ID: event.ID, Data: Update{Event: event}}
	if event.JobID == "" {
		return frame, true
	}

	job, err := tracing.TracedOperation(ctx, tracer, "notifier.refetch", func(ctx context.Context) (*application.JobDTO, error) {
		return r.jobs.GetJob(ctx, application.GetJobQuery{JobID: event.JobID})
	}, tracing.JobSpanAttributes(event.JobID, event.JobCardID)...)
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) && appErr.Code == errors.CodeNotFound {
			return frame, true
		}
		// the client still gets the event and refetches on the next resync
		r.logger.WithError(err).Warn("Failed to refetch job for event", "jobId", event.JobID, "eventType", event.Type)
		return frame, true
	}

	frame.Data = Update{Event: event, Job: job}
	return frame, true
}

func (r *Reconciler) resync(reason string) Frame {
	return Frame{Event: EventResync, Data: ResyncNotice{Reason: reason, At: r.now().UTC()}}
}
