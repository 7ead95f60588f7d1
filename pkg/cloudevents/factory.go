package cloudevents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
)

// EventFactory creates lifecycle CloudEvents for one service instance
type EventFactory struct {
	source string
	now    func() time.Time
}

// NewEventFactory creates a factory whose events carry
// SourceJobLifecycle/instanceID as their source
func NewEventFactory(instanceID string) *EventFactory {
	source := SourceJobLifecycle
	if instanceID != "" {
		source += "/" + instanceID
	}
	return &EventFactory{source: source, now: time.Now}
}

// Source returns the source attribute stamped on every event
func (f *EventFactory) Source() string {
	return f.source
}

// CreateEvent wraps data in a new envelope. Trace context is taken from ctx.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data any) (*LifecycleCloudEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s data: %w", eventType, err)
	}

	event := &LifecycleCloudEvent{
		SpecVersion:     SpecVersion,
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.NewString(),
		Time:            f.now().UTC(),
		DataContentType: "application/json",
		Data:            raw,
	}
	injectTraceContext(ctx, event)
	return event, nil
}

// CreateJobEvent builds the envelope for one job lifecycle event. payload is
// the full domain event, kept alongside the summary fields.
func (f *EventFactory) CreateJobEvent(
	ctx context.Context,
	eventType string,
	jobID, jobCardID, message string,
	occurredAt time.Time,
	payload any,
) (*LifecycleCloudEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	event, err := f.CreateEvent(ctx, eventType, "job/"+jobID, JobEventData{
		JobID:      jobID,
		JobCardID:  jobCardID,
		Message:    message,
		OccurredAt: occurredAt,
		Payload:    raw,
	})
	if err != nil {
		return nil, err
	}
	event.JobCardID = jobCardID
	return event, nil
}

func injectTraceContext(ctx context.Context, event *LifecycleCloudEvent) {
	if ctx == nil {
		return
	}
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	event.TraceParent = carrier.Get("traceparent")
	event.TraceState = carrier.Get("tracestate")
}
