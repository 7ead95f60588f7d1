package cloudevents

import "time"

// Extension attribute names
const (
	ExtCorrelationID = "pfcorrelationid"
	ExtActorRole     = "pfactorrole"
	ExtJobCardID     = "pfjobcardid"
	ExtTraceParent   = "traceparent"
	ExtTraceState    = "tracestate"
)

// HTTP headers carrying request context into events
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderActorID       = "X-Actor-ID"
	HeaderActorRole     = "X-Actor-Role"
)

// headerPrefix marks CloudEvents attributes in binary-mode message headers
const headerPrefix = "ce-"

// Headers returns the binary-mode header set for the event. Empty
// extensions are omitted.
func (e *LifecycleCloudEvent) Headers() map[string]string {
	h := map[string]string{
		headerPrefix + "specversion": e.SpecVersion,
		headerPrefix + "type":        e.Type,
		headerPrefix + "source":      e.Source,
		headerPrefix + "id":          e.ID,
		headerPrefix + "time":        e.Time.Format(time.RFC3339Nano),
		"content-type":               e.DataContentType,
	}
	for name, value := range map[string]string{
		ExtCorrelationID: e.CorrelationID,
		ExtActorRole:     e.ActorRole,
		ExtJobCardID:     e.JobCardID,
		ExtTraceParent:   e.TraceParent,
		ExtTraceState:    e.TraceState,
	} {
		if value != "" {
			h[headerPrefix+name] = value
		}
	}
	return h
}

// ApplyHeader copies a binary-mode extension header onto the event. It
// reports whether the header was recognised.
func (e *LifecycleCloudEvent) ApplyHeader(key, value string) bool {
	switch key {
	case headerPrefix + ExtCorrelationID:
		e.CorrelationID = value
	case headerPrefix + ExtActorRole:
		e.ActorRole = value
	case headerPrefix + ExtJobCardID:
		e.JobCardID = value
	case headerPrefix + ExtTraceParent:
		e.TraceParent = value
	case headerPrefix + ExtTraceState:
		e.TraceState = value
	default:
		return false
	}
	return true
}

// WithCorrelation sets the correlation id and returns the event
func (e *LifecycleCloudEvent) WithCorrelation(correlationID string) *LifecycleCloudEvent {
	e.CorrelationID = correlationID
	return e
}

// WithActorRole sets the role of the actor that caused the event
func (e *LifecycleCloudEvent) WithActorRole(role string) *LifecycleCloudEvent {
	e.ActorRole = role
	return e
}
