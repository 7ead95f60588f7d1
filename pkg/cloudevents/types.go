package cloudevents

import (
	"encoding/json"
	"time"
)

// SpecVersion is the CloudEvents version every event carries
const SpecVersion = "1.0"

// SourceJobLifecycle is the source prefix of events raised by the lifecycle
// service. Each replica appends its instance id.
const SourceJobLifecycle = "/printflow/job-lifecycle"

// LifecycleCloudEvent is a CloudEvents v1.0 envelope for job lifecycle
// events. Type is the notification channel name (job_created,
// production:status_updated, ...).
type LifecycleCloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	ID              string          `json:"id"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`

	CorrelationID string `json:"pfcorrelationid,omitempty"`
	ActorRole     string `json:"pfactorrole,omitempty"`
	JobCardID     string `json:"pfjobcardid,omitempty"`

	// W3C trace context
	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

// JobEventData is the data payload of every lifecycle event
type JobEventData struct {
	JobID      string          `json:"jobId"`
	JobCardID  string          `json:"jobCardId"`
	Message    string          `json:"message"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// DecodeData unmarshals the event's data into JobEventData
func (e *LifecycleCloudEvent) DecodeData() (*JobEventData, error) {
	var data JobEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// FromInstance reports whether the event was raised by the given source
func (e *LifecycleCloudEvent) FromInstance(source string) bool {
	return e.Source == source
}
