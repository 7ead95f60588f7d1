package notifier

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/printflow/job-lifecycle/internal/domain"
	"github.com/printflow/job-lifecycle/pkg/cloudevents"
)

// Event is what a connected actor receives on the real-time channel
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	JobID      string          `json:"jobId"`
	JobCardID  string          `json:"jobCardId"`
	ActorRole  string          `json:"actorRole,omitempty"`
	Status     string          `json:"status,omitempty"`
	AssignedTo string          `json:"assignedTo,omitempty"`
	Message    string          `json:"message"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	// Source is the CloudEvent source of events relayed from other replicas
	Source string `json:"source,omitempty"`
}

// FromDomainEvent converts a domain event raised in this process
func FromDomainEvent(e domain.DomainEvent, actorRole string) (Event, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s: %w", e.EventType(), err)
	}

	jobID, jobCardID := e.JobRef()
	out := Event{
		ID:         uuid.NewString(),
		Type:       e.EventType(),
		JobID:      jobID,
		JobCardID:  jobCardID,
		ActorRole:  actorRole,
		Message:    e.Message(),
		Payload:    payload,
		OccurredAt: e.OccurredAt(),
	}

	switch ev := e.(type) {
	case *domain.StatusChangedEvent:
		out.Status = string(ev.Status)
	case *domain.StageUpdatedEvent:
		out.Status = string(ev.Status)
		out.AssignedTo = ev.AssignedTo
	case *domain.JobCreatedEvent:
		out.Status = ev.Status
	case *domain.JobAssignedEvent:
		out.AssignedTo = ev.AssignedTo
	case *domain.JobReassignedEvent:
		out.AssignedTo = ev.AssignedTo
	}

	return out, nil
}

// summary picks the status/assignee fields out of a relayed payload
type summary struct {
	Status     string `json:"status"`
	AssignedTo string `json:"assignedTo"`
}

// FromCloudEvent converts an event relayed over Kafka
func FromCloudEvent(ce *cloudevents.LifecycleCloudEvent) (Event, error) {
	data, err := ce.DecodeData()
	if err != nil {
		return Event{}, fmt.Errorf("failed to decode %s data: %w", ce.Type, err)
	}

	out := Event{
		ID:         ce.ID,
		Type:       ce.Type,
		JobID:      data.JobID,
		JobCardID:  data.JobCardID,
		ActorRole:  ce.ActorRole,
		Message:    data.Message,
		Payload:    data.Payload,
		OccurredAt: data.OccurredAt,
		Source:     ce.Source,
	}

	if len(data.Payload) > 0 {
		var s summary
		if err := json.Unmarshal(data.Payload, &s); err == nil {
			out.Status = s.Status
			out.AssignedTo = s.AssignedTo
		}
	}

	return out, nil
}
