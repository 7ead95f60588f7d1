package outbox

import (
	"encoding/json"
	"time"

	"github.com/printflow/job-lifecycle/pkg/cloudevents"
)

// DefaultMaxRetries bounds relay attempts per event
const DefaultMaxRetries = 10

// OutboxEvent is a lifecycle event stored next to the mutation that raised
// it, waiting to be relayed to Kafka
type OutboxEvent struct {
	ID          string          `bson:"_id" json:"id"`
	AggregateID string          `bson:"aggregateId" json:"aggregateId"`
	EventType   string          `bson:"eventType" json:"eventType"`
	Topic       string          `bson:"topic" json:"topic"`
	Payload     json.RawMessage `bson:"payload" json:"payload"`
	CreatedAt   time.Time       `bson:"createdAt" json:"createdAt"`
	PublishedAt *time.Time      `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	RetryCount  int             `bson:"retryCount" json:"retryCount"`
	LastError   string          `bson:"lastError,omitempty" json:"lastError,omitempty"`
	MaxRetries  int             `bson:"maxRetries" json:"maxRetries"`
}

// NewOutboxEventFromCloudEvent stores a CloudEvent envelope for later relay.
// The envelope id becomes the outbox id.
func NewOutboxEventFromCloudEvent(aggregateID, topic string, event *cloudevents.LifecycleCloudEvent) (*OutboxEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		ID:          event.ID,
		AggregateID: aggregateID,
		EventType:   event.Type,
		Topic:       topic,
		Payload:     payload,
		CreatedAt:   event.Time,
		MaxRetries:  DefaultMaxRetries,
	}, nil
}

// IsPublished checks if the event has been published
func (e *OutboxEvent) IsPublished() bool {
	return e.PublishedAt != nil
}

// ShouldRetry checks if the event should be retried
func (e *OutboxEvent) ShouldRetry() bool {
	return !e.IsPublished() && e.RetryCount < e.MaxRetries
}

// ToCloudEvent decodes the stored envelope
func (e *OutboxEvent) ToCloudEvent() (*cloudevents.LifecycleCloudEvent, error) {
	var event cloudevents.LifecycleCloudEvent
	if err := json.Unmarshal(e.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
