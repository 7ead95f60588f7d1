package events

import (
	"context"
	"fmt"

	"github.com/printflow/job-lifecycle/internal/domain"
	"github.com/printflow/job-lifecycle/pkg/cloudevents"
	"github.com/printflow/job-lifecycle/pkg/logging"
	"github.com/printflow/job-lifecycle/pkg/outbox"
)

// Validator checks an envelope against the published event contracts
type Validator interface {
	ValidateEvent(event *cloudevents.LifecycleCloudEvent) error
}

// EnvelopeBuilder turns domain events into outbox rows. Both stores call it
// inside their write transaction so a rejected event aborts the mutation.
type EnvelopeBuilder struct {
	factory   *cloudevents.EventFactory
	topic     string
	validator Validator
}

// NewEnvelopeBuilder creates a builder. validator may be nil.
func NewEnvelopeBuilder(factory *cloudevents.EventFactory, topic string, validator Validator) *EnvelopeBuilder {
	return &EnvelopeBuilder{
		factory:   factory,
		topic:     topic,
		validator: validator,
	}
}

// Topic returns the Kafka topic the envelopes are addressed to
func (b *EnvelopeBuilder) Topic() string {
	return b.topic
}

// Build wraps each event in a CloudEvent carrying the caller's correlation
// id and actor role, and returns one outbox row per event
func (b *EnvelopeBuilder) Build(ctx context.Context, evts ...domain.DomainEvent) ([]*outbox.OutboxEvent, error) {
	if len(evts) == 0 {
		return nil, nil
	}

	_, actorRole := logging.ActorFromContext(ctx)
	correlationID := logging.CorrelationIDFromContext(ctx)

	rows := make([]*outbox.OutboxEvent, 0, len(evts))
	for _, e := range evts {
		jobID, jobCardID := e.JobRef()
		ce, err := b.factory.CreateJobEvent(ctx, e.EventType(), jobID, jobCardID, e.Message(), e.OccurredAt(), e)
		if err != nil {
			return nil, err
		}
		ce.WithActorRole(actorRole).WithCorrelation(correlationID)

		if b.validator != nil {
			if err := b.validator.ValidateEvent(ce); err != nil {
				return nil, fmt.Errorf("event %s failed contract validation: %w", ce.Type, err)
			}
		}

		row, err := outbox.NewOutboxEventFromCloudEvent(jobID, b.topic, ce)
		if err != nil {
			return nil, fmt.Errorf("failed to create outbox event: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
