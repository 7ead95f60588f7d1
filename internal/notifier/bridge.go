package notifier

import (
	"context"
	"fmt"

	"github.com/printflow/job-lifecycle/pkg/cloudevents"
	"github.com/printflow/job-lifecycle/pkg/kafka"
	"github.com/printflow/job-lifecycle/pkg/logging"
)

// EventConsumer is the subset of the Kafka consumer the bridge drives
type EventConsumer interface {
	SubscribeAll(topic string, handler kafka.EventHandler)
	Start(ctx context.Context) error
	Close() error
}

// EventValidator checks relayed events against the event contract
type EventValidator interface {
	ValidateEvent(event *cloudevents.LifecycleCloudEvent) error
}

// KafkaBridge relays lifecycle events published by other replicas into the
// local hub. Events raised by this instance are already delivered locally
// and are skipped by source.
type KafkaBridge struct {
	consumer  EventConsumer
	hub       *Hub
	topic     string
	source    string
	validator EventValidator
	logger    *logging.Logger
}

// NewKafkaBridge creates a bridge. localSource is this instance's CloudEvent
// source; validator may be nil.
func NewKafkaBridge(consumer EventConsumer, hub *Hub, topic, localSource string, validator EventValidator, logger *logging.Logger) *KafkaBridge {
	return &KafkaBridge{
		consumer:  consumer,
		hub:       hub,
		topic:     topic,
		source:    localSource,
		validator: validator,
		logger:    logger.WithComponent("kafka-bridge"),
	}
}

// Run consumes until ctx is cancelled
func (b *KafkaBridge) Run(ctx context.Context) error {
	b.consumer.SubscribeAll(b.topic, b.HandleEvent)
	b.logger.Info("Kafka bridge started", "topic", b.topic, "source", b.source)

	err := b.consumer.Start(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// HandleEvent relays one CloudEvent. Malformed events are logged and
// acknowledged so they do not block the partition.
func (b *KafkaBridge) HandleEvent(ctx context.Context, ce *cloudevents.LifecycleCloudEvent) error {
	if ce.FromInstance(b.source) {
		return nil
	}

	if b.validator != nil {
		if err := b.validator.ValidateEvent(ce); err != nil {
			b.logger.WithError(err).Warn("Dropping event that violates the contract",
				"eventId", ce.ID, "eventType", ce.Type, "source", ce.Source)
			return nil
		}
	}

	event, err := FromCloudEvent(ce)
	if err != nil {
		b.logger.WithError(err).Warn("Dropping undecodable event", "eventId", ce.ID, "eventType", ce.Type)
		return nil
	}

	if err := b.hub.Publish(event); err != nil {
		return fmt.Errorf("failed to relay %s: %w", ce.Type, err)
	}
	return nil
}

// Close stops the consumer
func (b *KafkaBridge) Close() error {
	return b.consumer.Close()
}
