package kafka

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/printflow/job-lifecycle/pkg/cloudevents"
	"github.com/printflow/job-lifecycle/pkg/logging"
	"github.com/printflow/job-lifecycle/pkg/metrics"
)

func eventAttributes(topic, operation string, event *cloudevents.LifecycleCloudEvent) trace.SpanStartOption {
	attrs := []attribute.KeyValue{
		semconv.MessagingSystemKey.String("kafka"),
		semconv.MessagingDestinationNameKey.String(topic),
		semconv.MessagingOperationKey.String(operation),
		attribute.String("messaging.kafka.event_type", event.Type),
		attribute.String("messaging.message_id", event.ID),
	}
	if event.JobCardID != "" {
		attrs = append(attrs, attribute.String("printflow.job_card_id", event.JobCardID))
	}
	if event.CorrelationID != "" {
		attrs = append(attrs, attribute.String("printflow.correlation_id", event.CorrelationID))
	}
	return trace.WithAttributes(attrs...)
}

func endSpan(span trace.Span, err error, duration time.Duration) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.Int64("messaging.duration_ms", duration.Milliseconds()))
}

// InstrumentedProducer wraps a Producer with metrics and tracing
type InstrumentedProducer struct {
	producer *Producer
	metrics  *metrics.Metrics
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewInstrumentedProducer creates a new instrumented producer
func NewInstrumentedProducer(producer *Producer, m *metrics.Metrics, logger *logging.Logger) *InstrumentedProducer {
	return &InstrumentedProducer{
		producer: producer,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("kafka-producer"),
	}
}

// PublishEvent publishes a CloudEvent with metrics and tracing. The span's
// context replaces any trace context already on the event.
func (p *InstrumentedProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.LifecycleCloudEvent) error {
	start := time.Now()

	ctx = NewTracePropagator().ExtractEvent(ctx, event)
	ctx, span := p.tracer.Start(ctx, "kafka.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		eventAttributes(topic, "publish", event),
	)
	defer span.End()

	NewTracePropagator().InjectEvent(ctx, event)

	err := p.producer.PublishEvent(ctx, topic, event)
	duration := time.Since(start)

	if p.metrics != nil {
		p.metrics.RecordKafkaPublish(topic, event.Type, err == nil, duration)
	}
	if p.logger != nil {
		p.logger.KafkaPublish(ctx, topic, event.Type, err == nil, duration)
	}
	endSpan(span, err, duration)
	return err
}

// Close closes the underlying producer
func (p *InstrumentedProducer) Close() error {
	return p.producer.Close()
}

// InstrumentedConsumer wraps a Consumer with metrics and tracing
type InstrumentedConsumer struct {
	consumer *Consumer
	metrics  *metrics.Metrics
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewInstrumentedConsumer creates a new instrumented consumer
func NewInstrumentedConsumer(consumer *Consumer, m *metrics.Metrics, logger *logging.Logger) *InstrumentedConsumer {
	return &InstrumentedConsumer{
		consumer: consumer,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("kafka-consumer"),
	}
}

// Subscribe subscribes to a topic with instrumented handler
func (c *InstrumentedConsumer) Subscribe(topic string, eventType string, handler EventHandler) {
	c.consumer.Subscribe(topic, eventType, c.instrumentHandler(topic, handler))
}

// SubscribeAll subscribes to all event types with instrumented handler
func (c *InstrumentedConsumer) SubscribeAll(topic string, handler EventHandler) {
	c.consumer.SubscribeAll(topic, c.instrumentHandler(topic, handler))
}

func (c *InstrumentedConsumer) instrumentHandler(topic string, handler EventHandler) EventHandler {
	return func(ctx context.Context, event *cloudevents.LifecycleCloudEvent) error {
		start := time.Now()

		ctx = NewTracePropagator().ExtractEvent(ctx, event)
		ctx, span := c.tracer.Start(ctx, "kafka.consume",
			trace.WithSpanKind(trace.SpanKindConsumer),
			eventAttributes(topic, "receive", event),
			trace.WithAttributes(attribute.String("messaging.kafka.consumer_group", c.consumer.config.ConsumerGroup)),
		)
		defer span.End()

		err := handler(ctx, event)
		duration := time.Since(start)

		if c.metrics != nil {
			c.metrics.RecordKafkaConsume(topic, event.Type, err == nil)
		}
		if c.logger != nil {
			c.logger.KafkaConsume(ctx, topic, event.Type, 0, 0)
		}
		endSpan(span, err, duration)
		return err
	}
}

// Start starts the instrumented consumer
func (c *InstrumentedConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// Close closes the underlying consumer
func (c *InstrumentedConsumer) Close() error {
	return c.consumer.Close()
}

// TracePropagator moves W3C trace context between contexts and events
type TracePropagator struct {
	propagator propagation.TextMapPropagator
}

// NewTracePropagator uses the globally registered propagator
func NewTracePropagator() *TracePropagator {
	return &TracePropagator{propagator: otel.GetTextMapPropagator()}
}

// InjectEvent writes ctx's trace context onto the event
func (p *TracePropagator) InjectEvent(ctx context.Context, event *cloudevents.LifecycleCloudEvent) {
	carrier := propagation.MapCarrier{}
	p.propagator.Inject(ctx, carrier)
	if tp := carrier.Get("traceparent"); tp != "" {
		event.TraceParent = tp
		event.TraceState = carrier.Get("tracestate")
	}
}

// ExtractEvent returns ctx carrying the event's trace context, if any
func (p *TracePropagator) ExtractEvent(ctx context.Context, event *cloudevents.LifecycleCloudEvent) context.Context {
	if event.TraceParent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": event.TraceParent}
	if event.TraceState != "" {
		carrier["tracestate"] = event.TraceState
	}
	return p.propagator.Extract(ctx, carrier)
}
