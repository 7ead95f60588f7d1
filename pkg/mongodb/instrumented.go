package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/printflow/job-lifecycle/pkg/logging"
	"github.com/printflow/job-lifecycle/pkg/metrics"
	"github.com/printflow/job-lifecycle/pkg/resilience"
)

// InstrumentedClient adds metrics, tracing and a circuit breaker to a Client
type InstrumentedClient struct {
	client  *Client
	metrics *metrics.Metrics
	logger  *logging.Logger
	tracer  trace.Tracer
	breaker *resilience.CircuitBreaker
}

// NewInstrumentedClient creates a new instrumented MongoDB client. m may be
// nil.
func NewInstrumentedClient(client *Client, m *metrics.Metrics, logger *logging.Logger) *InstrumentedClient {
	var observer resilience.StateObserver
	if m != nil {
		observer = func(name string, state int) {
			m.SetCircuitBreakerState(name, state)
			if state == 2 {
				m.RecordCircuitBreakerTrip(name)
			}
		}
	}
	config := resilience.DefaultCircuitBreakerConfig("mongodb")
	config.FailureThreshold = 10
	config.MinRequestsToTrip = 20
	config.FailureRatioThreshold = 0.6

	return &InstrumentedClient{
		client:  client,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("mongodb"),
		breaker: resilience.NewCircuitBreaker(config, logger.Logger, observer),
	}
}

// NewProductionClient connects and wraps the client
func NewProductionClient(ctx context.Context, config *Config, m *metrics.Metrics, logger *logging.Logger) (*InstrumentedClient, error) {
	client, err := NewClient(ctx, config)
	if err != nil {
		return nil, err
	}
	return NewInstrumentedClient(client, m, logger), nil
}

// Collection returns an instrumented collection
func (c *InstrumentedClient) Collection(name string) *InstrumentedCollection {
	return &InstrumentedCollection{
		collection: c.client.Database().Collection(name),
		name:       name,
		parent:     c,
	}
}

// Database returns the underlying database handle
func (c *InstrumentedClient) Database() *mongo.Database {
	return c.client.Database()
}

// Close disconnects the client
func (c *InstrumentedClient) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// HealthCheck pings the primary with tracing
func (c *InstrumentedClient) HealthCheck(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.ping",
		trace.WithAttributes(semconv.DBSystemMongoDB, semconv.DBNameKey.String(c.client.config.Database)),
	)
	defer span.End()

	err := c.client.HealthCheck(ctx)
	finishSpan(span, err)
	return err
}

// WithTransaction runs fn in a traced transaction
func (c *InstrumentedClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.transaction",
		trace.WithAttributes(semconv.DBSystemMongoDB, semconv.DBNameKey.String(c.client.config.Database)),
	)
	defer span.End()

	err := c.client.WithTransaction(ctx, fn)
	finishSpan(span, err)
	return err
}

func finishSpan(span trace.Span, err error) {
	if err != nil && !isClientOutcome(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// InstrumentedCollection wraps the collection operations the stores use
type InstrumentedCollection struct {
	collection *mongo.Collection
	name       string
	parent     *InstrumentedClient
}

// observe runs op through the breaker inside a span and records metrics.
// Missing documents and duplicate keys are returned to the caller but do
// not count against the breaker.
func (c *InstrumentedCollection) observe(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := c.parent.tracer.Start(ctx, "mongodb."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.parent.client.config.Database),
			semconv.DBOperationKey.String(operation),
			attribute.String("db.collection", c.name),
		),
	)
	defer span.End()

	var opErr error
	breakerErr := c.parent.breaker.Run(ctx, func() error {
		opErr = op(ctx)
		if isClientOutcome(opErr) {
			return nil
		}
		return opErr
	})
	err := opErr
	if breakerErr != nil && opErr == nil {
		err = breakerErr
	}

	duration := time.Since(start)
	success := isClientOutcome(err)
	if c.parent.metrics != nil {
		c.parent.metrics.RecordMongoDBOperation(c.name, operation, success, duration)
	}
	if c.parent.logger != nil {
		c.parent.logger.DatabaseQuery(ctx, c.name, operation, duration, success, 0)
	}
	finishSpan(span, err)
	return err
}

// InsertOne inserts a single document
func (c *InstrumentedCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) error {
	return c.observe(ctx, "insertOne", func(ctx context.Context) error {
		_, err := c.collection.InsertOne(ctx, document, opts...)
		return err
	})
}

// InsertMany inserts documents
func (c *InstrumentedCollection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) error {
	if len(documents) == 0 {
		return nil
	}
	return c.observe(ctx, "insertMany", func(ctx context.Context) error {
		_, err := c.collection.InsertMany(ctx, documents, opts...)
		return err
	})
}

// FindOne decodes the first match into out. mongo.ErrNoDocuments is
// returned when nothing matches.
func (c *InstrumentedCollection) FindOne(ctx context.Context, filter interface{}, out interface{}, opts ...*options.FindOneOptions) error {
	return c.observe(ctx, "findOne", func(ctx context.Context) error {
		return c.collection.FindOne(ctx, filter, opts...).Decode(out)
	})
}

// Find decodes every match into out, which must be a pointer to a slice
func (c *InstrumentedCollection) Find(ctx context.Context, filter interface{}, out interface{}, opts ...*options.FindOptions) error {
	return c.observe(ctx, "find", func(ctx context.Context) error {
		cursor, err := c.collection.Find(ctx, filter, opts...)
		if err != nil {
			return err
		}
		return cursor.All(ctx, out)
	})
}

// Aggregate decodes every pipeline result into out
func (c *InstrumentedCollection) Aggregate(ctx context.Context, pipeline interface{}, out interface{}, opts ...*options.AggregateOptions) error {
	return c.observe(ctx, "aggregate", func(ctx context.Context) error {
		cursor, err := c.collection.Aggregate(ctx, pipeline, opts...)
		if err != nil {
			return err
		}
		return cursor.All(ctx, out)
	})
}

// ReplaceOne replaces the matching document
func (c *InstrumentedCollection) ReplaceOne(ctx context.Context, filter, replacement interface{}, opts ...*options.ReplaceOptions) error {
	return c.observe(ctx, "replaceOne", func(ctx context.Context) error {
		_, err := c.collection.ReplaceOne(ctx, filter, replacement, opts...)
		return err
	})
}

// FindOneAndUpdate applies update and decodes the resulting document
func (c *InstrumentedCollection) FindOneAndUpdate(ctx context.Context, filter, update, out interface{}, opts ...*options.FindOneAndUpdateOptions) error {
	return c.observe(ctx, "findOneAndUpdate", func(ctx context.Context) error {
		return c.collection.FindOneAndUpdate(ctx, filter, update, opts...).Decode(out)
	})
}

// CountDocuments counts matching documents
func (c *InstrumentedCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	var n int64
	err := c.observe(ctx, "countDocuments", func(ctx context.Context) error {
		var err error
		n, err = c.collection.CountDocuments(ctx, filter, opts...)
		return err
	})
	return n, err
}

// CreateIndexes creates indexes on the collection
func (c *InstrumentedCollection) CreateIndexes(ctx context.Context, models []mongo.IndexModel) error {
	return c.observe(ctx, "createIndexes", func(ctx context.Context) error {
		_, err := c.collection.Indexes().CreateMany(ctx, models)
		return err
	})
}

// Name returns the collection name
func (c *InstrumentedCollection) Name() string {
	return c.name
}
