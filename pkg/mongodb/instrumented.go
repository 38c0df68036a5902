package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Mrhamza01/prlabel/pkg/logging"
	"github.com/Mrhamza01/prlabel/pkg/metrics"
)

// InstrumentedClient wraps a Client with metrics, tracing and query logging
type InstrumentedClient struct {
	client  *Client
	metrics *metrics.Metrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewInstrumentedClient creates a new instrumented MongoDB client
func NewInstrumentedClient(client *Client, m *metrics.Metrics, logger *logging.Logger) *InstrumentedClient {
	return &InstrumentedClient{
		client:  client,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("mongodb"),
	}
}

// Collection returns an instrumented collection
func (c *InstrumentedClient) Collection(name string) *InstrumentedCollection {
	return &InstrumentedCollection{
		collection: c.client.Collection(name),
		name:       name,
		database:   c.client.config.Database,
		metrics:    c.metrics,
		logger:     c.logger,
		tracer:     c.tracer,
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

// HealthCheck pings the primary inside a span
func (c *InstrumentedClient) HealthCheck(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.ping",
		trace.WithAttributes(semconv.DBSystemMongoDB, semconv.DBNameKey.String(c.client.config.Database)),
	)
	defer span.End()

	err := c.client.HealthCheck(ctx)
	endSpan(span, err)
	return err
}

// WithTransaction executes fn inside a traced transaction
func (c *InstrumentedClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.transaction",
		trace.WithAttributes(semconv.DBSystemMongoDB, semconv.DBNameKey.String(c.client.config.Database)),
	)
	defer span.End()

	err := c.client.WithTransaction(ctx, fn)
	endSpan(span, err)
	return err
}

// InstrumentedCollection wraps a mongo.Collection with metrics and tracing
type InstrumentedCollection struct {
	collection *mongo.Collection
	name       string
	database   string
	metrics    *metrics.Metrics
	logger     *logging.Logger
	tracer     trace.Tracer
}

// Raw returns the wrapped collection, used for index management
func (c *InstrumentedCollection) Raw() *mongo.Collection {
	return c.collection
}

func (c *InstrumentedCollection) observe(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "mongodb."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.database),
			semconv.DBOperationKey.String(operation),
			attribute.String("db.collection", c.name),
		),
	)
	defer span.End()

	err := fn(ctx)
	duration := time.Since(start)

	// A missing document is an answer, not a failure.
	failed := err
	if errors.Is(err, mongo.ErrNoDocuments) {
		failed = nil
	}

	c.metrics.RecordMongoDBOperation(c.name, operation, failed == nil, duration)
	if c.logger != nil {
		c.logger.DatabaseQuery(ctx, c.name, operation, duration, failed)
	}
	endSpan(span, failed)
	return err
}

// Find finds documents matching filter
func (c *InstrumentedCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	var cursor *mongo.Cursor
	err := c.observe(ctx, "find", func(ctx context.Context) error {
		var err error
		cursor, err = c.collection.Find(ctx, filter, opts...)
		return err
	})
	return cursor, err
}

// FindOne finds a single document
func (c *InstrumentedCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	var result *mongo.SingleResult
	_ = c.observe(ctx, "findOne", func(ctx context.Context) error {
		result = c.collection.FindOne(ctx, filter, opts...)
		return result.Err()
	})
	return result
}

// InsertOne inserts a single document
func (c *InstrumentedCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	var result *mongo.InsertOneResult
	err := c.observe(ctx, "insertOne", func(ctx context.Context) error {
		var err error
		result, err = c.collection.InsertOne(ctx, document, opts...)
		return err
	})
	return result, err
}

// InsertMany inserts documents in one batch
func (c *InstrumentedCollection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	var result *mongo.InsertManyResult
	err := c.observe(ctx, "insertMany", func(ctx context.Context) error {
		var err error
		result, err = c.collection.InsertMany(ctx, documents, opts...)
		return err
	})
	return result, err
}

// UpdateOne updates a single document
func (c *InstrumentedCollection) UpdateOne(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	var result *mongo.UpdateResult
	err := c.observe(ctx, "updateOne", func(ctx context.Context) error {
		var err error
		result, err = c.collection.UpdateOne(ctx, filter, update, opts...)
		return err
	})
	return result, err
}

// UpdateMany updates every document matching filter
func (c *InstrumentedCollection) UpdateMany(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	var result *mongo.UpdateResult
	err := c.observe(ctx, "updateMany", func(ctx context.Context) error {
		var err error
		result, err = c.collection.UpdateMany(ctx, filter, update, opts...)
		return err
	})
	return result, err
}

// FindOneAndUpdate applies update and decodes the resulting document
func (c *InstrumentedCollection) FindOneAndUpdate(ctx context.Context, filter, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult {
	var result *mongo.SingleResult
	_ = c.observe(ctx, "findOneAndUpdate", func(ctx context.Context) error {
		result = c.collection.FindOneAndUpdate(ctx, filter, update, opts...)
		return result.Err()
	})
	return result
}

// CountDocuments counts documents matching filter
func (c *InstrumentedCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	var count int64
	err := c.observe(ctx, "countDocuments", func(ctx context.Context) error {
		var err error
		count, err = c.collection.CountDocuments(ctx, filter, opts...)
		return err
	})
	return count, err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
