package outbox

import "context"

// Repository defines the interface for outbox event persistence
type Repository interface {
	// SaveAll saves events; inside a session context it joins the transaction
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished returns the oldest retryable events up to limit
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry increments the retry count and records the last error
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	FindByAggregateID(ctx context.Context, aggregateID string) ([]*OutboxEvent, error)
}
