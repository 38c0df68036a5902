package domain

import (
	"context"
	"time"
)

// PickListRepository defines the persistence the fulfillment gateway needs.
// FindByID returns ErrPickListNotFound and MarkShipmentShipped returns
// ErrShipmentNotFound when nothing matches.
type PickListRepository interface {
	List(ctx context.Context, filter ListFilter) ([]*PickList, error)
	FindByID(ctx context.Context, pickListID int64) (*PickList, error)
	Lines(ctx context.Context, pickListID int64) ([]Line, error)
	MarkShipmentShipped(ctx context.Context, shipmentID string, at time.Time) (*ShipmentShippedEvent, error)
	Save(ctx context.Context, pickList *PickList) error
	LatestSync(ctx context.Context) (*SyncLogEntry, error)
}
