package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// ShipmentShippedEvent is raised when every line of a shipment is marked shipped
type ShipmentShippedEvent struct {
	ShipmentID   string    `json:"shipmentId"`
	LineIDs      []int64   `json:"lineIds"`
	RecordsFound int       `json:"recordsFound"`
	ShippedAt    time.Time `json:"shippedAt"`
}

func (e *ShipmentShippedEvent) EventType() string     { return "wms.dispatch.shipment-shipped" }
func (e *ShipmentShippedEvent) OccurredAt() time.Time { return e.ShippedAt }

// PickListAssignedEvent is raised when a packer takes a pick list
type PickListAssignedEvent struct {
	PickListID int64     `json:"pickListId"`
	EntityID   string    `json:"entityId"`
	Version    int64     `json:"version"`
	AssignedAt time.Time `json:"assignedAt"`
}

func (e *PickListAssignedEvent) EventType() string     { return "wms.dispatch.picklist-assigned" }
func (e *PickListAssignedEvent) OccurredAt() time.Time { return e.AssignedAt }
