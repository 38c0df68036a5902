package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Errors
var (
	ErrPickListNotFound = errors.New("pick list not found")
	ErrShipmentNotFound = errors.New("no record found with the given shipment ID")
	ErrInvalidStatus    = errors.New("status must be one of: pending, completed, all")
	ErrEntityRequired   = errors.New("entity ID is required")
)

// Status is the derived completion state of a pick list
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ListStatus selects which pick lists a query returns
type ListStatus string

const (
	ListPending   ListStatus = "pending"
	ListCompleted ListStatus = "completed"
	ListAll       ListStatus = "all"
)

// ParseListStatus parses a status query value. An empty value means pending.
func ParseListStatus(s string) (ListStatus, error) {
	switch ListStatus(strings.ToLower(strings.TrimSpace(s))) {
	case "", ListPending:
		return ListPending, nil
	case ListCompleted:
		return ListCompleted, nil
	case ListAll:
		return ListAll, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Includes reports whether a pick list with status st passes the filter
func (ls ListStatus) Includes(st Status) bool {
	switch ls {
	case ListAll:
		return true
	case ListCompleted:
		return st == StatusCompleted
	default:
		return st == StatusPending
	}
}

// PickList is the aggregate root for a batch of order lines handed to one packer
type PickList struct {
	ID                int64     `json:"PICK_LIST_ID" bson:"_id"`
	OrderNumber       string    `json:"ORDER_NUMBER" bson:"orderNumber"`
	OrderDate         time.Time `json:"ORDER_DATE" bson:"orderDate"`
	AssigneeID        *int64    `json:"ASSIGNEE_ID" bson:"assigneeId,omitempty"`
	AssigneeName      *string   `json:"ASSIGNEE_NAME" bson:"-"`
	PackingPerson     *string   `json:"PACKING_PERSON" bson:"packingPerson,omitempty"`
	PackingPersonName *string   `json:"PACKING_PERSON_NAME" bson:"-"`
	Remarks           *string   `json:"REMARKS" bson:"remarks,omitempty"`
	Status            Status    `json:"status" bson:"-"`
	ShippedOrders     int       `json:"shipped_order" bson:"-"`
	TotalOrders       int       `json:"total_Orders" bson:"-"`
	Version           int64     `json:"VERSION" bson:"version"`
	UpdatedAt         time.Time `json:"UPDATED_AT" bson:"updatedAt"`

	DomainEvents []DomainEvent `json:"-" bson:"-"`
}

// Line is one order line of a pick list
type Line struct {
	PickListID     int64  `json:"PICK_LIST_ID" bson:"pickListId"`
	ID             int64  `json:"PICK_LIST_LINES_ID" bson:"_id"`
	ShipmentID     string `json:"SHIPMENT_ID" bson:"shipmentId"`
	ShipmentNumber string `json:"SHIPMENT_NUMBER" bson:"shipmentNumber"`
	ServiceCode    string `json:"SERVICE_CODE,omitempty" bson:"serviceCode,omitempty"`
	ShipmentStatus string `json:"SHIPMENT_STATUS,omitempty" bson:"shipmentStatus,omitempty"`
	StoreID        *int64 `json:"STORE_ID,omitempty" bson:"storeId,omitempty"`
	StoreName      string `json:"STORE_NAME,omitempty" bson:"storeName,omitempty"`
	SKU            string `json:"PRODUCT_SKU,omitempty" bson:"sku,omitempty"`
	ProductName    string `json:"PRODUCT_NAME,omitempty" bson:"productName,omitempty"`
	UPC            string `json:"UPC" bson:"upc"`
	Quantity       int    `json:"QUANTITY" bson:"quantity"`
	ShippedQty     *int   `json:"SHIPPED_QTY" bson:"shippedQty,omitempty"`
	PickedQty      *int   `json:"PICKED_QTY" bson:"pickedQty,omitempty"`
	HoldQty        int    `json:"HOLD_QTY" bson:"holdQty"`
}

// QuantityComplete reports whether the shipped quantity is known and equals
// the ordered quantity.
func (l Line) QuantityComplete() bool {
	return l.ShippedQty != nil && *l.ShippedQty == l.Quantity
}

// Fulfilled reports whether the line counts toward a completed pick list:
// everything ordered was picked and shipped, something shipped, nothing held.
func (l Line) Fulfilled() bool {
	shipped := intOrZero(l.ShippedQty)
	return l.Quantity == intOrZero(l.PickedQty) &&
		l.Quantity == shipped &&
		shipped > 0 &&
		l.HoldQty == 0
}

// MarkShipped records the whole ordered quantity as shipped
func (l *Line) MarkShipped() {
	qty := l.Quantity
	l.ShippedQty = &qty
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// DeriveStatus computes a pick list status from its lines. A list with no
// lines is completed.
func DeriveStatus(lines []Line) Status {
	for _, l := range lines {
		if !l.Fulfilled() {
			return StatusPending
		}
	}
	return StatusCompleted
}

// ShipmentCounts returns the number of distinct shipments on the lines and
// how many of them have every line quantity-complete.
func ShipmentCounts(lines []Line) (shipped, total int) {
	complete := make(map[string]bool)
	order := make([]string, 0, len(lines))
	for _, l := range lines {
		done, seen := complete[l.ShipmentID]
		if !seen {
			order = append(order, l.ShipmentID)
			done = true
		}
		complete[l.ShipmentID] = done && l.QuantityComplete()
	}
	for _, id := range order {
		if complete[id] {
			shipped++
		}
	}
	return shipped, len(order)
}

// ApplyLines fills the derived fields from the list's lines
func (p *PickList) ApplyLines(lines []Line) {
	p.Status = DeriveStatus(lines)
	p.ShippedOrders, p.TotalOrders = ShipmentCounts(lines)
}

// AssignedTo reports whether entityID is the packer or the assignee
func (p *PickList) AssignedTo(entityID string) bool {
	if entityID == "" {
		return true
	}
	if p.PackingPerson != nil && *p.PackingPerson == entityID {
		return true
	}
	return p.AssigneeID != nil && strconv.FormatInt(*p.AssigneeID, 10) == entityID
}

// AssignPacker sets the packing person. Assigning the current packer again is
// a no-op and returns false.
func (p *PickList) AssignPacker(entityID string, now time.Time) (bool, error) {
	if entityID == "" {
		return false, ErrEntityRequired
	}
	if p.PackingPerson != nil && *p.PackingPerson == entityID {
		return false, nil
	}

	p.PackingPerson = &entityID
	p.Version++
	p.UpdatedAt = now

	p.addDomainEvent(&PickListAssignedEvent{
		PickListID: p.ID,
		EntityID:   entityID,
		Version:    p.Version,
		AssignedAt: now,
	})
	return true, nil
}

func (p *PickList) addDomainEvent(event DomainEvent) {
	p.DomainEvents = append(p.DomainEvents, event)
}

// GetDomainEvents returns all domain events
func (p *PickList) GetDomainEvents() []DomainEvent {
	return p.DomainEvents
}

// ClearDomainEvents clears all domain events
func (p *PickList) ClearDomainEvents() {
	p.DomainEvents = nil
}

// Entity is a packer or assignee directory entry
type Entity struct {
	ID   string `json:"ENTITY_ID" bson:"_id"`
	Name string `json:"NAME" bson:"name"`
}

// Sync types and statuses recorded by the carrier sync job
const (
	SyncIncremental = "incremental"
	SyncFull        = "full"
	SyncSuccess     = "success"
	SyncFailed      = "failed"
)

// SyncLogEntry audits one carrier sync run
type SyncLogEntry struct {
	ID        string    `json:"-" bson:"_id,omitempty"`
	SyncType  string    `json:"SYNC_TYPE" bson:"syncType"`
	Status    string    `json:"STATUS" bson:"status"`
	DateCheck time.Time `json:"DATE_CHECK" bson:"dateCheck"`
	CreatedAt time.Time `json:"CREATED_AT" bson:"createdAt"`
}

// ListFilter narrows a pick list query
type ListFilter struct {
	Status   ListStatus
	EntityID string
}
