package cloudevents

import (
	"time"
)

// Dispatch event types
const (
	ShipmentShipped  = "wms.dispatch.shipment-shipped"
	PickListAssigned = "wms.dispatch.picklist-assigned"
	LabelPrinted     = "wms.dispatch.label-printed"
)

// Event sources
const (
	SourceFulfillmentGateway = "/wms/fulfillment-gateway"
	SourcePrintGateway       = "/wms/print-gateway"
)

// Extension attribute names
const (
	ExtCorrelationID = "wmscorrelationid"
	ExtPickListID    = "wmspicklistid"
)

// WMSCloudEvent is a CloudEvents v1.0 envelope for dispatch events
type WMSCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	CorrelationID string `json:"wmscorrelationid,omitempty"`
	PickListID    string `json:"wmspicklistid,omitempty"`

	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

// ShipmentShippedData is the payload of ShipmentShipped
type ShipmentShippedData struct {
	ShipmentID   string    `json:"shipmentId"`
	LineIDs      []string  `json:"lineIds"`
	RecordsFound int       `json:"recordsFound"`
	ShippedAt    time.Time `json:"shippedAt"`
}

// PickListAssignedData is the payload of PickListAssigned
type PickListAssignedData struct {
	PickListID string    `json:"pickListId"`
	EntityID   string    `json:"entityId"`
	EntityName string    `json:"entityName,omitempty"`
	Version    int64     `json:"version"`
	AssignedAt time.Time `json:"assignedAt"`
}

// LabelPrintedData is the payload of LabelPrinted
type LabelPrintedData struct {
	ShipmentID string    `json:"shipmentId"`
	Mode       string    `json:"mode"`
	Printer    string    `json:"printer"`
	PrintedAt  time.Time `json:"printedAt"`
}
