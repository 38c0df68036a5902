package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Mrhamza01/prlabel/pkg/logging"
)

// EventFactory creates CloudEvents for one source
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent builds an event, copying the correlation ID and W3C trace
// context from ctx when present.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data interface{}) *WMSCloudEvent {
	event := &WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}

	if id, ok := ctx.Value(logging.CorrelationIDKey).(string); ok {
		event.CorrelationID = id
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	event.TraceParent = carrier.Get("traceparent")
	event.TraceState = carrier.Get("tracestate")

	return event
}

// ShipmentShippedEvent creates the event written when a shipment's lines are
// marked shipped.
func (f *EventFactory) ShipmentShippedEvent(ctx context.Context, shipmentID string, lineIDs []string) *WMSCloudEvent {
	if lineIDs == nil {
		lineIDs = []string{}
	}
	data := ShipmentShippedData{
		ShipmentID:   shipmentID,
		LineIDs:      lineIDs,
		RecordsFound: len(lineIDs),
		ShippedAt:    time.Now().UTC(),
	}
	return f.CreateEvent(ctx, ShipmentShipped, "shipment/"+shipmentID, data)
}

// PickListAssignedEvent creates the event written when a packer claims a
// pick list.
func (f *EventFactory) PickListAssignedEvent(ctx context.Context, pickListID, entityID, entityName string, version int64) *WMSCloudEvent {
	data := PickListAssignedData{
		PickListID: pickListID,
		EntityID:   entityID,
		EntityName: entityName,
		Version:    version,
		AssignedAt: time.Now().UTC(),
	}
	event := f.CreateEvent(ctx, PickListAssigned, "picklist/"+pickListID, data)
	event.PickListID = pickListID
	return event
}

// LabelPrintedEvent creates the event emitted after a label reaches a printer
func (f *EventFactory) LabelPrintedEvent(ctx context.Context, shipmentID, mode, printer string) *WMSCloudEvent {
	data := LabelPrintedData{
		ShipmentID: shipmentID,
		Mode:       mode,
		Printer:    printer,
		PrintedAt:  time.Now().UTC(),
	}
	return f.CreateEvent(ctx, LabelPrinted, "shipment/"+shipmentID, data)
}
