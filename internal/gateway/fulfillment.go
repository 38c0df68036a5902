package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Mrhamza01/prlabel/internal/domain"
)

// ShipmentUpdate is the body of a successful update-picklist-lines call
type ShipmentUpdate struct {
	Success      bool      `json:"success"`
	ShipmentID   string    `json:"shipmentId"`
	Message      string    `json:"message"`
	UpdatedAt    time.Time `json:"updatedAt"`
	RecordsFound int       `json:"recordsFound"`
}

// AssignRequest is the assign-picklist body
type AssignRequest struct {
	EntityID   string `json:"ENTITY_ID"`
	PickListID int64  `json:"PICK_LIST_ID"`
}

// AssignResult is the body of a successful assign-picklist call
type AssignResult struct {
	Success      bool             `json:"success"`
	RowsAffected int              `json:"rowsAffected"`
	PickList     *domain.PickList `json:"pickList,omitempty"`
}

// SyncInfo is one sync-info entry
type SyncInfo struct {
	DateCheck time.Time `json:"DATE_CHECK"`
}

// FulfillmentClient talks to the fulfillment gateway
type FulfillmentClient struct {
	c *client
}

// NewFulfillmentClient creates a client rooted at baseURL, e.g.
// http://localhost:3000/api
func NewFulfillmentClient(baseURL string, opts ...Option) *FulfillmentClient {
	return &FulfillmentClient{c: newClient("fulfillment-gateway", baseURL, opts...)}
}

// ListPickLists fetches pick lists in the given status, optionally only
// those assigned to entityID
func (f *FulfillmentClient) ListPickLists(ctx context.Context, status domain.ListStatus, entityID string) ([]domain.PickList, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if entityID != "" {
		q.Set("entityId", entityID)
	}

	path := "/pick-lists"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []domain.PickList
	if err := f.c.doRequest(ctx, "list_pick_lists", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Lines fetches the lines of one pick list
func (f *FulfillmentClient) Lines(ctx context.Context, pickListID int64) ([]domain.Line, error) {
	q := url.Values{"PICK_LIST_ID": {strconv.FormatInt(pickListID, 10)}}

	var out []domain.Line
	if err := f.c.doRequest(ctx, "pick_list_lines", http.MethodGet, "/pick-list-lines?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkShipmentShipped sets shipped = quantity for every line of the shipment
func (f *FulfillmentClient) MarkShipmentShipped(ctx context.Context, shipmentID string) (*ShipmentUpdate, error) {
	q := url.Values{"SHIPMENT_ID": {shipmentID}}

	var out ShipmentUpdate
	if err := f.c.doRequest(ctx, "update_shipment", http.MethodGet, "/update-picklist-lines?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateShipment satisfies dispatch.FulfillmentGateway
func (f *FulfillmentClient) UpdateShipment(ctx context.Context, shipmentID string) error {
	_, err := f.MarkShipmentShipped(ctx, shipmentID)
	return err
}

// AssignPickList makes entityID the packer of the pick list
func (f *FulfillmentClient) AssignPickList(ctx context.Context, pickListID int64, entityID string) (*AssignResult, error) {
	body := AssignRequest{EntityID: entityID, PickListID: pickListID}

	var out AssignResult
	if err := f.c.doRequest(ctx, "assign_pick_list", http.MethodPut, "/assign-picklist", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LastSync returns the latest successful incremental sync, or nil when none
// has been recorded
func (f *FulfillmentClient) LastSync(ctx context.Context) (*SyncInfo, error) {
	var out []SyncInfo
	if err := f.c.doRequest(ctx, "sync_info", http.MethodGet, "/sync-info", nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}
