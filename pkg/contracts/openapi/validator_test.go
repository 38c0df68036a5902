package openapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jsonHeader = http.Header{"Content-Type": []string{"application/json; charset=utf-8"}}

func TestEmbeddedDocumentsLoad(t *testing.T) {
	fulfillment, err := NewFulfillmentValidator()
	require.NoError(t, err)
	assert.Contains(t, fulfillment.Paths(), "/api/get-picklists")
	assert.Contains(t, fulfillment.Paths(), "/api/pick-lists")
	assert.Contains(t, fulfillment.Paths(), "/api/sync-info")

	printing, err := NewPrintValidator()
	require.NoError(t, err)
	assert.Equal(t, []string{"/generate-and-print", "/health", "/print", "/printers", "/printers/default"}, printing.Paths())
}

func TestOperationID(t *testing.T) {
	v, err := NewFulfillmentValidator()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/update-picklist-lines?SHIPMENT_ID=se-1", nil)
	id, err := v.OperationID(req)
	require.NoError(t, err)
	assert.Equal(t, "markShipmentShipped", id)
}

func TestFulfillmentRequestValidation(t *testing.T) {
	v, err := NewFulfillmentValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		wantErr bool
	}{
		{"list with status", http.MethodGet, "/api/get-picklists?status=all", "", false},
		{"list bad status", http.MethodGet, "/api/get-picklists?status=open", "", true},
		{"lines non numeric id", http.MethodGet, "/api/get-picklist-lines?PICK_LIST_ID=abc", "", true},
		{"assign", http.MethodPut, "/api/assign-picklist", `{"ENTITY_ID":"7","PICK_LIST_ID":12}`, false},
		{"assign string id", http.MethodPut, "/api/assign-picklist", `{"ENTITY_ID":"7","PICK_LIST_ID":"12"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
				req.Header.Set("Content-Type", "application/json")
			} else {
				req = httptest.NewRequest(tt.method, tt.target, nil)
			}

			err := v.ValidateRequest(req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRequestRestoresBody(t *testing.T) {
	v, err := NewFulfillmentValidator()
	require.NoError(t, err)

	body := `{"ENTITY_ID":"7","PICK_LIST_ID":12}`
	req := httptest.NewRequest(http.MethodPut, "/api/assign-picklist", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	require.NoError(t, v.ValidateRequest(req))

	data, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestFulfillmentResponseValidation(t *testing.T) {
	v, err := NewFulfillmentValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		target  string
		status  int
		body    string
		wantErr bool
	}{
		{
			name:   "shipment updated",
			target: "/api/update-picklist-lines?SHIPMENT_ID=se-1",
			status: http.StatusOK,
			body:   `{"success":true,"shipmentId":"se-1","message":"Pick list line updated successfully","updatedAt":"2026-01-02T03:04:05Z","recordsFound":2}`,
		},
		{
			name:   "shipment not found",
			target: "/api/update-picklist-lines?SHIPMENT_ID=se-1",
			status: http.StatusNotFound,
			body:   `{"success":false,"error":"No record found with the given SHIPMENT_ID","shipmentId":"se-1"}`,
		},
		{
			name:    "success flag on failure status",
			target:  "/api/update-picklist-lines?SHIPMENT_ID=se-1",
			status:  http.StatusNotFound,
			body:    `{"success":true,"error":"x"}`,
			wantErr: true,
		},
		{
			name:   "lines with nulls",
			target: "/api/get-picklist-lines?PICK_LIST_ID=1",
			status: http.StatusOK,
			body:   `[{"PICK_LIST_ID":1,"PICK_LIST_LINES_ID":10,"SHIPMENT_ID":"se-1","SHIPMENT_NUMBER":"SN-1","UPC":null,"QUANTITY":2,"SHIPPED_QTY":null}]`,
		},
		{
			name:    "undocumented status",
			target:  "/api/get-picklist-lines?PICK_LIST_ID=1",
			status:  http.StatusTeapot,
			body:    `[]`,
			wantErr: true,
		},
		{
			name:   "empty sync info",
			target: "/api/sync-info",
			status: http.StatusOK,
			body:   `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			err := v.ValidateResponse(req, tt.status, jsonHeader, []byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPrintResponseValidation(t *testing.T) {
	v, err := NewPrintValidator()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/print", strings.NewReader(`{"shipmentId":"se-1"}`))
	req.Header.Set("Content-Type", "application/json")

	ok := `{"success":true,"message":"Label printed successfully!","shipmentId":"se-1"}`
	assert.NoError(t, v.ValidateResponse(req, http.StatusOK, jsonHeader, []byte(ok)))

	failed := `{"success":false,"error":"No PDF URL found for this shipment","shipmentId":"se-1"}`
	assert.NoError(t, v.ValidateResponse(req, http.StatusInternalServerError, jsonHeader, []byte(failed)))

	assert.Error(t, v.ValidateResponse(req, http.StatusOK, jsonHeader, []byte(`{"success":true}`)))
}
