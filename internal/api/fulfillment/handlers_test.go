package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mrhamza01/prlabel/internal/application"
	"github.com/Mrhamza01/prlabel/internal/domain"
	"github.com/Mrhamza01/prlabel/pkg/contracts/openapi"
	"github.com/Mrhamza01/prlabel/pkg/logging"
	"github.com/Mrhamza01/prlabel/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryRepo struct {
	pickLists map[int64]*domain.PickList
	lines     []domain.Line
	sync      *domain.SyncLogEntry
	failWith  error
}

func (r *memoryRepo) List(_ context.Context, filter domain.ListFilter) ([]*domain.PickList, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []*domain.PickList
	for _, id := range []int64{2, 1} {
		p, ok := r.pickLists[id]
		if !ok {
			continue
		}
		cp := *p
		cp.ApplyLines(r.linesOf(id))
		if filter.Status.Includes(cp.Status) && cp.AssignedTo(filter.EntityID) {
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryRepo) FindByID(_ context.Context, id int64) (*domain.PickList, error) {
	p, ok := r.pickLists[id]
	if !ok {
		return nil, domain.ErrPickListNotFound
	}
	cp := *p
	cp.ApplyLines(r.linesOf(id))
	return &cp, nil
}

func (r *memoryRepo) Lines(_ context.Context, id int64) ([]domain.Line, error) {
	return r.linesOf(id), nil
}

func (r *memoryRepo) linesOf(id int64) []domain.Line {
	out := []domain.Line{}
	for _, l := range r.lines {
		if l.PickListID == id {
			out = append(out, l)
		}
	}
	return out
}

func (r *memoryRepo) MarkShipmentShipped(_ context.Context, shipmentID string, at time.Time) (*domain.ShipmentShippedEvent, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	var ids []int64
	for i := range r.lines {
		if r.lines[i].ShipmentID == shipmentID {
			r.lines[i].MarkShipped()
			ids = append(ids, r.lines[i].ID)
		}
	}
	if len(ids) == 0 {
		return nil, domain.ErrShipmentNotFound
	}
	return &domain.ShipmentShippedEvent{ShipmentID: shipmentID, LineIDs: ids, RecordsFound: len(ids), ShippedAt: at}, nil
}

func (r *memoryRepo) Save(_ context.Context, p *domain.PickList) error {
	cp := *p
	cp.ClearDomainEvents()
	r.pickLists[p.ID] = &cp
	p.ClearDomainEvents()
	return nil
}

func (r *memoryRepo) LatestSync(_ context.Context) (*domain.SyncLogEntry, error) {
	return r.sync, nil
}

func intPtr(v int) *int { return &v }

func newRepo() *memoryRepo {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return &memoryRepo{
		pickLists: map[int64]*domain.PickList{
			1: {ID: 1, OrderNumber: "ORD-1", OrderDate: day, Version: 1, UpdatedAt: day},
			2: {ID: 2, OrderNumber: "ORD-2", OrderDate: day.Add(24 * time.Hour), Version: 1, UpdatedAt: day},
		},
		lines: []domain.Line{
			{PickListID: 1, ID: 11, ShipmentID: "se-1", ShipmentNumber: "SN-1", UPC: "111", Quantity: 2, PickedQty: intPtr(2)},
			{PickListID: 1, ID: 12, ShipmentID: "se-1", ShipmentNumber: "SN-1", UPC: "222", Quantity: 1, PickedQty: intPtr(1)},
			{PickListID: 2, ID: 21, ShipmentID: "se-2", ShipmentNumber: "SN-2", UPC: "333", Quantity: 1, PickedQty: intPtr(1), ShippedQty: intPtr(1)},
		},
	}
}

func newTestRouter(t *testing.T, repo *memoryRepo) *gin.Engine {
	t.Helper()
	logger := logging.NewNop()
	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig("fulfillment-gateway", slog.New(slog.NewJSONHandler(io.Discard, nil))))

	service := application.NewFulfillmentService(repo, logger, nil)
	NewHandlers(service, logger).RegisterRoutes(&router.RouterGroup)
	return router
}

func newContractValidator(t *testing.T) *openapi.Validator {
	t.Helper()
	v, err := openapi.NewFulfillmentValidator()
	require.NoError(t, err)
	return v
}

// serve runs the request and checks the response against the contract
func serve(t *testing.T, router *gin.Engine, v *openapi.Validator, req *http.Request, validateRequest bool) *httptest.ResponseRecorder {
	t.Helper()
	if validateRequest {
		require.NoError(t, v.ValidateRequest(req))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.NoError(t, v.ValidateResponse(req, rec.Code, rec.Header(), rec.Body.Bytes()), rec.Body.String())
	return rec
}

func TestListPickLists(t *testing.T) {
	v := newContractValidator(t)

	tests := []struct {
		name       string
		url        string
		validReq   bool
		wantStatus int
		wantIDs    []int64
	}{
		{"default pending", "/api/get-picklists", true, http.StatusOK, []int64{1}},
		{"alias completed", "/api/pick-lists?status=completed", true, http.StatusOK, []int64{2}},
		{"all newest first", "/api/pick-lists?status=all", true, http.StatusOK, []int64{2, 1}},
		{"unknown entity", "/api/pick-lists?status=all&entityId=99", true, http.StatusOK, []int64{}},
		{"bad status", "/api/pick-lists?status=open", false, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, newRepo())
			rec := serve(t, router, v, httptest.NewRequest(http.MethodGet, tt.url, nil), tt.validReq)
			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus != http.StatusOK {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, "status must be one of: pending, completed, all", body["error"])
				return
			}

			var lists []domain.PickList
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lists))
			ids := []int64{}
			for _, p := range lists {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestListLines(t *testing.T) {
	v := newContractValidator(t)
	router := newTestRouter(t, newRepo())

	rec := serve(t, router, v, httptest.NewRequest(http.MethodGet, "/api/pick-list-lines?PICK_LIST_ID=1", nil), true)
	require.Equal(t, http.StatusOK, rec.Code)
	var lines []domain.Line
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lines))
	assert.Len(t, lines, 2)

	rec = serve(t, router, v, httptest.NewRequest(http.MethodGet, "/api/get-picklist-lines", nil), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"PICK_LIST_ID is required"}`, rec.Body.String())

	rec = serve(t, router, v, httptest.NewRequest(http.MethodGet, "/api/get-picklist-lines?PICK_LIST_ID=abc", nil), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"PICK_LIST_ID must be a number"}`, rec.Body.String())
}

func TestMarkShipmentShipped(t *testing.T) {
	v := newContractValidator(t)
	repo := newRepo()
	router := newTestRouter(t, repo)

	rec := serve(t, router, v, httptest.NewRequest(http.MethodGet, "/api/update-picklist-lines?SHIPMENT_ID=se-1", nil), true)
	require.Equal(t, http.StatusOK, rec.Code)

	var body application.ShipmentUpdatedDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "se-1", body.ShipmentID)
	assert.Equal(t, 2, body.RecordsFound)
	assert.Equal(t, "Pick list line updated successfully", body.Message)

	for _, l := range repo.linesOf(1) {
		assert.True(t, l.QuantityComplete())
	}
}

func TestMarkShipmentShippedFailures(t *testing.T) {
	v := newContractValidator(t)

	tests := []struct {
		name       string
		url        string
		failWith   error
		wantStatus int
		wantError  string
	}{
		{"missing id", "/api/update-picklist-lines", nil, http.StatusBadRequest, "SHIPMENT_ID is required"},
		{"unknown shipment", "/api/update-picklist-lines?SHIPMENT_ID=se-404", nil, http.StatusNotFound, "No record found with the given SHIPMENT_ID"},
		{"store failure", "/api/update-picklist-lines?SHIPMENT_ID=se-1", errors.New("write conflict"), http.StatusInternalServerError, "Failed to update pick list lines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo()
			repo.failWith = tt.failWith
			router := newTestRouter(t, repo)

			rec := serve(t, router, v, httptest.NewRequest(http.MethodGet, tt.url, nil), false)
			require.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestAssignPickList(t *testing.T) {
	v := newContractValidator(t)
	repo := newRepo()
	router := newTestRouter(t, repo)

	newReq := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPut, "/api/assign-picklist", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	rec := serve(t, router, v, newReq(`{"ENTITY_ID":"7","PICK_LIST_ID":1}`), true)
	require.Equal(t, http.StatusOK, rec.Code)

	var res application.AssignResultDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.RowsAffected)
	require.NotNil(t, res.PickList.PackingPerson)
	assert.Equal(t, "7", *res.PickList.PackingPerson)
	assert.Equal(t, int64(2), res.PickList.Version)

	rec = serve(t, router, v, newReq(`{"ENTITY_ID":"7","PICK_LIST_ID":1}`), true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 0, res.RowsAffected)

	rec = serve(t, router, v, newReq(`{"ENTITY_ID":"7","PICK_LIST_ID":99}`), true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssignPickListRequiresBothFields(t *testing.T) {
	v := newContractValidator(t)
	router := newTestRouter(t, newRepo())

	for _, body := range []string{`{}`, `{"ENTITY_ID":"7"}`, `{"PICK_LIST_ID":1}`, `{"ENTITY_ID":"7","PICK_LIST_ID":"1"}`} {
		t.Run(body, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/assign-picklist", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			rec := serve(t, router, v, req, false)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"ENTITY_ID and PICK_LIST_ID are required"}`, rec.Body.String())
		})
	}
}

func TestSyncInfo(t *testing.T) {
	v := newContractValidator(t)
	repo := newRepo()
	router := newTestRouter(t, repo)

	rec := serve(t, router, v, httptest.NewRequest(http.MethodGet, "/api/sync-info", nil), true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	repo.sync = &domain.SyncLogEntry{DateCheck: time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)}
	rec = serve(t, router, v, httptest.NewRequest(http.MethodGet, "/api/check-label-print-status", nil), true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"DATE_CHECK":"2026-03-01T08:30:00Z"}]`, rec.Body.String())
}

func TestListPickListsStoreFailure(t *testing.T) {
	v := newContractValidator(t)
	repo := newRepo()
	repo.failWith = errors.New("connection reset")
	router := newTestRouter(t, repo)

	rec := serve(t, router, v, httptest.NewRequest(http.MethodGet, "/api/pick-lists", nil), true)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body middleware.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.Equal(t, "/api/pick-lists", body.Path)
}
