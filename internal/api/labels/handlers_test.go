package labels

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

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mrhamza01/prlabel/internal/printing"
	"github.com/Mrhamza01/prlabel/pkg/contracts/openapi"
	"github.com/Mrhamza01/prlabel/pkg/logging"
	"github.com/Mrhamza01/prlabel/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCarrier struct {
	labels map[string]string
}

func (c *stubCarrier) ExistingLabel(_ context.Context, shipmentID string) (*printing.Label, error) {
	url, ok := c.labels[shipmentID]
	if !ok {
		return nil, printing.ErrLabelNotFound
	}
	return &printing.Label{ShipmentID: shipmentID, PDFURL: url}, nil
}

func (c *stubCarrier) CreateLabel(_ context.Context, shipmentID string) (*printing.Label, error) {
	if shipmentID == "se-voided" {
		return nil, errors.New("shipment se-voided has been voided")
	}
	return &printing.Label{ShipmentID: shipmentID, PDFURL: "https://labels/" + shipmentID}, nil
}

func (c *stubCarrier) Download(_ context.Context, url string) ([]byte, error) {
	return []byte("%PDF"), nil
}

type stubDriver struct {
	printed []string
}

func (d *stubDriver) Print(_ context.Context, job printing.Job) error {
	d.printed = append(d.printed, job.ShipmentID)
	return nil
}

type stubRegistry struct {
	printers []printing.Printer
	driver   *stubDriver
}

func (r *stubRegistry) Printers() []printing.Printer { return r.printers }

func (r *stubRegistry) Default() (printing.Printer, printing.Driver, error) {
	for _, p := range r.printers {
		if p.IsDefault {
			return p, r.driver, nil
		}
	}
	return printing.Printer{}, nil, printing.ErrNoDefaultPrinter
}

func newTestRouter(registry *stubRegistry) *gin.Engine {
	logger := logging.NewNop()
	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig("print-gateway", slog.New(slog.NewJSONHandler(io.Discard, nil))))

	carrier := &stubCarrier{labels: map[string]string{"se-1": "https://labels/se-1"}}
	service := printing.NewService(carrier, registry, logger, nil)
	NewHandlers(service, logger).RegisterRoutes(&router.RouterGroup)
	return router
}

func newRegistry() *stubRegistry {
	return &stubRegistry{
		printers: []printing.Printer{
			{Name: "office", Driver: "command"},
			{Name: "zebra", IsDefault: true, Driver: "spool"},
		},
		driver: &stubDriver{},
	}
}

func serve(t *testing.T, router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	return serveUnchecked(t, router, req, true)
}

// serveUnchecked skips request validation for requests the contract rejects
// but the handler still has to answer.
func serveUnchecked(t *testing.T, router *gin.Engine, req *http.Request, validateRequest bool) *httptest.ResponseRecorder {
	t.Helper()
	v, err := openapi.NewPrintValidator()
	require.NoError(t, err)
	if validateRequest {
		require.NoError(t, v.ValidateRequest(req))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.NoError(t, v.ValidateResponse(req, rec.Code, rec.Header(), rec.Body.Bytes()), rec.Body.String())
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestPrinters(t *testing.T) {
	router := newTestRouter(newRegistry())

	rec := serve(t, router, httptest.NewRequest(http.MethodGet, "/printers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"printers":[
		{"name":"office","isDefault":false,"driver":"command"},
		{"name":"zebra","isDefault":true,"driver":"spool"}
	]}`, rec.Body.String())

	rec = serve(t, router, httptest.NewRequest(http.MethodGet, "/printers/default", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"defaultPrinter":{"name":"zebra","isDefault":true,"driver":"spool"}}`, rec.Body.String())
}

func TestNoPrintersConfigured(t *testing.T) {
	router := newTestRouter(&stubRegistry{driver: &stubDriver{}})

	rec := serve(t, router, httptest.NewRequest(http.MethodGet, "/printers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"printers":[]}`, rec.Body.String())

	rec = serve(t, router, httptest.NewRequest(http.MethodGet, "/printers/default", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch default printer"}`, rec.Body.String())
}

func TestPrint(t *testing.T) {
	registry := newRegistry()
	router := newTestRouter(registry)

	rec := serve(t, router, jsonRequest(http.MethodPost, "/print", `{"shipmentId":"se-1"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Label printed successfully!","shipmentId":"se-1","printer":"zebra"}`, rec.Body.String())
	assert.Equal(t, []string{"se-1"}, registry.driver.printed)
}

func TestPrintFailures(t *testing.T) {
	tests := []struct {
		name       string
		req        *http.Request
		invalid    bool
		wantStatus int
		wantError  string
		wantCode   string
	}{
		{
			name:       "missing body",
			req:        httptest.NewRequest(http.MethodPost, "/print", nil),
			invalid:    true,
			wantStatus: http.StatusBadRequest,
			wantError:  "shipmentId is required",
		},
		{
			name:       "empty shipment",
			req:        jsonRequest(http.MethodPost, "/print", `{"shipmentId":""}`),
			wantStatus: http.StatusBadRequest,
			wantError:  "shipmentId is required",
		},
		{
			name:       "malformed shipment",
			req:        jsonRequest(http.MethodPost, "/print", `{"shipmentId":"se 1;rm"}`),
			wantStatus: http.StatusBadRequest,
			wantError:  "shipmentId must be a carrier shipment ID such as se-123456",
		},
		{
			name:       "no label",
			req:        jsonRequest(http.MethodPost, "/print", `{"shipmentId":"se-2"}`),
			wantStatus: http.StatusInternalServerError,
			wantError:  "No PDF URL found for this shipment",
			wantCode:   "LABEL_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := newRegistry()
			rec := serveUnchecked(t, newTestRouter(registry), tt.req, !tt.invalid)
			require.Equal(t, tt.wantStatus, rec.Code)

			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantError, body["error"])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["code"])
			}
			assert.Empty(t, registry.driver.printed)
		})
	}
}

func TestGenerateAndPrint(t *testing.T) {
	registry := newRegistry()
	router := newTestRouter(registry)

	rec := serve(t, router, httptest.NewRequest(http.MethodPost, "/generate-and-print?shipmentId=se-7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "se-7", body["shipmentId"])
	assert.Equal(t, []string{"se-7"}, registry.driver.printed)

	rec = serve(t, router, httptest.NewRequest(http.MethodPost, "/generate-and-print", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"shipmentId is required"}`, rec.Body.String())

	rec = serve(t, router, httptest.NewRequest(http.MethodPost, "/generate-and-print?shipmentId=se-voided", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "shipment se-voided has been voided", body["error"])
	assert.Equal(t, "CARRIER_ERROR", body["code"])
	assert.Equal(t, "se-voided", body["shipmentId"])
}
