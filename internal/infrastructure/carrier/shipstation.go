// Package carrier adapts the ShipStation v2 label API to the printing ports.
package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Mrhamza01/prlabel/internal/printing"
	"github.com/Mrhamza01/prlabel/pkg/logging"
	"github.com/Mrhamza01/prlabel/pkg/metrics"
	"github.com/Mrhamza01/prlabel/pkg/resilience"
)

// Carrier error codes
const (
	CodeLabelNotFound  = "LABEL_NOT_FOUND"
	CodeRejected       = "CARRIER_REJECTED"
	CodeUnavailable    = "CARRIER_UNAVAILABLE"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
)

const (
	apiKeyHeader    = "api-key"
	maxJSONBytes    = 1 << 20
	maxLabelBytes   = 10 << 20
	breakerName     = "shipstation"
	noPDFURLMessage = "No PDF URL found for this shipment"
)

// CarrierError is a failed carrier call
type CarrierError struct {
	Code        string
	Message     string
	StatusCode  int
	Retryable   bool
	OriginalErr error
}

func (e *CarrierError) Error() string {
	if e.OriginalErr != nil {
		return e.Message + ": " + e.OriginalErr.Error()
	}
	return e.Message
}

func (e *CarrierError) Unwrap() error {
	return e.OriginalErr
}

// Is matches printing.ErrLabelNotFound for LABEL_NOT_FOUND errors
func (e *CarrierError) Is(target error) bool {
	return target == printing.ErrLabelNotFound && e.Code == CodeLabelNotFound
}

// NewCarrierError creates a new CarrierError
func NewCarrierError(code, message string, retryable bool, originalErr error) *CarrierError {
	return &CarrierError{
		Code:        code,
		Message:     message,
		Retryable:   retryable,
		OriginalErr: originalErr,
	}
}

// IsRetryable reports whether err is a carrier error worth retrying
func IsRetryable(err error) bool {
	var carrierErr *CarrierError
	return errors.As(err, &carrierErr) && carrierErr.Retryable
}

// Config holds ShipStation configuration
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	LabelLayout string
	LabelFormat string
}

// DefaultConfig returns the production endpoint with 4x6 PDF labels
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.shipstation.com",
		Timeout:     15 * time.Second,
		LabelLayout: "4x6",
		LabelFormat: "pdf",
	}
}

// ShipStationAdapter is the anti-corruption layer for the ShipStation API.
// It translates ShipStation label models into printing.Label.
type ShipStationAdapter struct {
	config     *Config
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retry      *resilience.RetryConfig
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewShipStationAdapter creates a new ShipStation adapter. logger and m may be nil.
func NewShipStationAdapter(config *Config, logger *logging.Logger, m *metrics.Metrics) *ShipStationAdapter {
	if logger == nil {
		logger = logging.NewNop()
	}

	cbConfig := resilience.DefaultCircuitBreakerConfig(breakerName)
	// A shipment without a label says nothing about carrier health
	cbConfig.IsSuccessful = func(err error) bool {
		var carrierErr *CarrierError
		if errors.As(err, &carrierErr) {
			return !carrierErr.Retryable
		}
		return err == nil
	}

	retry := resilience.DefaultRetryConfig()
	retry.RetryableErrors = IsRetryable

	return &ShipStationAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker:    resilience.NewCircuitBreaker(cbConfig, logger, m),
		retry:      retry,
		logger:     logger.WithComponent("shipstation"),
		metrics:    m,
	}
}

// ExistingLabel calls GET /v2/labels?shipment_id= and returns the first label
func (a *ShipStationAdapter) ExistingLabel(ctx context.Context, shipmentID string) (*printing.Label, error) {
	query := url.Values{"shipment_id": {shipmentID}}

	var resp labelListResponse
	if err := a.call(ctx, "list_labels", http.MethodGet, "/v2/labels?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Labels) == 0 {
		return nil, NewCarrierError(CodeLabelNotFound, noPDFURLMessage, false, nil)
	}
	return a.toLabel(shipmentID, &resp.Labels[0])
}

// CreateLabel calls POST /v2/labels/shipment/{id}
func (a *ShipStationAdapter) CreateLabel(ctx context.Context, shipmentID string) (*printing.Label, error) {
	req := createLabelRequest{
		ValidateAddress:   "no_validation",
		LabelLayout:       a.config.LabelLayout,
		LabelFormat:       a.config.LabelFormat,
		LabelDownloadType: "url",
		DisplayScheme:     "label",
	}

	var resp labelResponse
	if err := a.call(ctx, "create_label", http.MethodPost, "/v2/labels/shipment/"+url.PathEscape(shipmentID), req, &resp); err != nil {
		return nil, err
	}
	return a.toLabel(shipmentID, &resp)
}

// Download fetches a label document, retrying transient failures. The API
// key is only sent to the configured ShipStation host.
func (a *ShipStationAdapter) Download(ctx context.Context, labelURL string) ([]byte, error) {
	return resilience.RetryWithResult(ctx, a.retry, func(ctx context.Context) ([]byte, error) {
		body, err := a.download(ctx, labelURL)
		a.metrics.RecordCarrierRequest("download_label", err == nil)
		return body, err
	})
}

func (a *ShipStationAdapter) download(ctx context.Context, labelURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, labelURL, nil)
	if err != nil {
		return nil, NewCarrierError(CodeDownloadFailed, "invalid label URL", false, err)
	}
	if a.sameHost(req.URL) {
		req.Header.Set(apiKeyHeader, a.config.APIKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, NewCarrierError(CodeDownloadFailed, "label download failed", true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxJSONBytes))
		e := NewCarrierError(CodeDownloadFailed, fmt.Sprintf("label download returned status %d", resp.StatusCode), retryableStatus(resp.StatusCode), nil)
		e.StatusCode = resp.StatusCode
		return nil, e
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLabelBytes))
	if err != nil {
		return nil, NewCarrierError(CodeDownloadFailed, "label download interrupted", true, err)
	}
	if len(body) == 0 {
		return nil, NewCarrierError(CodeDownloadFailed, "label download was empty", false, nil)
	}
	return body, nil
}

func (a *ShipStationAdapter) sameHost(u *url.URL) bool {
	base, err := url.Parse(a.config.BaseURL)
	return err == nil && strings.EqualFold(base.Host, u.Host)
}

func (a *ShipStationAdapter) call(ctx context.Context, op, method, path string, body, out interface{}) error {
	start := time.Now()
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		return a.doRequest(ctx, method, path, body, out)
	})

	a.metrics.RecordCarrierRequest(op, err == nil)
	a.logger.WithContext(ctx).WithError(err).Debug("Carrier request",
		"op", op,
		"durationMs", time.Since(start).Milliseconds(),
	)

	if errors.Is(err, resilience.ErrCircuitOpen) {
		return NewCarrierError(CodeUnavailable, "carrier temporarily unavailable", true, err)
	}
	return err
}

func (a *ShipStationAdapter) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal carrier request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(a.config.BaseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create carrier request: %w", err)
	}
	req.Header.Set(apiKeyHeader, a.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return NewCarrierError(CodeUnavailable, "carrier request failed", true, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBytes))
	if err != nil {
		return NewCarrierError(CodeUnavailable, "failed to read carrier response", true, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return translateError(resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return NewCarrierError(CodeUnavailable, "invalid carrier response", false, err)
	}
	return nil
}

// translateError maps a ShipStation error body to a CarrierError
func translateError(status int, data []byte) *CarrierError {
	message := http.StatusText(status)

	var errResp errorResponse
	if json.Unmarshal(data, &errResp) == nil && len(errResp.Errors) > 0 {
		msgs := make([]string, 0, len(errResp.Errors))
		for _, e := range errResp.Errors {
			if e.Message != "" {
				msgs = append(msgs, e.Message)
			}
		}
		if len(msgs) > 0 {
			message = strings.Join(msgs, "; ")
		}
	}

	code := CodeRejected
	if retryableStatus(status) {
		code = CodeUnavailable
	}

	e := NewCarrierError(code, message, retryableStatus(status), nil)
	e.StatusCode = status
	return e
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func (a *ShipStationAdapter) toLabel(shipmentID string, l *labelResponse) (*printing.Label, error) {
	if l.LabelDownload.PDF == "" {
		return nil, NewCarrierError(CodeLabelNotFound, noPDFURLMessage, false, nil)
	}
	if l.ShipmentID != "" {
		shipmentID = l.ShipmentID
	}
	return &printing.Label{
		ShipmentID:     shipmentID,
		LabelID:        l.LabelID,
		TrackingNumber: l.TrackingNumber,
		PDFURL:         l.LabelDownload.PDF,
	}, nil
}

// --- ShipStation API models ---

type createLabelRequest struct {
	ValidateAddress   string `json:"validate_address"`
	LabelLayout       string `json:"label_layout"`
	LabelFormat       string `json:"label_format"`
	LabelDownloadType string `json:"label_download_type"`
	DisplayScheme     string `json:"display_scheme"`
}

type labelListResponse struct {
	Labels []labelResponse `json:"labels"`
}

type labelResponse struct {
	LabelID        string        `json:"label_id"`
	Status         string        `json:"status"`
	ShipmentID     string        `json:"shipment_id"`
	TrackingNumber string        `json:"tracking_number"`
	LabelDownload  labelDownload `json:"label_download"`
}

type labelDownload struct {
	PDF  string `json:"pdf"`
	PNG  string `json:"png"`
	ZPL  string `json:"zpl"`
	Href string `json:"href"`
}

type errorResponse struct {
	RequestID string `json:"request_id"`
	Errors    []struct {
		ErrorSource string `json:"error_source"`
		ErrorType   string `json:"error_type"`
		ErrorCode   string `json:"error_code"`
		Message     string `json:"message"`
	} `json:"errors"`
}
