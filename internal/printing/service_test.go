package printing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mrhamza01/prlabel/pkg/cloudevents"
	apperrors "github.com/Mrhamza01/prlabel/pkg/errors"
)

type fakeCarrier struct {
	existing    map[string]*Label
	created     []string
	existingErr error
	createErr   error
	downloadErr error
	downloads   []string
}

func (c *fakeCarrier) ExistingLabel(ctx context.Context, shipmentID string) (*Label, error) {
	if c.existingErr != nil {
		return nil, c.existingErr
	}
	return c.existing[shipmentID], nil
}

func (c *fakeCarrier) CreateLabel(ctx context.Context, shipmentID string) (*Label, error) {
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.created = append(c.created, shipmentID)
	return &Label{ShipmentID: shipmentID, LabelID: "new-" + shipmentID, PDFURL: "https://labels/" + shipmentID + ".pdf"}, nil
}

func (c *fakeCarrier) Download(ctx context.Context, url string) ([]byte, error) {
	if c.downloadErr != nil {
		return nil, c.downloadErr
	}
	c.downloads = append(c.downloads, url)
	return []byte("%PDF " + url), nil
}

type fakeDriver struct {
	jobs []Job
	err  error
}

func (d *fakeDriver) Print(ctx context.Context, job Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type fakeRegistry struct {
	printers []Printer
	driver   *fakeDriver
}

func (r *fakeRegistry) Printers() []Printer { return r.printers }

func (r *fakeRegistry) Default() (Printer, Driver, error) {
	for _, p := range r.printers {
		if p.IsDefault {
			return p, r.driver, nil
		}
	}
	return Printer{}, nil, ErrNoDefaultPrinter
}

type fakePublisher struct {
	topics []string
	events []*cloudevents.WMSCloudEvent
	err    error
}

func (p *fakePublisher) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return p.err
}

func newTestService(opts ...Option) (*Service, *fakeCarrier, *fakeDriver) {
	carrier := &fakeCarrier{existing: map[string]*Label{
		"se-1": {ShipmentID: "se-1", LabelID: "lbl-1", PDFURL: "https://labels/se-1.pdf"},
		"se-9": {ShipmentID: "se-9", LabelID: "lbl-9"},
	}}
	driver := &fakeDriver{}
	registry := &fakeRegistry{
		printers: []Printer{{Name: "office", Driver: "command"}, {Name: "zebra", IsDefault: true, Driver: "spool"}},
		driver:   driver,
	}
	return NewService(carrier, registry, nil, nil, opts...), carrier, driver
}

func TestPrintExisting(t *testing.T) {
	svc, carrier, driver := newTestService()

	res, err := svc.PrintExisting(context.Background(), "se-1")
	require.NoError(t, err)
	assert.Equal(t, &Result{ShipmentID: "se-1", Printer: "zebra", Mode: ModeExisting, LabelID: "lbl-1"}, res)

	assert.Equal(t, []string{"https://labels/se-1.pdf"}, carrier.downloads)
	require.Len(t, driver.jobs, 1)
	assert.Equal(t, Job{ShipmentID: "se-1", Printer: "zebra", PDF: []byte("%PDF https://labels/se-1.pdf")}, driver.jobs[0])
	assert.Empty(t, carrier.created)
}

func TestGenerateAndPrint(t *testing.T) {
	svc, carrier, driver := newTestService()

	res, err := svc.GenerateAndPrint(context.Background(), "se-2")
	require.NoError(t, err)
	assert.Equal(t, ModeGenerated, res.Mode)
	assert.Equal(t, "new-se-2", res.LabelID)
	assert.Equal(t, []string{"se-2"}, carrier.created)
	require.Len(t, driver.jobs, 1)
}

func TestPrintFailures(t *testing.T) {
	tests := []struct {
		name       string
		shipmentID string
		setup      func(*fakeCarrier, *fakeDriver)
		wantCode   string
		wantStatus int
	}{
		{
			name:       "missing shipment",
			shipmentID: "",
			wantCode:   apperrors.CodeValidationError,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no label for shipment",
			shipmentID: "se-404",
			wantCode:   apperrors.CodeLabelUnavailable,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "label without pdf",
			shipmentID: "se-9",
			wantCode:   apperrors.CodeLabelUnavailable,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "carrier reports missing label",
			shipmentID: "se-1",
			setup: func(c *fakeCarrier, _ *fakeDriver) {
				c.existingErr = ErrLabelNotFound
			},
			wantCode:   apperrors.CodeLabelUnavailable,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "carrier down",
			shipmentID: "se-1",
			setup: func(c *fakeCarrier, _ *fakeDriver) {
				c.existingErr = errors.New("carrier request failed")
			},
			wantCode:   apperrors.CodeCarrierError,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "download fails",
			shipmentID: "se-1",
			setup: func(c *fakeCarrier, _ *fakeDriver) {
				c.downloadErr = errors.New("connection reset")
			},
			wantCode:   apperrors.CodeCarrierError,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "printer fails",
			shipmentID: "se-1",
			setup: func(_ *fakeCarrier, d *fakeDriver) {
				d.err = errors.New("lp: printer offline")
			},
			wantCode:   apperrors.CodePrinterError,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, carrier, driver := newTestService()
			if tt.setup != nil {
				tt.setup(carrier, driver)
			}

			res, err := svc.PrintExisting(context.Background(), tt.shipmentID)
			assert.Nil(t, res)

			appErr, ok := apperrors.AsAppError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, tt.wantStatus, appErr.HTTPStatus)
		})
	}
}

func TestPrintWithoutDefaultPrinter(t *testing.T) {
	carrier := &fakeCarrier{}
	svc := NewService(carrier, &fakeRegistry{}, nil, nil)

	_, err := svc.GenerateAndPrint(context.Background(), "se-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodePrinterError))
	assert.ErrorIs(t, err, ErrNoDefaultPrinter)
	assert.Empty(t, carrier.created, "no label is bought without a printer")

	_, err = svc.DefaultPrinter(context.Background())
	assert.ErrorIs(t, err, ErrNoDefaultPrinter)
	assert.Equal(t, []Printer{}, svc.Printers(context.Background()))
}

func TestPrinters(t *testing.T) {
	svc, _, _ := newTestService()

	assert.Len(t, svc.Printers(context.Background()), 2)

	p, err := svc.DefaultPrinter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Printer{Name: "zebra", IsDefault: true, Driver: "spool"}, p)
}

func TestLabelPrintedEvent(t *testing.T) {
	publisher := &fakePublisher{}
	factory := cloudevents.NewEventFactory(cloudevents.SourcePrintGateway)
	svc, _, _ := newTestService(WithEventPublisher(publisher, factory, "wms.dispatch.events"))

	_, err := svc.PrintExisting(context.Background(), "se-1")
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, []string{"wms.dispatch.events"}, publisher.topics)
	event := publisher.events[0]
	assert.Equal(t, cloudevents.LabelPrinted, event.Type)
	assert.Equal(t, "shipment/se-1", event.Subject)

	data, ok := event.Data.(cloudevents.LabelPrintedData)
	require.True(t, ok)
	assert.Equal(t, "zebra", data.Printer)
	assert.Equal(t, ModeExisting, data.Mode)

	// a failed job publishes nothing
	_, err = svc.PrintExisting(context.Background(), "se-404")
	require.Error(t, err)
	assert.Len(t, publisher.events, 1)
}

func TestLabelPrintedPublishFailureKeepsJobSuccessful(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker unreachable")}
	svc, _, driver := newTestService(WithEventPublisher(publisher, cloudevents.NewEventFactory(cloudevents.SourcePrintGateway), "wms.dispatch.events"))

	res, err := svc.GenerateAndPrint(context.Background(), "se-5")
	require.NoError(t, err)
	assert.Equal(t, "zebra", res.Printer)
	assert.Len(t, driver.jobs, 1)
}
