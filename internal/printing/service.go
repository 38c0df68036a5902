package printing

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Mrhamza01/prlabel/pkg/cloudevents"
	apperrors "github.com/Mrhamza01/prlabel/pkg/errors"
	"github.com/Mrhamza01/prlabel/pkg/kafka"
	"github.com/Mrhamza01/prlabel/pkg/logging"
	"github.com/Mrhamza01/prlabel/pkg/metrics"
	"github.com/Mrhamza01/prlabel/pkg/tracing"
)

// SuccessMessage is returned to the station after a label reaches the printer
const SuccessMessage = "Label printed successfully!"

// Result describes a completed print job
type Result struct {
	ShipmentID string
	Printer    string
	Mode       string
	LabelID    string
}

// Service runs label print jobs
type Service struct {
	carrier  Carrier
	registry Registry
	logger   *logging.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	publisher    kafka.EventPublisher
	eventFactory *cloudevents.EventFactory
	topic        string
}

// Option configures a Service
type Option func(*Service)

// WithEventPublisher publishes a LabelPrinted event after every successful job
func WithEventPublisher(publisher kafka.EventPublisher, factory *cloudevents.EventFactory, topic string) Option {
	return func(s *Service) {
		s.publisher = publisher
		s.eventFactory = factory
		s.topic = topic
	}
}

// NewService creates a new print Service. logger and m may be nil.
func NewService(carrier Carrier, registry Registry, logger *logging.Logger, m *metrics.Metrics, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Service{
		carrier:  carrier,
		registry: registry,
		logger:   logger.WithComponent("printing"),
		metrics:  m,
		tracer:   otel.Tracer("github.com/Mrhamza01/prlabel/internal/printing"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PrintExisting prints the label already created for the shipment
func (s *Service) PrintExisting(ctx context.Context, shipmentID string) (*Result, error) {
	return s.print(ctx, shipmentID, ModeExisting, s.carrier.ExistingLabel)
}

// GenerateAndPrint creates a new label for the shipment and prints it
func (s *Service) GenerateAndPrint(ctx context.Context, shipmentID string) (*Result, error) {
	return s.print(ctx, shipmentID, ModeGenerated, s.carrier.CreateLabel)
}

func (s *Service) print(ctx context.Context, shipmentID, mode string, fetch func(context.Context, string) (*Label, error)) (_ *Result, err error) {
	if shipmentID == "" {
		return nil, apperrors.ErrValidation("shipmentId is required")
	}

	ctx, span := s.tracer.Start(ctx, "printing."+mode,
		trace.WithAttributes(tracing.ShipmentAttributes(shipmentID)...),
		trace.WithAttributes(attribute.String("print.mode", mode)),
	)
	defer span.End()

	start := time.Now()
	printerName := ""
	defer func() {
		s.metrics.RecordPrintJob(mode, err == nil)
		s.logger.PrintJob(ctx, shipmentID, mode, printerName, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	printer, driver, err := s.registry.Default()
	if err != nil {
		return nil, apperrors.ErrPrinter(err.Error()).Wrap(err)
	}
	printerName = printer.Name
	span.SetAttributes(attribute.String("print.printer", printer.Name))

	label, err := fetch(ctx, shipmentID)
	if err != nil {
		return nil, carrierError(shipmentID, err)
	}
	if label == nil || label.PDFURL == "" {
		return nil, apperrors.ErrLabelUnavailable(shipmentID).Wrap(ErrLabelNotFound)
	}

	pdf, err := s.carrier.Download(ctx, label.PDFURL)
	if err != nil {
		return nil, apperrors.ErrCarrier("failed to download label").WithDetail("shipmentId", shipmentID).Wrap(err)
	}

	if err := driver.Print(ctx, Job{ShipmentID: shipmentID, Printer: printer.Name, PDF: pdf}); err != nil {
		return nil, apperrors.ErrPrinter("failed to send label to printer").WithDetail("printer", printer.Name).Wrap(err)
	}

	s.publishPrinted(ctx, shipmentID, mode, printer.Name)

	return &Result{
		ShipmentID: shipmentID,
		Printer:    printer.Name,
		Mode:       mode,
		LabelID:    label.LabelID,
	}, nil
}

func carrierError(shipmentID string, err error) error {
	if errors.Is(err, ErrLabelNotFound) {
		return apperrors.ErrLabelUnavailable(shipmentID).Wrap(err)
	}
	return apperrors.ErrCarrier(err.Error()).WithDetail("shipmentId", shipmentID).Wrap(err)
}

// publishPrinted is best effort; the label is already on paper
func (s *Service) publishPrinted(ctx context.Context, shipmentID, mode, printer string) {
	if s.publisher == nil {
		return
	}
	event := s.eventFactory.LabelPrintedEvent(ctx, shipmentID, mode, printer)
	if err := s.publisher.PublishEvent(ctx, s.topic, event); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to publish label printed event", "shipmentId", shipmentID)
	}
}

// Printers returns every configured printer
func (s *Service) Printers(ctx context.Context) []Printer {
	printers := s.registry.Printers()
	if printers == nil {
		printers = []Printer{}
	}
	return printers
}

// DefaultPrinter returns the printer labels are sent to
func (s *Service) DefaultPrinter(ctx context.Context) (*Printer, error) {
	printer, _, err := s.registry.Default()
	if err != nil {
		return nil, apperrors.ErrPrinter(err.Error()).Wrap(err)
	}
	return &printer, nil
}
