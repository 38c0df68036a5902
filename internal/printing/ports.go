// Package printing sends carrier shipping labels to a label printer.
//
// A print job fetches (or creates) the label for a shipment from the carrier,
// downloads the PDF and hands it to the default printer's driver. The carrier
// and the printer drivers are ports implemented under
// internal/infrastructure.
package printing

import (
	"context"
	"errors"
)

// Print modes
const (
	ModeExisting  = "existing"
	ModeGenerated = "generated"
)

var (
	// ErrLabelNotFound is matched by carrier errors for a shipment without a
	// downloadable label
	ErrLabelNotFound = errors.New("no PDF URL found for this shipment")

	// ErrNoDefaultPrinter is returned when no printer is marked default
	ErrNoDefaultPrinter = errors.New("no default printer configured")
)

// Label is a carrier label ready for download
type Label struct {
	ShipmentID     string
	LabelID        string
	TrackingNumber string
	PDFURL         string
}

// Carrier is the port to the carrier label API
type Carrier interface {
	// ExistingLabel returns the most recent label created for the shipment
	ExistingLabel(ctx context.Context, shipmentID string) (*Label, error)

	// CreateLabel purchases a new label for the shipment
	CreateLabel(ctx context.Context, shipmentID string) (*Label, error)

	// Download fetches the label document
	Download(ctx context.Context, url string) ([]byte, error)
}

// Printer describes a configured printer
type Printer struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
	Driver    string `json:"driver,omitempty"`
}

// Job is one label document bound for a printer
type Job struct {
	ShipmentID string
	Printer    string
	PDF        []byte
}

// Driver delivers a job to a physical or virtual printer
type Driver interface {
	Print(ctx context.Context, job Job) error
}

// Registry lists the configured printers
type Registry interface {
	Printers() []Printer
	Default() (Printer, Driver, error)
}
