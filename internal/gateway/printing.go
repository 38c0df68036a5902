package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// Printer is a label printer known to the print gateway
type Printer struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
	Driver    string `json:"driver,omitempty"`
}

// PrintResult is the body of a successful print call
type PrintResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ShipmentID string `json:"shipmentId"`
	Printer    string `json:"printer,omitempty"`
}

type printRequest struct {
	ShipmentID string `json:"shipmentId"`
}

// PrintClient talks to the print gateway
type PrintClient struct {
	c *client
}

// NewPrintClient creates a client rooted at baseURL, e.g.
// http://localhost:4000
func NewPrintClient(baseURL string, opts ...Option) *PrintClient {
	return &PrintClient{c: newClient("print-gateway", baseURL, opts...)}
}

// Print sends the carrier's existing label for the shipment to the printer
func (p *PrintClient) Print(ctx context.Context, shipmentID string) (*PrintResult, error) {
	var out PrintResult
	if err := p.c.doRequest(ctx, "print_label", http.MethodPost, "/print", printRequest{ShipmentID: shipmentID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateAndPrint creates a fresh carrier label and prints it
func (p *PrintClient) GenerateAndPrint(ctx context.Context, shipmentID string) (*PrintResult, error) {
	q := url.Values{"shipmentId": {shipmentID}}

	var out PrintResult
	if err := p.c.doRequest(ctx, "generate_and_print", http.MethodPost, "/generate-and-print?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PrintLabel satisfies dispatch.PrintGateway
func (p *PrintClient) PrintLabel(ctx context.Context, shipmentID string) error {
	_, err := p.Print(ctx, shipmentID)
	return err
}

// GenerateAndPrintLabel satisfies dispatch.PrintGateway
func (p *PrintClient) GenerateAndPrintLabel(ctx context.Context, shipmentID string) error {
	_, err := p.GenerateAndPrint(ctx, shipmentID)
	return err
}

// Printers lists the configured printers
func (p *PrintClient) Printers(ctx context.Context) ([]Printer, error) {
	var out struct {
		Printers []Printer `json:"printers"`
	}
	if err := p.c.doRequest(ctx, "list_printers", http.MethodGet, "/printers", nil, &out); err != nil {
		return nil, err
	}
	return out.Printers, nil
}

// DefaultPrinter returns the printer labels go to
func (p *PrintClient) DefaultPrinter(ctx context.Context) (*Printer, error) {
	var out struct {
		DefaultPrinter *Printer `json:"defaultPrinter"`
	}
	if err := p.c.doRequest(ctx, "default_printer", http.MethodGet, "/printers/default", nil, &out); err != nil {
		return nil, err
	}
	if out.DefaultPrinter == nil {
		return nil, &Error{Op: "default_printer", Message: "no default printer", Logical: true}
	}
	return out.DefaultPrinter, nil
}
