package cli

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Mrhamza01/prlabel/internal/browser"
	"github.com/Mrhamza01/prlabel/internal/dispatch"
	"github.com/Mrhamza01/prlabel/internal/domain"
	"github.com/Mrhamza01/prlabel/internal/gateway"
	"github.com/Mrhamza01/prlabel/pkg/logging"
)

// Fulfillment is the fulfillment gateway surface the commands use
type Fulfillment interface {
	browser.Gateway
	dispatch.FulfillmentGateway
	Lines(ctx context.Context, pickListID int64) ([]domain.Line, error)
	LastSync(ctx context.Context) (*gateway.SyncInfo, error)
}

// Printing is the print gateway surface the commands use
type Printing interface {
	dispatch.PrintGateway
	Printers(ctx context.Context) ([]gateway.Printer, error)
	DefaultPrinter(ctx context.Context) (*gateway.Printer, error)
}

// Clients bundles both gateways
type Clients struct {
	Fulfillment Fulfillment
	Print       Printing
}

// ClientFactory builds the gateway clients from the resolved config
type ClientFactory func(cfg *Config, logger *logging.Logger) (*Clients, error)

// NewGatewayClients builds HTTP clients for both gateways
func NewGatewayClients(cfg *Config, logger *logging.Logger) (*Clients, error) {
	for name, raw := range map[string]string{"fulfillment-url": cfg.FulfillmentURL, "print-url": cfg.PrintURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid %s %q: must be an absolute http(s) URL", name, raw)
		}
	}

	opts := []gateway.Option{
		gateway.WithTimeout(cfg.Timeout),
		gateway.WithLogger(logger),
	}
	return &Clients{
		Fulfillment: gateway.NewFulfillmentClient(cfg.FulfillmentURL, opts...),
		Print:       gateway.NewPrintClient(cfg.PrintURL, opts...),
	}, nil
}
