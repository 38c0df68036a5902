package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mrhamza01/prlabel/internal/browser"
	"github.com/Mrhamza01/prlabel/internal/domain"
	"github.com/Mrhamza01/prlabel/internal/station"
)

// StationOptions holds flags for the station command.
type StationOptions struct {
	*RootOptions
	Claim bool
	Name  string
}

// NewStationCommand creates the station command.
func NewStationCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StationOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "station <pickListID>",
		Short: "Open the interactive scan station for a pick list",
		Long: `Open a full-screen scan station. Scanned UPCs mark their shipment
shipped and print its label; typing filters the lines.

Keys:
  enter   resolve the typed UPC
  ctrl+p  print the selected shipment's existing label
  ctrl+g  generate and print a new label
  esc     clear the input
  ctrl+c  quit

With --claim the pick list is assigned to --entity before the station opens.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePickListID(args[0])
			if err != nil {
				return err
			}
			return runStation(cmd, opts, id)
		},
	}

	cmd.Flags().BoolVar(&opts.Claim, "claim", false, "assign the pick list to --entity first")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name shown for the packer")

	return cmd
}

func runStation(cmd *cobra.Command, opts *StationOptions, pickListID int64) error {
	ctx := cmd.Context()
	if opts.Claim && opts.Config.Entity == "" {
		return fmt.Errorf("--claim needs an entity: pass --entity or set %s_ENTITY", EnvPrefix)
	}

	session, err := loadSession(ctx, opts.RootOptions, pickListID)
	if err != nil {
		return err
	}
	clients, err := opts.Clients()
	if err != nil {
		return err
	}

	stationOpts := []station.Option{
		station.WithPrinterSource(clients.Print),
		station.WithSyncSource(clients.Fulfillment),
	}

	var m *station.Model
	b := browser.New(clients.Fulfillment,
		browser.WithLogger(opts.Logger),
		browser.WithOnAssigned(func(_ int64, entity domain.Entity) {
			if m != nil {
				m.SetPacker(entity)
			}
		}),
	)
	if err := b.Fetch(ctx, domain.ListAll, ""); err != nil {
		opts.Logger.WithError(err).Warn("Pick list header unavailable", "pickListId", pickListID)
	} else if p, ok := b.CurrentPickList(pickListID); ok {
		stationOpts = append(stationOpts, station.WithPickList(p))
	}

	m = station.New(ctx, session, stationOpts...)
	if opts.Claim {
		entity := domain.Entity{ID: opts.Config.Entity, Name: opts.Name}
		if err := b.Assign(ctx, pickListID, entity); err != nil {
			return fmt.Errorf("failed to claim pick list %d: %w", pickListID, err)
		}
	}

	return station.Run(ctx, m)
}
