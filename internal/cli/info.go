package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type syncInfo struct {
	LastSync *time.Time `json:"lastSync"`
}

// NewSyncInfoCommand creates the sync-info command.
func NewSyncInfoCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-info",
		Short: "Show when the carrier was last synced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := opts.Clients()
			if err != nil {
				return err
			}
			info, err := clients.Fulfillment.LastSync(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch last sync: %w", err)
			}

			var out syncInfo
			if info != nil {
				at := info.DateCheck.UTC()
				out.LastSync = &at
			}
			return render(cmd.OutOrStdout(), opts.Config.Format, out, func(w io.Writer) {
				if out.LastSync == nil {
					fmt.Fprintln(w, "No sync recorded.")
					return
				}
				fmt.Fprintf(w, "Last sync: %s\n", out.LastSync.Format(time.RFC3339))
			})
		},
	}
}

// NewPrintersCommand creates the printers command.
func NewPrintersCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "printers",
		Short: "List the print gateway's printers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := opts.Clients()
			if err != nil {
				return err
			}
			printers, err := clients.Print.Printers(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch printers: %w", err)
			}

			return render(cmd.OutOrStdout(), opts.Config.Format, printers, func(w io.Writer) {
				if len(printers) == 0 {
					fmt.Fprintln(w, "No printers configured.")
					return
				}
				t := newTable(w, 20, 8)
				t.row("NAME", "DRIVER", "DEFAULT")
				for _, p := range printers {
					def := ""
					if p.IsDefault {
						def = "*"
					}
					driver := p.Driver
					if driver == "" {
						driver = "-"
					}
					t.row(p.Name, driver, def)
				}
			})
		},
	}
}
