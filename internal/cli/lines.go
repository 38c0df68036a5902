package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mrhamza01/prlabel/internal/dispatch"
	"github.com/Mrhamza01/prlabel/internal/domain"
)

// NewLinesCommand creates the lines command.
func NewLinesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lines <pickListID>",
		Short: "Show the lines of a pick list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePickListID(args[0])
			if err != nil {
				return err
			}
			clients, err := opts.Clients()
			if err != nil {
				return err
			}
			lines, err := clients.Fulfillment.Lines(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to fetch lines of pick list %d: %w", id, err)
			}

			return render(cmd.OutOrStdout(), opts.Config.Format, lines, func(w io.Writer) {
				writeLines(w, lines)
			})
		},
	}
}

func writeLines(w io.Writer, lines []domain.Line) {
	if len(lines) == 0 {
		fmt.Fprintln(w, "No lines found.")
		return
	}

	t := newTable(w, 8, 12, 10, 14, 10, 4, 7)
	t.row("LINE", "SHIPMENT", "NUMBER", "UPC", "SKU", "QTY", "SHIPPED", "DONE")
	for _, l := range lines {
		shipped := "-"
		if l.ShippedQty != nil {
			shipped = strconv.Itoa(*l.ShippedQty)
		}
		done := "no"
		if l.QuantityComplete() {
			done = "yes"
		}
		t.row(
			strconv.FormatInt(l.ID, 10),
			l.ShipmentID,
			l.ShipmentNumber,
			l.UPC,
			l.SKU,
			strconv.Itoa(l.Quantity),
			shipped,
			done,
		)
	}
	fmt.Fprintf(w, "\n%d line(s), status %s\n", len(lines), domain.DeriveStatus(lines))
}

// loadSession fetches the lines of a pick list into a new dispatch session
func loadSession(ctx context.Context, opts *RootOptions, pickListID int64) (*dispatch.Session, error) {
	clients, err := opts.Clients()
	if err != nil {
		return nil, err
	}
	lines, err := clients.Fulfillment.Lines(ctx, pickListID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lines of pick list %d: %w", pickListID, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("pick list %d has no lines", pickListID)
	}

	session := dispatch.NewSession(clients.Fulfillment, clients.Print,
		dispatch.WithCallTimeout(opts.Config.Timeout),
		dispatch.WithLogger(opts.Logger),
	)
	session.Load(pickListID, lines)
	return session, nil
}

type scanResult struct {
	UPC        string `json:"upc"`
	Outcome    string `json:"outcome"`
	ShipmentID string `json:"shipmentId,omitempty"`
	LineID     int64  `json:"lineId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewScanCommand creates the scan command.
func NewScanCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <pickListID> <upc>...",
		Short: "Resolve scans against a pick list in order",
		Long: `Load a pick list and resolve each UPC as if it was scanned at a
station: the shipment is marked shipped and its label printed the first
time it is seen.

Examples:
  dispatch scan 1042 012345678905
  dispatch scan 1042 012345678905 098765432109 --format json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePickListID(args[0])
			if err != nil {
				return err
			}
			session, err := loadSession(cmd.Context(), opts, id)
			if err != nil {
				return err
			}

			results := make([]scanResult, 0, len(args)-1)
			for _, upc := range args[1:] {
				results = append(results, toScanResult(upc, session.ResolveScan(cmd.Context(), upc)))
			}

			return render(cmd.OutOrStdout(), opts.Config.Format, results, func(w io.Writer) {
				t := newTable(w, 14, 26)
				t.row("UPC", "OUTCOME", "DETAIL")
				for _, r := range results {
					t.row(r.UPC, r.Outcome, scanDetail(r))
				}
			})
		},
	}
}

func toScanResult(upc string, res dispatch.Result) scanResult {
	out := scanResult{UPC: upc, Outcome: res.Outcome.String(), ShipmentID: res.ShipmentID}
	if res.Line != nil {
		out.LineID = res.Line.ID
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func scanDetail(r scanResult) string {
	var parts []string
	if r.ShipmentID != "" {
		parts = append(parts, "shipment "+r.ShipmentID)
	}
	if r.LineID != 0 {
		parts = append(parts, "line "+strconv.FormatInt(r.LineID, 10))
	}
	if r.Error != "" {
		parts = append(parts, r.Error)
	}
	return strings.Join(parts, ", ")
}

// PrintOptions holds flags for the print command.
type PrintOptions struct {
	*RootOptions
	Generate bool
}

type printResult struct {
	ShipmentID string  `json:"shipmentId"`
	LineIDs    []int64 `json:"lineIds"`
	Generated  bool    `json:"generated"`
}

// NewPrintCommand creates the print command.
func NewPrintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PrintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "print <pickListID> <shipmentID>",
		Short: "Print the label of one shipment",
		Long: `Print the label of a shipment on the default printer. Lines of the
shipment that are not yet shipped are marked shipped first.

By default the carrier's existing label is printed; --generate buys a new
one.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePickListID(args[0])
			if err != nil {
				return err
			}
			return runPrint(cmd, opts, id, args[1])
		},
	}

	cmd.Flags().BoolVar(&opts.Generate, "generate", false, "generate a new label instead of printing the existing one")

	return cmd
}

func runPrint(cmd *cobra.Command, opts *PrintOptions, pickListID int64, shipmentID string) error {
	session, err := loadSession(cmd.Context(), opts.RootOptions, pickListID)
	if err != nil {
		return err
	}

	lineIDs := session.ShipmentLineIDs(shipmentID)
	if len(lineIDs) == 0 {
		return fmt.Errorf("shipment %s is not on pick list %d", shipmentID, pickListID)
	}

	if !session.GroupPrint(cmd.Context(), shipmentID, lineIDs, !opts.Generate) {
		return groupPrintError(session, shipmentID)
	}

	res := printResult{ShipmentID: shipmentID, LineIDs: lineIDs, Generated: opts.Generate}
	return render(cmd.OutOrStdout(), opts.Config.Format, res, func(w io.Writer) {
		ids := make([]string, len(lineIDs))
		for i, id := range lineIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		fmt.Fprintf(w, "Label printed for shipment %s (lines %s)\n", shipmentID, strings.Join(ids, ", "))
	})
}

// groupPrintError reports the last warning or error the session raised
func groupPrintError(session *dispatch.Session, shipmentID string) error {
	msg := ""
	for {
		select {
		case n := <-session.Events():
			if n.Level == dispatch.LevelError || n.Level == dispatch.LevelWarning {
				msg = n.Message
			}
		default:
			if msg == "" {
				return fmt.Errorf("print for shipment %s failed", shipmentID)
			}
			return errors.New(msg)
		}
	}
}
