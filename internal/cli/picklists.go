package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Mrhamza01/prlabel/internal/browser"
	"github.com/Mrhamza01/prlabel/internal/domain"
)

const dateLayout = "2006-01-02"

// PickListsOptions holds flags for the picklists command.
type PickListsOptions struct {
	*RootOptions
	Status string
	Search string
	Sort   string
}

// NewPickListsCommand creates the picklists command.
func NewPickListsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PickListsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "picklists",
		Short: "List pick lists",
		Long: `List pick lists from the fulfillment gateway.

Examples:
  dispatch picklists
  dispatch picklists --status all --search ORD-10
  dispatch picklists --entity 42 --sort order-number --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPickLists(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "pending", "pending|completed|all")
	cmd.Flags().StringVar(&opts.Search, "search", "", "match order number, pick list ID or remarks")
	cmd.Flags().StringVar(&opts.Sort, "sort", "order-date", "order-date|order-number|status")

	return cmd
}

func runPickLists(cmd *cobra.Command, opts *PickListsOptions) error {
	status, err := domain.ParseListStatus(opts.Status)
	if err != nil {
		return err
	}
	sortKey, err := browser.ParseSortKey(opts.Sort)
	if err != nil {
		return err
	}
	clients, err := opts.Clients()
	if err != nil {
		return err
	}

	b := browser.New(clients.Fulfillment, browser.WithLogger(opts.Logger))
	if err := b.Fetch(cmd.Context(), status, opts.Config.Entity); err != nil {
		return err
	}
	b.Search(opts.Search)
	b.Sort(sortKey)
	lists := b.Visible()

	return render(cmd.OutOrStdout(), opts.Config.Format, lists, func(w io.Writer) {
		writePickLists(w, lists)
	})
}

func writePickLists(w io.Writer, lists []domain.PickList) {
	if len(lists) == 0 {
		fmt.Fprintln(w, "No pick lists found.")
		return
	}

	t := newTable(w, 8, 12, 10, 9, 7, 14)
	t.row("ID", "ORDER", "DATE", "STATUS", "SHIPPED", "PACKER", "REMARKS")
	for _, p := range lists {
		packer := orDash(p.PackingPersonName)
		if packer == "-" {
			packer = orDash(p.PackingPerson)
		}
		remarks := ""
		if p.Remarks != nil {
			remarks = *p.Remarks
		}
		t.row(
			strconv.FormatInt(p.ID, 10),
			p.OrderNumber,
			p.OrderDate.UTC().Format(dateLayout),
			string(p.Status),
			fmt.Sprintf("%d/%d", p.ShippedOrders, p.TotalOrders),
			packer,
			remarks,
		)
	}
	fmt.Fprintf(w, "\n%d pick list(s)\n", len(lists))
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count pending, completed and all pick lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := opts.Clients()
			if err != nil {
				return err
			}

			stats, err := browser.New(clients.Fulfillment, browser.WithLogger(opts.Logger)).Stats(cmd.Context())
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), opts.Config.Format, stats, func(w io.Writer) {
				fmt.Fprintf(w, "%-11s%d\n", "Pending:", stats.Pending)
				fmt.Fprintf(w, "%-11s%d\n", "Completed:", stats.Completed)
				fmt.Fprintf(w, "%-11s%d\n", "All:", stats.All)
			})
		},
	}
}

// AssignOptions holds flags for the assign command. The packer is the
// global --entity.
type AssignOptions struct {
	*RootOptions
	Name string
}

type assignResult struct {
	PickListID int64  `json:"pickListId"`
	EntityID   string `json:"entityId"`
	Name       string `json:"name,omitempty"`
}

// NewAssignCommand creates the assign command.
func NewAssignCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AssignOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "assign <pickListID>",
		Short: "Make an entity the packer of a pick list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePickListID(args[0])
			if err != nil {
				return err
			}
			return runAssign(cmd.Context(), cmd, opts, id)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "packer display name")

	return cmd
}

func runAssign(ctx context.Context, cmd *cobra.Command, opts *AssignOptions, pickListID int64) error {
	entity := domain.Entity{ID: opts.Config.Entity, Name: opts.Name}
	if entity.ID == "" {
		return fmt.Errorf("an entity is required: pass --entity or set DISPATCH_ENTITY")
	}

	clients, err := opts.Clients()
	if err != nil {
		return err
	}
	if err := browser.New(clients.Fulfillment, browser.WithLogger(opts.Logger)).Assign(ctx, pickListID, entity); err != nil {
		return err
	}

	res := assignResult{PickListID: pickListID, EntityID: entity.ID, Name: entity.Name}
	return render(cmd.OutOrStdout(), opts.Config.Format, res, func(w io.Writer) {
		if entity.Name != "" {
			fmt.Fprintf(w, "Pick list %d assigned to %s (%s)\n", pickListID, entity.ID, entity.Name)
			return
		}
		fmt.Fprintf(w, "Pick list %d assigned to %s\n", pickListID, entity.ID)
	})
}

func parsePickListID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid pick list ID %q", s)
	}
	return id, nil
}
