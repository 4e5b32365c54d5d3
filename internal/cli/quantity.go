package cli

import (
	"github.com/spf13/cobra"

	"github.com/smvora4u/restaurant-management/internal/lineitem"
)

// QuantityOptions holds flags for the quantity command.
type QuantityOptions struct {
	*RootOptions
	Index int
	Set   int
}

// NewQuantityCommand creates the quantity command.
func NewQuantityCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QuantityOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "quantity [file]",
		Short: "Change the quantity of a line item",
		Long: `Set the quantity of the entry at --index.

Extra units added to an entry that is already past pending become a new
pending entry; the kitchen has not started on them yet. A quantity of zero
removes the entry.

Examples:
  orderctl quantity order.json --index 0 --set 3`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			o, err := readOrder(cmd, args)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeInput, "failed to read order", err)
			}
			items, err := lineitem.ChangeQuantity(o.Items, opts.Index, opts.Set)
			if err != nil {
				return reportItemError(f, err)
			}
			return f.Success(newItemsResult(items))
		},
	}

	cmd.Flags().IntVar(&opts.Index, "index", 0, "position of the entry to change")
	cmd.Flags().IntVar(&opts.Set, "set", 0, "new quantity (required)")
	_ = cmd.MarkFlagRequired("set")

	return cmd
}
