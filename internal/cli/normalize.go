package cli

import (
	"github.com/spf13/cobra"

	"github.com/smvora4u/restaurant-management/internal/lineitem"
)

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [file]",
		Short: "Merge line items that share an identity",
		Long: `Merge entries with the same menu item, status and special instructions,
and drop entries with no units.

Examples:
  orderctl normalize items.json
  orderctl normalize --format json < order.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			o, err := readOrder(cmd, args)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeInput, "failed to read order", err)
			}
			before := len(o.Items)
			items := lineitem.Normalize(o.Items)
			f.VerboseLog("normalized %d entries into %d", before, len(items))
			return f.Success(newItemsResult(items))
		},
	}
}
