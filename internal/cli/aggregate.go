package cli

import (
	"github.com/spf13/cobra"
)

// NewAggregateCommand creates the aggregate command.
func NewAggregateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate [file]",
		Short: "Derive an order's status from its items",
		Long: `Read an order (or a bare item array) as JSON and print the status the
order should have, with its total and unit count.

Input is read from the file argument, or from stdin when it is omitted or "-".

Examples:
  orderctl aggregate order.json
  echo '[{"menuItemId":"pizza","quantity":1,"unitPrice":"12.50","status":"served"}]' | orderctl aggregate`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			o, err := readOrder(cmd, args)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeInput, "failed to read order", err)
			}
			return f.Success(newItemsResult(o.Items))
		},
	}
}
