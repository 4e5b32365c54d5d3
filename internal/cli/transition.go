package cli

import (
	"github.com/spf13/cobra"

	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/status"
)

// TransitionOptions holds flags for the transition command.
type TransitionOptions struct {
	*RootOptions
	Index    int
	To       string
	Quantity int
	Force    bool
}

// NewTransitionCommand creates the transition command.
func NewTransitionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransitionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transition [file]",
		Short: "Move units of a line item to a new status",
		Long: `Move --quantity units of the entry at --index to the --to status.

Moving part of an entry splits it; moving all of it merges it into any entry
already at the target status. Backward moves are refused unless --force is
given.

Exit codes:
  0 - Success
  1 - The move was refused
  2 - Command error (unreadable input, etc.)

Examples:
  orderctl transition order.json --index 0 --to preparing --quantity 1
  orderctl transition order.json --index 1 --to ready --quantity 2 --force`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(opts, cmd, args)
		},
	}

	cmd.Flags().IntVar(&opts.Index, "index", 0, "position of the entry to move")
	cmd.Flags().StringVar(&opts.To, "to", "", "target status (required)")
	cmd.Flags().IntVar(&opts.Quantity, "quantity", 1, "number of units to move")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "allow backward moves")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runTransition(opts *TransitionOptions, cmd *cobra.Command, args []string) error {
	f := opts.formatter(cmd)

	to, err := status.Parse(opts.To)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "invalid --to", err)
	}
	o, err := readOrder(cmd, args)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read order", err)
	}

	move := lineitem.TransitionPartialQuantity
	if opts.Force {
		move = lineitem.ForceTransition
	}
	items, err := move(o.Items, opts.Index, to, opts.Quantity)
	if err != nil {
		return reportItemError(f, err)
	}
	return f.Success(newItemsResult(items))
}
