package cli

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smvora4u/restaurant-management/internal/guard"
	"github.com/smvora4u/restaurant-management/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	OrderID  string
}

// HistoryResult is an order's current status and its push log.
type HistoryResult struct {
	OrderID string       `json:"orderId"`
	Status  string       `json:"status"`
	Pushes  []guard.Push `json:"pushes"`
}

// String renders the push log oldest first.
func (r HistoryResult) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "order %s is %s\n", r.OrderID, r.Status)
	for _, p := range r.Pushes {
		fmt.Fprintf(&b, "  seq=%-5d %-10s %-9s %s\n", p.Seq, p.Status, p.Origin, p.ID)
	}
	fmt.Fprintf(&b, "%d push(es)", len(r.Pushes))
	return b.String()
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the status pushes recorded for an order",
		Long: `Print every status write the guard made for an order, in sequence order.

Examples:
  orderctl history --db ./orders.db --order 7f3c
  orderctl history --db ./orders.db --order 7f3c --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.OrderID, "order", "", "order id (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("order")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	o, err := st.Get(ctx, opts.OrderID)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeStore, "failed to read order", err)
	}
	pushes, err := st.ReadPushes(ctx, opts.OrderID)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read pushes", err)
	}

	return f.Success(HistoryResult{
		OrderID: o.ID,
		Status:  string(o.Status),
		Pushes:  pushes,
	})
}
