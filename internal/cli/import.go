package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/smvora4u/restaurant-management/internal/order"
	"github.com/smvora4u/restaurant-management/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
}

// ImportResult reports what was written.
type ImportResult struct {
	Orders []ImportedOrder `json:"orders"`
}

// ImportedOrder is one stored order.
type ImportedOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Items  int    `json:"items"`
	Total  string `json:"total"`
}

// String renders one line per order.
func (r ImportResult) String() string {
	var b bytes.Buffer
	for _, o := range r.Orders {
		fmt.Fprintf(&b, "%s  %-10s items=%d total=%s\n", o.ID, o.Status, o.Items, o.Total)
	}
	fmt.Fprintf(&b, "imported %d order(s)", len(r.Orders))
	return b.String()
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Load orders into the database",
		Long: `Store orders read as a JSON array or as JSON lines, one order per line.

Orders without an id get a random one. Orders without a status take the
status derived from their items. Items are normalized on the way in.

Examples:
  orderctl import --db ./orders.db orders.json
  cat orders.jsonl | orderctl import --db ./orders.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runImport(opts *ImportOptions, cmd *cobra.Command, args []string) error {
	f := opts.formatter(cmd)

	r, err := openInput(cmd, args)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to open input", err)
	}
	defer r.Close()

	orders, err := decodeOrders(r)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read orders", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	result := ImportResult{Orders: make([]ImportedOrder, 0, len(orders))}
	for _, o := range orders {
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		if o.Status == "" {
			o.Status = order.Aggregate(o.Items)
		}
		if err := st.PutOrder(ctx, o); err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to store order", err)
		}
		stored, err := st.Get(ctx, o.ID)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to read back order", err)
		}
		f.VerboseLog("stored order %s", stored.ID)
		result.Orders = append(result.Orders, ImportedOrder{
			ID:     stored.ID,
			Status: string(stored.Status),
			Items:  len(stored.Items),
			Total:  stored.TotalAmount.StringFixed(2),
		})
	}
	return f.Success(result)
}

// decodeOrders accepts a JSON array of orders or one order per line.
func decodeOrders(r io.Reader) ([]order.Order, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	if data[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("decode orders: %w", err)
		}
		orders := make([]order.Order, 0, len(raws))
		for i, raw := range raws {
			o, err := decodeOrder(raw)
			if err != nil {
				return nil, fmt.Errorf("orders[%d]: %w", i, err)
			}
			orders = append(orders, o)
		}
		return orders, nil
	}

	var orders []order.Order
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		o, err := decodeOrder(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		orders = append(orders, o)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}
