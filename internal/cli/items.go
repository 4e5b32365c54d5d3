package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/order"
	"github.com/smvora4u/restaurant-management/internal/status"
)

// openInput returns the file named by args[0], or stdin when there is no
// argument or it is "-".
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(args[0])
}

// readOrder decodes one order. The input is either an order object or a
// bare array of items. Items without a status are pending.
func readOrder(cmd *cobra.Command, args []string) (order.Order, error) {
	r, err := openInput(cmd, args)
	if err != nil {
		return order.Order{}, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return order.Order{}, err
	}
	return decodeOrder(data)
}

func decodeOrder(data []byte) (order.Order, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return order.Order{}, fmt.Errorf("empty input")
	}

	var o order.Order
	if data[0] == '[' {
		if err := json.Unmarshal(data, &o.Items); err != nil {
			return order.Order{}, fmt.Errorf("decode items: %w", err)
		}
	} else if err := json.Unmarshal(data, &o); err != nil {
		return order.Order{}, fmt.Errorf("decode order: %w", err)
	}

	if o.Status != "" && !o.Status.Valid() {
		return order.Order{}, fmt.Errorf("order status: unknown status %q", o.Status)
	}
	for i := range o.Items {
		it := &o.Items[i]
		if it.MenuItemID == "" {
			return order.Order{}, fmt.Errorf("items[%d]: menuItemId is required", i)
		}
		if it.Status == "" {
			it.Status = status.Pending
		}
		if !it.Status.Valid() {
			return order.Order{}, fmt.Errorf("items[%d]: unknown status %q", i, it.Status)
		}
	}
	return o, nil
}

// ItemsResult is the output of every item command.
type ItemsResult struct {
	Items  []lineitem.Item `json:"items"`
	Status status.Status   `json:"status"`
	Total  string          `json:"total"`
	Units  int             `json:"units"`
}

func newItemsResult(items []lineitem.Item) ItemsResult {
	if items == nil {
		items = []lineitem.Item{}
	}
	return ItemsResult{
		Items:  items,
		Status: order.Aggregate(items),
		Total:  lineitem.Total(items).StringFixed(2),
		Units:  lineitem.Count(items),
	}
}

// String renders the items as an indexed list followed by the aggregate.
func (r ItemsResult) String() string {
	var b strings.Builder
	for i, it := range r.Items {
		fmt.Fprintf(&b, "[%d] %-12s x%-3d %8s  %s", i, it.MenuItemID, it.Quantity, it.UnitPrice.StringFixed(2), it.Status)
		if it.SpecialInstructions != "" {
			fmt.Fprintf(&b, "  (%s)", it.SpecialInstructions)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "status: %s  units: %d  total: %s", r.Status, r.Units, r.Total)
	return b.String()
}

// reportItemError maps a failed line-item operation to exit code 1 and the
// error's own code.
func reportItemError(f *OutputFormatter, err error) error {
	var le *lineitem.Error
	if errors.As(err, &le) {
		if outErr := f.Error(string(le.Code), le.Message, map[string]any{"index": le.Index}); outErr != nil {
			return outErr
		}
		return &ExitError{Code: ExitFailure, Message: le.Message, Err: err, Reported: true}
	}
	return f.Fail(ExitFailure, ErrCodeRefused, "operation refused", err)
}
