// Package order derives order-level state from line items.
//
// An order's status is never set independently: it is always the result of
// Aggregate over the order's items. Sync and Recalculate produce orders whose
// derived fields agree with their items.
package order

import (
	"github.com/shopspring/decimal"

	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/status"
)

// Order is a snapshot of one order.
type Order struct {
	ID          string          `json:"id"`
	Status      status.Status   `json:"status"`
	Items       []lineitem.Item `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// Aggregate maps a set of line items to the order's overall status.
//
// The ladder is evaluated top to bottom, first match wins:
//   - no items: pending
//   - every item cancelled: cancelled
//   - some but not all cancelled: pending
//   - every item served: completed
//   - every item ready: ready
//   - any item preparing: preparing
//   - any item confirmed: confirmed
//   - otherwise: pending
//
// The input does not need to be normalized.
func Aggregate(items []lineitem.Item) status.Status {
	total := len(items)
	if total == 0 {
		return status.Pending
	}

	counts := make(map[status.Status]int, 7)
	for _, it := range items {
		counts[it.Status]++
	}

	cancelled := counts[status.Cancelled]
	switch {
	case cancelled == total:
		return status.Cancelled
	case cancelled > 0:
		// TODO: partial cancellation loses the progress of surviving items;
		// waiting on a product decision before giving it its own state.
		return status.Pending
	case counts[status.Served] == total:
		return status.Completed
	case counts[status.Ready] == total:
		return status.Ready
	case counts[status.Preparing] > 0:
		return status.Preparing
	case counts[status.Confirmed] > 0:
		return status.Confirmed
	default:
		return status.Pending
	}
}

// Sync returns o with Status replaced by Aggregate(o.Items). Nothing else
// changes.
func Sync(o Order) Order {
	o.Status = Aggregate(o.Items)
	return o
}

// Recalculate normalizes the items and refreshes every derived field.
func Recalculate(o Order) Order {
	o.Items = lineitem.Normalize(o.Items)
	o.TotalAmount = lineitem.Total(o.Items)
	return Sync(o)
}

// NeedsSync reports whether the stored status disagrees with the items.
func (o Order) NeedsSync() bool {
	return o.Status != Aggregate(o.Items)
}
