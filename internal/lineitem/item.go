// Package lineitem implements the split/merge model for the line items of a
// single order.
//
// Every operation is pure: the input slice is left untouched and a new,
// normalized slice is returned. Within a normalized collection no two entries
// share an identity key (menu item, status, special instructions), and no
// entry has a quantity below one.
package lineitem

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/smvora4u/restaurant-management/internal/status"
)

// Item is one row of an order: a quantity of a single menu entry at a single
// fulfillment status with a single special-instructions value.
type Item struct {
	MenuItemID          string          `json:"menuItemId" yaml:"menuItemId"`
	Quantity            int             `json:"quantity" yaml:"quantity"`
	UnitPrice           decimal.Decimal `json:"unitPrice" yaml:"unitPrice"`
	Status              status.Status   `json:"status" yaml:"status"`
	SpecialInstructions string          `json:"specialInstructions,omitempty" yaml:"specialInstructions,omitempty"`
}

// Key is the identity of a line item. Two items with equal keys must be
// merged into one.
type Key struct {
	MenuItemID          string
	Status              status.Status
	SpecialInstructions string
}

// Key returns the identity key of the item. Instructions are compared in NFC
// form with surrounding whitespace removed, so an absent value and an empty
// one are the same.
func (it Item) Key() Key {
	return Key{
		MenuItemID:          it.MenuItemID,
		Status:              it.Status,
		SpecialInstructions: canonicalInstructions(it.SpecialInstructions),
	}
}

// WithStatus returns the key for the same menu item and instructions at s.
func (k Key) WithStatus(s status.Status) Key {
	k.Status = s
	return k
}

func canonicalInstructions(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Subtotal is unit price × quantity.
func (it Item) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Total sums the subtotal of every item in the collection.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		total = total.Add(it.Subtotal())
	}
	return total
}

// Count returns the number of units across all entries.
func Count(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func clone(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// indexOf returns the position of the first entry with key k, skipping skip.
func indexOf(items []Item, k Key, skip int) int {
	for i := range items {
		if i == skip {
			continue
		}
		if items[i].Key() == k {
			return i
		}
	}
	return -1
}
