package lineitem

import "github.com/smvora4u/restaurant-management/internal/status"

// Normalize merges entries that share an identity key.
//
// Groups keep the position of their first occurrence and the first
// occurrence's price; quantities are summed. Entries with a quantity below
// one are dropped. Normalize is idempotent.
//
// A later entry's differing price is discarded, so Total over the result
// can differ from Total over the input.
func Normalize(items []Item) []Item {
	out := make([]Item, 0, len(items))
	pos := make(map[Key]int, len(items))

	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		k := it.Key()
		if i, ok := pos[k]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		pos[k] = len(out)
		out = append(out, it)
	}
	return out
}

// ChangeQuantity sets the quantity of the entry at index.
//
// Shrinking reduces the units left at the entry's current status. Growing a
// pending entry grows it in place; growing an advanced entry adds the extra
// units as new pending work, merged into an existing pending entry for the
// same menu item and instructions when there is one. A new quantity of zero
// removes the entry.
func ChangeQuantity(items []Item, index, newQuantity int) ([]Item, error) {
	if newQuantity < 0 {
		return nil, invalidQuantity(index, newQuantity)
	}
	if index < 0 || index >= len(items) {
		return nil, itemNotFound(index, len(items))
	}

	out := clone(items)
	cur := out[index]

	switch {
	case newQuantity == cur.Quantity:
	case newQuantity < cur.Quantity:
		out[index].Quantity = newQuantity
	case cur.Status == status.Pending:
		out[index].Quantity = newQuantity
	default:
		diff := newQuantity - cur.Quantity
		k := cur.Key().WithStatus(status.Pending)
		if i := indexOf(out, k, -1); i >= 0 {
			out[i].Quantity += diff
		} else {
			out = append(out, Item{
				MenuItemID:          cur.MenuItemID,
				Quantity:            diff,
				UnitPrice:           cur.UnitPrice,
				Status:              status.Pending,
				SpecialInstructions: cur.SpecialInstructions,
			})
		}
	}

	return Normalize(out), nil
}

// TransitionPartialQuantity moves quantityToMove units of the entry at index
// to newStatus.
//
// Moving the whole entry (or more) changes its status and merges it into any
// entry already holding the resulting key. Moving part of it splits off a new
// entry, or tops up an existing one with the target key.
//
// Backward moves are rejected with ErrCodeIllegalTransition. Use
// ForceTransition for administrative corrections that must bypass the check.
func TransitionPartialQuantity(items []Item, index int, newStatus status.Status, quantityToMove int) ([]Item, error) {
	if err := checkTransition(items, index, newStatus, quantityToMove); err != nil {
		return nil, err
	}
	if cur := items[index].Status; !status.IsValidTransition(cur, newStatus) {
		return nil, illegalTransition(index, cur, newStatus)
	}
	return transition(items, index, newStatus, quantityToMove), nil
}

// ForceTransition is TransitionPartialQuantity without the legality check.
// It exists for corrective edits (e.g. a manager undoing a mistaken "served")
// and may move units backwards.
func ForceTransition(items []Item, index int, newStatus status.Status, quantityToMove int) ([]Item, error) {
	if err := checkTransition(items, index, newStatus, quantityToMove); err != nil {
		return nil, err
	}
	return transition(items, index, newStatus, quantityToMove), nil
}

func checkTransition(items []Item, index int, newStatus status.Status, quantityToMove int) error {
	if index < 0 || index >= len(items) {
		return itemNotFound(index, len(items))
	}
	if quantityToMove <= 0 {
		return invalidQuantity(index, quantityToMove)
	}
	if !newStatus.Valid() {
		return invalidStatus(index, newStatus)
	}
	return nil
}

func transition(items []Item, index int, newStatus status.Status, quantityToMove int) []Item {
	out := clone(items)
	src := out[index]

	if quantityToMove >= src.Quantity {
		out[index].Status = newStatus
		if i := indexOf(out, out[index].Key(), index); i >= 0 {
			out[i].Quantity += out[index].Quantity
			out = append(out[:index], out[index+1:]...)
		}
		return Normalize(out)
	}

	out[index].Quantity -= quantityToMove
	moved := src
	moved.Status = newStatus
	moved.Quantity = quantityToMove

	if i := indexOf(out, moved.Key(), -1); i >= 0 {
		out[i].Quantity += quantityToMove
	} else {
		out = append(out, moved)
	}
	return Normalize(out)
}

// Add appends item to the collection, merging it with an existing entry of
// the same key.
func Add(items []Item, item Item) ([]Item, error) {
	if item.Quantity < 1 {
		return nil, invalidQuantity(-1, item.Quantity)
	}
	if item.Status == "" {
		item.Status = status.Pending
	}
	if !item.Status.Valid() {
		return nil, invalidStatus(-1, item.Status)
	}
	out := append(clone(items), item)
	return Normalize(out), nil
}

// Remove deletes the entry at index.
func Remove(items []Item, index int) ([]Item, error) {
	if index < 0 || index >= len(items) {
		return nil, itemNotFound(index, len(items))
	}
	out := clone(items)
	out = append(out[:index], out[index+1:]...)
	return Normalize(out), nil
}
