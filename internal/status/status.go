// Package status defines the fulfillment status vocabulary shared by line
// items and orders, and the rule deciding which status changes are legal.
//
// The hierarchy is an ordered sequence where the index is the progress rank:
//
//	pending(0) → confirmed(1) → preparing(2) → ready(3) → served(4) → completed(5)
//
// Cancelled is terminal and sits outside the sequence. It is reachable from
// any status.
package status

import "fmt"

// Status is a fulfillment status of a line item or an order.
type Status string

const (
	Pending   Status = "pending"
	Confirmed Status = "confirmed"
	Preparing Status = "preparing"
	Ready     Status = "ready"
	Served    Status = "served"
	Completed Status = "completed"
	Cancelled Status = "cancelled"
)

// hierarchy is the ordered progress sequence. Index = rank.
var hierarchy = []Status{Pending, Confirmed, Preparing, Ready, Served, Completed}

// All returns every known status, hierarchy first, then cancelled.
func All() []Status {
	out := make([]Status, 0, len(hierarchy)+1)
	out = append(out, hierarchy...)
	return append(out, Cancelled)
}

// Rank returns the progress rank of s and whether s is part of the ordered
// sequence. Cancelled and unknown values report (-1, false).
func Rank(s Status) (int, bool) {
	for i, h := range hierarchy {
		if h == s {
			return i, true
		}
	}
	return -1, false
}

// Valid reports whether s is a known status, including cancelled.
func (s Status) Valid() bool {
	if s == Cancelled {
		return true
	}
	_, ok := Rank(s)
	return ok
}

// IsTerminal reports whether no further progress is possible from s.
func (s Status) IsTerminal() bool {
	return s == Completed || s == Cancelled
}

func (s Status) String() string {
	return string(s)
}

// NextStatus returns the hierarchy entry one rank above s.
//
// Served has no automatic successor: completion is derived at the order
// level once every item is served, it is never stepped into per item.
func NextStatus(s Status) (Status, bool) {
	if s == Served {
		return "", false
	}
	r, ok := Rank(s)
	if !ok || r+1 >= len(hierarchy) {
		return "", false
	}
	return hierarchy[r+1], true
}

// IsValidTransition reports whether moving from current to next is legal.
//
// Cancellation is always legal. Otherwise the move must not lower the rank;
// staying put and skipping ranks are both allowed.
func IsValidTransition(current, next Status) bool {
	if next == Cancelled {
		return true
	}
	nr, ok := Rank(next)
	if !ok {
		return false
	}
	cr, ok := Rank(current)
	if !ok {
		// Nothing leaves cancelled except to cancelled itself.
		return false
	}
	return nr >= cr
}

// Parse converts a raw value into a Status.
func Parse(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}
