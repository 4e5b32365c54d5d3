package guard

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound is returned by a Source that has no such order.
	ErrOrderNotFound = errors.New("order not found")

	// ErrHalted is returned to user-initiated updates while the emergency
	// halt is active.
	ErrHalted = errors.New("reconciliation halted")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("guard closed")

	// ErrIllegalTransition is returned when a user-initiated update would
	// move an order backwards.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// RateLimitError is returned when a user-initiated update exceeds its
// per-order budget for the current window.
type RateLimitError struct {
	OrderID string
	Budget  Budget
	Count   int
	Limit   int
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("order %s exceeded %s update budget: %d >= %d limit",
		e.OrderID, e.Budget, e.Count, e.Limit)
}

// IsRateLimited returns true if err is a RateLimitError.
// Uses errors.As to handle wrapped errors.
func IsRateLimited(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}
