package lineitem

import (
	"errors"
	"fmt"

	"github.com/smvora4u/restaurant-management/internal/status"
)

// ErrorCode categorizes line-item operation failures.
type ErrorCode string

const (
	// ErrCodeInvalidQuantity indicates a negative or otherwise unusable quantity.
	ErrCodeInvalidQuantity ErrorCode = "INVALID_QUANTITY"

	// ErrCodeItemNotFound indicates an index outside the item collection.
	ErrCodeItemNotFound ErrorCode = "ITEM_NOT_FOUND"

	// ErrCodeIllegalTransition indicates a status change that would move an
	// item backwards through the hierarchy.
	ErrCodeIllegalTransition ErrorCode = "ILLEGAL_TRANSITION"

	// ErrCodeInvalidStatus indicates a status value outside the vocabulary.
	ErrCodeInvalidStatus ErrorCode = "INVALID_STATUS"
)

// Error is returned by every failing line-item operation. The input
// collection is never mutated when an Error is returned.
type Error struct {
	Code    ErrorCode
	Message string

	// Index is the item position the operation targeted, -1 when not applicable.
	Index int

	// From and To are set for transition failures.
	From status.Status
	To   status.Status
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: %s (index=%d)", e.Code, e.Message, e.Index)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalidQuantity(index, quantity int) *Error {
	return &Error{
		Code:    ErrCodeInvalidQuantity,
		Message: fmt.Sprintf("quantity %d is not allowed", quantity),
		Index:   index,
	}
}

func itemNotFound(index, size int) *Error {
	return &Error{
		Code:    ErrCodeItemNotFound,
		Message: fmt.Sprintf("no item at position %d of %d", index, size),
		Index:   index,
	}
}

func illegalTransition(index int, from, to status.Status) *Error {
	return &Error{
		Code:    ErrCodeIllegalTransition,
		Message: fmt.Sprintf("cannot move from %s to %s", from, to),
		Index:   index,
		From:    from,
		To:      to,
	}
}

func invalidStatus(index int, s status.Status) *Error {
	return &Error{
		Code:    ErrCodeInvalidStatus,
		Message: fmt.Sprintf("unknown status %q", s),
		Index:   index,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsInvalidQuantity returns true if err carries ErrCodeInvalidQuantity.
func IsInvalidQuantity(err error) bool { return hasCode(err, ErrCodeInvalidQuantity) }

// IsItemNotFound returns true if err carries ErrCodeItemNotFound.
func IsItemNotFound(err error) bool { return hasCode(err, ErrCodeItemNotFound) }

// IsIllegalTransition returns true if err carries ErrCodeIllegalTransition.
func IsIllegalTransition(err error) bool { return hasCode(err, ErrCodeIllegalTransition) }

// IsInvalidStatus returns true if err carries ErrCodeInvalidStatus.
func IsInvalidStatus(err error) bool { return hasCode(err, ErrCodeInvalidStatus) }
