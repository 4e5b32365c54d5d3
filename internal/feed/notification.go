// Package feed delivers item-change notifications to the reconciliation
// guard from a JSON-lines stream or a Kafka topic.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/smvora4u/restaurant-management/internal/lineitem"
)

// Notification is one item-change event: the order's items after a write.
type Notification struct {
	OrderID string          `json:"orderId"`
	Items   []lineitem.Item `json:"items"`
}

// DecodeError reports a malformed notification. Offset is the line number
// for JSON-lines input and the partition offset for Kafka.
type DecodeError struct {
	Offset int64
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("notification at offset %d: %v", e.Offset, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError returns true if err is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Decode parses and validates one notification.
func Decode(data []byte) (Notification, error) {
	return decode(data, "")
}

// decode uses fallbackOrderID when the payload carries no orderId.
func decode(data []byte, fallbackOrderID string) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, err
	}
	if n.OrderID == "" {
		n.OrderID = fallbackOrderID
	}
	if n.OrderID == "" {
		return Notification{}, errors.New("orderId is required")
	}
	for i, it := range n.Items {
		if it.MenuItemID == "" {
			return Notification{}, fmt.Errorf("items[%d]: menuItemId is required", i)
		}
		if !it.Status.Valid() {
			return Notification{}, fmt.Errorf("items[%d]: unknown status %q", i, it.Status)
		}
	}
	return n, nil
}
