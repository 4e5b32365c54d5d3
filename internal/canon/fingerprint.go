package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/status"
)

// Domain prefixes keep fingerprints of different record kinds apart.
const (
	DomainItems = "orders/items/v1"
	DomainPush  = "orders/push/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ItemsValue converts items to their canonical JSON value. Prices are
// rendered as exact decimal strings without trailing zeros, so 12.50 and
// 12.5 agree and 1.005 stays distinct from 1.00.
func ItemsValue(items []lineitem.Item) []any {
	out := make([]any, len(items))
	for i, it := range items {
		obj := map[string]any{
			"menuItemId": it.MenuItemID,
			"quantity":   it.Quantity,
			"unitPrice":  it.UnitPrice.String(),
			"status":     string(it.Status),
		}
		if k := it.Key(); k.SpecialInstructions != "" {
			obj["specialInstructions"] = k.SpecialInstructions
		}
		out[i] = obj
	}
	return out
}

// ItemsFingerprint identifies an item collection by content. Order of
// entries matters; callers wanting set semantics normalize first.
func ItemsFingerprint(items []lineitem.Item) (string, error) {
	data, err := Marshal(ItemsValue(items))
	if err != nil {
		return "", fmt.Errorf("ItemsFingerprint: %w", err)
	}
	return hashWithDomain(DomainItems, data), nil
}

// PushID computes the identity of a status push. Pushing the same status
// for the same order at the same sequence always yields the same id, which
// lets persistence layers treat retries as no-ops.
func PushID(orderID string, s status.Status, seq int64) (string, error) {
	data, err := Marshal(map[string]any{
		"order_id": orderID,
		"status":   string(s),
		"seq":      seq,
	})
	if err != nil {
		return "", fmt.Errorf("PushID: %w", err)
	}
	return hashWithDomain(DomainPush, data), nil
}

// MustItemsFingerprint is like ItemsFingerprint but panics on error.
// Item values are always representable, so this only panics on a bug.
func MustItemsFingerprint(items []lineitem.Item) string {
	fp, err := ItemsFingerprint(items)
	if err != nil {
		panic(err)
	}
	return fp
}
