package store

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/status"
)

// createTestStore opens a fresh database in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testItem(menuItemID string, qty int, price string, s status.Status) lineitem.Item {
	return lineitem.Item{
		MenuItemID: menuItemID,
		Quantity:   qty,
		UnitPrice:  decimal.RequireFromString(price),
		Status:     s,
	}
}
