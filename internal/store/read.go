package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/smvora4u/restaurant-management/internal/guard"
	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/order"
	"github.com/smvora4u/restaurant-management/internal/status"
)

// Get returns an order with its items in stored order.
// Implements guard.Source; unknown ids wrap guard.ErrOrderNotFound.
func (s *Store) Get(ctx context.Context, orderID string) (order.Order, error) {
	var (
		st    string
		total string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT status, total_amount FROM orders WHERE id = ?
	`, orderID).Scan(&st, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Order{}, notFound(orderID)
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("read order: %w", err)
	}

	amount, err := decimal.NewFromString(total)
	if err != nil {
		return order.Order{}, fmt.Errorf("read order %q: total_amount: %w", orderID, err)
	}

	items, err := s.readItems(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}

	return order.Order{
		ID:          orderID,
		Status:      status.Status(st),
		Items:       items,
		TotalAmount: amount,
	}, nil
}

func (s *Store) readItems(ctx context.Context, orderID string) ([]lineitem.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT menu_item_id, quantity, unit_price, status, special_instructions
		FROM line_items
		WHERE order_id = ?
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := []lineitem.Item{}
	for rows.Next() {
		var (
			it    lineitem.Item
			price string
			st    string
		)
		if err := rows.Scan(&it.MenuItemID, &it.Quantity, &price, &st, &it.SpecialInstructions); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("scan item %q: unit_price: %w", it.MenuItemID, err)
		}
		it.Status = status.Status(st)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// ListOrderIDs returns every order id, ordered by id COLLATE BINARY.
func (s *Store) ListOrderIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM orders ORDER BY id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return ids, nil
}

// ListOrders returns every order with its items, ordered by id.
func (s *Store) ListOrders(ctx context.Context) ([]order.Order, error) {
	ids, err := s.ListOrderIDs(ctx)
	if err != nil {
		return nil, err
	}
	orders := make([]order.Order, 0, len(ids))
	for _, id := range ids {
		o, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// ReadPushes returns the push log for an order.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
func (s *Store) ReadPushes(ctx context.Context, orderID string) ([]guard.Push, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, status, seq, origin, items_fingerprint
		FROM status_pushes
		WHERE order_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query pushes: %w", err)
	}
	defer rows.Close()

	pushes := []guard.Push{}
	for rows.Next() {
		var (
			p      guard.Push
			st     string
			origin string
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &st, &p.Seq, &origin, &p.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan push: %w", err)
		}
		p.Status = status.Status(st)
		p.Origin = guard.Origin(origin)
		pushes = append(pushes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pushes: %w", err)
	}
	return pushes, nil
}

// MaxSeq returns the highest push sequence recorded, 0 for an empty log.
// Used to resume the guard's sequence after a restart.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM status_pushes`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}
