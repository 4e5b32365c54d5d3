package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/smvora4u/restaurant-management/internal/guard"
	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/order"
)

func notFound(orderID string) error {
	return fmt.Errorf("order %q: %w", orderID, guard.ErrOrderNotFound)
}

// PutOrder inserts or replaces an order and its items.
// Items are normalized and the total recomputed; the status is stored as
// given, so an imported order may disagree with its items until the guard
// reconciles it.
func (s *Store) PutOrder(ctx context.Context, o order.Order) error {
	items := lineitem.Normalize(o.Items)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put order: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, status, total_amount)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			total_amount = excluded.total_amount
	`,
		o.ID,
		string(o.Status),
		lineitem.Total(items).String(),
	)
	if err != nil {
		return fmt.Errorf("put order: %w", err)
	}

	if err := replaceItems(ctx, tx, o.ID, items); err != nil {
		return fmt.Errorf("put order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put order: commit: %w", err)
	}
	return nil
}

// ReplaceItems overwrites an order's items and total, leaving its status
// alone. Returns the updated snapshot.
func (s *Store) ReplaceItems(ctx context.Context, orderID string, items []lineitem.Item) (order.Order, error) {
	normalized := lineitem.Normalize(items)
	total := lineitem.Total(normalized)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return order.Order{}, fmt.Errorf("replace items: begin tx: %w", err)
	}
	defer tx.Rollback()

	var st string
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, orderID).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Order{}, notFound(orderID)
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("replace items: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE orders SET total_amount = ? WHERE id = ?`, total.String(), orderID); err != nil {
		return order.Order{}, fmt.Errorf("replace items: %w", err)
	}
	if err := replaceItems(ctx, tx, orderID, normalized); err != nil {
		return order.Order{}, fmt.Errorf("replace items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return order.Order{}, fmt.Errorf("replace items: commit: %w", err)
	}

	o, err := s.Get(ctx, orderID)
	if err != nil {
		return order.Order{}, fmt.Errorf("replace items: reread: %w", err)
	}
	return o, nil
}

func replaceItems(ctx context.Context, tx *sql.Tx, orderID string, items []lineitem.Item) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM line_items WHERE order_id = ?`, orderID); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}

	for i, it := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO line_items
			(order_id, position, menu_item_id, quantity, unit_price, status, special_instructions)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			orderID,
			i,
			it.MenuItemID,
			it.Quantity,
			it.UnitPrice.String(),
			string(it.Status),
			it.SpecialInstructions,
		)
		if err != nil {
			return fmt.Errorf("insert item %d: %w", i, err)
		}
	}
	return nil
}

// DeleteOrder removes an order, its items and its push history.
// Deleting a missing order is not an error.
func (s *Store) DeleteOrder(ctx context.Context, orderID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, orderID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

// Push implements guard.Pusher.
//
// The push is appended to status_pushes with ON CONFLICT(id) DO NOTHING, so
// replaying it is harmless. The order row takes the new status only when
// the push is at least as recent as the last applied one.
func (s *Store) Push(ctx context.Context, p guard.Push) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("push status: begin tx: %w", err)
	}
	defer tx.Rollback()

	var appliedSeq int64
	err = tx.QueryRowContext(ctx, `SELECT status_seq FROM orders WHERE id = ?`, p.OrderID).Scan(&appliedSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(p.OrderID)
	}
	if err != nil {
		return fmt.Errorf("push status: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO status_pushes
		(id, order_id, status, seq, origin, items_fingerprint)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		p.ID,
		p.OrderID,
		string(p.Status),
		p.Seq,
		string(p.Origin),
		p.Fingerprint,
	)
	if err != nil {
		return fmt.Errorf("push status: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("push status: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		slog.Debug("status push already recorded, skipping (idempotent)",
			"push_id", p.ID,
			"order_id", p.OrderID,
		)
		return nil
	}

	if p.Seq < appliedSeq {
		slog.Warn("stale status push recorded but not applied",
			"push_id", p.ID,
			"order_id", p.OrderID,
			"seq", p.Seq,
			"applied_seq", appliedSeq,
		)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET status = ?, status_seq = ? WHERE id = ?
		`, string(p.Status), p.Seq, p.OrderID)
		if err != nil {
			return fmt.Errorf("push status: update order: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("push status: commit: %w", err)
	}
	return nil
}
