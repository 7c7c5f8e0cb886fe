package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/roach88/possync/internal/gateway"
	"github.com/roach88/possync/internal/order"
)

const statusCancelled = "cancelled"

// CreateOrder inserts the order, its items and addons in one transaction.
func (g *Gateway) CreateOrder(ctx context.Context, snap order.Snapshot) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return classify("create order", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	status := snap.Status
	if status == "" {
		status = order.StatusPending
	}
	var validatedAt *time.Time
	if !snap.ValidatedAt.IsZero() {
		validatedAt = &snap.ValidatedAt
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO orders (
			id, order_type, table_ref, party_size,
			customer_name, customer_phone, customer_address, customer_tax_id,
			subtotal, discount, total, status, validated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`,
		snap.ID, string(snap.Type), snap.TableRef, snap.PartySize,
		snap.Customer.Name, snap.Customer.Phone, snap.Customer.Address, snap.Customer.TaxID,
		int64(snap.Subtotal), int64(snap.Discount), int64(snap.Total), string(status), validatedAt,
	)
	if err != nil {
		return classify("create order", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create order %s: %w", snap.ID, gateway.ErrDuplicateOrder)
	}

	if err := insertItems(ctx, tx, snap.ID, snap.Items); err != nil {
		return classify("create order items", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify("create order commit", err)
	}
	return nil
}

// UpdateKitchenStatus sets the status. An unchanged status or a cancelled
// order is left as is; served stamps served_at only if it is unset.
func (g *Gateway) UpdateKitchenStatus(ctx context.Context, orderID string, status order.KitchenStatus) error {
	tag, err := g.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2,
		    served_at = CASE WHEN $2 = 'served' THEN COALESCE(served_at, now()) ELSE served_at END
		WHERE id = $1 AND status <> $2 AND status <> 'cancelled'
	`, orderID, string(status))
	if err != nil {
		return classify("update status", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return g.requireOrder(ctx, "update status", orderID)
}

// CancelOrder flips the order to cancelled. Rows are never deleted.
func (g *Gateway) CancelOrder(ctx context.Context, orderID string) error {
	tag, err := g.pool.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, orderID, statusCancelled)
	if err != nil {
		return classify("cancel order", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cancel order %s: %w", orderID, gateway.ErrNotFound)
	}
	return nil
}

// ReplaceItems deletes every line item of the order and inserts items, then
// recomputes the order totals, all in one transaction.
func (g *Gateway) ReplaceItems(ctx context.Context, orderID string, items []order.LineItem) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return classify("replace items", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var discount int64
	err = tx.QueryRow(ctx, `SELECT discount FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&discount)
	if err != nil {
		return classify("replace items "+orderID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_item_addons WHERE order_id = $1`, orderID); err != nil {
		return classify("replace items", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return classify("replace items", err)
	}
	if err := insertItems(ctx, tx, orderID, items); err != nil {
		return classify("replace items", err)
	}

	subtotal, total := order.Totals(items, order.Money(discount))
	if _, err := tx.Exec(ctx, `UPDATE orders SET subtotal = $2, total = $3 WHERE id = $1`,
		orderID, int64(subtotal), int64(total)); err != nil {
		return classify("replace items", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify("replace items commit", err)
	}
	return nil
}

// FetchOrdersByIDs returns the known orders among ids, sorted by id.
func (g *Gateway) FetchOrdersByIDs(ctx context.Context, ids []string) ([]gateway.RemoteOrder, error) {
	out := make([]gateway.RemoteOrder, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := g.pool.Query(ctx, `
		SELECT o.id, o.order_type, o.status, o.total, o.invoice_number, o.served_at, o.paid_at,
		       (SELECT count(*) FROM order_items i WHERE i.order_id = o.id)
		FROM orders o
		WHERE o.id = ANY($1)
		ORDER BY o.id COLLATE "C"
	`, ids)
	if err != nil {
		return nil, classify("fetch orders", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ro        gateway.RemoteOrder
			typ       string
			status    string
			total     int64
			invoiceNo *string
			itemCount int64
		)
		if err := rows.Scan(&ro.ID, &typ, &status, &total, &invoiceNo, &ro.ServedAt, &ro.PaidAt, &itemCount); err != nil {
			return nil, classify("fetch orders", err)
		}
		ro.Type = order.Type(typ)
		if status == statusCancelled {
			ro.Cancelled = true
		} else {
			ro.Status = order.KitchenStatus(status)
		}
		ro.Total = order.Money(total)
		ro.ItemCount = int(itemCount)
		if invoiceNo != nil {
			ro.InvoiceNumber = *invoiceNo
		}
		out = append(out, ro)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("fetch orders", err)
	}
	return out, nil
}

func (g *Gateway) requireOrder(ctx context.Context, op, orderID string) error {
	var exists bool
	err := g.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return classify(op, err)
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", op, orderID, gateway.ErrNotFound)
	}
	return nil
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID string, items []order.LineItem) error {
	batch := &pgx.Batch{}
	for i, it := range order.NormalizeItems(items) {
		batch.Queue(`
			INSERT INTO order_items (order_id, position, product_id, name, unit_price, quantity, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, orderID, i, it.ProductID, it.Name, int64(it.UnitPrice), it.Quantity, it.Note)
		for j, a := range it.Addons {
			batch.Queue(`
				INSERT INTO order_item_addons (order_id, item_position, position, addon_id, kind, name, unit_price, quantity)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, orderID, i, j, a.AddonID, string(a.Kind), a.Name, int64(a.UnitPrice), a.Quantity)
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}
