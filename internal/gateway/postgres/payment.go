package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/roach88/possync/internal/invoice"
	"github.com/roach88/possync/internal/order"
)

// ApplyPayment runs the shared payment flow against the store.
func (g *Gateway) ApplyPayment(ctx context.Context, orderID string, p order.Payment) (string, error) {
	return g.flow.Apply(ctx, orderID, p)
}

// InvoiceOf implements gateway.PaymentBackend.
func (g *Gateway) InvoiceOf(ctx context.Context, orderID string) (string, error) {
	var number *string
	err := g.pool.QueryRow(ctx, `SELECT invoice_number FROM orders WHERE id = $1`, orderID).Scan(&number)
	if err != nil {
		return "", classify("payment "+orderID, err)
	}
	if number == nil {
		return "", nil
	}
	return *number, nil
}

// WritePayment implements gateway.PaymentBackend. An invoice number already
// on the row wins over p.InvoiceNumber.
func (g *Gateway) WritePayment(ctx context.Context, orderID string, p order.Payment) (string, error) {
	var name, phone, address, taxID *string
	if c := p.Customer; c != nil {
		name, phone, address, taxID = &c.Name, &c.Phone, &c.Address, &c.TaxID
	}
	var paidAt any
	if !p.PaidAt.IsZero() {
		paidAt = p.PaidAt
	}

	var number string
	err := g.pool.QueryRow(ctx, `
		UPDATE orders
		SET invoice_number   = COALESCE(invoice_number, $2),
		    status           = CASE WHEN status = 'cancelled' THEN status ELSE 'served' END,
		    served_at        = COALESCE(served_at, now()),
		    delivered_at     = COALESCE(delivered_at, now()),
		    paid_at          = COALESCE($3::timestamptz, now()),
		    payment_method   = $4,
		    amount_received  = $5,
		    change_due       = $6,
		    customer_name    = COALESCE($7, customer_name),
		    customer_phone   = COALESCE($8, customer_phone),
		    customer_address = COALESCE($9, customer_address),
		    customer_tax_id  = COALESCE($10, customer_tax_id)
		WHERE id = $1
		RETURNING invoice_number
	`,
		orderID, p.InvoiceNumber, paidAt, string(p.Method),
		int64(p.AmountReceived), int64(p.Change),
		name, phone, address, taxID,
	).Scan(&number)
	if err != nil {
		return "", classify("payment "+orderID, err)
	}
	return number, nil
}

// MaxInvoiceNumber implements invoice.Source. Fallback numbers with a token
// suffix are ignored.
func (g *Gateway) MaxInvoiceNumber(ctx context.Context, dayPrefix string) (string, error) {
	var number string
	err := g.pool.QueryRow(ctx, `
		SELECT invoice_number
		FROM orders
		WHERE left(invoice_number, length($1)) = $1
		  AND length(invoice_number) = length($1) + $2
		  AND right(invoice_number, $2) ~ '^[0-9]+$'
		ORDER BY invoice_number DESC
		LIMIT 1
	`, dayPrefix, invoice.SeqWidth).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", classify("max invoice", err)
	}
	return number, nil
}

// String describes the gateway for logs.
func (g *Gateway) String() string {
	cfg := g.pool.Config().ConnConfig
	return fmt.Sprintf("postgres://%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
}
