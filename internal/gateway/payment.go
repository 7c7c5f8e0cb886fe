package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/possync/internal/invoice"
	"github.com/roach88/possync/internal/order"
)

// PaymentBackend is the storage half of ApplyPayment.
type PaymentBackend interface {
	// InvoiceOf returns the invoice number the order already holds ("" if
	// none). Returns ErrNotFound while the order is not visible.
	InvoiceOf(ctx context.Context, orderID string) (string, error)

	// WritePayment writes the payment fields. If the order already holds an
	// invoice number it must be kept. Returns the number the order holds
	// after the write, or ErrInvoiceConflict when p.InvoiceNumber belongs
	// to another order.
	WritePayment(ctx context.Context, orderID string, p order.Payment) (string, error)
}

// PaymentFlow implements ApplyPayment on top of a PaymentBackend:
//
//  1. wait for the order to become visible (retry on ErrNotFound)
//  2. reuse the order's existing invoice, or allocate one
//  3. write; on ErrInvoiceConflict re-allocate and write again
//
// All three share one RetryPolicy budget.
type PaymentFlow struct {
	backend PaymentBackend
	alloc   *invoice.Allocator
	policy  RetryPolicy
	now     func() time.Time
}

// NewPaymentFlow creates a payment flow.
func NewPaymentFlow(backend PaymentBackend, alloc *invoice.Allocator, policy RetryPolicy) *PaymentFlow {
	return &PaymentFlow{
		backend: backend,
		alloc:   alloc,
		policy:  policy,
		now:     time.Now,
	}
}

// Apply applies p to orderID and returns the invoice number it ends up with.
func (f *PaymentFlow) Apply(ctx context.Context, orderID string, p order.Payment) (string, error) {
	day := p.PaidAt
	if day.IsZero() {
		day = f.now()
	}

	number := p.InvoiceNumber
	reallocations := 0
	var lastErr error

	for attempt := 1; attempt <= f.policy.attempts(); attempt++ {
		if attempt > 1 {
			if err := f.policy.wait(ctx); err != nil {
				return "", err
			}
		}

		held, err := f.backend.InvoiceOf(ctx, orderID)
		if err != nil {
			lastErr = err
			if IsRetryable(err) {
				slog.Debug("payment target not ready",
					"order_id", orderID,
					"attempt", attempt,
					"error", err,
				)
				continue
			}
			return "", fmt.Errorf("apply payment %s: %w", orderID, err)
		}

		switch {
		case held != "":
			// A previous attempt already landed; never assign a second number.
			number = held
		case number == "":
			number, err = f.alloc.Next(ctx, day)
			if err != nil {
				lastErr = err
				if IsRetryable(err) {
					continue
				}
				return "", fmt.Errorf("apply payment %s: allocate invoice: %w", orderID, err)
			}
		}

		p.InvoiceNumber = number
		got, err := f.backend.WritePayment(ctx, orderID, p)
		switch {
		case err == nil:
			slog.Info("payment applied",
				"order_id", orderID,
				"invoice_number", got,
				"attempts", attempt,
				"reallocations", reallocations,
			)
			return got, nil
		case IsConflict(err):
			slog.Warn("invoice number collision, re-allocating",
				"order_id", orderID,
				"invoice_number", number,
				"attempt", attempt,
			)
			reallocations++
			number = ""
			lastErr = err
		case IsRetryable(err):
			lastErr = err
		default:
			return "", fmt.Errorf("apply payment %s: %w", orderID, err)
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return "", fmt.Errorf("apply payment %s: gave up after %d attempts: %w", orderID, f.policy.attempts(), lastErr)
}
