package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/order"
)

// EnqueueCreate queues the creation of snap. A legacy ready initial status
// is recorded as served.
func (e *Engine) EnqueueCreate(ctx context.Context, snap order.Snapshot) (ops.Operation, error) {
	if err := snap.Validate(); err != nil {
		return ops.Operation{}, newInvalidOperation(snap.ID, err)
	}
	if snap.Status == order.StatusReady {
		snap.Status = order.StatusServed
	}
	snap.Items = order.NormalizeItems(snap.Items)
	return e.Enqueue(ctx, snap.ID, ops.Create{Order: snap})
}

// EnqueueStatus queues a kitchen status change. The transition itself is
// checked locally by the caller with order.Transition; here a legacy ready
// target is rewritten to served.
func (e *Engine) EnqueueStatus(ctx context.Context, orderID string, status order.KitchenStatus) (ops.Operation, error) {
	if !status.Valid() {
		return ops.Operation{}, newInvalidOperation(orderID, fmt.Errorf("%w: %q", order.ErrUnknownStatus, status))
	}
	if status == order.StatusReady {
		status = order.StatusServed
	}
	return e.Enqueue(ctx, orderID, ops.Status{Status: status})
}

// EnqueuePayment queues a payment. An empty invoice number is allocated by
// the gateway when the operation drains.
func (e *Engine) EnqueuePayment(ctx context.Context, orderID string, p order.Payment) (ops.Operation, error) {
	if p.AmountReceived < 0 || p.Change < 0 {
		return ops.Operation{}, newInvalidOperation(orderID, errors.New("payment amounts cannot be negative"))
	}
	return e.Enqueue(ctx, orderID, ops.Payment{Payment: p})
}

// EnqueueCancel queues the cancellation of an order.
func (e *Engine) EnqueueCancel(ctx context.Context, orderID string) (ops.Operation, error) {
	return e.Enqueue(ctx, orderID, ops.Cancel{})
}

// EnqueueItems queues a full replacement of the order's line items.
func (e *Engine) EnqueueItems(ctx context.Context, orderID string, items []order.LineItem) (ops.Operation, error) {
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return ops.Operation{}, newInvalidOperation(orderID, fmt.Errorf("item %d: %w", i, err))
		}
	}
	return e.Enqueue(ctx, orderID, ops.Items{Items: order.NormalizeItems(items)})
}
