// Package gateway defines the contract between the sync engine and the
// remote order store, plus the pieces every backend shares: the error
// taxonomy, the bounded retry policy and the payment flow.
//
// Backends live in subpackages: postgres talks to the real relational
// store, memory is an in-process double with fault injection.
//
// Idempotency requirements per call:
//
//	CreateOrder          duplicate id surfaces ErrDuplicateOrder (halts that op)
//	UpdateKitchenStatus  same-status retry is a no-op; served stamps served_at once
//	ApplyPayment         tolerates running before the create is visible and
//	                     partial-success retries; one invoice per order
//	CancelOrder          terminal flip, never deletes
//	ReplaceItems         delete-then-reinsert; deterministic end state
package gateway

import (
	"context"
	"time"

	"github.com/roach88/possync/internal/order"
)

// Gateway is the remote order store as seen by the sync engine.
type Gateway interface {
	// CreateOrder inserts the order with its items and addons.
	CreateOrder(ctx context.Context, snap order.Snapshot) error

	// UpdateKitchenStatus sets the kitchen status, stamping the serve time
	// when status is served.
	UpdateKitchenStatus(ctx context.Context, orderID string, status order.KitchenStatus) error

	// ApplyPayment sets the delivered/served/paid fields and the invoice
	// number. Returns the invoice number the order ends up holding.
	ApplyPayment(ctx context.Context, orderID string, p order.Payment) (string, error)

	// CancelOrder flips the order to cancelled.
	CancelOrder(ctx context.Context, orderID string) error

	// ReplaceItems deletes the order's line items and inserts items.
	ReplaceItems(ctx context.Context, orderID string, items []order.LineItem) error

	// FetchOrdersByIDs is a best-effort read of current remote state.
	// Unknown ids are omitted from the result.
	FetchOrdersByIDs(ctx context.Context, ids []string) ([]RemoteOrder, error)
}

// Pinger is implemented by gateways that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RemoteOrder is the remote store's current view of an order.
type RemoteOrder struct {
	ID            string              `json:"id"`
	Type          order.Type          `json:"type"`
	Status        order.KitchenStatus `json:"status"`
	Cancelled     bool                `json:"cancelled"`
	Total         order.Money         `json:"total"`
	ItemCount     int                 `json:"item_count"`
	InvoiceNumber string              `json:"invoice_number,omitempty"`
	ServedAt      *time.Time          `json:"served_at,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
}
