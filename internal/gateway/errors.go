package gateway

import (
	"context"
	"errors"

	"github.com/roach88/possync/internal/invoice"
)

var (
	// ErrNotFound means the order is not (yet) visible in the remote store.
	ErrNotFound = errors.New("order not found")

	// ErrDuplicateOrder means a create hit an existing order id.
	ErrDuplicateOrder = errors.New("order already exists")

	// ErrUnavailable means the remote store could not be reached.
	ErrUnavailable = errors.New("remote store unavailable")

	// ErrInvoiceConflict means the invoice number is held by another order.
	ErrInvoiceConflict = invoice.ErrConflict
)

// IsRetryable reports whether an in-call retry can help: the order may
// become visible, or the store may come back. Everything else is left for
// the engine's next drain.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable)
}

// IsConflict reports whether err is an invoice uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvoiceConflict)
}
