package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/possync/internal/gateway"
	"github.com/roach88/possync/internal/invoice"
	"github.com/roach88/possync/internal/order"
)

// Gateway is one terminal's connection to a Remote.
type Gateway struct {
	remote *Remote
	flow   *gateway.PaymentFlow
}

var (
	_ gateway.Gateway        = (*Gateway)(nil)
	_ gateway.Pinger         = (*Gateway)(nil)
	_ gateway.PaymentBackend = (*Gateway)(nil)
	_ invoice.Source         = (*Gateway)(nil)
)

type options struct {
	source    invoice.Source
	stale     string
	staleN    int
	allocOpts []invoice.Option
	policy    gateway.RetryPolicy
}

// Option configures a Gateway.
type Option func(*options)

// WithInvoiceSource replaces the allocator's max-number reader, e.g. with
// one that returns a stale value.
func WithInvoiceSource(src invoice.Source) Option {
	return func(o *options) { o.source = src }
}

// WithStaleInvoiceReads makes the first n max-number reads return stale,
// as a terminal would see before another terminal's write is visible.
func WithStaleInvoiceReads(stale string, n int) Option {
	return func(o *options) { o.stale, o.staleN = stale, n }
}

// WithAllocatorOptions passes options to the invoice allocator.
func WithAllocatorOptions(opts ...invoice.Option) Option {
	return func(o *options) { o.allocOpts = append(o.allocOpts, opts...) }
}

// WithRetryPolicy sets the apply-payment retry budget.
func WithRetryPolicy(p gateway.RetryPolicy) Option {
	return func(o *options) { o.policy = p }
}

// Gateway returns a new client of r.
func (r *Remote) Gateway(opts ...Option) *Gateway {
	o := options{policy: gateway.DefaultRetryPolicy()}
	for _, opt := range opts {
		opt(&o)
	}

	g := &Gateway{remote: r}
	src := o.source
	if src == nil {
		src = g
	}
	if o.staleN > 0 {
		src = &staleSource{value: o.stale, left: o.staleN, next: src}
	}
	g.flow = gateway.NewPaymentFlow(g, invoice.NewAllocator(src, o.allocOpts...), o.policy)
	return g
}

// Remote returns the shared store behind g.
func (g *Gateway) Remote() *Remote {
	return g.remote
}

// Ping reports ErrUnavailable while the remote is down.
func (g *Gateway) Ping(context.Context) error {
	r := g.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unavailable {
		return gateway.ErrUnavailable
	}
	return nil
}

// CreateOrder inserts the order; an existing id yields ErrDuplicateOrder.
func (g *Gateway) CreateOrder(_ context.Context, snap order.Snapshot) error {
	r := g.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(MethodCreateOrder, snap.ID); err != nil {
		return err
	}
	if _, ok := r.orders[snap.ID]; ok {
		return r.finish(fmt.Errorf("create %s: %w", snap.ID, gateway.ErrDuplicateOrder))
	}

	status := snap.Status
	if status == "" {
		status = order.StatusPending
	}
	r.orders[snap.ID] = &Order{
		ID:          snap.ID,
		Type:        snap.Type,
		TableRef:    snap.TableRef,
		PartySize:   snap.PartySize,
		Customer:    snap.Customer,
		Discount:    snap.Discount,
		Subtotal:    snap.Subtotal,
		Total:       snap.Total,
		Status:      status,
		ValidatedAt: snap.ValidatedAt,
		Items:       order.NormalizeItems(snap.Items),
	}
	return nil
}

// UpdateKitchenStatus sets the status; served stamps ServedAt once.
// A cancelled order is left as it is.
func (g *Gateway) UpdateKitchenStatus(_ context.Context, orderID string, status order.KitchenStatus) error {
	r := g.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(MethodUpdateKitchenStatus, orderID); err != nil {
		return err
	}
	o, ok := r.orders[orderID]
	if !ok {
		return r.finish(fmt.Errorf("update status %s: %w", orderID, gateway.ErrNotFound))
	}
	if o.Cancelled || o.Status == status {
		return nil
	}
	o.Status = status
	if status == order.StatusServed && o.ServedAt == nil {
		now := r.now()
		o.ServedAt = &now
	}
	return nil
}

// ApplyPayment runs the shared payment flow against this remote.
func (g *Gateway) ApplyPayment(ctx context.Context, orderID string, p order.Payment) (string, error) {
	r := g.remote
	r.mu.Lock()
	err := r.enter(MethodApplyPayment, orderID)
	r.mu.Unlock()
	if err != nil {
		return "", err
	}

	number, err := g.flow.Apply(ctx, orderID, p)
	if err != nil {
		r.mu.Lock()
		r.finishCall(MethodApplyPayment, orderID, err)
		r.mu.Unlock()
	}
	return number, err
}

// finishCall sets the error on the most recent call matching method and id.
// Caller must hold r.mu.
func (r *Remote) finishCall(method, orderID string, err error) {
	for i := len(r.calls) - 1; i >= 0; i-- {
		if r.calls[i].Method == method && r.calls[i].OrderID == orderID {
			if r.calls[i].Err == nil {
				r.calls[i].Err = err
			}
			return
		}
	}
}

// InvoiceOf implements gateway.PaymentBackend.
func (g *Gateway) InvoiceOf(_ context.Context, orderID string) (string, error) {
	r := g.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unavailable {
		return "", gateway.ErrUnavailable
	}
	if n := r.hidden[orderID]; n > 0 {
		r.hidden[orderID] = n - 1
		return "", fmt.Errorf("payment %s: %w", orderID, gateway.ErrNotFound)
	}
	o, ok := r.orders[orderID]
	if !ok {
		return "", fmt.Errorf("payment %s: %w", orderID, gateway.ErrNotFound)
	}
	return o.InvoiceNumber, nil
}

// WritePayment implements gateway.PaymentBackend.
func (g *Gateway) WritePayment(_ context.Context, orderID string, p order.Payment) (string, error) {
	r := g.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unavailable {
		return "", gateway.ErrUnavailable
	}
	o, ok := r.orders[orderID]
	if !ok {
		return "", fmt.Errorf("payment %s: %w", orderID, gateway.ErrNotFound)
	}

	number := o.InvoiceNumber
	if number == "" {
		if owner, taken := r.invoices[p.InvoiceNumber]; taken && owner != orderID {
			return "", fmt.Errorf("payment %s: %s: %w", orderID, p.InvoiceNumber, gateway.ErrInvoiceConflict)
		}
		number = p.InvoiceNumber
		r.invoices[number] = orderID
	}

	now := r.now()
	paidAt := p.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}
	if o.ServedAt == nil {
		o.ServedAt = &now
	}
	if o.DeliveredAt == nil {
		o.DeliveredAt = &now
	}
	o.Status = order.StatusServed
	o.PaidAt = &paidAt
	o.Method = p.Method
	o.Received = p.AmountReceived
	o.Change = p.Change
	o.InvoiceNumber = number
	if p.Customer != nil {
		o.Customer = *p.Customer
	}
	return number, nil
}

// MaxInvoiceNumber implements invoice.Source.
func (g *Gateway) MaxInvoiceNumber(_ context.Context, dayPrefix string) (string, error) {
	r := g.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unavailable {
		return "", gateway.ErrUnavailable
	}
	return r.maxInvoice(dayPrefix), nil
}

// CancelOrder flips the order to cancelled. Repeats are no-ops.
func (g *Gateway) CancelOrder(_ context.Context, orderID string) error {
	r := g.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(MethodCancelOrder, orderID); err != nil {
		return err
	}
	o, ok := r.orders[orderID]
	if !ok {
		return r.finish(fmt.Errorf("cancel %s: %w", orderID, gateway.ErrNotFound))
	}
	o.Cancelled = true
	return nil
}

// ReplaceItems swaps the full item list and recomputes totals.
func (g *Gateway) ReplaceItems(_ context.Context, orderID string, items []order.LineItem) error {
	r := g.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(MethodReplaceItems, orderID); err != nil {
		return err
	}
	o, ok := r.orders[orderID]
	if !ok {
		return r.finish(fmt.Errorf("replace items %s: %w", orderID, gateway.ErrNotFound))
	}
	o.Items = order.NormalizeItems(items)
	o.Subtotal, o.Total = order.Totals(o.Items, o.Discount)
	return nil
}

// FetchOrdersByIDs returns the known orders among ids.
func (g *Gateway) FetchOrdersByIDs(_ context.Context, ids []string) ([]gateway.RemoteOrder, error) {
	r := g.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(MethodFetchOrdersByIDs, ""); err != nil {
		return nil, err
	}
	out := make([]gateway.RemoteOrder, 0, len(ids))
	for _, id := range ids {
		o, ok := r.orders[id]
		if !ok {
			continue
		}
		out = append(out, gateway.RemoteOrder{
			ID:            o.ID,
			Type:          o.Type,
			Status:        o.Status,
			Cancelled:     o.Cancelled,
			Total:         o.Total,
			ItemCount:     len(o.Items),
			InvoiceNumber: o.InvoiceNumber,
			ServedAt:      o.ServedAt,
			PaidAt:        o.PaidAt,
		})
	}
	return out, nil
}

type staleSource struct {
	mu    sync.Mutex
	value string
	left  int
	next  invoice.Source
}

func (s *staleSource) MaxInvoiceNumber(ctx context.Context, dayPrefix string) (string, error) {
	s.mu.Lock()
	if s.left > 0 {
		s.left--
		s.mu.Unlock()
		return s.value, nil
	}
	s.mu.Unlock()
	return s.next.MaxInvoiceNumber(ctx, dayPrefix)
}
