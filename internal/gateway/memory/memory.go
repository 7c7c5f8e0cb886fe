// Package memory is an in-process remote order store implementing
// gateway.Gateway, for tests, scenario runs and offline demos.
//
// A Remote holds the shared state. Each terminal talks to it through its
// own Gateway (Remote.Gateway), so several engines can contend for the same
// invoice sequence exactly as they would against the real store. Faults are
// injected on the Remote: whole-store outages, per-method error queues and
// delayed visibility of freshly created orders.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/possync/internal/gateway"
	"github.com/roach88/possync/internal/invoice"
	"github.com/roach88/possync/internal/order"
)

// Method names used in the call log and for fault injection.
const (
	MethodCreateOrder         = "CreateOrder"
	MethodUpdateKitchenStatus = "UpdateKitchenStatus"
	MethodApplyPayment        = "ApplyPayment"
	MethodCancelOrder         = "CancelOrder"
	MethodReplaceItems        = "ReplaceItems"
	MethodFetchOrdersByIDs    = "FetchOrdersByIDs"
)

// Order is one remote order row with its items.
type Order struct {
	ID            string
	Type          order.Type
	TableRef      string
	PartySize     int
	Customer      order.Customer
	Discount      order.Money
	Subtotal      order.Money
	Total         order.Money
	Status        order.KitchenStatus
	Cancelled     bool
	ValidatedAt   time.Time
	ServedAt      *time.Time
	DeliveredAt   *time.Time
	PaidAt        *time.Time
	Method        order.PaymentMethod
	Received      order.Money
	Change        order.Money
	InvoiceNumber string
	Items         []order.LineItem
}

func (o *Order) clone() Order {
	c := *o
	c.Items = append([]order.LineItem(nil), o.Items...)
	return c
}

// Call is one entry in the remote call log.
type Call struct {
	Method  string
	OrderID string
	Err     error
}

// Remote is the shared in-memory store.
type Remote struct {
	mu          sync.Mutex
	orders      map[string]*Order
	invoices    map[string]string // invoice number -> order id
	calls       []Call
	unavailable bool
	failures    map[string][]error
	hidden      map[string]int
	now         func() time.Time
}

// NewRemote creates an empty remote store.
func NewRemote() *Remote {
	return &Remote{
		orders:   make(map[string]*Order),
		invoices: make(map[string]string),
		failures: make(map[string][]error),
		hidden:   make(map[string]int),
		now:      time.Now,
	}
}

// SetClock overrides the time source used for served/delivered stamps.
func (r *Remote) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// SetUnavailable simulates the store being unreachable.
func (r *Remote) SetUnavailable(down bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unavailable = down
}

// FailNext queues errors returned by the next calls to method, one per call.
func (r *Remote) FailNext(method string, errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[method] = append(r.failures[method], errs...)
}

// HideOrder makes the next n payment visibility checks for orderID report
// not found, emulating the remote consistency window after a create.
func (r *Remote) HideOrder(orderID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hidden[orderID] = n
}

// Seed inserts an order directly, bypassing the call log.
func (r *Remote) Seed(o Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := o.clone()
	r.orders[o.ID] = &c
	if o.InvoiceNumber != "" {
		r.invoices[o.InvoiceNumber] = o.ID
	}
}

// Order returns a copy of one order.
func (r *Remote) Order(id string) (Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, false
	}
	return o.clone(), true
}

// Orders returns copies of all orders sorted by id.
func (r *Remote) Orders() []Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Calls returns the call log in arrival order.
func (r *Remote) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// enter records a call and returns the injected fault for it, if any.
// Caller must hold r.mu.
func (r *Remote) enter(method, orderID string) error {
	var err error
	switch {
	case r.unavailable:
		err = fmt.Errorf("%s: %w", method, gateway.ErrUnavailable)
	case len(r.failures[method]) > 0:
		err = r.failures[method][0]
		r.failures[method] = r.failures[method][1:]
	}
	r.calls = append(r.calls, Call{Method: method, OrderID: orderID, Err: err})
	return err
}

// finish overwrites the error of the last logged call.
// Caller must hold r.mu.
func (r *Remote) finish(err error) error {
	if n := len(r.calls); n > 0 && r.calls[n-1].Err == nil {
		r.calls[n-1].Err = err
	}
	return err
}

func (r *Remote) maxInvoice(dayPrefix string) string {
	max := ""
	for num := range r.invoices {
		if !strings.HasPrefix(num, dayPrefix) {
			continue
		}
		n, err := invoice.Parse(num)
		if err != nil || n.Token != "" {
			continue
		}
		if num > max {
			max = num
		}
	}
	return max
}
