package order

import (
	"errors"
	"fmt"
	"time"
)

// Money is an amount in minor currency units.
type Money int64

// Type is the service mode of an order.
type Type string

const (
	TypeDineIn   Type = "dine_in"
	TypeTakeaway Type = "takeaway"
	TypeDelivery Type = "delivery"
)

// Valid reports whether t is a known order type.
func (t Type) Valid() bool {
	switch t {
	case TypeDineIn, TypeTakeaway, TypeDelivery:
		return true
	}
	return false
}

// Customer holds the optional customer identity captured on an order.
type Customer struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	TaxID   string `json:"tax_id,omitempty"`
}

// IsZero reports whether no identity field is set.
func (c Customer) IsZero() bool {
	return c == Customer{}
}

// Snapshot is the full order as captured when staff validate it.
// It is the payload of a create operation.
type Snapshot struct {
	ID          string        `json:"id"`
	Type        Type          `json:"type"`
	TableRef    string        `json:"table_ref,omitempty"`
	PartySize   int           `json:"party_size,omitempty"`
	Customer    Customer      `json:"customer"`
	Subtotal    Money         `json:"subtotal"`
	Discount    Money         `json:"discount"`
	Total       Money         `json:"total"`
	Status      KitchenStatus `json:"status"`
	ValidatedAt time.Time     `json:"validated_at"`
	Items       []LineItem    `json:"items"`
}

// Validate checks the fields the remote store requires.
func (s Snapshot) Validate() error {
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("order id is required"))
	}
	if !s.Type.Valid() {
		errs = append(errs, fmt.Errorf("invalid order type %q", s.Type))
	}
	if s.Type == TypeDineIn && s.TableRef == "" {
		errs = append(errs, errors.New("dine-in order requires a table"))
	}
	if s.Status != "" && !s.Status.Valid() {
		errs = append(errs, fmt.Errorf("invalid status %q", s.Status))
	}
	for i, it := range s.Items {
		if err := it.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("items[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// PaymentMethod is how a payment was settled.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodCard     PaymentMethod = "card"
	MethodTransfer PaymentMethod = "transfer"
	MethodOther    PaymentMethod = "other"
)

// Payment is the record applied to a served order.
//
// InvoiceNumber may be left empty, in which case the gateway allocates one.
// Customer, when set, replaces the identity captured at creation.
type Payment struct {
	Method         PaymentMethod `json:"method"`
	PaidAt         time.Time     `json:"paid_at"`
	InvoiceNumber  string        `json:"invoice_number,omitempty"`
	AmountReceived Money         `json:"amount_received"`
	Change         Money         `json:"change"`
	Customer       *Customer     `json:"customer,omitempty"`
}

// NewPayment builds a payment record and derives the change due.
func NewPayment(method PaymentMethod, total, received Money, at time.Time) Payment {
	change := received - total
	if change < 0 {
		change = 0
	}
	return Payment{
		Method:         method,
		PaidAt:         at,
		AmountReceived: received,
		Change:         change,
	}
}
