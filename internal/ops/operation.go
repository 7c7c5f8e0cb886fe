package ops

import (
	"time"

	"github.com/roach88/possync/internal/order"
)

// Kind is the tag of a SyncOperation.
type Kind string

const (
	KindCreate  Kind = "create"
	KindStatus  Kind = "status"
	KindPayment Kind = "payment"
	KindCancel  Kind = "cancel"
	KindItems   Kind = "items"
)

// Kinds lists every operation kind in declaration order.
var Kinds = []Kind{KindCreate, KindStatus, KindPayment, KindCancel, KindItems}

// Payload is the kind-specific body of an operation.
// Implemented only by the variants in this package.
type Payload interface {
	Kind() Kind
	isPayload()
}

// Create inserts a new order with its items and addons.
type Create struct {
	Order order.Snapshot `json:"order"`
}

// Status sets the order's kitchen status.
type Status struct {
	Status order.KitchenStatus `json:"status"`
}

// Payment settles a served order.
type Payment struct {
	Payment order.Payment `json:"payment"`
}

// Cancel flips the order to cancelled.
type Cancel struct{}

// Items replaces the order's full line-item sequence.
type Items struct {
	Items []order.LineItem `json:"items"`
}

func (Create) Kind() Kind  { return KindCreate }
func (Status) Kind() Kind  { return KindStatus }
func (Payment) Kind() Kind { return KindPayment }
func (Cancel) Kind() Kind  { return KindCancel }
func (Items) Kind() Kind   { return KindItems }

func (Create) isPayload()  {}
func (Status) isPayload()  {}
func (Payment) isPayload() {}
func (Cancel) isPayload()  {}
func (Items) isPayload()   {}

// Operation is one pending mutation against the remote order store.
//
// Seq is the logical enqueue order and the only ordering key. CreatedAt is
// wall-clock and informational. Attempts and LastError record failed drain
// attempts; they are bookkeeping, never part of the payload.
type Operation struct {
	ID        string
	Seq       int64
	CreatedAt time.Time
	OrderID   string
	Payload   Payload
	Attempts  int
	LastError string
}

// Kind returns the payload's kind, or "" if the payload is nil.
func (op Operation) Kind() Kind {
	if op.Payload == nil {
		return ""
	}
	return op.Payload.Kind()
}
