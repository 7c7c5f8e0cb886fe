package order

import (
	"errors"
	"fmt"
	"time"
)

// KitchenStatus is the preparation lifecycle state of an order.
type KitchenStatus string

const (
	// StatusPending is the initial status assigned when an order is validated.
	StatusPending KitchenStatus = "pending"
	// StatusPreparing means the kitchen has started the order.
	StatusPreparing KitchenStatus = "preparing"
	// StatusReady exists only in historical records. New transitions never
	// produce it; a request for it is rewritten to StatusServed.
	StatusReady KitchenStatus = "ready"
	// StatusServed ends the kitchen workflow and stops elapsed-time tracking.
	StatusServed KitchenStatus = "served"
)

// rank orders statuses for the monotonicity check. ready sits between
// preparing and served so legacy rows can still be closed out.
var rank = map[KitchenStatus]int{
	StatusPending:   0,
	StatusPreparing: 1,
	StatusReady:     2,
	StatusServed:    3,
}

// ErrRegression is returned (wrapped in a TransitionError) when a
// transition would move an order backwards.
var ErrRegression = errors.New("kitchen status cannot regress")

// ErrUnknownStatus is returned for a status outside the known set.
var ErrUnknownStatus = errors.New("unknown kitchen status")

// TransitionError describes a rejected kitchen status change.
type TransitionError struct {
	From KitchenStatus
	To   KitchenStatus
	Err  error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("kitchen transition %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// Valid reports whether s is a known status, including legacy ready.
func (s KitchenStatus) Valid() bool {
	_, ok := rank[s]
	return ok
}

// ParseKitchenStatus parses a stored status. Legacy "ready" is accepted.
func ParseKitchenStatus(s string) (KitchenStatus, error) {
	ks := KitchenStatus(s)
	if !ks.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return ks, nil
}

// Transition validates moving from one status to another and returns the
// status that should actually be recorded.
//
// Same-status requests are accepted and return the same status. A target of
// ready is rewritten to served.
func Transition(from, to KitchenStatus) (KitchenStatus, error) {
	if !from.Valid() {
		return "", &TransitionError{From: from, To: to, Err: ErrUnknownStatus}
	}
	if !to.Valid() {
		return "", &TransitionError{From: from, To: to, Err: ErrUnknownStatus}
	}
	if to == StatusReady {
		to = StatusServed
	}
	if rank[to] < rank[from] {
		return "", &TransitionError{From: from, To: to, Err: ErrRegression}
	}
	return to, nil
}

// CanTransition reports whether Transition(from, to) would succeed.
func CanTransition(from, to KitchenStatus) bool {
	_, err := Transition(from, to)
	return err == nil
}

// Next returns the status following s in the kitchen workflow.
// Returns false for served, which has no successor.
func Next(s KitchenStatus) (KitchenStatus, bool) {
	switch s {
	case StatusPending:
		return StatusPreparing, true
	case StatusPreparing, StatusReady:
		return StatusServed, true
	default:
		return "", false
	}
}

// TracksElapsed reports whether the kitchen timer runs in status s.
func TracksElapsed(s KitchenStatus) bool {
	return s != StatusServed
}

// Lifecycle errors returned by State.
var (
	ErrAlreadyCancelled = errors.New("order is cancelled")
	ErrAlreadyPaid      = errors.New("order is already paid")
	ErrNotServed        = errors.New("order must be served before payment")
	ErrCancelServed     = errors.New("served order cannot be cancelled")
)

// State is the local, optimistic view of one order's lifecycle.
//
// Payment and cancellation are attributes layered on top of the kitchen
// status, not further kitchen transitions.
type State struct {
	Kitchen     KitchenStatus
	ServedAt    *time.Time
	PaidAt      *time.Time
	CancelledAt *time.Time
}

// NewState returns the state of a freshly validated order.
func NewState() State {
	return State{Kitchen: StatusPending}
}

// Advance applies a kitchen transition to the state.
func (s *State) Advance(to KitchenStatus, at time.Time) error {
	if s.CancelledAt != nil {
		return ErrAlreadyCancelled
	}
	next, err := Transition(s.Kitchen, to)
	if err != nil {
		return err
	}
	if next == StatusServed && s.ServedAt == nil {
		t := at
		s.ServedAt = &t
	}
	s.Kitchen = next
	return nil
}

// Pay marks a served order as paid.
func (s *State) Pay(at time.Time) error {
	switch {
	case s.CancelledAt != nil:
		return ErrAlreadyCancelled
	case s.PaidAt != nil:
		return ErrAlreadyPaid
	case s.Kitchen != StatusServed:
		return ErrNotServed
	}
	t := at
	s.PaidAt = &t
	return nil
}

// Cancel terminates the order. Allowed from any non-served status.
func (s *State) Cancel(at time.Time) error {
	if s.CancelledAt != nil {
		return ErrAlreadyCancelled
	}
	if s.Kitchen == StatusServed {
		return ErrCancelServed
	}
	t := at
	s.CancelledAt = &t
	return nil
}

// Active reports whether the order still belongs to the active-orders set.
func (s State) Active() bool {
	return s.CancelledAt == nil && s.PaidAt == nil
}
