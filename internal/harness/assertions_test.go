package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/gateway/memory"
	"github.com/roach88/possync/internal/order"
)

func ptr[T any](v T) *T { return &v }

func finalState() FinalState {
	paid := time.Date(2025, 1, 1, 14, 0, 0, 0, time.UTC)
	return FinalState{
		Orders: []memory.Order{
			{ID: "ORD-1", Status: order.StatusServed, Total: 5000, InvoiceNumber: "FAC-20250101-0001", PaidAt: &paid,
				Items: []order.LineItem{{ProductID: "chicken", Quantity: 2}}},
			{ID: "ORD-2", Status: order.StatusPreparing, Cancelled: true},
		},
		Pending: map[string]int{"main": 1},
		Writes:  []string{"CreateOrder ORD-1", "ApplyPayment ORD-1"},
	}
}

func TestEvaluateExpectations_Pass(t *testing.T) {
	errs := EvaluateExpectations(finalState(), Expectations{
		Pending: map[string]int{"main": 1},
		Orders: []OrderExpect{
			{ID: "ORD-1", Status: "served", Invoice: "FAC-20250101-0001", Total: ptr(int64(5000)), Items: ptr(1), Paid: ptr(true)},
			{ID: "ORD-2", Cancelled: ptr(true), Paid: ptr(false)},
		},
		Invoices: []string{"FAC-20250101-0001"},
		Writes:   []string{"CreateOrder ORD-1", "ApplyPayment ORD-1"},
	})
	assert.Empty(t, errs)
}

func TestEvaluateExpectations_Failures(t *testing.T) {
	errs := EvaluateExpectations(finalState(), Expectations{
		Pending:  map[string]int{"main": 0},
		Orders:   []OrderExpect{{ID: "ORD-1", Status: "preparing"}, {ID: "ORD-404"}},
		Invoices: []string{"FAC-20250101-0002"},
		Writes:   []string{"ApplyPayment ORD-1", "CreateOrder ORD-1"},
	})
	require.Len(t, errs, 5)
	assert.Contains(t, errs[0], "Assertion failed: pending")
	assert.Contains(t, errs[1], "status=served (want preparing)")
	assert.Contains(t, errs[2], "not found")
	assert.Contains(t, errs[3], "Assertion failed: invoices")
	assert.Contains(t, errs[4], "Assertion failed: writes")
}

func TestEvaluateExpectations_InvoicesOrderInsensitive(t *testing.T) {
	fs := FinalState{Orders: []memory.Order{
		{ID: "A", InvoiceNumber: "FAC-20250101-0008"},
		{ID: "B", InvoiceNumber: "FAC-20250101-0007"},
	}}
	errs := EvaluateExpectations(fs, Expectations{Invoices: []string{"FAC-20250101-0007", "FAC-20250101-0008"}})
	assert.Empty(t, errs)
}

func TestFormatTrace(t *testing.T) {
	r := NewResult()
	assert.Equal(t, "", FormatTrace(r))
	r.AddTrace("a")
	r.AddTrace("b")
	assert.Equal(t, "a\nb\n", FormatTrace(r))
}
