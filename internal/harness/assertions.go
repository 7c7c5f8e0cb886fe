package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/possync/internal/gateway/memory"
)

// FinalState is what expectations are checked against.
type FinalState struct {
	Orders  []memory.Order
	Pending map[string]int
	// Writes lists successful remote writes in arrival order.
	Writes []string
}

// AssertionError describes a failed expectation.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateExpectations checks exp against fs and returns one message per
// failure.
func EvaluateExpectations(fs FinalState, exp Expectations) []string {
	var errs []error
	errs = append(errs, assertPending(fs, exp.Pending)...)
	for _, oe := range exp.Orders {
		if err := assertOrder(fs, oe); err != nil {
			errs = append(errs, err)
		}
	}
	if exp.Invoices != nil {
		if err := assertInvoices(fs, exp.Invoices); err != nil {
			errs = append(errs, err)
		}
	}
	if exp.Writes != nil {
		if err := assertWrites(fs, exp.Writes); err != nil {
			errs = append(errs, err)
		}
	}

	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return msgs
}

func assertPending(fs FinalState, want map[string]int) []error {
	names := make([]string, 0, len(want))
	for name := range want {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if got := fs.Pending[name]; got != want[name] {
			errs = append(errs, &AssertionError{
				Type:     "pending",
				Expected: fmt.Sprintf("%s has %d pending", name, want[name]),
				Actual:   fmt.Sprintf("%d pending", got),
			})
		}
	}
	return errs
}

func assertOrder(fs FinalState, oe OrderExpect) error {
	var o *memory.Order
	for i := range fs.Orders {
		if fs.Orders[i].ID == oe.ID {
			o = &fs.Orders[i]
			break
		}
	}
	if o == nil {
		return &AssertionError{Type: "order", Expected: "order " + oe.ID + " in remote store", Actual: "not found"}
	}

	var diffs []string
	check := func(field string, want, got any) {
		if !reflect.DeepEqual(want, got) {
			diffs = append(diffs, fmt.Sprintf("%s=%v (want %v)", field, got, want))
		}
	}
	if oe.Status != "" {
		check("status", oe.Status, string(o.Status))
	}
	if oe.Cancelled != nil {
		check("cancelled", *oe.Cancelled, o.Cancelled)
	}
	if oe.Invoice != "" {
		check("invoice", oe.Invoice, o.InvoiceNumber)
	}
	if oe.Total != nil {
		check("total", *oe.Total, int64(o.Total))
	}
	if oe.Items != nil {
		check("items", *oe.Items, len(o.Items))
	}
	if oe.Paid != nil {
		check("paid", *oe.Paid, o.PaidAt != nil)
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     "order",
		Expected: "order " + oe.ID + " to match",
		Actual:   strings.Join(diffs, ", "),
	}
}

func assertInvoices(fs FinalState, want []string) error {
	var got []string
	for _, o := range fs.Orders {
		if o.InvoiceNumber != "" {
			got = append(got, o.InvoiceNumber)
		}
	}
	sort.Strings(got)
	sorted := append([]string(nil), want...)
	sort.Strings(sorted)
	if reflect.DeepEqual(sorted, got) || (len(sorted) == 0 && len(got) == 0) {
		return nil
	}
	return &AssertionError{
		Type:     "invoices",
		Expected: strings.Join(sorted, ", "),
		Actual:   strings.Join(got, ", "),
	}
}

func assertWrites(fs FinalState, want []string) error {
	if reflect.DeepEqual(want, fs.Writes) || (len(want) == 0 && len(fs.Writes) == 0) {
		return nil
	}
	return &AssertionError{
		Type:     "writes",
		Expected: strings.Join(want, " | "),
		Actual:   strings.Join(fs.Writes, " | "),
	}
}
