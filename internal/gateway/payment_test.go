package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/invoice"
	"github.com/roach88/possync/internal/order"
)

// fakeBackend is a tiny single-table payment store.
type fakeBackend struct {
	mu          sync.Mutex
	invisible   int               // InvoiceOf returns ErrNotFound this many times
	held        map[string]string // order id -> invoice
	owners      map[string]string // invoice -> order id
	writeErr    error
	lookups     int
	writes      int
	maxOverride []string // MaxInvoiceNumber answers consumed in order (stale reads)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{held: map[string]string{}, owners: map[string]string{}}
}

func (b *fakeBackend) InvoiceOf(_ context.Context, orderID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lookups++
	if b.invisible > 0 {
		b.invisible--
		return "", ErrNotFound
	}
	return b.held[orderID], nil
}

func (b *fakeBackend) WritePayment(_ context.Context, orderID string, p order.Payment) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes++
	if b.writeErr != nil {
		return "", b.writeErr
	}
	if cur := b.held[orderID]; cur != "" {
		return cur, nil
	}
	if owner, ok := b.owners[p.InvoiceNumber]; ok && owner != orderID {
		return "", ErrInvoiceConflict
	}
	b.held[orderID] = p.InvoiceNumber
	b.owners[p.InvoiceNumber] = orderID
	return p.InvoiceNumber, nil
}

func (b *fakeBackend) MaxInvoiceNumber(_ context.Context, dayPrefix string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.maxOverride) > 0 {
		v := b.maxOverride[0]
		b.maxOverride = b.maxOverride[1:]
		return v, nil
	}
	max := ""
	for num := range b.owners {
		if len(num) == len(dayPrefix)+invoice.SeqWidth && num[:len(dayPrefix)] == dayPrefix && num > max {
			max = num
		}
	}
	return max, nil
}

// countingSource counts allocator reads.
type countingSource struct {
	invoice.Source
	calls int
}

func (c *countingSource) MaxInvoiceNumber(ctx context.Context, p string) (string, error) {
	c.calls++
	return c.Source.MaxInvoiceNumber(ctx, p)
}

var paidAt = time.Date(2025, 1, 1, 14, 0, 0, 0, time.UTC)

func noSleep(context.Context, time.Duration) error { return nil }

func testPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, Backoff: time.Millisecond, Sleep: noSleep}
}

func newFlow(b *fakeBackend, src invoice.Source) *PaymentFlow {
	alloc := invoice.NewAllocator(src, invoice.WithLocation(time.UTC))
	return NewPaymentFlow(b, alloc, testPolicy())
}

func TestPaymentFlow_AllocatesFirstNumber(t *testing.T) {
	b := newFakeBackend()
	f := newFlow(b, b)

	got, err := f.Apply(context.Background(), "ORD-1", order.Payment{Method: order.MethodCash, PaidAt: paidAt})
	require.NoError(t, err)
	assert.Equal(t, "FAC-20250101-0001", got)
}

func TestPaymentFlow_WaitsForOrderVisibility(t *testing.T) {
	b := newFakeBackend()
	b.invisible = 2
	f := newFlow(b, b)

	got, err := f.Apply(context.Background(), "ORD-1", order.Payment{PaidAt: paidAt})
	require.NoError(t, err)
	assert.Equal(t, "FAC-20250101-0001", got)
	assert.Equal(t, 3, b.lookups)
	assert.Equal(t, 1, b.writes)
}

func TestPaymentFlow_NotFoundAfterBudget(t *testing.T) {
	b := newFakeBackend()
	b.invisible = 100
	f := newFlow(b, b)

	_, err := f.Apply(context.Background(), "ORD-1", order.Payment{PaidAt: paidAt})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 5, b.lookups)
	assert.Equal(t, 0, b.writes)
}

func TestPaymentFlow_CollisionReallocatesOnce(t *testing.T) {
	b := newFakeBackend()
	b.held["ORD-OTHER"] = "FAC-20250101-0007"
	b.owners["FAC-20250101-0007"] = "ORD-OTHER"
	// Stale read: this terminal still believes 0006 is the max.
	b.maxOverride = []string{"FAC-20250101-0006"}

	src := &countingSource{Source: b}
	f := newFlow(b, src)

	got, err := f.Apply(context.Background(), "ORD-1", order.Payment{PaidAt: paidAt})
	require.NoError(t, err)
	assert.Equal(t, "FAC-20250101-0008", got)
	assert.Equal(t, 2, src.calls, "exactly one re-allocation")
	assert.Equal(t, 2, b.writes)
}

func TestPaymentFlow_ReusesHeldInvoice(t *testing.T) {
	b := newFakeBackend()
	b.held["ORD-1"] = "FAC-20250101-0003"
	b.owners["FAC-20250101-0003"] = "ORD-1"
	src := &countingSource{Source: b}
	f := newFlow(b, src)

	got, err := f.Apply(context.Background(), "ORD-1", order.Payment{PaidAt: paidAt})
	require.NoError(t, err)
	assert.Equal(t, "FAC-20250101-0003", got)
	assert.Equal(t, 0, src.calls, "partial-success retry must not allocate again")
}

func TestPaymentFlow_PresetInvoiceKept(t *testing.T) {
	b := newFakeBackend()
	src := &countingSource{Source: b}
	f := newFlow(b, src)

	got, err := f.Apply(context.Background(), "ORD-1", order.Payment{PaidAt: paidAt, InvoiceNumber: "FAC-20250101-0050"})
	require.NoError(t, err)
	assert.Equal(t, "FAC-20250101-0050", got)
	assert.Equal(t, 0, src.calls)
}

func TestPaymentFlow_NonRetryableStopsImmediately(t *testing.T) {
	b := newFakeBackend()
	b.writeErr = errors.New("constraint violation: paid_at not null")
	f := newFlow(b, b)

	_, err := f.Apply(context.Background(), "ORD-1", order.Payment{PaidAt: paidAt})
	require.Error(t, err)
	assert.Equal(t, 1, b.writes)
}

func TestPaymentFlow_ContextCancelled(t *testing.T) {
	b := newFakeBackend()
	b.invisible = 100
	alloc := invoice.NewAllocator(b, invoice.WithLocation(time.UTC))
	f := NewPaymentFlow(b, alloc, RetryPolicy{Attempts: 5, Backoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Apply(ctx, "ORD-1", order.Payment{PaidAt: paidAt})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_Do(t *testing.T) {
	p := testPolicy()

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return ErrUnavailable
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	boom := errors.New("boom")
	err = p.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "non-retryable errors are not retried")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrNotFound))
	assert.True(t, IsRetryable(ErrUnavailable))
	assert.False(t, IsRetryable(ErrInvoiceConflict))
	assert.False(t, IsRetryable(ErrDuplicateOrder))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsConflict(ErrInvoiceConflict))
}
