package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/order"
)

func TestGetAll_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Insert out of order, with created_at deliberately inverted.
	later := createTestOperation("op-b", "ORD-1", 2)
	later.CreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(ctx, later))
	require.NoError(t, s.Put(ctx, createTestOperation("op-c", "ORD-2", 3)))
	require.NoError(t, s.Put(ctx, createTestOperation("op-a", "ORD-1", 1)))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"op-a", "op-b", "op-c"}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func TestGetAll_AllKinds(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	items := []order.LineItem{{ProductID: "chicken", Name: "Grilled Chicken", UnitPrice: 2500, Quantity: 2}}
	payloads := []ops.Payload{
		ops.Create{Order: order.Snapshot{ID: "ORD-1", Type: order.TypeTakeaway, Status: order.StatusPending, Subtotal: 5000, Total: 5000, Items: items}},
		ops.Status{Status: order.StatusServed},
		ops.Payment{Payment: order.Payment{Method: order.MethodCard, AmountReceived: 5000}},
		ops.Items{Items: items},
		ops.Cancel{},
	}
	for i, p := range payloads {
		op := createTestOperation(string(rune('a'+i)), "ORD-1", int64(i+1))
		op.Payload = p
		require.NoError(t, s.Put(ctx, op))
	}

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(payloads))
	for i, op := range all {
		assert.Equal(t, payloads[i].Kind(), op.Kind())
	}

	created := all[0].Payload.(ops.Create)
	assert.Equal(t, order.Money(5000), created.Order.Total)
	assert.Equal(t, "Grilled Chicken", created.Order.Items[0].Name)
}

func TestGetAll_UnknownKindIsContractError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO operations (id, seq, kind, order_id, payload, created_at)
		VALUES ('bad', 1, 'refund', 'ORD-1', '{}', 0)`)
	require.NoError(t, err)

	_, err = s.GetAll(ctx)
	require.Error(t, err)
	assert.True(t, ops.IsContractError(err))
}

func TestForOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, createTestOperation("a", "ORD-1", 1)))
	require.NoError(t, s.Put(ctx, createTestOperation("b", "ORD-2", 2)))
	require.NoError(t, s.Put(ctx, createTestOperation("c", "ORD-1", 3)))

	got, err := s.ForOrder(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestMaxSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, s.Put(ctx, createTestOperation("a", "ORD-1", 4)))
	require.NoError(t, s.Put(ctx, createTestOperation("b", "ORD-1", 9)))

	seq, err = s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), seq)
}

func TestReopen_PreservesLog(t *testing.T) {
	path := t.TempDir() + "/log.db"
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Put(ctx, createTestOperation("a", "ORD-1", 1)))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	all, err := s2.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a", all[0].ID)
}
