package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/ops"
)

// sliceLog is a minimal LogStore.
type sliceLog struct {
	ops []ops.Operation
}

func (l *sliceLog) Put(_ context.Context, op ops.Operation) error {
	l.ops = append(l.ops, op)
	return nil
}

func (l *sliceLog) GetAll(context.Context) ([]ops.Operation, error) {
	return append([]ops.Operation{}, l.ops...), nil
}

func (l *sliceLog) Delete(_ context.Context, id string) error {
	for i, op := range l.ops {
		if op.ID == id {
			l.ops = append(l.ops[:i], l.ops[i+1:]...)
			return nil
		}
	}
	return nil
}

func (l *sliceLog) Clear(context.Context) error {
	l.ops = nil
	return nil
}

func TestFaultyStore(t *testing.T) {
	ctx := context.Background()
	s := NewFaultyStore(&sliceLog{})
	op := ops.Operation{ID: "op-1", Seq: 1, OrderID: "ORD-1", Payload: ops.Cancel{}}

	s.FailPuts(1)
	assert.ErrorIs(t, s.Put(ctx, op), ErrInjected)
	require.NoError(t, s.Put(ctx, op))
	assert.Equal(t, 1, s.Puts())

	s.FailGetAll(1)
	_, err := s.GetAll(ctx)
	assert.ErrorIs(t, err, ErrInjected)
	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	s.FailDeletes(1)
	assert.ErrorIs(t, s.Delete(ctx, "op-1"), ErrInjected)
	require.NoError(t, s.Delete(ctx, "op-1"))
	assert.Equal(t, 1, s.Deletes())

	require.NoError(t, s.Clear(ctx))
}
