package store

import (
	"context"
	"fmt"

	"github.com/roach88/possync/internal/ops"
)

// Put inserts an operation or updates the retry bookkeeping of an existing
// one. The payload, kind, order and seq of an existing row are never
// rewritten: an operation's content is fixed once captured.
func (s *Store) Put(ctx context.Context, op ops.Operation) error {
	r, err := toRow(op)
	if err != nil {
		return fmt.Errorf("put operation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operations
		(id, seq, kind, order_id, payload, created_at, attempts, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			attempts = excluded.attempts,
			last_error = excluded.last_error
	`,
		r.id,
		r.seq,
		r.kind,
		r.orderID,
		r.payload,
		r.createdAt,
		r.attempts,
		r.lastError,
	)
	if err != nil {
		return fmt.Errorf("put operation %s: %w", op.ID, err)
	}
	return nil
}

// Delete removes an operation by id.
// Deleting an id that is not present is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete operation %s: %w", id, err)
	}
	return nil
}

// Clear removes every operation from the log.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM operations`); err != nil {
		return fmt.Errorf("clear operations: %w", err)
	}
	return nil
}
