package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/possync/internal/ops"
)

// ErrNotFound is returned by Get when no operation has the given id.
var ErrNotFound = errors.New("operation not found")

// GetAll returns every pending operation in enqueue order.
// Ordering: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the log is empty. A row whose kind is
// unknown fails the whole read with a ContractError.
func (s *Store) GetAll(ctx context.Context) ([]ops.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM operations
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	out := []ops.Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return out, nil
}

// ForOrder returns the pending operations targeting one order, in enqueue order.
func (s *Store) ForOrder(ctx context.Context, orderID string) ([]ops.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM operations
		WHERE order_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query operations for order %s: %w", orderID, err)
	}
	defer rows.Close()

	out := []ops.Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return out, nil
}

// Get returns one operation by id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (ops.Operation, error) {
	r := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM operations WHERE id = ?`, id)
	op, err := scanOperation(r)
	if errors.Is(err, sql.ErrNoRows) {
		return ops.Operation{}, fmt.Errorf("get operation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ops.Operation{}, fmt.Errorf("get operation %s: %w", id, err)
	}
	return op, nil
}

// Count returns the number of pending operations.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count operations: %w", err)
	}
	return n, nil
}

// MaxSeq returns the highest seq in the log, or 0 when it is empty.
// The engine resumes its logical clock from this value after a restart.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM operations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}
