package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/possync/internal/ops"
)

// row is the flat column form of an operation.
type row struct {
	id        string
	seq       int64
	kind      string
	orderID   string
	payload   string
	createdAt int64
	attempts  int
	lastError string
}

func toRow(op ops.Operation) (row, error) {
	kind, payload, err := ops.EncodePayload(op.Payload)
	if err != nil {
		return row{}, fmt.Errorf("marshal operation %s: %w", op.ID, err)
	}
	return row{
		id:        op.ID,
		seq:       op.Seq,
		kind:      string(kind),
		orderID:   op.OrderID,
		payload:   string(payload),
		createdAt: op.CreatedAt.UnixNano(),
		attempts:  op.Attempts,
		lastError: op.LastError,
	}, nil
}

func (r row) operation() (ops.Operation, error) {
	p, err := ops.DecodePayload(ops.Kind(r.kind), []byte(r.payload))
	if err != nil {
		return ops.Operation{}, fmt.Errorf("unmarshal operation %s: %w", r.id, err)
	}
	return ops.Operation{
		ID:        r.id,
		Seq:       r.seq,
		CreatedAt: time.Unix(0, r.createdAt).UTC(),
		OrderID:   r.orderID,
		Payload:   p,
		Attempts:  r.attempts,
		LastError: r.lastError,
	}, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectColumns = `id, seq, kind, order_id, payload, created_at, attempts, last_error`

func scanOperation(sc scanner) (ops.Operation, error) {
	var r row
	err := sc.Scan(&r.id, &r.seq, &r.kind, &r.orderID, &r.payload, &r.createdAt, &r.attempts, &r.lastError)
	if err == sql.ErrNoRows {
		return ops.Operation{}, err
	}
	if err != nil {
		return ops.Operation{}, fmt.Errorf("scan operation: %w", err)
	}
	return r.operation()
}
