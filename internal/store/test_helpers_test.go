package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/order"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestOperation creates a status operation with minimal required fields.
func createTestOperation(id, orderID string, seq int64) ops.Operation {
	return ops.Operation{
		ID:        id,
		Seq:       seq,
		CreatedAt: time.Date(2025, 1, 1, 12, 0, 0, int(seq), time.UTC),
		OrderID:   orderID,
		Payload:   ops.Status{Status: order.StatusPreparing},
	}
}
