// Package store provides the SQLite-backed durable operation log used by the
// sync engine.
//
// The log holds one row per pending SyncOperation. Rows are written when a
// domain action is captured and deleted only after the matching remote
// write has fully succeeded. Nothing else in the system writes to it.
//
// # Ordering
//
// GetAll returns operations ORDER BY seq ASC, id ASC COLLATE BINARY. seq is
// the engine's logical enqueue counter; created_at is stored for diagnostics
// but never used for ordering, so a wall-clock step on the terminal cannot
// reorder replay.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Payloads are stored as canonical JSON produced by internal/ops.
package store
