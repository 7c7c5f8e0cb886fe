// Package engine implements the sync queue: the component that lets a
// terminal keep taking orders while the remote store is unreachable.
//
// Every domain action becomes an ops.Operation. Enqueue stamps it with a
// logical seq, writes it to the durable LogStore and appends it to an
// in-memory mirror. Drain applies the queue head against the
// gateway.Gateway:
//
//   - success: the operation is deleted from the log, then from memory
//   - failure: the head stays, its attempt is recorded, the pass stops
//
// The queue is strictly FIFO across all orders, so a later operation on an
// order is never attempted before an earlier failed one. There is no retry
// ceiling. The next enqueue, reconnect or retry tick tries the head again;
// the gateway's idempotent calls make repeats safe.
//
// Only one drain pass runs at a time (an atomic processing flag).
// Overlapping triggers collapse into the running pass. Going online reloads
// the durable log, prefetches the referenced remote orders for diagnostics
// and drains. Going offline only flips the flag.
//
// Callers observe aggregate state only, through Subscribe: the pending
// count and the online flag. Gateway errors are never returned to callers
// of Enqueue. An operation the engine cannot dispatch is a defect and
// stops Run.
package engine
