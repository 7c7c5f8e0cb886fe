package engine

import (
	"sort"
	"sync"

	"github.com/roach88/possync/internal/ops"
)

// opQueue is the in-memory mirror of the operation log, ordered by seq.
//
// It is the session-authoritative copy: an operation whose durable write
// failed still lives here. The signal channel has a buffer of one, so any
// number of triggers between two drains coalesce into a single wake-up.
type opQueue struct {
	mu     sync.Mutex
	ops    []ops.Operation
	signal chan struct{}
}

func newOpQueue() *opQueue {
	return &opQueue{
		ops:    make([]ops.Operation, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Append adds op at the tail and returns the new length.
func (q *opQueue) Append(op ops.Operation) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = append(q.ops, op)
	return len(q.ops)
}

// Head returns the operation at the front.
func (q *opQueue) Head() (ops.Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ops) == 0 {
		return ops.Operation{}, false
	}
	return q.ops[0], true
}

// RemoveHead removes the front operation if its id is id.
// Returns false if the head changed underneath the caller.
func (q *opQueue) RemoveHead(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ops) == 0 || q.ops[0].ID != id {
		return false
	}
	q.ops[0] = ops.Operation{}
	if len(q.ops) == 1 {
		q.ops = q.ops[:0]
	} else {
		q.ops = q.ops[1:]
	}
	return true
}

// Update replaces the entry with op.ID. Returns false if it is gone.
func (q *opQueue) Update(op ops.Operation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.ops {
		if q.ops[i].ID == op.ID {
			q.ops[i] = op
			return true
		}
	}
	return false
}

// Replace swaps the whole contents, sorted by seq then id.
func (q *opQueue) Replace(list []ops.Operation) {
	sorted := append(make([]ops.Operation, 0, len(list)), list...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Seq != sorted[j].Seq {
			return sorted[i].Seq < sorted[j].Seq
		}
		return sorted[i].ID < sorted[j].ID
	})

	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = sorted
}

// Snapshot returns a copy of the queue.
func (q *opQueue) Snapshot() []ops.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append(make([]ops.Operation, 0, len(q.ops)), q.ops...)
}

// Len returns the number of queued operations.
func (q *opQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Signal requests a drain. Non-blocking.
func (q *opQueue) Signal() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Wait returns the channel that fires after Signal.
func (q *opQueue) Wait() <-chan struct{} {
	return q.signal
}
