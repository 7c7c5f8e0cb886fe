package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/possync/internal/gateway"
	"github.com/roach88/possync/internal/ops"
)

// LogStore is the durable operation log. GetAll must return operations in
// enqueue order. *store.Store implements it.
type LogStore interface {
	Put(ctx context.Context, op ops.Operation) error
	GetAll(ctx context.Context) ([]ops.Operation, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Listener receives the pending count and online flag after every change.
// It runs on the goroutine that made the change and must not block.
type Listener func(pending int, online bool)

// Engine owns the operation queue and drives it against the remote store.
//
// Thread-safety model:
//   - Enqueue*, Subscribe, SetOnline, Drain, Pending: safe from any goroutine
//   - Run: at most one goroutine
//   - at most one drain pass runs at a time; overlapping Drain calls return
//     immediately and the running pass picks up their work
type Engine struct {
	store LogStore
	gw    gateway.Gateway
	clock *Clock
	ids   IDGenerator
	now   func() time.Time

	queue *opQueue

	// enqueueMu orders seq assignment, the durable write and the memory
	// append, and excludes log reloads from running in between.
	enqueueMu sync.Mutex

	online      atomic.Bool
	processing  atomic.Bool
	needsReload atomic.Bool

	mu         sync.Mutex
	listeners  []listenerEntry
	nextID     int
	unsaved    map[string]bool // ops whose durable write failed
	tombstones map[string]bool // drained ops whose durable delete failed

	retryInterval time.Duration
	metrics       *Metrics
}

type listenerEntry struct {
	id int
	fn Listener
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator sets the operation id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithNow sets the wall clock used for CreatedAt.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithOnline sets the initial connectivity state. Default: offline.
func WithOnline(online bool) Option {
	return func(e *Engine) { e.online.Store(online) }
}

// WithRetryInterval makes Run retry the queue head every d even without a
// new enqueue or reconnect. Zero disables it.
func WithRetryInterval(d time.Duration) Option {
	return func(e *Engine) { e.retryInterval = d }
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine and loads the persisted operation log into memory.
// The logical clock resumes above the highest persisted seq.
func New(ctx context.Context, store LogStore, gw gateway.Gateway, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:      store,
		gw:         gw,
		ids:        UUIDv7Generator{},
		now:        time.Now,
		queue:      newOpQueue(),
		unsaved:    make(map[string]bool),
		tombstones: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}

	persisted, err := store.GetAll(ctx)
	if err != nil {
		if ops.IsContractError(err) {
			return nil, &RuntimeError{Code: ErrCodeContract, Message: "operation log holds an unknown operation", Err: err}
		}
		return nil, &RuntimeError{Code: ErrCodeLoad, Message: "load operation log", Err: err}
	}
	e.queue.Replace(persisted)
	e.clock = NewClockAt(maxSeq(persisted))
	e.metrics.observeState(len(persisted), e.online.Load())

	slog.Info("operation log loaded",
		"pending", len(persisted),
		"seq", e.clock.Current(),
	)
	return e, nil
}

// Enqueue records p for orderID and returns the queued operation.
//
// The operation is stamped, written to the durable log and appended to the
// memory queue. A failed durable write is logged and counted, never
// returned: the memory queue stays authoritative for the session. Enqueue
// never waits on the network; when online it only signals Run to drain.
//
// The only errors are rejections of malformed input.
func (e *Engine) Enqueue(ctx context.Context, orderID string, p ops.Payload) (ops.Operation, error) {
	if orderID == "" {
		return ops.Operation{}, newInvalidOperation(orderID, errors.New("order id is required"))
	}
	if p == nil {
		return ops.Operation{}, newInvalidOperation(orderID, errors.New("payload is required"))
	}

	e.enqueueMu.Lock()
	op := ops.Operation{
		ID:        e.ids.Generate(),
		Seq:       e.clock.Next(),
		CreatedAt: e.now().UTC(),
		OrderID:   orderID,
		Payload:   p,
	}
	if err := e.store.Put(ctx, op); err != nil {
		e.recordUnsaved(op.ID)
		e.metrics.observePersistFailure()
		slog.Error("operation not persisted, held in memory only",
			"op_id", op.ID,
			"order_id", op.OrderID,
			"kind", op.Kind(),
			"seq", op.Seq,
			"error", err,
		)
	}
	pending := e.queue.Append(op)
	e.enqueueMu.Unlock()

	slog.Debug("operation enqueued",
		"op_id", op.ID,
		"order_id", op.OrderID,
		"kind", op.Kind(),
		"seq", op.Seq,
		"pending", pending,
	)

	e.notify()
	if e.online.Load() {
		e.queue.Signal()
	}
	return op, nil
}

// Subscribe registers fn and immediately calls it with the current state.
// The returned function unsubscribes; calling it more than once is safe.
func (e *Engine) Subscribe(fn Listener) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listenerEntry{id: id, fn: fn})
	e.mu.Unlock()

	fn(e.queue.Len(), e.online.Load())

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, l := range e.listeners {
				if l.id == id {
					e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// SetOnline records a connectivity transition.
//
// Going online schedules a reload of the durable log and a best-effort
// prefetch of the referenced remote orders, then drains. Going offline
// only flips the flag; the queue is untouched. Repeating the current state
// is a no-op.
func (e *Engine) SetOnline(ctx context.Context, online bool) error {
	if e.online.Swap(online) == online {
		return nil
	}
	slog.Info("connectivity changed", "online", online, "pending", e.queue.Len())
	e.notify()

	if !online {
		return nil
	}
	e.needsReload.Store(true)
	return e.Drain(ctx)
}

// Online reports the connectivity flag.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// Pending returns a copy of the queued operations in drain order.
func (e *Engine) Pending() []ops.Operation {
	return e.queue.Snapshot()
}

// PendingCount returns the number of queued operations.
func (e *Engine) PendingCount() int {
	return e.queue.Len()
}

// Unsaved returns the number of queued operations missing from the durable
// log. They would be lost if the process stopped now.
func (e *Engine) Unsaved() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.unsaved)
}

// Drain applies queued operations head first until the queue is empty, an
// operation fails, or the engine goes offline.
//
// A failed head stays in place with its attempt recorded; nothing behind it
// runs until a later trigger retries it. Only fatal errors (IsFatal) and
// context errors are returned. If another pass is running, Drain returns
// nil at once.
func (e *Engine) Drain(ctx context.Context) error {
	for {
		if !e.processing.CompareAndSwap(false, true) {
			return nil
		}
		halted, err := e.drainPass(ctx)
		e.processing.Store(false)
		if err != nil {
			return err
		}
		if !e.online.Load() {
			return nil
		}
		// A reconnect during a halted pass still reloads and retries once.
		if halted && !e.needsReload.Load() {
			return nil
		}
		// Work that arrived while the pass was finishing.
		if e.queue.Len() == 0 && !e.needsReload.Load() {
			return nil
		}
	}
}

// drainPass runs while holding the processing flag. halted is true when
// the pass stopped on a failed operation.
func (e *Engine) drainPass(ctx context.Context) (halted bool, err error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !e.online.Load() {
			return false, nil
		}
		if e.needsReload.Swap(false) {
			e.reload(ctx)
			e.prefetch(ctx)
		}

		head, ok := e.queue.Head()
		if !ok {
			return false, nil
		}

		invoiceNumber, err := e.apply(ctx, head)
		switch {
		case err == nil:
			e.complete(ctx, head, invoiceNumber)
		case IsFatal(err):
			e.metrics.observeAttempt(head.Kind(), resultFatal)
			slog.Error("fatal operation, stopping drain",
				"op_id", head.ID,
				"order_id", head.OrderID,
				"kind", head.Kind(),
				"error", err,
			)
			return true, err
		case ctx.Err() != nil:
			return true, ctx.Err()
		default:
			e.fail(ctx, head, err)
			return true, nil
		}
	}
}

// complete removes a successfully applied operation, durable copy first so
// a concurrent reload cannot resurrect it.
func (e *Engine) complete(ctx context.Context, op ops.Operation, invoiceNumber string) {
	e.metrics.observeAttempt(op.Kind(), resultSuccess)

	if err := e.store.Delete(ctx, op.ID); err != nil {
		e.mu.Lock()
		e.tombstones[op.ID] = true
		e.mu.Unlock()
		e.metrics.observePersistFailure()
		slog.Error("drained operation not removed from log",
			"op_id", op.ID,
			"order_id", op.OrderID,
			"error", err,
		)
	}
	e.queue.RemoveHead(op.ID)
	e.forgetUnsaved(op.ID)

	attrs := []any{
		"op_id", op.ID,
		"order_id", op.OrderID,
		"kind", op.Kind(),
		"seq", op.Seq,
		"attempts", op.Attempts + 1,
	}
	if invoiceNumber != "" {
		attrs = append(attrs, "invoice_number", invoiceNumber)
	}
	slog.Info("operation applied", attrs...)
	e.notify()
}

// fail records the attempt on the head and persists the bookkeeping.
func (e *Engine) fail(ctx context.Context, op ops.Operation, cause error) {
	e.metrics.observeAttempt(op.Kind(), resultFailure)

	op.Attempts++
	op.LastError = cause.Error()
	e.queue.Update(op)

	level := slog.LevelWarn
	if errors.Is(cause, gateway.ErrDuplicateOrder) {
		// Will fail the same way on every retry; needs an operator.
		level = slog.LevelError
	}
	slog.Log(ctx, level, "operation failed, queue halted",
		"op_id", op.ID,
		"order_id", op.OrderID,
		"kind", op.Kind(),
		"seq", op.Seq,
		"attempts", op.Attempts,
		"error", cause,
	)

	if err := e.store.Put(ctx, op); err != nil {
		e.metrics.observePersistFailure()
		slog.Error("failed to persist attempt",
			"op_id", op.ID,
			"error", err,
		)
	}
	e.notify()
}

// reload replaces the memory queue with the durable log, keeping
// memory-only operations and dropping drained ones whose delete failed.
func (e *Engine) reload(ctx context.Context) {
	e.enqueueMu.Lock()
	defer e.enqueueMu.Unlock()

	e.retryLogRepairs(ctx)

	persisted, err := e.store.GetAll(ctx)
	if err != nil {
		slog.Error("reload failed, keeping memory queue",
			"pending", e.queue.Len(),
			"error", err,
		)
		return
	}

	e.mu.Lock()
	merged := make([]ops.Operation, 0, len(persisted))
	seen := make(map[string]bool, len(persisted))
	for _, op := range persisted {
		seen[op.ID] = true
		if !e.tombstones[op.ID] {
			merged = append(merged, op)
		}
	}
	for _, op := range e.queue.Snapshot() {
		if e.unsaved[op.ID] && !seen[op.ID] {
			merged = append(merged, op)
		}
	}
	e.mu.Unlock()

	e.queue.Replace(merged)
	e.clock.Advance(maxSeq(merged))

	slog.Info("operation log reloaded",
		"persisted", len(persisted),
		"pending", len(merged),
	)
}

// retryLogRepairs re-attempts the durable writes and deletes that failed
// earlier. Caller holds enqueueMu.
func (e *Engine) retryLogRepairs(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id := range e.tombstones {
		if err := e.store.Delete(ctx, id); err == nil {
			delete(e.tombstones, id)
		}
	}
	if len(e.unsaved) == 0 {
		return
	}
	for _, op := range e.queue.Snapshot() {
		if !e.unsaved[op.ID] {
			continue
		}
		if err := e.store.Put(ctx, op); err == nil {
			delete(e.unsaved, op.ID)
			slog.Info("operation persisted on retry", "op_id", op.ID)
		}
	}
}

// prefetch reads the current remote state of the queued orders. The result
// is diagnostic only; failures are logged and ignored.
func (e *Engine) prefetch(ctx context.Context) {
	ids := orderIDs(e.queue.Snapshot())
	if len(ids) == 0 {
		return
	}
	remote, err := e.gw.FetchOrdersByIDs(ctx, ids)
	if err != nil {
		slog.Warn("prefetch of remote orders failed",
			"orders", len(ids),
			"error", err,
		)
		return
	}
	for _, ro := range remote {
		slog.Debug("remote order state",
			"order_id", ro.ID,
			"status", ro.Status,
			"cancelled", ro.Cancelled,
			"invoice_number", ro.InvoiceNumber,
		)
	}
	slog.Info("prefetched remote orders",
		"requested", len(ids),
		"found", len(remote),
	)
}

// Run drains the queue whenever Enqueue or a retry tick signals it, until
// ctx is done or a fatal error occurs.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"pending", e.queue.Len(),
		"online", e.online.Load(),
		"retry_interval", e.retryInterval.String(),
	)

	var tick <-chan time.Time
	if e.retryInterval > 0 {
		ticker := time.NewTicker(e.retryInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	if e.online.Load() && e.queue.Len() > 0 {
		e.queue.Signal()
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled", "pending", e.queue.Len())
			return ctx.Err()
		case <-e.queue.Wait():
		case <-tick:
		}

		if err := e.Drain(ctx); err != nil {
			if IsFatal(err) {
				return fmt.Errorf("engine stopped: %w", err)
			}
			if ctx.Err() != nil {
				slog.Info("engine stopping: context cancelled", "pending", e.queue.Len())
				return ctx.Err()
			}
		}
	}
}

func (e *Engine) notify() {
	pending, online := e.queue.Len(), e.online.Load()
	e.metrics.observeState(pending, online)

	e.mu.Lock()
	listeners := make([]Listener, len(e.listeners))
	for i, l := range e.listeners {
		listeners[i] = l.fn
	}
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(pending, online)
	}
}

func (e *Engine) recordUnsaved(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unsaved[id] = true
}

func (e *Engine) forgetUnsaved(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.unsaved, id)
}

func maxSeq(list []ops.Operation) int64 {
	var max int64
	for _, op := range list {
		if op.Seq > max {
			max = op.Seq
		}
	}
	return max
}

// orderIDs returns the distinct order ids in first-seen order.
func orderIDs(list []ops.Operation) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, op := range list {
		if !seen[op.OrderID] {
			seen[op.OrderID] = true
			out = append(out, op.OrderID)
		}
	}
	return out
}
