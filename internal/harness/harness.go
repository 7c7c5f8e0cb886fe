package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/possync/internal/engine"
	"github.com/roach88/possync/internal/gateway"
	"github.com/roach88/possync/internal/gateway/memory"
	"github.com/roach88/possync/internal/invoice"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/order"
	"github.com/roach88/possync/internal/store"
	"github.com/roach88/possync/internal/testutil"
)

const (
	defaultTerminal = "main"
	defaultPaidAt   = "2025-01-01T14:00:00Z"
)

// faultErrors maps the error names a fail step may inject.
var faultErrors = map[string]error{
	"unavailable": gateway.ErrUnavailable,
	"not_found":   gateway.ErrNotFound,
	"duplicate":   gateway.ErrDuplicateOrder,
	"conflict":    gateway.ErrInvoiceConflict,
}

// terminal is one POS terminal: a durable log, an engine and a gateway.
type terminal struct {
	spec  TerminalSpec
	path  string
	ids   *engine.SequentialGenerator
	gw    *memory.Gateway
	store *store.Store
	eng   *engine.Engine
}

// Harness runs one scenario.
type Harness struct {
	scenario  *Scenario
	dir       string
	clock     *testutil.DeterministicClock
	remote    *memory.Remote
	terminals []*terminal
	byName    map[string]*terminal
	totals    map[string]order.Money
	seenCalls int
}

// Run executes s in a fresh temporary directory with a deterministic clock
// and returns the result. The returned error is reserved for setup
// failures; step failures are reported in Result.Errors.
//
// Enqueue steps never drain on their own, even when the terminal is
// online: use a drain or online step.
func Run(s *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "possync-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	h := &Harness{
		scenario: s,
		dir:      dir,
		clock:    testutil.NewDeterministicClock(),
		remote:   memory.NewRemote(),
		byName:   map[string]*terminal{},
		totals:   map[string]order.Money{},
	}
	h.remote.SetClock(h.clock.Now)
	defer h.close()

	ctx := context.Background()
	if err := h.setup(ctx); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, st := range s.Steps {
		h.runStep(ctx, i, st, result)
	}
	h.summarize(result)

	if s.Expect != nil {
		for _, msg := range EvaluateExpectations(h.finalState(), *s.Expect) {
			result.AddError(msg)
		}
	}
	return result, nil
}

func (h *Harness) setup(ctx context.Context) error {
	for _, so := range h.scenario.Seed {
		status := order.StatusServed
		if so.Status != "" {
			status = order.KitchenStatus(so.Status)
		}
		h.remote.Seed(memory.Order{ID: so.ID, Status: status, InvoiceNumber: so.InvoiceNumber})
	}

	specs := h.scenario.Terminals
	if len(specs) == 0 {
		specs = []TerminalSpec{{Name: defaultTerminal}}
	}
	for _, spec := range specs {
		gwOpts := []memory.Option{
			memory.WithAllocatorOptions(invoice.WithLocation(time.UTC)),
			memory.WithRetryPolicy(gateway.RetryPolicy{
				Attempts: gateway.DefaultAttempts,
				Sleep:    func(context.Context, time.Duration) error { return nil },
			}),
		}
		if spec.StaleReads > 0 {
			gwOpts = append(gwOpts, memory.WithStaleInvoiceReads(spec.StaleInvoice, spec.StaleReads))
		}
		t := &terminal{
			spec: spec,
			path: filepath.Join(h.dir, spec.Name+".db"),
			ids:  engine.NewSequentialGenerator(spec.Name),
			gw:   h.remote.Gateway(gwOpts...),
		}
		if err := h.open(ctx, t, spec.Online); err != nil {
			return fmt.Errorf("terminal %s: %w", spec.Name, err)
		}
		h.terminals = append(h.terminals, t)
		h.byName[spec.Name] = t
	}
	return nil
}

// open (re)creates the terminal's store and engine from its log file.
func (h *Harness) open(ctx context.Context, t *terminal, online bool) error {
	st, err := store.Open(t.path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	eng, err := engine.New(ctx, st, t.gw,
		engine.WithIDGenerator(t.ids),
		engine.WithNow(h.clock.Now),
		engine.WithOnline(online),
	)
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to start engine: %w", err)
	}
	t.store, t.eng = st, eng
	return nil
}

func (h *Harness) close() {
	for _, t := range h.terminals {
		if t.store != nil {
			t.store.Close()
		}
	}
}

func (h *Harness) terminal(name string) *terminal {
	if name == "" {
		return h.terminals[0]
	}
	return h.byName[name]
}

func (h *Harness) runStep(ctx context.Context, i int, st Step, result *Result) {
	line, err := h.execute(ctx, st)
	if err != nil {
		line += " -> error: " + errorClass(err)
	}
	result.AddTrace(line)

	calls := h.remote.Calls()
	fresh := calls[h.seenCalls:]
	h.seenCalls = len(calls)
	if st.Action == ActionOnlineAll {
		// Terminals interleave freely; keep each order's calls in sequence.
		sort.SliceStable(fresh, func(a, b int) bool { return fresh[a].OrderID < fresh[b].OrderID })
	}
	for _, c := range fresh {
		result.AddTrace("    " + formatCall(c))
	}

	if st.Action != ActionFail && st.Action != ActionDown && st.Action != ActionUp && st.Action != ActionHide {
		result.AddTrace("    pending " + h.pendingLine())
	}

	switch {
	case st.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("step %d (%s): expected error containing %q, got none", i, st.Action, st.ExpectError))
	case st.ExpectError != "" && !strings.Contains(err.Error(), st.ExpectError):
		result.AddError(fmt.Sprintf("step %d (%s): expected error containing %q, got %q", i, st.Action, st.ExpectError, err))
	case st.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("step %d (%s): %v", i, st.Action, err))
	}
}

func (h *Harness) execute(ctx context.Context, st Step) (string, error) {
	t := h.terminal(st.Terminal)
	prefix := "[" + t.spec.Name + "] "

	switch st.Action {
	case ActionOffline:
		return prefix + "offline", t.eng.SetOnline(ctx, false)
	case ActionOnline:
		return prefix + "online", t.eng.SetOnline(ctx, true)
	case ActionOnlineAll:
		return "[*] online", h.onlineAll(ctx)
	case ActionDrain:
		return prefix + "drain", t.eng.Drain(ctx)
	case ActionRestart:
		t.store.Close()
		return prefix + "restart", h.open(ctx, t, false)

	case ActionCreate:
		snap := h.snapshot(st)
		line := fmt.Sprintf("%screate %s %s total=%d", prefix, st.Order, snap.Type, snap.Total)
		op, err := t.eng.EnqueueCreate(ctx, snap)
		if err == nil {
			h.totals[st.Order] = snap.Total
		}
		return withOp(line, op), err
	case ActionStatus:
		op, err := t.eng.EnqueueStatus(ctx, st.Order, order.KitchenStatus(st.Status))
		status := st.Status
		if p, ok := op.Payload.(ops.Status); ok {
			status = string(p.Status)
		}
		return withOp(fmt.Sprintf("%sstatus %s %s", prefix, st.Order, status), op), err
	case ActionPayment:
		p, err := h.payment(st)
		line := fmt.Sprintf("%spayment %s %s received=%d", prefix, st.Order, p.Method, p.AmountReceived)
		if err != nil {
			return line, err
		}
		op, err := t.eng.EnqueuePayment(ctx, st.Order, p)
		return withOp(line, op), err
	case ActionCancel:
		op, err := t.eng.EnqueueCancel(ctx, st.Order)
		return withOp(fmt.Sprintf("%scancel %s", prefix, st.Order), op), err
	case ActionItems:
		items := buildItems(st.Items)
		sub, _ := order.Totals(items, 0)
		op, err := t.eng.EnqueueItems(ctx, st.Order, items)
		return withOp(fmt.Sprintf("%sitems %s subtotal=%d", prefix, st.Order, sub), op), err

	case ActionFail:
		count := st.Count
		if count < 1 {
			count = 1
		}
		errs := make([]error, count)
		for i := range errs {
			errs[i] = fmt.Errorf("%s: %w", st.Call, faultErrors[st.Error])
		}
		h.remote.FailNext(st.Call, errs...)
		return fmt.Sprintf("[remote] fail %s %s x%d", st.Call, st.Error, count), nil
	case ActionDown:
		h.remote.SetUnavailable(true)
		return "[remote] down", nil
	case ActionUp:
		h.remote.SetUnavailable(false)
		return "[remote] up", nil
	case ActionHide:
		count := st.Count
		if count < 1 {
			count = 1
		}
		h.remote.HideOrder(st.Order, count)
		return fmt.Sprintf("[remote] hide %s x%d", st.Order, count), nil
	}
	return prefix + st.Action, fmt.Errorf("unknown action %q", st.Action)
}

func withOp(line string, op ops.Operation) string {
	if op.ID == "" {
		return line
	}
	return line + " -> " + op.ID
}

// onlineAll brings every terminal online at the same time.
func (h *Harness) onlineAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, len(h.terminals))
	for i, t := range h.terminals {
		wg.Add(1)
		go func(i int, t *terminal) {
			defer wg.Done()
			errs[i] = t.eng.SetOnline(ctx, true)
		}(i, t)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (h *Harness) snapshot(st Step) order.Snapshot {
	typ := order.TypeDineIn
	if st.Type != "" {
		typ = order.Type(st.Type)
	}
	items := buildItems(st.Items)
	discount := order.Money(st.Discount)
	sub, total := order.Totals(items, discount)
	return order.Snapshot{
		ID:          st.Order,
		Type:        typ,
		TableRef:    st.Table,
		PartySize:   st.Party,
		Subtotal:    sub,
		Discount:    discount,
		Total:       total,
		Status:      order.StatusPending,
		ValidatedAt: h.clock.Now(),
		Items:       items,
	}
}

func (h *Harness) payment(st Step) (order.Payment, error) {
	raw := st.PaidAt
	if raw == "" {
		raw = defaultPaidAt
	}
	paidAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return order.Payment{}, fmt.Errorf("paid_at: %w", err)
	}
	method := order.MethodCash
	if st.Method != "" {
		method = order.PaymentMethod(st.Method)
	}
	total := h.totals[st.Order]
	received := order.Money(st.Received)
	if received == 0 {
		received = total
	}
	return order.NewPayment(method, total, received, paidAt), nil
}

func buildItems(specs []ItemSpec) []order.LineItem {
	items := make([]order.LineItem, 0, len(specs))
	for _, is := range specs {
		name := is.Name
		if name == "" {
			name = is.Product
		}
		li := order.LineItem{
			ProductID: is.Product,
			Name:      name,
			UnitPrice: order.Money(is.Price),
			Quantity:  is.Qty,
			Note:      is.Note,
		}
		for _, as := range is.Addons {
			aname := as.Name
			if aname == "" {
				aname = as.ID
			}
			if as.Included {
				li.Addons = append(li.Addons, order.NewIncludedAddon(as.ID, aname, as.Qty))
				continue
			}
			li.Addons = append(li.Addons, order.Addon{
				AddonID:   as.ID,
				Kind:      order.AddonExtra,
				Name:      aname,
				UnitPrice: order.Money(as.Price),
				Quantity:  as.Qty,
			})
		}
		items = append(items, li)
	}
	return items
}

func (h *Harness) finalState() FinalState {
	fs := FinalState{Orders: h.remote.Orders(), Pending: map[string]int{}}
	for _, t := range h.terminals {
		fs.Pending[t.spec.Name] = t.eng.PendingCount()
	}
	for _, c := range h.remote.Calls() {
		if c.Err == nil && c.Method != memory.MethodFetchOrdersByIDs {
			fs.Writes = append(fs.Writes, c.Method+" "+c.OrderID)
		}
	}
	return fs
}

func (h *Harness) pendingLine() string {
	parts := make([]string, len(h.terminals))
	for i, t := range h.terminals {
		parts[i] = fmt.Sprintf("%s=%d", t.spec.Name, t.eng.PendingCount())
	}
	return strings.Join(parts, " ")
}

// summarize appends the final remote state to the trace.
func (h *Harness) summarize(result *Result) {
	result.AddTrace("--- remote")
	var invoices []string
	for _, o := range h.remote.Orders() {
		line := fmt.Sprintf("%s %s total=%d items=%d", o.ID, o.Status, o.Total, len(o.Items))
		if o.Cancelled {
			line += " cancelled"
		}
		if o.PaidAt != nil {
			line += " paid"
		}
		result.AddTrace(line)
		if o.InvoiceNumber != "" {
			invoices = append(invoices, o.InvoiceNumber)
		}
	}
	sort.Strings(invoices)
	result.AddTrace("--- invoices")
	for _, n := range invoices {
		result.AddTrace(n)
	}
}

// errorClass renders err by category so traces stay stable when messages
// change.
func errorClass(err error) string {
	switch {
	case engine.IsInvalidOperation(err):
		return "invalid"
	case engine.IsFatal(err):
		return "fatal"
	case errors.Is(err, gateway.ErrDuplicateOrder):
		return "duplicate"
	case errors.Is(err, gateway.ErrInvoiceConflict):
		return "conflict"
	case errors.Is(err, gateway.ErrNotFound):
		return "not_found"
	case errors.Is(err, gateway.ErrUnavailable):
		return "unavailable"
	}
	return "error"
}

func formatCall(c memory.Call) string {
	s := c.Method
	if c.OrderID != "" {
		s += " " + c.OrderID
	}
	if c.Err != nil {
		s += " -> " + errorClass(c.Err)
	}
	return s
}
