package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smvora4u/restaurant-management/internal/canon"
	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/order"
	"github.com/smvora4u/restaurant-management/internal/status"
)

// Guard recomputes order status from item-change notifications and pushes
// corrections through a Pusher.
//
// Thread-safety model:
//   - HandleNotification, HandleSnapshot, SubmitUserUpdate: safe from any goroutine
//   - Timer callbacks and automatic pushes run on their own goroutines
//   - Close: call once; later calls return ErrClosed
//
// INVARIANTS:
//   - At most one pending task per order; a newer one stops the older timer
//   - At most one push in flight per order, owned from the moment its task
//     leaves pending; a task firing meanwhile re-arms and a user update waits
//   - Only the owner of a flight releases it
//   - A drop is never retried
type Guard struct {
	cfg       Config
	source    Source
	pusher    Pusher
	clock     Clock
	seq       *Sequence
	windows   WindowStore
	logger    *slog.Logger
	observers []Observer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	haltUntil time.Time
	marks     map[string]time.Time // order id -> self-updated until
	pending   map[string]*task
	inFlight  map[string]*flight
	firing    int // tasks removed from pending whose fire has not returned
}

type task struct {
	orderID     string
	stored      status.Status
	calculated  status.Status
	fingerprint string
	seq         int64
	timer       Timer
}

// flight is one push's hold on an order. done closes on release.
type flight struct {
	done chan struct{}
}

func (t *task) decision(at time.Time) Decision {
	return Decision{
		Seq:         t.seq,
		OrderID:     t.orderID,
		Origin:      OriginAutomatic,
		Stored:      t.stored,
		Calculated:  t.calculated,
		Fingerprint: t.fingerprint,
		At:          at,
	}
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock replaces the wall clock. Tests use a manual clock to step
// through debounce timers and windows.
func WithClock(c Clock) Option {
	return func(g *Guard) {
		g.clock = c
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = l
	}
}

// WithWindowStore replaces the in-process rate windows, typically with a
// shared store so several guard processes draw from one budget.
func WithWindowStore(ws WindowStore) Option {
	return func(g *Guard) {
		g.windows = ws
	}
}

// WithObserver registers an observer for every decision.
func WithObserver(o Observer) Option {
	return func(g *Guard) {
		g.observers = append(g.observers, o)
	}
}

// WithSequence resumes decision numbering from an existing sequence.
func WithSequence(s *Sequence) Option {
	return func(g *Guard) {
		g.seq = s
	}
}

// New creates a Guard reading snapshots from source and writing through
// pusher.
func New(source Source, pusher Pusher, cfg Config, opts ...Option) (*Guard, error) {
	if source == nil {
		return nil, errors.New("guard: source is required")
	}
	if pusher == nil {
		return nil, errors.New("guard: pusher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("guard config: %w", err)
	}

	g := &Guard{
		cfg:      cfg,
		source:   source,
		pusher:   pusher,
		clock:    SystemClock{},
		seq:      NewSequence(),
		logger:   slog.Default(),
		marks:    make(map[string]time.Time),
		pending:  make(map[string]*task),
		inFlight: make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.windows == nil {
		g.windows = NewMemoryWindowStore(cfg.Window)
	}
	g.ctx, g.cancel = context.WithCancel(context.Background())
	return g, nil
}

// Config returns the active configuration.
func (g *Guard) Config() Config {
	return g.cfg
}

// HandleNotification processes one item-change notification for orderID.
// items is the order's item collection after the change; the stored order
// status is read from the Source.
//
// The returned decision is final for drops. For OutcomeScheduled the push
// outcome arrives later through observers.
func (g *Guard) HandleNotification(ctx context.Context, orderID string, items []lineitem.Item) Decision {
	d := Decision{Seq: g.seq.Next(), OrderID: orderID, Origin: OriginAutomatic, At: g.clock.Now()}
	if out, ok := g.admit(orderID, d.At); !ok {
		d.Outcome = out
		g.emit(d)
		return d
	}

	snap, err := g.source.Get(ctx, orderID)
	if err != nil {
		d.Err = err
		d.Outcome = OutcomeStoreError
		if errors.Is(err, ErrOrderNotFound) {
			d.Outcome = OutcomeNotFound
		}
		g.emit(d)
		return d
	}
	return g.evaluate(d, snap.Status, items)
}

// HandleSnapshot is HandleNotification for feeds that carry the whole
// order, stored status included, so no Source lookup is needed.
func (g *Guard) HandleSnapshot(o order.Order) Decision {
	d := Decision{Seq: g.seq.Next(), OrderID: o.ID, Origin: OriginAutomatic, At: g.clock.Now()}
	if out, ok := g.admit(o.ID, d.At); !ok {
		d.Outcome = out
		g.emit(d)
		return d
	}
	return g.evaluate(d, o.Status, o.Items)
}

// admit applies the checks that need no snapshot: closed, halted, echo.
// An echo consumes the self-updated mark.
func (g *Guard) admit(orderID string, now time.Time) (Outcome, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return OutcomeClosed, false
	}
	if now.Before(g.haltUntil) {
		return OutcomeHalted, false
	}
	if until, ok := g.marks[orderID]; ok {
		delete(g.marks, orderID)
		if now.Before(until) {
			return OutcomeEcho, false
		}
	}
	return 0, true
}

func (g *Guard) evaluate(d Decision, stored status.Status, items []lineitem.Item) Decision {
	d.Stored = stored
	d.Calculated = order.Aggregate(items)
	d.Fingerprint = canon.MustItemsFingerprint(lineitem.Normalize(items))

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		d.Outcome = OutcomeClosed
		g.emit(d)
		return d
	}
	superseded := g.unscheduleLocked(d.OrderID)
	if d.Calculated == d.Stored {
		d.Outcome = OutcomeUnchanged
	} else {
		t := &task{
			orderID:     d.OrderID,
			stored:      d.Stored,
			calculated:  d.Calculated,
			fingerprint: d.Fingerprint,
			seq:         d.Seq,
		}
		t.timer = g.clock.AfterFunc(g.cfg.Debounce, func() { g.fire(t) })
		g.pending[d.OrderID] = t
		d.Outcome = OutcomeScheduled
	}
	g.mu.Unlock()

	if superseded != nil {
		sd := superseded.decision(d.At)
		sd.Outcome = OutcomeSuperseded
		g.emit(sd)
	}
	g.emit(d)
	return d
}

// unscheduleLocked cancels the pending task for orderID and returns it.
// Caller must hold g.mu.
func (g *Guard) unscheduleLocked(orderID string) *task {
	t := g.pending[orderID]
	if t == nil {
		return nil
	}
	t.timer.Stop()
	delete(g.pending, orderID)
	return t
}

// fire runs when a debounce timer expires.
func (g *Guard) fire(t *task) {
	now := g.clock.Now()

	g.mu.Lock()
	if g.pending[t.orderID] != t {
		// Replaced or cancelled after the timer had already started running.
		g.mu.Unlock()
		return
	}
	if g.inFlight[t.orderID] != nil {
		t.timer = g.clock.AfterFunc(g.cfg.Debounce, func() { g.fire(t) })
		g.mu.Unlock()
		return
	}
	delete(g.pending, t.orderID)
	f := g.claimLocked(t.orderID)
	g.firing++
	halted := now.Before(g.haltUntil)
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.firing--
		g.mu.Unlock()
	}()

	d := t.decision(now)
	drop := func(out Outcome, err error) {
		g.release(t.orderID, f)
		d.Outcome, d.Err = out, err
		g.emit(d)
	}
	if halted {
		drop(OutcomeHalted, nil)
		return
	}

	attempts, _, err := g.windows.Take(g.ctx, BudgetPressure.Key(t.orderID), 0, now)
	if err != nil {
		drop(OutcomeStoreError, fmt.Errorf("record attempt: %w", err))
		return
	}
	if attempts >= g.cfg.EmergencyLimit {
		g.trip(t.orderID, attempts, now)
		drop(OutcomeHalted, nil)
		return
	}

	count, ok, err := g.windows.Take(g.ctx, BudgetAutomatic.Key(t.orderID), g.cfg.AutoLimit, now)
	if err != nil {
		drop(OutcomeStoreError, fmt.Errorf("take automatic budget: %w", err))
		return
	}
	if !ok {
		drop(OutcomeRateLimited, &RateLimitError{OrderID: t.orderID, Budget: BudgetAutomatic, Count: count, Limit: g.cfg.AutoLimit})
		return
	}

	g.mu.Lock()
	if g.closed {
		g.releaseLocked(t.orderID, f)
		g.mu.Unlock()
		d.Outcome = OutcomeClosed
		g.emit(d)
		return
	}
	g.marks[t.orderID] = now.Add(g.cfg.settleDelay(t.calculated))
	g.wg.Add(1)
	g.mu.Unlock()

	go g.pushAutomatic(d, f)
}

func (g *Guard) pushAutomatic(d Decision, f *flight) {
	defer g.wg.Done()

	ctx, cancel := context.WithTimeout(g.ctx, g.cfg.PushTimeout)
	defer cancel()

	err := g.push(ctx, d)
	g.finishPush(d.OrderID, f, err)

	if err != nil {
		d.Outcome, d.Err = OutcomePushFailed, err
	} else {
		d.Outcome = OutcomePushed
	}
	g.emit(d)
}

func (g *Guard) push(ctx context.Context, d Decision) error {
	id, err := canon.PushID(d.OrderID, d.Calculated, d.Seq)
	if err != nil {
		return err
	}
	return g.pusher.Push(ctx, Push{
		ID:          id,
		OrderID:     d.OrderID,
		Status:      d.Calculated,
		Seq:         d.Seq,
		Origin:      d.Origin,
		Fingerprint: d.Fingerprint,
	})
}

// claimLocked makes a new flight the owner of orderID.
// Caller must hold g.mu and have checked that no flight owns it.
func (g *Guard) claimLocked(orderID string) *flight {
	f := &flight{done: make(chan struct{})}
	g.inFlight[orderID] = f
	return f
}

// releaseLocked ends f. The order is freed only if f still owns it.
// Caller must hold g.mu.
func (g *Guard) releaseLocked(orderID string, f *flight) {
	if g.inFlight[orderID] == f {
		delete(g.inFlight, orderID)
	}
	close(f.done)
}

func (g *Guard) release(orderID string, f *flight) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseLocked(orderID, f)
}

// acquire waits until no push owns orderID, then claims it.
func (g *Guard) acquire(ctx context.Context, orderID string) (*flight, error) {
	g.mu.Lock()
	for {
		if g.closed {
			g.mu.Unlock()
			return nil, ErrClosed
		}
		cur := g.inFlight[orderID]
		if cur == nil {
			break
		}
		g.mu.Unlock()
		select {
		case <-cur.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		g.mu.Lock()
	}
	f := g.claimLocked(orderID)
	g.mu.Unlock()
	return f, nil
}

// finishPush releases f. A failed push wrote nothing, so no echo will come
// back and the mark is cleared right away.
func (g *Guard) finishPush(orderID string, f *flight, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseLocked(orderID, f)
	if err != nil {
		delete(g.marks, orderID)
	}
}

// trip activates the emergency halt.
func (g *Guard) trip(orderID string, attempts int, now time.Time) {
	g.mu.Lock()
	already := now.Before(g.haltUntil)
	g.haltUntil = now.Add(g.cfg.HaltCooldown)
	until := g.haltUntil
	g.mu.Unlock()

	if !already {
		g.logger.Error("emergency halt: too many recompute attempts",
			"order_id", orderID,
			"attempts", attempts,
			"limit", g.cfg.EmergencyLimit,
			"until", until,
		)
	}
}

// SubmitUserUpdate pushes a status chosen by an operator. It bypasses the
// debounce, draws from the user budget and cancels any pending automatic
// task for the order. If a push for the order is still running it waits for
// that push to finish first. Unlike automatic drops, refusals are returned
// as errors: ErrHalted, ErrClosed, ErrIllegalTransition or *RateLimitError.
func (g *Guard) SubmitUserUpdate(ctx context.Context, orderID string, next status.Status) error {
	if !next.Valid() {
		return fmt.Errorf("user update for order %s: unknown status %q", orderID, next)
	}

	d := Decision{Seq: g.seq.Next(), OrderID: orderID, Origin: OriginUser, Calculated: next, At: g.clock.Now()}
	refuse := func(out Outcome, err error) error {
		d.Outcome, d.Err = out, err
		g.emit(d)
		return fmt.Errorf("user update for order %s: %w", orderID, err)
	}

	f, err := g.acquire(ctx, orderID)
	if errors.Is(err, ErrClosed) {
		return refuse(OutcomeClosed, err)
	}
	if err != nil {
		return refuse(OutcomePushFailed, fmt.Errorf("wait for running push: %w", err))
	}
	drop := func(out Outcome, err error) error {
		g.release(orderID, f)
		return refuse(out, err)
	}

	now := g.clock.Now()
	d.At = now
	if halted, _ := g.Halted(); halted {
		return drop(OutcomeHalted, ErrHalted)
	}

	snap, err := g.source.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return drop(OutcomeNotFound, err)
		}
		return drop(OutcomeStoreError, err)
	}
	d.Stored = snap.Status
	d.Fingerprint = canon.MustItemsFingerprint(lineitem.Normalize(snap.Items))
	if !status.IsValidTransition(snap.Status, next) {
		return drop(OutcomeRejected, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, snap.Status, next))
	}

	count, ok, err := g.windows.Take(ctx, BudgetUser.Key(orderID), g.cfg.UserLimit, now)
	if err != nil {
		return drop(OutcomeStoreError, fmt.Errorf("take user budget: %w", err))
	}
	if !ok {
		return drop(OutcomeRateLimited, &RateLimitError{OrderID: orderID, Budget: BudgetUser, Count: count, Limit: g.cfg.UserLimit})
	}

	g.mu.Lock()
	superseded := g.unscheduleLocked(orderID)
	g.marks[orderID] = now.Add(g.cfg.settleDelay(next))
	g.mu.Unlock()

	if superseded != nil {
		sd := superseded.decision(now)
		sd.Outcome = OutcomeSuperseded
		g.emit(sd)
	}

	err = g.push(ctx, d)
	g.finishPush(orderID, f, err)
	if err != nil {
		d.Outcome, d.Err = OutcomePushFailed, err
		g.emit(d)
		return fmt.Errorf("user update for order %s: %w", orderID, err)
	}
	d.Outcome = OutcomePushed
	g.emit(d)
	return nil
}

// Halted reports whether the emergency halt is active and until when.
func (g *Guard) Halted() (bool, time.Time) {
	now := g.clock.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	return now.Before(g.haltUntil), g.haltUntil
}

// Pending returns the number of scheduled, unfired tasks.
func (g *Guard) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// sweeper is implemented by window stores that keep expired state in
// process memory.
type sweeper interface {
	Sweep(now time.Time) int
}

// Sweep forgets expired self-updated marks and, for in-process stores,
// lapsed rate windows. Long-running processes call it periodically.
func (g *Guard) Sweep() int {
	now := g.clock.Now()

	g.mu.Lock()
	removed := 0
	for id, until := range g.marks {
		if !now.Before(until) {
			delete(g.marks, id)
			removed++
		}
	}
	g.mu.Unlock()

	if s, ok := g.windows.(sweeper); ok {
		removed += s.Sweep(now)
	}
	return removed
}

// Drain blocks until no task is pending and every push has finished,
// checking again every interval of the guard's clock. It is used by callers
// whose input has ended and who want the last debounced tasks to fire
// before Close.
func (g *Guard) Drain(ctx context.Context, interval time.Duration) error {
	for {
		g.mu.Lock()
		busy := len(g.pending) + g.firing
		g.mu.Unlock()
		if busy == 0 {
			g.wg.Wait()
			return nil
		}
		tick := make(chan struct{})
		timer := g.clock.AfterFunc(interval, func() { close(tick) })
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-tick:
		}
	}
}

// Wait blocks until every in-flight automatic push has finished.
func (g *Guard) Wait() {
	g.wg.Wait()
}

// Close stops all pending timers and waits for in-flight pushes. If ctx
// expires first, in-flight pushes are cancelled and ctx.Err() is returned.
func (g *Guard) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	g.closed = true
	for id := range g.pending {
		g.unscheduleLocked(id)
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	defer g.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Guard) emit(d Decision) {
	attrs := []any{
		"seq", d.Seq,
		"order_id", d.OrderID,
		"origin", string(d.Origin),
		"outcome", d.Outcome.String(),
	}
	if d.Calculated != "" {
		attrs = append(attrs, "stored", string(d.Stored), "calculated", string(d.Calculated))
	}
	if d.Err != nil {
		attrs = append(attrs, "error", d.Err)
	}

	switch d.Outcome {
	case OutcomePushed:
		g.logger.Info("order status pushed", attrs...)
	case OutcomePushFailed, OutcomeStoreError:
		g.logger.Error("order reconciliation failed", attrs...)
	case OutcomeRateLimited, OutcomeHalted, OutcomeRejected:
		g.logger.Warn("order reconciliation dropped", attrs...)
	default:
		g.logger.Debug("order reconciliation decision", attrs...)
	}

	for _, o := range g.observers {
		o.Observe(d)
	}
}
