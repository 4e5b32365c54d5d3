package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/smvora4u/restaurant-management/internal/guard"
	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/order"
	"github.com/smvora4u/restaurant-management/internal/testutil"
)

// Harness is the scenario execution engine for one run.
type Harness struct {
	orderID string
	cfg     guard.Config
	start   time.Time

	clock  *testutil.ManualClock
	source *testutil.MemorySource
	pusher *testutil.RecordingPusher
	log    *testutil.DecisionLog
	guard  *guard.Guard

	items []lineitem.Item
	seen  int
}

// Run executes a test scenario and returns the result.
//
// The returned error reports a scenario that could not be executed at all.
// Failed steps and expectations are reported through Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	cfg, err := scenario.Guard.apply(guard.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("guard settings: %w", err)
	}

	items := lineitem.Normalize(scenario.Order.Items)
	initial := order.Order{
		ID:          scenario.Order.ID,
		Status:      scenario.Order.Status,
		Items:       items,
		TotalAmount: lineitem.Total(items),
	}
	if initial.Status == "" {
		initial.Status = order.Aggregate(items)
	}

	h := &Harness{
		orderID: scenario.Order.ID,
		cfg:     cfg,
		start:   testutil.Epoch,
		clock:   testutil.NewManualClock(testutil.Epoch),
		source:  testutil.NewMemorySource(initial),
		pusher:  &testutil.RecordingPusher{},
		log:     &testutil.DecisionLog{},
		items:   items,
	}
	if !scenario.StaleSource {
		h.pusher.Source = h.source
	}

	g, err := guard.New(h.source, h.pusher, cfg,
		guard.WithClock(h.clock),
		guard.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		guard.WithObserver(h.log),
	)
	if err != nil {
		return nil, err
	}
	h.guard = g
	defer g.Close(context.Background())

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	final, err := h.source.Get(ctx, h.orderID)
	if err != nil {
		return nil, fmt.Errorf("read final order: %w", err)
	}
	halted, _ := g.Halted()
	result.Final = FinalState{
		Status:    final.Status,
		Aggregate: order.Aggregate(final.Items),
		Items:     final.Items,
		Total:     final.TotalAmount,
		Halted:    halted,
	}
	result.Pushes = append(result.Pushes, h.pusher.Pushes()...)

	if scenario.Expect != nil {
		for _, msg := range EvaluateExpect(result, *scenario.Expect) {
			result.AddError(msg)
		}
	}
	return result, nil
}

// execute runs one step. The returned error is reserved for steps that
// cannot be executed; an operation failing is recorded in the trace and
// compared against ExpectError.
func (h *Harness) execute(ctx context.Context, i int, step Step, result *Result) error {
	var opErr error
	switch step.Op {
	case OpTransition:
		opErr = h.mutate(ctx, func(items []lineitem.Item) ([]lineitem.Item, error) {
			return lineitem.TransitionPartialQuantity(items, step.Index, step.Status, step.Quantity)
		})
	case OpForceTransition:
		opErr = h.mutate(ctx, func(items []lineitem.Item) ([]lineitem.Item, error) {
			return lineitem.ForceTransition(items, step.Index, step.Status, step.Quantity)
		})
	case OpChangeQuantity:
		opErr = h.mutate(ctx, func(items []lineitem.Item) ([]lineitem.Item, error) {
			return lineitem.ChangeQuantity(items, step.Index, step.Quantity)
		})
	case OpAdd:
		if step.Item == nil {
			return errors.New("item is required")
		}
		opErr = h.mutate(ctx, func(items []lineitem.Item) ([]lineitem.Item, error) {
			return lineitem.Add(items, *step.Item)
		})
	case OpRemove:
		opErr = h.mutate(ctx, func(items []lineitem.Item) ([]lineitem.Item, error) {
			return lineitem.Remove(items, step.Index)
		})
	case OpNotify:
		if err := h.notify(ctx, step); err != nil {
			return err
		}
	case OpAdvance:
		d, err := parseDuration(step.Duration)
		if err != nil {
			return err
		}
		h.clock.Advance(d)
		h.guard.Wait()
	case OpUserUpdate:
		opErr = h.guard.SubmitUserUpdate(ctx, h.orderID, step.Status)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	code := ErrorCode(opErr)
	result.AddOpTrace(i, step.Op, code)
	h.collect(i, result)

	if code != step.ExpectError {
		switch {
		case step.ExpectError == "":
			result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", i, step.Op, opErr))
		case opErr == nil:
			result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got success", i, step.Op, step.ExpectError))
		default:
			result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %s: %v", i, step.Op, step.ExpectError, code, opErr))
		}
	}
	return nil
}

// mutate applies a line-item operation and stores the new items. The stored
// status is left alone.
func (h *Harness) mutate(ctx context.Context, op func([]lineitem.Item) ([]lineitem.Item, error)) error {
	next, err := op(h.items)
	if err != nil {
		return err
	}
	o, err := h.source.Get(ctx, h.orderID)
	if err != nil {
		return err
	}
	o.Items = next
	o.TotalAmount = lineitem.Total(next)
	h.source.Put(o)
	h.items = next
	return nil
}

// notify delivers the current items Repeat times, Every apart, then lets
// the last debounce timer and its push complete.
func (h *Harness) notify(ctx context.Context, step Step) error {
	every, err := parseDuration(step.Every)
	if err != nil {
		return err
	}
	n := max(step.Repeat, 1)
	for k := 0; k < n; k++ {
		h.guard.HandleNotification(ctx, h.orderID, h.items)
		if k < n-1 && every > 0 {
			h.clock.Advance(every)
			h.guard.Wait()
		}
	}
	h.clock.Advance(h.cfg.Debounce)
	h.guard.Wait()
	return nil
}

// collect moves decisions made since the last call into the trace.
func (h *Harness) collect(step int, result *Result) {
	all := h.log.All()
	for _, d := range all[h.seen:] {
		result.AddDecisionTrace(step, d, d.At.Sub(h.start))
	}
	h.seen = len(all)
}

// ErrorCode maps an operation error to the code scenarios refer to it by.
// It returns "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var le *lineitem.Error
	if errors.As(err, &le) {
		return string(le.Code)
	}
	switch {
	case guard.IsRateLimited(err):
		return guard.OutcomeRateLimited.String()
	case errors.Is(err, guard.ErrHalted):
		return guard.OutcomeHalted.String()
	case errors.Is(err, guard.ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, guard.ErrOrderNotFound):
		return guard.OutcomeNotFound.String()
	case errors.Is(err, guard.ErrClosed):
		return guard.OutcomeClosed.String()
	}
	return "error"
}
