package guard

import (
	"context"
	"time"

	"github.com/smvora4u/restaurant-management/internal/order"
	"github.com/smvora4u/restaurant-management/internal/status"
)

// Origin distinguishes automatic recomputation from operator actions.
type Origin string

const (
	OriginAutomatic Origin = "automatic"
	OriginUser      Origin = "user"
)

// Outcome is what the guard did with a notification or update.
type Outcome int

const (
	// OutcomeScheduled: a debounced push task is pending for the order.
	OutcomeScheduled Outcome = iota + 1
	// OutcomeUnchanged: the computed status already matches the stored one.
	OutcomeUnchanged
	// OutcomeEcho: the notification was our own write coming back.
	OutcomeEcho
	// OutcomeHalted: the emergency halt is active.
	OutcomeHalted
	// OutcomeNotFound: the snapshot source does not know the order.
	OutcomeNotFound
	// OutcomeSuperseded: a pending task was replaced before it fired.
	OutcomeSuperseded
	// OutcomeRateLimited: the budget for the current window is spent.
	OutcomeRateLimited
	// OutcomePushed: the push effect accepted the new status.
	OutcomePushed
	// OutcomePushFailed: the push effect rejected the write.
	OutcomePushFailed
	// OutcomeStoreError: the snapshot source or window store failed.
	OutcomeStoreError
	// OutcomeClosed: the guard no longer accepts work.
	OutcomeClosed
	// OutcomeRejected: a user-initiated update would move the order backwards.
	OutcomeRejected
)

var outcomeNames = map[Outcome]string{
	OutcomeScheduled:   "scheduled",
	OutcomeUnchanged:   "unchanged",
	OutcomeEcho:        "echo",
	OutcomeHalted:      "halted",
	OutcomeNotFound:    "not_found",
	OutcomeSuperseded:  "superseded",
	OutcomeRateLimited: "rate_limited",
	OutcomePushed:      "pushed",
	OutcomePushFailed:  "push_failed",
	OutcomeStoreError:  "store_error",
	OutcomeClosed:      "closed",
	OutcomeRejected:    "rejected",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Dropped reports whether the outcome ends processing without a push.
func (o Outcome) Dropped() bool {
	switch o {
	case OutcomeScheduled, OutcomePushed:
		return false
	}
	return true
}

// Decision records one step of guard processing.
type Decision struct {
	Seq         int64
	OrderID     string
	Origin      Origin
	Outcome     Outcome
	Stored      status.Status
	Calculated  status.Status
	Fingerprint string
	At          time.Time
	Err         error
}

// Observer receives every decision. Implementations must be safe for
// concurrent use: decisions are emitted from timer and push goroutines.
type Observer interface {
	Observe(Decision)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Decision)

// Observe calls f(d).
func (f ObserverFunc) Observe(d Decision) { f(d) }

// Source returns the current snapshot of an order.
// Implementations return ErrOrderNotFound (possibly wrapped) for unknown ids.
type Source interface {
	Get(ctx context.Context, orderID string) (order.Order, error)
}

// Push is one status write issued by the guard.
type Push struct {
	// ID is a content-addressed identity: retries of the same push carry
	// the same ID.
	ID          string        `json:"id"`
	OrderID     string        `json:"orderId"`
	Status      status.Status `json:"status"`
	Seq         int64         `json:"seq"`
	Origin      Origin        `json:"origin"`
	Fingerprint string        `json:"fingerprint"`
}

// Pusher persists a status write. Pushing the same status twice must be
// harmless.
type Pusher interface {
	Push(ctx context.Context, p Push) error
}

// PusherFunc adapts a function to Pusher.
type PusherFunc func(ctx context.Context, p Push) error

// Push calls f(ctx, p).
func (f PusherFunc) Push(ctx context.Context, p Push) error { return f(ctx, p) }
