package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/smvora4u/restaurant-management/internal/guard"
	"github.com/smvora4u/restaurant-management/internal/order"
)

// MemorySource is an in-memory guard.Source.
//
// Thread-safety: safe for concurrent use.
type MemorySource struct {
	mu     sync.Mutex
	orders map[string]order.Order
}

// NewMemorySource creates a source holding orders.
func NewMemorySource(orders ...order.Order) *MemorySource {
	s := &MemorySource{orders: make(map[string]order.Order)}
	for _, o := range orders {
		s.Put(o)
	}
	return s
}

// Put stores or replaces an order.
func (s *MemorySource) Put(o order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

// Get implements guard.Source.
func (s *MemorySource) Get(_ context.Context, orderID string) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return order.Order{}, fmt.Errorf("order %q: %w", orderID, guard.ErrOrderNotFound)
	}
	return o, nil
}

// RecordingPusher is a guard.Pusher that remembers every push.
//
// If Source is set, accepted pushes write the new status into it, the way a
// real persistence layer would. Fail, when set, decides per push whether to
// reject it.
//
// Thread-safety: safe for concurrent use.
type RecordingPusher struct {
	Source *MemorySource
	Fail   func(guard.Push) error

	mu     sync.Mutex
	pushes []guard.Push
}

// Push implements guard.Pusher.
func (p *RecordingPusher) Push(_ context.Context, push guard.Push) error {
	if p.Fail != nil {
		if err := p.Fail(push); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.pushes = append(p.pushes, push)
	p.mu.Unlock()

	if p.Source != nil {
		p.Source.mu.Lock()
		if o, ok := p.Source.orders[push.OrderID]; ok {
			o.Status = push.Status
			p.Source.orders[push.OrderID] = o
		}
		p.Source.mu.Unlock()
	}
	return nil
}

// Pushes returns a copy of the accepted pushes in arrival order.
func (p *RecordingPusher) Pushes() []guard.Push {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]guard.Push, len(p.pushes))
	copy(out, p.pushes)
	return out
}

// Count returns the number of accepted pushes.
func (p *RecordingPusher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pushes)
}

// DecisionLog collects guard decisions.
//
// Thread-safety: safe for concurrent use.
type DecisionLog struct {
	mu        sync.Mutex
	decisions []guard.Decision
}

// Observe implements guard.Observer.
func (l *DecisionLog) Observe(d guard.Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decisions = append(l.decisions, d)
}

// All returns a copy of every decision observed so far.
func (l *DecisionLog) All() []guard.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]guard.Decision, len(l.decisions))
	copy(out, l.decisions)
	return out
}

// Count returns how many decisions had the given outcome.
func (l *DecisionLog) Count(outcome guard.Outcome) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, d := range l.decisions {
		if d.Outcome == outcome {
			n++
		}
	}
	return n
}
