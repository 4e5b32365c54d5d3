package harness

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/smvora4u/restaurant-management/internal/guard"
	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/status"
)

// Trace event types.
const (
	EventOp       = "op"
	EventDecision = "decision"
)

// TraceEvent is either an executed step or a guard decision made during a
// step.
type TraceEvent struct {
	Type string `json:"type"`
	Step int    `json:"step"`

	// Op and Error are set for EventOp.
	Op    string `json:"op,omitempty"`
	Error string `json:"error,omitempty"`

	// The remaining fields are set for EventDecision. Offset is measured
	// from the start of the run.
	Seq        int64         `json:"seq,omitempty"`
	Origin     string        `json:"origin,omitempty"`
	Outcome    string        `json:"outcome,omitempty"`
	Stored     string        `json:"stored,omitempty"`
	Calculated string        `json:"calculated,omitempty"`
	Offset     time.Duration `json:"offset,omitempty"`
}

// FinalState is the order as the source holds it after the last step.
type FinalState struct {
	Status    status.Status   `json:"status"`
	Aggregate status.Status   `json:"aggregate"`
	Items     []lineitem.Item `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Halted    bool            `json:"halted"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step and expectation matched.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
	Final  FinalState   `json:"final"`
	Pushes []guard.Push `json:"pushes"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Pushes: []guard.Push{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddOpTrace records an executed step. code is empty on success.
func (r *Result) AddOpTrace(step int, op, code string) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:  EventOp,
		Step:  step,
		Op:    op,
		Error: code,
	})
}

// AddDecisionTrace records a guard decision made during step.
func (r *Result) AddDecisionTrace(step int, d guard.Decision, offset time.Duration) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:       EventDecision,
		Step:       step,
		Seq:        d.Seq,
		Origin:     string(d.Origin),
		Outcome:    d.Outcome.String(),
		Stored:     string(d.Stored),
		Calculated: string(d.Calculated),
		Offset:     offset,
	})
}

// CountOutcome returns how many decisions in trace had the named outcome.
func CountOutcome(trace []TraceEvent, outcome string) int {
	n := 0
	for _, ev := range trace {
		if ev.Type == EventDecision && ev.Outcome == outcome {
			n++
		}
	}
	return n
}
