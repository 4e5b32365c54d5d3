package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/smvora4u/restaurant-management/internal/canon"
	"github.com/smvora4u/restaurant-management/internal/lineitem"
)

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Field    string       // Expectation that failed
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			switch ev.Type {
			case EventOp:
				if ev.Error != "" {
					fmt.Fprintf(&buf, "  [%d] step %d %s -> %s\n", i+1, ev.Step, ev.Op, ev.Error)
				} else {
					fmt.Fprintf(&buf, "  [%d] step %d %s\n", i+1, ev.Step, ev.Op)
				}
			case EventDecision:
				fmt.Fprintf(&buf, "  [%d]   +%s seq=%d %s %s\n", i+1, ev.Offset, ev.Seq, ev.Origin, ev.Outcome)
			}
		}
	}
	return buf.String()
}

// EvaluateExpect checks the result's final state and trace against e and
// returns one message per failed expectation.
func EvaluateExpect(r *Result, e Expect) []string {
	var failures []error
	fail := func(field, expected, actual string) {
		failures = append(failures, &AssertionError{
			Field:    field,
			Expected: expected,
			Actual:   actual,
			Trace:    r.Trace,
		})
	}

	if e.Status != "" && e.Status != r.Final.Status {
		fail("status", string(e.Status), string(r.Final.Status))
	}
	if e.Aggregate != "" && e.Aggregate != r.Final.Aggregate {
		fail("aggregate", string(e.Aggregate), string(r.Final.Aggregate))
	}
	if e.Total != "" {
		want, err := decimal.NewFromString(e.Total)
		switch {
		case err != nil:
			fail("total", e.Total, fmt.Sprintf("unparseable expectation: %v", err))
		case !want.Equal(r.Final.Total):
			fail("total", want.StringFixed(2), r.Final.Total.StringFixed(2))
		}
	}
	if e.Items != nil {
		if err := assertItems(e.Items, r.Final.Items); err != nil {
			failures = append(failures, err)
		}
	}
	if e.Pushes != nil && *e.Pushes != len(r.Pushes) {
		fail("pushes", fmt.Sprintf("%d pushes", *e.Pushes), fmt.Sprintf("%d pushes", len(r.Pushes)))
	}
	if e.Halted != nil && *e.Halted != r.Final.Halted {
		fail("halted", fmt.Sprint(*e.Halted), fmt.Sprint(r.Final.Halted))
	}

	names := make([]string, 0, len(e.Outcomes))
	for name := range e.Outcomes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		want := e.Outcomes[name]
		if got := CountOutcome(r.Trace, name); got != want {
			fail("outcomes."+name, fmt.Sprintf("%d decisions", want), fmt.Sprintf("%d decisions", got))
		}
	}

	msgs := make([]string, len(failures))
	for i, f := range failures {
		msgs[i] = f.Error()
	}
	return msgs
}

// assertItems compares item collections by their canonical values, so
// "12.5" and "12.50" are the same price.
func assertItems(want, got []lineitem.Item) error {
	wantValue := canon.ItemsValue(want)
	gotValue := canon.ItemsValue(got)
	if reflect.DeepEqual(wantValue, gotValue) {
		return nil
	}

	wantJSON, err := canon.Marshal(wantValue)
	if err != nil {
		return err
	}
	gotJSON, err := canon.Marshal(gotValue)
	if err != nil {
		return err
	}
	return &AssertionError{
		Field:    "items",
		Expected: string(wantJSON),
		Actual:   string(gotJSON),
	}
}
