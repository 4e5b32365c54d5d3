package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/smvora4u/restaurant-management/internal/canon"
)

// Snapshot renders the result as canonical JSON: the trace, the pushed
// statuses and the final order. Identical runs produce identical bytes.
func Snapshot(scenarioName string, r *Result) ([]byte, error) {
	trace := make([]any, len(r.Trace))
	for i, ev := range r.Trace {
		m := map[string]any{
			"type": ev.Type,
			"step": ev.Step,
		}
		switch ev.Type {
		case EventOp:
			m["op"] = ev.Op
			if ev.Error != "" {
				m["error"] = ev.Error
			}
		case EventDecision:
			m["seq"] = ev.Seq
			m["origin"] = ev.Origin
			m["outcome"] = ev.Outcome
			m["offset"] = ev.Offset.String()
			if ev.Stored != "" {
				m["stored"] = ev.Stored
			}
			if ev.Calculated != "" {
				m["calculated"] = ev.Calculated
			}
		}
		trace[i] = m
	}

	pushes := make([]any, len(r.Pushes))
	for i, p := range r.Pushes {
		pushes[i] = string(p.Status)
	}

	return canon.Marshal(map[string]any{
		"scenario": scenarioName,
		"trace":    trace,
		"pushes":   pushes,
		"final": map[string]any{
			"status": string(r.Final.Status),
			"total":  r.Final.Total.StringFixed(2),
			"items":  canon.ItemsValue(r.Final.Items),
		},
	})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
