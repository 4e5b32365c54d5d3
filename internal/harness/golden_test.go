package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smvora4u/restaurant-management/internal/status"
)

func TestRunWithGolden(t *testing.T) {
	for _, file := range []string{"02_advanced_growth.yaml", "03_partial_transition.yaml"} {
		t.Run(file, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", file))
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "06_automatic_ceiling.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestSnapshot_Shape(t *testing.T) {
	r := sampleResult()
	r.AddOpTrace(1, OpRemove, "ITEM_NOT_FOUND")

	data, err := Snapshot("shape", r)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"scenario":"shape"`)
	assert.Contains(t, s, `"pushes":["confirmed"]`)
	assert.Contains(t, s, `{"error":"ITEM_NOT_FOUND","op":"remove","step":1,"type":"op"}`)
	assert.Contains(t, s, `"offset":"100ms"`)
	assert.Contains(t, s, `"total":"25.00"`)
	assert.NotContains(t, s, `"stored"`, "empty statuses are omitted")
	assert.Contains(t, s, `"status":"`+string(status.Confirmed)+`"`)
}
