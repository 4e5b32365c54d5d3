package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smvora4u/restaurant-management/internal/guard"
	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/status"
)

// Scenario defines one order, a sequence of steps against it and the
// expected end state.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Order is the initial order.
	Order OrderSetup `yaml:"order"`

	// Guard overrides the default guard tuning.
	Guard GuardSettings `yaml:"guard,omitempty"`

	// StaleSource keeps pushes out of the order source, as when the push
	// target is a replica the notifications are not read from. Every
	// notification then sees the old stored status.
	StaleSource bool `yaml:"stale_source,omitempty"`

	Steps []Step `yaml:"steps"`

	// Expect is checked after the last step.
	Expect *Expect `yaml:"expect,omitempty"`
}

// OrderSetup is the initial order. An empty status means the items'
// aggregate.
type OrderSetup struct {
	ID     string          `yaml:"id"`
	Status status.Status   `yaml:"status,omitempty"`
	Items  []lineitem.Item `yaml:"items"`
}

// GuardSettings mirrors guard.Config with durations written as strings.
// Zero values keep the defaults.
type GuardSettings struct {
	Window               string `yaml:"window,omitempty"`
	AutoLimit            int    `yaml:"auto_limit,omitempty"`
	UserLimit            int    `yaml:"user_limit,omitempty"`
	EmergencyLimit       int    `yaml:"emergency_limit,omitempty"`
	HaltCooldown         string `yaml:"halt_cooldown,omitempty"`
	Debounce             string `yaml:"debounce,omitempty"`
	SettleDelay          string `yaml:"settle_delay,omitempty"`
	CompletedSettleDelay string `yaml:"completed_settle_delay,omitempty"`
}

// Step is one operation.
type Step struct {
	Op string `yaml:"op"`

	Index    int            `yaml:"index,omitempty"`
	Status   status.Status  `yaml:"status,omitempty"`
	Quantity int            `yaml:"quantity,omitempty"`
	Item     *lineitem.Item `yaml:"item,omitempty"`

	// Repeat and Every apply to notify.
	Repeat int    `yaml:"repeat,omitempty"`
	Every  string `yaml:"every,omitempty"`

	// Duration applies to advance.
	Duration string `yaml:"duration,omitempty"`

	// ExpectError is the error code the step must fail with. Empty means
	// the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Expect lists end-state expectations. Unset fields are not checked.
type Expect struct {
	Status    status.Status   `yaml:"status,omitempty"`
	Aggregate status.Status   `yaml:"aggregate,omitempty"`
	Total     string          `yaml:"total,omitempty"`
	Items     []lineitem.Item `yaml:"items,omitempty"`
	Pushes    *int            `yaml:"pushes,omitempty"`
	Outcomes  map[string]int  `yaml:"outcomes,omitempty"`
	Halted    *bool           `yaml:"halted,omitempty"`
}

// Step operations.
const (
	OpTransition      = "transition"
	OpForceTransition = "force_transition"
	OpChangeQuantity  = "change_quantity"
	OpAdd             = "add"
	OpRemove          = "remove"
	OpNotify          = "notify"
	OpAdvance         = "advance"
	OpUserUpdate      = "user_update"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches "step:" vs "steps:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Order.ID == "" {
		return fmt.Errorf("order.id is required")
	}
	if s.Order.Status != "" && !s.Order.Status.Valid() {
		return fmt.Errorf("order.status: unknown status %q", s.Order.Status)
	}
	for i, it := range s.Order.Items {
		if it.MenuItemID == "" {
			return fmt.Errorf("order.items[%d]: menuItemId is required", i)
		}
		if !it.Status.Valid() {
			return fmt.Errorf("order.items[%d]: unknown status %q", i, it.Status)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if _, err := s.Guard.apply(guard.DefaultConfig()); err != nil {
		return fmt.Errorf("guard: %w", err)
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}

	if s.Expect != nil {
		for name := range s.Expect.Outcomes {
			if !knownOutcome(name) {
				return fmt.Errorf("expect.outcomes: unknown outcome %q", name)
			}
		}
		if s.Expect.Status != "" && !s.Expect.Status.Valid() {
			return fmt.Errorf("expect.status: unknown status %q", s.Expect.Status)
		}
	}
	return nil
}

// validateStep validates a single step based on its op.
func validateStep(index int, st *Step) error {
	switch st.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	case OpTransition, OpForceTransition:
		if st.Status == "" {
			return fmt.Errorf("steps[%d]: status is required for %s", index, st.Op)
		}
	case OpChangeQuantity, OpRemove:
	case OpAdd:
		if st.Item == nil {
			return fmt.Errorf("steps[%d]: item is required for add", index)
		}
	case OpNotify:
		if st.Repeat < 0 {
			return fmt.Errorf("steps[%d]: repeat must be non-negative", index)
		}
		if _, err := parseDuration(st.Every); err != nil {
			return fmt.Errorf("steps[%d]: every: %w", index, err)
		}
	case OpAdvance:
		d, err := parseDuration(st.Duration)
		if err != nil {
			return fmt.Errorf("steps[%d]: duration: %w", index, err)
		}
		if d <= 0 {
			return fmt.Errorf("steps[%d]: duration is required for advance", index)
		}
	case OpUserUpdate:
		if st.Status == "" {
			return fmt.Errorf("steps[%d]: status is required for user_update", index)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
	return nil
}

// apply returns base with the non-zero settings applied.
func (gs GuardSettings) apply(base guard.Config) (guard.Config, error) {
	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"window", gs.Window, &base.Window},
		{"halt_cooldown", gs.HaltCooldown, &base.HaltCooldown},
		{"debounce", gs.Debounce, &base.Debounce},
		{"settle_delay", gs.SettleDelay, &base.SettleDelay},
		{"completed_settle_delay", gs.CompletedSettleDelay, &base.CompletedSettleDelay},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return guard.Config{}, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	if gs.AutoLimit != 0 {
		base.AutoLimit = gs.AutoLimit
	}
	if gs.UserLimit != 0 {
		base.UserLimit = gs.UserLimit
	}
	if gs.EmergencyLimit != 0 {
		base.EmergencyLimit = gs.EmergencyLimit
	}
	if err := base.Validate(); err != nil {
		return guard.Config{}, err
	}
	return base, nil
}

func parseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func knownOutcome(name string) bool {
	for o := guard.OutcomeScheduled; o <= guard.OutcomeRejected; o++ {
		if o.String() == name {
			return true
		}
	}
	return false
}
