package guard

import (
	"errors"
	"fmt"
	"time"

	"github.com/smvora4u/restaurant-management/internal/status"
)

// Default tuning. These mirror the values operators have settled on for a
// single busy kitchen.
const (
	DefaultWindow               = 60 * time.Second
	DefaultAutoLimit            = 8
	DefaultUserLimit            = 20
	DefaultEmergencyLimit       = 30
	DefaultHaltCooldown         = 2 * time.Minute
	DefaultDebounce             = 100 * time.Millisecond
	DefaultSettleDelay          = time.Second
	DefaultCompletedSettleDelay = 3 * time.Second
	DefaultPushTimeout          = 10 * time.Second
)

// Config tunes the guard.
type Config struct {
	// Window is the length of every rate window.
	Window time.Duration
	// AutoLimit caps automatic pushes per order per window.
	AutoLimit int
	// UserLimit caps user-initiated pushes per order per window.
	UserLimit int
	// EmergencyLimit caps recompute attempts per order per window. Reaching
	// it halts all reconciliation for HaltCooldown.
	EmergencyLimit int
	HaltCooldown   time.Duration
	// Debounce coalesces notification bursts per order.
	Debounce time.Duration
	// SettleDelay is how long the self-updated mark lives after a push.
	SettleDelay time.Duration
	// CompletedSettleDelay replaces SettleDelay for pushes of completed,
	// which fan out to billing and take longer to echo.
	CompletedSettleDelay time.Duration
	// PushTimeout bounds each automatic push.
	PushTimeout time.Duration
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		Window:               DefaultWindow,
		AutoLimit:            DefaultAutoLimit,
		UserLimit:            DefaultUserLimit,
		EmergencyLimit:       DefaultEmergencyLimit,
		HaltCooldown:         DefaultHaltCooldown,
		Debounce:             DefaultDebounce,
		SettleDelay:          DefaultSettleDelay,
		CompletedSettleDelay: DefaultCompletedSettleDelay,
		PushTimeout:          DefaultPushTimeout,
	}
}

// Validate checks that every limit and duration is usable.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	positive("window", c.Window)
	positive("halt cooldown", c.HaltCooldown)
	positive("debounce", c.Debounce)
	positive("push timeout", c.PushTimeout)
	if c.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("settle delay must not be negative, got %s", c.SettleDelay))
	}
	if c.CompletedSettleDelay < 0 {
		errs = append(errs, fmt.Errorf("completed settle delay must not be negative, got %s", c.CompletedSettleDelay))
	}
	if c.AutoLimit < 1 {
		errs = append(errs, fmt.Errorf("auto limit must be at least 1, got %d", c.AutoLimit))
	}
	if c.UserLimit < 1 {
		errs = append(errs, fmt.Errorf("user limit must be at least 1, got %d", c.UserLimit))
	}
	if c.EmergencyLimit <= c.AutoLimit {
		errs = append(errs, fmt.Errorf("emergency limit %d must exceed auto limit %d", c.EmergencyLimit, c.AutoLimit))
	}
	return errors.Join(errs...)
}

func (c Config) settleDelay(s status.Status) time.Duration {
	if s == status.Completed {
		return c.CompletedSettleDelay
	}
	return c.SettleDelay
}
