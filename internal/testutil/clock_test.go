package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_StartsAtEpoch(t *testing.T) {
	clock := NewManualClock(time.Time{})
	assert.Equal(t, Epoch, clock.Now())
}

func TestManualClock_AdvanceFiresDueTimersInOrder(t *testing.T) {
	clock := NewManualClock(time.Time{})
	var fired []string

	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	clock.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "c") })
	clock.AfterFunc(5*time.Second, func() { fired = append(fired, "late") })

	clock.Advance(2 * time.Second)

	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, Epoch.Add(2*time.Second), clock.Now())
	assert.Equal(t, 1, clock.PendingTimers())
}

func TestManualClock_CallbackSeesDeadline(t *testing.T) {
	clock := NewManualClock(time.Time{})
	var at time.Time
	clock.AfterFunc(time.Second, func() { at = clock.Now() })

	clock.Advance(time.Minute)

	assert.Equal(t, Epoch.Add(time.Second), at)
	assert.Equal(t, Epoch.Add(time.Minute), clock.Now())
}

func TestManualClock_StopPreventsFiring(t *testing.T) {
	clock := NewManualClock(time.Time{})
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports already stopped")

	clock.Advance(time.Hour)
	assert.False(t, fired)
}

func TestManualClock_StopAfterFire(t *testing.T) {
	clock := NewManualClock(time.Time{})
	timer := clock.AfterFunc(time.Second, func() {})
	clock.Advance(time.Second)
	assert.False(t, timer.Stop())
}

func TestManualClock_RearmInsideCallback(t *testing.T) {
	clock := NewManualClock(time.Time{})
	count := 0
	var tick func()
	tick = func() {
		count++
		clock.AfterFunc(time.Second, tick)
	}
	clock.AfterFunc(time.Second, tick)

	clock.Advance(3 * time.Second)
	assert.Equal(t, 3, count)
}

func TestManualClock_SetIgnoresPast(t *testing.T) {
	clock := NewManualClock(time.Time{})
	clock.Set(Epoch.Add(-time.Hour))
	assert.Equal(t, Epoch, clock.Now())

	clock.Set(Epoch.Add(time.Hour))
	assert.Equal(t, Epoch.Add(time.Hour), clock.Now())
}

func TestManualClock_OverlappingAdvanceKeepsLatest(t *testing.T) {
	clock := NewManualClock(time.Time{})
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	clock.AfterFunc(time.Second, func() {
		close(entered)
		<-release
	})
	go func() {
		clock.Advance(time.Second)
		close(done)
	}()
	<-entered

	clock.Advance(time.Minute)
	close(release)
	<-done
	assert.Equal(t, Epoch.Add(time.Minute), clock.Now())
}
