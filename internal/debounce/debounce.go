// Package debounce implements the one-shot debounce primitive of spec.md
// section 5: arm on every event, fire exactly once after the configured
// delay has elapsed with no further arming. This is a deliberate redesign
// from the teacher's domain (which has no equivalent) grounded instead on
// original_source/src/comms_debounce.rs's Debounce type, poll-based
// (on_event/check) rather than the source's tokio cancel-and-restart
// timer task, to fit a coordinator that is itself poll-driven by a
// heartbeat rather than able to spawn/cancel per-arm timer tasks.
package debounce

import (
	"sync"
	"time"
)

// Debouncer fires once per arm-then-quiet period of at least delay.
type Debouncer struct {
	delay time.Duration

	mu        sync.Mutex
	pending   bool
	lastEvent time.Time
}

// New creates a Debouncer that fires delay after the most recent OnEvent,
// provided no further OnEvent arrives in the meantime.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// OnEvent records now as the most recent arming event and marks the
// debouncer pending.
func (d *Debouncer) OnEvent(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = true
	d.lastEvent = now
}

// Check reports whether the debouncer should fire: pending is set and at
// least delay has elapsed since the last OnEvent. A true result clears
// pending, so each arm period fires at most once. Intended to be polled
// from the coordinator's heartbeat tick.
func (d *Debouncer) Check(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.pending {
		return false
	}
	if now.Sub(d.lastEvent) < d.delay {
		return false
	}
	d.pending = false
	return true
}
