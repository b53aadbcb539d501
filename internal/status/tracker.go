// internal/status/tracker.go
package status

import (
	"time"

	"github.com/coffeye/xpod/internal/poller"
)

// Tracker owns the device-level truth derived from poll results and a 1 Hz
// tick. It is not safe for concurrent use; one orchestrator goroutine owns it.
type Tracker struct {
	snap       Snapshot
	staleAfter time.Duration
	lastOK     time.Time
}

// NewTracker starts in HealthUnknown. staleAfter <= 0 disables staleness.
func NewTracker(staleAfter time.Duration) *Tracker {
	return &Tracker{
		snap:       Snapshot{Health: HealthUnknown},
		staleAfter: staleAfter,
	}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot { return t.snap }

// Apply folds one poll result into the snapshot and reports whether it changed.
func (t *Tracker) Apply(res poller.PollResult) bool {
	prev := t.snap

	switch {
	case res.Err != nil:
		t.snap.Health = HealthError
		t.snap.LastErrorCode = res.ErrorCode
		t.snap.FailCount++

	case res.Reading.Degraded:
		t.lastOK = res.At
		t.snap.Health = HealthDegraded
		t.snap.LastErrorCode = res.ErrorCode
		t.snap.ReadCount++
		t.snap.DegradedCount++

	default:
		// Recovery: error code and seconds-in-error reset when healthy.
		t.lastOK = res.At
		t.snap.Health = HealthOK
		t.snap.LastErrorCode = 0
		t.snap.SecondsInError = 0
		t.snap.ReadCount++
	}

	return t.snap != prev
}

// Disable marks the device powered off.
func (t *Tracker) Disable() bool {
	prev := t.snap
	t.snap.Health = HealthDisabled
	return t.snap != prev
}

// Tick advances seconds-in-error while not healthy and detects staleness.
// seconds_in_error saturates at 65535.
func (t *Tracker) Tick(now time.Time) bool {
	prev := t.snap

	if t.snap.Health == HealthOK && t.staleAfter > 0 && !t.lastOK.IsZero() &&
		now.Sub(t.lastOK) > t.staleAfter {
		t.snap.Health = HealthStale
	}

	if t.snap.Health != HealthOK && t.snap.Health != HealthDisabled &&
		t.snap.SecondsInError < 65535 {
		t.snap.SecondsInError++
	}

	return t.snap != prev
}
