// internal/poller/types.go
package poller

import (
	"time"

	"github.com/coffeye/xpod/internal/opc"
)

// Sampler is the one operation the poller needs from a device.
type Sampler interface {
	Read() (opc.Reading, error)
}

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	UnitID   string
	At       time.Time
	Duration time.Duration // wall time of the read transaction

	// ErrorCode is opc.ErrorCode(Err); 0 means success.
	ErrorCode uint16

	Reading opc.Reading // zero when Err != nil
	Err     error       // non-nil means the poll cycle failed
}

// OK reports whether the cycle produced a reading.
func (r PollResult) OK() bool { return r.Err == nil }
