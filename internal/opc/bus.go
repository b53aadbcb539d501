// internal/opc/bus.go
package opc

import "time"

// Command and status bytes of the OPC-R2 SPI protocol.
const (
	CmdPower     byte = 0x03
	CmdHistogram byte = 0x30

	PowerOn    byte = 0x03
	PowerOff   byte = 0x00
	ReadFiller byte = 0x01 // clocked out while reading and flushing

	StatusReady byte = 0xF3
	StatusBusy  byte = 0x31
)

// Bus is the synchronous byte-exchange primitive the core drives.
// Transfer writes one byte and returns the byte clocked in at the same time.
// Select asserts the chip-select line, Release de-asserts it.
type Bus interface {
	Transfer(tx byte) (byte, error)
	Select() error
	Release() error
}

// Resetter is implemented by buses that can restart their transaction
// state; it is used during desync recovery.
type Resetter interface {
	Reset() error
}

// Sleeper blocks for a duration. Tests inject a recording fake.
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(d time.Duration)

func (f SleeperFunc) Sleep(d time.Duration) { f(d) }

// Timing holds every fixed delay and retry budget of the protocol.
type Timing struct {
	FlushBytes  int           // no-op probes sent before probing
	FlushGap    time.Duration // between flush probes
	FlushSettle time.Duration // after flushing, before select

	ProbeAttempts int           // inner budget per round
	ProbeGap      time.Duration // between probes
	OuterAttempts int           // rounds before Failed

	BusyBackoff    time.Duration
	DesyncRecovery time.Duration
	ReadySettle    time.Duration

	HistogramSettle time.Duration // after Ready, before the 64-byte read
	ByteGap         time.Duration // between frame bytes

	BeginSettle   time.Duration
	PowerOnSettle time.Duration
}

// DefaultTiming matches the OPC-R2 firmware requirements.
func DefaultTiming() Timing {
	return Timing{
		FlushBytes:  10,
		FlushGap:    10 * time.Microsecond,
		FlushSettle: 10 * time.Millisecond,

		ProbeAttempts: 20,
		ProbeGap:      5 * time.Millisecond,
		OuterAttempts: 20,

		BusyBackoff:    2 * time.Second,
		DesyncRecovery: 6 * time.Second,
		ReadySettle:    10 * time.Millisecond,

		HistogramSettle: 100 * time.Millisecond,
		ByteGap:         10 * time.Microsecond,

		BeginSettle:   1 * time.Second,
		PowerOnSettle: 2 * time.Second,
	}
}

// HandshakeStats summarizes one handshake, successful or not.
type HandshakeStats struct {
	Command byte
	Rounds  int
	Probes  int
	Busy    int
	Desyncs int
	Waited  time.Duration // sum of delays requested by the handshake
	Err     error
}

// Observer receives handshake and reading events. Implementations must not
// block.
type Observer interface {
	ObserveHandshake(s HandshakeStats)
	ObserveReading(r Reading)
}
