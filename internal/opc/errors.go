// internal/opc/errors.go
package opc

import (
	"errors"
	"fmt"
)

// Status error codes carried in the device status block.
const (
	CodeGeneric            uint16 = 1
	CodeHandshakeTimeout   uint16 = 0x10
	CodeBusDesync          uint16 = 0x11
	CodeBus                uint16 = 0x12
	CodeFrame              uint16 = 0x13
	CodeDerivationDegraded uint16 = 0x20
)

var (
	// ErrHandshakeTimeout: the outer retry budget was exhausted without Ready.
	ErrHandshakeTimeout = errors.New("opc: handshake timeout")

	// ErrBusDesync: the peripheral answered a probe with an unexpected status.
	ErrBusDesync = errors.New("opc: bus desynchronized")
)

// HandshakeError is returned when the link never reached Ready.
type HandshakeError struct {
	Command    byte
	Rounds     int
	Probes     int
	Busy       int
	Desyncs    int
	LastStatus byte

	// Cause is the outcome of the final round (a *BusDesyncError when the
	// last round desynced), may be nil.
	Cause error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf(
		"opc: handshake timeout: cmd=0x%02X rounds=%d probes=%d busy=%d desyncs=%d last_status=0x%02X",
		e.Command, e.Rounds, e.Probes, e.Busy, e.Desyncs, e.LastStatus,
	)
}

func (e *HandshakeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrHandshakeTimeout}
	}
	return []error{ErrHandshakeTimeout, e.Cause}
}

func (e *HandshakeError) Code() uint16 { return CodeHandshakeTimeout }

// BusDesyncError records an unexpected status byte seen while probing.
type BusDesyncError struct {
	Command byte
	Status  byte
}

func (e *BusDesyncError) Error() string {
	return fmt.Sprintf("opc: bus desync: cmd=0x%02X status=0x%02X", e.Command, e.Status)
}

func (e *BusDesyncError) Unwrap() error { return ErrBusDesync }

func (e *BusDesyncError) Code() uint16 { return CodeBusDesync }

// BusError wraps a failure of the underlying bus primitive.
type BusError struct {
	Op  string
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("opc: bus %s: %v", e.Op, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

func (e *BusError) Code() uint16 { return CodeBus }

// FrameError wraps a decode failure of a raw exchange.
type FrameError struct {
	Err error
}

func (e *FrameError) Error() string { return "opc: frame: " + e.Err.Error() }

func (e *FrameError) Unwrap() error { return e.Err }

func (e *FrameError) Code() uint16 { return CodeFrame }

// ErrorCode extracts a status code from err. Unknown errors map to
// CodeGeneric, nil to 0.
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}
	var c interface{ Code() uint16 }
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeGeneric
}
