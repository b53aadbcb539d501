// internal/opc/device.go
package opc

import (
	"errors"
	"sync"
)

// Device drives one OPC over a Bus. Transactions are serialized; each one
// blocks for its full duration and cannot be cancelled.
type Device struct {
	mu  sync.Mutex
	bus Bus
	cfg Config
}

// New creates a Device with immutable configuration.
func New(bus Bus, opts ...Option) (*Device, error) {
	if bus == nil {
		return nil, errors.New("opc: bus required")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Device{bus: bus, cfg: cfg}, nil
}

// Policy returns the derivation policy.
func (d *Device) Policy() Policy { return d.cfg.Policy }

// Layout returns the frame layout.
func (d *Device) Layout() Layout { return d.cfg.Layout }

// Begin releases the select line, lets the peripheral settle, then powers
// it on.
func (d *Device) Begin() error {
	d.mu.Lock()
	err := d.bus.Release()
	d.mu.Unlock()
	if err != nil {
		return &BusError{Op: "release", Err: err}
	}

	d.cfg.Sleeper.Sleep(d.cfg.Timing.BeginSettle)
	return d.On()
}

// On powers the fan and laser on.
func (d *Device) On() error {
	if err := d.setPower(PowerOn); err != nil {
		return err
	}
	d.cfg.Sleeper.Sleep(d.cfg.Timing.PowerOnSettle)
	return nil
}

// Off powers the fan and laser off.
func (d *Device) Off() error {
	return d.setPower(PowerOff)
}

func (d *Device) setPower(state byte) error {
	return d.transact(CmdPower, func() error {
		if _, err := d.bus.Transfer(state); err != nil {
			return &BusError{Op: "power", Err: err}
		}
		return nil
	})
}

// Read requests one histogram and returns the derived reading.
// A degraded derivation is logged and still returned without error.
func (d *Device) Read() (Reading, error) {
	raw, err := d.readFrame()
	if err != nil {
		return Reading{}, err
	}

	f, err := Decode(raw, d.cfg.Layout)
	if err != nil {
		return Reading{}, &FrameError{Err: err}
	}

	r, derr := Derive(f, d.cfg.Policy)
	if derr != nil {
		d.cfg.Logger.WithError(derr).Warn("opc reading degraded, bins zeroed")
	}

	if d.cfg.Observer != nil {
		d.cfg.Observer.ObserveReading(r)
	}
	return r, nil
}

// readFrame returns a freshly allocated buffer owned by the caller.
func (d *Device) readFrame() ([]byte, error) {
	raw := make([]byte, d.cfg.Layout.Size)

	err := d.transact(CmdHistogram, func() error {
		d.cfg.Sleeper.Sleep(d.cfg.Timing.HistogramSettle)
		for i := range raw {
			b, err := d.bus.Transfer(ReadFiller)
			if err != nil {
				return &BusError{Op: "read", Err: err}
			}
			raw[i] = b
			d.cfg.Sleeper.Sleep(d.cfg.Timing.ByteGap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// transact runs handshake + payload. The select line is released on every
// exit path.
func (d *Device) transact(cmd byte, payload func() error) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	l := newLink(d.bus, d.cfg.Sleeper, d.cfg.Timing, d.cfg.Logger, cmd)
	defer func() {
		if rerr := l.release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	herr := l.run()
	if d.cfg.Observer != nil {
		d.cfg.Observer.ObserveHandshake(l.stats(herr))
	}
	if herr != nil {
		return herr
	}

	return payload()
}
