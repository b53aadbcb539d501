// internal/poller/builder.go
package poller

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"

	cfg "github.com/coffeye/xpod/internal/config"
	"github.com/coffeye/xpod/internal/opc"
	"github.com/coffeye/xpod/internal/opc/opcsim"
	"github.com/coffeye/xpod/internal/spibus"
)

// OpenBus opens the configured transport: the in-process simulator or a
// Linux SPI port with a GPIO chip-select.
func OpenBus(d cfg.DeviceConfig) (opc.Bus, func() error, error) {
	if d.Bus.Simulate {
		l, _ := opc.LookupLayout(d.Layout)
		sim := opcsim.New(
			opcsim.WithLayout(l),
			opcsim.WithSource(opcsim.RandomSource(time.Now().UnixNano())),
		)
		return sim, func() error { return nil }, nil
	}

	clock := spibus.DefaultClock
	if d.Bus.ClockHz > 0 {
		clock = physic.Frequency(d.Bus.ClockHz) * physic.Hertz
	}

	b, err := spibus.Open(spibus.Config{
		Port:  d.Bus.Port,
		CSPin: d.Bus.CSPin,
		Clock: clock,
	})
	if err != nil {
		return nil, nil, err
	}
	return b, b.Close, nil
}

// Timing applies the configured handshake overrides to the firmware defaults.
func Timing(d cfg.DeviceConfig) opc.Timing {
	t := opc.DefaultTiming()
	if d.OuterAttempts > 0 {
		t.OuterAttempts = d.OuterAttempts
	}
	if d.ProbeAttempts > 0 {
		t.ProbeAttempts = d.ProbeAttempts
	}
	if d.BusyBackoffMs > 0 {
		t.BusyBackoff = time.Duration(d.BusyBackoffMs) * time.Millisecond
	}
	if d.DesyncRecoveryMs > 0 {
		t.DesyncRecovery = time.Duration(d.DesyncRecoveryMs) * time.Millisecond
	}
	return t
}

// OpenDevice builds an opc.Device over the configured bus.
// Config must have passed Validate and Normalize.
func OpenDevice(d cfg.DeviceConfig, log logrus.FieldLogger, obs opc.Observer) (*opc.Device, func() error, error) {
	layout, ok := opc.LookupLayout(d.Layout)
	if !ok {
		return nil, nil, fmt.Errorf("poller: unknown layout %q", d.Layout)
	}
	units, err := opc.ParseBinUnits(d.BinUnits)
	if err != nil {
		return nil, nil, err
	}
	pm, err := opc.ParsePMSource(d.PMSource)
	if err != nil {
		return nil, nil, err
	}

	bus, closeBus, err := OpenBus(d)
	if err != nil {
		return nil, nil, err
	}

	dev, err := opc.New(bus,
		opc.WithLayout(layout),
		opc.WithBinUnits(units),
		opc.WithPMSource(pm),
		opc.WithTiming(Timing(d)),
		opc.WithLogger(log.WithField("device", d.ID)),
		opc.WithObserver(obs),
	)
	if err != nil {
		_ = closeBus()
		return nil, nil, err
	}
	return dev, closeBus, nil
}

// Build constructs a Poller around a freshly opened device.
// The device is returned unpowered; the caller decides when to Begin.
func Build(c *cfg.Config, log logrus.FieldLogger, obs opc.Observer) (*Poller, *opc.Device, func() error, error) {
	dev, closeBus, err := OpenDevice(c.Device, log, obs)
	if err != nil {
		return nil, nil, nil, err
	}

	p, err := New(
		Config{
			UnitID:   c.Device.ID,
			Interval: time.Duration(c.Poll.IntervalMs) * time.Millisecond,
		},
		dev,
	)
	if err != nil {
		_ = closeBus()
		return nil, nil, nil, err
	}

	return p, dev, closeBus, nil
}
