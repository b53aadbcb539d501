// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/coffeye/xpod/internal/opc"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	d := cfg.Device
	if d.ID == "" {
		return fmt.Errorf("device: id required")
	}
	if _, ok := opc.LookupLayout(strings.ToLower(d.Layout)); !ok {
		return fmt.Errorf("device %q: unknown layout %q (known: %s)",
			d.ID, d.Layout, strings.Join(opc.LayoutNames(), ", "))
	}
	if _, err := opc.ParseBinUnits(d.BinUnits); err != nil {
		return fmt.Errorf("device %q: %w", d.ID, err)
	}
	if _, err := opc.ParsePMSource(d.PMSource); err != nil {
		return fmt.Errorf("device %q: %w", d.ID, err)
	}
	if d.OuterAttempts < 0 || d.ProbeAttempts < 0 || d.BusyBackoffMs < 0 || d.DesyncRecoveryMs < 0 {
		return fmt.Errorf("device %q: handshake overrides must be >= 0", d.ID)
	}

	if !d.Bus.Simulate {
		if d.Bus.Port == "" {
			return fmt.Errorf("device %q: bus.port required unless bus.simulate is set", d.ID)
		}
		if d.Bus.CSPin == "" {
			return fmt.Errorf("device %q: bus.cs_pin required unless bus.simulate is set", d.ID)
		}
	}
	if d.Bus.ClockHz < 0 {
		return fmt.Errorf("device %q: bus.clock_hz must be >= 0", d.ID)
	}

	// ------------------------------------------------------------
	// POLL
	// ------------------------------------------------------------

	if cfg.Poll.IntervalMs <= 0 {
		return fmt.Errorf("poll: interval_ms must be > 0")
	}

	// ------------------------------------------------------------
	// PUBLISH
	// ------------------------------------------------------------

	if m := cfg.Publish.Modbus; m != nil {
		if m.Endpoint == "" {
			return fmt.Errorf("publish.modbus: endpoint required")
		}
		if m.TimeoutMs < 0 {
			return fmt.Errorf("publish.modbus: timeout_ms must be >= 0")
		}

		// data block and status block share the endpoint
		end := uint32(m.Address) + uint32(ReadingRegisters) - 1
		if end > 0xFFFF {
			return fmt.Errorf("publish.modbus: address %d leaves no room for %d registers",
				m.Address, ReadingRegisters)
		}

		// device_name sanity (ASCII only)
		for i := 0; i < len(m.DeviceName); i++ {
			if m.DeviceName[i] > 0x7F {
				return fmt.Errorf("publish.modbus: device_name must contain ASCII characters only")
			}
		}

		// status is opt-in and needs both halves
		if (m.StatusSlot == nil) != (m.StatusUnitID == nil) {
			return fmt.Errorf("publish.modbus: status_slot and status_unit_id must be set together")
		}
		if m.StatusSlot != nil && *m.StatusUnitID == m.UnitID {
			start := uint32(*m.StatusSlot) * StatusRegisters
			stop := start + StatusRegisters - 1
			if !(stop < uint32(m.Address) || start > end) {
				return fmt.Errorf(
					"publish.modbus: status block %d-%d overlaps reading block %d-%d on unit %d",
					start, stop, m.Address, end, m.UnitID,
				)
			}
		}
	}

	if r := cfg.Publish.Redis; r != nil {
		if r.Addr == "" {
			return fmt.Errorf("publish.redis: addr required")
		}
		if r.Channel == "" {
			return fmt.Errorf("publish.redis: channel required")
		}
		if r.History < 0 {
			return fmt.Errorf("publish.redis: history must be >= 0")
		}
	}

	if rc := cfg.Publish.Record; rc != nil && rc.Path == "" {
		return fmt.Errorf("publish.record: path required")
	}

	// ------------------------------------------------------------
	// AMBIENT
	// ------------------------------------------------------------

	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", cfg.Log.Format)
	}
	switch strings.ToLower(cfg.Log.Output) {
	case "", "stdout":
	case "file":
		if cfg.Log.FilePath == "" {
			return fmt.Errorf("log: file_path required when output is file")
		}
	default:
		return fmt.Errorf("log: unknown output %q", cfg.Log.Output)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics: listen required when enabled")
	}

	return nil
}
