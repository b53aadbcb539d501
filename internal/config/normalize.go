// internal/config/normalize.go
package config

import "strings"

// Register block sizes shared by validation and the writer.
const (
	// ReadingRegisters: 16 counts + 16 float bins + 5 floats + flags.
	ReadingRegisters = 16 + 16*2 + 5*2 + 1

	// StatusRegisters is the fixed size of one device status block.
	StatusRegisters = 20

	// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
	DeviceNameMaxChars = 16
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	d := &cfg.Device
	d.Layout = strings.ToLower(strings.TrimSpace(d.Layout))
	d.BinUnits = strings.ToLower(strings.TrimSpace(d.BinUnits))
	d.PMSource = strings.ToLower(strings.TrimSpace(d.PMSource))

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	cfg.Log.Output = strings.ToLower(cfg.Log.Output)

	if m := cfg.Publish.Modbus; m != nil {
		// device name defaults to the device id, truncated to 16 ASCII chars
		if m.DeviceName == "" {
			m.DeviceName = d.ID
		}
		if len(m.DeviceName) > DeviceNameMaxChars {
			m.DeviceName = m.DeviceName[:DeviceNameMaxChars]
		}
		if m.TimeoutMs == 0 {
			m.TimeoutMs = 1000
		}
	}

	if r := cfg.Publish.Redis; r != nil && r.History == 0 {
		r.History = 1000
	}
}
