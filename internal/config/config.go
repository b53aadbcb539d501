// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Poll    PollConfig    `yaml:"poll"`
	Publish PublishConfig `yaml:"publish"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	ID        string    `yaml:"id"`
	Layout    string    `yaml:"layout"`     // frame layout name ("r2")
	BinUnits  string    `yaml:"bin_units"`  // "count" | "per_ml"
	PMSource  string    `yaml:"pm_source"`  // "frame" | "bins"
	PrintBins bool      `yaml:"print_bins"` // include bins in text records
	Bus       BusConfig `yaml:"bus"`

	// Handshake budget overrides (optional, 0 = firmware default)
	OuterAttempts    int `yaml:"outer_attempts"`
	ProbeAttempts    int `yaml:"probe_attempts"`
	BusyBackoffMs    int `yaml:"busy_backoff_ms"`
	DesyncRecoveryMs int `yaml:"desync_recovery_ms"`
}

type BusConfig struct {
	Simulate bool   `yaml:"simulate"`
	Port     string `yaml:"port"`
	CSPin    string `yaml:"cs_pin"`
	ClockHz  int64  `yaml:"clock_hz"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// ---- PUBLISH ----

type PublishConfig struct {
	Modbus *ModbusConfig `yaml:"modbus"`
	Redis  *RedisConfig  `yaml:"redis"`
	Record *RecordConfig `yaml:"record"`
}

type ModbusConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	Address   uint16 `yaml:"address"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// Device status block (optional, opt-in)
	StatusUnitID *uint8  `yaml:"status_unit_id"`
	StatusSlot   *uint16 `yaml:"status_slot"`
	DeviceName   string  `yaml:"device_name"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	History  int    `yaml:"history"` // readings kept per device list
}

type RecordConfig struct {
	Path string `yaml:"path"`
}

// ---- AMBIENT ----

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"` // "text" | "json"
	Output   string `yaml:"output"` // "stdout" | "file"
	FilePath string `yaml:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Load reads a YAML file over Defaults().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
