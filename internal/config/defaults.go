// internal/config/defaults.go
package config

// Defaults returns the configuration of a simulated OPC-R2 logging every
// 15 seconds with no publishers.
func Defaults() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:       "opc-r2",
			Layout:   "r2",
			BinUnits: "count",
			PMSource: "frame",
			Bus: BusConfig{
				Simulate: true,
				Port:     "/dev/spidev0.0",
				CSPin:    "GPIO25",
				ClockHz:  300000,
			},
		},
		Poll: PollConfig{
			IntervalMs: 15000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9090",
		},
	}
}
