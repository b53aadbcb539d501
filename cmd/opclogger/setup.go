// cmd/opclogger/setup.go
package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/coffeye/xpod/internal/config"
	"github.com/coffeye/xpod/internal/logging"
)

// loadConfig resolves defaults, the config file and flag overrides, then
// validates and normalizes the result.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg := config.Defaults()
	if flags.configPath != "" {
		var err error
		if cfg, err = config.Load(flags.configPath); err != nil {
			return nil, err
		}
	}

	if flags.simulate {
		cfg.Device.Bus.Simulate = true
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)
	return cfg, nil
}

func setup(flags *rootFlags) (*config.Config, *logrus.Logger, io.Closer, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, nil, err
	}

	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, closer, nil
}
