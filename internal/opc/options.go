// internal/opc/options.go
package opc

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the Device configuration. It is fixed once New returns.
type Config struct {
	Layout   Layout
	Policy   Policy
	Timing   Timing
	Sleeper  Sleeper
	Logger   logrus.FieldLogger
	Observer Observer
}

func defaultConfig() Config {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	return Config{
		Layout:  LayoutR2,
		Policy:  Policy{Units: BinsPerSecond, PM: PMFromFrame},
		Timing:  DefaultTiming(),
		Sleeper: SleeperFunc(time.Sleep),
		Logger:  discard,
	}
}

func (c Config) validate() error {
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if c.Timing.ProbeAttempts < 1 {
		return errors.New("opc: probe attempts must be >= 1")
	}
	if c.Timing.OuterAttempts < 1 {
		return errors.New("opc: outer attempts must be >= 1")
	}
	if c.Timing.FlushBytes < 0 {
		return fmt.Errorf("opc: flush bytes must be >= 0, got %d", c.Timing.FlushBytes)
	}
	return nil
}

// Option configures a Device.
type Option func(*Config)

// WithLayout selects the frame layout.
func WithLayout(l Layout) Option {
	return func(c *Config) { c.Layout = l }
}

// WithBinUnits selects the bin conversion policy.
func WithBinUnits(u BinUnits) Option {
	return func(c *Config) { c.Policy.Units = u }
}

// WithPMSource selects where PM values come from.
func WithPMSource(s PMSource) Option {
	return func(c *Config) { c.Policy.PM = s }
}

// WithTiming replaces the protocol delays and retry budgets.
func WithTiming(t Timing) Option {
	return func(c *Config) { c.Timing = t }
}

// WithSleeper injects the delay primitive.
func WithSleeper(s Sleeper) Option {
	return func(c *Config) {
		if s != nil {
			c.Sleeper = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithObserver registers an observer for handshake and reading events.
func WithObserver(o Observer) Option {
	return func(c *Config) { c.Observer = o }
}
