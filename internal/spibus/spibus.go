// internal/spibus/spibus.go

// Package spibus binds opc.Bus to a Linux SPI port and a GPIO chip-select
// line through periph.io. The hardware chip select of the port is disabled
// (spi.NoCS); the OPC needs select held across many single-byte transfers.
package spibus

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// DefaultClock is the OPC-R2 SPI clock.
const DefaultClock = 300 * physic.KiloHertz

// Config describes the physical link.
type Config struct {
	Port  string // spireg name, e.g. "/dev/spidev0.0" or "SPI0.0"
	CSPin string // gpioreg name, e.g. "GPIO25"
	Clock physic.Frequency
}

// Bus is an opc.Bus over periph.io. Mode 1, MSB first, 8 bits per word.
type Bus struct {
	mu   sync.Mutex
	cfg  Config
	port spi.PortCloser
	conn spi.Conn
	cs   gpio.PinOut

	tx [1]byte
	rx [1]byte
}

var initOnce struct {
	sync.Once
	err error
}

func hostInit() error {
	initOnce.Do(func() {
		_, initOnce.err = host.Init()
	})
	return initOnce.err
}

// Open initializes the host drivers, opens the port and drives CS high.
func Open(cfg Config) (*Bus, error) {
	if cfg.Port == "" {
		return nil, errors.New("spibus: port required")
	}
	if cfg.CSPin == "" {
		return nil, errors.New("spibus: cs pin required")
	}
	if cfg.Clock <= 0 {
		cfg.Clock = DefaultClock
	}

	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("spibus: host init: %w", err)
	}

	pin := gpioreg.ByName(cfg.CSPin)
	if pin == nil {
		return nil, fmt.Errorf("spibus: unknown gpio %q", cfg.CSPin)
	}
	if err := pin.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("spibus: cs %s: %w", cfg.CSPin, err)
	}

	b := &Bus{cfg: cfg, cs: pin}
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bus) connect() error {
	port, err := spireg.Open(b.cfg.Port)
	if err != nil {
		return fmt.Errorf("spibus: open %s: %w", b.cfg.Port, err)
	}

	conn, err := port.Connect(b.cfg.Clock, spi.Mode1|spi.NoCS, 8)
	if err != nil {
		_ = port.Close()
		return fmt.Errorf("spibus: connect %s: %w", b.cfg.Port, err)
	}

	b.port = port
	b.conn = conn
	return nil
}

// Transfer clocks one byte out and returns the byte clocked in.
func (b *Bus) Transfer(tx byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return 0, errors.New("spibus: not connected")
	}
	b.tx[0] = tx
	if err := b.conn.Tx(b.tx[:], b.rx[:]); err != nil {
		return 0, err
	}
	return b.rx[0], nil
}

// Select drives CS low.
func (b *Bus) Select() error {
	return b.cs.Out(gpio.Low)
}

// Release drives CS high.
func (b *Bus) Release() error {
	return b.cs.Out(gpio.High)
}

// Reset closes and reopens the SPI port.
func (b *Bus) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.port != nil {
		_ = b.port.Close()
		b.port, b.conn = nil, nil
	}
	return b.connect()
}

// Close releases CS and closes the port.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_ = b.cs.Out(gpio.High)
	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port, b.conn = nil, nil
	return err
}

// String identifies the link in logs.
func (b *Bus) String() string {
	return fmt.Sprintf("spi=%s cs=%s clock=%s", b.cfg.Port, b.cfg.CSPin, b.cfg.Clock)
}
