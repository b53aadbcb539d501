// internal/opc/opcsim/peripheral.go

// Package opcsim simulates an OPC-R2 peripheral on the byte level. It
// implements opc.Bus and opc.Resetter and is used by tests and by the
// logger's simulate mode.
package opcsim

import (
	"math/rand"
	"sync"

	"github.com/coffeye/xpod/internal/opc"
)

// junkStatus is what a desynchronized peripheral answers.
const junkStatus byte = 0x7E

type mode uint8

const (
	modeIdle mode = iota
	modePowerArg
	modeStream
)

// Stats counts bus activity seen by the peripheral.
type Stats struct {
	Selects  int
	Releases int
	Resets   int
	Probes   int
	Frames   int
}

// Source produces the next histogram frame.
type Source func() opc.Frame

// Peripheral is safe for concurrent use.
type Peripheral struct {
	mu     sync.Mutex
	layout opc.Layout
	source Source

	selected bool
	mode     mode
	frame    []byte
	pos      int
	powered  bool

	busy int
	junk int

	stats Stats
}

// Option configures a Peripheral.
type Option func(*Peripheral)

// WithLayout sets the frame layout the peripheral encodes.
func WithLayout(l opc.Layout) Option {
	return func(p *Peripheral) { p.layout = l }
}

// WithSource sets the frame generator.
func WithSource(s Source) Option {
	return func(p *Peripheral) {
		if s != nil {
			p.source = s
		}
	}
}

// New creates a powered-off peripheral with a random frame source.
func New(opts ...Option) *Peripheral {
	p := &Peripheral{
		layout: opc.LayoutR2,
		source: RandomSource(1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InjectBusy makes the next n probes answer busy.
func (p *Peripheral) InjectBusy(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy += n
}

// InjectJunk makes the next n probes answer an unexpected status byte.
func (p *Peripheral) InjectJunk(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.junk += n
}

// Powered reports the fan/laser state last commanded.
func (p *Peripheral) Powered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.powered
}

// Selected reports whether chip select is asserted.
func (p *Peripheral) Selected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// Stats returns a copy of the activity counters.
func (p *Peripheral) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// ---- opc.Bus ----

func (p *Peripheral) Select() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selected = true
	p.stats.Selects++
	return nil
}

func (p *Peripheral) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selected = false
	p.stats.Releases++
	return nil
}

func (p *Peripheral) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = modeIdle
	p.frame = nil
	p.pos = 0
	p.stats.Resets++
	return nil
}

func (p *Peripheral) Transfer(tx byte) (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Bytes clocked without select abort any pending response.
	if !p.selected {
		p.mode = modeIdle
		return 0x00, nil
	}

	switch p.mode {
	case modeStream:
		if tx == opc.ReadFiller && p.pos < len(p.frame) {
			b := p.frame[p.pos]
			p.pos++
			if p.pos == len(p.frame) {
				p.mode = modeIdle
			}
			return b, nil
		}
		p.mode = modeIdle
		return 0x00, nil

	case modePowerArg:
		p.powered = tx == opc.PowerOn
		p.mode = modeIdle
		return tx, nil
	}

	p.stats.Probes++

	if p.busy > 0 {
		p.busy--
		return opc.StatusBusy, nil
	}
	if p.junk > 0 {
		p.junk--
		return junkStatus, nil
	}

	switch tx {
	case opc.CmdPower:
		p.mode = modePowerArg
		return opc.StatusReady, nil
	case opc.CmdHistogram:
		p.frame = opc.Encode(p.source(), p.layout)
		p.pos = 0
		p.mode = modeStream
		p.stats.Frames++
		return opc.StatusReady, nil
	default:
		return 0x00, nil
	}
}

// ---- sources ----

// FixedSource always returns f.
func FixedSource(f opc.Frame) Source {
	return func() opc.Frame { return f }
}

// RandomSource returns plausible ambient histograms: counts fall off with
// particle size, sample period near 5.2 s and flow near 5.5 ml/s.
func RandomSource(seed int64) Source {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(seed))

	return func() opc.Frame {
		mu.Lock()
		defer mu.Unlock()

		var f opc.Frame
		scale := 400 + rng.Intn(200)
		for i := range f.Counts {
			f.Counts[i] = uint16(scale >> uint(i/2))
			if f.Counts[i] > 0 {
				f.Counts[i] = uint16(rng.Intn(int(f.Counts[i]) + 1))
			}
		}
		f.SamplePeriod = 5.2 + float32(rng.Float64()*0.2-0.1)
		f.FlowRate = 5.5 + float32(rng.Float64()*0.4-0.2)

		base := float32(f.Counts[0]+f.Counts[1]+f.Counts[2]) / 100
		f.PM1 = base
		f.PM25 = base * 1.6
		f.PM10 = base * 2.4
		return f
	}
}
