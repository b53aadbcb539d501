// internal/opc/fakes_test.go
package opc

import (
	"time"
)

// ---- fake bus ----

type fakeBus struct {
	selected bool
	selects  int
	releases int
	resets   int

	respond func(tx byte) (byte, error)

	unselected []byte // sent with select released
	sent       []byte // sent with select asserted

	releaseErr error
}

func (b *fakeBus) Transfer(tx byte) (byte, error) {
	if !b.selected {
		b.unselected = append(b.unselected, tx)
		return 0x00, nil
	}
	b.sent = append(b.sent, tx)
	return b.respond(tx)
}

func (b *fakeBus) Select() error {
	b.selected = true
	b.selects++
	return nil
}

func (b *fakeBus) Release() error {
	b.selected = false
	b.releases++
	return b.releaseErr
}

func (b *fakeBus) Reset() error {
	b.resets++
	return nil
}

// ---- scripted peripheral ----

// script answers probes with busy (or junk) until probe number readyAt,
// then streams frame bytes for filler transfers.
type script struct {
	readyAt int // 1-based; 0 = never ready
	busy    bool
	frame   []byte

	probes int
	ready  bool
	pos    int
}

func (s *script) respond(tx byte) (byte, error) {
	if s.ready {
		if tx == ReadFiller && s.pos < len(s.frame) {
			b := s.frame[s.pos]
			s.pos++
			return b, nil
		}
		return 0x00, nil
	}

	s.probes++
	if s.readyAt > 0 && s.probes == s.readyAt {
		s.ready = true
		return StatusReady, nil
	}
	if s.busy {
		return StatusBusy, nil
	}
	return 0x00, nil
}

func newScriptedBus(s *script) *fakeBus {
	return &fakeBus{respond: s.respond}
}

// ---- fake sleeper ----

type fakeSleeper struct {
	total time.Duration
	calls []time.Duration
}

func (s *fakeSleeper) Sleep(d time.Duration) {
	s.total += d
	s.calls = append(s.calls, d)
}

func (s *fakeSleeper) count(d time.Duration) int {
	n := 0
	for _, c := range s.calls {
		if c == d {
			n++
		}
	}
	return n
}

// ---- observer ----

type recordingObserver struct {
	handshakes []HandshakeStats
	readings   []Reading
}

func (o *recordingObserver) ObserveHandshake(s HandshakeStats) { o.handshakes = append(o.handshakes, s) }
func (o *recordingObserver) ObserveReading(r Reading)          { o.readings = append(o.readings, r) }
