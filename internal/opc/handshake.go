// internal/opc/handshake.go
package opc

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// linkState is the handshake state machine:
//
//	Idle -> Flushing -> Probing -> {Ready, Busy, Desynced}
//	Busy     -> Probing   (after BusyBackoff, no re-flush)
//	Desynced -> Flushing  (after DesyncRecovery)
//	any round past OuterAttempts -> Failed
type linkState uint8

const (
	stateIdle linkState = iota
	stateFlushing
	stateProbing
	stateReady
	stateBusy
	stateDesynced
	stateFailed
)

func (s linkState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateFlushing:
		return "flushing"
	case stateProbing:
		return "probing"
	case stateReady:
		return "ready"
	case stateBusy:
		return "busy"
	case stateDesynced:
		return "desynced"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// link is one handshake attempt for one command byte. Every counter lives
// here and is discarded with the transaction.
type link struct {
	bus   Bus
	sleep Sleeper
	t     Timing
	log   logrus.FieldLogger

	cmd      byte
	state    linkState
	selected bool

	rounds  int
	probes  int
	busy    int
	desyncs int
	last    byte
	cause   error
	waited  time.Duration
}

func newLink(bus Bus, sleep Sleeper, t Timing, log logrus.FieldLogger, cmd byte) *link {
	return &link{
		bus:   bus,
		sleep: sleep,
		t:     t,
		log:   log.WithField("command", fmt.Sprintf("0x%02X", cmd)),
		cmd:   cmd,
		state: stateIdle,
	}
}

func (l *link) wait(d time.Duration) {
	if d <= 0 {
		return
	}
	l.waited += d
	l.sleep.Sleep(d)
}

func (l *link) assert() error {
	if l.selected {
		return nil
	}
	if err := l.bus.Select(); err != nil {
		return &BusError{Op: "select", Err: err}
	}
	l.selected = true
	return nil
}

// release is idempotent; it de-asserts select only if this link asserted it.
func (l *link) release() error {
	if !l.selected {
		return nil
	}
	l.selected = false
	if err := l.bus.Release(); err != nil {
		return &BusError{Op: "release", Err: err}
	}
	return nil
}

// run drives the state machine to Ready or Failed. On Ready the select line
// stays asserted for the command payload and the caller must release it.
// Bus errors abort immediately; select may still be held.
func (l *link) run() error {
	l.state = stateFlushing

	for {
		switch l.state {
		case stateFlushing:
			if err := l.flush(); err != nil {
				return err
			}
			l.state = stateProbing

		case stateProbing:
			next, err := l.probe()
			if err != nil {
				return err
			}
			l.state = next

		case stateBusy:
			l.busy++
			l.cause = nil
			if err := l.release(); err != nil {
				return err
			}
			if l.exhausted() {
				l.state = stateFailed
				continue
			}
			l.log.WithField("round", l.rounds).Debug("opc busy, backing off")
			l.wait(l.t.BusyBackoff)
			l.state = stateProbing

		case stateDesynced:
			l.desyncs++
			l.cause = &BusDesyncError{Command: l.cmd, Status: l.last}
			if err := l.release(); err != nil {
				return err
			}
			if l.exhausted() {
				l.state = stateFailed
				continue
			}
			l.log.WithFields(logrus.Fields{
				"round":  l.rounds,
				"status": fmt.Sprintf("0x%02X", l.last),
			}).Warn("opc bus desynchronized, recovering")
			if r, ok := l.bus.(Resetter); ok {
				if err := r.Reset(); err != nil {
					return &BusError{Op: "reset", Err: err}
				}
			}
			l.wait(l.t.DesyncRecovery)
			l.state = stateFlushing

		case stateReady:
			l.wait(l.t.ReadySettle)
			return nil

		case stateFailed:
			if err := l.release(); err != nil {
				return err
			}
			herr := &HandshakeError{
				Command:    l.cmd,
				Rounds:     l.rounds,
				Probes:     l.probes,
				Busy:       l.busy,
				Desyncs:    l.desyncs,
				LastStatus: l.last,
				Cause:      l.cause,
			}
			l.log.WithError(herr).Warn("opc handshake failed")
			return herr

		default:
			return fmt.Errorf("opc: handshake in unexpected state %s", l.state)
		}
	}
}

func (l *link) exhausted() bool {
	return l.rounds >= l.t.OuterAttempts
}

// flush clocks filler bytes with select released to drain any response
// left over from an aborted exchange.
func (l *link) flush() error {
	for i := 0; i < l.t.FlushBytes; i++ {
		if _, err := l.bus.Transfer(ReadFiller); err != nil {
			return &BusError{Op: "flush", Err: err}
		}
		l.wait(l.t.FlushGap)
	}
	l.wait(l.t.FlushSettle)
	return nil
}

// probe runs one round: assert select and send the command byte until the
// peripheral answers Ready or the inner budget runs out.
func (l *link) probe() (linkState, error) {
	l.rounds++

	if err := l.assert(); err != nil {
		return stateFailed, err
	}

	for i := 0; i < l.t.ProbeAttempts; i++ {
		if i > 0 {
			l.wait(l.t.ProbeGap)
		}
		reply, err := l.bus.Transfer(l.cmd)
		if err != nil {
			return stateFailed, &BusError{Op: "probe", Err: err}
		}
		l.probes++
		l.last = reply
		if reply == StatusReady {
			return stateReady, nil
		}
	}

	if l.last == StatusBusy {
		return stateBusy, nil
	}
	return stateDesynced, nil
}

func (l *link) stats(err error) HandshakeStats {
	return HandshakeStats{
		Command: l.cmd,
		Rounds:  l.rounds,
		Probes:  l.probes,
		Busy:    l.busy,
		Desyncs: l.desyncs,
		Waited:  l.waited,
		Err:     err,
	}
}
