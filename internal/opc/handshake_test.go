// internal/opc/handshake_test.go
package opc

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func runLink(bus Bus, sl *fakeSleeper) (*link, error) {
	l := newLink(bus, sl, DefaultTiming(), quietLogger(), CmdHistogram)
	err := l.run()
	return l, err
}

func TestHandshake_ReadyOnFifthProbe(t *testing.T) {
	s := &script{readyAt: 5, busy: true}
	bus := newScriptedBus(s)
	sl := &fakeSleeper{}

	l, err := runLink(bus, sl)
	if err != nil {
		t.Fatalf("handshake err=%v", err)
	}

	if l.probes != 5 || l.rounds != 1 {
		t.Fatalf("probes=%d rounds=%d want 5/1", l.probes, l.rounds)
	}
	if l.state != stateReady {
		t.Fatalf("state=%s want ready", l.state)
	}

	tm := DefaultTiming()
	if n := sl.count(tm.BusyBackoff) + sl.count(tm.DesyncRecovery); n != 0 {
		t.Fatalf("unexpected backoff delays: %d", n)
	}

	want := time.Duration(tm.FlushBytes)*tm.FlushGap + tm.FlushSettle + 4*tm.ProbeGap + tm.ReadySettle
	if l.waited != want || sl.total != want {
		t.Fatalf("waited=%v slept=%v want=%v", l.waited, sl.total, want)
	}

	// select stays asserted for the payload
	if !bus.selected || bus.selects != 1 || bus.releases != 0 {
		t.Fatalf("selected=%v selects=%d releases=%d", bus.selected, bus.selects, bus.releases)
	}
	if len(bus.unselected) != tm.FlushBytes {
		t.Fatalf("flush bytes=%d want=%d", len(bus.unselected), tm.FlushBytes)
	}
	for _, b := range bus.unselected {
		if b != ReadFiller {
			t.Fatalf("flush byte 0x%02X want 0x%02X", b, ReadFiller)
		}
	}
}

func TestHandshake_AlwaysBusyTimesOut(t *testing.T) {
	bus := newScriptedBus(&script{busy: true})
	sl := &fakeSleeper{}

	l, err := runLink(bus, sl)
	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("expected ErrHandshakeTimeout, got %v", err)
	}
	if errors.Is(err, ErrBusDesync) {
		t.Fatalf("busy timeout must not report desync")
	}

	var herr *HandshakeError
	if !errors.As(err, &herr) {
		t.Fatalf("expected *HandshakeError, got %T", err)
	}

	tm := DefaultTiming()
	if herr.Rounds != tm.OuterAttempts || herr.Busy != tm.OuterAttempts {
		t.Fatalf("rounds=%d busy=%d want=%d", herr.Rounds, herr.Busy, tm.OuterAttempts)
	}
	if herr.Probes != tm.OuterAttempts*tm.ProbeAttempts {
		t.Fatalf("probes=%d want=%d", herr.Probes, tm.OuterAttempts*tm.ProbeAttempts)
	}
	if herr.LastStatus != StatusBusy {
		t.Fatalf("last status=0x%02X", herr.LastStatus)
	}

	// no backoff after the final round
	if n := sl.count(tm.BusyBackoff); n != tm.OuterAttempts-1 {
		t.Fatalf("busy backoffs=%d want=%d", n, tm.OuterAttempts-1)
	}

	want := time.Duration(tm.FlushBytes)*tm.FlushGap + tm.FlushSettle +
		time.Duration(tm.OuterAttempts*(tm.ProbeAttempts-1))*tm.ProbeGap +
		time.Duration(tm.OuterAttempts-1)*tm.BusyBackoff
	if sl.total != want || l.waited != want {
		t.Fatalf("slept=%v waited=%v want=%v", sl.total, l.waited, want)
	}
	if bound := time.Duration(tm.OuterAttempts) * tm.BusyBackoff; sl.total > bound {
		t.Fatalf("slept=%v exceeds busy bound %v", sl.total, bound)
	}

	// busy never re-flushes
	if len(bus.unselected) != tm.FlushBytes {
		t.Fatalf("flush bytes=%d want=%d", len(bus.unselected), tm.FlushBytes)
	}
	if bus.selected || bus.selects != bus.releases {
		t.Fatalf("select unbalanced: selected=%v selects=%d releases=%d", bus.selected, bus.selects, bus.releases)
	}
}

func TestHandshake_BusyThenReady(t *testing.T) {
	tm := DefaultTiming()
	bus := newScriptedBus(&script{readyAt: tm.ProbeAttempts + 1, busy: true})
	sl := &fakeSleeper{}

	l, err := runLink(bus, sl)
	if err != nil {
		t.Fatalf("handshake err=%v", err)
	}
	if l.busy != 1 || l.rounds != 2 || l.desyncs != 0 {
		t.Fatalf("busy=%d rounds=%d desyncs=%d", l.busy, l.rounds, l.desyncs)
	}
	if n := sl.count(tm.BusyBackoff); n != 1 {
		t.Fatalf("busy backoffs=%d want=1", n)
	}
	if len(bus.unselected) != tm.FlushBytes {
		t.Fatalf("busy must not re-flush: flush bytes=%d", len(bus.unselected))
	}
	if bus.selects != 2 || bus.releases != 1 {
		t.Fatalf("selects=%d releases=%d want 2/1", bus.selects, bus.releases)
	}
}

func TestHandshake_DesyncRecoversFromFlushing(t *testing.T) {
	tm := DefaultTiming()
	bus := newScriptedBus(&script{readyAt: tm.ProbeAttempts + 1})
	sl := &fakeSleeper{}

	l, err := runLink(bus, sl)
	if err != nil {
		t.Fatalf("handshake err=%v", err)
	}
	if l.desyncs != 1 || l.busy != 0 || l.rounds != 2 {
		t.Fatalf("desyncs=%d busy=%d rounds=%d", l.desyncs, l.busy, l.rounds)
	}
	if n := sl.count(tm.DesyncRecovery); n != 1 {
		t.Fatalf("desync recoveries=%d want=1", n)
	}
	if bus.resets != 1 {
		t.Fatalf("bus resets=%d want=1", bus.resets)
	}
	if len(bus.unselected) != 2*tm.FlushBytes {
		t.Fatalf("flush bytes=%d want=%d", len(bus.unselected), 2*tm.FlushBytes)
	}
}

func TestHandshake_AlwaysDesyncedTimesOut(t *testing.T) {
	bus := newScriptedBus(&script{})
	sl := &fakeSleeper{}

	_, err := runLink(bus, sl)
	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("expected ErrHandshakeTimeout, got %v", err)
	}
	if !errors.Is(err, ErrBusDesync) {
		t.Fatalf("expected desync cause, got %v", err)
	}

	var derr *BusDesyncError
	if !errors.As(err, &derr) || derr.Status != 0x00 {
		t.Fatalf("expected *BusDesyncError with status 0x00, got %v", err)
	}

	tm := DefaultTiming()
	if n := sl.count(tm.DesyncRecovery); n != tm.OuterAttempts-1 {
		t.Fatalf("desync recoveries=%d want=%d", n, tm.OuterAttempts-1)
	}
	if ErrorCode(err) != CodeHandshakeTimeout {
		t.Fatalf("code=0x%X want=0x%X", ErrorCode(err), CodeHandshakeTimeout)
	}
}

func TestHandshake_SmallBudgets(t *testing.T) {
	tm := DefaultTiming()
	tm.OuterAttempts = 1
	tm.ProbeAttempts = 3

	bus := newScriptedBus(&script{busy: true})
	sl := &fakeSleeper{}
	l := newLink(bus, sl, tm, quietLogger(), CmdPower)

	err := l.run()
	var herr *HandshakeError
	if !errors.As(err, &herr) {
		t.Fatalf("expected *HandshakeError, got %v", err)
	}
	if herr.Probes != 3 || herr.Rounds != 1 || herr.Command != CmdPower {
		t.Fatalf("unexpected stats: %+v", herr)
	}
	if sl.count(tm.BusyBackoff) != 0 {
		t.Fatalf("single-round budget must not back off")
	}
}

func TestHandshake_BusErrorAborts(t *testing.T) {
	boom := errors.New("spi broken")
	bus := &fakeBus{respond: func(byte) (byte, error) { return 0, boom }}
	sl := &fakeSleeper{}

	l, err := runLink(bus, sl)
	var berr *BusError
	if !errors.As(err, &berr) || berr.Op != "probe" {
		t.Fatalf("expected probe *BusError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("cause lost: %v", err)
	}
	if l.probes != 0 {
		t.Fatalf("failed transfer counted as probe")
	}
}

func TestLinkState_String(t *testing.T) {
	states := map[linkState]string{
		stateIdle:     "idle",
		stateFlushing: "flushing",
		stateProbing:  "probing",
		stateReady:    "ready",
		stateBusy:     "busy",
		stateDesynced: "desynced",
		stateFailed:   "failed",
	}
	for s, want := range states {
		if s.String() != want {
			t.Fatalf("%d.String()=%q want=%q", s, s.String(), want)
		}
	}
}
