// internal/opc/device_test.go
package opc

import (
	"errors"
	"testing"
)

func histogramFrame(bin0 uint16, period, flow float32) []byte {
	f := Frame{SamplePeriod: period, FlowRate: flow, PM1: 1, PM25: 2, PM10: 3}
	f.Counts[0] = bin0
	return Encode(f, LayoutR2)
}

func newTestDevice(t *testing.T, bus Bus, sl *fakeSleeper, opts ...Option) *Device {
	t.Helper()
	opts = append([]Option{WithSleeper(sl), WithLogger(quietLogger())}, opts...)
	d, err := New(bus, opts...)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return d
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("expected error for nil bus")
	}

	bad := LayoutR2
	bad.Size = 32
	if _, err := New(&fakeBus{}, WithLayout(bad)); err == nil {
		t.Fatalf("expected error for invalid layout")
	}

	tm := DefaultTiming()
	tm.ProbeAttempts = 0
	if _, err := New(&fakeBus{}, WithTiming(tm)); err == nil {
		t.Fatalf("expected error for zero probe budget")
	}
}

func TestDeviceRead_Policies(t *testing.T) {
	for _, units := range []BinUnits{BinsPerSecond, BinsPerML} {
		t.Run(units.String(), func(t *testing.T) {
			s := &script{readyAt: 1, frame: histogramFrame(100, 1.0, 1.0)}
			bus := newScriptedBus(s)
			d := newTestDevice(t, bus, &fakeSleeper{}, WithBinUnits(units))

			r, err := d.Read()
			if err != nil {
				t.Fatalf("Read() err=%v", err)
			}
			if r.Bins[0] != 100 || r.Counts[0] != 100 {
				t.Fatalf("bin0=%v count0=%d want 100", r.Bins[0], r.Counts[0])
			}
			if r.SamplePeriod != 1 || r.FlowRate != 1 {
				t.Fatalf("period=%v flow=%v", r.SamplePeriod, r.FlowRate)
			}
			if r.PM1 != 1 || r.PM25 != 2 || r.PM10 != 3 {
				t.Fatalf("pm=%v/%v/%v", r.PM1, r.PM25, r.PM10)
			}
		})
	}
}

func TestDeviceRead_ExchangeShape(t *testing.T) {
	s := &script{readyAt: 1, frame: histogramFrame(1, 1, 1)}
	bus := newScriptedBus(s)
	sl := &fakeSleeper{}
	d := newTestDevice(t, bus, sl)

	if _, err := d.Read(); err != nil {
		t.Fatalf("Read() err=%v", err)
	}

	// one probe + 64 filler bytes while selected
	if len(bus.sent) != 1+LayoutR2.Size {
		t.Fatalf("selected transfers=%d want=%d", len(bus.sent), 1+LayoutR2.Size)
	}
	if bus.sent[0] != CmdHistogram {
		t.Fatalf("probe byte=0x%02X want=0x%02X", bus.sent[0], CmdHistogram)
	}
	for i, b := range bus.sent[1:] {
		if b != ReadFiller {
			t.Fatalf("frame transfer %d sent 0x%02X", i, b)
		}
	}

	tm := DefaultTiming()
	if n := sl.count(tm.HistogramSettle); n != 1 {
		t.Fatalf("histogram settle count=%d want=1", n)
	}
	if n := sl.count(tm.ByteGap); n < LayoutR2.Size {
		t.Fatalf("byte gaps=%d want>=%d", n, LayoutR2.Size)
	}
	if bus.selected || bus.selects != 1 || bus.releases != 1 {
		t.Fatalf("selected=%v selects=%d releases=%d", bus.selected, bus.selects, bus.releases)
	}
}

func TestDeviceRead_DegradedIsNotAnError(t *testing.T) {
	s := &script{readyAt: 1, frame: histogramFrame(100, 0, 1)}
	d := newTestDevice(t, newScriptedBus(s), &fakeSleeper{},
		WithBinUnits(BinsPerML), WithPMSource(PMFromBins))

	r, err := d.Read()
	if err != nil {
		t.Fatalf("Read() err=%v", err)
	}
	if !r.Degraded {
		t.Fatalf("reading not degraded")
	}
	if r.Bins[0] != 0 || r.Counts[0] != 100 {
		t.Fatalf("bin0=%v count0=%d", r.Bins[0], r.Counts[0])
	}
}

func TestDeviceRead_HandshakeTimeout(t *testing.T) {
	bus := newScriptedBus(&script{busy: true})
	obs := &recordingObserver{}
	d := newTestDevice(t, bus, &fakeSleeper{}, WithObserver(obs))

	r, err := d.Read()
	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("expected ErrHandshakeTimeout, got %v", err)
	}
	if r != (Reading{}) {
		t.Fatalf("expected zero reading on failure")
	}
	if bus.selected || bus.selects != bus.releases {
		t.Fatalf("select unbalanced: selects=%d releases=%d", bus.selects, bus.releases)
	}
	if len(obs.handshakes) != 1 || obs.handshakes[0].Err == nil {
		t.Fatalf("observer stats=%+v", obs.handshakes)
	}
	if len(obs.readings) != 0 {
		t.Fatalf("observer got readings on failure")
	}
}

func TestDeviceRead_BusErrorReleasesSelect(t *testing.T) {
	boom := errors.New("miso stuck")
	s := &script{readyAt: 1, frame: histogramFrame(1, 1, 1)}
	bus := &fakeBus{}
	bus.respond = func(tx byte) (byte, error) {
		if s.ready {
			return 0, boom
		}
		return s.respond(tx)
	}
	d := newTestDevice(t, bus, &fakeSleeper{})

	_, err := d.Read()
	var berr *BusError
	if !errors.As(err, &berr) || berr.Op != "read" {
		t.Fatalf("expected read *BusError, got %v", err)
	}
	if bus.selected || bus.releases != 1 {
		t.Fatalf("select not released: selected=%v releases=%d", bus.selected, bus.releases)
	}
	if ErrorCode(err) != CodeBus {
		t.Fatalf("code=0x%X want=0x%X", ErrorCode(err), CodeBus)
	}
}

func TestDeviceRead_ReleaseErrorSurfaced(t *testing.T) {
	s := &script{readyAt: 1, frame: histogramFrame(1, 1, 1)}
	bus := newScriptedBus(s)
	bus.releaseErr = errors.New("gpio write failed")
	d := newTestDevice(t, bus, &fakeSleeper{})

	_, err := d.Read()
	var berr *BusError
	if !errors.As(err, &berr) || berr.Op != "release" {
		t.Fatalf("expected release *BusError, got %v", err)
	}
}

func TestDeviceRead_ObserverStats(t *testing.T) {
	s := &script{readyAt: 5, busy: true, frame: histogramFrame(3, 1, 1)}
	obs := &recordingObserver{}
	d := newTestDevice(t, newScriptedBus(s), &fakeSleeper{}, WithObserver(obs))

	if _, err := d.Read(); err != nil {
		t.Fatalf("Read() err=%v", err)
	}
	if len(obs.handshakes) != 1 {
		t.Fatalf("handshakes observed=%d", len(obs.handshakes))
	}
	st := obs.handshakes[0]
	if st.Probes != 5 || st.Busy != 0 || st.Desyncs != 0 || st.Err != nil || st.Command != CmdHistogram {
		t.Fatalf("stats=%+v", st)
	}
	if len(obs.readings) != 1 || obs.readings[0].Counts[0] != 3 {
		t.Fatalf("readings=%+v", obs.readings)
	}
}

func TestDevicePower(t *testing.T) {
	tests := []struct {
		name  string
		call  func(d *Device) error
		state byte
	}{
		{"on", (*Device).On, PowerOn},
		{"off", (*Device).Off, PowerOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newScriptedBus(&script{readyAt: 1})
			sl := &fakeSleeper{}
			d := newTestDevice(t, bus, sl)

			if err := tt.call(d); err != nil {
				t.Fatalf("%s err=%v", tt.name, err)
			}
			if len(bus.sent) != 2 || bus.sent[0] != CmdPower || bus.sent[1] != tt.state {
				t.Fatalf("sent=% x", bus.sent)
			}
			if bus.selected || bus.selects != 1 || bus.releases != 1 {
				t.Fatalf("selects=%d releases=%d", bus.selects, bus.releases)
			}

			settle := sl.count(DefaultTiming().PowerOnSettle)
			if tt.state == PowerOn && settle != 1 {
				t.Fatalf("power-on settle count=%d", settle)
			}
			if tt.state == PowerOff && settle != 0 {
				t.Fatalf("power-off must not settle")
			}
		})
	}
}

func TestDevicePower_HandshakeFailureSendsNothing(t *testing.T) {
	tm := DefaultTiming()
	tm.OuterAttempts = 2
	bus := newScriptedBus(&script{busy: true})
	d := newTestDevice(t, bus, &fakeSleeper{}, WithTiming(tm))

	if err := d.On(); !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("expected ErrHandshakeTimeout, got %v", err)
	}
	for _, b := range bus.sent {
		if b != CmdPower {
			t.Fatalf("payload byte 0x%02X sent after failed handshake", b)
		}
	}
}

func TestDeviceBegin(t *testing.T) {
	bus := newScriptedBus(&script{readyAt: 1})
	sl := &fakeSleeper{}
	d := newTestDevice(t, bus, sl)

	if err := d.Begin(); err != nil {
		t.Fatalf("Begin() err=%v", err)
	}

	tm := DefaultTiming()
	if len(sl.calls) == 0 || sl.calls[0] != tm.BeginSettle {
		t.Fatalf("first delay=%v want=%v", sl.calls, tm.BeginSettle)
	}
	// initial release plus one per transaction
	if bus.releases != 2 || bus.selects != 1 {
		t.Fatalf("selects=%d releases=%d", bus.selects, bus.releases)
	}
	if bus.sent[len(bus.sent)-1] != PowerOn {
		t.Fatalf("last byte=0x%02X want power on", bus.sent[len(bus.sent)-1])
	}
}
