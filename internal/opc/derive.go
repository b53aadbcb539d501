// internal/opc/derive.go
package opc

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrDerivationDegraded marks a reading whose bins could not be converted.
var ErrDerivationDegraded = errors.New("opc: derivation degraded")

// BinUnits selects how raw bin counts are reported.
type BinUnits uint8

const (
	// BinsPerSecond passes counts through unscaled.
	BinsPerSecond BinUnits = iota
	// BinsPerML divides counts by sample period * flow rate.
	BinsPerML
)

func (u BinUnits) String() string {
	switch u {
	case BinsPerSecond:
		return "count"
	case BinsPerML:
		return "per_ml"
	default:
		return fmt.Sprintf("bin_units(%d)", uint8(u))
	}
}

// ParseBinUnits accepts "count" or "per_ml".
func ParseBinUnits(s string) (BinUnits, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "count":
		return BinsPerSecond, nil
	case "per_ml":
		return BinsPerML, nil
	default:
		return 0, fmt.Errorf("opc: unknown bin units %q", s)
	}
}

// PMSource selects where PM1.0/2.5/10 come from.
type PMSource uint8

const (
	// PMFromFrame uses the dedicated frame fields verbatim.
	PMFromFrame PMSource = iota
	// PMFromBins sums bin ranges.
	PMFromBins
)

func (s PMSource) String() string {
	switch s {
	case PMFromFrame:
		return "frame"
	case PMFromBins:
		return "bins"
	default:
		return fmt.Sprintf("pm_source(%d)", uint8(s))
	}
}

// ParsePMSource accepts "frame" or "bins".
func ParsePMSource(s string) (PMSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "frame":
		return PMFromFrame, nil
	case "bins":
		return PMFromBins, nil
	default:
		return 0, fmt.Errorf("opc: unknown pm source %q", s)
	}
}

// Policy is fixed at configuration time.
type Policy struct {
	Units BinUnits
	PM    PMSource
}

// Reading is one fully recomputed histogram reading. It is a value type;
// callers own every field.
type Reading struct {
	Counts       [NumBins]uint16
	Bins         [NumBins]float64
	SamplePeriod float64 // s
	FlowRate     float64 // ml/s
	PM1          float64 // µg/m³
	PM25         float64
	PM10         float64

	// Degraded is set when bins could not be converted and were zeroed.
	Degraded bool
}

// DerivationError describes why a reading was degraded.
type DerivationError struct {
	SamplePeriod float64
	FlowRate     float64
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("opc: cannot convert bins: sample_period=%v flow_rate=%v", e.SamplePeriod, e.FlowRate)
}

func (e *DerivationError) Unwrap() error { return ErrDerivationDegraded }

// Code implements the status error code contract.
func (e *DerivationError) Code() uint16 { return CodeDerivationDegraded }

// Derive converts a decoded frame into a Reading. A non-nil error is always
// a *DerivationError and the returned Reading is still usable with Degraded
// set. A non-finite sample period or flow rate degrades both policies; only
// per_ml zeroes the bins.
func Derive(f Frame, p Policy) (Reading, error) {
	r := Reading{
		Counts:       f.Counts,
		SamplePeriod: float64(f.SamplePeriod),
		FlowRate:     float64(f.FlowRate),
	}

	var derr error
	degrade := func() {
		r.Degraded = true
		derr = &DerivationError{SamplePeriod: r.SamplePeriod, FlowRate: r.FlowRate}
	}

	switch p.Units {
	case BinsPerML:
		div := r.SamplePeriod * r.FlowRate
		if div == 0 || !isFinite(div) {
			degrade()
			break
		}
		for i, c := range f.Counts {
			r.Bins[i] = float64(c) / div
		}
	default:
		for i, c := range f.Counts {
			r.Bins[i] = float64(c)
		}
		// raw bins stay usable; the period and flow do not
		if !isFinite(r.SamplePeriod) || !isFinite(r.FlowRate) {
			degrade()
		}
	}

	switch p.PM {
	case PMFromBins:
		r.PM1, r.PM25, r.PM10 = pmFromBins(r.Bins)
	default:
		r.PM1 = float64(f.PM1)
		r.PM25 = float64(f.PM25)
		r.PM10 = float64(f.PM10)
	}

	return r, derr
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// pmFromBins: PM1.0 = bins 0-2; PM2.5 = bins 0-5 plus half of bin 6;
// PM10 = bins 0-11.
func pmFromBins(b [NumBins]float64) (pm1, pm25, pm10 float64) {
	pm1 = sumBins(b, 0, 2)
	pm25 = sumBins(b, 0, 5) + b[6]/2
	pm10 = sumBins(b, 0, 11)
	return pm1, pm25, pm10
}

func sumBins(b [NumBins]float64, from, to int) float64 {
	var s float64
	for i := from; i <= to; i++ {
		s += b[i]
	}
	return s
}
