// internal/writer/registers.go
package writer

import (
	"math"

	"github.com/coffeye/xpod/internal/opc"
)

// Reading block layout, in registers from the plan address.
const (
	RegCounts       = 0
	RegBins         = RegCounts + opc.NumBins
	RegSamplePeriod = RegBins + 2*opc.NumBins
	RegFlowRate     = RegSamplePeriod + 2
	RegPM1          = RegFlowRate + 2
	RegPM25         = RegPM1 + 2
	RegPM10         = RegPM25 + 2
	RegFlags        = RegPM10 + 2

	ReadingRegisters = RegFlags + 1
)

// FlagDegraded is bit 0 of the flags register.
const FlagDegraded uint16 = 1 << 0

// EncodeReading lays out a reading as holding registers. Floats are IEEE-754
// single precision, high word first.
func EncodeReading(r opc.Reading) []uint16 {
	regs := make([]uint16, ReadingRegisters)

	copy(regs[RegCounts:], r.Counts[:])
	for i, v := range r.Bins {
		putFloat(regs, RegBins+2*i, v)
	}
	putFloat(regs, RegSamplePeriod, r.SamplePeriod)
	putFloat(regs, RegFlowRate, r.FlowRate)
	putFloat(regs, RegPM1, r.PM1)
	putFloat(regs, RegPM25, r.PM25)
	putFloat(regs, RegPM10, r.PM10)

	if r.Degraded {
		regs[RegFlags] |= FlagDegraded
	}
	return regs
}

func putFloat(regs []uint16, at int, v float64) {
	bits := math.Float32bits(float32(v))
	regs[at] = uint16(bits >> 16)
	regs[at+1] = uint16(bits)
}
