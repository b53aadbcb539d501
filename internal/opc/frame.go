// internal/opc/frame.go
package opc

import (
	"errors"
	"fmt"
)

// ErrFrameSize is returned when a raw buffer does not match the layout size.
var ErrFrameSize = errors.New("opc: frame size mismatch")

// Frame is the decoded content of one raw histogram exchange.
type Frame struct {
	Counts       [NumBins]uint16
	FlowRate     float32 // ml/s
	SamplePeriod float32 // s
	PM1          float32
	PM25         float32
	PM10         float32
}

// Decode maps a raw exchange buffer to a Frame using the given layout.
// The result shares no memory with raw.
func Decode(raw []byte, l Layout) (Frame, error) {
	if len(raw) != l.Size {
		return Frame{}, fmt.Errorf("%w: got=%d want=%d (layout %s)", ErrFrameSize, len(raw), l.Size, l.Name)
	}

	var f Frame
	for i, fld := range l.Bins {
		f.Counts[i] = U16LE(raw[fld.Offset], raw[fld.Offset+1])
	}

	f.FlowRate = f32Field(raw, l.FlowRate)
	f.SamplePeriod = f32Field(raw, l.SamplePeriod)
	f.PM1 = f32Field(raw, l.PM1)
	f.PM25 = f32Field(raw, l.PM25)
	f.PM10 = f32Field(raw, l.PM10)

	return f, nil
}

// Encode is the inverse of Decode; bytes not covered by the layout are zero.
func Encode(f Frame, l Layout) []byte {
	raw := make([]byte, l.Size)
	for i, fld := range l.Bins {
		putU16LE(raw[fld.Offset:], f.Counts[i])
	}
	putF32LE(raw[l.FlowRate.Offset:], f.FlowRate)
	putF32LE(raw[l.SamplePeriod.Offset:], f.SamplePeriod)
	putF32LE(raw[l.PM1.Offset:], f.PM1)
	putF32LE(raw[l.PM25.Offset:], f.PM25)
	putF32LE(raw[l.PM10.Offset:], f.PM10)
	return raw
}

func f32Field(raw []byte, fld Field) float32 {
	o := fld.Offset
	return F32LE(raw[o], raw[o+1], raw[o+2], raw[o+3])
}
