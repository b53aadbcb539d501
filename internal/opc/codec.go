// internal/opc/codec.go
package opc

import (
	"encoding/binary"
	"math"
)

// U16LE combines two bytes into an unsigned 16-bit value, low byte first.
func U16LE(low, high byte) uint16 {
	return uint16(high)<<8 | uint16(low)
}

// F32LE reinterprets four bytes, in the order received, as an IEEE-754
// single-precision float. NaN and Inf pass through unchanged.
func F32LE(b0, b1, b2, b3 byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32([]byte{b0, b1, b2, b3}))
}

func putU16LE(dst []byte, v uint16) {
	binary.LittleEndian.PutUint16(dst, v)
}

func putF32LE(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}
