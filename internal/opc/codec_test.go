// internal/opc/codec_test.go
package opc

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestU16LE_AllPairs(t *testing.T) {
	for lo := 0; lo < 256; lo++ {
		for hi := 0; hi < 256; hi++ {
			got := U16LE(byte(lo), byte(hi))
			want := uint16(lo + 256*hi)
			if got != want {
				t.Fatalf("U16LE(%d,%d)=%d want=%d", lo, hi, got, want)
			}
		}
	}
}

func TestF32LE_MatchesBinaryDecoding(t *testing.T) {
	values := []float32{
		0, 1, -1, 5.2, 3.14159, 1e-38, 3.4e38,
		float32(math.Inf(1)), float32(math.Inf(-1)),
	}

	for _, v := range values {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))

		got := F32LE(b[0], b[1], b[2], b[3])
		want := math.Float32frombits(binary.LittleEndian.Uint32(b[:]))
		if math.Float32bits(got) != math.Float32bits(want) {
			t.Fatalf("F32LE(% x)=%v want=%v", b, got, want)
		}
	}
}

func TestF32LE_PassesNaNThrough(t *testing.T) {
	// quiet NaN, little-endian
	got := F32LE(0x00, 0x00, 0xC0, 0x7F)
	if !math.IsNaN(float64(got)) {
		t.Fatalf("expected NaN, got %v", got)
	}
}

func TestF32LE_BitPatternSweep(t *testing.T) {
	for bits := uint32(0); bits < math.MaxUint32-(1<<20); bits += 1 << 20 {
		if bits&0x7F800000 == 0x7F800000 {
			continue // NaN payloads are not guaranteed across platforms
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], bits)
		got := math.Float32bits(F32LE(b[0], b[1], b[2], b[3]))
		if got != bits {
			t.Fatalf("bits 0x%08X decoded to 0x%08X", bits, got)
		}
	}
}
