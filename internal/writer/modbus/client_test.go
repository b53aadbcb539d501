// internal/writer/modbus/client_test.go
package modbus

import "testing"

func TestPackRegisters_BigEndian(t *testing.T) {
	got := packRegisters([]uint16{0x1234, 0x00FF})
	want := []byte{0x12, 0x34, 0x00, 0xFF}
	if string(got) != string(want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

func TestChunk(t *testing.T) {
	regs := make([]uint16, 250)
	for i := range regs {
		regs[i] = uint16(i)
	}

	blocks := chunk(100, regs, MaxRegistersPerWrite)
	if len(blocks) != 3 {
		t.Fatalf("blocks = %d", len(blocks))
	}
	if blocks[1].addr != 100+MaxRegistersPerWrite || blocks[1].regs[0] != MaxRegistersPerWrite {
		t.Fatalf("second block = addr %d first %d", blocks[1].addr, blocks[1].regs[0])
	}
	if len(blocks[2].regs) != 250-2*MaxRegistersPerWrite {
		t.Fatalf("tail = %d", len(blocks[2].regs))
	}
}

func TestNewEndpointClient_RequiresEndpoint(t *testing.T) {
	if _, err := NewEndpointClient(Config{}); err == nil {
		t.Fatalf("expected error")
	}
}
