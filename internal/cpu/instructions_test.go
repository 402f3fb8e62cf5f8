package cpu

import "testing"

func TestInstructions_TableComplete(t *testing.T) {
	official := 0
	for i := 0; i < 256; i++ {
		inst := Lookup(uint8(i))
		if inst.exec == nil {
			t.Errorf("Opcode $%02X has no handler", i)
		}
		if inst.Opcode != uint8(i) {
			t.Errorf("Opcode $%02X stored as $%02X", i, inst.Opcode)
		}
		if inst.Name == "" {
			t.Errorf("Opcode $%02X has no mnemonic", i)
		}
		if inst.Official {
			official++
		}
	}
	if official != 151 {
		t.Errorf("Expected 151 official opcodes, got %d", official)
	}
}

func TestInstructions_LengthMatchesMode(t *testing.T) {
	lengths := map[AddressingMode]uint8{
		Implied:     1,
		Accumulator: 1,
		Immediate:   2,
		ZeroPage:    2,
		ZeroPageX:   2,
		ZeroPageY:   2,
		IndirectX:   2,
		IndirectY:   2,
		Relative:    2,
		Absolute:    3,
		AbsoluteX:   3,
		AbsoluteY:   3,
		Indirect:    3,
	}

	for i := 0; i < 256; i++ {
		inst := Lookup(uint8(i))
		if want := lengths[inst.Mode]; inst.Bytes != want {
			t.Errorf("$%02X %s %s: Bytes=%d, want %d", i, inst.Name, inst.Mode, inst.Bytes, want)
		}
		if inst.Cycles == 0 {
			t.Errorf("$%02X %s: zero cycles", i, inst.Name)
		}
	}
}

func TestInstructions_OwnsPC(t *testing.T) {
	expected := map[uint8]bool{
		0x10: true, 0x30: true, 0x50: true, 0x70: true,
		0x90: true, 0xB0: true, 0xD0: true, 0xF0: true,
		0x4C: true, 0x6C: true, 0x20: true, 0x60: true, 0x40: true, 0x00: true,
	}

	for i := 0; i < 256; i++ {
		inst := Lookup(uint8(i))
		if inst.OwnsPC != expected[uint8(i)] {
			t.Errorf("$%02X %s: OwnsPC=%v", i, inst.Name, inst.OwnsPC)
		}
	}
}

func TestInstructions_KnownEntries(t *testing.T) {
	tests := []struct {
		opcode   uint8
		name     string
		mode     AddressingMode
		official bool
	}{
		{0xA9, "LDA", Immediate, true},
		{0x6C, "JMP", Indirect, true},
		{0x0A, "ASL", Accumulator, true},
		{0xB6, "LDX", ZeroPageY, true},
		{0xEB, "SBC", Immediate, false},
		{0xA3, "LAX", IndirectX, false},
		{0xFF, "ISB", AbsoluteX, false},
		{0x04, "NOP", ZeroPage, false},
		{0x02, "JAM", Implied, false},
	}

	for _, tt := range tests {
		inst := Lookup(tt.opcode)
		if inst.Name != tt.name || inst.Mode != tt.mode || inst.Official != tt.official {
			t.Errorf("$%02X: got %s %s official=%v, want %s %s official=%v",
				tt.opcode, inst.Name, inst.Mode, inst.Official, tt.name, tt.mode, tt.official)
		}
	}
}
