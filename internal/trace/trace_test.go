package trace

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"gones6502/internal/cpu"
)

// MockMemory is a flat read-only address space for building trace lines
type MockMemory struct {
	data  [0x10000]uint8
	reads int
}

func (m *MockMemory) Read(address uint16) uint8 {
	m.reads++
	return m.data[address]
}

func (m *MockMemory) SetBytes(address uint16, values ...uint8) {
	for i, v := range values {
		m.data[address+uint16(i)] = v
	}
}

// snapshotAt builds a fetch-time snapshot for the instruction at pc
func snapshotAt(mem *MockMemory, pc uint16, setup func(*cpu.Registers)) cpu.Snapshot {
	regs := cpu.NewRegisters()
	regs.PC = pc
	if setup != nil {
		setup(&regs)
	}
	return cpu.Snapshot{
		Registers:   regs,
		Instruction: cpu.Lookup(mem.data[pc]),
		Cycles:      7,
	}
}

// splitLine separates the disassembly column from the register column
func splitLine(t *testing.T, line string) (string, string) {
	t.Helper()
	if len(line) < 48 || line[48:50] != "A:" {
		t.Fatalf("Register column not at offset 48: %q", line)
	}
	return strings.TrimRight(line[:48], " "), line[48:]
}

func TestBuild_Disassembly(t *testing.T) {
	tests := []struct {
		name     string
		pc       uint16
		memory   map[uint16][]uint8
		setup    func(*cpu.Registers)
		expected string
	}{
		{
			name:     "JMP absolute shows target only",
			pc:       0xC000,
			memory:   map[uint16][]uint8{0xC000: {0x4C, 0xF5, 0xC5}},
			expected: "C000  4C F5 C5  JMP $C5F5",
		},
		{
			name:     "immediate",
			pc:       0xC5F5,
			memory:   map[uint16][]uint8{0xC5F5: {0xA2, 0x00}},
			expected: "C5F5  A2 00     LDX #$00",
		},
		{
			name:     "zero page shows stored value",
			pc:       0xC5F7,
			memory:   map[uint16][]uint8{0xC5F7: {0x86, 0x00}, 0x0000: {0x7F}},
			expected: "C5F7  86 00     STX $00 = 7F",
		},
		{
			name:     "implied",
			pc:       0xC72D,
			memory:   map[uint16][]uint8{0xC72D: {0xEA}},
			expected: "C72D  EA        NOP",
		},
		{
			name:     "accumulator",
			pc:       0xC800,
			memory:   map[uint16][]uint8{0xC800: {0x4A}},
			expected: "C800  4A        LSR A",
		},
		{
			name:     "relative shows branch target",
			pc:       0xC72A,
			memory:   map[uint16][]uint8{0xC72A: {0xB0, 0x04}},
			expected: "C72A  B0 04     BCS $C730",
		},
		{
			name:     "absolute with value",
			pc:       0xC900,
			memory:   map[uint16][]uint8{0xC900: {0xAD, 0x47, 0x06}, 0x0647: {0x55}},
			expected: "C900  AD 47 06  LDA $0647 = 55",
		},
		{
			name:     "zero page X wraps",
			pc:       0xCA00,
			memory:   map[uint16][]uint8{0xCA00: {0xB5, 0xFF}, 0x0001: {0x33}},
			setup:    func(r *cpu.Registers) { r.X = 0x02 },
			expected: "CA00  B5 FF     LDA $FF,X @ 01 = 33",
		},
		{
			name:     "absolute Y",
			pc:       0xCB00,
			memory:   map[uint16][]uint8{0xCB00: {0xB9, 0xFF, 0x06}, 0x0700: {0x12}},
			setup:    func(r *cpu.Registers) { r.Y = 0x01 },
			expected: "CB00  B9 FF 06  LDA $06FF,Y @ 0700 = 12",
		},
		{
			name: "indirect JMP page bug",
			pc:   0xDB7E,
			memory: map[uint16][]uint8{
				0xDB7E: {0x6C, 0xFF, 0x02},
				0x02FF: {0x00},
				0x0200: {0xA9},
				0x0300: {0x80},
			},
			expected: "DB7E  6C FF 02  JMP ($02FF) = A900",
		},
		{
			name: "indexed indirect shows full chain",
			pc:   0xD959,
			memory: map[uint16][]uint8{
				0xD959: {0xA1, 0x80},
				0x0082: {0x00, 0x02},
				0x0200: {0x5A},
			},
			setup:    func(r *cpu.Registers) { r.X = 0x02 },
			expected: "D959  A1 80     LDA ($80,X) @ 82 = 0200 = 5A",
		},
		{
			name: "indirect indexed shows full chain",
			pc:   0xD95F,
			memory: map[uint16][]uint8{
				0xD95F: {0xB1, 0x89},
				0x0089: {0x00, 0x03},
				0x0334: {0x89},
			},
			setup:    func(r *cpu.Registers) { r.Y = 0x34 },
			expected: "D95F  B1 89     LDA ($89),Y = 0300 @ 0334 = 89",
		},
		{
			name:     "undocumented opcode is starred",
			pc:       0xC6BD,
			memory:   map[uint16][]uint8{0xC6BD: {0x04, 0xA9}},
			expected: "C6BD  04 A9    *NOP $A9 = 00",
		},
		{
			name:     "undocumented SBC",
			pc:       0xE000,
			memory:   map[uint16][]uint8{0xE000: {0xEB, 0x40}},
			expected: "E000  EB 40    *SBC #$40",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := &MockMemory{}
			for addr, data := range tt.memory {
				mem.SetBytes(addr, data...)
			}

			entry := Build(snapshotAt(mem, tt.pc, tt.setup), mem)
			asm, _ := splitLine(t, entry.String())
			if asm != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, asm)
			}
		})
	}
}

func TestEntry_RegisterColumn(t *testing.T) {
	mem := &MockMemory{}
	mem.SetBytes(0xC000, 0xEA)
	snap := snapshotAt(mem, 0xC000, func(r *cpu.Registers) {
		r.A, r.X, r.Y, r.SP = 0x01, 0x02, 0x03, 0xFB
		r.SetStatus(0xE5)
	})

	_, regs := splitLine(t, Build(snap, mem).String())
	if regs != "A:01 X:02 Y:03 P:E5 SP:FB" {
		t.Errorf("Unexpected register column %q", regs)
	}
}

func TestEntry_WithCycles(t *testing.T) {
	mem := &MockMemory{}
	mem.SetBytes(0xC000, 0xEA)

	line := Build(snapshotAt(mem, 0xC000, nil), mem).WithCycles()
	if !strings.HasSuffix(line, "SP:FD CYC:7") {
		t.Errorf("Expected cycle column, got %q", line)
	}
}

func TestBuild_EntryHoldsCopies(t *testing.T) {
	mem := &MockMemory{}
	mem.SetBytes(0x0600, 0x91, 0x10) // STA ($10),Y
	mem.SetBytes(0x0010, 0x00, 0x02)

	snap := snapshotAt(mem, 0x0600, func(r *cpu.Registers) { r.A, r.Y = 0x55, 0x04 })
	entry := Build(snap, mem)
	want := entry.String()

	// Executing the instruction afterwards must not leak into the entry
	mem.SetBytes(0x0204, 0x55)
	mem.SetBytes(0x0600, 0xEA, 0xEA)
	snap.Registers.A = 0x00

	if got := entry.String(); got != want {
		t.Errorf("Entry changed after the fact:\n got  %q\n want %q", got, want)
	}
	if !strings.HasPrefix(want, "0600  91 10     STA ($10),Y = 0200 @ 0204 = 00") {
		t.Errorf("Unexpected line %q", want)
	}
}

func TestWriter_WriteEntryMatchesTrace(t *testing.T) {
	mem := &MockMemory{}
	mem.SetBytes(0xC000, 0xA9, 0x10)
	s := snapshotAt(mem, 0xC000, nil)

	var traced, written bytes.Buffer
	tw := NewWriter(&traced, mem)
	tw.Trace(s)
	ww := NewWriter(&written, mem)
	ww.WriteEntry(Build(s, mem))
	if err := tw.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := ww.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if traced.String() != written.String() {
		t.Errorf("Trace wrote %q, WriteEntry wrote %q", traced.String(), written.String())
	}
	if ww.Lines() != 1 || ww.Last()+"\n" != written.String() {
		t.Errorf("Lines=%d Last=%q after one entry", ww.Lines(), ww.Last())
	}
}

var errDiskFull = errors.New("disk full")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errDiskFull }

func TestWriter_FlushReportsWriteError(t *testing.T) {
	mem := &MockMemory{}
	mem.SetBytes(0xC000, 0xEA)

	w := NewWriter(failingWriter{}, mem)
	w.Trace(snapshotAt(mem, 0xC000, nil))
	if err := w.Flush(); !errors.Is(err, errDiskFull) {
		t.Errorf("Expected errDiskFull from Flush, got %v", err)
	}
	if w.Lines() != 1 {
		t.Errorf("Expected 1 line counted, got %d", w.Lines())
	}
}
