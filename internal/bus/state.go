package bus

import (
	"gones6502/internal/cpu"
	"gones6502/internal/input"
)

// CPUState is an immutable copy of the system state, safe to hand to
// another goroutine
type CPUState struct {
	PC      uint16
	A, X, Y uint8
	SP      uint8
	P       uint8
	Flags   CPUFlags
	Cycles  uint64
	Steps   uint64
	State   cpu.State

	Controller uint8 // Byte returned by the last poll
	Direction  uint8 // Value at input.DirectionAddress

	ZeroPage [256]uint8
	Stack    [256]uint8

	// Recent trace lines, oldest first
	Recent []string
}

// CPUFlags represents CPU status flags
type CPUFlags struct {
	N, V, B, D, I, Z, C bool
}

// GetCPUState copies the current state. It must be called from the goroutine
// that steps the bus.
func (b *Bus) GetCPUState() CPUState {
	regs := b.CPU.Registers()

	s := CPUState{
		PC:     regs.PC,
		A:      regs.A,
		X:      regs.X,
		Y:      regs.Y,
		SP:     regs.SP,
		P:      regs.Status(),
		Cycles: b.CPU.Cycles(),
		Steps:  b.CPU.Steps(),
		State:  b.CPU.State(),
		Flags: CPUFlags{
			N: regs.IsSet(cpu.FlagNegative),
			V: regs.IsSet(cpu.FlagOverflow),
			B: regs.IsSet(cpu.FlagBreak),
			D: regs.IsSet(cpu.FlagDecimal),
			I: regs.IsSet(cpu.FlagInterrupt),
			Z: regs.IsSet(cpu.FlagZero),
			C: regs.IsSet(cpu.FlagCarry),
		},
		Controller: b.controller,
		Direction:  b.Memory.Read(input.DirectionAddress),
	}

	for i := range s.ZeroPage {
		s.ZeroPage[i] = b.Memory.Read(uint16(i))
		s.Stack[i] = b.Memory.Read(0x0100 | uint16(i))
	}

	for _, e := range b.GetExecutionLog() {
		s.Recent = append(s.Recent, e.String())
	}
	return s
}

// LastLine returns the most recent trace line, or "" before the first step
func (s CPUState) LastLine() string {
	if len(s.Recent) == 0 {
		return ""
	}
	return s.Recent[len(s.Recent)-1]
}

// FlagString renders the flags as "NV-BDIZC" with clear flags in lower case
func (f CPUFlags) FlagString() string {
	out := []byte("nv-bdizc")
	set := []bool{f.N, f.V, false, f.B, f.D, f.I, f.Z, f.C}
	for i, on := range set {
		if on {
			out[i] -= 'a' - 'A'
		}
	}
	return string(out)
}
