// Package trace renders nestest-style per-instruction trace lines.
package trace

import (
	"fmt"
	"strings"

	"gones6502/internal/cpu"
)

// Entry is one trace line's worth of state, captured at the fetch of an
// instruction. It holds only copies.
type Entry struct {
	PC        uint16
	Bytes     []uint8 // Opcode followed by operand bytes
	Mnemonic  string  // Prefixed with '*' for undocumented opcodes
	Operand   string  // Disassembled operand with resolved addresses
	Registers cpu.Registers
	Cycles    uint64
}

// Build renders the instruction in snapshot s. It only reads mem, and must
// be called before the instruction executes.
func Build(s cpu.Snapshot, mem cpu.Reader) Entry {
	regs := s.Registers
	pc := regs.PC

	inst := s.Instruction
	if inst == nil {
		inst = cpu.Lookup(mem.Read(pc))
	}

	raw := make([]uint8, inst.Bytes)
	for i := range raw {
		raw[i] = mem.Read(pc + uint16(i))
	}

	mnemonic := inst.Name
	if !inst.Official {
		mnemonic = "*" + mnemonic
	}

	return Entry{
		PC:        pc,
		Bytes:     raw,
		Mnemonic:  mnemonic,
		Operand:   operand(inst, raw, &regs, mem),
		Registers: regs,
		Cycles:    s.Cycles,
	}
}

// operand disassembles the operand, showing each step of address resolution
// and the value currently stored at the effective address
func operand(inst *cpu.Instruction, raw []uint8, regs *cpu.Registers, mem cpu.Reader) string {
	pc := regs.PC + 1
	addr := cpu.Resolve(inst.Mode, pc, regs, mem)

	switch inst.Mode {
	case cpu.Implied:
		return ""

	case cpu.Accumulator:
		return "A"

	case cpu.Immediate:
		return fmt.Sprintf("#$%02X", raw[1])

	case cpu.ZeroPage:
		return fmt.Sprintf("$%02X = %02X", addr, mem.Read(addr))

	case cpu.ZeroPageX:
		return fmt.Sprintf("$%02X,X @ %02X = %02X", raw[1], addr, mem.Read(addr))

	case cpu.ZeroPageY:
		return fmt.Sprintf("$%02X,Y @ %02X = %02X", raw[1], addr, mem.Read(addr))

	case cpu.Absolute:
		// Jumps show the target only
		if inst.Opcode == 0x4C || inst.Opcode == 0x20 {
			return fmt.Sprintf("$%04X", addr)
		}
		return fmt.Sprintf("$%04X = %02X", addr, mem.Read(addr))

	case cpu.AbsoluteX:
		return fmt.Sprintf("$%04X,X @ %04X = %02X", word(raw), addr, mem.Read(addr))

	case cpu.AbsoluteY:
		return fmt.Sprintf("$%04X,Y @ %04X = %02X", word(raw), addr, mem.Read(addr))

	case cpu.Indirect:
		return fmt.Sprintf("($%04X) = %04X", word(raw), addr)

	case cpu.IndirectX:
		ptr := raw[1] + regs.X
		return fmt.Sprintf("($%02X,X) @ %02X = %04X = %02X", raw[1], ptr, addr, mem.Read(addr))

	case cpu.IndirectY:
		base := cpu.ZeroPageWord(mem, raw[1])
		return fmt.Sprintf("($%02X),Y = %04X @ %04X = %02X", raw[1], base, addr, mem.Read(addr))

	case cpu.Relative:
		return fmt.Sprintf("$%04X", addr)
	}
	return ""
}

func word(raw []uint8) uint16 {
	return uint16(raw[2])<<8 | uint16(raw[1])
}

// String formats the entry as a nestest log line without the PPU and cycle
// columns
func (e Entry) String() string {
	hex := make([]string, len(e.Bytes))
	for i, b := range e.Bytes {
		hex[i] = fmt.Sprintf("%02X", b)
	}

	asm := fmt.Sprintf("%04X  %-8s %4s %s", e.PC, strings.Join(hex, " "), e.Mnemonic, e.Operand)
	asm = strings.TrimRight(asm, " ")

	r := e.Registers
	return fmt.Sprintf("%-47s A:%02X X:%02X Y:%02X P:%02X SP:%02X",
		asm, r.A, r.X, r.Y, r.Status(), r.SP)
}

// WithCycles formats the entry with a trailing CYC column
func (e Entry) WithCycles() string {
	return fmt.Sprintf("%s CYC:%d", e.String(), e.Cycles)
}
