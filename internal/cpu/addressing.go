package cpu

import "fmt"

// AddressingMode is the rule for locating an instruction's operand
type AddressingMode uint8

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect  // JMP only
	IndirectX // (zp,X)
	IndirectY // (zp),Y
	Relative
)

var modeNames = [...]string{
	Implied:     "implied",
	Accumulator: "accumulator",
	Immediate:   "immediate",
	ZeroPage:    "zeroPage",
	ZeroPageX:   "zeroPageX",
	ZeroPageY:   "zeroPageY",
	Absolute:    "absolute",
	AbsoluteX:   "absoluteX",
	AbsoluteY:   "absoluteY",
	Indirect:    "indirect",
	IndirectX:   "indirectX",
	IndirectY:   "indirectY",
	Relative:    "relative",
}

func (m AddressingMode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("AddressingMode(%d)", uint8(m))
}

// Page masks
const (
	zeroPageMask = 0x00FF
	pageMask     = 0xFF00
)

// Reader is read-only byte access to the address space
type Reader interface {
	Read(address uint16) uint8
}

// Resolve computes the effective operand address for an instruction whose
// operand bytes start at pc. It only reads memory. Implied and accumulator
// modes have no operand address and yield 0.
func Resolve(mode AddressingMode, pc uint16, regs *Registers, mem Reader) uint16 {
	switch mode {
	case Immediate:
		return pc

	case ZeroPage:
		return uint16(mem.Read(pc))

	case ZeroPageX:
		return uint16(mem.Read(pc) + regs.X) // Wrap within zero page

	case ZeroPageY:
		return uint16(mem.Read(pc) + regs.Y)

	case Absolute:
		return ReadWord(mem, pc)

	case AbsoluteX:
		return ReadWord(mem, pc) + uint16(regs.X)

	case AbsoluteY:
		return ReadWord(mem, pc) + uint16(regs.Y)

	case Indirect:
		return IndirectTarget(mem, ReadWord(mem, pc))

	case IndirectX:
		return ZeroPageWord(mem, mem.Read(pc)+regs.X)

	case IndirectY:
		return ZeroPageWord(mem, mem.Read(pc)) + uint16(regs.Y)

	case Relative:
		return BranchTarget(pc+1, mem.Read(pc))
	}
	return 0
}

// ReadWord reads a little-endian word; the high byte address wraps at 0xFFFF
func ReadWord(mem Reader, address uint16) uint16 {
	lo := uint16(mem.Read(address))
	hi := uint16(mem.Read(address + 1))
	return hi<<8 | lo
}

// ZeroPageWord reads a little-endian pointer stored in zero page. The high
// byte fetch wraps from 0xFF to 0x00.
func ZeroPageWord(mem Reader, ptr uint8) uint16 {
	lo := uint16(mem.Read(uint16(ptr)))
	hi := uint16(mem.Read(uint16(ptr + 1)))
	return hi<<8 | lo
}

// IndirectTarget reads the JMP (ptr) target with the page-boundary bug: when
// the pointer's low byte is 0xFF the high byte comes from the start of the
// same page.
func IndirectTarget(mem Reader, ptr uint16) uint16 {
	hiAddr := ptr + 1
	if ptr&zeroPageMask == zeroPageMask {
		hiAddr = ptr & pageMask
	}
	lo := uint16(mem.Read(ptr))
	hi := uint16(mem.Read(hiAddr))
	return hi<<8 | lo
}

// BranchTarget adds a signed 8-bit offset to the address following the
// operand using unsigned wrap-around arithmetic
func BranchTarget(next uint16, offset uint8) uint16 {
	return next + uint16(offset^0x80) - 0x80
}
