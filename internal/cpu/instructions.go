package cpu

import "fmt"

// Instruction describes one opcode
type Instruction struct {
	Name     string         // Mnemonic, for tracing only
	Opcode   uint8          // Opcode byte
	Bytes    uint8          // Length including the opcode, 1-3
	Cycles   uint8          // Base cycle count, informational
	Mode     AddressingMode // Operand addressing mode
	Official bool           // false for undocumented opcodes

	// OwnsPC is set for control-flow instructions, which leave PC exactly
	// where they want it instead of having the operand bytes skipped
	OwnsPC bool

	exec func(c *CPU, address uint16)
}

// controlFlowOpcodes lists every opcode whose handler sets PC itself:
// branches, JMP, JSR, RTS, RTI and BRK
var controlFlowOpcodes = [...]uint8{
	0x10, 0x30, 0x50, 0x70, 0x90, 0xB0, 0xD0, 0xF0, // branches
	0x4C, 0x6C, // JMP
	0x20, // JSR
	0x60, // RTS
	0x40, // RTI
	0x00, // BRK
}

// instructions is the opcode-indexed decode table
var instructions [256]Instruction

// Lookup returns the descriptor for an opcode
func Lookup(opcode uint8) *Instruction {
	return &instructions[opcode]
}

// def registers one opcode
func def(opcode uint8, name string, mode AddressingMode, bytes, cycles uint8, exec func(*CPU, uint16)) {
	instructions[opcode] = Instruction{
		Name:     name,
		Opcode:   opcode,
		Bytes:    bytes,
		Cycles:   cycles,
		Mode:     mode,
		Official: true,
		exec:     exec,
	}
}

// undoc registers one undocumented opcode
func undoc(opcode uint8, name string, mode AddressingMode, bytes, cycles uint8, exec func(*CPU, uint16)) {
	def(opcode, name, mode, bytes, cycles, exec)
	instructions[opcode].Official = false
}

// group registers the usual eight addressing modes of an ALU instruction
func group(name string, exec func(*CPU, uint16), imm, zp, zpx, abs, absx, absy, indx, indy uint8) {
	def(imm, name, Immediate, 2, 2, exec)
	def(zp, name, ZeroPage, 2, 3, exec)
	def(zpx, name, ZeroPageX, 2, 4, exec)
	def(abs, name, Absolute, 3, 4, exec)
	def(absx, name, AbsoluteX, 3, 4, exec)
	def(absy, name, AbsoluteY, 3, 4, exec)
	def(indx, name, IndirectX, 2, 6, exec)
	def(indy, name, IndirectY, 2, 5, exec)
}

// shiftGroup registers the memory forms of a read-modify-write instruction
func shiftGroup(name string, exec func(*CPU, uint16), zp, zpx, abs, absx uint8) {
	def(zp, name, ZeroPage, 2, 5, exec)
	def(zpx, name, ZeroPageX, 2, 6, exec)
	def(abs, name, Absolute, 3, 6, exec)
	def(absx, name, AbsoluteX, 3, 7, exec)
}

// comboGroup registers the seven forms of an undocumented read-modify-write
// combination
func comboGroup(name string, exec func(*CPU, uint16), zp, zpx, abs, absx, absy, indx, indy uint8) {
	undoc(zp, name, ZeroPage, 2, 5, exec)
	undoc(zpx, name, ZeroPageX, 2, 6, exec)
	undoc(abs, name, Absolute, 3, 6, exec)
	undoc(absx, name, AbsoluteX, 3, 7, exec)
	undoc(absy, name, AbsoluteY, 3, 7, exec)
	undoc(indx, name, IndirectX, 2, 8, exec)
	undoc(indy, name, IndirectY, 2, 8, exec)
}

func init() {
	// Load/store
	group("LDA", (*CPU).lda, 0xA9, 0xA5, 0xB5, 0xAD, 0xBD, 0xB9, 0xA1, 0xB1)
	def(0xA2, "LDX", Immediate, 2, 2, (*CPU).ldx)
	def(0xA6, "LDX", ZeroPage, 2, 3, (*CPU).ldx)
	def(0xB6, "LDX", ZeroPageY, 2, 4, (*CPU).ldx)
	def(0xAE, "LDX", Absolute, 3, 4, (*CPU).ldx)
	def(0xBE, "LDX", AbsoluteY, 3, 4, (*CPU).ldx)
	def(0xA0, "LDY", Immediate, 2, 2, (*CPU).ldy)
	def(0xA4, "LDY", ZeroPage, 2, 3, (*CPU).ldy)
	def(0xB4, "LDY", ZeroPageX, 2, 4, (*CPU).ldy)
	def(0xAC, "LDY", Absolute, 3, 4, (*CPU).ldy)
	def(0xBC, "LDY", AbsoluteX, 3, 4, (*CPU).ldy)
	def(0x85, "STA", ZeroPage, 2, 3, (*CPU).sta)
	def(0x95, "STA", ZeroPageX, 2, 4, (*CPU).sta)
	def(0x8D, "STA", Absolute, 3, 4, (*CPU).sta)
	def(0x9D, "STA", AbsoluteX, 3, 5, (*CPU).sta)
	def(0x99, "STA", AbsoluteY, 3, 5, (*CPU).sta)
	def(0x81, "STA", IndirectX, 2, 6, (*CPU).sta)
	def(0x91, "STA", IndirectY, 2, 6, (*CPU).sta)
	def(0x86, "STX", ZeroPage, 2, 3, (*CPU).stx)
	def(0x96, "STX", ZeroPageY, 2, 4, (*CPU).stx)
	def(0x8E, "STX", Absolute, 3, 4, (*CPU).stx)
	def(0x84, "STY", ZeroPage, 2, 3, (*CPU).sty)
	def(0x94, "STY", ZeroPageX, 2, 4, (*CPU).sty)
	def(0x8C, "STY", Absolute, 3, 4, (*CPU).sty)

	// Arithmetic and logic
	group("ADC", (*CPU).adc, 0x69, 0x65, 0x75, 0x6D, 0x7D, 0x79, 0x61, 0x71)
	group("SBC", (*CPU).sbc, 0xE9, 0xE5, 0xF5, 0xED, 0xFD, 0xF9, 0xE1, 0xF1)
	group("AND", (*CPU).and, 0x29, 0x25, 0x35, 0x2D, 0x3D, 0x39, 0x21, 0x31)
	group("ORA", (*CPU).ora, 0x09, 0x05, 0x15, 0x0D, 0x1D, 0x19, 0x01, 0x11)
	group("EOR", (*CPU).eor, 0x49, 0x45, 0x55, 0x4D, 0x5D, 0x59, 0x41, 0x51)
	group("CMP", (*CPU).cmp, 0xC9, 0xC5, 0xD5, 0xCD, 0xDD, 0xD9, 0xC1, 0xD1)
	def(0xE0, "CPX", Immediate, 2, 2, (*CPU).cpx)
	def(0xE4, "CPX", ZeroPage, 2, 3, (*CPU).cpx)
	def(0xEC, "CPX", Absolute, 3, 4, (*CPU).cpx)
	def(0xC0, "CPY", Immediate, 2, 2, (*CPU).cpy)
	def(0xC4, "CPY", ZeroPage, 2, 3, (*CPU).cpy)
	def(0xCC, "CPY", Absolute, 3, 4, (*CPU).cpy)
	def(0x24, "BIT", ZeroPage, 2, 3, (*CPU).bit)
	def(0x2C, "BIT", Absolute, 3, 4, (*CPU).bit)

	// Shifts, rotates, increments
	def(0x0A, "ASL", Accumulator, 1, 2, (*CPU).aslAcc)
	shiftGroup("ASL", (*CPU).asl, 0x06, 0x16, 0x0E, 0x1E)
	def(0x4A, "LSR", Accumulator, 1, 2, (*CPU).lsrAcc)
	shiftGroup("LSR", (*CPU).lsr, 0x46, 0x56, 0x4E, 0x5E)
	def(0x2A, "ROL", Accumulator, 1, 2, (*CPU).rolAcc)
	shiftGroup("ROL", (*CPU).rol, 0x26, 0x36, 0x2E, 0x3E)
	def(0x6A, "ROR", Accumulator, 1, 2, (*CPU).rorAcc)
	shiftGroup("ROR", (*CPU).ror, 0x66, 0x76, 0x6E, 0x7E)
	shiftGroup("INC", (*CPU).inc, 0xE6, 0xF6, 0xEE, 0xFE)
	shiftGroup("DEC", (*CPU).dec, 0xC6, 0xD6, 0xCE, 0xDE)
	def(0xE8, "INX", Implied, 1, 2, (*CPU).inx)
	def(0xC8, "INY", Implied, 1, 2, (*CPU).iny)
	def(0xCA, "DEX", Implied, 1, 2, (*CPU).dex)
	def(0x88, "DEY", Implied, 1, 2, (*CPU).dey)

	// Transfers and stack
	def(0xAA, "TAX", Implied, 1, 2, (*CPU).tax)
	def(0xA8, "TAY", Implied, 1, 2, (*CPU).tay)
	def(0x8A, "TXA", Implied, 1, 2, (*CPU).txa)
	def(0x98, "TYA", Implied, 1, 2, (*CPU).tya)
	def(0xBA, "TSX", Implied, 1, 2, (*CPU).tsx)
	def(0x9A, "TXS", Implied, 1, 2, (*CPU).txs)
	def(0x48, "PHA", Implied, 1, 3, (*CPU).pha)
	def(0x08, "PHP", Implied, 1, 3, (*CPU).php)
	def(0x68, "PLA", Implied, 1, 4, (*CPU).pla)
	def(0x28, "PLP", Implied, 1, 4, (*CPU).plp)

	// Flags
	def(0x18, "CLC", Implied, 1, 2, (*CPU).clc)
	def(0x38, "SEC", Implied, 1, 2, (*CPU).sec)
	def(0x58, "CLI", Implied, 1, 2, (*CPU).cli)
	def(0x78, "SEI", Implied, 1, 2, (*CPU).sei)
	def(0xB8, "CLV", Implied, 1, 2, (*CPU).clv)
	def(0xD8, "CLD", Implied, 1, 2, (*CPU).cld)
	def(0xF8, "SED", Implied, 1, 2, (*CPU).sed)

	// Control flow
	def(0x10, "BPL", Relative, 2, 2, (*CPU).bpl)
	def(0x30, "BMI", Relative, 2, 2, (*CPU).bmi)
	def(0x50, "BVC", Relative, 2, 2, (*CPU).bvc)
	def(0x70, "BVS", Relative, 2, 2, (*CPU).bvs)
	def(0x90, "BCC", Relative, 2, 2, (*CPU).bcc)
	def(0xB0, "BCS", Relative, 2, 2, (*CPU).bcs)
	def(0xD0, "BNE", Relative, 2, 2, (*CPU).bne)
	def(0xF0, "BEQ", Relative, 2, 2, (*CPU).beq)
	def(0x4C, "JMP", Absolute, 3, 3, (*CPU).jmp)
	def(0x6C, "JMP", Indirect, 3, 5, (*CPU).jmp)
	def(0x20, "JSR", Absolute, 3, 6, (*CPU).jsr)
	def(0x60, "RTS", Implied, 1, 6, (*CPU).rts)
	def(0x40, "RTI", Implied, 1, 6, (*CPU).rti)
	def(0x00, "BRK", Implied, 1, 7, (*CPU).brk)
	def(0xEA, "NOP", Implied, 1, 2, (*CPU).nop)

	// Undocumented NOPs
	for _, op := range []uint8{0x1A, 0x3A, 0x5A, 0x7A, 0xDA, 0xFA} {
		undoc(op, "NOP", Implied, 1, 2, (*CPU).nop)
	}
	for _, op := range []uint8{0x80, 0x82, 0x89, 0xC2, 0xE2} {
		undoc(op, "NOP", Immediate, 2, 2, (*CPU).nop)
	}
	for _, op := range []uint8{0x04, 0x44, 0x64} {
		undoc(op, "NOP", ZeroPage, 2, 3, (*CPU).nop)
	}
	for _, op := range []uint8{0x14, 0x34, 0x54, 0x74, 0xD4, 0xF4} {
		undoc(op, "NOP", ZeroPageX, 2, 4, (*CPU).nop)
	}
	undoc(0x0C, "NOP", Absolute, 3, 4, (*CPU).nop)
	for _, op := range []uint8{0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC} {
		undoc(op, "NOP", AbsoluteX, 3, 4, (*CPU).nop)
	}

	// Undocumented loads and stores
	undoc(0xA7, "LAX", ZeroPage, 2, 3, (*CPU).lax)
	undoc(0xB7, "LAX", ZeroPageY, 2, 4, (*CPU).lax)
	undoc(0xAF, "LAX", Absolute, 3, 4, (*CPU).lax)
	undoc(0xBF, "LAX", AbsoluteY, 3, 4, (*CPU).lax)
	undoc(0xA3, "LAX", IndirectX, 2, 6, (*CPU).lax)
	undoc(0xB3, "LAX", IndirectY, 2, 5, (*CPU).lax)
	undoc(0x87, "SAX", ZeroPage, 2, 3, (*CPU).sax)
	undoc(0x97, "SAX", ZeroPageY, 2, 4, (*CPU).sax)
	undoc(0x8F, "SAX", Absolute, 3, 4, (*CPU).sax)
	undoc(0x83, "SAX", IndirectX, 2, 6, (*CPU).sax)
	undoc(0xEB, "SBC", Immediate, 2, 2, (*CPU).sbc)

	// Undocumented read-modify-write combinations
	comboGroup("DCP", (*CPU).dcp, 0xC7, 0xD7, 0xCF, 0xDF, 0xDB, 0xC3, 0xD3)
	comboGroup("ISB", (*CPU).isb, 0xE7, 0xF7, 0xEF, 0xFF, 0xFB, 0xE3, 0xF3)
	comboGroup("SLO", (*CPU).slo, 0x07, 0x17, 0x0F, 0x1F, 0x1B, 0x03, 0x13)
	comboGroup("RLA", (*CPU).rla, 0x27, 0x37, 0x2F, 0x3F, 0x3B, 0x23, 0x33)
	comboGroup("SRE", (*CPU).sre, 0x47, 0x57, 0x4F, 0x5F, 0x5B, 0x43, 0x53)
	comboGroup("RRA", (*CPU).rra, 0x67, 0x77, 0x6F, 0x7F, 0x7B, 0x63, 0x73)

	// Undocumented immediate-operand ALU ops
	undoc(0x0B, "ANC", Immediate, 2, 2, (*CPU).anc)
	undoc(0x2B, "ANC", Immediate, 2, 2, (*CPU).anc)
	undoc(0x4B, "ALR", Immediate, 2, 2, (*CPU).alr)
	undoc(0x6B, "ARR", Immediate, 2, 2, (*CPU).arr)
	undoc(0xCB, "AXS", Immediate, 2, 2, (*CPU).axs)
	undoc(0xAB, "LXA", Immediate, 2, 2, (*CPU).lxa)
	undoc(0x8B, "XAA", Immediate, 2, 2, (*CPU).xaa)

	// Undocumented high-byte stores and LAS
	undoc(0x93, "SHA", IndirectY, 2, 6, (*CPU).sha)
	undoc(0x9F, "SHA", AbsoluteY, 3, 5, (*CPU).sha)
	undoc(0x9C, "SHY", AbsoluteX, 3, 5, (*CPU).shy)
	undoc(0x9E, "SHX", AbsoluteY, 3, 5, (*CPU).shx)
	undoc(0x9B, "TAS", AbsoluteY, 3, 5, (*CPU).tas)
	undoc(0xBB, "LAS", AbsoluteY, 3, 4, (*CPU).las)

	// Processor lock-up
	for _, op := range []uint8{0x02, 0x12, 0x22, 0x32, 0x42, 0x52, 0x62, 0x72, 0x92, 0xB2, 0xD2, 0xF2} {
		undoc(op, "JAM", Implied, 1, 2, (*CPU).jam)
	}

	for _, op := range controlFlowOpcodes {
		instructions[op].OwnsPC = true
	}

	for i := range instructions {
		if instructions[i].exec == nil {
			panic(fmt.Sprintf("cpu: decode table has no entry for opcode $%02X", i))
		}
	}
}
