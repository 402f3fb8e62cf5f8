package cpu

import "log"

// Every handler runs with PC pointing at its first operand byte and receives
// the address resolved for its addressing mode.

// Flag helpers

// setZN sets zero and negative flags from a result byte
func (c *CPU) setZN(value uint8) {
	c.regs.SetTo(FlagZero, value == 0)
	c.regs.SetTo(FlagNegative, value&0x80 != 0)
}

// addWithCarry is the binary adder shared by ADC and SBC. Decimal mode is
// not honored.
func (c *CPU) addWithCarry(m uint8) {
	a := c.regs.A
	sum := uint16(a) + uint16(m) + uint16(c.regs.carry())
	result := uint8(sum)
	c.regs.SetTo(FlagCarry, sum > 0xFF)
	c.regs.SetTo(FlagOverflow, (m^result)&(result^a)&0x80 != 0)
	c.regs.A = result
	c.setZN(result)
}

// compare sets flags for reg - m; carry means no borrow
func (c *CPU) compare(reg, m uint8) {
	c.regs.SetTo(FlagCarry, reg >= m)
	c.setZN(reg - m)
}

// Shift and rotate helpers operate on a byte in place so the accumulator
// and memory forms share them. The outgoing bit is captured before the
// byte changes.

func (c *CPU) shiftLeft(v *uint8) {
	c.regs.SetTo(FlagCarry, *v&0x80 != 0)
	*v <<= 1
	c.setZN(*v)
}

func (c *CPU) shiftRight(v *uint8) {
	c.regs.SetTo(FlagCarry, *v&0x01 != 0)
	*v >>= 1
	c.setZN(*v)
}

func (c *CPU) rotateLeft(v *uint8) {
	carryIn := c.regs.carry()
	c.regs.SetTo(FlagCarry, *v&0x80 != 0)
	*v = *v<<1 | carryIn
	c.setZN(*v)
}

func (c *CPU) rotateRight(v *uint8) {
	carryIn := c.regs.carry() << 7
	c.regs.SetTo(FlagCarry, *v&0x01 != 0)
	*v = *v>>1 | carryIn
	c.setZN(*v)
}

// modify applies fn to the byte at address and writes it back
func (c *CPU) modify(address uint16, fn func(*uint8)) uint8 {
	v := c.read(address)
	fn(&v)
	c.write(address, v)
	return v
}

// Load/store

func (c *CPU) lda(address uint16) {
	c.regs.A = c.read(address)
	c.setZN(c.regs.A)
}

func (c *CPU) ldx(address uint16) {
	c.regs.X = c.read(address)
	c.setZN(c.regs.X)
}

func (c *CPU) ldy(address uint16) {
	c.regs.Y = c.read(address)
	c.setZN(c.regs.Y)
}

func (c *CPU) sta(address uint16) { c.write(address, c.regs.A) }
func (c *CPU) stx(address uint16) { c.write(address, c.regs.X) }
func (c *CPU) sty(address uint16) { c.write(address, c.regs.Y) }

// Arithmetic and logic

func (c *CPU) adc(address uint16) {
	c.addWithCarry(c.read(address))
}

// sbc is ADC of the one's complement: A - M - (1 - C)
func (c *CPU) sbc(address uint16) {
	c.addWithCarry(c.read(address) ^ 0xFF)
}

func (c *CPU) and(address uint16) {
	c.regs.A &= c.read(address)
	c.setZN(c.regs.A)
}

func (c *CPU) ora(address uint16) {
	c.regs.A |= c.read(address)
	c.setZN(c.regs.A)
}

func (c *CPU) eor(address uint16) {
	c.regs.A ^= c.read(address)
	c.setZN(c.regs.A)
}

func (c *CPU) cmp(address uint16) { c.compare(c.regs.A, c.read(address)) }
func (c *CPU) cpx(address uint16) { c.compare(c.regs.X, c.read(address)) }
func (c *CPU) cpy(address uint16) { c.compare(c.regs.Y, c.read(address)) }

// bit copies operand bits 7 and 6 into N and V regardless of the AND result
func (c *CPU) bit(address uint16) {
	m := c.read(address)
	c.regs.SetTo(FlagZero, c.regs.A&m == 0)
	c.regs.SetTo(FlagNegative, m&0x80 != 0)
	c.regs.SetTo(FlagOverflow, m&0x40 != 0)
}

// Shifts, rotates, increments

func (c *CPU) aslAcc(uint16) { c.shiftLeft(&c.regs.A) }
func (c *CPU) lsrAcc(uint16) { c.shiftRight(&c.regs.A) }
func (c *CPU) rolAcc(uint16) { c.rotateLeft(&c.regs.A) }
func (c *CPU) rorAcc(uint16) { c.rotateRight(&c.regs.A) }

func (c *CPU) asl(address uint16) { c.modify(address, c.shiftLeft) }
func (c *CPU) lsr(address uint16) { c.modify(address, c.shiftRight) }
func (c *CPU) rol(address uint16) { c.modify(address, c.rotateLeft) }
func (c *CPU) ror(address uint16) { c.modify(address, c.rotateRight) }

func (c *CPU) inc(address uint16) {
	c.modify(address, func(v *uint8) { *v++; c.setZN(*v) })
}

func (c *CPU) dec(address uint16) {
	c.modify(address, func(v *uint8) { *v--; c.setZN(*v) })
}

func (c *CPU) inx(uint16) { c.regs.X++; c.setZN(c.regs.X) }
func (c *CPU) iny(uint16) { c.regs.Y++; c.setZN(c.regs.Y) }
func (c *CPU) dex(uint16) { c.regs.X--; c.setZN(c.regs.X) }
func (c *CPU) dey(uint16) { c.regs.Y--; c.setZN(c.regs.Y) }

// Transfers

func (c *CPU) tax(uint16) { c.regs.X = c.regs.A; c.setZN(c.regs.X) }
func (c *CPU) tay(uint16) { c.regs.Y = c.regs.A; c.setZN(c.regs.Y) }
func (c *CPU) txa(uint16) { c.regs.A = c.regs.X; c.setZN(c.regs.A) }
func (c *CPU) tya(uint16) { c.regs.A = c.regs.Y; c.setZN(c.regs.A) }
func (c *CPU) tsx(uint16) { c.regs.X = c.regs.SP; c.setZN(c.regs.X) }
func (c *CPU) txs(uint16) { c.regs.SP = c.regs.X } // No flags

// Stack

func (c *CPU) pha(uint16) { c.push(c.regs.A) }

func (c *CPU) pla(uint16) {
	c.regs.A = c.pop()
	c.setZN(c.regs.A)
}

// php always pushes B set, even though B is clear in the register
func (c *CPU) php(uint16) {
	c.push(c.regs.Status() | uint8(FlagBreak|FlagBreak2))
}

// plp drops the pulled B bit
func (c *CPU) plp(uint16) {
	c.regs.SetStatus(c.pop() &^ uint8(FlagBreak))
}

// Flags

func (c *CPU) clc(uint16) { c.regs.Clear(FlagCarry) }
func (c *CPU) sec(uint16) { c.regs.Set(FlagCarry) }
func (c *CPU) cli(uint16) { c.regs.Clear(FlagInterrupt) }
func (c *CPU) sei(uint16) { c.regs.Set(FlagInterrupt) }
func (c *CPU) clv(uint16) { c.regs.Clear(FlagOverflow) }
func (c *CPU) cld(uint16) { c.regs.Clear(FlagDecimal) }
func (c *CPU) sed(uint16) { c.regs.Set(FlagDecimal) }

// Control flow. These own PC.

// branch jumps to target or steps over the offset byte
func (c *CPU) branch(taken bool, target uint16) {
	if taken {
		c.regs.PC = target
		return
	}
	c.regs.PC++
}

func (c *CPU) bpl(target uint16) { c.branch(!c.regs.IsSet(FlagNegative), target) }
func (c *CPU) bmi(target uint16) { c.branch(c.regs.IsSet(FlagNegative), target) }
func (c *CPU) bvc(target uint16) { c.branch(!c.regs.IsSet(FlagOverflow), target) }
func (c *CPU) bvs(target uint16) { c.branch(c.regs.IsSet(FlagOverflow), target) }
func (c *CPU) bcc(target uint16) { c.branch(!c.regs.IsSet(FlagCarry), target) }
func (c *CPU) bcs(target uint16) { c.branch(c.regs.IsSet(FlagCarry), target) }
func (c *CPU) bne(target uint16) { c.branch(!c.regs.IsSet(FlagZero), target) }
func (c *CPU) beq(target uint16) { c.branch(c.regs.IsSet(FlagZero), target) }

func (c *CPU) jmp(address uint16) { c.regs.PC = address }

// jsr pushes the address of its own last byte
func (c *CPU) jsr(address uint16) {
	c.pushWord(c.regs.PC + 1)
	c.regs.PC = address
}

func (c *CPU) rts(uint16) {
	c.regs.PC = c.popWord() + 1
}

// rti restores P like PLP, then PC without the RTS adjustment
func (c *CPU) rti(uint16) {
	c.regs.SetStatus(c.pop() &^ uint8(FlagBreak))
	c.regs.PC = c.popWord()
}

// brk skips its padding byte and vectors through 0xFFFE with B set in the
// pushed status
func (c *CPU) brk(uint16) {
	c.interrupt(c.regs.PC+1, irqVector, true)
}

func (c *CPU) nop(uint16) {}

// Undocumented instructions

func (c *CPU) lax(address uint16) {
	v := c.read(address)
	c.regs.A, c.regs.X = v, v
	c.setZN(v)
}

func (c *CPU) sax(address uint16) {
	c.write(address, c.regs.A&c.regs.X)
}

func (c *CPU) dcp(address uint16) {
	v := c.modify(address, func(v *uint8) { *v-- })
	c.compare(c.regs.A, v)
}

func (c *CPU) isb(address uint16) {
	v := c.modify(address, func(v *uint8) { *v++ })
	c.addWithCarry(v ^ 0xFF)
}

func (c *CPU) slo(address uint16) {
	v := c.modify(address, c.shiftLeft)
	c.regs.A |= v
	c.setZN(c.regs.A)
}

func (c *CPU) rla(address uint16) {
	v := c.modify(address, c.rotateLeft)
	c.regs.A &= v
	c.setZN(c.regs.A)
}

func (c *CPU) sre(address uint16) {
	v := c.modify(address, c.shiftRight)
	c.regs.A ^= v
	c.setZN(c.regs.A)
}

func (c *CPU) rra(address uint16) {
	v := c.modify(address, c.rotateRight)
	c.addWithCarry(v)
}

// anc copies the result's sign into carry
func (c *CPU) anc(address uint16) {
	c.and(address)
	c.regs.SetTo(FlagCarry, c.regs.A&0x80 != 0)
}

func (c *CPU) alr(address uint16) {
	c.regs.A &= c.read(address)
	c.shiftRight(&c.regs.A)
}

// arr rotates A&M right; C comes from bit 6 and V from bit 6 xor bit 5
func (c *CPU) arr(address uint16) {
	v := c.regs.A & c.read(address)
	v = v>>1 | c.regs.carry()<<7
	c.regs.A = v
	c.setZN(v)
	c.regs.SetTo(FlagCarry, v&0x40 != 0)
	c.regs.SetTo(FlagOverflow, (v>>6^v>>5)&0x01 != 0)
}

// axs stores (A&X)-M in X with compare-style carry
func (c *CPU) axs(address uint16) {
	m := c.read(address)
	ax := c.regs.A & c.regs.X
	c.regs.SetTo(FlagCarry, ax >= m)
	c.regs.X = ax - m
	c.setZN(c.regs.X)
}

// unstableMagic is the constant most hardware shows for LXA and XAA
const unstableMagic = 0xEE

func (c *CPU) lxa(address uint16) {
	v := (c.regs.A | unstableMagic) & c.read(address)
	c.regs.A, c.regs.X = v, v
	c.setZN(v)
}

func (c *CPU) xaa(address uint16) {
	c.regs.A = (c.regs.A | unstableMagic) & c.regs.X & c.read(address)
	c.setZN(c.regs.A)
}

// highPlusOne returns the high byte of the unindexed base address plus one
func highPlusOne(address uint16, index uint8) uint8 {
	return uint8((address-uint16(index))>>8) + 1
}

func (c *CPU) sha(address uint16) {
	c.write(address, c.regs.A&c.regs.X&highPlusOne(address, c.regs.Y))
}

func (c *CPU) shy(address uint16) {
	c.write(address, c.regs.Y&highPlusOne(address, c.regs.X))
}

func (c *CPU) shx(address uint16) {
	c.write(address, c.regs.X&highPlusOne(address, c.regs.Y))
}

func (c *CPU) tas(address uint16) {
	c.regs.SP = c.regs.A & c.regs.X
	c.write(address, c.regs.SP&highPlusOne(address, c.regs.Y))
}

func (c *CPU) las(address uint16) {
	v := c.read(address) & c.regs.SP
	c.regs.A, c.regs.X, c.regs.SP = v, v, v
	c.setZN(v)
}

// jam locks the processor until reset
func (c *CPU) jam(uint16) {
	log.Printf("[CPU] JAM opcode $%02X at $%04X, halting", c.read(c.regs.PC-1), c.regs.PC-1)
	c.state = Halted
}
