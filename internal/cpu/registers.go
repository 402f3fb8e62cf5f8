package cpu

import "strings"

// Flag is one bit of the packed status register (N V 1 B D I Z C)
type Flag uint8

const (
	FlagCarry     Flag = 1 << iota // C
	FlagZero                       // Z
	FlagInterrupt                  // I
	FlagDecimal                    // D, settable but ignored by arithmetic
	FlagBreak                      // B
	FlagBreak2                     // always reads 1
	FlagOverflow                   // V
	FlagNegative                   // N
)

// Power-on register values
const (
	resetStatus = uint8(FlagInterrupt | FlagBreak2) // 0x24
	resetSP     = 0xFD
)

// Registers is the 6502 register file. It is a plain value: copying it
// yields an independent snapshot.
type Registers struct {
	A  uint8  // Accumulator
	X  uint8  // X index
	Y  uint8  // Y index
	SP uint8  // Offset into the stack page
	PC uint16 // Program counter

	p uint8 // Packed status, read through Status
}

// NewRegisters returns a register file in its power-on state
func NewRegisters() Registers {
	var r Registers
	r.Reset()
	return r
}

// Reset restores power-on values. PC is left for the caller to load from
// the reset vector.
func (r *Registers) Reset() {
	r.A, r.X, r.Y = 0, 0, 0
	r.SP = resetSP
	r.p = resetStatus
}

// Set sets a status flag
func (r *Registers) Set(f Flag) {
	r.p |= uint8(f)
}

// Clear clears a status flag. Clearing FlagBreak2 has no visible effect.
func (r *Registers) Clear(f Flag) {
	r.p &^= uint8(f)
}

// IsSet reports whether a status flag is set
func (r *Registers) IsSet(f Flag) bool {
	return r.Status()&uint8(f) != 0
}

// SetTo sets or clears a flag from a condition
func (r *Registers) SetTo(f Flag, on bool) {
	if on {
		r.Set(f)
	} else {
		r.Clear(f)
	}
}

// Status returns the packed status byte with bit 5 forced on
func (r *Registers) Status() uint8 {
	return r.p | uint8(FlagBreak2)
}

// SetStatus replaces the packed status byte
func (r *Registers) SetStatus(p uint8) {
	r.p = p | uint8(FlagBreak2)
}

// carry returns the carry flag as 0 or 1
func (r *Registers) carry() uint8 {
	return r.p & uint8(FlagCarry)
}

// FlagString renders the status register as "NV-BDIZC" with clear flags
// shown in lower case
func (r *Registers) FlagString() string {
	const names = "CZIDB-VN"
	var b strings.Builder
	p := r.Status()
	for bit := 7; bit >= 0; bit-- {
		c := names[bit]
		if p&(1<<bit) == 0 && c != '-' {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}
