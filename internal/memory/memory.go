// Package memory implements the flat 64K CPU address space backed by RAM and cartridge ROM.
package memory

import (
	"errors"
	"fmt"
)

// Address map
const (
	RAMSize   = 0x8000 // 0x0000-0x7FFF writable
	ROMStart  = 0x8000 // 0x8000-0xFFFF cartridge PRG ROM
	StackBase = 0x0100 // Stack page 0x0100-0x01FF
)

// ErrReadOnlyViolation is returned for writes into the cartridge ROM window
var ErrReadOnlyViolation = errors.New("write to read-only memory")

// AccessError records the address and value of a rejected bus access
type AccessError struct {
	Addr  uint16
	Value uint8
	Err   error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("memory: write $%02X to $%04X: %v", e.Value, e.Addr, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// CartridgeInterface defines the interface for cartridge access
type CartridgeInterface interface {
	ReadPRG(address uint16) uint8
}

// Memory represents the CPU memory map
type Memory struct {
	// Flat RAM below the ROM window
	ram [RAMSize]uint8

	// Cartridge, nil when running without an image
	cartridge CartridgeInterface
}

// New creates a new Memory instance
func New(cart CartridgeInterface) *Memory {
	return &Memory{cartridge: cart}
}

// Read reads a byte. Reads have no side effects, so tracing and debugging
// may call it freely.
func (m *Memory) Read(address uint16) uint8 {
	if address < ROMStart {
		return m.ram[address]
	}
	if m.cartridge == nil {
		return 0
	}
	return m.cartridge.ReadPRG(address)
}

// Write writes a byte. Writes into the ROM window leave memory unchanged and
// return an *AccessError wrapping ErrReadOnlyViolation.
func (m *Memory) Write(address uint16, value uint8) error {
	if address >= ROMStart {
		return &AccessError{Addr: address, Value: value, Err: ErrReadOnlyViolation}
	}
	m.ram[address] = value
	return nil
}

// Read16 reads a little-endian word. The high byte address wraps at 0xFFFF.
func (m *Memory) Read16(address uint16) uint16 {
	lo := uint16(m.Read(address))
	hi := uint16(m.Read(address + 1))
	return hi<<8 | lo
}

// Write16 writes a little-endian word. Nothing is written unless both bytes
// land in RAM.
func (m *Memory) Write16(address uint16, value uint16) error {
	if address+1 >= ROMStart {
		return &AccessError{Addr: address + 1, Value: uint8(value >> 8), Err: ErrReadOnlyViolation}
	}
	if err := m.Write(address, uint8(value)); err != nil {
		return err
	}
	return m.Write(address+1, uint8(value>>8))
}

// StackPush stores value at the stack slot addressed by sp. The caller owns
// sp and decrements it afterwards.
func (m *Memory) StackPush(value uint8, sp uint8) {
	m.ram[StackBase|uint16(sp)] = value
}

// StackPop reads the stack slot addressed by sp. The caller increments sp
// before calling.
func (m *Memory) StackPop(sp uint8) uint8 {
	return m.ram[StackBase|uint16(sp)]
}

// Load copies data into RAM starting at address
func (m *Memory) Load(address uint16, data []uint8) error {
	if int(address)+len(data) > RAMSize {
		return &AccessError{Addr: address, Err: ErrReadOnlyViolation}
	}
	copy(m.ram[address:], data)
	return nil
}

// RAM returns a copy of the writable region
func (m *Memory) RAM() []uint8 {
	return append([]uint8(nil), m.ram[:]...)
}

// RestoreRAM replaces the writable region
func (m *Memory) RestoreRAM(data []uint8) error {
	if len(data) != RAMSize {
		return fmt.Errorf("memory: RAM image is %d bytes, want %d", len(data), RAMSize)
	}
	copy(m.ram[:], data)
	return nil
}

// Reset clears RAM
func (m *Memory) Reset() {
	m.ram = [RAMSize]uint8{}
}
