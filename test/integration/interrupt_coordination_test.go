package integration

import (
	"testing"

	"gones6502/internal/bus"
	"gones6502/internal/cartridge"
	"gones6502/internal/cpu"
)

// Handlers live at PRG offset $0100 ($8100) and increment a zero-page
// counter before returning
func interruptROM(program ...uint8) *cartridge.ROMBuilder {
	return cartridge.NewROMBuilder().
		WithProgram(program...).
		WithData(0x0100,
			0xE6, 0x10, // INC $10
			0x40,       // RTI
		).
		WithData(0x0110,
			0xE6, 0x11, // INC $11
			0x40,       // RTI
		).
		WithNMIVector(0x8100).
		WithIRQVector(0x8110)
}

// TestInterruptCoordination drives NMI, IRQ and BRK through a full system
func TestInterruptCoordination(t *testing.T) {
	t.Run("NMI pushes status with B clear", func(t *testing.T) {
		// loop: JMP loop
		h := NewIntegrationTestHelper(t, interruptROM(0x4C, 0x00, 0x80), bus.DefaultOptions())
		h.StepN(t, 1)

		h.CPU.TriggerNMI()
		h.StepN(t, 1) // enters the handler and runs INC

		if got := h.Memory.Read(0x0010); got != 1 {
			t.Fatalf("NMI handler did not run, $10 = %d", got)
		}
		if status := h.StackByte(1); status != 0x24 {
			t.Errorf("Expected pushed status $24 (B clear, bit 5 set), got $%02X", status)
		}
		if ret := uint16(h.StackByte(2)) | uint16(h.StackByte(3))<<8; ret != 0x8000 {
			t.Errorf("Expected return address $8000, got $%04X", ret)
		}

		h.StepN(t, 1) // RTI
		if h.CPU.PC() != 0x8000 {
			t.Errorf("RTI should resume at $8000, got $%04X", h.CPU.PC())
		}
	})

	t.Run("IRQ waits for CLI", func(t *testing.T) {
		// NOP; NOP; CLI; loop: JMP loop
		h := NewIntegrationTestHelper(t, interruptROM(0xEA, 0xEA, 0x58, 0x4C, 0x03, 0x80), bus.DefaultOptions())

		h.CPU.TriggerIRQ()
		h.StepN(t, 3)
		if got := h.Memory.Read(0x0011); got != 0 {
			t.Fatalf("IRQ must stay pending while I is set, $11 = %d", got)
		}

		h.StepN(t, 1)
		if got := h.Memory.Read(0x0011); got != 1 {
			t.Errorf("Pending IRQ should be serviced after CLI, $11 = %d", got)
		}
		if regs := h.CPU.Registers(); !regs.IsSet(cpu.FlagInterrupt) {
			t.Error("I should be set inside the handler")
		}
	})

	t.Run("NMI wins over IRQ", func(t *testing.T) {
		// CLI; loop: JMP loop
		h := NewIntegrationTestHelper(t, interruptROM(0x58, 0x4C, 0x01, 0x80), bus.DefaultOptions())
		h.StepN(t, 1)

		h.CPU.TriggerIRQ()
		h.CPU.TriggerNMI()
		h.StepN(t, 1)
		if h.Memory.Read(0x0010) != 1 || h.Memory.Read(0x0011) != 0 {
			t.Fatalf("NMI should be serviced first: $10=%d $11=%d", h.Memory.Read(0x0010), h.Memory.Read(0x0011))
		}

		// RTI restores I clear, so the IRQ follows
		h.StepN(t, 2)
		if h.Memory.Read(0x0011) != 1 {
			t.Errorf("IRQ should follow the NMI handler, $11 = %d", h.Memory.Read(0x0011))
		}
	})

	t.Run("BRK pushes status with B set", func(t *testing.T) {
		// BRK; padding byte; JMP $FFFF
		h := NewIntegrationTestHelper(t, interruptROM(0x00, 0xEA, 0x4C, 0xFF, 0xFF), bus.DefaultOptions())
		h.StepN(t, 1)

		if h.CPU.PC() != 0x8110 {
			t.Fatalf("BRK should vector to $8110, got $%04X", h.CPU.PC())
		}
		if status := h.StackByte(1); status != 0x34 {
			t.Errorf("Expected pushed status $34 (B set), got $%02X", status)
		}

		h.RunUntilHalt(t, 10)
		if h.Memory.Read(0x0011) != 1 {
			t.Error("BRK handler did not run")
		}
		if regs := h.CPU.Registers(); regs.IsSet(cpu.FlagBreak) {
			t.Error("RTI must leave B clear in P")
		}
	})
}
