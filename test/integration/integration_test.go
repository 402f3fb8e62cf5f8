package integration

import (
	"context"
	"testing"

	"gones6502/internal/bus"
	"gones6502/internal/cartridge"
	"gones6502/internal/cpu"
	"gones6502/internal/memory"
)

// IntegrationTestHelper provides utilities for system-level integration testing
type IntegrationTestHelper struct {
	Bus       *bus.Bus
	CPU       *cpu.CPU
	Memory    *memory.Memory
	Cartridge *cartridge.Cartridge
}

// NewIntegrationTestHelper builds a system around a synthetic image. The
// builder is used as is, so callers set the program and vectors.
func NewIntegrationTestHelper(t *testing.T, builder *cartridge.ROMBuilder, opts bus.Options) *IntegrationTestHelper {
	t.Helper()

	cart, err := builder.BuildCartridge()
	if err != nil {
		t.Fatalf("Failed to build cartridge: %v", err)
	}
	return NewIntegrationTestHelperFromCartridge(t, cart, opts)
}

// NewIntegrationTestHelperFromCartridge builds a system around cart
func NewIntegrationTestHelperFromCartridge(t *testing.T, cart *cartridge.Cartridge, opts bus.Options) *IntegrationTestHelper {
	t.Helper()

	systemBus, err := bus.New(cart, opts)
	if err != nil {
		t.Fatalf("Failed to create bus: %v", err)
	}
	return &IntegrationTestHelper{
		Bus:       systemBus,
		CPU:       systemBus.CPU,
		Memory:    systemBus.Memory,
		Cartridge: cart,
	}
}

// SetupProgram builds a system running program from $8000
func SetupProgram(t *testing.T, program ...uint8) *IntegrationTestHelper {
	t.Helper()
	return NewIntegrationTestHelper(t, cartridge.NewROMBuilder().WithProgram(program...), bus.DefaultOptions())
}

// RunUntilHalt runs at most limit instructions and fails the test unless
// the CPU halted
func (h *IntegrationTestHelper) RunUntilHalt(t *testing.T, limit uint64) uint64 {
	t.Helper()

	n, err := h.Bus.RunFor(context.Background(), limit)
	if err != nil {
		t.Fatalf("Run failed after %d instructions: %v", n, err)
	}
	if h.CPU.State() != cpu.Halted {
		t.Fatalf("CPU did not halt within %d instructions, PC=$%04X", limit, h.CPU.PC())
	}
	return n
}

// StepN executes n instructions and fails the test on any error
func (h *IntegrationTestHelper) StepN(t *testing.T, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		if err := h.Bus.Step(); err != nil {
			t.Fatalf("Step %d failed at PC=$%04X: %v", i, h.CPU.PC(), err)
		}
	}
}

// StackByte reads the byte at $0100+sp+offset, offset 1 being the last push
func (h *IntegrationTestHelper) StackByte(offset uint8) uint8 {
	return h.Memory.Read(0x0100 | uint16(h.CPU.Registers().SP+offset))
}
