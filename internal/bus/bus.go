// Package bus wires the cartridge, memory, CPU, controller and trace output
// into one runnable system.
package bus

import (
	"context"
	"fmt"
	"io"
	"log"

	"gones6502/internal/cartridge"
	"gones6502/internal/cpu"
	"gones6502/internal/input"
	"gones6502/internal/memory"
	"gones6502/internal/trace"
)

// DefaultLogSize is the number of recent instructions kept in the
// execution log
const DefaultLogSize = 64

// Options configures a Bus
type Options struct {
	// Input supplies the controller byte. A live Controller is created when
	// nil.
	Input input.Source

	// Trace receives one nestest-style line per instruction when non-nil
	Trace       io.Writer
	TraceCycles bool

	// StartPC overrides the reset vector when non-nil
	StartPC *uint16

	// HaltSentinel stops execution when PC reaches cpu.HaltAddress
	HaltSentinel bool

	// LogSize bounds the execution log; 0 selects DefaultLogSize and a
	// negative value disables it
	LogSize int

	// Watch lists addresses whose changes are logged
	Watch []uint16

	Debug bool
}

// DefaultOptions returns options for an interactive run
func DefaultOptions() Options {
	return Options{HaltSentinel: true}
}

// Bus connects all system components together. It is owned by the single
// goroutine that steps it; other goroutines observe it through State.
type Bus struct {
	// Core components
	CPU       *cpu.CPU
	Memory    *memory.Memory
	Cartridge *cartridge.Cartridge

	// Controller is the live controller, nil when input is scripted
	Controller *input.Controller
	input      input.Source
	controller uint8 // Byte returned by the last poll

	tracer  *trace.Writer
	startPC *uint16

	// Execution log ring
	executionLog   []trace.Entry
	logNext        int
	logFull        bool
	loggingEnabled bool

	// Memory monitoring for debugging
	memoryWatchpoints map[uint16]uint8 // Address -> previous value
}

// New creates a new system around a parsed cartridge and resets it
func New(cart *cartridge.Cartridge, opts Options) (*Bus, error) {
	if cart == nil {
		return nil, fmt.Errorf("bus: no cartridge")
	}

	b := &Bus{
		Cartridge:         cart,
		Memory:            memory.New(cart),
		input:             opts.Input,
		startPC:           opts.StartPC,
		memoryWatchpoints: make(map[uint16]uint8),
	}

	if b.input == nil {
		b.Controller = input.New()
		b.Controller.EnableDebug(opts.Debug)
		b.input = b.Controller
	}

	if opts.Trace != nil {
		b.tracer = trace.NewWriter(opts.Trace, b.Memory)
		b.tracer.IncludeCycles(opts.TraceCycles)
	}

	switch {
	case opts.LogSize == 0:
		b.executionLog = make([]trace.Entry, DefaultLogSize)
		b.loggingEnabled = true
	case opts.LogSize > 0:
		b.executionLog = make([]trace.Entry, opts.LogSize)
		b.loggingEnabled = true
	}

	b.CPU = cpu.New(b.Memory,
		cpu.WithTraceSink(b),
		cpu.WithStepHook(b.pollInput),
		cpu.WithHaltSentinel(opts.HaltSentinel),
		cpu.WithDebugLogging(opts.Debug),
	)

	for _, addr := range opts.Watch {
		b.AddMemoryWatchpoint(addr)
	}

	b.Reset()
	return b, nil
}

// Reset resets the CPU and input and clears the execution log. RAM is left
// as it is.
func (b *Bus) Reset() {
	b.CPU.Reset()
	if b.startPC != nil {
		b.CPU.SetPC(*b.startPC)
	}
	if b.Controller != nil {
		b.Controller.Reset()
	}
	b.controller = 0
	b.ClearExecutionLog()
}

// Step executes one instruction
func (b *Bus) Step() error {
	return b.CPU.Step()
}

// Run executes until the CPU halts, fails or ctx is done
func (b *Bus) Run(ctx context.Context) error {
	return b.CPU.Run(ctx)
}

// RunFor executes at most n instructions
func (b *Bus) RunFor(ctx context.Context, n uint64) (uint64, error) {
	return b.CPU.RunFor(ctx, n)
}

// Flush writes any buffered trace output
func (b *Bus) Flush() error {
	if b.tracer == nil {
		return nil
	}
	return b.tracer.Flush()
}

// pollInput samples the controller once per instruction and mirrors the
// last direction pressed into input.DirectionAddress
func (b *Bus) pollInput(c *cpu.CPU) error {
	b.CheckMemoryWatchpoints()

	state, err := b.input.Poll(c.Steps())
	if err != nil {
		return fmt.Errorf("polling controller: %w", err)
	}
	b.controller = state

	if code, ok := input.DirectionCode(state); ok {
		if err := b.Memory.Write(input.DirectionAddress, code); err != nil {
			return fmt.Errorf("writing direction byte: %w", err)
		}
	}
	return nil
}

// buildEntry renders trace entries; tests replace it to count calls
var buildEntry = trace.Build

// Trace implements cpu.TraceSink
func (b *Bus) Trace(s cpu.Snapshot) {
	if b.tracer == nil && !b.loggingEnabled {
		return
	}

	entry := buildEntry(s, b.Memory)
	if b.tracer != nil {
		b.tracer.WriteEntry(entry)
	}
	if !b.loggingEnabled {
		return
	}

	b.executionLog[b.logNext] = entry
	b.logNext++
	if b.logNext == len(b.executionLog) {
		b.logNext = 0
		b.logFull = true
	}
}

// GetExecutionLog returns the recent instructions, oldest first
func (b *Bus) GetExecutionLog() []trace.Entry {
	if !b.loggingEnabled {
		return nil
	}
	if !b.logFull {
		return append([]trace.Entry(nil), b.executionLog[:b.logNext]...)
	}
	out := make([]trace.Entry, 0, len(b.executionLog))
	out = append(out, b.executionLog[b.logNext:]...)
	return append(out, b.executionLog[:b.logNext]...)
}

// ClearExecutionLog clears the execution log
func (b *Bus) ClearExecutionLog() {
	b.logNext = 0
	b.logFull = false
}

// AddMemoryWatchpoint adds a memory address to monitor for changes
func (b *Bus) AddMemoryWatchpoint(address uint16) {
	b.memoryWatchpoints[address] = b.Memory.Read(address)
}

// CheckMemoryWatchpoints logs every watched address that changed since the
// last check
func (b *Bus) CheckMemoryWatchpoints() {
	for address, previousValue := range b.memoryWatchpoints {
		currentValue := b.Memory.Read(address)
		if currentValue != previousValue {
			log.Printf("[BUS] step %d: $%04X changed from $%02X to $%02X (%s)",
				b.CPU.Steps(), address, previousValue, currentValue, describeAddress(address))
			b.memoryWatchpoints[address] = currentValue
		}
	}
}

// describeAddress returns a human-readable description of an address
func describeAddress(address uint16) string {
	switch {
	case address == input.DirectionAddress:
		return "direction byte"
	case address < 0x0100:
		return "zero page"
	case address < 0x0200:
		return "stack"
	case address < memory.ROMStart:
		return "RAM"
	default:
		return "PRG-ROM"
	}
}

// EnableCPUDebug enables or disables per-instruction CPU logging
func (b *Bus) EnableCPUDebug(enable bool) {
	b.CPU.EnableDebugLogging(enable)
}
