// Package cpu implements the 6502 CPU emulation for the NES.
package cpu

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
)

// Interrupt vectors
const (
	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// HaltAddress is the sentinel PC at which the run loop stops
const HaltAddress = 0xFFFF

// Cycles taken by the reset and interrupt sequences
const interruptCycles = 7

var (
	// ErrHalted is returned by Step once the CPU has halted
	ErrHalted = errors.New("cpu halted")

	// ErrDecodeInvariant means an opcode had no decode table entry. The
	// table covers all 256 opcodes, so this indicates a corrupt table.
	ErrDecodeInvariant = errors.New("decode invariant violated")
)

// State is the execution state of the CPU
type State int

const (
	Idle State = iota
	Running
	Halted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Halted:
		return "halted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Bus is the memory the CPU executes against. Writes may fail, for example
// into ROM; the CPU reports the first failure after the instruction
// completes.
type Bus interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8) error
	StackPush(value uint8, sp uint8)
	StackPop(sp uint8) uint8
}

// Snapshot is the CPU state at an instruction fetch, before the
// instruction executes. It holds no references to live state.
type Snapshot struct {
	Registers   Registers
	Instruction *Instruction // Static table entry
	Cycles      uint64
	Steps       uint64
}

// TraceSink receives a snapshot at every instruction boundary. It runs
// synchronously on the executing goroutine and must not mutate the bus.
type TraceSink interface {
	Trace(s Snapshot)
}

// TraceFunc adapts a function to TraceSink
type TraceFunc func(s Snapshot)

// Trace calls f(s)
func (f TraceFunc) Trace(s Snapshot) { f(s) }

type nopSink struct{}

func (nopSink) Trace(Snapshot) {}

// StepHook runs at every fetch boundary before the trace snapshot is taken.
// Controller polling hooks in here. A non-nil error stops execution.
type StepHook func(c *CPU) error

// Option configures a CPU
type Option func(*CPU)

// WithTraceSink installs a per-instruction trace sink
func WithTraceSink(sink TraceSink) Option {
	return func(c *CPU) {
		if sink != nil {
			c.tracer = sink
		}
	}
}

// WithStepHook installs a per-instruction hook
func WithStepHook(hook StepHook) Option {
	return func(c *CPU) { c.hooks = append(c.hooks, hook) }
}

// WithHaltSentinel enables or disables halting when PC reaches HaltAddress
func WithHaltSentinel(enabled bool) Option {
	return func(c *CPU) { c.haltOnSentinel = enabled }
}

// WithDebugLogging logs every instruction
func WithDebugLogging(enabled bool) Option {
	return func(c *CPU) { c.debug = enabled }
}

// CPU represents the 6502 processor. Everything except Stop, TriggerNMI and
// TriggerIRQ must be called from the single goroutine that runs it.
type CPU struct {
	regs Registers
	bus  Bus

	state  State
	cycles uint64
	steps  uint64

	// First bus fault raised by the current instruction
	fault error

	tracer         TraceSink
	hooks          []StepHook
	haltOnSentinel bool
	debug          bool

	// Requests from other goroutines, observed at fetch boundaries
	stopRequested atomic.Bool
	nmiPending    atomic.Bool
	irqPending    atomic.Bool
}

// New creates a new CPU instance in the Idle state with power-on registers.
// Call Reset to load PC from the reset vector.
func New(bus Bus, opts ...Option) *CPU {
	c := &CPU{
		regs:           NewRegisters(),
		bus:            bus,
		tracer:         nopSink{},
		haltOnSentinel: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reset restores power-on registers, loads PC from the reset vector and
// returns the CPU to Idle. It is the only way out of Halted.
func (c *CPU) Reset() {
	c.regs.Reset()
	c.regs.PC = c.readWord(resetVector)
	c.cycles = interruptCycles
	c.steps = 0
	c.state = Idle
	c.fault = nil
	c.stopRequested.Store(false)
	c.nmiPending.Store(false)
	c.irqPending.Store(false)
}

// Registers returns a copy of the register file
func (c *CPU) Registers() Registers {
	return c.regs
}

// SetRegisters replaces the register file
func (c *CPU) SetRegisters(r Registers) {
	c.regs = r
}

// PC returns the program counter
func (c *CPU) PC() uint16 { return c.regs.PC }

// SetPC moves the program counter, for example to a test ROM's automated
// entry point
func (c *CPU) SetPC(pc uint16) { c.regs.PC = pc }

// Cycles returns the informational cycle count
func (c *CPU) Cycles() uint64 { return c.cycles }

// SetCycles sets the cycle count, used when restoring a saved state
func (c *CPU) SetCycles(n uint64) { c.cycles = n }

// Steps returns the number of instructions executed since reset
func (c *CPU) Steps() uint64 { return c.steps }

// State returns the execution state
func (c *CPU) State() State { return c.state }

// Bus returns the bus the CPU executes against
func (c *CPU) Bus() Bus { return c.bus }

// Snapshot captures the current state without an instruction
func (c *CPU) Snapshot() Snapshot {
	return Snapshot{Registers: c.regs, Cycles: c.cycles, Steps: c.steps}
}

// Stop asks the CPU to halt at the next fetch boundary. Safe to call from
// any goroutine.
func (c *CPU) Stop() {
	c.stopRequested.Store(true)
}

// TriggerNMI requests a non-maskable interrupt at the next fetch boundary.
// Safe to call from any goroutine.
func (c *CPU) TriggerNMI() {
	c.nmiPending.Store(true)
}

// TriggerIRQ requests a maskable interrupt at the next fetch boundary. It
// stays pending while the I flag is set. Safe to call from any goroutine.
func (c *CPU) TriggerIRQ() {
	c.irqPending.Store(true)
}

// Step executes exactly one instruction. It returns ErrHalted without
// executing anything once the CPU has halted, including when this call
// observes a stop request or the halt sentinel.
func (c *CPU) Step() error {
	if c.state == Halted {
		return ErrHalted
	}
	c.state = Running

	if c.stopRequested.Load() {
		c.halt("stop requested")
		return ErrHalted
	}
	if c.haltOnSentinel && c.regs.PC == HaltAddress {
		c.halt("reached halt address")
		return ErrHalted
	}

	c.serviceInterrupts()

	for _, hook := range c.hooks {
		if err := hook(c); err != nil {
			return err
		}
	}

	pc := c.regs.PC
	opcode := c.bus.Read(pc)
	instruction := &instructions[opcode]
	if instruction.exec == nil {
		c.halt("decode miss")
		return fmt.Errorf("%w: opcode $%02X at $%04X", ErrDecodeInvariant, opcode, pc)
	}

	c.tracer.Trace(Snapshot{
		Registers:   c.regs,
		Instruction: instruction,
		Cycles:      c.cycles,
		Steps:       c.steps,
	})
	if c.debug {
		c.logInstruction(pc, instruction)
	}

	c.regs.PC++
	address := Resolve(instruction.Mode, c.regs.PC, &c.regs, c.bus)
	instruction.exec(c, address)
	if !instruction.OwnsPC {
		c.regs.PC += uint16(instruction.Bytes) - 1
	}

	c.cycles += uint64(instruction.Cycles)
	c.steps++

	if c.fault != nil {
		err := c.fault
		c.fault = nil
		return fmt.Errorf("%s at $%04X: %w", instruction.Name, pc, err)
	}
	return nil
}

// Run executes until the CPU halts, an instruction fails or ctx is done.
// A halt returns nil. Cancellation halts the CPU at the next fetch boundary
// and returns ctx.Err().
func (c *CPU) Run(ctx context.Context) error {
	_, err := c.RunFor(ctx, 0)
	return err
}

// RunFor is Run limited to at most n instructions; n == 0 means no limit.
// It returns the number of instructions executed.
func (c *CPU) RunFor(ctx context.Context, n uint64) (uint64, error) {
	done := ctx.Done()
	var executed uint64
	for n == 0 || executed < n {
		select {
		case <-done:
			c.halt("context cancelled")
			return executed, ctx.Err()
		default:
		}

		if err := c.Step(); err != nil {
			if errors.Is(err, ErrHalted) {
				return executed, nil
			}
			return executed, err
		}
		executed++
		if c.state == Halted {
			return executed, nil
		}
	}
	return executed, nil
}

// halt moves to Halted
func (c *CPU) halt(reason string) {
	if c.state != Halted && c.debug {
		log.Printf("[CPU] halted at $%04X: %s", c.regs.PC, reason)
	}
	c.state = Halted
}

// serviceInterrupts runs a pending NMI, or an IRQ when I is clear
func (c *CPU) serviceInterrupts() {
	if c.nmiPending.CompareAndSwap(true, false) {
		c.interrupt(c.regs.PC, nmiVector, false)
		c.cycles += interruptCycles
		return
	}
	if !c.regs.IsSet(FlagInterrupt) && c.irqPending.CompareAndSwap(true, false) {
		c.interrupt(c.regs.PC, irqVector, false)
		c.cycles += interruptCycles
	}
}

// interrupt pushes the return address and status, sets I and loads PC from
// the vector. B is set in the pushed status only for BRK.
func (c *CPU) interrupt(returnPC uint16, vector uint16, brk bool) {
	c.pushWord(returnPC)
	status := c.regs.Status() | uint8(FlagBreak2)
	if brk {
		status |= uint8(FlagBreak)
	} else {
		status &^= uint8(FlagBreak)
	}
	c.push(status)
	c.regs.Set(FlagInterrupt)
	c.regs.PC = c.readWord(vector)
}

// Bus access

func (c *CPU) read(address uint16) uint8 {
	return c.bus.Read(address)
}

// write records the first failed write of the instruction in c.fault
func (c *CPU) write(address uint16, value uint8) {
	if err := c.bus.Write(address, value); err != nil && c.fault == nil {
		c.fault = err
	}
}

func (c *CPU) readWord(address uint16) uint16 {
	return ReadWord(c.bus, address)
}

// Stack operations. SP lives in the register file and is handed to the bus.

func (c *CPU) push(value uint8) {
	c.bus.StackPush(value, c.regs.SP)
	c.regs.SP--
}

func (c *CPU) pop() uint8 {
	c.regs.SP++
	return c.bus.StackPop(c.regs.SP)
}

func (c *CPU) pushWord(value uint16) {
	c.push(uint8(value >> 8))
	c.push(uint8(value))
}

func (c *CPU) popWord() uint16 {
	lo := uint16(c.pop())
	hi := uint16(c.pop())
	return hi<<8 | lo
}

// Debug logging

// EnableDebugLogging toggles per-instruction logging
func (c *CPU) EnableDebugLogging(enable bool) {
	c.debug = enable
}

func (c *CPU) logInstruction(pc uint16, instruction *Instruction) {
	log.Printf("[CPU_DEBUG] PC=$%04X OP=$%02X %-4s %-11s A=%02X X=%02X Y=%02X P=%s SP=%02X CYC=%d",
		pc, instruction.Opcode, instruction.Name, instruction.Mode,
		c.regs.A, c.regs.X, c.regs.Y, c.regs.FlagString(), c.regs.SP, c.cycles)
}
