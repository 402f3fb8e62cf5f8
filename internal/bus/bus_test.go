package bus

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"gones6502/internal/cartridge"
	"gones6502/internal/cpu"
	"gones6502/internal/input"
	"gones6502/internal/memory"
	"gones6502/internal/trace"
)

// newTestBus builds a system running program from 0x8000
func newTestBus(t *testing.T, opts Options, program ...uint8) *Bus {
	t.Helper()

	cart, err := cartridge.NewROMBuilder().WithProgram(program...).BuildCartridge()
	if err != nil {
		t.Fatalf("Failed to build cartridge: %v", err)
	}
	b, err := New(cart, opts)
	if err != nil {
		t.Fatalf("Failed to create bus: %v", err)
	}
	return b
}

func TestNew_RequiresCartridge(t *testing.T) {
	if _, err := New(nil, DefaultOptions()); err == nil {
		t.Error("Expected error for nil cartridge")
	}
}

func TestBus_RunsToHaltSentinel(t *testing.T) {
	// LDA #$42; STA $0200; JMP $FFFF
	b := newTestBus(t, DefaultOptions(), 0xA9, 0x42, 0x8D, 0x00, 0x02, 0x4C, 0xFF, 0xFF)

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := b.Memory.Read(0x0200); got != 0x42 {
		t.Errorf("Expected 0x42 at $0200, got 0x%02X", got)
	}
	if b.CPU.State() != cpu.Halted {
		t.Errorf("Expected Halted, got %s", b.CPU.State())
	}
}

func TestBus_ROMWriteIsReported(t *testing.T) {
	// LDA #$01; STA $9000
	b := newTestBus(t, DefaultOptions(), 0xA9, 0x01, 0x8D, 0x00, 0x90)

	_, err := b.RunFor(context.Background(), 2)
	if !errors.Is(err, memory.ErrReadOnlyViolation) {
		t.Fatalf("Expected ErrReadOnlyViolation, got %v", err)
	}
	var accessErr *memory.AccessError
	if !errors.As(err, &accessErr) || accessErr.Addr != 0x9000 {
		t.Errorf("Expected AccessError at $9000, got %v", err)
	}
	if !strings.Contains(err.Error(), "STA at $8002") {
		t.Errorf("Error should name the instruction: %v", err)
	}
}

func TestBus_TraceOutput(t *testing.T) {
	var out bytes.Buffer
	opts := DefaultOptions()
	opts.Trace = &out

	b := newTestBus(t, opts, 0xA2, 0x05, 0xEA, 0x4C, 0xFF, 0xFF)
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 trace lines, got %d:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "8000  A2 05     LDX #$05") {
		t.Errorf("Unexpected first line %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "A:00 X:05 Y:00 P:24 SP:FD") {
		t.Errorf("Unexpected second line %q", lines[1])
	}
}

func TestBus_TraceAndLogShareOneEntry(t *testing.T) {
	builds := 0
	orig := buildEntry
	buildEntry = func(s cpu.Snapshot, mem cpu.Reader) trace.Entry {
		builds++
		return orig(s, mem)
	}
	defer func() { buildEntry = orig }()

	var out bytes.Buffer
	opts := DefaultOptions()
	opts.Trace = &out
	opts.LogSize = 8

	b := newTestBus(t, opts, 0xA2, 0x05, 0xEA, 0x4C, 0xFF, 0xFF)
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if builds != 3 {
		t.Errorf("Expected 3 entry builds for 3 instructions, got %d", builds)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	log := b.GetExecutionLog()
	if len(lines) != len(log) {
		t.Fatalf("Trace has %d lines, log has %d entries", len(lines), len(log))
	}
	for i, entry := range log {
		if lines[i] != entry.String() {
			t.Errorf("Line %d: trace %q, log %q", i, lines[i], entry.String())
		}
	}
}

func TestBus_StartPCOverride(t *testing.T) {
	opts := DefaultOptions()
	start := uint16(0x8003)
	opts.StartPC = &start

	b := newTestBus(t, opts, 0xA9, 0x01, 0x00, 0xA9, 0x07)
	if b.CPU.PC() != 0x8003 {
		t.Fatalf("Expected PC=0x8003, got 0x%04X", b.CPU.PC())
	}
	if err := b.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if b.CPU.Registers().A != 0x07 {
		t.Errorf("Expected A=0x07, got 0x%02X", b.CPU.Registers().A)
	}

	b.Reset()
	if b.CPU.PC() != 0x8003 {
		t.Errorf("Reset should reapply start PC, got 0x%04X", b.CPU.PC())
	}
}

func TestBus_DirectionPlaceholder(t *testing.T) {
	b := newTestBus(t, DefaultOptions(), 0xEA, 0xEA, 0xEA)

	b.Controller.SetButton(input.ButtonLeft, true)
	if err := b.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if got := b.Memory.Read(input.DirectionAddress); got != input.DirectionLeft {
		t.Errorf("Expected direction 'a', got 0x%02X", got)
	}

	b.Controller.SetButton(input.ButtonLeft, false)
	b.Controller.SetButton(input.ButtonA, true)
	if err := b.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if got := b.Memory.Read(input.DirectionAddress); got != input.DirectionLeft {
		t.Errorf("Last direction should persist, got 0x%02X", got)
	}
	if state := b.GetCPUState(); state.Controller != uint8(input.ButtonA) {
		t.Errorf("Expected latched controller 0x01, got 0x%02X", state.Controller)
	}
}

func TestBus_ScriptedInput(t *testing.T) {
	src, err := input.NewScriptSourceString("test", `function poll(step) if step == 1 then return DOWN end end`)
	if err != nil {
		t.Fatalf("Failed to load script: %v", err)
	}
	defer src.Close()

	opts := DefaultOptions()
	opts.Input = src
	// LDA $FF after one NOP
	b := newTestBus(t, opts, 0xEA, 0xA5, 0xFF)

	if b.Controller != nil {
		t.Error("Scripted bus should not create a live controller")
	}
	if _, err := b.RunFor(context.Background(), 2); err != nil {
		t.Fatalf("RunFor failed: %v", err)
	}
	if got := b.CPU.Registers().A; got != input.DirectionDown {
		t.Errorf("Program should read direction 's', got 0x%02X", got)
	}
}

func TestBus_InputErrorStopsExecution(t *testing.T) {
	src, err := input.NewScriptSourceString("failing", `function poll(step) error("bad input") end`)
	if err != nil {
		t.Fatalf("Failed to load script: %v", err)
	}
	defer src.Close()

	opts := DefaultOptions()
	opts.Input = src
	b := newTestBus(t, opts, 0xEA)

	if err := b.Step(); err == nil || !strings.Contains(err.Error(), "polling controller") {
		t.Errorf("Expected polling error, got %v", err)
	}
	if b.CPU.Steps() != 0 {
		t.Error("No instruction should run after an input failure")
	}
}

func TestBus_ExecutionLogIsBounded(t *testing.T) {
	opts := DefaultOptions()
	opts.LogSize = 4

	program := make([]uint8, 10)
	for i := range program {
		program[i] = 0xE8 // INX
	}
	b := newTestBus(t, opts, program...)

	if len(b.GetExecutionLog()) != 0 {
		t.Fatal("Log should start empty")
	}
	if _, err := b.RunFor(context.Background(), 10); err != nil {
		t.Fatalf("RunFor failed: %v", err)
	}

	log := b.GetExecutionLog()
	if len(log) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(log))
	}
	for i, e := range log {
		want := uint16(0x8006 + i)
		if e.PC != want {
			t.Errorf("Entry %d: expected PC=0x%04X, got 0x%04X", i, want, e.PC)
		}
	}
	if log[3].Registers.X != 0x09 {
		t.Errorf("Last entry should show pre-execution X=9, got %d", log[3].Registers.X)
	}

	state := b.GetCPUState()
	if len(state.Recent) != 4 || state.LastLine() != log[3].String() {
		t.Errorf("State should carry the recent lines, got %q", state.Recent)
	}
}

func TestBus_ExecutionLogDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.LogSize = -1
	b := newTestBus(t, opts, 0xEA)

	if err := b.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if b.GetExecutionLog() != nil {
		t.Error("Expected no execution log")
	}
}

func TestBus_GetCPUStateIsACopy(t *testing.T) {
	// LDA #$80; PHA; SEC
	b := newTestBus(t, DefaultOptions(), 0xA9, 0x80, 0x48, 0x38)
	if _, err := b.RunFor(context.Background(), 3); err != nil {
		t.Fatalf("RunFor failed: %v", err)
	}

	state := b.GetCPUState()
	if state.A != 0x80 || state.SP != 0xFC || state.PC != 0x8004 {
		t.Errorf("Unexpected state A=%02X SP=%02X PC=%04X", state.A, state.SP, state.PC)
	}
	if !state.Flags.N || !state.Flags.C || state.Flags.Z {
		t.Errorf("Unexpected flags %s", state.Flags.FlagString())
	}
	if state.Stack[0xFD] != 0x80 {
		t.Errorf("Expected pushed 0x80 at stack $01FD, got 0x%02X", state.Stack[0xFD])
	}

	b.Memory.Write(0x0000, 0x99)
	if state.ZeroPage[0] == 0x99 {
		t.Error("State should not observe later writes")
	}
}

func TestCPUFlags_FlagString(t *testing.T) {
	f := CPUFlags{N: true, I: true, C: true}
	if got := f.FlagString(); got != "Nv-bdIzC" {
		t.Errorf("Expected Nv-bdIzC, got %s", got)
	}
}

func TestBus_Watchpoints(t *testing.T) {
	b := newTestBus(t, DefaultOptions(), 0xA9, 0x01, 0x85, 0x10, 0xEA)
	b.AddMemoryWatchpoint(0x0010)

	if _, err := b.RunFor(context.Background(), 3); err != nil {
		t.Fatalf("RunFor failed: %v", err)
	}
	if b.memoryWatchpoints[0x0010] != 0x01 {
		t.Errorf("Watchpoint should track the new value, got 0x%02X", b.memoryWatchpoints[0x0010])
	}
}
