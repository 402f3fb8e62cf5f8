package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gones6502/internal/cartridge"
	"gones6502/internal/cpu"
	"gones6502/internal/trace"
)

// sampleProgram stores to zero page, loops five times and jumps to the
// halt sentinel
var sampleProgram = []uint8{
	0xA2, 0x05,       // LDX #$05
	0x86, 0x10,       // STX $10
	0xCA,             // loop: DEX
	0xD0, 0xFD,       // BNE loop
	0x4C, 0xFF, 0xFF, // JMP $FFFF
}

func newTestApplication(t *testing.T, configure func(*Config)) *Application {
	t.Helper()

	config := NewConfig()
	config.Window.Backend = "headless"
	config.Paths.SaveStates = t.TempDir()
	if configure != nil {
		configure(config)
	}

	app, err := NewApplicationWithConfig(config, true)
	if err != nil {
		t.Fatalf("NewApplicationWithConfig failed: %v", err)
	}
	t.Cleanup(func() { app.Cleanup() })

	cart, err := cartridge.NewROMBuilder().WithProgram(sampleProgram...).BuildCartridge()
	if err != nil {
		t.Fatalf("Failed to build cartridge: %v", err)
	}
	if err := app.LoadCartridge(cart, "sample.nes"); err != nil {
		t.Fatalf("LoadCartridge failed: %v", err)
	}
	return app
}

func runApplication(t *testing.T, app *Application) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return app.Run(ctx)
}

func TestApplication_RunsUntilHalt(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "final.txt")
	app := newTestApplication(t, func(c *Config) { c.Debug.DumpPath = dump })

	if err := runApplication(t, app); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	s := app.State()
	if s.State != cpu.Halted || s.PC != 0xFFFF || s.ZeroPage[0x10] != 0x05 || s.X != 0 {
		t.Errorf("Unexpected final state %+v", s)
	}

	data, err := os.ReadFile(dump)
	if err != nil {
		t.Fatalf("Dump not written: %v", err)
	}
	if !strings.Contains(string(data), "PC") {
		t.Errorf("Dump lacks registers:\n%s", data)
	}
	if _, err := os.Stat(dump + ".dot"); err != nil {
		t.Errorf("Graph dump not written: %v", err)
	}
}

func TestApplication_RunWithoutROM(t *testing.T) {
	config := NewConfig()
	config.Paths.SaveStates = t.TempDir()
	app, err := NewApplicationWithConfig(config, true)
	if err != nil {
		t.Fatalf("NewApplicationWithConfig failed: %v", err)
	}
	defer app.Cleanup()

	var appErr *ApplicationError
	if err := app.Run(context.Background()); !errors.As(err, &appErr) {
		t.Errorf("Expected ApplicationError, got %v", err)
	}
}

func TestApplication_GoldenComparison(t *testing.T) {
	dir := t.TempDir()
	golden := filepath.Join(dir, "golden.log")

	// Record a reference trace
	recorder := newTestApplication(t, func(c *Config) {
		c.Debug.CPUTracing = true
		c.Debug.TracePath = golden
	})
	if err := runApplication(t, recorder); err != nil {
		t.Fatalf("Recording run failed: %v", err)
	}
	if err := recorder.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	matching := newTestApplication(t, func(c *Config) { c.Debug.GoldenPath = golden })
	if err := runApplication(t, matching); err != nil {
		t.Fatalf("Expected the trace to match, got %v", err)
	}

	// Corrupt the third line and compare again
	data, err := os.ReadFile(golden)
	if err != nil {
		t.Fatalf("Failed to read golden log: %v", err)
	}
	lines := strings.Split(string(data), "\n")
	lines[2] = strings.Replace(lines[2], "A:", "A:FF ", 1)
	corrupt := filepath.Join(dir, "corrupt.log")
	if err := os.WriteFile(corrupt, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		t.Fatalf("Failed to write corrupt log: %v", err)
	}

	failing := newTestApplication(t, func(c *Config) { c.Debug.GoldenPath = corrupt })
	err = runApplication(t, failing)
	var mismatch *trace.Mismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected a trace mismatch, got %v", err)
	}
	if mismatch.Line != 3 {
		t.Errorf("Expected mismatch on line 3, got %d", mismatch.Line)
	}
}

func TestApplication_SaveAndLoadState(t *testing.T) {
	app := newTestApplication(t, nil)
	if err := runApplication(t, app); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The worker has exited, so requests run on the caller
	ctx := context.Background()
	if err := app.SaveState(ctx, 3); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}
	if err := app.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if s := app.State(); s.PC != 0x8000 {
		t.Fatalf("Reset should return to $8000, got $%04X", s.PC)
	}

	if err := app.LoadState(ctx, 3); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if s := app.State(); s.PC != 0xFFFF || s.ZeroPage[0x10] != 0x05 {
		t.Errorf("State not restored: PC=$%04X $10=%02X", s.PC, s.ZeroPage[0x10])
	}

	if err := app.LoadState(ctx, 4); !errors.Is(err, ErrNoSaveState) {
		t.Errorf("Expected ErrNoSaveState for an empty slot, got %v", err)
	}
}
