// Package main implements the gones6502 executable.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gones6502/internal/app"
	"gones6502/internal/trace"
	"gones6502/internal/version"
)

type options struct {
	romFile    string
	configFile string
	tracePath  string
	traceCyc   bool
	goldenPath string
	startPC    string
	maxSteps   uint64
	backend    string
	script     string
	dumpPath   string
	statsview  bool
	debug      bool
	nogui      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.romFile, "rom", "", "Path to iNES ROM file (required)")
	flag.StringVar(&opts.configFile, "config", "", "Path to configuration file")
	flag.StringVar(&opts.tracePath, "trace", "", "Write a nestest-style trace to this file (\"-\" for stdout)")
	flag.BoolVar(&opts.traceCyc, "cycles", false, "Append the CYC column to trace lines")
	flag.StringVar(&opts.goldenPath, "golden", "", "Compare the trace against this reference log")
	flag.StringVar(&opts.startPC, "pc", "", "Start PC overriding the reset vector, e.g. C000")
	flag.Uint64Var(&opts.maxSteps, "max-steps", 0, "Stop after this many instructions (0 for no limit)")
	flag.StringVar(&opts.backend, "backend", "", "Front-end: ebitengine, terminal or headless")
	flag.StringVar(&opts.script, "script", "", "Lua script providing poll(step) for the controller")
	flag.StringVar(&opts.dumpPath, "dump", "", "Write a state dump (and a .dot graph) on exit")
	flag.BoolVar(&opts.statsview, "statsview", false, "Serve runtime statistics on "+app.StatsviewAddress)
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&opts.nogui, "nogui", false, "Run headless")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		version.GetBuildInfo().Fprint(os.Stdout)
		return
	}

	if opts.romFile == "" {
		printUsage()
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		var mismatch *trace.Mismatch
		if errors.As(err, &mismatch) {
			fmt.Fprintln(os.Stderr, mismatch)
			os.Exit(1)
		}
		log.Fatalf("gones6502: %v", err)
	}
}

func run(opts options) error {
	config, err := loadConfig(opts.configFile)
	if err != nil {
		return err
	}
	applyFlags(config, opts)

	application, err := app.NewApplicationWithConfig(config, opts.nogui)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer func() {
		if err := application.Cleanup(); err != nil {
			log.Printf("Application cleanup error: %v", err)
		}
	}()

	if err := application.LoadROM(opts.romFile); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		return err
	}

	if config.Debug.EnableLogging {
		if s := application.State(); s != nil {
			log.Printf("[APP] finished after %d steps at $%04X (%s)", s.Steps, s.PC, s.State)
		}
	}
	return nil
}

// loadConfig reads path, or the default config file when path is empty
func loadConfig(path string) (*app.Config, error) {
	if path == "" {
		path = app.GetDefaultConfigPath()
	}
	config := app.NewConfig()
	if err := config.LoadFromFile(path); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return config, nil
}

// applyFlags overrides configuration values with the flags that were given
func applyFlags(config *app.Config, opts options) {
	if opts.tracePath != "" {
		config.Debug.CPUTracing = true
		config.Debug.TracePath = opts.tracePath
	}
	if opts.traceCyc {
		config.Debug.TraceCycles = true
	}
	if opts.goldenPath != "" {
		config.Debug.GoldenPath = opts.goldenPath
	}
	if opts.startPC != "" {
		config.Emulation.StartPC = opts.startPC
	}
	if opts.maxSteps != 0 {
		config.Emulation.MaxSteps = opts.maxSteps
	}
	if opts.backend != "" {
		config.Window.Backend = opts.backend
	}
	if opts.nogui {
		config.Window.Backend = "headless"
	}
	if opts.script != "" {
		config.Input.Script = opts.script
	}
	if opts.dumpPath != "" {
		config.Debug.DumpPath = opts.dumpPath
	}
	if opts.statsview {
		config.Debug.Statsview = true
	}
	if opts.debug {
		config.Debug.EnableLogging = true
	}
}

// nestestSteps is how much of the nestest log is reproducible: later lines
// read APU registers, which are plain RAM here
const nestestSteps = 8980

func printUsage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "gones6502 - 6502 CPU emulator for iNES (mapper 0) images")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "USAGE:")
	fmt.Fprintln(out, "  gones6502 -rom <file> [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "OPTIONS:")
	flag.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "EXAMPLES:")
	fmt.Fprintln(out, "  gones6502 -rom demo.nes                                   # Monitor window")
	fmt.Fprintln(out, "  gones6502 -rom demo.nes -backend terminal                 # Monitor in the terminal")
	fmt.Fprintf(out, "  gones6502 -rom nestest.nes -pc C000 -nogui -trace out.log -golden nestest.log -max-steps %d\n", nestestSteps)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "CONTROLS (Default):")
	fmt.Fprintln(out, "    Arrow Keys / WASD - D-Pad")
	fmt.Fprintln(out, "    J / K             - A / B")
	fmt.Fprintln(out, "    Enter / Space     - Start / Select")
	fmt.Fprintln(out, "    C                 - Copy the last trace line")
	fmt.Fprintln(out, "    P / R             - Pause / Reset")
	fmt.Fprintln(out, "    N / I             - Trigger NMI / IRQ")
	fmt.Fprintln(out, "    F1-F10            - Save States (Shift to load)")
	fmt.Fprintln(out, "    Escape (2x)       - Quit")
}
