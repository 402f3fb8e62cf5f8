package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"golang.org/x/sync/errgroup"

	"gones6502/internal/bus"
	"gones6502/internal/cartridge"
	"gones6502/internal/debug"
	"gones6502/internal/graphics"
	"gones6502/internal/input"
	"gones6502/internal/trace"
)

// StatsviewAddress is where the runtime stats viewer listens
const StatsviewAddress = "localhost:12600"

const tickInterval = time.Second / 60

// Application ties the emulator worker to a front-end
type Application struct {
	config *Config

	// Front-end
	backend  graphics.Backend
	window   graphics.Window
	headless bool

	// Emulation
	cartridge    *cartridge.Cartridge
	bus          *bus.Bus
	emulator     *Emulator
	stateManager *StateManager
	romPath      string

	// Trace output
	traceFile   *os.File
	traceBuffer *bytes.Buffer // Kept for the golden-log comparison
	script      *input.ScriptSource

	cancel      context.CancelFunc
	lastESCTime time.Time
}

// ApplicationError represents application-specific errors
type ApplicationError struct {
	Component string
	Operation string
	Err       error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Component, e.Operation, e.Err)
}

func (e *ApplicationError) Unwrap() error { return e.Err }

// NewApplication creates an application from a configuration file
func NewApplication(configPath string, headless bool) (*Application, error) {
	config := NewConfig()
	if configPath != "" {
		if err := config.LoadFromFile(configPath); err != nil {
			return nil, &ApplicationError{Component: "config", Operation: "load", Err: err}
		}
	}
	return NewApplicationWithConfig(config, headless)
}

// NewApplicationWithConfig creates an application from a prepared
// configuration. headless forces the headless backend.
func NewApplicationWithConfig(config *Config, headless bool) (*Application, error) {
	if err := config.validate(); err != nil {
		return nil, &ApplicationError{Component: "config", Operation: "validate", Err: err}
	}

	app := &Application{
		config:   config,
		headless: headless || config.Window.Backend == string(graphics.BackendHeadless),
	}

	if err := app.initializeGraphicsBackend(); err != nil {
		return nil, err
	}

	sm, err := NewStateManager(config.Paths.SaveStates, config.Emulation.SaveStateSlots)
	if err != nil {
		app.Cleanup()
		return nil, &ApplicationError{Component: "states", Operation: "initialize", Err: err}
	}
	app.stateManager = sm

	return app, nil
}

// initializeGraphicsBackend creates the configured backend, falling back
// to headless when a window cannot be opened
func (app *Application) initializeGraphicsBackend() error {
	backendType := graphics.BackendType(app.config.Window.Backend)
	if app.headless {
		backendType = graphics.BackendHeadless
	}

	gcfg := graphics.Config{
		WindowTitle:  app.config.Window.Title,
		WindowWidth:  app.config.Window.Width,
		WindowHeight: app.config.Window.Height,
		Scale:        app.config.Window.Scale,
		ButtonKeys:   app.config.Input.Player1Keys.buttonKeys(),
		Headless:     app.headless,
		Debug:        app.config.Debug.EnableLogging,
	}

	backend, err := graphics.CreateBackend(backendType)
	if err == nil {
		err = backend.Initialize(gcfg)
	}
	var window graphics.Window
	if err == nil {
		window, err = backend.CreateWindow(gcfg.WindowTitle, gcfg.WindowWidth, gcfg.WindowHeight)
	}

	if err != nil && backendType != graphics.BackendHeadless {
		log.Printf("[APP] %s backend unavailable (%v), falling back to headless", backendType, err)
		app.headless = true
		gcfg.Headless = true
		backend = graphics.NewHeadlessBackend()
		err = backend.Initialize(gcfg)
		if err == nil {
			window, err = backend.CreateWindow(gcfg.WindowTitle, gcfg.WindowWidth, gcfg.WindowHeight)
		}
	}
	if err != nil {
		return &ApplicationError{Component: "graphics", Operation: "initialize", Err: err}
	}

	app.backend = backend
	app.window = window
	if app.config.Debug.EnableLogging {
		log.Printf("[APP] Using %s backend", backend.GetName())
	}
	return nil
}

// LoadROM parses an iNES image and builds the system around it
func (app *Application) LoadROM(romPath string) error {
	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		return &ApplicationError{Component: "cartridge", Operation: "load", Err: err}
	}
	return app.LoadCartridge(cart, romPath)
}

// LoadCartridge builds the system around an already parsed cartridge
func (app *Application) LoadCartridge(cart *cartridge.Cartridge, romPath string) error {
	opts, err := app.busOptions()
	if err != nil {
		return err
	}

	b, err := bus.New(cart, opts)
	if err != nil {
		return &ApplicationError{Component: "bus", Operation: "create", Err: err}
	}

	app.cartridge = cart
	app.bus = b
	app.romPath = romPath
	app.emulator = NewEmulator(b, app.config)

	if app.window != nil {
		app.window.SetTitle(fmt.Sprintf("%s - %s", app.config.Window.Title, romPath))
	}
	if app.config.Debug.EnableLogging {
		log.Printf("[APP] Loaded %s: %s, start PC $%04X", romPath, cart, b.CPU.PC())
	}
	return nil
}

// busOptions translates the configuration into bus options, opening the
// trace output and the input script
func (app *Application) busOptions() (bus.Options, error) {
	opts := bus.DefaultOptions()
	opts.HaltSentinel = app.config.Emulation.HaltSentinel
	opts.LogSize = app.config.Emulation.ExecutionLogSize
	opts.TraceCycles = app.config.Debug.TraceCycles
	opts.Debug = app.config.Debug.EnableLogging

	if pc, ok, err := app.config.StartPC(); err != nil {
		return opts, err
	} else if ok {
		opts.StartPC = &pc
	}

	watch, err := app.config.WatchAddresses()
	if err != nil {
		return opts, err
	}
	opts.Watch = watch

	var outputs []io.Writer
	if app.config.Debug.CPUTracing {
		switch path := app.config.Debug.TracePath; path {
		case "", "-":
			outputs = append(outputs, os.Stdout)
		default:
			f, err := os.Create(path)
			if err != nil {
				return opts, &ApplicationError{Component: "trace", Operation: "open", Err: err}
			}
			app.traceFile = f
			outputs = append(outputs, f)
		}
	}
	if app.config.Debug.GoldenPath != "" {
		app.traceBuffer = &bytes.Buffer{}
		outputs = append(outputs, app.traceBuffer)
	}
	if len(outputs) > 0 {
		opts.Trace = io.MultiWriter(outputs...)
	}

	if path := app.config.Input.Script; path != "" {
		src, err := input.NewScriptSource(path)
		if err != nil {
			return opts, &ApplicationError{Component: "input", Operation: "load script", Err: err}
		}
		app.script = src
		opts.Input = src
	}
	return opts, nil
}

// Run starts the worker and drives the front-end on the calling goroutine
// until the window closes, ctx is done or the worker fails. The golden-log
// comparison runs afterwards when configured.
func (app *Application) Run(ctx context.Context) error {
	if app.emulator == nil {
		return &ApplicationError{Component: "app", Operation: "run", Err: errors.New("no ROM loaded")}
	}

	ctx, cancel := context.WithCancel(ctx)
	app.cancel = cancel
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.emulator.Run(gctx)
	})

	if app.config.Debug.Statsview {
		app.startStatsview(g, gctx)
	}

	frontErr := app.runFrontEnd(gctx)
	cancel()
	err := g.Wait()
	if err == nil {
		err = frontErr
	}

	if flushErr := app.bus.Flush(); err == nil && flushErr != nil {
		err = &ApplicationError{Component: "trace", Operation: "flush", Err: flushErr}
	}
	if err != nil {
		return err
	}

	if app.config.Debug.DumpPath != "" {
		if err := app.writeDump(app.config.Debug.DumpPath); err != nil {
			return err
		}
	}
	return app.compareGolden()
}

// startStatsview serves runtime statistics until ctx is done
func (app *Application) startStatsview(g *errgroup.Group, ctx context.Context) {
	viewer.SetConfiguration(viewer.WithAddr(StatsviewAddress))
	mgr := statsview.New()

	go mgr.Start()
	g.Go(func() error {
		<-ctx.Done()
		mgr.Stop()
		return nil
	})
	log.Printf("[APP] stats server available at http://%s/debug/statsview", StatsviewAddress)
}

// runFrontEnd polls input and renders snapshots. Ebitengine owns its loop
// and calls back once per tick; other backends use a ticker.
func (app *Application) runFrontEnd(ctx context.Context) error {
	if ew, ok := graphics.AsEbitengineWindow(app.window); ok {
		ew.SetEmulatorUpdateFunc(func() error {
			if ctx.Err() != nil {
				return ew.Cleanup()
			}
			return app.tick(ctx)
		})
		return ew.Run()
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return app.window.RenderState(app.emulator.State())
		case <-ticker.C:
			if err := app.tick(ctx); err != nil {
				return err
			}
			if app.window.ShouldClose() {
				return nil
			}
		}
	}
}

// tick handles one round of input and renders the latest snapshot
func (app *Application) tick(ctx context.Context) error {
	app.processInput(ctx)
	return app.window.RenderState(app.emulator.State())
}

// processInput processes input events from the front-end
func (app *Application) processInput(ctx context.Context) {
	for _, event := range app.window.PollEvents() {
		switch event.Type {
		case graphics.InputEventTypeQuit:
			app.Stop()
			return

		case graphics.InputEventTypeButton:
			if app.bus.Controller == nil {
				continue // Scripted input
			}
			if button, ok := graphicsButtonToInputButton(event.Button); ok {
				app.bus.Controller.SetButton(button, event.Pressed)
			}

		case graphics.InputEventTypeKey:
			if event.Pressed {
				app.handleKeyInput(ctx, event)
			}
		}
	}
}

// handleKeyInput handles monitor keys: quit, copy, pause, reset,
// interrupts and save slots
func (app *Application) handleKeyInput(ctx context.Context, event graphics.InputEvent) {
	if event.Key != graphics.KeyEscape {
		app.lastESCTime = time.Time{}
	}

	switch event.Key {
	case graphics.KeyEscape:
		// Require a double tap within 3 seconds
		now := time.Now()
		if !app.lastESCTime.IsZero() && now.Sub(app.lastESCTime) < 3*time.Second {
			app.Stop()
			return
		}
		log.Printf("[APP] ESC pressed - press ESC again within 3 seconds to quit")
		app.lastESCTime = now

	case graphics.KeyC:
		line := app.emulator.State().LastLine()
		if line == "" {
			return
		}
		if err := graphics.CopyText(line); err != nil {
			log.Printf("[APP] copy failed: %v", err)
		}

	case graphics.KeyP:
		app.TogglePause()

	case graphics.KeyR:
		if err := app.Reset(ctx); err != nil {
			log.Printf("[APP] reset failed: %v", err)
		}

	case graphics.KeyN:
		app.bus.CPU.TriggerNMI()

	case graphics.KeyI:
		app.bus.CPU.TriggerIRQ()

	case graphics.KeyF1, graphics.KeyF2, graphics.KeyF3, graphics.KeyF4, graphics.KeyF5,
		graphics.KeyF6, graphics.KeyF7, graphics.KeyF8, graphics.KeyF9, graphics.KeyF10:
		slot := int(event.Key - graphics.KeyF1)
		if event.Modifiers&graphics.ModifierShift != 0 {
			if err := app.LoadState(ctx, slot); err != nil {
				log.Printf("[APP] Failed to load state %d: %v", slot, err)
			}
		} else {
			if err := app.SaveState(ctx, slot); err != nil {
				log.Printf("[APP] Failed to save state %d: %v", slot, err)
			}
		}
	}
}

// graphicsButtonToInputButton converts graphics.Button to input.Button
func graphicsButtonToInputButton(gButton graphics.Button) (input.Button, bool) {
	switch gButton {
	case graphics.ButtonA:
		return input.A, true
	case graphics.ButtonB:
		return input.B, true
	case graphics.ButtonSelect:
		return input.Select, true
	case graphics.ButtonStart:
		return input.Start, true
	case graphics.ButtonUp:
		return input.Up, true
	case graphics.ButtonDown:
		return input.Down, true
	case graphics.ButtonLeft:
		return input.Left, true
	case graphics.ButtonRight:
		return input.Right, true
	default:
		return 0, false
	}
}

// compareGolden diffs the recorded trace against the golden log
func (app *Application) compareGolden() error {
	if app.traceBuffer == nil {
		return nil
	}

	f, err := os.Open(app.config.Debug.GoldenPath)
	if err != nil {
		return &ApplicationError{Component: "trace", Operation: "open golden log", Err: err}
	}
	defer f.Close()

	limit := int(app.config.Emulation.MaxSteps)
	if err := trace.Compare(bytes.NewReader(app.traceBuffer.Bytes()), f, limit); err != nil {
		return &ApplicationError{Component: "trace", Operation: "compare", Err: err}
	}
	log.Printf("[APP] trace matches %s", app.config.Debug.GoldenPath)
	return nil
}

// writeDump writes the final state as a hex dump to path and as a graphviz
// graph to path + ".dot"
func (app *Application) writeDump(path string) error {
	state := app.emulator.State()

	if err := writeFile(path, func(w io.Writer) error { return debug.WriteHexDump(w, state) }); err != nil {
		return &ApplicationError{Component: "debug", Operation: "dump", Err: err}
	}
	if err := writeFile(path+".dot", func(w io.Writer) error { return debug.DumpGraph(w, state) }); err != nil {
		return &ApplicationError{Component: "debug", Operation: "graph", Err: err}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Stop ends Run
func (app *Application) Stop() {
	if app.cancel != nil {
		app.cancel()
	}
}

// Pause suspends the worker
func (app *Application) Pause() {
	app.emulator.Pause()
}

// Resume continues the worker
func (app *Application) Resume() {
	app.emulator.Resume()
}

// TogglePause toggles the pause state
func (app *Application) TogglePause() {
	app.emulator.TogglePause()
	if app.config.Debug.EnableLogging {
		log.Printf("[APP] paused: %v", app.emulator.IsPaused())
	}
}

// SaveState saves the current state into a slot
func (app *Application) SaveState(ctx context.Context, slot int) error {
	return app.emulator.Do(ctx, func(b *bus.Bus) error {
		return app.stateManager.SaveState(b, slot, app.romPath)
	})
}

// LoadState restores a slot
func (app *Application) LoadState(ctx context.Context, slot int) error {
	return app.emulator.Do(ctx, func(b *bus.Bus) error {
		return app.stateManager.LoadState(b, slot, app.romPath)
	})
}

// Reset resets the system
func (app *Application) Reset(ctx context.Context) error {
	return app.emulator.Reset(ctx)
}

// IsPaused reports whether the worker is paused
func (app *Application) IsPaused() bool {
	return app.emulator != nil && app.emulator.IsPaused()
}

// State returns the latest published snapshot, nil before a ROM is loaded
func (app *Application) State() *bus.CPUState {
	if app.emulator == nil {
		return nil
	}
	return app.emulator.State()
}

// GetBus returns the bus. It must not be used while Run is active.
func (app *Application) GetBus() *bus.Bus {
	return app.bus
}

// GetROMPath returns the loaded ROM path
func (app *Application) GetROMPath() string {
	return app.romPath
}

// GetConfig returns the configuration
func (app *Application) GetConfig() *Config {
	return app.config
}

// Cleanup releases the front-end, trace file and input script
func (app *Application) Cleanup() error {
	var errs []error
	if app.window != nil {
		errs = append(errs, app.window.Cleanup())
	}
	if app.backend != nil {
		errs = append(errs, app.backend.Cleanup())
	}
	if app.traceFile != nil {
		errs = append(errs, app.traceFile.Close())
		app.traceFile = nil
	}
	if app.script != nil {
		app.script.Close()
		app.script = nil
	}
	return errors.Join(errs...)
}
