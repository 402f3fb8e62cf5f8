package graphics

import (
	"fmt"
	"log"

	"gones6502/internal/bus"
	"gones6502/internal/cpu"
)

// HeadlessBackend implements the Backend interface for headless operation
type HeadlessBackend struct {
	initialized bool
	config      Config
}

// HeadlessWindow implements the Window interface without any display. It
// closes itself once it has rendered a halted state.
type HeadlessWindow struct {
	title       string
	width       int
	height      int
	running     bool
	renderCount int
	lastSteps   uint64
	debug       bool
}

// NewHeadlessBackend creates a new headless graphics backend
func NewHeadlessBackend() Backend {
	return &HeadlessBackend{}
}

// Initialize initializes the headless backend
func (b *HeadlessBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("headless backend already initialized")
	}

	b.config = config
	b.initialized = true

	return nil
}

// CreateWindow creates a headless "window" (no actual window)
func (b *HeadlessBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}

	return &HeadlessWindow{
		title:   title,
		width:   width,
		height:  height,
		running: true,
		debug:   b.config.Debug,
	}, nil
}

// Cleanup releases all headless resources
func (b *HeadlessBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns true (this is a headless backend)
func (b *HeadlessBackend) IsHeadless() bool {
	return true
}

// GetName returns the backend name
func (b *HeadlessBackend) GetName() string {
	return "Headless"
}

// HeadlessWindow implementation

// SetTitle sets the window title (for logging purposes)
func (w *HeadlessWindow) SetTitle(title string) {
	w.title = title
}

// GetSize returns window dimensions
func (w *HeadlessWindow) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true if window should close
func (w *HeadlessWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents returns empty events list (no input in headless mode)
func (w *HeadlessWindow) PollEvents() []InputEvent {
	return nil
}

// RenderState logs progress periodically and closes the window when the
// CPU has halted
func (w *HeadlessWindow) RenderState(state *bus.CPUState) error {
	if state == nil {
		return nil
	}
	w.renderCount++

	if w.debug && w.renderCount%60 == 0 && state.Steps != w.lastSteps {
		log.Printf("[Headless] %s: %d steps, PC=$%04X", w.title, state.Steps, state.PC)
	}
	w.lastSteps = state.Steps

	if state.State == cpu.Halted {
		if w.debug {
			log.Printf("[Headless] CPU halted after %d steps at $%04X", state.Steps, state.PC)
		}
		w.running = false
	}
	return nil
}

// Cleanup releases window resources
func (w *HeadlessWindow) Cleanup() error {
	w.running = false
	return nil
}

// GetRenderCount returns the number of snapshots rendered
func (w *HeadlessWindow) GetRenderCount() int {
	return w.renderCount
}
