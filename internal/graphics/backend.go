// Package graphics provides the front-ends that display CPU state and turn
// keyboard input into controller events
package graphics

import "gones6502/internal/bus"

// Backend represents a front-end backend (Ebitengine, terminal, headless)
type Backend interface {
	// Initialize initializes the backend
	Initialize(config Config) error

	// CreateWindow creates a window for the monitor
	CreateWindow(title string, width, height int) (Window, error)

	// Cleanup releases all resources
	Cleanup() error

	// IsHeadless returns true if nothing is displayed
	IsHeadless() bool

	// GetName returns the backend name for identification
	GetName() string
}

// Window displays CPU state snapshots and reports input
type Window interface {
	// SetTitle sets the window title
	SetTitle(title string)

	// GetSize returns window dimensions
	GetSize() (width, height int)

	// ShouldClose returns true if window should close
	ShouldClose() bool

	// PollEvents returns the input events since the last call
	PollEvents() []InputEvent

	// RenderState shows a snapshot. The snapshot must not be modified.
	RenderState(state *bus.CPUState) error

	// Cleanup releases window resources
	Cleanup() error
}

// Config contains configuration for graphics backends
type Config struct {
	WindowTitle  string
	WindowWidth  int
	WindowHeight int
	Scale        int

	// ButtonKeys names the key for each controller button, e.g. "W" or
	// "Enter". Missing entries keep the defaults.
	ButtonKeys map[Button]string

	Headless bool
	Debug    bool
}

// InputEvent represents an input event from the window
type InputEvent struct {
	Type      InputEventType
	Key       Key
	Button    Button
	Pressed   bool
	Modifiers ModifierKey
}

// InputEventType represents the type of input event
type InputEventType int

const (
	InputEventTypeKey InputEventType = iota
	InputEventTypeButton
	InputEventTypeQuit
)

// Key represents keyboard keys that are not controller buttons
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeyC // Copy the latest trace line
	KeyP // Pause
	KeyR // Reset
	KeyN // NMI
	KeyI // IRQ
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
)

// Button represents controller buttons
type Button int

const (
	ButtonUnknown Button = iota
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// ModifierKey represents modifier keys
type ModifierKey int

const (
	ModifierNone  ModifierKey = 0
	ModifierShift ModifierKey = 1 << iota
	ModifierCtrl
	ModifierAlt
)

// BackendType represents different graphics backend types
type BackendType string

const (
	BackendEbitengine BackendType = "ebitengine"
	BackendHeadless   BackendType = "headless"
	BackendTerminal   BackendType = "terminal"
)

// CreateBackend creates a graphics backend of the specified type
func CreateBackend(backendType BackendType) (Backend, error) {
	switch backendType {
	case BackendEbitengine:
		return NewEbitengineBackend(), nil
	case BackendHeadless:
		return NewHeadlessBackend(), nil
	case BackendTerminal:
		return NewTerminalBackend(), nil
	default:
		return NewEbitengineBackend(), nil
	}
}

// AsEbitengineWindow tries to cast a Window to EbitengineWindow
func AsEbitengineWindow(window Window) (*EbitengineWindow, bool) {
	if ebitengineWindow, ok := window.(*EbitengineWindow); ok {
		return ebitengineWindow, true
	}
	return nil, false
}
