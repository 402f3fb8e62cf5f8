package graphics

import (
	"fmt"
	"io"
	"math/bits"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"gones6502/internal/bus"
	"gones6502/internal/cpu"
	"gones6502/internal/input"
)

const (
	// Terminals report no key releases, so a button is held this long
	// after its last key press
	terminalHoldTime = 150 * time.Millisecond

	terminalRenderInterval = 100 * time.Millisecond
)

// TerminalBackend implements the Backend interface for terminal-based rendering
type TerminalBackend struct {
	initialized bool
	config      Config
}

// TerminalWindow draws the monitor on a terminal and reads keys from stdin
// in raw mode
type TerminalWindow struct {
	title   string
	width   int
	height  int
	running bool

	out      io.Writer
	fd       int
	oldState *term.State
	keys     chan []byte

	held       map[Button]time.Time // Release deadline per held button
	lastRender time.Time
	showHalt   bool // Halted state already drawn
	now        func() time.Time
}

// NewTerminalBackend creates a new terminal graphics backend
func NewTerminalBackend() Backend {
	return &TerminalBackend{}
}

// Initialize initializes the terminal backend
func (b *TerminalBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("terminal backend already initialized")
	}

	b.config = config
	b.initialized = true

	return nil
}

// CreateWindow switches stdin to raw mode when it is a terminal and starts
// reading keys
func (b *TerminalBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}

	w := newTerminalWindow(title, width, height, os.Stdout)
	w.fd = int(os.Stdin.Fd())

	if term.IsTerminal(w.fd) {
		oldState, err := term.MakeRaw(w.fd)
		if err != nil {
			return nil, fmt.Errorf("failed to set raw mode: %w", err)
		}
		w.oldState = oldState
		go readKeys(os.Stdin, w.keys)
	}
	if cols, rows, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		w.width, w.height = cols, rows
	}

	w.SetTitle(title)
	return w, nil
}

func newTerminalWindow(title string, width, height int, out io.Writer) *TerminalWindow {
	return &TerminalWindow{
		title:   title,
		width:   width,
		height:  height,
		running: true,
		out:     out,
		fd:      -1,
		keys:    make(chan []byte, 16),
		held:    make(map[Button]time.Time),
		now:     time.Now,
	}
}

// readKeys forwards raw stdin chunks until stdin fails. An escape sequence
// normally arrives as a single chunk.
func readKeys(r io.Reader, keys chan<- []byte) {
	buf := make([]byte, 16)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			keys <- append([]byte(nil), buf[:n]...)
		}
		if err != nil {
			return
		}
	}
}

// Cleanup releases all terminal resources
func (b *TerminalBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns false (terminal has basic output)
func (b *TerminalBackend) IsHeadless() bool {
	return false
}

// GetName returns the backend name
func (b *TerminalBackend) GetName() string {
	return "Terminal"
}

// TerminalWindow implementation

// SetTitle sets the terminal title
func (w *TerminalWindow) SetTitle(title string) {
	w.title = title
	fmt.Fprintf(w.out, "\033]0;%s\007", title)
}

// GetSize returns the terminal dimensions in characters
func (w *TerminalWindow) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true if window should close
func (w *TerminalWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents turns pending key presses into events and releases buttons
// whose hold time has passed
func (w *TerminalWindow) PollEvents() []InputEvent {
	var events []InputEvent
	now := w.now()

	for {
		select {
		case chunk := <-w.keys:
			for _, e := range parseTerminalKeys(chunk) {
				if e.Type == InputEventTypeButton {
					if _, held := w.held[e.Button]; !held {
						events = append(events, e)
					}
					w.held[e.Button] = now.Add(terminalHoldTime)
					continue
				}
				events = append(events, e)
			}
			continue
		default:
		}
		break
	}

	for button, deadline := range w.held {
		if now.After(deadline) {
			delete(w.held, button)
			events = append(events, InputEvent{Type: InputEventTypeButton, Button: button, Pressed: false})
		}
	}
	return events
}

// parseTerminalKeys decodes one chunk of raw terminal input
func parseTerminalKeys(chunk []byte) []InputEvent {
	var events []InputEvent
	for i := 0; i < len(chunk); i++ {
		c := chunk[i]
		switch {
		case c == 0x1B && i+2 < len(chunk) && chunk[i+1] == '[':
			if b, ok := input.ParseArrow(chunk[i+2]); ok {
				events = append(events, InputEvent{Type: InputEventTypeButton, Button: buttonFromInput(b), Pressed: true})
			}
			i += 2
		case c == 0x1B:
			events = append(events, InputEvent{Type: InputEventTypeKey, Key: KeyEscape, Pressed: true})
		case c == 0x03 || c == 'q' || c == 'Q':
			events = append(events, InputEvent{Type: InputEventTypeQuit, Pressed: true})
		case c == 'c' || c == 'C':
			events = append(events, InputEvent{Type: InputEventTypeKey, Key: KeyC, Pressed: true})
		case c == 'p' || c == 'P':
			events = append(events, InputEvent{Type: InputEventTypeKey, Key: KeyP, Pressed: true})
		case c == 'r' || c == 'R':
			events = append(events, InputEvent{Type: InputEventTypeKey, Key: KeyR, Pressed: true})
		case c == 'n' || c == 'N':
			events = append(events, InputEvent{Type: InputEventTypeKey, Key: KeyN, Pressed: true})
		case c == 'i' || c == 'I':
			events = append(events, InputEvent{Type: InputEventTypeKey, Key: KeyI, Pressed: true})
		case c >= '0' && c <= '9':
			// Digits pick save slots: 1-9 then 0 for the tenth
			key := KeyF1 + Key(c-'1')
			if c == '0' {
				key = KeyF10
			}
			events = append(events, InputEvent{Type: InputEventTypeKey, Key: key, Pressed: true})
		default:
			if b, ok := input.ParseKey(c); ok {
				events = append(events, InputEvent{Type: InputEventTypeButton, Button: buttonFromInput(b), Pressed: true})
			}
		}
	}
	return events
}

// buttonFromInput converts a controller bit to a Button
func buttonFromInput(b input.Button) Button {
	return ButtonA + Button(bits.TrailingZeros8(uint8(b)))
}

// RenderState redraws the monitor at most every terminalRenderInterval.
// The first halted state is always drawn.
func (w *TerminalWindow) RenderState(state *bus.CPUState) error {
	now := w.now()
	halted := state != nil && state.State == cpu.Halted
	firstHalt := halted && !w.showHalt
	w.showHalt = halted
	if !firstHalt && now.Sub(w.lastRender) < terminalRenderInterval {
		return nil
	}
	w.lastRender = now

	lines := MonitorLines(state, 8)
	if w.height > 0 && len(lines) > w.height-1 {
		lines = lines[:w.height-1]
	}
	for i, line := range lines {
		if w.width > 0 && len(line) > w.width {
			lines[i] = line[:w.width]
		}
	}

	// Raw mode needs explicit carriage returns
	_, err := fmt.Fprintf(w.out, "\033[H\033[2J%s\r\n", strings.Join(lines, "\r\n"))
	return err
}

// Cleanup restores the terminal
func (w *TerminalWindow) Cleanup() error {
	w.running = false
	if w.oldState != nil {
		err := term.Restore(w.fd, w.oldState)
		w.oldState = nil
		return err
	}
	return nil
}
