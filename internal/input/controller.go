// Package input implements the controller byte sampled by the CPU loop.
package input

import (
	"log"
	"sync/atomic"
)

// Button represents controller buttons, one bit each
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Convenience constants for shorter names used by the front-ends
const (
	A      = ButtonA
	B      = ButtonB
	Select = ButtonSelect
	Start  = ButtonStart
	Up     = ButtonUp
	Down   = ButtonDown
	Left   = ButtonLeft
	Right  = ButtonRight
)

var buttonNames = [8]string{"A", "B", "Select", "Start", "Up", "Down", "Left", "Right"}

func (b Button) String() string {
	for i, name := range buttonNames {
		if b == 1<<i {
			return name
		}
	}
	return "Button(?)"
}

// Source supplies the controller byte once per instruction. Poll runs on
// the CPU goroutine and blocks the loop until it returns.
type Source interface {
	Poll(step uint64) (uint8, error)
}

// Controller is a live controller fed by a front-end. Button updates may come
// from any goroutine; Poll latches the state seen by the CPU.
type Controller struct {
	// Current button states (A, B, Select, Start, Up, Down, Left, Right)
	buttons atomic.Uint32

	// State returned by the last Poll
	latched uint8

	polls        uint64
	debugEnabled bool
}

// New creates a new Controller instance
func New() *Controller {
	return &Controller{}
}

// SetButton sets the state of a button
func (c *Controller) SetButton(button Button, pressed bool) {
	for {
		old := c.buttons.Load()
		next := old &^ uint32(button)
		if pressed {
			next |= uint32(button)
		}
		if c.buttons.CompareAndSwap(old, next) {
			if c.debugEnabled && old != next {
				log.Printf("[INPUT] SetButton: %s pressed=%t, buttons=0x%02X", button, pressed, next)
			}
			return
		}
	}
}

// SetButtons sets all button states at once, in A, B, Select, Start, Up,
// Down, Left, Right order
func (c *Controller) SetButtons(buttons [8]bool) {
	var state uint32
	for i, pressed := range buttons {
		if pressed {
			state |= 1 << i
		}
	}
	c.buttons.Store(state)
}

// SetState replaces the whole button byte
func (c *Controller) SetState(state uint8) {
	c.buttons.Store(uint32(state))
}

// IsPressed returns true if the button is currently pressed
func (c *Controller) IsPressed(button Button) bool {
	return c.buttons.Load()&uint32(button) != 0
}

// State returns the live button byte
func (c *Controller) State() uint8 {
	return uint8(c.buttons.Load())
}

// Poll implements Source by latching the live button byte
func (c *Controller) Poll(step uint64) (uint8, error) {
	c.polls++
	state := c.State()
	if c.debugEnabled && state != c.latched {
		log.Printf("[INPUT] step %d (poll %d): controller 0x%02X -> 0x%02X", step, c.polls, c.latched, state)
	}
	c.latched = state
	return state, nil
}

// Latched returns the byte returned by the last Poll
func (c *Controller) Latched() uint8 {
	return c.latched
}

// Polls returns the number of Poll calls since the last Reset
func (c *Controller) Polls() uint64 {
	return c.polls
}

// Reset releases all buttons
func (c *Controller) Reset() {
	c.buttons.Store(0)
	c.latched = 0
	c.polls = 0
}

// EnableDebug enables debug logging for this controller
func (c *Controller) EnableDebug(enable bool) {
	c.debugEnabled = enable
}
