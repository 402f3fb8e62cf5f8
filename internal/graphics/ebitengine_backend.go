//go:build !headless
// +build !headless

package graphics

import (
	"fmt"
	"image/color"
	"log"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.design/x/clipboard"
	"golang.org/x/image/font/basicfont"

	"gones6502/internal/bus"
	"gones6502/internal/cpu"
)

const (
	lineHeight   = 14
	textMargin   = 8
	recentTraces = 12
)

var (
	backgroundColor = color.RGBA{R: 16, G: 16, B: 24, A: 255}
	textColor       = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	headingColor    = color.RGBA{R: 0, G: 220, B: 90, A: 255}
	haltedColor     = color.RGBA{R: 230, G: 80, B: 60, A: 255}

	monitorFace = text.NewGoXFace(basicfont.Face7x13)
)

// EbitengineBackend implements the Backend interface using Ebitengine
type EbitengineBackend struct {
	initialized bool
	config      Config
	game        *EbitengineGame
}

// EbitengineWindow implements the Window interface for Ebitengine
type EbitengineWindow struct {
	backend            *EbitengineBackend
	title              string
	width              int
	height             int
	game               *EbitengineGame
	running            bool
	events             []InputEvent
	emulatorUpdateFunc func() error
}

// EbitengineGame implements ebiten.Game for the CPU monitor
type EbitengineGame struct {
	window *EbitengineWindow

	// Text shown by Draw, replaced by RenderState
	lines  []string
	halted bool

	keyMappings    map[ebiten.Key]Key
	buttonMappings map[ebiten.Key]Button
	scale          int
	drawCount      int
}

// NewEbitengineBackend creates a new Ebitengine graphics backend
func NewEbitengineBackend() Backend {
	return &EbitengineBackend{}
}

// Initialize initializes the Ebitengine backend
func (b *EbitengineBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("Ebitengine backend already initialized")
	}

	b.config = config
	b.initialized = true

	return nil
}

// CreateWindow creates an Ebitengine window
func (b *EbitengineBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}

	if b.config.Headless {
		return nil, fmt.Errorf("cannot create window in headless mode")
	}

	scale := b.config.Scale
	if scale <= 0 {
		scale = 1
	}

	buttons, err := buttonKeyMap(b.config.ButtonKeys)
	if err != nil {
		return nil, err
	}

	game := &EbitengineGame{
		scale: scale,
		keyMappings: map[ebiten.Key]Key{
			ebiten.KeyEscape: KeyEscape,
			ebiten.KeyC:      KeyC,
			ebiten.KeyP:      KeyP,
			ebiten.KeyR:      KeyR,
			ebiten.KeyN:      KeyN,
			ebiten.KeyI:      KeyI,
			ebiten.KeyF1:     KeyF1,
			ebiten.KeyF2:     KeyF2,
			ebiten.KeyF3:     KeyF3,
			ebiten.KeyF4:     KeyF4,
			ebiten.KeyF5:     KeyF5,
			ebiten.KeyF6:     KeyF6,
			ebiten.KeyF7:     KeyF7,
			ebiten.KeyF8:     KeyF8,
			ebiten.KeyF9:     KeyF9,
			ebiten.KeyF10:    KeyF10,
		},
		buttonMappings: buttons,
	}

	window := &EbitengineWindow{
		backend: b,
		title:   title,
		width:   width,
		height:  height,
		game:    game,
		running: true,
	}

	game.window = window
	b.game = game

	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(width*scale, height*scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	return window, nil
}

// Cleanup releases all Ebitengine resources
func (b *EbitengineBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns true if running in headless mode
func (b *EbitengineBackend) IsHeadless() bool {
	return b.config.Headless
}

// GetName returns the backend name
func (b *EbitengineBackend) GetName() string {
	return "Ebitengine"
}

// EbitengineWindow implementation

// SetTitle sets the window title
func (w *EbitengineWindow) SetTitle(title string) {
	w.title = title
	ebiten.SetWindowTitle(title)
}

// GetSize returns window dimensions
func (w *EbitengineWindow) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true if window should close
func (w *EbitengineWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents returns the events gathered since the last call
func (w *EbitengineWindow) PollEvents() []InputEvent {
	events := w.events
	w.events = nil
	return events
}

// RenderState formats a snapshot for the next Draw
func (w *EbitengineWindow) RenderState(state *bus.CPUState) error {
	if w.game == nil {
		return fmt.Errorf("game not initialized")
	}
	w.game.lines = MonitorLines(state, recentTraces)
	w.game.halted = state != nil && state.State == cpu.Halted
	return nil
}

// Cleanup releases window resources
func (w *EbitengineWindow) Cleanup() error {
	w.running = false
	return nil
}

// Run starts the Ebitengine game loop. It must be called from the main
// goroutine and returns when the window closes.
func (w *EbitengineWindow) Run() error {
	if w.game == nil {
		return fmt.Errorf("game not initialized")
	}
	return ebiten.RunGame(w.game)
}

// SetEmulatorUpdateFunc sets the function called once per tick
func (w *EbitengineWindow) SetEmulatorUpdateFunc(updateFunc func() error) {
	w.emulatorUpdateFunc = updateFunc
}

// EbitengineGame implementation

// Update implements ebiten.Game.Update
func (g *EbitengineGame) Update() error {
	if g.window == nil {
		return nil
	}
	if !g.window.running {
		return ebiten.Termination
	}

	g.processInput()

	if g.window.emulatorUpdateFunc != nil {
		if err := g.window.emulatorUpdateFunc(); err != nil {
			log.Printf("[Ebitengine] Emulator update error: %v", err)
		}
	}

	if !g.window.running {
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game.Draw
func (g *EbitengineGame) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	for i, line := range g.lines {
		op := &text.DrawOptions{}
		op.GeoM.Translate(lineOrigin(i))
		op.ColorScale.ScaleWithColor(lineColor(i, line, g.halted))
		text.Draw(screen, line, monitorFace, op)
	}

	g.drawCount++
	if g.window.backend.config.Debug && g.drawCount%1800 == 0 {
		log.Printf("[Ebitengine] Drew %d frames, %d lines", g.drawCount, len(g.lines))
	}
}

// lineOrigin returns the top-left corner of monitor line i
func lineOrigin(i int) (x, y float64) {
	return textMargin, float64(textMargin + i*lineHeight)
}

// lineColor picks the colour of monitor line i. Headings are the lines
// without a colon.
func lineColor(i int, line string, halted bool) color.Color {
	switch {
	case i == 0 && halted:
		return haltedColor
	case line != "" && !strings.Contains(line, ":"):
		return headingColor
	}
	return textColor
}

// Layout implements ebiten.Game.Layout
func (g *EbitengineGame) Layout(outsideWidth, outsideHeight int) (screenWidth, screenHeight int) {
	return outsideWidth / g.scale, outsideHeight / g.scale
}

// processInput turns key transitions into button and key events
func (g *EbitengineGame) processInput() {
	var mods ModifierKey
	if ebiten.IsKeyPressed(ebiten.KeyShift) {
		mods |= ModifierShift
	}
	if ebiten.IsKeyPressed(ebiten.KeyControl) {
		mods |= ModifierCtrl
	}
	if ebiten.IsKeyPressed(ebiten.KeyAlt) {
		mods |= ModifierAlt
	}

	for ebitenKey, button := range g.buttonMappings {
		if inpututil.IsKeyJustPressed(ebitenKey) {
			g.window.events = append(g.window.events, InputEvent{Type: InputEventTypeButton, Button: button, Pressed: true})
		} else if inpututil.IsKeyJustReleased(ebitenKey) {
			g.window.events = append(g.window.events, InputEvent{Type: InputEventTypeButton, Button: button, Pressed: false})
		}
	}

	for ebitenKey, key := range g.keyMappings {
		if _, isButton := g.buttonMappings[ebitenKey]; isButton {
			continue
		}
		if inpututil.IsKeyJustPressed(ebitenKey) {
			g.window.events = append(g.window.events, InputEvent{Type: InputEventTypeKey, Key: key, Pressed: true, Modifiers: mods})
		}
	}
}

// buttonKeyMap resolves configured key names, falling back to WASD, J/K,
// Enter and Space. The arrow keys always drive the d-pad.
func buttonKeyMap(names map[Button]string) (map[ebiten.Key]Button, error) {
	m := map[ebiten.Key]Button{
		ebiten.KeyArrowUp:    ButtonUp,
		ebiten.KeyArrowDown:  ButtonDown,
		ebiten.KeyArrowLeft:  ButtonLeft,
		ebiten.KeyArrowRight: ButtonRight,
	}
	defaults := map[Button]ebiten.Key{
		ButtonUp:     ebiten.KeyW,
		ButtonDown:   ebiten.KeyS,
		ButtonLeft:   ebiten.KeyA,
		ButtonRight:  ebiten.KeyD,
		ButtonA:      ebiten.KeyJ,
		ButtonB:      ebiten.KeyK,
		ButtonStart:  ebiten.KeyEnter,
		ButtonSelect: ebiten.KeySpace,
	}
	for button, key := range defaults {
		if name, ok := names[button]; ok && name != "" {
			k, ok := ebitenKeyByName(name)
			if !ok {
				return nil, fmt.Errorf("unknown key name %q", name)
			}
			key = k
		}
		m[key] = button
	}
	return m, nil
}

var ebitenKeyNames = map[string]ebiten.Key{
	"A": ebiten.KeyA, "B": ebiten.KeyB, "C": ebiten.KeyC, "D": ebiten.KeyD,
	"E": ebiten.KeyE, "F": ebiten.KeyF, "G": ebiten.KeyG, "H": ebiten.KeyH,
	"I": ebiten.KeyI, "J": ebiten.KeyJ, "K": ebiten.KeyK, "L": ebiten.KeyL,
	"M": ebiten.KeyM, "N": ebiten.KeyN, "O": ebiten.KeyO, "P": ebiten.KeyP,
	"Q": ebiten.KeyQ, "R": ebiten.KeyR, "S": ebiten.KeyS, "T": ebiten.KeyT,
	"U": ebiten.KeyU, "V": ebiten.KeyV, "W": ebiten.KeyW, "X": ebiten.KeyX,
	"Y": ebiten.KeyY, "Z": ebiten.KeyZ,
	"ENTER": ebiten.KeyEnter, "SPACE": ebiten.KeySpace, "TAB": ebiten.KeyTab,
	"UP": ebiten.KeyArrowUp, "DOWN": ebiten.KeyArrowDown,
	"LEFT": ebiten.KeyArrowLeft, "RIGHT": ebiten.KeyArrowRight,
}

func ebitenKeyByName(name string) (ebiten.Key, bool) {
	k, ok := ebitenKeyNames[strings.ToUpper(strings.TrimSpace(name))]
	return k, ok
}

var (
	clipboardOnce sync.Once
	clipboardOK   bool
)

// CopyText writes text to the system clipboard
func CopyText(s string) error {
	clipboardOnce.Do(func() {
		clipboardOK = clipboard.Init() == nil
	})
	if !clipboardOK {
		return fmt.Errorf("clipboard unavailable")
	}
	clipboard.Write(clipboard.FmtText, []byte(s))
	return nil
}
