package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gones6502/internal/bus"
	"gones6502/internal/cpu"
	"gones6502/internal/memory"
)

const saveStateVersion = "1"

var (
	// ErrNoSaveState is returned when a slot holds no state
	ErrNoSaveState = errors.New("no save state")
	// ErrStateMismatch is returned when a state was taken from another ROM
	ErrStateMismatch = errors.New("save state belongs to a different ROM")
	// ErrCorruptState is returned when a state file is malformed
	ErrCorruptState = errors.New("corrupt save state")
)

// StateManager manages save state slots in one directory
type StateManager struct {
	saveDirectory string
	maxSlots      int
}

// SaveState represents a saved emulator state
type SaveState struct {
	// Metadata
	Version     string    `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	ROMPath     string    `json:"rom_path"`
	ROMChecksum string    `json:"rom_checksum"`
	SlotNumber  int       `json:"slot_number"`
	Description string    `json:"description"`

	CPUState CPUStateData `json:"cpu_state"`
	RAM      []uint8      `json:"ram"` // 0x0000-0x7FFF
}

// CPUStateData represents CPU state for save files
type CPUStateData struct {
	PC     uint16 `json:"pc"`
	A      uint8  `json:"a"`
	X      uint8  `json:"x"`
	Y      uint8  `json:"y"`
	SP     uint8  `json:"sp"`
	P      uint8  `json:"p"`
	Cycles uint64 `json:"cycles"`
}

// StateSlotInfo contains information about a save state slot
type StateSlotInfo struct {
	SlotNumber  int       `json:"slot_number"`
	Used        bool      `json:"used"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
}

// NewStateManager creates a state manager, creating the directory if needed
func NewStateManager(saveDirectory string, maxSlots int) (*StateManager, error) {
	if maxSlots <= 0 {
		maxSlots = 10
	}
	if err := os.MkdirAll(saveDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create save directory: %w", err)
	}
	return &StateManager{saveDirectory: saveDirectory, maxSlots: maxSlots}, nil
}

// Capture copies the CPU registers and RAM of b. It must run on the
// goroutine that steps b.
func Capture(b *bus.Bus, slot int, romPath string) *SaveState {
	regs := b.CPU.Registers()
	now := time.Now()
	return &SaveState{
		Version:     saveStateVersion,
		Timestamp:   now,
		ROMPath:     romPath,
		ROMChecksum: b.Cartridge.Checksum(),
		SlotNumber:  slot,
		Description: fmt.Sprintf("step %d at $%04X, %s", b.CPU.Steps(), regs.PC, now.Format("2006-01-02 15:04:05")),
		CPUState: CPUStateData{
			PC:     regs.PC,
			A:      regs.A,
			X:      regs.X,
			Y:      regs.Y,
			SP:     regs.SP,
			P:      regs.Status(),
			Cycles: b.CPU.Cycles(),
		},
		RAM: b.Memory.RAM(),
	}
}

// Restore resets b and loads state into it. The step counter restarts at
// zero. b is left untouched when the state is rejected.
func Restore(b *bus.Bus, state *SaveState) error {
	if state.Version != saveStateVersion {
		return fmt.Errorf("unsupported save state version %q", state.Version)
	}
	if state.ROMChecksum != b.Cartridge.Checksum() {
		return ErrStateMismatch
	}
	if len(state.RAM) != memory.RAMSize {
		return fmt.Errorf("%w: RAM image is %d bytes, want %d", ErrCorruptState, len(state.RAM), memory.RAMSize)
	}

	b.Reset()
	if err := b.Memory.RestoreRAM(state.RAM); err != nil {
		return err
	}

	regs := cpu.NewRegisters()
	regs.PC = state.CPUState.PC
	regs.A = state.CPUState.A
	regs.X = state.CPUState.X
	regs.Y = state.CPUState.Y
	regs.SP = state.CPUState.SP
	regs.SetStatus(state.CPUState.P)
	b.CPU.SetRegisters(regs)
	b.CPU.SetCycles(state.CPUState.Cycles)
	return nil
}

// SaveState writes the state of b into a slot
func (sm *StateManager) SaveState(b *bus.Bus, slot int, romPath string) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("bus cannot be nil")
	}

	if err := sm.saveToFile(Capture(b, slot, romPath), sm.getSlotFilePath(slot, romPath)); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// LoadState restores a slot into b
func (sm *StateManager) LoadState(b *bus.Bus, slot int, romPath string) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("bus cannot be nil")
	}

	state, err := sm.loadFromFile(sm.getSlotFilePath(slot, romPath))
	if err != nil {
		return err
	}

	if err := Restore(b, state); err != nil {
		return fmt.Errorf("slot %d: %w", slot, err)
	}
	return nil
}

func (sm *StateManager) checkSlot(slot int) error {
	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d (must be 0-%d)", slot, sm.maxSlots-1)
	}
	return nil
}

// saveToFile writes through a temporary file so a failed write never
// clobbers an existing slot
func (sm *StateManager) saveToFile(state *SaveState, filePath string) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return os.Rename(tmp, filePath)
}

// loadFromFile loads a state from a file
func (sm *StateManager) loadFromFile(filePath string) (*SaveState, error) {
	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNoSaveState, filepath.Base(filePath))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var state SaveState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// getSlotFilePath generates the file path for a save slot
func (sm *StateManager) getSlotFilePath(slot int, romPath string) string {
	romName := filepath.Base(romPath)
	romName = strings.TrimSuffix(romName, filepath.Ext(romName))
	return filepath.Join(sm.saveDirectory, fmt.Sprintf("%s_slot_%d.json", romName, slot))
}

// GetSlotInfo returns information about all save slots
func (sm *StateManager) GetSlotInfo(romPath string) []StateSlotInfo {
	slots := make([]StateSlotInfo, sm.maxSlots)
	for i := range slots {
		path := sm.getSlotFilePath(i, romPath)
		slots[i] = StateSlotInfo{SlotNumber: i, FilePath: path}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		slots[i].Used = true
		slots[i].FileSize = info.Size()
		slots[i].Timestamp = info.ModTime()

		if state, err := sm.loadFromFile(path); err == nil {
			slots[i].Timestamp = state.Timestamp
			slots[i].Description = state.Description
		}
	}
	return slots
}

// DeleteState removes a slot file
func (sm *StateManager) DeleteState(slot int, romPath string) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	err := os.Remove(sm.getSlotFilePath(slot, romPath))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w in slot %d", ErrNoSaveState, slot)
	}
	return err
}

// HasSaveState checks if a save state exists in a slot
func (sm *StateManager) HasSaveState(slot int, romPath string) bool {
	if sm.checkSlot(slot) != nil {
		return false
	}
	_, err := os.Stat(sm.getSlotFilePath(slot, romPath))
	return err == nil
}

// GetMaxSlots returns the maximum number of save slots
func (sm *StateManager) GetMaxSlots() int {
	return sm.maxSlots
}

// GetSaveDirectory returns the save directory
func (sm *StateManager) GetSaveDirectory() string {
	return sm.saveDirectory
}
