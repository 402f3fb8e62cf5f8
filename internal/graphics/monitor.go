package graphics

import (
	"fmt"
	"strings"

	"gones6502/internal/bus"
)

// MonitorLines renders a snapshot as text: registers, zero page, the stack
// page around SP and up to recent trace lines. Every backend shows the same
// layout.
func MonitorLines(s *bus.CPUState, recent int) []string {
	if s == nil {
		return []string{"no state"}
	}

	lines := []string{
		fmt.Sprintf("PC:%04X A:%02X X:%02X Y:%02X SP:%02X P:%02X %s",
			s.PC, s.A, s.X, s.Y, s.SP, s.P, s.Flags.FlagString()),
		fmt.Sprintf("%-7s STEP:%d CYC:%d PAD:%02X DIR:%s",
			s.State, s.Steps, s.Cycles, s.Controller, directionLabel(s.Direction)),
		"",
		"ZERO PAGE",
	}
	lines = append(lines, hexRows(0x0000, s.ZeroPage[:])...)

	// Two rows of stack around the top of stack
	row := int(s.SP) &^ 0x0F
	if row > 0xE0 {
		row = 0xE0
	}
	lines = append(lines, "", "STACK")
	lines = append(lines, hexRows(0x0100|uint16(row), s.Stack[row:row+0x20])...)

	if recent > 0 && len(s.Recent) > 0 {
		lines = append(lines, "", "TRACE")
		from := len(s.Recent) - recent
		if from < 0 {
			from = 0
		}
		lines = append(lines, s.Recent[from:]...)
	}
	return lines
}

// hexRows formats data as 16-byte rows labelled from base
func hexRows(base uint16, data []uint8) []string {
	var rows []string
	var b strings.Builder
	for i := 0; i < len(data); i += 16 {
		b.Reset()
		fmt.Fprintf(&b, "%04X:", base+uint16(i))
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		for _, v := range data[i:end] {
			fmt.Fprintf(&b, " %02X", v)
		}
		rows = append(rows, b.String())
	}
	return rows
}

func directionLabel(code uint8) string {
	if code >= 0x20 && code < 0x7F {
		return fmt.Sprintf("'%c'", code)
	}
	return fmt.Sprintf("$%02X", code)
}
