// Package debug writes post-mortem dumps of the CPU state
package debug

import (
	"bufio"
	"fmt"
	"io"

	"github.com/bradleyjkemp/memviz"

	"gones6502/internal/bus"
)

// WriteHexDump writes the registers, zero page, stack page and recent trace
// lines of a snapshot as text
func WriteHexDump(w io.Writer, s *bus.CPUState) error {
	if s == nil {
		return fmt.Errorf("no state to dump")
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# CPU state after %d steps (%s)\n", s.Steps, s.State)
	fmt.Fprintf(bw, "PC:%04X A:%02X X:%02X Y:%02X P:%02X SP:%02X CYC:%d\n",
		s.PC, s.A, s.X, s.Y, s.P, s.SP, s.Cycles)
	fmt.Fprintf(bw, "Flags: %s\n", s.Flags.FlagString())
	fmt.Fprintf(bw, "Controller: %02X  Direction: %02X\n", s.Controller, s.Direction)

	fmt.Fprintf(bw, "\n# Zero page\n")
	hexDump(bw, 0x0000, s.ZeroPage[:])

	fmt.Fprintf(bw, "\n# Stack\n")
	hexDump(bw, 0x0100, s.Stack[:])

	if len(s.Recent) > 0 {
		fmt.Fprintf(bw, "\n# Last %d instructions\n", len(s.Recent))
		for _, line := range s.Recent {
			fmt.Fprintln(bw, line)
		}
	}
	return bw.Flush()
}

// hexDump writes 16 bytes per row with an ASCII column
func hexDump(w io.Writer, base uint16, data []uint8) {
	for i := 0; i < len(data); i += 16 {
		row := data[i:min(i+16, len(data))]
		fmt.Fprintf(w, "%04X:", base+uint16(i))
		for _, v := range row {
			fmt.Fprintf(w, " %02X", v)
		}
		fmt.Fprint(w, "  |")
		for _, v := range row {
			if v < 0x20 || v > 0x7E {
				v = '.'
			}
			fmt.Fprintf(w, "%c", v)
		}
		fmt.Fprintln(w, "|")
	}
}

// DumpGraph writes a graphviz graph of the snapshot's object structure
func DumpGraph(w io.Writer, s *bus.CPUState) error {
	if s == nil {
		return fmt.Errorf("no state to dump")
	}
	memviz.Map(w, s)
	return nil
}
