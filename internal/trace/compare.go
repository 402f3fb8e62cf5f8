package trace

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Mismatch describes the first line where a trace departs from the golden
// log
type Mismatch struct {
	Line int // 1-based
	Got  string
	Want string
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("trace mismatch at line %d:\n  got:  %s\n  want: %s", m.Line, m.Got, m.Want)
}

// Normalize strips the columns this emulator does not produce (PPU and
// cycle counts) and trailing whitespace from a golden log line
func Normalize(line string) string {
	if i := strings.Index(line, " PPU:"); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, " CYC:"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimRight(line, " \r")
}

// Compare diffs got against want line by line. It returns a *Mismatch for
// the first differing line, including one log ending early, and nil when
// both match. Only the first limit lines are compared when limit > 0.
func Compare(got, want io.Reader, limit int) error {
	gs := bufio.NewScanner(got)
	ws := bufio.NewScanner(want)

	for line := 1; limit <= 0 || line <= limit; line++ {
		gOK := gs.Scan()
		wOK := ws.Scan()
		if !gOK && !wOK {
			break
		}

		var g, w string
		if gOK {
			g = Normalize(gs.Text())
		}
		if wOK {
			w = Normalize(ws.Text())
		}
		if !gOK {
			g = "<end of trace>"
		}
		if !wOK {
			w = "<end of golden log>"
		}
		if g != w {
			return &Mismatch{Line: line, Got: g, Want: w}
		}
	}

	if err := gs.Err(); err != nil {
		return fmt.Errorf("reading trace: %w", err)
	}
	if err := ws.Err(); err != nil {
		return fmt.Errorf("reading golden log: %w", err)
	}
	return nil
}
