package trace

import (
	"bufio"
	"io"
	"sync"

	"gones6502/internal/cpu"
)

// Writer is a cpu.TraceSink that writes one line per instruction
type Writer struct {
	mem        cpu.Reader
	out        *bufio.Writer
	withCycles bool

	mu   sync.Mutex
	last string
	err  error
	n    uint64
}

// NewWriter creates a trace writer reading instruction bytes from mem
func NewWriter(w io.Writer, mem cpu.Reader) *Writer {
	return &Writer{
		mem: mem,
		out: bufio.NewWriter(w),
	}
}

// IncludeCycles appends the CYC column to every line
func (w *Writer) IncludeCycles(on bool) {
	w.withCycles = on
}

// Trace implements cpu.TraceSink. The first write error is kept and
// returned by Flush; later lines are dropped.
func (w *Writer) Trace(s cpu.Snapshot) {
	w.WriteEntry(Build(s, w.mem))
}

// WriteEntry writes an entry that has already been built
func (w *Writer) WriteEntry(entry Entry) {
	line := entry.String()
	if w.withCycles {
		line = entry.WithCycles()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.last = line
	w.n++
	if w.err != nil {
		return
	}
	if _, err := w.out.WriteString(line); err != nil {
		w.err = err
		return
	}
	w.err = w.out.WriteByte('\n')
}

// Last returns the most recently written line. Safe to call from any
// goroutine.
func (w *Writer) Last() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Lines returns the number of lines traced
func (w *Writer) Lines() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Flush writes buffered lines and reports the first error seen
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	return w.out.Flush()
}
