// Package diag emits the chain's diagnostic line protocol on stderr.
//
// Every state transition in a chain member produces exactly one line of the
// form
//
//	fork #<depth> (pid <pid>):\t<event>
//
// written with a single Write call so that lines from concurrently exiting
// chain members do not shear each other. The line buffer is allocated once,
// up front, so emitting an event never allocates; oversized events are
// truncated rather than grown.
package diag

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

// maxLine bounds a single diagnostic line. Writes this short are atomic on
// every POSIX pipe and terminal we care about.
const maxLine = 4096

// Writer formats and emits diagnostic lines for one chain member.
type Writer struct {
	mu       sync.Mutex
	out      io.Writer
	buf      []byte
	preamble int // bytes of buf holding the "fork #… (pid …):\t" prefix
}

// New returns a Writer for a chain member at the given depth, writing to
// stderr. The preamble is rendered once; only the event text varies per line.
func New(depth int) *Writer {
	return NewTo(os.Stderr, depth, os.Getpid())
}

// NewTo is New with the output stream and pid made explicit.
func NewTo(out io.Writer, depth, pid int) *Writer {
	w := &Writer{
		out: out,
		buf: make([]byte, 0, maxLine),
	}

	// fork #%3d (pid %d):\t
	w.buf = append(w.buf, "fork #"...)
	d := strconv.Itoa(depth)
	for i := len(d); i < 3; i++ {
		w.buf = append(w.buf, ' ')
	}
	w.buf = append(w.buf, d...)
	w.buf = append(w.buf, " (pid "...)
	w.buf = strconv.AppendInt(w.buf, int64(pid), 10)
	w.buf = append(w.buf, "):\t"...)
	w.preamble = len(w.buf)

	return w
}

// Event emits one diagnostic line. The event text is truncated if the line
// would exceed the preallocated buffer; the trailing newline is kept in all
// cases. Emission failure never propagates: diagnostics are observability,
// not correctness, so a failed write is reported on the structured log
// channel and otherwise dropped.
func (w *Writer) Event(event string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	line := w.buf[:w.preamble]
	if room := maxLine - w.preamble - 1; len(event) > room {
		event = event[:room]
	}
	line = append(line, event...)
	line = append(line, '\n')

	if _, err := w.out.Write(line); err != nil {
		slog.Warn("diagnostic write failed", "error", err)
	}
}
