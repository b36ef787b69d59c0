package vfile

import (
	"bufio"
	"context"
	"io"
)

// Stdin reads one byte at a time via the console, cooperatively suspending
// until a byte is available (spec.md §4.6). The SBI console itself is out
// of scope (spec.md §1); Console abstracts it down to a single-byte poll so
// tests can supply a fake.
type Console interface {
	// ReadByte returns (0, false) when no byte is currently available,
	// without blocking — Stdin.Read is what does the blocking/suspending.
	ReadByte() (byte, bool)
	WriteByte(b byte)
}

// Stdin is the File variant reading from the console.
type Stdin struct {
	console Console
	sched   Scheduler
}

func NewStdin(console Console, sched Scheduler) *Stdin {
	return &Stdin{console: console, sched: sched}
}

func (s *Stdin) Readable() bool { return true }
func (s *Stdin) Writable() bool { return false }

func (s *Stdin) Read(ctx context.Context, bufs [][]byte) (int, error) {
	total := 0
	for _, dst := range bufs {
		for i := range dst {
			var b byte
			for {
				var ok bool
				b, ok = s.console.ReadByte()
				if ok {
					break
				}
				s.sched.SuspendCurrentAndRunNext()
			}
			dst[i] = b
			total++
		}
	}
	return total, nil
}

func (s *Stdin) Write(context.Context, [][]byte) (int, error) {
	return 0, errNotWritable
}

// Stdout is the File variant writing to the console.
type Stdout struct {
	console Console
}

func NewStdout(console Console) *Stdout { return &Stdout{console: console} }

func (s *Stdout) Readable() bool { return false }
func (s *Stdout) Writable() bool { return true }

func (s *Stdout) Read(context.Context, [][]byte) (int, error) {
	return 0, errNotReadable
}

func (s *Stdout) Write(ctx context.Context, bufs [][]byte) (int, error) {
	total := 0
	for _, b := range bufs {
		s.flush(b)
		total += len(b)
	}
	return total, nil
}

func (s *Stdout) flush(b []byte) {
	for _, c := range b {
		s.console.WriteByte(c)
	}
}

// WriterConsole adapts any io.Writer into a Console for Stdout, and any
// bufio.Reader into one for Stdin. ReadByte only returns bytes already held
// in the reader's buffer; it never reads from the underlying source.
type WriterConsole struct {
	w io.Writer
	r *bufio.Reader
}

func NewWriterConsole(w io.Writer, r *bufio.Reader) *WriterConsole {
	return &WriterConsole{w: w, r: r}
}

func (c *WriterConsole) WriteByte(b byte) {
	if c.w != nil {
		c.w.Write([]byte{b})
	}
}

func (c *WriterConsole) ReadByte() (byte, bool) {
	if c.r == nil {
		return 0, false
	}
	if c.r.Buffered() == 0 {
		return 0, false
	}
	b, err := c.r.ReadByte()
	if err != nil {
		return 0, false
	}
	return b, true
}
