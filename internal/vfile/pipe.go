package vfile

import (
	"context"
	"sync"
)

// ringCapacity is the pipe ring buffer's fixed 32-byte size, per spec.md §3.
const ringCapacity = 32

type ringStatus int

const (
	statusNormal ringStatus = iota
	statusFull
	statusEmpty
)

// ringBuffer is the shared state between a pipe's two endpoints.
type ringBuffer struct {
	mu             sync.Mutex
	buf            [ringCapacity]byte
	head, tail     int
	status         ringStatus
	writeClosed    bool // true once every write endpoint has been dropped
	writeEndpoints int
}

func newRingBuffer() *ringBuffer {
	return &ringBuffer{status: statusEmpty, writeEndpoints: 1}
}

func (r *ringBuffer) availableRead() int {
	switch r.status {
	case statusEmpty:
		return 0
	case statusFull:
		return ringCapacity
	default:
		if r.tail <= r.head {
			return r.head - r.tail
		}
		return ringCapacity - r.tail + r.head
	}
}

func (r *ringBuffer) availableWrite() int {
	return ringCapacity - r.availableRead()
}

// ReadPipeEnd and WritePipeEnd are the two Pipe File variants, sharing one
// ringBuffer (spec.md §3/§4.8). The read end does not need a weak
// back-reference to the write end in this Go port: writer closure is
// tracked with an explicit counter the write end decrements on Close,
// rather than relying on GC weak-pointer liveness (see DESIGN.md).
type ReadPipeEnd struct {
	ring  *ringBuffer
	sched Scheduler
}

type WritePipeEnd struct {
	ring    *ringBuffer
	sched   Scheduler
	closed  bool
	closeMu sync.Mutex
}

// NewPipe creates a connected pair of pipe endpoints, per spec.md §4.8.
func NewPipe(sched Scheduler) (*ReadPipeEnd, *WritePipeEnd) {
	r := newRingBuffer()
	return &ReadPipeEnd{ring: r, sched: sched}, &WritePipeEnd{ring: r, sched: sched}
}

func (p *ReadPipeEnd) Readable() bool  { return true }
func (p *ReadPipeEnd) Writable() bool  { return false }
func (p *WritePipeEnd) Readable() bool { return false }
func (p *WritePipeEnd) Writable() bool { return true }

// Read drains up to len(bufs-concat) bytes, blocking while empty. If every
// write endpoint has closed, it returns whatever could still be read
// (possibly 0) rather than blocking further, per spec.md §4.8.
func (p *ReadPipeEnd) Read(ctx context.Context, bufs [][]byte) (int, error) {
	total := 0
	for _, dst := range bufs {
		for len(dst) > 0 {
			n := p.readSome(dst)
			if n == 0 {
				if p.writerClosed() {
					return total, nil
				}
				p.sched.SuspendCurrentAndRunNext()
				continue
			}
			dst = dst[n:]
			total += n
		}
	}
	return total, nil
}

func (p *ReadPipeEnd) writerClosed() bool {
	p.ring.mu.Lock()
	defer p.ring.mu.Unlock()
	return p.ring.writeClosed
}

func (p *ReadPipeEnd) readSome(dst []byte) int {
	r := p.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	avail := r.availableRead()
	if avail == 0 {
		return 0
	}
	n := avail
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = r.buf[r.tail]
		r.tail = (r.tail + 1) % ringCapacity
	}
	if r.tail == r.head {
		r.status = statusEmpty
	} else {
		r.status = statusNormal
	}
	return n
}

// Write is unreachable on a read end; the fd table never exposes it for
// writing (Writable() is false), but a defensive implementation still
// returns an error rather than panicking a misbehaving caller.
func (p *ReadPipeEnd) Write(context.Context, [][]byte) (int, error) {
	return 0, errNotWritable
}

// Write fills up to len(bufs-concat) bytes, blocking while full.
func (p *WritePipeEnd) Write(ctx context.Context, bufs [][]byte) (int, error) {
	total := 0
	for _, src := range bufs {
		for len(src) > 0 {
			n := p.writeSome(src)
			if n == 0 {
				p.sched.SuspendCurrentAndRunNext()
				continue
			}
			src = src[n:]
			total += n
		}
	}
	return total, nil
}

func (p *WritePipeEnd) writeSome(src []byte) int {
	r := p.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	avail := r.availableWrite()
	if avail == 0 {
		return 0
	}
	n := avail
	if n > len(src) {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		r.buf[r.head] = src[i]
		r.head = (r.head + 1) % ringCapacity
	}
	if r.head == r.tail {
		r.status = statusFull
	} else {
		r.status = statusNormal
	}
	return n
}

func (p *WritePipeEnd) Read(context.Context, [][]byte) (int, error) {
	return 0, errNotReadable
}

// Close marks this write endpoint closed; once every write endpoint
// sharing this ring has closed, pending and future readers observe
// writer-closure instead of blocking forever.
func (p *WritePipeEnd) Close() {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	p.ring.mu.Lock()
	p.ring.writeEndpoints--
	if p.ring.writeEndpoints <= 0 {
		p.ring.writeClosed = true
	}
	p.ring.mu.Unlock()
}

// Dup increments the shared write-endpoint count, used when fork/dup
// duplicate a file descriptor pointing at this endpoint (Kernel.Fork and
// Process.DupFd).
func (p *WritePipeEnd) Dup() *WritePipeEnd {
	p.ring.mu.Lock()
	p.ring.writeEndpoints++
	p.ring.mu.Unlock()
	return &WritePipeEnd{ring: p.ring, sched: p.sched}
}
