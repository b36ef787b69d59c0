package task

import (
	"sync"

	"github.com/nanokernel/easyfs/internal/mm"
	"github.com/nanokernel/easyfs/internal/vfile"
)

// Process is the kernel's PCB (spec.md §4.7): address space, fd table,
// pending-signal state, and the thread group sharing them. Parent/child
// links are spec'd as weak/strong Rc pairs to break the cycle a plain
// Arc<Mutex<PCB>> parent<->child graph would otherwise form; Go's tracing
// GC collects cycles natively; see DESIGN.md. So Parent is a plain pointer
// and Children is a plain slice of pointers.
type Process struct {
	mu sync.Mutex

	Pid    int
	Parent *Process
	Children []*Process
	Zombie   bool
	ExitCode int

	Space *mm.AddressSpace

	fds     []vfile.File

	PendingSignals uint32
	SignalMask     uint32
	SignalActions  [32]SignalAction
	// HandlingSignal is 0 when not currently inside a signal handler, or
	// the signal number being handled (spec.md §4.9's handling_sig). While
	// it is non-zero no other handler signal is delivered.
	HandlingSignal int
	TrapCtxBackup  []byte

	Threads      []*Thread
	tidAllocator *RecycleAllocator

	mutexes []Mutex
}

// SignalAction describes one entry of the 32-slot signal_actions table
// (spec.md §4.9): a handler user-pointer (0 means default action) plus the
// mask installed while that handler runs. HandlerFunc is this port's stand
// -in for "jump to the handler's code at Handler": since a thread's Body
// is a Go closure rather than an addressable instruction stream (spec.md
// §1's ELF loader is out of scope), the handler itself is a closure too,
// invoked inline at the next return-to-user checkpoint instead of through
// a trap-frame PC rewrite. See Thread.checkSignalsAtReturnToUser.
type SignalAction struct {
	Handler     uint64
	Mask        uint32
	HandlerFunc func(t *Thread)
}

// newProcess allocates a PCB with tid 0 not yet attached; callers create
// the main thread separately via Manager/Processor plumbing, since thread
// creation needs the kernel's shared Manager to enqueue it.
func newProcess(pid int, parent *Process, space *mm.AddressSpace) *Process {
	p := &Process{
		Pid:          pid,
		Parent:       parent,
		Space:        space,
		tidAllocator: NewRecycleAllocator(1), // tid 0 reserved for the main thread
	}
	return p
}

// AllocFd installs f at the lowest free descriptor (preferring gaps left by
// CloseFd), matching spec.md §4.10's fd-table allocation discipline.
func (p *Process) AllocFd(f vfile.File) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for fd, existing := range p.fds {
		if existing == nil {
			p.fds[fd] = f
			return fd
		}
	}
	p.fds = append(p.fds, f)
	return len(p.fds) - 1
}

// Fd returns the file installed at fd, or nil if fd is closed/out of range.
func (p *Process) Fd(fd int) vfile.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fd < 0 || fd >= len(p.fds) {
		return nil
	}
	return p.fds[fd]
}

// CloseFd clears fd so AllocFd can reuse the slot; closing a pipe's write
// end drops that endpoint's reference to the ring. Closing an already
// closed or out-of-range fd is a no-op that reports false.
func (p *Process) CloseFd(fd int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fd < 0 || fd >= len(p.fds) || p.fds[fd] == nil {
		return false
	}
	f := p.fds[fd]
	p.fds[fd] = nil
	if w, ok := f.(*vfile.WritePipeEnd); ok {
		w.Close()
	}
	return true
}

// DupFd installs the same underlying File at a new, lowest-free
// descriptor, sharing cursor/ring state exactly as dup(2) does.
func (p *Process) DupFd(fd int) (int, bool) {
	p.mu.Lock()
	f := fd >= 0 && fd < len(p.fds) && p.fds[fd] != nil
	var target vfile.File
	if f {
		target = p.fds[fd]
	}
	p.mu.Unlock()
	if !f {
		return -1, false
	}
	if w, ok := target.(*vfile.WritePipeEnd); ok {
		target = w.Dup()
	}
	return p.AllocFd(target), true
}

// addMutex installs m at the lowest free mutex-list slot, matching
// original_source's sys_mutex_create (reuses a freed None slot before
// growing the list).
func (p *Process) addMutex(m Mutex) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.mutexes {
		if existing == nil {
			p.mutexes[i] = m
			return i
		}
	}
	p.mutexes = append(p.mutexes, m)
	return len(p.mutexes) - 1
}

func (p *Process) mutex(id int) Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id < 0 || id >= len(p.mutexes) || p.mutexes[id] == nil {
		return nil
	}
	return p.mutexes[id]
}
