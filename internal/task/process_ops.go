package task

import (
	"sync"

	"github.com/nanokernel/easyfs/internal/mm"
	"github.com/nanokernel/easyfs/internal/vfile"
)

// Kernel wires the Manager, Processor, and TimerQueue together with the
// pid allocator and process table, giving process_ops.go one place to
// perform fork/exec/waitpid/exit bookkeeping across process boundaries
// without the Processor or Manager needing to know about PCBs (spec.md
// §9's recommended central "kernel context").
type Kernel struct {
	Mgr    *Manager
	Proc   *Processor
	Timers *TimerQueue

	mu        sync.Mutex
	pidAlloc  *RecycleAllocator
	processes map[int]*Process
	// Init is the designated reparenting target for orphaned children,
	// mirroring a traditional pid-1 init process. Nothing in this module
	// assigns it, so it is nil unless an embedder sets it; orphans of a
	// kernel with no Init are simply dropped from any process's Children
	// once their original parent exits.
	Init *Process
}

func NewKernel() *Kernel {
	mgr := NewManager()
	proc := NewProcessor(mgr)
	k := &Kernel{
		Mgr:       mgr,
		Proc:      proc,
		pidAlloc:  NewRecycleAllocator(0),
		processes: make(map[int]*Process),
	}
	k.Timers = NewTimerQueue(mgr)
	proc.onExit = k.onThreadExit
	return k
}

// Spawn creates a fresh process (no parent) with a single tid-0 thread
// running body, and enqueues that thread as Ready. This is how
// cmd/kerneld bootstraps the first user process; every later process
// descends from it via Fork.
func (k *Kernel) Spawn(space *mm.AddressSpace, body Body) *Process {
	return k.spawn(nil, space, body)
}

func (k *Kernel) spawn(parent *Process, space *mm.AddressSpace, body Body) *Process {
	k.mu.Lock()
	pid := k.pidAlloc.Alloc()
	k.mu.Unlock()

	p := newProcess(pid, parent, space)
	t := newThread(k.Proc, p, 0, body)
	p.Threads = append(p.Threads, t)

	k.mu.Lock()
	k.processes[pid] = p
	k.mu.Unlock()

	if parent != nil {
		parent.mu.Lock()
		parent.Children = append(parent.Children, p)
		parent.mu.Unlock()
	}
	k.Mgr.Add(t)
	return p
}

// SpawnThread adds an additional thread to process p (pthread_create-style
// fan-out within a single address space), returning its tid.
func (k *Kernel) SpawnThread(p *Process, body Body) *Thread {
	p.mu.Lock()
	tid := p.tidAllocator.Alloc()
	t := newThread(k.Proc, p, tid, body)
	p.Threads = append(p.Threads, t)
	p.mu.Unlock()
	k.Mgr.Add(t)
	return t
}

// Fork duplicates parent into a new child process (spec.md §5): a fresh
// pid, a copy of the parent's address-space bytes, and a fd table sharing
// the same open vfile.File instances (open files survive fork, matching
// POSIX). childBody is the child's program; this port has no way to
// "resume the same code path with a different return value" the way a
// real fork(2)/trap-return pair does, so callers model the parent/child
// branch as two separate Body closures (see DESIGN.md).
func (k *Kernel) Fork(parent *Process, childBody Body) *Process {
	parent.mu.Lock()
	childSpace := mm.NewAddressSpace(parent.Space.Size())
	copy(childSpace.Raw(), parent.Space.Raw())
	fds := make([]vfile.File, len(parent.fds))
	copy(fds, parent.fds)
	for i, f := range fds {
		if w, ok := f.(*vfile.WritePipeEnd); ok {
			fds[i] = w.Dup()
		}
	}
	actions := parent.SignalActions
	mask := parent.SignalMask
	parent.mu.Unlock()

	child := k.spawn(parent, childSpace, childBody)
	child.mu.Lock()
	child.fds = fds
	child.SignalActions = actions
	child.SignalMask = mask
	child.mu.Unlock()
	return child
}

// Exec replaces the calling thread's program in place (spec.md §5):
// address space is swapped, signal actions reset to default, and body
// runs synchronously in the current goroutine in place of returning —
// there is no trap-return boundary to re-enter at in this port, so Exec
// simply becomes the rest of the thread's run() call stack, exactly as
// execve never returning to its caller on success.
func (t *Thread) Exec(space *mm.AddressSpace, body Body) {
	p := t.Process
	p.mu.Lock()
	p.Space = space
	p.SignalActions = [32]SignalAction{}
	p.mu.Unlock()
	body(t)
}

// Waitpid implements spec.md §5's waitpid: a single non-blocking poll, not
// a blocking wait (spec.md:140, spec.md:180 — "the only wait with a
// non-blocking negative-return polling form"). It never takes the caller
// off the ready queue. pid == -1 matches any child, otherwise a specific
// one. Returns (-1, 0) if the caller has no child matching pid at all,
// (-2, 0) if a matching child exists but none is zombie yet, or the
// reaped child's (pid, exit code) once one is — mirroring
// original_source's sys_waitpid (NO_CHILDREN_RUNNING/CHILDREN_RUNNING).
// Callers that want the blocking wait(2)/waitpid(2) behavior retry on -2
// themselves, the way original_source's user/src/lib.rs wait/waitpid
// loop over sys_waitpid with yield_() between polls (see
// internal/syscall.Handlers.Wait/WaitPid).
func (k *Kernel) Waitpid(t *Thread, pid int) (int, int) {
	p := t.Process
	p.mu.Lock()
	matchIdx, anyMatch := -1, false
	for i, c := range p.Children {
		if pid != -1 && c.Pid != pid {
			continue
		}
		anyMatch = true
		c.mu.Lock()
		zombie := c.Zombie
		c.mu.Unlock()
		if zombie {
			matchIdx = i
			break
		}
	}
	if !anyMatch {
		p.mu.Unlock()
		return -1, 0
	}
	if matchIdx == -1 {
		p.mu.Unlock()
		return -2, 0
	}
	child := p.Children[matchIdx]
	p.Children = append(p.Children[:matchIdx], p.Children[matchIdx+1:]...)
	p.mu.Unlock()

	k.mu.Lock()
	delete(k.processes, child.Pid)
	k.pidAlloc.Dealloc(child.Pid)
	k.mu.Unlock()

	child.mu.Lock()
	code := child.ExitCode
	child.mu.Unlock()
	return child.Pid, code
}

func (k *Kernel) onThreadExit(t *Thread) {
	p := t.Process
	p.mu.Lock()
	for i, th := range p.Threads {
		if th == t {
			p.Threads = append(p.Threads[:i], p.Threads[i+1:]...)
			break
		}
	}
	remaining := len(p.Threads)
	p.mu.Unlock()

	if t.Tid != 0 && remaining > 0 {
		p.tidAllocator.Dealloc(t.Tid)
		return
	}
	k.exitProcess(p, t.ExitCode)
}

// exitProcess marks p a zombie and reparents its children to k.Init (if
// set, dropping them from any process graph otherwise). p's parent learns
// of this the next time it polls Waitpid; nothing needs waking since
// Waitpid never blocks.
func (k *Kernel) exitProcess(p *Process, code int) {
	p.mu.Lock()
	p.Zombie = true
	p.ExitCode = code
	children := p.Children
	p.Children = nil
	p.mu.Unlock()

	if k.Init != nil && k.Init != p {
		k.Init.mu.Lock()
		for _, c := range children {
			c.mu.Lock()
			c.Parent = k.Init
			c.mu.Unlock()
			k.Init.Children = append(k.Init.Children, c)
		}
		k.Init.mu.Unlock()
	}
}

// MutexCreate implements sys_mutex_create (spec.md §4.9): installs a fresh
// blocking or spin mutex at the calling process's lowest free mutex-list
// slot and returns that slot's id.
func (k *Kernel) MutexCreate(t *Thread, blocking bool) int {
	var m Mutex
	if blocking {
		m = NewBlockingMutex(k.Mgr)
	} else {
		m = NewSpinMutex()
	}
	return t.Process.addMutex(m)
}

// MutexLock implements sys_mutex_lock: blocks/spins the calling thread
// until it owns mutex id. Returns false if id names no mutex.
func (k *Kernel) MutexLock(t *Thread, id int) bool {
	m := t.Process.mutex(id)
	if m == nil {
		return false
	}
	m.Lock(t)
	return true
}

// MutexUnlock implements sys_mutex_unlock. Returns false if id names no
// mutex.
func (k *Kernel) MutexUnlock(t *Thread, id int) bool {
	m := t.Process.mutex(id)
	if m == nil {
		return false
	}
	m.Unlock()
	return true
}
