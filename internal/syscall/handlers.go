package syscall

import (
	"context"
	"fmt"
	"time"

	"github.com/nanokernel/easyfs/internal/metrics"
	"github.com/nanokernel/easyfs/internal/mm"
	"github.com/nanokernel/easyfs/internal/task"
	"github.com/nanokernel/easyfs/internal/vfile"
	"github.com/nanokernel/easyfs/internal/vfs"
)

// Handlers binds the syscall surface to one kernel instance and the root
// directory of its mounted EasyFS image.
type Handlers struct {
	Kernel *task.Kernel
	Root   *vfs.Inode
	// Metrics, when set, receives a SyscallsTotal increment per mnemonic on
	// every handler entry (SPEC_FULL.md's syscalls-total counter). Nil is a
	// valid zero value for tests that build Handlers directly.
	Metrics *metrics.Registry
	// Now, when set, stands in for the mtime CSR get_time reads (spec.md
	// §5); tests substitute a deterministic fake. Defaults to time.Now.
	Now func() time.Time
}

func NewHandlers(k *task.Kernel, root *vfs.Inode, reg *metrics.Registry) *Handlers {
	return &Handlers{Kernel: k, Root: root, Metrics: reg}
}

// count bumps the named syscall's counter, the way instrumentedDevice bumps
// block-I/O counters in internal/kernel (internal/kernel/kernel.go) — a
// thin decorator around the real work rather than a metrics-aware handler
// body.
func (h *Handlers) count(name string) {
	if h.Metrics != nil {
		h.Metrics.SyscallsTotal.WithLabelValues(name).Inc()
	}
}

// GetTime implements sys_get_time: milliseconds since the Unix epoch.
func (h *Handlers) GetTime() int64 {
	h.count("get_time")
	now := h.Now
	if now == nil {
		now = time.Now
	}
	return now().UnixMilli()
}

// Open implements sys_open (spec.md §5): creates/truncates/opens name per
// flags and installs the result at the lowest free fd.
func (h *Handlers) Open(t *task.Thread, name string, flags vfile.OpenFlags) (int, error) {
	h.count("open")
	f, err := vfile.OpenFile(h.Root, name, flags)
	if err != nil {
		return -1, err
	}
	if f == nil {
		return -1, nil
	}
	return t.Process.AllocFd(f), nil
}

// Close implements sys_close.
func (h *Handlers) Close(t *task.Thread, fd int) int {
	h.count("close")
	if t.Process.CloseFd(fd) {
		return 0
	}
	return -1
}

// Dup implements sys_dup: a new fd sharing the same underlying File.
func (h *Handlers) Dup(t *task.Thread, fd int) int {
	h.count("dup")
	newFd, ok := t.Process.DupFd(fd)
	if !ok {
		return -1
	}
	return newFd
}

// Pipe implements sys_pipe: a fresh read/write endpoint pair, each
// installed at its own fd.
func (h *Handlers) Pipe(t *task.Thread) (readFd, writeFd int) {
	h.count("pipe")
	r, w := vfile.NewPipe(h.Kernel.Proc)
	readFd = t.Process.AllocFd(r)
	writeFd = t.Process.AllocFd(w)
	return
}

// Read implements sys_read: translates the user buffer through space and
// reads into it via the fd's File.
func (h *Handlers) Read(ctx context.Context, t *task.Thread, space *mm.AddressSpace, fd int, ptr uint64, length int) (int, error) {
	h.count("read")
	f := t.Process.Fd(fd)
	if f == nil {
		return -1, fmt.Errorf("syscall: read on closed fd %d", fd)
	}
	if !f.Readable() {
		return -1, fmt.Errorf("syscall: fd %d not open for reading", fd)
	}
	buf, err := space.Translate(ptr, length)
	if err != nil {
		return -1, err
	}
	return f.Read(ctx, buf.Slices)
}

// Write implements sys_write.
func (h *Handlers) Write(ctx context.Context, t *task.Thread, space *mm.AddressSpace, fd int, ptr uint64, length int) (int, error) {
	h.count("write")
	f := t.Process.Fd(fd)
	if f == nil {
		return -1, fmt.Errorf("syscall: write on closed fd %d", fd)
	}
	if !f.Writable() {
		return -1, fmt.Errorf("syscall: fd %d not open for writing", fd)
	}
	buf, err := space.Translate(ptr, length)
	if err != nil {
		return -1, err
	}
	return f.Write(ctx, buf.Slices)
}

// Exit implements sys_exit: the calling thread never returns from this
// call (task.Thread.Exit unwinds the goroutine via runtime.Goexit).
func (h *Handlers) Exit(t *task.Thread, code int) {
	h.count("exit")
	t.Exit(code)
}

// Yield implements sys_yield.
func (h *Handlers) Yield(t *task.Thread) {
	h.count("yield")
	t.Suspend()
}

// Kill implements sys_kill.
func (h *Handlers) Kill(t *task.Thread, sig int) int {
	h.count("kill")
	if err := t.Process.Kill(sig); err != nil {
		return -1
	}
	return 0
}

// Sigaction implements sys_sigaction.
func (h *Handlers) Sigaction(t *task.Thread, sig int, action task.SignalAction) (task.SignalAction, error) {
	h.count("sigaction")
	return t.Process.SigAction(sig, action)
}

// Sigprocmask implements sys_sigprocmask (SIG_SETMASK only, per spec.md §5).
func (h *Handlers) Sigprocmask(t *task.Thread, mask uint32) uint32 {
	h.count("sigprocmask")
	return t.Process.SigProcMask(mask)
}

// Sigreturn implements sys_sigreturn.
func (h *Handlers) Sigreturn(t *task.Thread) {
	h.count("sigreturn")
	t.Process.SigReturn()
}

// Getpid implements sys_getpid.
func (h *Handlers) Getpid(t *task.Thread) int {
	h.count("getpid")
	return t.Process.Pid
}

// Fork implements sys_fork. See task.Kernel.Fork's doc comment for how
// this port models the parent/child branch without a shared trap-return.
func (h *Handlers) Fork(t *task.Thread, childBody task.Body) int {
	h.count("fork")
	child := h.Kernel.Fork(t.Process, childBody)
	return child.Pid
}

// Exec implements sys_exec. See task.Thread.Exec's doc comment.
func (h *Handlers) Exec(t *task.Thread, space *mm.AddressSpace, body task.Body) {
	h.count("exec")
	t.Exec(space, body)
}

// Waitpid implements sys_waitpid: a single non-blocking poll that returns
// -1 (no matching child), -2 (matching child still running), or the
// reaped child's (pid, exit code). It never suspends the caller; see
// task.Kernel.Waitpid's doc comment.
func (h *Handlers) Waitpid(t *task.Thread, pid int) (int, int) {
	h.count("waitpid")
	return h.Kernel.Waitpid(t, pid)
}

// Wait is the user-library wait() helper (original_source's
// user/src/lib.rs wait), looping sys_waitpid(-1, ...) with a yield between
// polls until a child is reaped or the caller has no children left.
func (h *Handlers) Wait(t *task.Thread) (int, int) {
	return h.waitLoop(t, -1)
}

// WaitPid is the user-library waitpid() helper: as Wait, but for one
// specific child pid.
func (h *Handlers) WaitPid(t *task.Thread, pid int) (int, int) {
	return h.waitLoop(t, pid)
}

func (h *Handlers) waitLoop(t *task.Thread, pid int) (int, int) {
	for {
		h.count("waitpid")
		gotPid, code := h.Kernel.Waitpid(t, pid)
		if gotPid != -2 {
			return gotPid, code
		}
		t.Suspend()
	}
}

// MutexCreate implements sys_mutex_create: blocking selects the strict-FIFO
// BlockingMutex, false selects the yield-loop SpinMutex (spec.md §4.9).
func (h *Handlers) MutexCreate(t *task.Thread, blocking bool) int {
	h.count("mutex_create")
	return h.Kernel.MutexCreate(t, blocking)
}

// MutexLock implements sys_mutex_lock.
func (h *Handlers) MutexLock(t *task.Thread, id int) int {
	h.count("mutex_lock")
	if !h.Kernel.MutexLock(t, id) {
		return -1
	}
	return 0
}

// MutexUnlock implements sys_mutex_unlock.
func (h *Handlers) MutexUnlock(t *task.Thread, id int) int {
	h.count("mutex_unlock")
	if !h.Kernel.MutexUnlock(t, id) {
		return -1
	}
	return 0
}
