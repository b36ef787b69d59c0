package task

import (
	"runtime"
	"sync"
)

// Processor is the per-core idle loop of spec.md §4.7: fetch the head of
// the ready queue, mark it Running, switch its TaskContext in, and repeat
// once it hands control back. This port models a single core, matching the
// single shared ready queue — no per-core affinity or work stealing.
type Processor struct {
	mgr *Manager

	mu      sync.Mutex
	current *Thread

	// onExit, when set, lets the owning Kernel/Process wire thread exit into
	// process-level teardown (zombie transition, child reparenting) without this
	// package depending on pcb.go's internals.
	onExit func(t *Thread)
}

func NewProcessor(mgr *Manager) *Processor {
	return &Processor{mgr: mgr}
}

// Current returns the thread presently dispatched on this processor, or
// nil if the idle loop is between threads.
func (p *Processor) Current() *Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Processor) setCurrent(t *Thread) {
	p.mu.Lock()
	p.current = t
	p.mu.Unlock()
}

// RunUntilIdle drives the idle loop, dispatching ready threads one at a
// time until the ready queue drains. Tests and cmd/kerneld's single-core
// demo loop call this directly instead of running it on its own goroutine,
// since the whole simulation is cooperative and single-threaded from the
// scheduler's point of view.
func (p *Processor) RunUntilIdle() {
	for {
		t := p.mgr.Fetch()
		if t == nil {
			return
		}
		p.dispatch(t)
	}
}

func (p *Processor) dispatch(t *Thread) {
	t.Status = Running
	p.setCurrent(t)
	t.ctx.switchTo()
	p.setCurrent(nil)
}

// suspendAndSwitch re-enqueues t (called on itself, from its own goroutine)
// and parks it, returning control to the idle loop. Mirrors
// suspend_current_and_run_next.
func (p *Processor) suspendAndSwitch(t *Thread) {
	p.mgr.Add(t)
	t.ctx.yield()
}

// blockAndSwitch leaves t Blocking and parks it without re-enqueuing.
// Mirrors block_current_and_run_next; the caller (mutex, pipe, timer) is
// responsible for calling Manager.Add(t) once t becomes runnable again.
func (p *Processor) blockAndSwitch(t *Thread) {
	t.Status = Blocking
	t.ctx.yield()
}

// exitAndSwitch records code, runs the onExit hook, then parks t
// permanently: finish() unblocks the idle loop immediately, and
// runtime.Goexit unwinds t's own goroutine (running deferred cleanup such
// as close(t.done)) without returning into Body — a thread must never
// execute user code again after calling Exit.
func (p *Processor) exitAndSwitch(t *Thread, code int) {
	t.ExitCode = code
	if p.onExit != nil {
		p.onExit(t)
	}
	t.ctx.finish()
	runtime.Goexit()
}

// SuspendCurrentAndRunNext implements vfile.Scheduler, letting pipe/stdin
// reads and writes cooperatively suspend without vfile importing task.
func (p *Processor) SuspendCurrentAndRunNext() {
	if t := p.Current(); t != nil {
		t.Suspend()
	}
}
