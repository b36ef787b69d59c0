// Package task implements the kernel's process/thread subsystem: PCBs,
// TCBs, the single-ready-queue scheduler with idle-loop dispatch,
// cooperative suspension, blocking mutex, signal delivery, fork/exec/wait,
// and the timer wheel (spec.md §3, §4.7–§4.11).
package task

import "sync"

// RecycleAllocator is the pid/tid/kernel-stack-id source of spec.md §3: a
// monotonic bump allocator with a free list of returned ids; Alloc prefers
// the free list. Per spec.md §7, these allocators never fail by contract.
type RecycleAllocator struct {
	mu      sync.Mutex
	next    int
	current int
	freed   []int
}

// NewRecycleAllocator creates an allocator starting at start (0 for pids,
// 1 for tids in this port — tid 0 is reserved for a process's main thread
// and is assigned explicitly, not through this allocator, mirroring
// original_source's id.rs).
func NewRecycleAllocator(start int) *RecycleAllocator {
	return &RecycleAllocator{next: start, current: start}
}

// Alloc returns the most recently recycled id if any, else the next fresh id.
func (a *RecycleAllocator) Alloc() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.freed); n > 0 {
		id := a.freed[n-1]
		a.freed = a.freed[:n-1]
		return id
	}
	id := a.next
	a.next++
	return id
}

// Dealloc returns id to the free list for reuse.
func (a *RecycleAllocator) Dealloc(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freed = append(a.freed, id)
}
