package task

import "container/heap"

// timerEntry fires by waking Thread once ExpiryMs has passed, matching
// spec.md §4.11's timer wheel used to back usleep-style blocking.
type timerEntry struct {
	ExpiryMs int64
	Thread   *Thread
	index    int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].ExpiryMs < h[j].ExpiryMs }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// TimerQueue is a min-heap of pending wakeups keyed by absolute expiry
// time (milliseconds). It holds no clock of its own — the caller supplies
// "now" to Check, matching the original's reliance on an external mtime
// source. In this module only the tests call Check.
type TimerQueue struct {
	h     timerHeap
	mgr   *Manager
	byPtr map[*Thread]*timerEntry
}

func NewTimerQueue(mgr *Manager) *TimerQueue {
	return &TimerQueue{mgr: mgr, byPtr: make(map[*Thread]*timerEntry)}
}

// Add schedules t to be re-enqueued onto the ready queue once nowMs
// reaches expiryMs, implementing add_timer.
func (q *TimerQueue) Add(t *Thread, expiryMs int64) {
	e := &timerEntry{ExpiryMs: expiryMs, Thread: t}
	heap.Push(&q.h, e)
	q.byPtr[t] = e
}

// Remove cancels t's pending timer, if any, implementing remove_timer.
func (q *TimerQueue) Remove(t *Thread) {
	e, ok := q.byPtr[t]
	if !ok {
		return
	}
	heap.Remove(&q.h, e.index)
	delete(q.byPtr, t)
}

// Check pops and re-enqueues every timer whose expiry has passed, in
// expiry order, implementing check_timer. Returns the number woken.
func (q *TimerQueue) Check(nowMs int64) int {
	woken := 0
	for q.h.Len() > 0 && q.h[0].ExpiryMs <= nowMs {
		e := heap.Pop(&q.h).(*timerEntry)
		delete(q.byPtr, e.Thread)
		q.mgr.Add(e.Thread)
		woken++
	}
	return woken
}

// Len reports the number of pending timers.
func (q *TimerQueue) Len() int { return q.h.Len() }
