package task

import "sync"

// Mutex is the common surface sys_mutex_lock/sys_mutex_unlock dispatch
// through, letting a process's mutex_list (spec.md §4.9) hold either
// flavor behind one id space, matching original_source's Mutex trait
// (sync/mutex.rs) implemented by both MutexBlocking and MutexSpin.
type Mutex interface {
	Lock(t *Thread)
	Unlock()
}

var (
	_ Mutex = (*SpinMutex)(nil)
	_ Mutex = (*BlockingMutex)(nil)
)

// SpinMutex is the busy-wait mutex of spec.md §4.8: Lock repeatedly yields
// the processor (rather than blocking) until it observes the lock free.
// Useful for short critical sections where the wait queue bookkeeping a
// BlockingMutex needs would cost more than a few retries.
type SpinMutex struct {
	mu     sync.Mutex
	locked bool
}

func NewSpinMutex() *SpinMutex { return &SpinMutex{} }

// Lock spins, calling t.Suspend() between attempts so other ready threads
// get a turn; it never blocks t off the ready queue.
func (m *SpinMutex) Lock(t *Thread) {
	for {
		m.mu.Lock()
		if !m.locked {
			m.locked = true
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		t.Suspend()
	}
}

func (m *SpinMutex) Unlock() {
	m.mu.Lock()
	m.locked = false
	m.mu.Unlock()
}

// BlockingMutex implements spec.md §4.8's strict-FIFO blocking mutex:
// a thread that finds the mutex held joins a wait queue and is taken off
// the ready queue entirely (Block, not Suspend); Unlock hands ownership
// directly to the queue's head rather than merely freeing the lock, so
// waiters are served in arrival order with no possibility of a
// later-arriving Lock jumping the queue.
type BlockingMutex struct {
	mgr *Manager

	mu     sync.Mutex
	locked bool
	queue  []*Thread
}

func NewBlockingMutex(mgr *Manager) *BlockingMutex {
	return &BlockingMutex{mgr: mgr}
}

// Lock acquires the mutex for t, blocking t (off the ready queue) until it
// is handed ownership if the mutex is currently held.
func (m *BlockingMutex) Lock(t *Thread) {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, t)
	m.mu.Unlock()
	t.Block()
}

// Unlock releases the mutex, handing it directly to the longest-waiting
// blocked thread (re-enqueuing that thread as Ready) if one exists.
func (m *BlockingMutex) Unlock() {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.locked = false
		m.mu.Unlock()
		return
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	m.mu.Unlock()
	m.mgr.Add(next)
}
