package task

// TaskContext models the callee-saved-register/ra/sp save area a real
// RISC-V __switch assembly routine would spill to (spec.md §3). Go has no
// stackful-coroutine primitive in the standard library, so this port
// "adopts stackful coroutines" the way the Design Notes explicitly permit
// (spec.md §9): each thread runs on its own goroutine, and a TaskContext is
// the pair of rendezvous channels that hands control between that
// goroutine and the processor's idle loop. The external contract is
// identical to the assembly version: switch returns to its caller only
// when another switch targets its saved context.
type TaskContext struct {
	resume chan struct{} // processor -> thread: "you are scheduled, run"
	parked chan struct{} // thread -> processor: "I yielded, resume your loop"
}

func newTaskContext() *TaskContext {
	return &TaskContext{resume: make(chan struct{}), parked: make(chan struct{})}
}

// switchTo hands control to this context and blocks until the owner parks
// again (or exits, closing parked). Called by the idle loop.
func (c *TaskContext) switchTo() {
	c.resume <- struct{}{}
	<-c.parked
}

// yield parks the calling goroutine and blocks until switchTo is called
// again. Called by a thread's own goroutine from inside Schedule.
func (c *TaskContext) yield() {
	c.parked <- struct{}{}
	<-c.resume
}

// finish parks one final time without expecting to be resumed; the
// goroutine this context belongs to returns right after calling it.
func (c *TaskContext) finish() {
	close(c.parked)
}
