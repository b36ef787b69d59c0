package task

import (
	"testing"

	"github.com/nanokernel/easyfs/internal/mm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCooperativeFairness exercises property 6: threads run in strict FIFO
// ready-queue order, each yielding once, so output order reflects arrival
// order rather than any priority.
func TestCooperativeFairness(t *testing.T) {
	k := NewKernel()
	var order []int

	space := mm.NewAddressSpace(64)
	for i := 0; i < 3; i++ {
		i := i
		k.Spawn(space, func(t *Thread) {
			order = append(order, i)
			t.Suspend()
			order = append(order, 100+i)
		})
	}

	k.Proc.RunUntilIdle()
	assert.Equal(t, []int{0, 1, 2, 100, 101, 102}, order)
}

// TestBlockingMutexFIFO exercises property 7: a mutex hands off to waiters
// strictly in arrival order, not in ready-queue re-scheduling order.
func TestBlockingMutexFIFO(t *testing.T) {
	k := NewKernel()
	m := NewBlockingMutex(k.Mgr)
	var acquired []int

	space := mm.NewAddressSpace(64)
	holder := k.Spawn(space, func(t *Thread) {
		m.Lock(t)
		t.Suspend() // let waiters queue up before releasing
		acquired = append(acquired, -1)
		m.Unlock()
	})
	_ = holder

	for i := 0; i < 3; i++ {
		i := i
		proc := k.Spawn(space, func(t *Thread) {
			m.Lock(t)
			acquired = append(acquired, i)
			m.Unlock()
		})
		_ = proc
	}

	k.Proc.RunUntilIdle()
	require.Equal(t, []int{-1, 0, 1, 2}, acquired)
}

// TestWaitpidPollsBeforeChildExits exercises spec.md:140/180's polling
// contract directly: a Waitpid call issued before the forked child has had
// a turn to run must return -2 (children running), not block — the caller
// retries on -2 itself, exactly as original_source's user-space wait/
// waitpid loop over the non-blocking sys_waitpid.
func TestWaitpidPollsBeforeChildExits(t *testing.T) {
	k := NewKernel()
	space := mm.NewAddressSpace(64)

	var firstPid, firstCode int
	var childPid int

	parent := k.Spawn(space, func(t *Thread) {
		child := k.Fork(t.Process, func(ct *Thread) {
			ct.Exit(7)
		})
		childPid = child.Pid
		firstPid, firstCode = k.Waitpid(t, -1)
	})
	_ = parent

	k.Proc.RunUntilIdle()
	assert.Equal(t, -2, firstPid, "child has not had a turn yet, so Waitpid must poll rather than block")
	assert.Equal(t, 0, firstCode)
	_ = childPid
}

// TestWaitpidReapsZombie exercises property 9: a parent that retries
// Waitpid (yielding between polls, matching the original's user-lib
// wait/waitpid loop) eventually reaps its child's exit code.
func TestWaitpidReapsZombie(t *testing.T) {
	k := NewKernel()
	space := mm.NewAddressSpace(64)

	var childPid int
	var gotPid, gotCode int

	parent := k.Spawn(space, func(t *Thread) {
		child := k.Fork(t.Process, func(ct *Thread) {
			ct.Exit(7)
		})
		childPid = child.Pid
		for {
			gotPid, gotCode = k.Waitpid(t, -1)
			if gotPid != -2 {
				break
			}
			t.Suspend()
		}
	})
	_ = parent

	k.Proc.RunUntilIdle()
	assert.Equal(t, childPid, gotPid)
	assert.Equal(t, 7, gotCode)
}

// TestWaitpidNoChildReturnsSentinel exercises the spec'd -1 return for a
// pid that names no child of the caller — a normal return value, not an
// error.
func TestWaitpidNoChildReturnsSentinel(t *testing.T) {
	k := NewKernel()
	space := mm.NewAddressSpace(64)
	var gotPid int
	k.Spawn(space, func(t *Thread) {
		gotPid, _ = k.Waitpid(t, 999)
	})
	k.Proc.RunUntilIdle()
	assert.Equal(t, -1, gotPid)
}

// TestSignalMaskBlocksDelivery exercises property 8: a masked signal is not
// observed by CheckSignalsError until unmasked.
func TestSignalMaskBlocksDelivery(t *testing.T) {
	p := newProcess(1, nil, mm.NewAddressSpace(8))
	p.SigProcMask(sigBit(SIGINT))
	require.NoError(t, p.Kill(SIGINT))

	_, fatal := p.CheckSignalsError()
	assert.False(t, fatal, "masked signal must not be observed")

	p.SigProcMask(0)
	require.NoError(t, p.Kill(SIGINT))
	code, fatal := p.CheckSignalsError()
	assert.True(t, fatal)
	assert.Equal(t, -(SIGINT + 1), code)
}

// TestKillForcesChildExitWithDerivedCode exercises spec.md:255's S5
// end to end through the real scheduler: kill(child, SIGKILL) followed by
// waitpid must reap the child with SIGKILL's derived exit code, proving
// Process.Kill's pending bit is actually consumed at a return-to-user
// checkpoint rather than sitting inert.
func TestKillForcesChildExitWithDerivedCode(t *testing.T) {
	k := NewKernel()
	space := mm.NewAddressSpace(64)

	var waitedCode int
	parent := k.Spawn(space, func(t *Thread) {
		child := k.Fork(t.Process, func(ct *Thread) {
			for {
				ct.Suspend() // would loop forever if never killed
			}
		})
		require.NoError(t, child.Kill(SIGKILL))
		for {
			pid, code := k.Waitpid(t, -1)
			if pid != -2 {
				waitedCode = code
				break
			}
			t.Suspend()
		}
	})
	_ = parent

	k.Proc.RunUntilIdle()
	assert.Equal(t, -(SIGKILL + 1), waitedCode)
}

// TestSignalHandlerRunsThenSigreturnResumes exercises spec.md:256's S6 end
// to end: a SIGUSR1 handler installed via SigAction runs at the next
// return-to-user checkpoint after Kill, and sigreturn's HandlingSignal
// clear lets the body's own flow resume right after the suspension point.
func TestSignalHandlerRunsThenSigreturnResumes(t *testing.T) {
	k := NewKernel()
	space := mm.NewAddressSpace(64)

	var handlerRan, resumedAfterHandler bool
	proc := k.Spawn(space, func(t *Thread) {
		_, err := t.Process.SigAction(SIGUSR1, SignalAction{
			Handler:     1,
			HandlerFunc: func(ht *Thread) { handlerRan = true },
		})
		require.NoError(t, err)
		require.NoError(t, t.Process.Kill(SIGUSR1))

		t.Suspend() // return-to-user checkpoint: handler fires here
		resumedAfterHandler = true
	})

	k.Proc.RunUntilIdle()
	assert.True(t, handlerRan)
	assert.True(t, resumedAfterHandler)
	assert.Equal(t, 0, proc.HandlingSignal, "sigreturn must clear the handling-signal guard")
}

func TestSigActionRejectsKillAndStop(t *testing.T) {
	p := newProcess(1, nil, mm.NewAddressSpace(8))
	_, err := p.SigAction(SIGKILL, SignalAction{Handler: 1})
	assert.Error(t, err)
	_, err = p.SigAction(SIGSTOP, SignalAction{Handler: 1})
	assert.Error(t, err)
}

func TestTimerQueueWakesInOrder(t *testing.T) {
	mgr := NewManager()
	q := NewTimerQueue(mgr)
	proc := NewProcessor(mgr)

	a := newThread(proc, nil, 0, func(t *Thread) {})
	b := newThread(proc, nil, 1, func(t *Thread) {})
	q.Add(a, 200)
	q.Add(b, 100)

	assert.Equal(t, 0, q.Check(50))
	assert.Equal(t, 1, q.Check(100))
	assert.Equal(t, b, mgr.Fetch())
	assert.Equal(t, 1, q.Check(200))
	assert.Equal(t, a, mgr.Fetch())
}

func TestFdTableAllocReusesFreedSlots(t *testing.T) {
	p := newProcess(1, nil, mm.NewAddressSpace(8))
	fd0 := p.AllocFd(nil)
	fd1 := p.AllocFd(nil)
	assert.Equal(t, 0, fd0)
	assert.Equal(t, 1, fd1)
	p.CloseFd(fd0)
	fd2 := p.AllocFd(nil)
	assert.Equal(t, 0, fd2, "freed slots are reused before growing the table")
}
