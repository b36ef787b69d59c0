package syscall

import (
	"context"
	"testing"

	"github.com/nanokernel/easyfs/internal/blockdev"
	"github.com/nanokernel/easyfs/internal/easyfs"
	"github.com/nanokernel/easyfs/internal/metrics"
	"github.com/nanokernel/easyfs/internal/mm"
	"github.com/nanokernel/easyfs/internal/task"
	"github.com/nanokernel/easyfs/internal/vfile"
	"github.com/nanokernel/easyfs/internal/vfs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestHandlers(t *testing.T) (*Handlers, *task.Kernel) {
	t.Helper()
	dev := blockdev.NewMemDevice(512)
	fs, err := easyfs.Create(dev, 512, 4, 8)
	require.NoError(t, err)
	root := vfs.Root(fs)
	k := task.NewKernel()
	return NewHandlers(k, root, metrics.New()), k
}

// TestSyscallsTotalCountsByMnemonic exercises SPEC_FULL.md's syscalls-total
// counter: every handler entry, not just dispatch plumbing, must bump its
// own mnemonic's label.
func TestSyscallsTotalCountsByMnemonic(t *testing.T) {
	h, k := newTestHandlers(t)
	space := mm.NewAddressSpace(64)

	k.Spawn(space, func(thread *task.Thread) {
		h.Getpid(thread)
		h.Getpid(thread)
		h.Yield(thread)
	})
	k.Proc.RunUntilIdle()

	require.Equal(t, float64(2), testutil.ToFloat64(h.Metrics.SyscallsTotal.WithLabelValues("getpid")))
	require.Equal(t, float64(1), testutil.ToFloat64(h.Metrics.SyscallsTotal.WithLabelValues("yield")))
}

func TestOpenWriteReadRoundTrip(t *testing.T) {
	h, k := newTestHandlers(t)
	space := mm.NewAddressSpace(256)
	copy(space.Raw()[0:5], []byte("hello"))

	var fd int
	var n int
	var readBack string

	k.Spawn(space, func(thread *task.Thread) {
		var err error
		fd, err = h.Open(thread, "greeting.txt", vfile.Create|vfile.ReadWrite)
		require.NoError(t, err)
		require.GreaterOrEqual(t, fd, 0)

		n, err = h.Write(context.Background(), thread, space, fd, 0, 5)
		require.NoError(t, err)
		require.Equal(t, 5, n)

		require.Equal(t, 0, h.Close(thread, fd))

		fd, err = h.Open(thread, "greeting.txt", vfile.ReadOnly)
		require.NoError(t, err)

		n, err = h.Read(context.Background(), thread, space, fd, 64, 5)
		require.NoError(t, err)
		readBack = string(space.Raw()[64 : 64+n])
	})
	k.Proc.RunUntilIdle()

	require.Equal(t, "hello", readBack)
}

func TestPipeSyscallRoundTrip(t *testing.T) {
	h, k := newTestHandlers(t)
	space := mm.NewAddressSpace(64)
	copy(space.Raw()[0:3], []byte("abc"))

	var readOut string
	k.Spawn(space, func(thread *task.Thread) {
		rfd, wfd := h.Pipe(thread)
		n, err := h.Write(context.Background(), thread, space, wfd, 0, 3)
		require.NoError(t, err)
		require.Equal(t, 3, n)
		require.Equal(t, 0, h.Close(thread, wfd))

		n, err = h.Read(context.Background(), thread, space, rfd, 32, 8)
		require.NoError(t, err)
		readOut = string(space.Raw()[32 : 32+n])
	})
	k.Proc.RunUntilIdle()

	require.Equal(t, "abc", readOut)
}

func TestForkWaitpidSyscalls(t *testing.T) {
	h, k := newTestHandlers(t)
	space := mm.NewAddressSpace(32)

	var childPid, waitedPid, waitedCode int
	k.Spawn(space, func(thread *task.Thread) {
		childPid = h.Fork(thread, func(ct *task.Thread) {
			h.Exit(ct, 3)
		})
		waitedPid, waitedCode = h.Wait(thread)
	})
	k.Proc.RunUntilIdle()

	require.Equal(t, childPid, waitedPid)
	require.Equal(t, 3, waitedCode)
}

func TestMutexSerializesCriticalSection(t *testing.T) {
	h, k := newTestHandlers(t)
	space := mm.NewAddressSpace(32)

	var mid int
	var order []int
	k.Spawn(space, func(owner *task.Thread) {
		mid = h.MutexCreate(owner, true)
		require.Equal(t, 0, h.MutexLock(owner, mid))

		k.SpawnThread(owner.Process, func(waiter *task.Thread) {
			require.Equal(t, 0, h.MutexLock(waiter, mid))
			order = append(order, 2)
			require.Equal(t, 0, h.MutexUnlock(waiter, mid))
		})

		owner.Suspend()
		order = append(order, 1)
		require.Equal(t, 0, h.MutexUnlock(owner, mid))
	})
	k.Proc.RunUntilIdle()

	require.Equal(t, []int{1, 2}, order)
}
