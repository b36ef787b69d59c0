package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanokernel/easyfs/internal/blockdev"
	"github.com/nanokernel/easyfs/internal/mm"
	"github.com/nanokernel/easyfs/internal/task"
	"github.com/nanokernel/easyfs/internal/vfile"
)

func TestBootCreateThenRunProgram(t *testing.T) {
	dev := blockdev.NewMemDevice(512)
	k, err := Boot(dev, true, 512, 4, 8, Options{})
	require.NoError(t, err)

	space := mm.NewAddressSpace(64)
	copy(space.Raw()[0:3], []byte("hi!"))

	var readBack string
	k.Tasks.Spawn(space, func(thread *task.Thread) {
		fd, err := k.Syscalls.Open(thread, "greeting", vfile.Create|vfile.ReadWrite)
		require.NoError(t, err)
		_, err = k.Syscalls.Write(context.Background(), thread, space, fd, 0, 3)
		require.NoError(t, err)
		require.Equal(t, 0, k.Syscalls.Close(thread, fd))

		fd, err = k.Syscalls.Open(thread, "greeting", vfile.ReadOnly)
		require.NoError(t, err)
		n, err := k.Syscalls.Read(context.Background(), thread, space, fd, 16, 3)
		require.NoError(t, err)
		readBack = string(space.Raw()[16 : 16+n])
	})
	k.Run()

	require.Equal(t, "hi!", readBack)
	require.NoError(t, k.Shutdown())
	require.Equal(t, uint64(1), testutilGather(t, k))
}

// testutilGather checks the cache miss counter recorded at least one miss
// so the metrics wiring is exercised, not just present.
func testutilGather(t *testing.T, k *Kernel) uint64 {
	t.Helper()
	mfs, err := k.Metrics.Gatherer().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
	for _, mf := range mfs {
		if mf.GetName() == "nanokernel_cache_misses_total" {
			if mf.GetMetric()[0].GetCounter().GetValue() >= 1 {
				return 1
			}
			return 0
		}
	}
	t.Fatalf("cache miss counter not gathered")
	return 0
}
