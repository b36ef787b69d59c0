// Package kernel assembles one boot session: the block device, cache,
// mounted EasyFS, task scheduler, timer queue, syscall handlers, metrics
// registry, and a uuid-tagged slog logger, matching the Design Notes'
// recommendation (spec.md §9) for a single central context rather than
// scattered globals.
package kernel

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/nanokernel/easyfs/internal/blockdev"
	"github.com/nanokernel/easyfs/internal/cache"
	"github.com/nanokernel/easyfs/internal/easyfs"
	"github.com/nanokernel/easyfs/internal/metrics"
	"github.com/nanokernel/easyfs/internal/syscall"
	"github.com/nanokernel/easyfs/internal/task"
	"github.com/nanokernel/easyfs/internal/vfs"
)

// Kernel is one booted instance: everything a running nanokernel needs,
// reachable from a single value instead of package-level globals.
type Kernel struct {
	SessionID uuid.UUID
	Log       *slog.Logger
	Metrics   *metrics.Registry

	Device blockdev.Device
	FS     *easyfs.EasyFS
	Root   *vfs.Inode

	Tasks    *task.Kernel
	Syscalls *syscall.Handlers
}

// Options configures Boot.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Registry
}

// instrumentedDevice decorates a blockdev.Device with Prometheus counters,
// using the same hook-injection pattern as cache.Hooks so neither
// blockdev nor cache needs to import the metrics package directly.
type instrumentedDevice struct {
	blockdev.Device
	reg *metrics.Registry
}

func (d *instrumentedDevice) ReadBlock(id uint64, buf *[blockdev.BlockSize]byte) error {
	d.reg.BlockReads.Inc()
	return d.Device.ReadBlock(id, buf)
}

func (d *instrumentedDevice) WriteBlock(id uint64, buf *[blockdev.BlockSize]byte) error {
	d.reg.BlockWrites.Inc()
	return d.Device.WriteBlock(id, buf)
}

// Boot wraps a raw device with metrics, creates or opens the EasyFS image
// on it, and wires up the scheduler and syscall
// surface. fresh selects Create (new image, needs totalBlocks/inodeBitmap)
// vs Open (existing image).
func Boot(dev blockdev.Device, fresh bool, totalBlocks, inodeBitmapBlocks uint32, cacheBlocks int, opts Options) (*Kernel, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	sessionID := uuid.New()
	log := opts.Logger.With("session", sessionID.String())

	idev := &instrumentedDevice{Device: dev, reg: opts.Metrics}

	var fs *easyfs.EasyFS
	var err error
	if fresh {
		fs, err = easyfs.Create(idev, totalBlocks, inodeBitmapBlocks, cacheBlocks)
	} else {
		fs, err = easyfs.Open(idev, cacheBlocks)
	}
	if err != nil {
		return nil, err
	}
	fs.Cache.SetHooks(cache.Hooks{
		OnHit:  opts.Metrics.CacheHits.Inc,
		OnMiss: opts.Metrics.CacheMisses.Inc,
	})

	root := vfs.Root(fs)
	tasks := task.NewKernel()
	handlers := syscall.NewHandlers(tasks, root, opts.Metrics)

	log.Info("kernel booted", "fresh", fresh, "cache_blocks", cacheBlocks)

	return &Kernel{
		SessionID: sessionID,
		Log:       log,
		Metrics:   opts.Metrics,
		Device:    idev,
		FS:        fs,
		Root:      root,
		Tasks:     tasks,
		Syscalls:  handlers,
	}, nil
}

// Run drives the scheduler's idle loop to completion, updating the
// ready-queue-depth gauge before returning (RunUntilIdle itself is the
// cooperative, single-core dispatch loop in internal/task).
func (k *Kernel) Run() {
	k.Tasks.Proc.RunUntilIdle()
	k.Metrics.ReadyQueueDepth.Set(float64(k.Tasks.Mgr.Len()))
}

// Shutdown flushes every dirty cache entry back to the device.
func (k *Kernel) Shutdown() error {
	return k.FS.SyncAll()
}
