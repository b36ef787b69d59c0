// Package cache implements the block cache described in spec.md §4.1: a
// fixed-capacity, FIFO-evicted, reference-counted cache of 512-byte blocks
// with per-block mutual exclusion and dirty write-back. Every typed read of
// a super block, bitmap block, disk inode, directory entry, or indirect
// block goes through here, following squashfs's tableReader pattern of
// centralizing all raw block access behind one type (tablereader.go) —
// generalized here to read-modify-write instead of squashfs's read-only
// decompressing reader.
package cache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/nanokernel/easyfs/internal/blockdev"
)

// DefaultSize is the spec's CACHE_SIZE (spec.md §4.1); configurable per the
// Design Notes' open question about tuning it to workload.
const DefaultSize = 16

// Entry is one resident cached block.
type Entry struct {
	mu      sync.Mutex
	blockID uint64
	buf     [blockdev.BlockSize]byte
	dirty   bool
	dev     blockdev.Device
}

// Read reinterprets the buffer at the given byte offset through fn.
func (e *Entry) Read(offset int, fn func(buf []byte)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.buf[offset:])
}

// Modify reinterprets the buffer at the given byte offset through fn and
// marks the entry dirty.
func (e *Entry) Modify(offset int, fn func(buf []byte)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.buf[offset:])
	e.dirty = true
}

func (e *Entry) writeBack() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dirty {
		return nil
	}
	buf := e.buf
	if err := e.dev.WriteBlock(e.blockID, &buf); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

// resident wraps an *Entry with the registry-held strong reference so the
// cache can tell "only the registry holds this" apart from "a caller also
// pinned it" purely from Go's reference-counting-free GC — instead we track
// an explicit pin count, since the eviction rule ("strong reference count
// is 1") needs an authoritative count that Go's runtime doesn't expose.
type resident struct {
	entry *Entry
	pins  int
}

// Hooks lets an embedder observe cache activity (internal/metrics wires
// these to Prometheus counters) without this package depending on any
// metrics library, mirroring the vfile.Scheduler dependency-inversion
// pattern elsewhere in this kernel.
type Hooks struct {
	OnHit  func()
	OnMiss func()
}

// Cache is the process-wide block cache registry.
type Cache struct {
	mu       sync.Mutex
	order    []uint64 // FIFO order of residency, oldest first
	entries  map[uint64]*resident
	capacity int
	sema     *semaphore.Weighted
	hooks    Hooks
}

// SetHooks installs observability callbacks. Safe to call once at startup
// before any Get.
func (c *Cache) SetHooks(h Hooks) { c.hooks = h }

// New creates a cache holding at most capacity blocks. Concurrent Get calls
// beyond capacity block on a semaphore rather than the spec's documented
// panic-on-saturation (spec.md §9 Design Notes: "may promote this to a
// wait-with-backpressure").
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultSize
	}
	return &Cache{
		entries:  make(map[uint64]*resident),
		capacity: capacity,
		sema:     semaphore.NewWeighted(int64(capacity)),
	}
}

// Get returns the cache entry for blockID, loading it from dev if not
// resident. The returned release func must be called exactly once when the
// caller is done pinning the block.
//
// The semaphore bounds the number of concurrently *pinned* blocks (not the
// number of resident blocks) at capacity: a caller requesting one pin more
// than capacity waits instead of forcing the "no evictable entry" panic
// spec.md §9 documents as a known fragility of the 16-entry design. Because
// residency is never grown past capacity (eviction always runs first) and
// pins are bounded by the same capacity, whenever the resident set is full
// at least one resident entry is guaranteed unpinned.
func (c *Cache) Get(ctx context.Context, blockID uint64, dev blockdev.Device) (entry *Entry, release func(), err error) {
	if err := c.sema.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("cache: acquire slot for block %d: %w", blockID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.entries[blockID]; ok {
		r.pins++
		if c.hooks.OnHit != nil {
			c.hooks.OnHit()
		}
		return r.entry, c.releaser(blockID), nil
	}
	if c.hooks.OnMiss != nil {
		c.hooks.OnMiss()
	}

	if len(c.entries) >= c.capacity {
		if err := c.evictLocked(); err != nil {
			c.sema.Release(1)
			return nil, nil, err
		}
	}

	e := &Entry{blockID: blockID, dev: dev}
	if err := dev.ReadBlock(blockID, &e.buf); err != nil {
		c.sema.Release(1)
		return nil, nil, fmt.Errorf("cache: load block %d: %w", blockID, err)
	}
	c.entries[blockID] = &resident{entry: e, pins: 1}
	c.order = append(c.order, blockID)
	return e, c.releaser(blockID), nil
}

func (c *Cache) releaser(blockID uint64) func() {
	return func() {
		c.mu.Lock()
		if r, ok := c.entries[blockID]; ok {
			r.pins--
		}
		c.mu.Unlock()
		c.sema.Release(1)
	}
}

// evictLocked selects the oldest entry with no outstanding pins and drops
// it, writing it back first if dirty. Must be called with c.mu held. This
// only frees a residency slot, not a pin permit, so it does not touch the
// semaphore.
func (c *Cache) evictLocked() error {
	for i, id := range c.order {
		r := c.entries[id]
		if r.pins != 0 {
			continue
		}
		if err := r.entry.writeBack(); err != nil {
			return fmt.Errorf("cache: write back block %d during eviction: %w", id, err)
		}
		delete(c.entries, id)
		c.order = append(c.order[:i:i], c.order[i+1:]...)
		return nil
	}
	// Every resident block is pinned: the design-time bound from spec.md
	// §4.1 is violated by the caller, not by this cache.
	panic(fmt.Sprintf("cache: saturated with %d pinned blocks, nothing evictable", len(c.entries)))
}

// SyncAll writes back every resident dirty entry and clears their dirty
// flags, per spec.md §4.1.
func (c *Cache) SyncAll() error {
	c.mu.Lock()
	ids := make([]uint64, len(c.order))
	copy(ids, c.order)
	entries := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, c.entries[id].entry)
	}
	c.mu.Unlock()

	for _, e := range entries {
		if err := e.writeBack(); err != nil {
			return err
		}
	}
	return nil
}

// Len reports the number of currently resident blocks (test/metrics use).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
