// Package easyfs owns the two bitmaps and the area offsets of an EasyFS
// image: it turns disk-inode numbers into (block, offset) pairs and
// allocates/frees inodes and data blocks (spec.md §4.4). It is the
// "filesystem manager" layer between the raw block cache and the Inode
// facade in package vfs.
package easyfs

import (
	"context"
	"fmt"
	"sync"

	"github.com/nanokernel/easyfs/internal/bitmap"
	"github.com/nanokernel/easyfs/internal/blockdev"
	"github.com/nanokernel/easyfs/internal/cache"
	"github.com/nanokernel/easyfs/internal/layout"
)

// RootInodeID is the inode number of the (only, flat) root directory.
const RootInodeID = 0

// EasyFS is the in-memory filesystem manager for one mounted image, shared
// under a single mutex (spec.md §3).
type EasyFS struct {
	mu sync.Mutex

	dev   blockdev.Device
	Cache *cache.Cache

	InodeBitmap *bitmap.Bitmap
	DataBitmap  *bitmap.Bitmap

	inodeAreaStart uint64
	dataAreaStart  uint64
}

// Create formats a brand-new image: zeroes every block, writes the super
// block, and allocates inode 0 as the root directory (spec.md §4.4).
func Create(dev blockdev.Device, totalBlocks, inodeBitmapBlocks uint32, cacheSize int) (*EasyFS, error) {
	c := cache.New(cacheSize)

	inodeAreaBlocks := (inodeBitmapBlocks*bitmap.BitsPerBlock*layout.DiskInodeSize + layout.BlockSize - 1) / layout.BlockSize
	if totalBlocks < 1+inodeBitmapBlocks+inodeAreaBlocks {
		return nil, fmt.Errorf("easyfs: total_blocks too small for inode area")
	}
	dataTotal := totalBlocks - 1 - inodeBitmapBlocks - inodeAreaBlocks
	// one data-bitmap block covers 4096 data blocks, and itself consumes a
	// slot in the accounting (spec.md §4.4 step 3).
	dataBitmapBlocks := (dataTotal + bitmap.BitsPerBlock) / (bitmap.BitsPerBlock + 1)
	dataAreaBlocks := dataTotal - dataBitmapBlocks

	fs := &EasyFS{
		dev:            dev,
		Cache:          c,
		InodeBitmap:    bitmap.New(1, inodeBitmapBlocks),
		DataBitmap:     bitmap.New(1+uint64(inodeBitmapBlocks)+uint64(inodeAreaBlocks), dataBitmapBlocks),
		inodeAreaStart: 1 + uint64(inodeBitmapBlocks),
		dataAreaStart:  1 + uint64(inodeBitmapBlocks) + uint64(inodeAreaBlocks) + uint64(dataBitmapBlocks),
	}

	// zero every block
	var zero [layout.BlockSize]byte
	for i := uint64(0); i < uint64(totalBlocks); i++ {
		if err := dev.WriteBlock(i, &zero); err != nil {
			return nil, fmt.Errorf("easyfs: zero block %d: %w", i, err)
		}
	}

	sb := &layout.SuperBlock{
		Magic:           layout.Magic,
		TotalBlocks:     totalBlocks,
		InodeBitmapBlks: inodeBitmapBlocks,
		InodeAreaBlks:   inodeAreaBlocks,
		DataBitmapBlks:  dataBitmapBlocks,
		DataAreaBlks:    dataAreaBlocks,
	}
	buf, err := sb.Encode()
	if err != nil {
		return nil, err
	}
	if err := dev.WriteBlock(0, &buf); err != nil {
		return nil, err
	}

	rootID, ok, err := fs.InodeBitmap.Alloc(c, dev)
	if err != nil {
		return nil, err
	}
	if !ok || rootID != RootInodeID {
		return nil, fmt.Errorf("easyfs: root inode allocation returned %d, want %d", rootID, RootInodeID)
	}
	rootBlock, rootOff := fs.GetDiskInodePos(rootID)
	entry, release, err := c.Get(context.Background(), rootBlock, dev)
	if err != nil {
		return nil, err
	}
	root := &layout.DiskInode{Type: layout.InodeDirectory}
	encoded, err := root.Encode()
	if err != nil {
		release()
		return nil, err
	}
	entry.Modify(rootOff, func(buf []byte) { copy(buf[:layout.DiskInodeSize], encoded[:]) })
	release()

	if err := c.SyncAll(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Open validates the magic and reconstructs bitmap positions from the
// super block (spec.md §4.4).
func Open(dev blockdev.Device, cacheSize int) (*EasyFS, error) {
	c := cache.New(cacheSize)
	var buf [layout.BlockSize]byte
	if err := dev.ReadBlock(0, &buf); err != nil {
		return nil, fmt.Errorf("easyfs: read super block: %w", err)
	}
	sb, err := layout.DecodeSuperBlock(&buf)
	if err != nil {
		return nil, err
	}
	if err := sb.Validate(); err != nil {
		return nil, err
	}

	inodeAreaStart := uint64(1 + sb.InodeBitmapBlks)
	dataBitmapStart := inodeAreaStart + uint64(sb.InodeAreaBlks)
	dataAreaStart := dataBitmapStart + uint64(sb.DataBitmapBlks)

	return &EasyFS{
		dev:            dev,
		Cache:          c,
		InodeBitmap:    bitmap.New(1, sb.InodeBitmapBlks),
		DataBitmap:     bitmap.New(dataBitmapStart, sb.DataBitmapBlks),
		inodeAreaStart: inodeAreaStart,
		dataAreaStart:  dataAreaStart,
	}, nil
}

// GetDiskInodePos returns the (block id, byte offset) of inode inodeID.
func (fs *EasyFS) GetDiskInodePos(inodeID uint32) (blockID uint64, offset int) {
	block := fs.inodeAreaStart + uint64(inodeID/layout.InodesPerBlock)
	offset = int(inodeID%layout.InodesPerBlock) * layout.DiskInodeSize
	return block, offset
}

// GetDataBlockID maps a data-bitmap bit index to its physical block id.
func (fs *EasyFS) GetDataBlockID(bit uint32) uint64 {
	return fs.dataAreaStart + uint64(bit)
}

// AllocInode allocates a fresh inode number. Callers must hold fs.Lock()
// for the duration (the vfs Inode facade wraps whole operations in it; this
// mutex is not reentrant).
func (fs *EasyFS) AllocInode() (uint32, error) {
	id, ok, err := fs.InodeBitmap.Alloc(fs.Cache, fs.dev)
	if err != nil {
		return 0, err
	}
	if !ok {
		panic("easyfs: inode bitmap exhausted")
	}
	return id, nil
}

// AllocData allocates a fresh data block and returns its physical block id.
// Callers must hold fs.Lock().
func (fs *EasyFS) AllocData() (uint64, error) {
	bit, ok, err := fs.DataBitmap.Alloc(fs.Cache, fs.dev)
	if err != nil {
		return 0, err
	}
	if !ok {
		panic("easyfs: data bitmap exhausted")
	}
	return fs.GetDataBlockID(bit), nil
}

// DeallocData frees a physical data block, zeroing it first so a later
// allocation reads back zeros (spec.md §8 property 3). Callers must hold
// fs.Lock().
func (fs *EasyFS) DeallocData(blockID uint64) error {
	var zero [layout.BlockSize]byte
	entry, release, err := fs.Cache.Get(context.Background(), blockID, fs.dev)
	if err != nil {
		return err
	}
	entry.Modify(0, func(buf []byte) { copy(buf[:layout.BlockSize], zero[:]) })
	release()

	bit := uint32(blockID - fs.dataAreaStart)
	return fs.DataBitmap.Dealloc(fs.Cache, fs.dev, bit)
}

// Lock/Unlock expose the filesystem-wide mutex to the vfs Inode facade,
// which serializes every operation through it (spec.md §4.5).
func (fs *EasyFS) Lock()   { fs.mu.Lock() }
func (fs *EasyFS) Unlock() { fs.mu.Unlock() }

// Device returns the underlying block device, for the Inode facade's index
// and data block traversal.
func (fs *EasyFS) Device() blockdev.Device { return fs.dev }

// SyncAll flushes every dirty cached block to the device.
func (fs *EasyFS) SyncAll() error { return fs.Cache.SyncAll() }
