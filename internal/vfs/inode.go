// Package vfs implements the Inode facade of spec.md §4.5: a synchronized
// view of one disk inode supporting read/write at offset, append-by-auto-
// growth, clear, and (root-only) directory create/ls/find. Multiple Inode
// values may name the same disk inode; coherence comes from the shared
// block cache, not from anything in this package.
package vfs

import (
	"context"

	"github.com/nanokernel/easyfs/internal/easyfs"
	"github.com/nanokernel/easyfs/internal/layout"
)

// Inode is a (disk_block_id, offset_in_block, fs) tuple, per spec.md §3;
// the device is reached through fs.Device().
type Inode struct {
	blockID uint64
	offset  int
	fs      *easyfs.EasyFS
}

// Root returns the Inode facade for the (only) root directory.
func Root(fs *easyfs.EasyFS) *Inode {
	block, off := fs.GetDiskInodePos(easyfs.RootInodeID)
	return &Inode{blockID: block, offset: off, fs: fs}
}

func (i *Inode) read(fn func(d *layout.DiskInode)) error {
	entry, release, err := i.fs.Cache.Get(context.Background(), i.blockID, i.fs.Device())
	if err != nil {
		return err
	}
	defer release()
	var errOut error
	entry.Read(i.offset, func(buf []byte) {
		d, err := layout.DecodeDiskInode(buf)
		if err != nil {
			errOut = err
			return
		}
		fn(d)
	})
	return errOut
}

func (i *Inode) modify(fn func(d *layout.DiskInode)) error {
	entry, release, err := i.fs.Cache.Get(context.Background(), i.blockID, i.fs.Device())
	if err != nil {
		return err
	}
	defer release()
	var errOut error
	entry.Modify(i.offset, func(buf []byte) {
		d, err := layout.DecodeDiskInode(buf)
		if err != nil {
			errOut = err
			return
		}
		fn(d)
		encoded, err := d.Encode()
		if err != nil {
			errOut = err
			return
		}
		copy(buf[:layout.DiskInodeSize], encoded[:])
	})
	return errOut
}

// blockIO adapts the shared block cache to layout's
// IndexBlockIO/DataBlockIO contracts.
type blockIO struct {
	fs *easyfs.EasyFS
}

func (b blockIO) ReadIndex(blockID uint32) (out [layout.Indirect1Cap]uint32, err error) {
	entry, release, err := b.fs.Cache.Get(context.Background(), uint64(blockID), b.fs.Device())
	if err != nil {
		return out, err
	}
	defer release()
	entry.Read(0, func(buf []byte) {
		for i := 0; i < layout.Indirect1Cap; i++ {
			out[i] = uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		}
	})
	return out, nil
}

func (b blockIO) WriteIndex(blockID uint32, block [layout.Indirect1Cap]uint32) error {
	entry, release, err := b.fs.Cache.Get(context.Background(), uint64(blockID), b.fs.Device())
	if err != nil {
		return err
	}
	defer release()
	entry.Modify(0, func(buf []byte) {
		for i, v := range block {
			buf[i*4] = byte(v)
			buf[i*4+1] = byte(v >> 8)
			buf[i*4+2] = byte(v >> 16)
			buf[i*4+3] = byte(v >> 24)
		}
	})
	return nil
}

func (b blockIO) ReadData(blockID uint32, buf *[layout.BlockSize]byte) error {
	entry, release, err := b.fs.Cache.Get(context.Background(), uint64(blockID), b.fs.Device())
	if err != nil {
		return err
	}
	defer release()
	entry.Read(0, func(raw []byte) { copy(buf[:], raw[:layout.BlockSize]) })
	return nil
}

func (b blockIO) WriteData(blockID uint32, buf *[layout.BlockSize]byte) error {
	entry, release, err := b.fs.Cache.Get(context.Background(), uint64(blockID), b.fs.Device())
	if err != nil {
		return err
	}
	defer release()
	entry.Modify(0, func(raw []byte) { copy(raw[:layout.BlockSize], buf[:]) })
	return nil
}

// Size returns the inode's current byte size.
func (i *Inode) Size() (uint32, error) {
	var sz uint32
	err := i.read(func(d *layout.DiskInode) { sz = d.Size })
	return sz, err
}

// ReadAt delegates to the disk inode's byte-range read (spec.md §4.5).
func (i *Inode) ReadAt(offset uint32, buf []byte) (int, error) {
	i.fs.Lock()
	defer i.fs.Unlock()

	io := blockIO{fs: i.fs}
	var n int
	var errOut error
	err := i.read(func(d *layout.DiskInode) {
		n, errOut = d.ReadAt(offset, buf, io, io)
	})
	if err != nil {
		return 0, err
	}
	return n, errOut
}

// WriteAt first grows the file to max(size, offset+len(buf)) by allocating
// the needed blocks and calling IncreaseSize, then delegates to the disk
// inode's byte-range write (spec.md §4.5).
func (i *Inode) WriteAt(offset uint32, buf []byte) (int, error) {
	i.fs.Lock()
	defer i.fs.Unlock()

	io := blockIO{fs: i.fs}
	want := offset + uint32(len(buf))

	var n int
	var errOut error
	err := i.modify(func(d *layout.DiskInode) {
		if want > d.Size {
			needed := d.BlocksNumNeeded(want)
			newBlocks := make([]uint32, 0, needed)
			for k := uint32(0); k < needed; k++ {
				blk, err := i.fs.AllocData()
				if err != nil {
					errOut = err
					return
				}
				newBlocks = append(newBlocks, uint32(blk))
			}
			if err := d.IncreaseSize(want, newBlocks, io); err != nil {
				errOut = err
				return
			}
		}
		n, errOut = d.WriteAt(offset, buf, io, io)
	})
	if err != nil {
		return 0, err
	}
	return n, errOut
}

// Clear truncates the file, returning every freed block to the data
// bitmap (spec.md §4.5).
func (i *Inode) Clear() error {
	i.fs.Lock()
	defer i.fs.Unlock()

	io := blockIO{fs: i.fs}
	var freed []uint32
	var errOut error
	err := i.modify(func(d *layout.DiskInode) {
		freed, errOut = d.ClearSize(io)
	})
	if err != nil {
		return err
	}
	if errOut != nil {
		return errOut
	}
	for _, b := range freed {
		if err := i.fs.DeallocData(uint64(b)); err != nil {
			return err
		}
	}
	return nil
}

// IsDir reports whether this inode is the root directory.
func (i *Inode) IsDir() (bool, error) {
	var dir bool
	err := i.read(func(d *layout.DiskInode) { dir = d.IsDir() })
	return dir, err
}

func fromInodeID(fs *easyfs.EasyFS, id uint32) *Inode {
	block, off := fs.GetDiskInodePos(id)
	return &Inode{blockID: block, offset: off, fs: fs}
}

// dirEntries reads every directory entry of this (directory) inode, in
// on-disk order.
func (i *Inode) dirEntries() ([]layout.DirEntry, error) {
	sz, err := i.sizeLocked()
	if err != nil {
		return nil, err
	}
	count := sz / layout.DirEntrySize
	io := blockIO{fs: i.fs}
	out := make([]layout.DirEntry, 0, count)
	for n := uint32(0); n < count; n++ {
		buf := make([]byte, layout.DirEntrySize)
		var d *layout.DiskInode
		if err := i.readLocked(func(dd *layout.DiskInode) { d = dd }); err != nil {
			return nil, err
		}
		if _, err := d.ReadAt(n*layout.DirEntrySize, buf, io, io); err != nil {
			return nil, err
		}
		e, err := layout.DecodeDirEntry(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

// sizeLocked/readLocked assume the caller already holds fs.Lock() (used by
// the already-locked Create/Find/Ls call paths).
func (i *Inode) sizeLocked() (uint32, error) {
	var sz uint32
	err := i.read(func(d *layout.DiskInode) { sz = d.Size })
	return sz, err
}

func (i *Inode) readLocked(fn func(d *layout.DiskInode)) error {
	return i.read(fn)
}

// Ls returns directory entry names in on-disk order (spec.md §4.5, §8 S1).
func (i *Inode) Ls() ([]string, error) {
	i.fs.Lock()
	defer i.fs.Unlock()
	entries, err := i.dirEntries()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

// Find scans the root directory's entries sequentially for name.
func (i *Inode) Find(name string) (*Inode, error) {
	i.fs.Lock()
	defer i.fs.Unlock()
	entries, err := i.dirEntries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Name == name {
			return fromInodeID(i.fs, e.Inode), nil
		}
	}
	return nil, nil
}

// Create allocates a new file inode and links it into the root directory.
// Returns (nil, nil) if name already exists. Root-only, per spec.md §4.5.
func (i *Inode) Create(name string) (*Inode, error) {
	i.fs.Lock()
	defer i.fs.Unlock()

	entries, err := i.dirEntries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Name == name {
			return nil, nil
		}
	}

	newID, err := i.fs.AllocInode()
	if err != nil {
		return nil, err
	}
	newBlock, newOff := i.fs.GetDiskInodePos(newID)
	newInode := &Inode{blockID: newBlock, offset: newOff, fs: i.fs}
	if err := newInode.modify(func(d *layout.DiskInode) { *d = layout.DiskInode{Type: layout.InodeFile} }); err != nil {
		return nil, err
	}

	io := blockIO{fs: i.fs}
	dirEnt := layout.DirEntry{Name: name, Inode: newID}
	encoded, err := dirEnt.Encode()
	if err != nil {
		return nil, err
	}

	var writeErr error
	if err := i.modify(func(d *layout.DiskInode) {
		oldSize := d.Size
		newSize := oldSize + layout.DirEntrySize
		needed := d.BlocksNumNeeded(newSize)
		newBlocks := make([]uint32, 0, needed)
		for k := uint32(0); k < needed; k++ {
			blk, err := i.fs.AllocData()
			if err != nil {
				writeErr = err
				return
			}
			newBlocks = append(newBlocks, uint32(blk))
		}
		if writeErr != nil {
			return
		}
		if err := d.IncreaseSize(newSize, newBlocks, io); err != nil {
			writeErr = err
			return
		}
		if _, err := d.WriteAt(oldSize, encoded[:], io, io); err != nil {
			writeErr = err
			return
		}
	}); err != nil {
		return nil, err
	}
	if writeErr != nil {
		return nil, writeErr
	}

	return newInode, nil
}
