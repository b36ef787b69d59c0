package vfile

import (
	"github.com/nanokernel/easyfs/internal/vfs"
)

// OpenFlags bit layout, per spec.md §4.6 / §6.
type OpenFlags uint32

const (
	ReadOnly  OpenFlags = 0
	WriteOnly OpenFlags = 1 << 0
	ReadWrite OpenFlags = 1 << 1
	Create    OpenFlags = 1 << 9
	Truncate  OpenFlags = 1 << 10
)

// readWrite derives the (readable, writable) pair from the flag bits.
func (f OpenFlags) readWrite() (readable, writable bool) {
	switch {
	case f&WriteOnly != 0:
		return false, true
	case f&ReadWrite != 0:
		return true, true
	default:
		return true, false
	}
}

// OpenFile implements spec.md §4.6's open_file: if CREATE and the file
// exists, clear and reopen it; if CREATE and absent, create it; if
// TRUNCATE, clear before opening; otherwise return nil if absent.
func OpenFile(root *vfs.Inode, name string, flags OpenFlags) (*OSInode, error) {
	readable, writable := flags.readWrite()

	existing, err := root.Find(name)
	if err != nil {
		return nil, err
	}

	if flags&Create != 0 {
		if existing != nil {
			if err := existing.Clear(); err != nil {
				return nil, err
			}
			return NewOSInode(existing, readable, writable), nil
		}
		created, err := root.Create(name)
		if err != nil {
			return nil, err
		}
		if created == nil {
			// lost a race with another creator between Find and Create
			created, err = root.Find(name)
			if err != nil || created == nil {
				return nil, err
			}
		}
		return NewOSInode(created, readable, writable), nil
	}

	if existing == nil {
		return nil, nil
	}
	if flags&Truncate != 0 {
		if err := existing.Clear(); err != nil {
			return nil, err
		}
	}
	return NewOSInode(existing, readable, writable), nil
}
