package vfile

import (
	"context"
	"sync"

	"github.com/nanokernel/easyfs/internal/vfs"
)

// OSInode is the File variant backed by an EasyFS inode: a position cursor
// plus the inode and r/w flags, per spec.md §3/§4.6. The cursor advances on
// every successful read/write; after a short read (n < len), the next read
// returns 0 once past size.
type OSInode struct {
	readable, writable bool

	mu     sync.Mutex
	offset uint32
	inode  *vfs.Inode
}

// NewOSInode wraps inode with the given access flags and a zero cursor.
func NewOSInode(inode *vfs.Inode, readable, writable bool) *OSInode {
	return &OSInode{readable: readable, writable: writable, inode: inode}
}

func (o *OSInode) Readable() bool { return o.readable }
func (o *OSInode) Writable() bool { return o.writable }

func (o *OSInode) Read(_ context.Context, bufs [][]byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	total := 0
	for _, b := range bufs {
		n, err := o.inode.ReadAt(o.offset, b)
		if err != nil {
			return total, err
		}
		o.offset += uint32(n)
		total += n
		if n < len(b) {
			break
		}
	}
	return total, nil
}

func (o *OSInode) Write(_ context.Context, bufs [][]byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	total := 0
	for _, b := range bufs {
		n, err := o.inode.WriteAt(o.offset, b)
		if err != nil {
			return total, err
		}
		o.offset += uint32(n)
		total += n
		if n < len(b) {
			break
		}
	}
	return total, nil
}

// Inode exposes the underlying EasyFS inode. The cursor lives in the
// OSInode, so descriptors share it by sharing the OSInode itself.
func (o *OSInode) Inode() *vfs.Inode { return o.inode }
