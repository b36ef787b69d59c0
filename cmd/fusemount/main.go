// Command fusemount exports a mounted EasyFS image over FUSE, read-write,
// using go-fuse/v2's high-level fs package the way hanwen/go-fuse's own
// in-memory example builds a tree (inmemory_example_test.go): a flat root
// directory node with one child per EasyFS file, matching EasyFS's
// single-level layout (spec.md §4.5: only the root directory exists).
package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/moby/sys/mountinfo"
	"github.com/spf13/cobra"

	"github.com/nanokernel/easyfs/internal/blockdev"
	"github.com/nanokernel/easyfs/internal/easyfs"
	"github.com/nanokernel/easyfs/internal/vfs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fusemount:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cacheBlocks int
	cmd := &cobra.Command{
		Use:   "fusemount <image> <mountpoint>",
		Short: "Mount an EasyFS image over FUSE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], args[1], cacheBlocks)
		},
	}
	cmd.Flags().IntVar(&cacheBlocks, "cache-blocks", 16, "shared block cache capacity")
	return cmd
}

func run(imagePath, mountpoint string, cacheBlocks int) error {
	if mounted, err := mountinfo.Mounted(mountpoint); err != nil {
		return fmt.Errorf("fusemount: checking %s: %w", mountpoint, err)
	} else if mounted {
		return fmt.Errorf("fusemount: %s is already a mount point", mountpoint)
	}

	fi, err := os.Stat(imagePath)
	if err != nil {
		return err
	}
	dev, err := blockdev.OpenFileDevice(imagePath, uint64(fi.Size())/blockdev.BlockSize, false)
	if err != nil {
		return err
	}
	defer dev.Close()

	efs, err := easyfs.Open(dev, cacheBlocks)
	if err != nil {
		return fmt.Errorf("fusemount: opening EasyFS image: %w", err)
	}
	root := &rootNode{inode: vfs.Root(efs)}

	server, err := fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:     "easyfs",
			Name:       "easyfs",
			AllowOther: false,
		},
	})
	if err != nil {
		return fmt.Errorf("fusemount: mount: %w", err)
	}
	defer efs.SyncAll()

	server.Wait()
	return nil
}

// rootNode is EasyFS's root directory: every name it exposes is a
// top-level file, populated once at mount time since EasyFS has no
// subdirectories to recurse into.
type rootNode struct {
	fs.Inode
	inode *vfs.Inode
}

var _ = (fs.NodeOnAdder)((*rootNode)(nil))

func (r *rootNode) OnAdd(ctx context.Context) {
	names, err := r.inode.Ls()
	if err != nil {
		return
	}
	for _, name := range names {
		child, err := r.inode.Find(name)
		if err != nil || child == nil {
			continue
		}
		fnode := &fileNode{inode: child}
		ch := r.NewPersistentInode(ctx, fnode, fs.StableAttr{Mode: syscall.S_IFREG})
		r.AddChild(name, ch, true)
	}
}

// fileNode is one EasyFS file, read/written directly against its
// *vfs.Inode (the shared block cache provides the coherence a real FUSE
// page cache would otherwise need to be told about).
type fileNode struct {
	fs.Inode
	inode *vfs.Inode
}

var (
	_ = (fs.NodeGetattrer)((*fileNode)(nil))
	_ = (fs.NodeReader)((*fileNode)(nil))
	_ = (fs.NodeWriter)((*fileNode)(nil))
	_ = (fs.NodeOpener)((*fileNode)(nil))
)

func (f *fileNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	size, err := f.inode.Size()
	if err != nil {
		return syscall.EIO
	}
	out.Size = uint64(size)
	out.Mode = syscall.S_IFREG | 0o644
	return 0
}

func (f *fileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (f *fileNode) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := f.inode.ReadAt(uint32(off), dest)
	if err != nil {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (f *fileNode) Write(ctx context.Context, fh fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := f.inode.WriteAt(uint32(off), data)
	if err != nil {
		return 0, syscall.EIO
	}
	return uint32(n), 0
}
