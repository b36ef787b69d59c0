package blockdev

import (
	"fmt"
	"io"
	"os"

	"github.com/detailyang/go-fallocate"
	"golang.org/x/sys/unix"
)

// FileDevice backs a block device with a plain file — the desktop stand-in
// for the MMIO virtio/SD driver referenced only as a contract in spec.md §1.
// It is what cmd/mkfs writes into and what cmd/fusemount mounts from.
type FileDevice struct {
	f      *os.File
	blocks uint64
}

// CreateFileDevice creates (or truncates) path to hold exactly blockCount
// blocks, preallocating the space up front so later writes never hit ENOSPC
// mid-image the way a sparse file could.
func CreateFileDevice(path string, blockCount uint64) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blockdev: create %s: %w", path, err)
	}
	size := int64(blockCount) * BlockSize
	if err := fallocate.Fallocate(f, 0, size); err != nil {
		// Not every filesystem supports fallocate (e.g. tmpfs on some
		// kernels); fall back to a plain truncate so image creation
		// still succeeds.
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("blockdev: truncate %s: %w", path, err)
		}
	}
	return &FileDevice{f: f, blocks: blockCount}, nil
}

// OpenFileDevice opens an existing image file of blockCount blocks. When
// direct is true it attempts to reopen with O_DIRECT to bypass the page
// cache (best-effort: unsupported platforms silently fall back).
func OpenFileDevice(path string, blockCount uint64, direct bool) (*FileDevice, error) {
	flags := os.O_RDWR
	if direct {
		if f, err := openDirect(path); err == nil {
			return &FileDevice{f: f, blocks: blockCount}, nil
		}
		// fall through to a regular open
	}
	f, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("blockdev: open %s: %w", path, err)
	}
	return &FileDevice{f: f, blocks: blockCount}, nil
}

func openDirect(path string) (*os.File, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_DIRECT, 0)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}

func (d *FileDevice) BlockCount() uint64 { return d.blocks }

func (d *FileDevice) ReadBlock(id uint64, buf *[BlockSize]byte) error {
	if err := checkRange(id, d.blocks); err != nil {
		return err
	}
	_, err := d.f.ReadAt(buf[:], int64(id)*BlockSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("blockdev: read block %d: %w", id, err)
	}
	return nil
}

func (d *FileDevice) WriteBlock(id uint64, buf *[BlockSize]byte) error {
	if err := checkRange(id, d.blocks); err != nil {
		return err
	}
	if _, err := d.f.WriteAt(buf[:], int64(id)*BlockSize); err != nil {
		return fmt.Errorf("blockdev: write block %d: %w", id, err)
	}
	return nil
}

// Close flushes and releases the underlying file.
func (d *FileDevice) Close() error {
	return d.f.Close()
}
