package easyfs_test

import (
	"testing"

	"github.com/nanokernel/easyfs/internal/blockdev"
	"github.com/nanokernel/easyfs/internal/easyfs"
)

func TestCreateThenOpen(t *testing.T) {
	dev := blockdev.NewMemDevice(4096)
	fs, err := easyfs.Create(dev, 4096, 1, 16)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := fs.SyncAll(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	reopened, err := easyfs.Open(dev, 16)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if reopened.InodeBitmap.Blocks != fs.InodeBitmap.Blocks {
		t.Fatalf("inode bitmap blocks mismatch: got %d want %d", reopened.InodeBitmap.Blocks, fs.InodeBitmap.Blocks)
	}
	if reopened.DataBitmap.StartBlockID != fs.DataBitmap.StartBlockID {
		t.Fatalf("data bitmap start mismatch: got %d want %d", reopened.DataBitmap.StartBlockID, fs.DataBitmap.StartBlockID)
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	dev := blockdev.NewMemDevice(16)
	if _, err := easyfs.Open(dev, 16); err == nil {
		t.Fatal("expected error opening an unformatted device")
	}
}

func TestAllocInodeSkipsRoot(t *testing.T) {
	dev := blockdev.NewMemDevice(4096)
	fs, err := easyfs.Create(dev, 4096, 1, 16)
	if err != nil {
		t.Fatal(err)
	}
	fs.Lock()
	id, err := fs.AllocInode()
	fs.Unlock()
	if err != nil {
		t.Fatal(err)
	}
	if id == easyfs.RootInodeID {
		t.Fatalf("allocated root inode id %d again", id)
	}
}
