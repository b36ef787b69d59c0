package cache_test

import (
	"context"
	"testing"

	"github.com/nanokernel/easyfs/internal/blockdev"
	"github.com/nanokernel/easyfs/internal/cache"
)

func TestGetLoadsAndCaches(t *testing.T) {
	dev := blockdev.NewMemDevice(4)
	c := cache.New(2)

	e, release, err := c.Get(context.Background(), 0, dev)
	if err != nil {
		t.Fatal(err)
	}
	e.Modify(0, func(buf []byte) { buf[0] = 42 })
	release()

	if err := c.SyncAll(); err != nil {
		t.Fatal(err)
	}

	var raw [blockdev.BlockSize]byte
	if err := dev.ReadBlock(0, &raw); err != nil {
		t.Fatal(err)
	}
	if raw[0] != 42 {
		t.Fatalf("write-back lost: got %d, want 42", raw[0])
	}
}

func TestEvictionWritesBackDirty(t *testing.T) {
	dev := blockdev.NewMemDevice(8)
	c := cache.New(2)

	for i := uint64(0); i < 3; i++ {
		e, release, err := c.Get(context.Background(), i, dev)
		if err != nil {
			t.Fatal(err)
		}
		e.Modify(0, func(buf []byte) { buf[0] = byte(i + 1) })
		release()
	}

	if c.Len() != 2 {
		t.Fatalf("cache grew past capacity: len=%d", c.Len())
	}

	var raw [blockdev.BlockSize]byte
	if err := dev.ReadBlock(0, &raw); err != nil {
		t.Fatal(err)
	}
	if raw[0] != 1 {
		t.Fatalf("evicted block 0 was not written back: got %d", raw[0])
	}
}

func TestPinPreventsEviction(t *testing.T) {
	dev := blockdev.NewMemDevice(8)
	c := cache.New(1)

	_, release0, err := c.Get(context.Background(), 0, dev)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	if _, _, err := c.Get(ctx, 1, dev); err == nil {
		t.Fatal("expected blocked Get to fail against an already-expired context while block 0 is pinned")
	}
	release0()
}
