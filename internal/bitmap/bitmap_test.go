package bitmap_test

import (
	"testing"

	"github.com/nanokernel/easyfs/internal/bitmap"
	"github.com/nanokernel/easyfs/internal/blockdev"
	"github.com/nanokernel/easyfs/internal/cache"
)

func TestAllocLowestBitWins(t *testing.T) {
	dev := blockdev.NewMemDevice(4)
	c := cache.New(4)
	b := bitmap.New(0, 1)

	for want := uint32(0); want < 8; want++ {
		got, ok, err := b.Alloc(c, dev)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("alloc %d: unexpected exhaustion", want)
		}
		if got != want {
			t.Fatalf("alloc %d: got bit %d, want lowest-free order", want, got)
		}
	}
}

func TestDeallocThenRealloc(t *testing.T) {
	dev := blockdev.NewMemDevice(4)
	c := cache.New(4)
	b := bitmap.New(0, 1)

	for i := 0; i < 3; i++ {
		if _, _, err := b.Alloc(c, dev); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Dealloc(c, dev, 1); err != nil {
		t.Fatal(err)
	}
	got, ok, err := b.Alloc(c, dev)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got != 1 {
		t.Fatalf("expected reallocation of freed bit 1, got %d ok=%v", got, ok)
	}
}

func TestDeallocUnsetPanics(t *testing.T) {
	dev := blockdev.NewMemDevice(4)
	c := cache.New(4)
	b := bitmap.New(0, 1)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double-free")
		}
	}()
	_ = b.Dealloc(c, dev, 5)
}

func TestAllocExhaustion(t *testing.T) {
	dev := blockdev.NewMemDevice(4)
	c := cache.New(4)
	b := bitmap.New(0, 1)

	for i := 0; i < bitmap.BitsPerBlock; i++ {
		if _, ok, err := b.Alloc(c, dev); err != nil || !ok {
			t.Fatalf("alloc %d failed early: ok=%v err=%v", i, ok, err)
		}
	}
	_, ok, err := b.Alloc(c, dev)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected exhaustion after filling every bit")
	}
}
