package vfs_test

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nanokernel/easyfs/internal/blockdev"
	"github.com/nanokernel/easyfs/internal/easyfs"
	"github.com/nanokernel/easyfs/internal/vfs"
)

func newTestFS(t *testing.T, totalBlocks uint32) *easyfs.EasyFS {
	t.Helper()
	dev := blockdev.NewMemDevice(uint64(totalBlocks))
	fs, err := easyfs.Create(dev, totalBlocks, 1, 32)
	if err != nil {
		t.Fatalf("easyfs.Create: %v", err)
	}
	return fs
}

// S1: create filea, fileb; ls() returns them in that order.
func TestLsOrder(t *testing.T) {
	fs := newTestFS(t, 4096)
	root := vfs.Root(fs)

	if _, err := root.Create("filea"); err != nil {
		t.Fatal(err)
	}
	if _, err := root.Create("fileb"); err != nil {
		t.Fatal(err)
	}

	names, err := root.Ls()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"filea", "fileb"}, names); diff != "" {
		t.Errorf("ls() mismatch (-want +got):\n%s", diff)
	}
}

// Create returns (nil, nil) for a duplicate name.
func TestCreateDuplicate(t *testing.T) {
	fs := newTestFS(t, 4096)
	root := vfs.Root(fs)

	if _, err := root.Create("filea"); err != nil {
		t.Fatal(err)
	}
	dup, err := root.Create("filea")
	if err != nil {
		t.Fatal(err)
	}
	if dup != nil {
		t.Errorf("Create of duplicate name returned non-nil inode")
	}
}

// S2: write 13 bytes, read them back exactly.
func TestWriteReadSmall(t *testing.T) {
	fs := newTestFS(t, 4096)
	root := vfs.Root(fs)

	f, err := root.Create("filea")
	if err != nil || f == nil {
		t.Fatalf("create: %v %v", f, err)
	}

	msg := "Hello, world!"
	n, err := f.WriteAt(0, []byte(msg))
	if err != nil {
		t.Fatal(err)
	}
	if n != len(msg) {
		t.Fatalf("wrote %d bytes, want %d", n, len(msg))
	}

	buf := make([]byte, 233)
	n, err = f.ReadAt(0, buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(msg) {
		t.Fatalf("read %d bytes, want %d", n, len(msg))
	}
	if string(buf[:n]) != msg {
		t.Errorf("read back %q, want %q", buf[:n], msg)
	}
}

// S3 (trimmed to keep test time reasonable): round trip for a range of
// sizes that cross the direct/indirect1/indirect2 boundaries, reading back
// in small chunks.
func TestRoundTripSizes(t *testing.T) {
	sizes := []int{4 * 512, 8*512 + 256, 100 * 512, 70*512 + 73, 140 * 512, 400 * 512}
	fs := newTestFS(t, 1<<20/512)
	root := vfs.Root(fs)
	f, err := root.Create("filea")
	if err != nil || f == nil {
		t.Fatalf("create: %v %v", f, err)
	}

	r := rand.New(rand.NewSource(1))
	for _, n := range sizes {
		if err := f.Clear(); err != nil {
			t.Fatalf("clear: %v", err)
		}
		digits := make([]byte, n)
		for i := range digits {
			digits[i] = byte('0' + r.Intn(10))
		}
		if _, err := f.WriteAt(0, digits); err != nil {
			t.Fatalf("size %d write: %v", n, err)
		}

		got := make([]byte, 0, n)
		chunk := make([]byte, 127)
		off := uint32(0)
		for {
			m, err := f.ReadAt(off, chunk)
			if err != nil {
				t.Fatalf("size %d read at %d: %v", n, off, err)
			}
			if m == 0 {
				break
			}
			got = append(got, chunk[:m]...)
			off += uint32(m)
		}
		if string(got) != string(digits) {
			t.Errorf("size %d: round trip mismatch (got %d bytes, want %d)", n, len(got), len(digits))
		}
	}
}

// property 3: deallocated blocks read back zeroed.
func TestDeallocZeros(t *testing.T) {
	fs := newTestFS(t, 4096)
	root := vfs.Root(fs)
	f, err := root.Create("filea")
	if err != nil || f == nil {
		t.Fatalf("create: %v %v", f, err)
	}

	if _, err := f.WriteAt(0, []byte("some content here")); err != nil {
		t.Fatal(err)
	}
	if err := f.Clear(); err != nil {
		t.Fatal(err)
	}

	g, err := root.Create("fileb")
	if err != nil || g == nil {
		t.Fatalf("create fileb: %v %v", g, err)
	}
	if _, err := g.WriteAt(511, []byte{0}); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 512)
	if _, err := g.ReadAt(0, buf); err != nil {
		t.Fatal(err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zero after realloc: %v", i, b)
		}
	}
}
