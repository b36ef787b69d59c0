package layout_test

import (
	"testing"

	"github.com/nanokernel/easyfs/internal/layout"
)

type memIndex map[uint32][layout.Indirect1Cap]uint32

func (m memIndex) ReadIndex(id uint32) ([layout.Indirect1Cap]uint32, error) { return m[id], nil }
func (m memIndex) WriteIndex(id uint32, b [layout.Indirect1Cap]uint32) error {
	m[id] = b
	return nil
}

func TestSuperBlockRoundTrip(t *testing.T) {
	sb := &layout.SuperBlock{
		Magic:           layout.Magic,
		TotalBlocks:     100,
		InodeBitmapBlks: 1,
		InodeAreaBlks:   10,
		DataBitmapBlks:  1,
		DataAreaBlks:    87,
	}
	buf, err := sb.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := layout.DecodeSuperBlock(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *sb {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, sb)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestSuperBlockBadMagic(t *testing.T) {
	sb := &layout.SuperBlock{Magic: 0xdeadbeef, TotalBlocks: 1}
	if err := sb.Validate(); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestDiskInodeRoundTrip(t *testing.T) {
	d := &layout.DiskInode{Size: 1234, Indirect1: 5, Indirect2: 6, Type: layout.InodeFile}
	d.Direct[0] = 10
	d.Direct[27] = 20
	buf, err := d.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := layout.DecodeDiskInode(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	if *got != *d {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, d)
	}
}

func TestDirEntryRoundTrip(t *testing.T) {
	e := &layout.DirEntry{Name: "filea", Inode: 7}
	buf, err := e.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := layout.DecodeDirEntry(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	if *got != *e {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestTotalBlocksCapacityBoundaries(t *testing.T) {
	cases := []struct {
		size uint32
		want uint32
	}{
		{0, 0},
		{512, 1},
		{28 * 512, 28},
		{28*512 + 1, 28 + 1 + 1}, // crosses into indirect1: +1 data +1 meta
		{(28 + 128) * 512, 28 + 128 + 1},
		{(28+128)*512 + 1, 160}, // 157 data blocks + 1 indirect1 meta + 1 indirect2 meta + 1 new indirect1 meta
	}
	for _, c := range cases {
		got := layout.TotalBlocks(c.size)
		if got != c.want {
			t.Errorf("TotalBlocks(%d) = %d, want %d", c.size, got, c.want)
		}
	}
}

func TestIncreaseSizeThenClearSizeSymmetry(t *testing.T) {
	idx := memIndex{}
	d := &layout.DiskInode{}

	targetBlocks := uint32(400) // exercises indirect2 region
	targetSize := targetBlocks * layout.BlockSize

	needed := d.BlocksNumNeeded(targetSize)
	if needed != layout.TotalBlocks(targetSize) {
		t.Fatalf("blocks needed from empty = %d, want %d", needed, layout.TotalBlocks(targetSize))
	}

	ids := make([]uint32, needed)
	for i := range ids {
		ids[i] = uint32(1000 + i) // arbitrary distinct fake block ids
	}
	if err := d.IncreaseSize(targetSize, ids, idx); err != nil {
		t.Fatalf("IncreaseSize: %v", err)
	}

	freed, err := d.ClearSize(idx)
	if err != nil {
		t.Fatalf("ClearSize: %v", err)
	}
	if uint32(len(freed)) != needed {
		t.Fatalf("ClearSize freed %d blocks, want %d", len(freed), needed)
	}
	if d.Size != 0 {
		t.Fatalf("size not reset: %d", d.Size)
	}
}
