package layout

import "fmt"

// IndexBlockIO is the minimal capability DiskInode's index-traversal methods
// need: read/modify a 128-entry uint32 array living at a given data block
// id. The block cache satisfies this without layout needing to import it.
type IndexBlockIO interface {
	ReadIndex(blockID uint32) (block [Indirect1Cap]uint32, err error)
	WriteIndex(blockID uint32, block [Indirect1Cap]uint32) error
}

// GetBlockID resolves inner_id (an index into the logical block sequence of
// the file) into a physical data-block id, per spec.md §4.3.
func (d *DiskInode) GetBlockID(innerID uint32, io IndexBlockIO) (uint32, error) {
	switch {
	case innerID < DirectCount:
		return d.Direct[innerID], nil
	case innerID < Indirect1Span:
		idx, err := io.ReadIndex(d.Indirect1)
		if err != nil {
			return 0, err
		}
		return idx[innerID-DirectCount], nil
	case innerID < Indirect2Span:
		innerID -= Indirect1Span
		idx2, err := io.ReadIndex(d.Indirect2)
		if err != nil {
			return 0, err
		}
		idx1, err := io.ReadIndex(idx2[innerID/Indirect1Cap])
		if err != nil {
			return 0, err
		}
		return idx1[innerID%Indirect1Cap], nil
	default:
		panic(fmt.Sprintf("layout: inner_id %d overflows disk inode capacity", innerID))
	}
}

func dataBlocks(size uint32) uint32 {
	return (size + BlockSize - 1) / BlockSize
}

// TotalBlocks returns the number of physical blocks (data + index metadata)
// a file of the given byte size occupies, per spec.md §4.3.
func TotalBlocks(size uint32) uint32 {
	data := dataBlocks(size)
	total := data
	if data > DirectCount {
		total++ // indirect1 meta block
	}
	if data > uint32(Indirect1Span) {
		extra := data - Indirect1Span
		indirect1Metas := (extra + Indirect1Cap - 1) / Indirect1Cap
		total += 1 + indirect1Metas // indirect2 meta + each indirect1 meta
	}
	return total
}

// BlocksNumNeeded returns how many additional physical blocks must be
// allocated to grow this inode from its current size to newSize.
func (d *DiskInode) BlocksNumNeeded(newSize uint32) uint32 {
	return TotalBlocks(newSize) - TotalBlocks(d.Size)
}

// IncreaseSize grows the inode to newSize, consuming newBlocks (already
// allocated data-bitmap block ids) in the fixed order spec.md §4.3 mandates:
// remaining direct slots; an indirect1 meta block if the file crosses 28
// blocks; remaining indirect1 entries; an indirect2 meta block if the file
// crosses 156 blocks; for each new indirect1 region, a fresh indirect1 meta
// block followed by its entries.
func (d *DiskInode) IncreaseSize(newSize uint32, newBlocks []uint32, io IndexBlockIO) error {
	if newSize < d.Size {
		return fmt.Errorf("layout: increase_size requires newSize >= size (%d < %d)", newSize, d.Size)
	}
	needed := d.BlocksNumNeeded(newSize)
	if uint32(len(newBlocks)) != needed {
		return fmt.Errorf("layout: increase_size expected %d new blocks, got %d", needed, len(newBlocks))
	}

	curBlocks := dataBlocks(d.Size)
	newBlocksTotal := dataBlocks(newSize)
	d.Size = newSize

	pop := func() uint32 {
		b := newBlocks[0]
		newBlocks = newBlocks[1:]
		return b
	}

	// remaining direct slots
	for curBlocks < newBlocksTotal && curBlocks < DirectCount {
		d.Direct[curBlocks] = pop()
		curBlocks++
	}
	if curBlocks >= newBlocksTotal {
		return nil
	}

	// indirect1 meta, if crossing 28
	if curBlocks == DirectCount {
		d.Indirect1 = pop()
	}
	curBlocks -= DirectCount
	newRelTotal := newBlocksTotal - DirectCount

	idx1, err := io.ReadIndex(d.Indirect1)
	if err != nil {
		return err
	}
	for curBlocks < newRelTotal && curBlocks < Indirect1Cap {
		idx1[curBlocks] = pop()
		curBlocks++
	}
	if err := io.WriteIndex(d.Indirect1, idx1); err != nil {
		return err
	}
	if curBlocks+DirectCount >= newBlocksTotal {
		return nil
	}

	// indirect2 region
	if curBlocks == Indirect1Cap {
		d.Indirect2 = pop()
	}
	curBlocks -= Indirect1Cap
	newRelTotal -= Indirect1Cap

	idx2, err := io.ReadIndex(d.Indirect2)
	if err != nil {
		return err
	}
	a0, b0 := curBlocks/Indirect1Cap, curBlocks%Indirect1Cap
	a1, b1 := newRelTotal/Indirect1Cap, newRelTotal%Indirect1Cap
	for a0 < a1 || (a0 == a1 && b0 < b1) {
		if b0 == 0 {
			idx2[a0] = pop()
		}
		idx1b, err := io.ReadIndex(idx2[a0])
		if err != nil {
			return err
		}
		for b0 < Indirect1Cap && (a0 < a1 || b0 < b1) {
			idx1b[b0] = pop()
			b0++
		}
		if err := io.WriteIndex(idx2[a0], idx1b); err != nil {
			return err
		}
		a0++
		b0 = 0
	}
	return io.WriteIndex(d.Indirect2, idx2)
}

// ClearSize truncates the inode to empty and returns every block id it freed
// (data blocks plus indirect1/indirect2 meta blocks), per spec.md §4.3: the
// direct blocks, the indirect1 data blocks and then the indirect1 block,
// each second-level index block's data blocks followed by that index block,
// and last the indirect2 block. The result length equals TotalBlocks(old
// size).
func (d *DiskInode) ClearSize(io IndexBlockIO) ([]uint32, error) {
	var freed []uint32
	dataCount := dataBlocks(d.Size)

	directCount := dataCount
	if directCount > DirectCount {
		directCount = DirectCount
	}
	for i := uint32(0); i < directCount; i++ {
		freed = append(freed, d.Direct[i])
		d.Direct[i] = 0
	}

	if dataCount > DirectCount {
		rel := dataCount - DirectCount
		idx1, err := io.ReadIndex(d.Indirect1)
		if err != nil {
			return nil, err
		}
		n := rel
		if n > Indirect1Cap {
			n = Indirect1Cap
		}
		for i := uint32(0); i < n; i++ {
			freed = append(freed, idx1[i])
		}
		freed = append(freed, d.Indirect1)
		d.Indirect1 = 0
	}

	if dataCount > Indirect1Span {
		rel := dataCount - Indirect1Span
		idx2, err := io.ReadIndex(d.Indirect2)
		if err != nil {
			return nil, err
		}
		full := rel / Indirect1Cap
		rem := rel % Indirect1Cap
		regions := full
		if rem > 0 {
			regions++
		}
		for r := uint32(0); r < regions; r++ {
			idx1, err := io.ReadIndex(idx2[r])
			if err != nil {
				return nil, err
			}
			n := uint32(Indirect1Cap)
			if r == regions-1 && rem > 0 {
				n = rem
			}
			for i := uint32(0); i < n; i++ {
				freed = append(freed, idx1[i])
			}
			freed = append(freed, idx2[r])
		}
		freed = append(freed, d.Indirect2)
		d.Indirect2 = 0
	}

	d.Size = 0
	return freed, nil
}

// ReadAt copies min(len(buf), size-offset) bytes starting at offset into buf,
// one data block per iteration. Never reads past Size.
func (d *DiskInode) ReadAt(offset uint32, buf []byte, data IndexBlockIO, blockIO DataBlockIO) (int, error) {
	if offset >= d.Size {
		return 0, nil
	}
	end := offset + uint32(len(buf))
	if end > d.Size {
		end = d.Size
	}
	var read int
	start := offset
	for start < end {
		innerID := start / BlockSize
		blockOff := start % BlockSize
		chunk := BlockSize - blockOff
		remain := end - start
		if chunk > remain {
			chunk = remain
		}
		blockID, err := d.GetBlockID(innerID, data)
		if err != nil {
			return read, err
		}
		var blk [BlockSize]byte
		if err := blockIO.ReadData(blockID, &blk); err != nil {
			return read, err
		}
		copy(buf[read:read+int(chunk)], blk[blockOff:blockOff+chunk])
		read += int(chunk)
		start += chunk
	}
	return read, nil
}

// WriteAt copies min(len(buf), size-offset) bytes from buf into the inode's
// data blocks. It never grows Size — callers (the vfs Inode facade) must
// call IncreaseSize first; this mirrors the documented internal contract in
// spec.md §9 Open Questions.
func (d *DiskInode) WriteAt(offset uint32, buf []byte, data IndexBlockIO, blockIO DataBlockIO) (int, error) {
	if offset >= d.Size {
		return 0, nil
	}
	end := offset + uint32(len(buf))
	if end > d.Size {
		end = d.Size
	}
	var written int
	start := offset
	for start < end {
		innerID := start / BlockSize
		blockOff := start % BlockSize
		chunk := BlockSize - blockOff
		remain := end - start
		if chunk > remain {
			chunk = remain
		}
		blockID, err := d.GetBlockID(innerID, data)
		if err != nil {
			return written, err
		}
		var blk [BlockSize]byte
		if err := blockIO.ReadData(blockID, &blk); err != nil {
			return written, err
		}
		copy(blk[blockOff:blockOff+chunk], buf[written:written+int(chunk)])
		if err := blockIO.WriteData(blockID, &blk); err != nil {
			return written, err
		}
		written += int(chunk)
		start += chunk
	}
	return written, nil
}

// DataBlockIO is the minimal capability DiskInode's byte-range methods need
// to touch a raw 512-byte data block (as opposed to an index block).
type DataBlockIO interface {
	ReadData(blockID uint32, buf *[BlockSize]byte) error
	WriteData(blockID uint32, buf *[BlockSize]byte) error
}
