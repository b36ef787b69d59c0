// Package bitmap implements the free-bit allocator layered over the cached
// block registry (spec.md §4.2). Each bitmap block holds 64 little-endian
// u64 words — 4096 tracked bits — and allocation always picks the lowest
// free bit, which is load-bearing: the test suite (and original_source's
// own fixtures) rely on deterministic allocation order.
package bitmap

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/nanokernel/easyfs/internal/blockdev"
	"github.com/nanokernel/easyfs/internal/cache"
)

const (
	wordsPerBlock = 64
	bitsPerWord   = 64
	BitsPerBlock  = wordsPerBlock * bitsPerWord // 4096
)

// Bitmap is an immutable (start_block_id, blocks) descriptor; it holds no
// mutable state of its own, all of that lives in the cached blocks it
// addresses.
type Bitmap struct {
	StartBlockID uint64
	Blocks       uint32
}

// New constructs a bitmap descriptor. Bitmaps are immutable after
// construction, per spec.md §3.
func New(startBlockID uint64, blocks uint32) *Bitmap {
	return &Bitmap{StartBlockID: startBlockID, Blocks: blocks}
}

// Capacity returns the number of bits this bitmap can track.
func (b *Bitmap) Capacity() uint32 { return b.Blocks * BitsPerBlock }

func readWords(c *cache.Cache, dev blockdev.Device, blockID uint64) (words [wordsPerBlock]uint64, release func(), err error) {
	entry, release, err := c.Get(context.Background(), blockID, dev)
	if err != nil {
		return words, nil, err
	}
	entry.Read(0, func(buf []byte) {
		for i := 0; i < wordsPerBlock; i++ {
			var w uint64
			for j := 0; j < 8; j++ {
				w |= uint64(buf[i*8+j]) << (8 * j)
			}
			words[i] = w
		}
	})
	return words, release, nil
}

// Alloc scans bitmap blocks in order, finds the first word that is not
// all-ones, sets its lowest zero bit, and returns the global bit index. It
// returns (0, false, nil) when every block is full.
func (b *Bitmap) Alloc(c *cache.Cache, dev blockdev.Device) (uint32, bool, error) {
	for blk := uint32(0); blk < b.Blocks; blk++ {
		blockID := b.StartBlockID + uint64(blk)
		words, release, err := readWords(c, dev, blockID)
		if err != nil {
			return 0, false, err
		}
		for word := 0; word < wordsPerBlock; word++ {
			w := words[word]
			if w == ^uint64(0) {
				continue
			}
			bitIdx := bits.TrailingZeros64(^w)
			globalBit := blk*BitsPerBlock + uint32(word)*bitsPerWord + uint32(bitIdx)

			entry, release2, err := c.Get(context.Background(), blockID, dev)
			release()
			if err != nil {
				return 0, false, err
			}
			entry.Modify(0, func(buf []byte) {
				byteOff := word*8 + bitIdx/8
				buf[byteOff] |= 1 << (uint(bitIdx) % 8)
			})
			release2()
			return globalBit, true, nil
		}
		release()
	}
	return 0, false, nil
}

// Dealloc clears the given global bit index. Double-free (clearing a bit
// that is not set) is a structural corruption per spec.md §7 and panics.
func (b *Bitmap) Dealloc(c *cache.Cache, dev blockdev.Device, bit uint32) error {
	blk := bit / BitsPerBlock
	rel := bit % BitsPerBlock
	word := rel / bitsPerWord
	bitIdx := rel % bitsPerWord
	blockID := b.StartBlockID + uint64(blk)

	entry, release, err := c.Get(context.Background(), blockID, dev)
	if err != nil {
		return err
	}
	defer release()

	byteOff := int(word*8 + bitIdx/8)
	shift := uint(bitIdx) % 8
	var wasSet bool
	entry.Modify(0, func(buf []byte) {
		wasSet = buf[byteOff]&(1<<shift) != 0
		buf[byteOff] &^= 1 << shift
	})
	if !wasSet {
		panic(fmt.Sprintf("bitmap: dealloc of bit %d which was not allocated", bit))
	}
	return nil
}

// MaxBlocks computes how many bitmap blocks are needed to track count bits,
// rounding up. easyfs.Create does its own sizing and does not call it.
func MaxBlocks(count uint32) uint32 {
	return (count + BitsPerBlock - 1) / BitsPerBlock
}
