package blockdev

// MemDevice is a RAM-backed Device used by tests (cmd/mkfs writes through a
// file device instead). It never fails outside of
// range checks, mirroring the teaching kernel's assumption that the image is
// a trusted, always-present resource (spec.md §7).
type MemDevice struct {
	blocks [][BlockSize]byte
}

// NewMemDevice allocates a zeroed device of the given block count.
func NewMemDevice(blockCount uint64) *MemDevice {
	return &MemDevice{blocks: make([][BlockSize]byte, blockCount)}
}

func (d *MemDevice) BlockCount() uint64 { return uint64(len(d.blocks)) }

func (d *MemDevice) ReadBlock(id uint64, buf *[BlockSize]byte) error {
	if err := checkRange(id, d.BlockCount()); err != nil {
		return err
	}
	*buf = d.blocks[id]
	return nil
}

func (d *MemDevice) WriteBlock(id uint64, buf *[BlockSize]byte) error {
	if err := checkRange(id, d.BlockCount()); err != nil {
		return err
	}
	d.blocks[id] = *buf
	return nil
}
