// Package layout defines the on-disk structs of an EasyFS image: the super
// block, the disk inode (direct + singly + doubly indirect index), and the
// directory entry. All structs are reinterpretations of a single 512-byte
// block buffer, bit-exact and little-endian, following squashfs's own
// Superblock/Inode encode-decode style (binary.Read/Write over a
// byte-exact wire struct) but with EasyFS's own fixed index-block format
// rather than squashfs's compressed metadata tables.
package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Magic identifies an EasyFS image, per spec.md §3/§6.
const Magic uint32 = 0x3B800001

// BlockSize is the atomic unit of disk I/O, matching blockdev.BlockSize.
const BlockSize = 512

// InodesPerBlock: 128-byte disk inodes pack four to a 512-byte block.
const InodesPerBlock = BlockSize / DiskInodeSize

// DiskInodeSize is the fixed on-disk size of a DiskInode record.
const DiskInodeSize = 128

const (
	DirectCount   = 28
	Indirect1Cap  = 128 // entries per indirect1 block
	Indirect2Cap  = 128 // indirect1-block-ids per indirect2 block
	DirectCap     = DirectCount
	Indirect1Span = DirectCap + Indirect1Cap
	Indirect2Span = Indirect1Span + Indirect2Cap*Indirect1Cap
)

// InodeType distinguishes files from the (single, flat) root directory.
type InodeType uint32

const (
	InodeFile InodeType = iota
	InodeDirectory
)

// SuperBlock is the fixed-format block 0 of every EasyFS image.
type SuperBlock struct {
	Magic           uint32
	TotalBlocks     uint32
	InodeBitmapBlks uint32
	InodeAreaBlks   uint32
	DataBitmapBlks  uint32
	DataAreaBlks    uint32
}

// Validate checks the magic and the block-count invariant from spec.md §3.
func (s *SuperBlock) Validate() error {
	if s.Magic != Magic {
		return fmt.Errorf("layout: bad super block magic %#x", s.Magic)
	}
	sum := 1 + s.InodeBitmapBlks + s.InodeAreaBlks + s.DataBitmapBlks + s.DataAreaBlks
	if sum != s.TotalBlocks {
		return fmt.Errorf("layout: super block area sizes (%d) do not sum to total_blocks (%d)", sum, s.TotalBlocks)
	}
	return nil
}

// Encode writes the super block into a fresh 512-byte buffer.
func (s *SuperBlock) Encode() ([BlockSize]byte, error) {
	var buf [BlockSize]byte
	w := bytes.NewBuffer(buf[:0])
	for _, f := range []uint32{s.Magic, s.TotalBlocks, s.InodeBitmapBlks, s.InodeAreaBlks, s.DataBitmapBlks, s.DataAreaBlks} {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return buf, err
		}
	}
	return buf, nil
}

// DecodeSuperBlock reinterprets a 512-byte block as a SuperBlock.
func DecodeSuperBlock(buf *[BlockSize]byte) (*SuperBlock, error) {
	r := bytes.NewReader(buf[:])
	s := &SuperBlock{}
	fields := []*uint32{&s.Magic, &s.TotalBlocks, &s.InodeBitmapBlks, &s.InodeAreaBlks, &s.DataBitmapBlks, &s.DataAreaBlks}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// DiskInode is the 128-byte on-disk metadata record for a file or directory.
type DiskInode struct {
	Size      uint32
	Direct    [DirectCount]uint32
	Indirect1 uint32
	Indirect2 uint32
	Type      InodeType
}

// Encode serializes the inode into exactly DiskInodeSize bytes.
func (d *DiskInode) Encode() ([DiskInodeSize]byte, error) {
	var out [DiskInodeSize]byte
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, d.Size); err != nil {
		return out, err
	}
	if err := binary.Write(buf, binary.LittleEndian, d.Direct); err != nil {
		return out, err
	}
	if err := binary.Write(buf, binary.LittleEndian, d.Indirect1); err != nil {
		return out, err
	}
	if err := binary.Write(buf, binary.LittleEndian, d.Indirect2); err != nil {
		return out, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(d.Type)); err != nil {
		return out, err
	}
	copy(out[:], buf.Bytes())
	return out, nil
}

// DecodeDiskInode parses a DiskInodeSize-byte record.
func DecodeDiskInode(raw []byte) (*DiskInode, error) {
	if len(raw) < DiskInodeSize {
		return nil, fmt.Errorf("layout: disk inode record too short (%d bytes)", len(raw))
	}
	r := bytes.NewReader(raw[:DiskInodeSize])
	d := &DiskInode{}
	if err := binary.Read(r, binary.LittleEndian, &d.Size); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &d.Direct); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &d.Indirect1); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &d.Indirect2); err != nil {
		return nil, err
	}
	var typ uint32
	if err := binary.Read(r, binary.LittleEndian, &typ); err != nil {
		return nil, err
	}
	d.Type = InodeType(typ)
	return d, nil
}

func (d *DiskInode) IsDir() bool  { return d.Type == InodeDirectory }
func (d *DiskInode) IsFile() bool { return d.Type == InodeFile }

// DirEntrySize is the fixed 32-byte directory-entry record size.
const DirEntrySize = 32

// DirNameMax is the longest name a DirEntry can hold (27 chars + NUL).
const DirNameMax = 27

// DirEntry binds a name to an inode number, per spec.md §3.
type DirEntry struct {
	Name  string
	Inode uint32
}

// Encode serializes into exactly DirEntrySize bytes: 28-byte NUL-padded name
// followed by the 4-byte little-endian inode number.
func (e *DirEntry) Encode() ([DirEntrySize]byte, error) {
	var out [DirEntrySize]byte
	if len(e.Name) > DirNameMax {
		return out, fmt.Errorf("layout: directory entry name %q exceeds %d chars", e.Name, DirNameMax)
	}
	copy(out[:28], e.Name)
	binary.LittleEndian.PutUint32(out[28:], e.Inode)
	return out, nil
}

// DecodeDirEntry parses a DirEntrySize-byte record.
func DecodeDirEntry(raw []byte) (*DirEntry, error) {
	if len(raw) < DirEntrySize {
		return nil, fmt.Errorf("layout: directory entry record too short (%d bytes)", len(raw))
	}
	nameEnd := bytes.IndexByte(raw[:28], 0)
	if nameEnd < 0 {
		nameEnd = 28
	}
	return &DirEntry{
		Name:  string(raw[:nameEnd]),
		Inode: binary.LittleEndian.Uint32(raw[28:32]),
	}, nil
}
