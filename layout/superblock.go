// Package layout describes the container's region offsets and capacities
// (spec.md §4.2, component C2): the superblock, loaded once at mount, and
// read-only thereafter except for the bitmap words and inode/data blocks
// that live in the regions it describes.
//
// Grounded on the teacher's file_systems/unixv1/format.go layout
// computation (bitmap sizing, region ordering) and on the original
// implementation's wfs_sb struct (original_source/wfs.h), generalized from
// the teacher's fixed 66-block-reserved layout to spec.md's arbitrary
// inode/data-block counts.
package layout

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cs537-wisc/wfs"
)

// superblockWireSize is the on-disk size of the superblock record: two
// counts plus four region offsets, all as fixed-width uint64 (spec.md §6).
const superblockWireSize = 6 * 8

// Superblock describes the region layout of a formatted container
// (spec.md §3). All offsets are byte offsets from the start of the image.
type Superblock struct {
	NumInodes     uint64
	NumDataBlocks uint64
	IBitmapPtr    int64
	DBitmapPtr    int64
	IBlocksPtr    int64
	DBlocksPtr    int64
}

// roundUp32 rounds n up to the nearest multiple of 32, so that inode and
// data bitmaps always end on a 32-bit word boundary (spec.md §3).
func roundUp32(n uint64) uint64 {
	if n%32 == 0 {
		return n
	}
	return n + (32 - n%32)
}

// Compute lays out a superblock for the requested inode and data-block
// counts, rounding both up to multiples of 32 per spec.md §3. It does not
// validate that the result fits within any particular image size; callers
// (the formatter) do that against the real file size.
func Compute(numInodes, numDataBlocks uint64) Superblock {
	numInodes = roundUp32(numInodes)
	numDataBlocks = roundUp32(numDataBlocks)

	iBitmapPtr := int64(superblockWireSize)
	dBitmapPtr := iBitmapPtr + int64(numInodes/8)
	iBlocksPtr := dBitmapPtr + int64(numDataBlocks/8)
	dBlocksPtr := iBlocksPtr + int64(numInodes)*wfs.BlockSize

	return Superblock{
		NumInodes:     numInodes,
		NumDataBlocks: numDataBlocks,
		IBitmapPtr:    iBitmapPtr,
		DBitmapPtr:    dBitmapPtr,
		IBlocksPtr:    iBlocksPtr,
		DBlocksPtr:    dBlocksPtr,
	}
}

// FitsIn reports whether the regions this superblock describes fit within
// an image of imageSize bytes, per spec.md §3's invariant
// "i_blocks_ptr + I*B + D*B <= image_size".
func (sb Superblock) FitsIn(imageSize int64) bool {
	return sb.IBlocksPtr+int64(sb.NumInodes)*wfs.BlockSize+int64(sb.NumDataBlocks)*wfs.BlockSize <= imageSize
}

// InodeOffset returns the byte offset of inode k's block.
func (sb Superblock) InodeOffset(k uint64) int64 {
	return sb.IBlocksPtr + int64(k)*wfs.BlockSize
}

// WriteTo serializes the superblock to w in the field order spec.md §6
// requires: num_inodes, num_data_blocks, i_bitmap_ptr, d_bitmap_ptr,
// i_blocks_ptr, d_blocks_ptr.
func (sb Superblock) WriteTo(w io.Writer) error {
	fields := []uint64{
		sb.NumInodes,
		sb.NumDataBlocks,
		uint64(sb.IBitmapPtr),
		uint64(sb.DBitmapPtr),
		uint64(sb.IBlocksPtr),
		uint64(sb.DBlocksPtr),
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("layout: writing superblock: %w", err)
		}
	}
	return nil
}

// Load reads the superblock from the start of r. The six fields are
// returned as stored; they are not checked against each other or against
// the image size.
func Load(r io.ReadSeeker) (Superblock, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Superblock{}, fmt.Errorf("layout: seeking to superblock: %w", err)
	}

	raw := make([]uint64, 6)
	for i := range raw {
		if err := binary.Read(r, binary.LittleEndian, &raw[i]); err != nil {
			return Superblock{}, fmt.Errorf("layout: reading superblock: %w", err)
		}
	}

	return Superblock{
		NumInodes:     raw[0],
		NumDataBlocks: raw[1],
		IBitmapPtr:    int64(raw[2]),
		DBitmapPtr:    int64(raw[3]),
		IBlocksPtr:    int64(raw[4]),
		DBlocksPtr:    int64(raw[5]),
	}, nil
}
