// Package datablocks implements the data-block allocator and the
// direct/single-indirect address translation described in spec.md §4.5
// (component C5).
//
// Grounded on the original implementation's allocate_data_block, free_block,
// and data_offset (original_source/wfs.c), restructured into a Store type
// the way inode.Store wraps the inode region, and on the teacher's
// drivers/common/blockmanager.go for the allocate/free/lookup split between
// a bitmap-backed region and the blocks it addresses.
package datablocks

import (
	"encoding/binary"
	"fmt"
	"syscall"

	"github.com/cs537-wisc/wfs"
	"github.com/cs537-wisc/wfs/bitmap"
	"github.com/cs537-wisc/wfs/image"
	"github.com/cs537-wisc/wfs/inode"
	"github.com/cs537-wisc/wfs/layout"
)

// addrsPerIndirect is the number of 8-byte block addresses that fit in one
// indirect block.
const addrsPerIndirect = wfs.AddrsPerIndirectBlock

// ErrNoSpace is returned when no data block is free, surfaced as -ENOSPC.
var ErrNoSpace = bitmap.ErrNoSpace

// ErrOffsetOutOfRange is returned by Offset when byteOffset names a
// position beyond the addressable capacity of an inode (D_BLOCK direct
// blocks plus one indirect block's worth), per spec.md §4.5. The original's
// data_offset() reports this same condition as -ENOSPC (it never
// distinguishes "file too big for this layout" from "no blocks left"), so
// this is wrapped the same way rather than left as a plain error.
var ErrOffsetOutOfRange = wfs.NewDriverErrorWithMessage(syscall.ENOSPC, "datablocks: offset exceeds file addressing capacity")

// Store is the data-block allocator and offset translator (spec.md §4.5).
type Store struct {
	img    *image.Image
	sb     layout.Superblock
	bitmap *bitmap.Allocator
}

// NewStore wraps the data-block bitmap and data region described by sb with
// an allocator over img.
func NewStore(img *image.Image, sb layout.Superblock) (*Store, error) {
	backing, err := img.At(sb.DBitmapPtr, int64(bitmap.BitmapBytes(sb.NumDataBlocks)))
	if err != nil {
		return nil, fmt.Errorf("datablocks: mapping data bitmap: %w", err)
	}
	return &Store{img: img, sb: sb, bitmap: bitmap.New(backing, sb.NumDataBlocks)}, nil
}

func (s *Store) blockOffset(index uint64) int64 {
	return s.sb.DBlocksPtr + int64(index)*wfs.BlockSize
}

// Alloc reserves the first free data block, zeroes it, and returns its
// absolute byte offset within the image.
func (s *Store) Alloc() (int64, error) {
	idx, err := s.bitmap.Alloc()
	if err != nil {
		return 0, err
	}

	off := s.blockOffset(idx)
	raw, err := s.img.At(off, wfs.BlockSize)
	if err != nil {
		return 0, err
	}
	for i := range raw {
		raw[i] = 0
	}
	return off, nil
}

// Free clears the bitmap bit for the block at blockOffset and zeroes it.
// Offsets outside the data region are rejected with an error and leave the
// bitmap and the image untouched, following the original's bounds check in
// free_block().
func (s *Store) Free(blockOffset int64) error {
	if blockOffset < s.sb.DBlocksPtr || blockOffset >= s.sb.DBlocksPtr+int64(s.sb.NumDataBlocks)*wfs.BlockSize {
		return fmt.Errorf("datablocks: offset %d out of range", blockOffset)
	}

	idx := uint64((blockOffset - s.sb.DBlocksPtr) / wfs.BlockSize)
	s.bitmap.Free(idx)

	raw, err := s.img.At(blockOffset, wfs.BlockSize)
	if err != nil {
		return err
	}
	for i := range raw {
		raw[i] = 0
	}
	return nil
}

// FreeCount returns the number of unallocated data blocks, used by statfs.
func (s *Store) FreeCount() uint64 {
	return s.bitmap.FreeCount()
}

// NumSlots returns the total number of data-block slots, used by statfs.
func (s *Store) NumSlots() uint64 {
	return s.sb.NumDataBlocks
}

// ImageAt exposes a bounds-checked slice of the image at an absolute
// offset, for handlers that already hold a resolved block offset (from
// Offset) and just need the bytes to read or write.
func (s *Store) ImageAt(off, size int64) ([]byte, error) {
	return s.img.At(off, size)
}

func (s *Store) readAddr(blockOff int64, slot int) (int64, error) {
	raw, err := s.img.At(blockOff, wfs.BlockSize)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(raw[slot*8 : slot*8+8])), nil
}

func (s *Store) writeAddr(blockOff int64, slot int, v int64) error {
	raw, err := s.img.At(blockOff, wfs.BlockSize)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(raw[slot*8:slot*8+8], uint64(v))
	return nil
}

// Offset translates byteOffset within n's file into an absolute byte
// offset in the image, walking n's direct blocks and (for offsets beyond
// D_BLOCK blocks) its single indirect block. When alloc is false, a hole
// (an unallocated block along the path) yields (0, false, nil) rather than
// an error -- callers use this to distinguish "not yet written" from a
// real failure. When alloc is true, every missing block along the path
// (including the indirect block itself) is allocated and wired in.
//
// Mirrors the original's data_offset(), generalized to return an offset
// instead of a raw pointer since callers (handlers) go through img.At to
// get a slice anyway.
func (s *Store) Offset(n *inode.Inode, byteOffset int64, alloc bool) (off int64, ok bool, err error) {
	capacity := wfs.MaxFileSize
	if byteOffset < 0 || byteOffset >= capacity {
		return 0, false, ErrOffsetOutOfRange
	}

	blockIdx := byteOffset / wfs.BlockSize
	within := byteOffset % wfs.BlockSize

	if blockIdx < wfs.DirectBlocks {
		blockOff := n.Block(int(blockIdx))
		if blockOff == 0 {
			if !alloc {
				return 0, false, nil
			}
			blockOff, err = s.Alloc()
			if err != nil {
				return 0, false, err
			}
			n.SetBlock(int(blockIdx), blockOff)
		}
		return blockOff + within, true, nil
	}

	indirectIdx := int(blockIdx - wfs.DirectBlocks)
	if indirectIdx < 0 || indirectIdx >= addrsPerIndirect {
		return 0, false, ErrOffsetOutOfRange
	}

	indirectBlockOff := n.Block(wfs.IndirectBlockIndex)
	if indirectBlockOff == 0 {
		if !alloc {
			return 0, false, nil
		}
		indirectBlockOff, err = s.Alloc()
		if err != nil {
			return 0, false, err
		}
		n.SetBlock(wfs.IndirectBlockIndex, indirectBlockOff)
	}

	blockOff, err := s.readAddr(indirectBlockOff, indirectIdx)
	if err != nil {
		return 0, false, err
	}
	if blockOff == 0 {
		if !alloc {
			return 0, false, nil
		}
		blockOff, err = s.Alloc()
		if err != nil {
			return 0, false, err
		}
		if err := s.writeAddr(indirectBlockOff, indirectIdx, blockOff); err != nil {
			return 0, false, err
		}
	}

	return blockOff + within, true, nil
}
