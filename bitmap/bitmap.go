// Package bitmap implements the first-free allocator over a packed bit
// array (spec.md §4.3, component C3): the inode bitmap and the data-block
// bitmap are both instances of this same allocator, one per region.
//
// Grounded on the teacher's drivers/common/allocatormap.go, generalized
// from a single free-standing allocator to one that wraps a slice living
// inside the mapped image, so setting or clearing a bit is itself a write
// to the container (no separate in-memory copy to keep in sync).
package bitmap

import (
	"syscall"

	gobitmap "github.com/boljen/go-bitmap"

	"github.com/cs537-wisc/wfs"
)

// ErrNoSpace is returned by Alloc when every bit in the region is set,
// wrapped as a *wfs.DriverError so it propagates to a bridge as -ENOSPC
// (spec.md §4.3, §7) instead of falling through wfs.Errno's -EIO default.
var ErrNoSpace = wfs.NewDriverErrorWithMessage(syscall.ENOSPC, "bitmap: no free slot")

// Allocator is a first-fit bitmap allocator over exactly NumSlots bits,
// backed by a byte slice living inside the mapped image.
type Allocator struct {
	bits     gobitmap.Bitmap
	NumSlots uint64
}

// New wraps backing (a slice into the mapped image, ceil(numSlots/8) bytes
// long) as a bitmap allocator over numSlots slots. gobitmap.Bitmap is
// itself defined as a []byte, so this is a plain type conversion rather
// than a copy, the same trick the teacher uses to attach a Bitmap view to
// a slice it already has on hand (e.g. drivers/unixv1/driver.go's
// bitmap.Bitmap(blockBitmap)).
func New(backing []byte, numSlots uint64) *Allocator {
	return &Allocator{bits: gobitmap.Bitmap(backing), NumSlots: numSlots}
}

// Alloc performs a first-free scan: words (32-bit groups of slots) that
// are entirely set are skipped outright, then the first clear bit within a
// non-full word is taken, matching spec.md §4.3's described algorithm bit
// for bit. Index = 32*word + bit.
func (a *Allocator) Alloc() (uint64, error) {
	numWords := (a.NumSlots + 31) / 32
	for word := uint64(0); word < numWords; word++ {
		if a.wordIsFull(word) {
			continue
		}
		for bit := uint64(0); bit < 32; bit++ {
			idx := word*32 + bit
			if idx >= a.NumSlots {
				break
			}
			if !a.bits.Get(int(idx)) {
				a.bits.Set(int(idx), true)
				return idx, nil
			}
		}
	}
	return 0, ErrNoSpace
}

func (a *Allocator) wordIsFull(word uint64) bool {
	for bit := uint64(0); bit < 32; bit++ {
		idx := word*32 + bit
		if idx >= a.NumSlots {
			return true
		}
		if !a.bits.Get(int(idx)) {
			return false
		}
	}
	return true
}

// Free clears the bit at index. It does not validate the index; callers
// (inode and data-block stores) are expected to pass back only indices
// they themselves allocated.
func (a *Allocator) Free(index uint64) {
	a.bits.Set(int(index), false)
}

// IsSet reports whether index is currently allocated.
func (a *Allocator) IsSet(index uint64) bool {
	return a.bits.Get(int(index))
}

// FreeCount returns the number of clear bits among the first NumSlots
// bits, used by statfs (spec.md §4.8, §8 property 5).
func (a *Allocator) FreeCount() uint64 {
	free := uint64(0)
	for i := uint64(0); i < a.NumSlots; i++ {
		if !a.bits.Get(int(i)) {
			free++
		}
	}
	return free
}

// BitmapBytes returns the number of bytes needed to store numSlots bits,
// rounded up. Used by the inode and data-block stores to size the bitmap
// views they wrap.
func BitmapBytes(numSlots uint64) uint64 {
	return (numSlots + 7) / 8
}
