// Package inode implements the fixed-size inode store (spec.md §4.4,
// component C4): allocation, release, and the metadata field discipline
// every inode slot follows.
//
// Grounded on the teacher's file_systems/unixv1/inode.go split between a
// RawInode wire format and an Inode value object, and on the original
// implementation's struct wfs_inode and allocate_inode/free_inode/
// retrieve_inode (original_source/wfs.c, wfs.h). Unlike the teacher's
// RawInode, which is decoded into a separate in-memory Inode value, this
// Inode is a live view over bytes inside the mapped image: every getter
// reads straight out of the backing block and every setter writes straight
// into it, matching the "aliasing, mutable, short-lived" view design note
// in spec.md §9.
package inode

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cs537-wisc/wfs"
	"github.com/cs537-wisc/wfs/bitmap"
	"github.com/cs537-wisc/wfs/image"
	"github.com/cs537-wisc/wfs/layout"
)

// Field offsets within an inode's BlockSize-byte slot. Laid out in order
// with the 8-byte fields 8-byte aligned (bytes 29-31, after the color byte,
// are unused); nothing here needs to match any particular C struct layout
// since the
// formatter and the engine are the only two things that ever read it.
const (
	offNum    = 0
	offMode   = 4
	offUid    = 8
	offGid    = 12
	offSize   = 16
	offNlinks = 24
	offColor  = 28
	offAtim   = 32
	offCtim   = 40
	offMtim   = 48
	offBlocks = 56
)

// Inode is a view over one inode's on-disk slot. It is cheap to construct
// and deliberately not safe to retain past the handler call that produced
// it — the backing slice can be reused the moment the inode is freed.
type Inode struct {
	raw []byte
}

func newView(raw []byte) *Inode {
	return &Inode{raw: raw}
}

func (n *Inode) Num() int32      { return int32(binary.LittleEndian.Uint32(n.raw[offNum:])) }
func (n *Inode) SetNum(v int32)  { binary.LittleEndian.PutUint32(n.raw[offNum:], uint32(v)) }
func (n *Inode) Mode() uint32    { return binary.LittleEndian.Uint32(n.raw[offMode:]) }
func (n *Inode) SetMode(v uint32) {
	binary.LittleEndian.PutUint32(n.raw[offMode:], v)
}
func (n *Inode) Uid() uint32     { return binary.LittleEndian.Uint32(n.raw[offUid:]) }
func (n *Inode) SetUid(v uint32) { binary.LittleEndian.PutUint32(n.raw[offUid:], v) }
func (n *Inode) Gid() uint32     { return binary.LittleEndian.Uint32(n.raw[offGid:]) }
func (n *Inode) SetGid(v uint32) { binary.LittleEndian.PutUint32(n.raw[offGid:], v) }

func (n *Inode) Size() int64     { return int64(binary.LittleEndian.Uint64(n.raw[offSize:])) }
func (n *Inode) SetSize(v int64) { binary.LittleEndian.PutUint64(n.raw[offSize:], uint64(v)) }

func (n *Inode) Nlinks() uint32     { return binary.LittleEndian.Uint32(n.raw[offNlinks:]) }
func (n *Inode) SetNlinks(v uint32) { binary.LittleEndian.PutUint32(n.raw[offNlinks:], v) }

func (n *Inode) Color() wfs.Color     { return wfs.Color(n.raw[offColor]) }
func (n *Inode) SetColor(c wfs.Color) { n.raw[offColor] = byte(c) }

func (n *Inode) Atim() time.Time { return time.Unix(int64(binary.LittleEndian.Uint64(n.raw[offAtim:])), 0) }
func (n *Inode) Ctim() time.Time { return time.Unix(int64(binary.LittleEndian.Uint64(n.raw[offCtim:])), 0) }
func (n *Inode) Mtim() time.Time { return time.Unix(int64(binary.LittleEndian.Uint64(n.raw[offMtim:])), 0) }

func (n *Inode) SetAtim(t time.Time) { binary.LittleEndian.PutUint64(n.raw[offAtim:], uint64(t.Unix())) }
func (n *Inode) SetCtim(t time.Time) { binary.LittleEndian.PutUint64(n.raw[offCtim:], uint64(t.Unix())) }
func (n *Inode) SetMtim(t time.Time) { binary.LittleEndian.PutUint64(n.raw[offMtim:], uint64(t.Unix())) }

// Touch stamps all three timestamps to the same instant, used when an
// operation's effect is "atim=mtim=ctim=now" (allocation, format).
func (n *Inode) Touch(t time.Time) {
	n.SetAtim(t)
	n.SetCtim(t)
	n.SetMtim(t)
}

// Block returns direct/indirect address array entry i (0 means
// unallocated). i must be in [0, wfs.NumBlockAddrs).
func (n *Inode) Block(i int) int64 {
	off := offBlocks + i*8
	return int64(binary.LittleEndian.Uint64(n.raw[off:]))
}

// SetBlock sets address array entry i to an absolute image byte offset (or
// 0 to mark it unallocated).
func (n *Inode) SetBlock(i int, v int64) {
	off := offBlocks + i*8
	binary.LittleEndian.PutUint64(n.raw[off:], uint64(v))
}

func (n *Inode) IsDir() bool     { return wfs.IsDir(n.Mode()) }
func (n *Inode) IsRegular() bool { return wfs.IsRegular(n.Mode()) }

// Store is the inode allocator and lookup table (spec.md §4.4).
type Store struct {
	img    *image.Image
	sb     layout.Superblock
	bitmap *bitmap.Allocator
}

// NewStore wraps the inode bitmap and inode table described by sb with an
// allocator over img.
func NewStore(img *image.Image, sb layout.Superblock) (*Store, error) {
	backing, err := img.At(sb.IBitmapPtr, int64(bitmap.BitmapBytes(sb.NumInodes)))
	if err != nil {
		return nil, fmt.Errorf("inode: mapping inode bitmap: %w", err)
	}
	return &Store{img: img, sb: sb, bitmap: bitmap.New(backing, sb.NumInodes)}, nil
}

func (s *Store) blockSlice(k uint64) ([]byte, error) {
	return s.img.At(s.sb.InodeOffset(k), wfs.BlockSize)
}

// Allocate reserves the first free inode bit, zeroes its block, and sets
// num/atim/mtim/ctim/color per spec.md §4.4. Mode, uid, gid, size, and
// nlinks are left at zero for the caller (handlers.Mknod/Mkdir) to fill
// in, exactly like the original's allocate_inode()/fillin_inode() split.
func (s *Store) Allocate(now time.Time) (*Inode, error) {
	idx, err := s.bitmap.Alloc()
	if err != nil {
		return nil, err
	}

	raw, err := s.blockSlice(idx)
	if err != nil {
		return nil, err
	}
	for i := range raw {
		raw[i] = 0
	}

	n := newView(raw)
	n.SetNum(int32(idx))
	n.Touch(now)
	n.SetColor(wfs.ColorNone)
	return n, nil
}

// Free clears n's bitmap bit and zeroes its block.
func (s *Store) Free(n *Inode) error {
	idx := uint64(n.Num())
	if idx >= s.sb.NumInodes {
		return fmt.Errorf("inode: %d out of range [0, %d)", idx, s.sb.NumInodes)
	}
	s.bitmap.Free(idx)
	for i := range n.raw {
		n.raw[i] = 0
	}
	return nil
}

// Retrieve returns a view of inode k, or nil with an error if k is out of
// range or not currently allocated (spec.md §4.4, §8 property 1).
func (s *Store) Retrieve(k uint64) (*Inode, error) {
	if k >= s.sb.NumInodes {
		return nil, fmt.Errorf("inode: %d out of range [0, %d)", k, s.sb.NumInodes)
	}
	if !s.bitmap.IsSet(k) {
		return nil, ErrNoSuchInode
	}

	raw, err := s.blockSlice(k)
	if err != nil {
		return nil, err
	}
	return newView(raw), nil
}

// FreeCount returns the number of unallocated inode slots, used by statfs.
func (s *Store) FreeCount() uint64 {
	return s.bitmap.FreeCount()
}

// NumSlots returns the total number of inode slots, used by statfs.
func (s *Store) NumSlots() uint64 {
	return s.sb.NumInodes
}

// ErrNoSuchInode is returned by Retrieve for a bit that isn't set.
var ErrNoSuchInode = fmt.Errorf("inode: no such inode")
