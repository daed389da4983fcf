// Package dirent implements the directory-entry format and the insertion,
// removal, and lookup operations over it (spec.md §4.6, component C6).
//
// Grounded on the original implementation's struct wfs_dentry and
// add_dentry/remove_dentry/dentry_to_num (original_source/wfs.c, wfs.h),
// carrying over their exact tombstone discipline: a dentry is "free" when
// either its inode number is 0 or its name's first byte is NUL, and
// add_dentry always prefers the first such hole over allocating a new
// directory block. Directories are never compacted, matching spec.md §4.6.
package dirent

import (
	"syscall"
	"time"

	"github.com/cs537-wisc/wfs"
	"github.com/cs537-wisc/wfs/datablocks"
	"github.com/cs537-wisc/wfs/image"
	"github.com/cs537-wisc/wfs/inode"
)

// wireSize is the on-disk size of one dentry: a MaxName-byte name buffer
// plus a 4-byte inode number.
const wireSize = wfs.MaxName + 4

// perBlock is the number of dentries that fit in one data block.
const perBlock = wfs.BlockSize / wireSize

// Dentry is a view over one directory-entry slot inside a directory's data
// block, the directory-entry analogue of inode.Inode's live view.
type Dentry struct {
	raw []byte
}

func newDentry(raw []byte) Dentry {
	return Dentry{raw: raw}
}

// Num returns the entry's inode number, or 0 if the slot is free.
func (d Dentry) Num() int32 {
	return int32(le32(d.raw[wfs.MaxName:]))
}

func (d Dentry) setNum(v int32) {
	putLe32(d.raw[wfs.MaxName:], uint32(v))
}

// Name returns the entry's NUL-terminated name.
func (d Dentry) Name() string {
	end := 0
	for end < wfs.MaxName && d.raw[end] != 0 {
		end++
	}
	return string(d.raw[:end])
}

func (d Dentry) setName(name string) {
	for i := range d.raw[:wfs.MaxName] {
		d.raw[i] = 0
	}
	copy(d.raw[:wfs.MaxName-1], name)
}

// free reports whether this slot is empty or tombstoned: num == 0, or the
// name's first byte is NUL.
func (d Dentry) free() bool {
	return d.Num() == 0 || d.raw[0] == 0
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLe32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// Store resolves directory entries against the image's data region.
type Store struct {
	img *image.Image
	ds  *datablocks.Store
}

// NewStore wraps img and ds as a directory-entry store.
func NewStore(img *image.Image, ds *datablocks.Store) *Store {
	return &Store{img: img, ds: ds}
}

func (s *Store) block(blockOff int64) ([]byte, error) {
	return s.img.At(blockOff, wfs.BlockSize)
}

func (s *Store) slot(raw []byte, j int) Dentry {
	return newDentry(raw[j*wireSize : (j+1)*wireSize])
}

// ErrNameTooLong is returned when a name doesn't fit the MaxName-1 usable
// characters (the final byte is reserved for the NUL terminator).
var ErrNameTooLong = wfs.NewDriverErrorWithMessage(syscall.ENAMETOOLONG, "dirent: name too long")

// ErrExists is returned by Add when name already names a child of dir.
var ErrExists = wfs.NewDriverErrorWithMessage(syscall.EEXIST, "dirent: name already exists")

// ErrNotFound is returned by Remove and Lookup when no entry matches.
var ErrNotFound = wfs.NewDriverErrorWithMessage(syscall.ENOENT, "dirent: no such entry")

// Add inserts (num, name) into dir, preferring the first tombstoned or
// never-used slot over allocating a new block, exactly like the original
// add_dentry(). Returns ErrExists if name is already present.
func (s *Store) Add(dir *inode.Inode, num int32, name string, now time.Time) error {
	if len(name) > wfs.MaxName-1 {
		return ErrNameTooLong
	}

	var freeSlot Dentry
	haveFreeSlot := false
	freeBlockIdx := -1
	emptyBlockIdx := -1

	for i := 0; i < wfs.DirectBlocks; i++ {
		blockOff := dir.Block(i)
		if blockOff == 0 {
			if emptyBlockIdx == -1 {
				emptyBlockIdx = i
			}
			continue
		}

		raw, err := s.block(blockOff)
		if err != nil {
			return err
		}
		for j := 0; j < perBlock; j++ {
			d := s.slot(raw, j)
			if d.free() {
				if !haveFreeSlot {
					freeSlot = d
					haveFreeSlot = true
					freeBlockIdx = i
				}
				continue
			}
			if d.Name() == name {
				return ErrExists
			}
		}
	}

	if haveFreeSlot {
		freeSlot.setName(name)
		freeSlot.setNum(num)
		s.bumpSize(dir, freeBlockIdx, now)
		return nil
	}

	if emptyBlockIdx == -1 {
		return wfs.NewDriverError(syscall.ENOSPC)
	}

	blockOff, err := s.ds.Alloc()
	if err != nil {
		return err
	}
	dir.SetBlock(emptyBlockIdx, blockOff)

	raw, err := s.block(blockOff)
	if err != nil {
		return err
	}
	entry := s.slot(raw, 0)
	entry.setName(name)
	entry.setNum(num)
	s.bumpSize(dir, emptyBlockIdx, now)
	return nil
}

func (s *Store) bumpSize(dir *inode.Inode, blockIdx int, now time.Time) {
	needed := int64(blockIdx+1) * wfs.BlockSize
	if dir.Size() < needed {
		dir.SetSize(needed)
	}
	dir.SetMtim(now)
	dir.SetCtim(now)
}

// Remove tombstones the first entry in dir whose inode number is inum.
// Directory blocks are never freed or compacted here, matching spec.md
// §4.6's "never compacted" invariant.
func (s *Store) Remove(dir *inode.Inode, inum int32, now time.Time) error {
	for i := 0; i < wfs.DirectBlocks; i++ {
		blockOff := dir.Block(i)
		if blockOff == 0 {
			continue
		}
		raw, err := s.block(blockOff)
		if err != nil {
			return err
		}
		for j := 0; j < perBlock; j++ {
			d := s.slot(raw, j)
			if d.Num() == inum {
				d.setNum(0)
				d.raw[0] = 0
				dir.SetMtim(now)
				dir.SetCtim(now)
				return nil
			}
		}
	}
	return ErrNotFound
}

// Lookup returns the inode number bound to name within dir.
func (s *Store) Lookup(dir *inode.Inode, name string) (int32, error) {
	for i := 0; i < wfs.DirectBlocks; i++ {
		blockOff := dir.Block(i)
		if blockOff == 0 {
			continue
		}
		raw, err := s.block(blockOff)
		if err != nil {
			return 0, err
		}
		for j := 0; j < perBlock; j++ {
			d := s.slot(raw, j)
			if d.free() {
				continue
			}
			if d.Name() == name {
				return d.Num(), nil
			}
		}
	}
	return 0, ErrNotFound
}

// Entry is a materialized, detached directory entry, safe to retain past
// the call that produced it (unlike Dentry, which aliases live storage).
type Entry struct {
	Name string
	Num  int32
}

// List returns every live (non-free) entry in dir, in on-disk order, for
// readdir (spec.md §4.8).
func (s *Store) List(dir *inode.Inode) ([]Entry, error) {
	var out []Entry
	for i := 0; i < wfs.DirectBlocks; i++ {
		blockOff := dir.Block(i)
		if blockOff == 0 {
			continue
		}
		raw, err := s.block(blockOff)
		if err != nil {
			return nil, err
		}
		for j := 0; j < perBlock; j++ {
			d := s.slot(raw, j)
			if d.free() {
				continue
			}
			out = append(out, Entry{Name: d.Name(), Num: d.Num()})
		}
	}
	return out, nil
}
