// Package format implements mkfs: laying out a freshly truncated image file
// with a superblock, empty bitmaps, and a root directory inode (spec.md
// §4.9, component C9).
//
// Grounded on the original implementation's setup_sb/wfs_mkfs
// (original_source/mkfs.c) for the field-by-field layout this writes, and
// on the teacher's file_systems/unixv1/format.go for the pattern of
// sequential writes through github.com/noxer/bytewriter over a slice into
// the image rather than a bufio.Writer over a file handle.
package format

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/noxer/bytewriter"

	"github.com/cs537-wisc/wfs"
	"github.com/cs537-wisc/wfs/image"
	"github.com/cs537-wisc/wfs/layout"
)

// Format lays out a new filesystem in the already-sized image at path,
// with numInodes inodes and numDataBlocks data blocks (both rounded up to
// a multiple of 32 by layout.Compute). Returns an error if the image
// doesn't have room for the requested layout.
func Format(path string, numInodes, numDataBlocks uint64) error {
	img, err := image.Open(path)
	if err != nil {
		return fmt.Errorf("format: opening image: %w", err)
	}
	defer img.Close()

	sb := layout.Compute(numInodes, numDataBlocks)
	if !sb.FitsIn(img.Size()) {
		return fmt.Errorf(
			"format: %d inodes and %d data blocks need %d bytes, image is only %d",
			sb.NumInodes, sb.NumDataBlocks, sb.DBlocksPtr+int64(sb.NumDataBlocks)*wfs.BlockSize, img.Size(),
		)
	}

	sbSlice, err := img.At(0, sb.IBitmapPtr)
	if err != nil {
		return err
	}
	if err := sb.WriteTo(bytewriter.New(sbSlice)); err != nil {
		return err
	}

	// Mark inode 0 (the root directory) allocated. Every other bitmap
	// bit, and every byte of the inode table and data region, is already
	// zero because the image was freshly truncated.
	iBitmap, err := img.At(sb.IBitmapPtr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(iBitmap, 1)

	rootSlice, err := img.At(sb.IBlocksPtr, wfs.BlockSize)
	if err != nil {
		return err
	}
	writeRootInode(rootSlice, time.Now(), os.Getuid(), os.Getgid())

	return img.Sync()
}

// writeRootInode fills in inode 0's block: a directory, owned by the
// invoking user, with one link, matching the original's wfs_mkfs inode
// initialization (mode S_IFDIR|S_IRUSR|S_IWUSR|S_IXUSR, nlinks=1, uid/gid
// from getuid()/getgid()).
func writeRootInode(raw []byte, now time.Time, uid, gid int) {
	const (
		offNum    = 0
		offMode   = 4
		offUid    = 8
		offGid    = 12
		offNlinks = 24
		offAtim   = 32
		offCtim   = 40
		offMtim   = 48
	)

	binary.LittleEndian.PutUint32(raw[offNum:], 0)
	binary.LittleEndian.PutUint32(raw[offMode:], wfs.S_IFDIR|wfs.S_IRUSR|wfs.S_IWUSR|wfs.S_IXUSR)
	binary.LittleEndian.PutUint32(raw[offUid:], uint32(uid))
	binary.LittleEndian.PutUint32(raw[offGid:], uint32(gid))
	binary.LittleEndian.PutUint32(raw[offNlinks:], 1)

	ts := uint64(now.Unix())
	binary.LittleEndian.PutUint64(raw[offAtim:], ts)
	binary.LittleEndian.PutUint64(raw[offCtim:], ts)
	binary.LittleEndian.PutUint64(raw[offMtim:], ts)
}
