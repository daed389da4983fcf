// Package image exposes the container file WFS is formatted into as a
// single, writable, byte-addressable region (spec.md §4.1, component C1).
//
// Grounded on the teacher's drivers/common/blockdevice.go, which wraps a
// stream to give block-granular reads and writes; this module maps the
// container directly into memory instead, since spec.md §3-§4.1 describes
// the container as "mapped" and "byte-addressable" rather than accessed
// through a seek/read/write stream.
package image

import (
	"fmt"
	"io"
	"os"

	"github.com/xaionaro-go/bytesextra"
	"golang.org/x/sys/unix"
)

// Image is the process-wide mapped region backing one mounted container.
// It is acquired at mount (Open) and released at unmount (Close), matching
// the ownership rules in spec.md §3's "Ownership and lifecycle" and the
// ambient state the teacher's BlockDevice plays for its own drivers.
type Image struct {
	file *os.File
	data []byte
}

// Open maps path into memory with read/write visibility for its entire
// length. The returned Image owns the mapping until Close is called.
func Open(path string) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("image: opening %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("image: stat %q: %w", path, err)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("image: %q is empty", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("image: mmap %q: %w", path, err)
	}

	return &Image{file: f, data: data}, nil
}

// Size returns the total size of the mapped region, in bytes.
func (img *Image) Size() int64 {
	return int64(len(img.data))
}

// Bytes returns the raw backing slice for the mapped region. Writes to it
// are writes to the container file (subject to the host OS flushing
// dirty pages); every typed view in this module is ultimately a window
// into this same slice, so views of disjoint regions may be held and
// mutated concurrently by a single-threaded caller without extra
// synchronization (spec.md §5).
func (img *Image) Bytes() []byte {
	return img.data
}

// At returns a fresh, aliasing sub-slice view of length size starting at
// byte offset off. Per the design note on pointer-into-image aliasing
// (spec.md §9), every caller gets its own slice header into the same
// backing array rather than a long-lived reference, so callers can't
// accidentally keep a stale view around.
func (img *Image) At(off int64, size int64) ([]byte, error) {
	if off < 0 || size < 0 || off+size > int64(len(img.data)) {
		return nil, fmt.Errorf("image: range [%d, %d) out of bounds (size %d)", off, off+size, len(img.data))
	}
	return img.data[off : off+size], nil
}

// Stream returns an io.ReadWriteSeeker positioned at offset 0 over the
// entire mapped region, for callers that want to decode/encode typed
// records with encoding/binary instead of raw slice arithmetic. Grounded
// on the teacher's use of bytesextra.NewReadWriteSeeker in
// file_systems/common/blockcache/blockcache.go and testing/images.go.
func (img *Image) Stream() io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(img.data)
}

// Sync flushes dirty mapped pages back to the backing file. WFS carries no
// journal (spec.md §1 Non-goals), so durability is entirely the host's.
func (img *Image) Sync() error {
	return unix.Msync(img.data, unix.MS_SYNC)
}

// Close unmaps the region and closes the backing file descriptor.
func (img *Image) Close() error {
	var err error
	if img.data != nil {
		err = unix.Munmap(img.data)
		img.data = nil
	}
	if closeErr := img.file.Close(); err == nil {
		err = closeErr
	}
	return err
}
