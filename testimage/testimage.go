// Package testimage builds throwaway container files for tests, the same
// way the teacher's testing package hands callers a ready-to-use image
// stream (testing/images.go). Unlike that helper, which decompresses a
// fixture into an in-memory buffer, this one allocates a real temp file so
// tests exercise the same mmap path the running filesystem uses.
package testimage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cs537-wisc/wfs/image"
)

// New creates a size-byte temp file, zero-fills it, opens it as an Image,
// and registers cleanup to close it.
func New(t *testing.T, size int64) *image.Image {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.img")
	fh, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	require.NoError(t, err)
	require.NoError(t, fh.Truncate(size))
	require.NoError(t, fh.Close())

	img, err := image.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = img.Close()
	})
	return img
}
