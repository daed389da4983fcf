package datablocks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs537-wisc/wfs"
	"github.com/cs537-wisc/wfs/inode"
	"github.com/cs537-wisc/wfs/layout"
	"github.com/cs537-wisc/wfs/testimage"
)

func newStores(t *testing.T, numInodes, numData uint64) (*inode.Store, *Store) {
	t.Helper()
	sb := layout.Compute(numInodes, numData)
	size := sb.IBlocksPtr + int64(sb.NumInodes)*wfs.BlockSize + int64(sb.NumDataBlocks)*wfs.BlockSize
	img := testimage.New(t, size)

	is, err := inode.NewStore(img, sb)
	require.NoError(t, err)
	ds, err := NewStore(img, sb)
	require.NoError(t, err)
	return is, ds
}

func TestOffsetWithoutAllocIsHoleUntilWritten(t *testing.T) {
	is, ds := newStores(t, 32, 64)
	n, err := is.Allocate(time.Unix(0, 0))
	require.NoError(t, err)

	_, ok, err := ds.Offset(n, 0, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOffsetAllocatesDirectBlock(t *testing.T) {
	is, ds := newStores(t, 32, 64)
	n, err := is.Allocate(time.Unix(0, 0))
	require.NoError(t, err)

	off, ok, err := ds.Offset(n, 10, true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotZero(t, n.Block(0))
	assert.Equal(t, n.Block(0)+10, off)
}

func TestOffsetReusesAllocatedBlock(t *testing.T) {
	is, ds := newStores(t, 32, 64)
	n, err := is.Allocate(time.Unix(0, 0))
	require.NoError(t, err)

	off1, _, err := ds.Offset(n, 5, true)
	require.NoError(t, err)
	off2, _, err := ds.Offset(n, 6, true)
	require.NoError(t, err)
	assert.Equal(t, off1-5, off2-6, "both offsets should resolve within the same block")
}

func TestOffsetCrossesIntoIndirectBlock(t *testing.T) {
	is, ds := newStores(t, 32, 256)
	n, err := is.Allocate(time.Unix(0, 0))
	require.NoError(t, err)

	byteOffset := int64(wfs.DirectBlocks) * wfs.BlockSize
	off, ok, err := ds.Offset(n, byteOffset, true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotZero(t, n.Block(wfs.IndirectBlockIndex))
	assert.NotZero(t, off)
}

func TestOffsetOutOfCapacityFails(t *testing.T) {
	is, ds := newStores(t, 32, 256)
	n, err := is.Allocate(time.Unix(0, 0))
	require.NoError(t, err)

	_, _, err = ds.Offset(n, wfs.MaxFileSize, true)
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)
}

func TestOffsetNegativeFails(t *testing.T) {
	is, ds := newStores(t, 32, 256)
	n, err := is.Allocate(time.Unix(0, 0))
	require.NoError(t, err)

	_, _, err = ds.Offset(n, -1, true)
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)
}

func TestAllocZeroesBlock(t *testing.T) {
	_, ds := newStores(t, 32, 64)
	off, err := ds.Alloc()
	require.NoError(t, err)

	raw, err := ds.img.At(off, wfs.BlockSize)
	require.NoError(t, err)
	for _, b := range raw {
		assert.Zero(t, b)
	}
}

func TestFreeRejectsOutOfRangeOffset(t *testing.T) {
	_, ds := newStores(t, 32, 64)
	err := ds.Free(0)
	assert.Error(t, err)
}

func TestFreeCountDecreasesOnAlloc(t *testing.T) {
	_, ds := newStores(t, 32, 64)
	before := ds.FreeCount()
	_, err := ds.Alloc()
	require.NoError(t, err)
	assert.Equal(t, before-1, ds.FreeCount())
}

func TestNoSpaceWhenDataRegionExhausted(t *testing.T) {
	_, ds := newStores(t, 32, 32)
	for i := 0; i < 32; i++ {
		_, err := ds.Alloc()
		require.NoError(t, err)
	}
	_, err := ds.Alloc()
	assert.ErrorIs(t, err, ErrNoSpace)
}
