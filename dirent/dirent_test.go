package dirent

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs537-wisc/wfs"
	"github.com/cs537-wisc/wfs/datablocks"
	"github.com/cs537-wisc/wfs/inode"
	"github.com/cs537-wisc/wfs/layout"
	"github.com/cs537-wisc/wfs/testimage"
)

func newFixture(t *testing.T, numData uint64) (*inode.Store, *Store, *inode.Inode) {
	t.Helper()
	sb := layout.Compute(32, numData)
	size := sb.IBlocksPtr + int64(sb.NumInodes)*wfs.BlockSize + int64(sb.NumDataBlocks)*wfs.BlockSize
	img := testimage.New(t, size)

	is, err := inode.NewStore(img, sb)
	require.NoError(t, err)
	ds, err := datablocks.NewStore(img, sb)
	require.NoError(t, err)
	dirStore := NewStore(img, ds)

	dir, err := is.Allocate(time.Unix(0, 0))
	require.NoError(t, err)
	dir.SetMode(wfs.S_IFDIR)
	return is, dirStore, dir
}

func TestAddThenLookup(t *testing.T) {
	_, ds, dir := newFixture(t, 64)

	require.NoError(t, ds.Add(dir, 7, "hello", time.Unix(100, 0)))

	num, err := ds.Lookup(dir, "hello")
	require.NoError(t, err)
	assert.EqualValues(t, 7, num)
}

func TestAddDuplicateNameFails(t *testing.T) {
	_, ds, dir := newFixture(t, 64)
	require.NoError(t, ds.Add(dir, 1, "a", time.Unix(0, 0)))

	err := ds.Add(dir, 2, "a", time.Unix(0, 0))
	assert.ErrorIs(t, err, ErrExists)
}

func TestAddNameTooLongFails(t *testing.T) {
	_, ds, dir := newFixture(t, 64)
	longName := strings.Repeat("x", wfs.MaxName)

	err := ds.Add(dir, 1, longName, time.Unix(0, 0))
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestLookupMissingFails(t *testing.T) {
	_, ds, dir := newFixture(t, 64)
	_, err := ds.Lookup(dir, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveThenLookupFails(t *testing.T) {
	_, ds, dir := newFixture(t, 64)
	require.NoError(t, ds.Add(dir, 3, "gone", time.Unix(0, 0)))

	require.NoError(t, ds.Remove(dir, 3, time.Unix(0, 0)))
	_, err := ds.Lookup(dir, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveMissingFails(t *testing.T) {
	_, ds, dir := newFixture(t, 64)
	err := ds.Remove(dir, 99, time.Unix(0, 0))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddReusesTombstonedSlotBeforeNewBlock(t *testing.T) {
	_, ds, dir := newFixture(t, 64)
	require.NoError(t, ds.Add(dir, 1, "a", time.Unix(0, 0)))
	require.NoError(t, ds.Remove(dir, 1, time.Unix(0, 0)))

	blockBefore := dir.Block(0)
	require.NoError(t, ds.Add(dir, 2, "b", time.Unix(0, 0)))
	assert.Equal(t, blockBefore, dir.Block(0), "tombstoned slot should be reused, not a new block allocated")

	entries, err := ds.List(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name)
}

func TestListSkipsTombstones(t *testing.T) {
	_, ds, dir := newFixture(t, 64)
	require.NoError(t, ds.Add(dir, 1, "a", time.Unix(0, 0)))
	require.NoError(t, ds.Add(dir, 2, "b", time.Unix(0, 0)))
	require.NoError(t, ds.Remove(dir, 1, time.Unix(0, 0)))

	entries, err := ds.List(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name)
}

func TestAddUpdatesDirectorySizeToHighWaterMark(t *testing.T) {
	_, ds, dir := newFixture(t, 64)
	require.NoError(t, ds.Add(dir, 1, "a", time.Unix(0, 0)))
	assert.EqualValues(t, wfs.BlockSize, dir.Size())
}

func TestAddAllocatesNewBlockWhenFirstIsFull(t *testing.T) {
	_, ds, dir := newFixture(t, 64)
	slots := wfs.BlockSize / (wfs.MaxName + 4)
	for i := 0; i < slots; i++ {
		require.NoError(t, ds.Add(dir, int32(i+1), strings.Repeat("n", 3)+string(rune('a'+i)), time.Unix(0, 0)))
	}
	assert.Zero(t, dir.Block(1))

	require.NoError(t, ds.Add(dir, 999, "overflow", time.Unix(0, 0)))
	assert.NotZero(t, dir.Block(1))
}
