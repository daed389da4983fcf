package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocFirstFit(t *testing.T) {
	backing := make([]byte, BitmapBytes(64))
	alloc := New(backing, 64)

	idx, err := alloc.Alloc()
	require.NoError(t, err)
	assert.EqualValues(t, 0, idx)

	idx, err = alloc.Alloc()
	require.NoError(t, err)
	assert.EqualValues(t, 1, idx)
}

func TestFreePreferredOnNextAlloc(t *testing.T) {
	backing := make([]byte, BitmapBytes(64))
	alloc := New(backing, 64)

	first, err := alloc.Alloc()
	require.NoError(t, err)
	_, err = alloc.Alloc()
	require.NoError(t, err)

	alloc.Free(first)

	idx, err := alloc.Alloc()
	require.NoError(t, err)
	assert.Equal(t, first, idx)
}

func TestAllocSkipsFullWords(t *testing.T) {
	backing := make([]byte, BitmapBytes(64))
	alloc := New(backing, 64)
	for i := 0; i < 32; i++ {
		_, err := alloc.Alloc()
		require.NoError(t, err)
	}

	idx, err := alloc.Alloc()
	require.NoError(t, err)
	assert.EqualValues(t, 32, idx)
}

func TestAllocNoSpace(t *testing.T) {
	backing := make([]byte, BitmapBytes(8))
	alloc := New(backing, 8)
	for i := 0; i < 8; i++ {
		_, err := alloc.Alloc()
		require.NoError(t, err)
	}

	_, err := alloc.Alloc()
	assert.ErrorIs(t, err, ErrNoSpace)
}

func TestFreeCount(t *testing.T) {
	backing := make([]byte, BitmapBytes(16))
	alloc := New(backing, 16)
	assert.EqualValues(t, 16, alloc.FreeCount())

	_, err := alloc.Alloc()
	require.NoError(t, err)
	assert.EqualValues(t, 15, alloc.FreeCount())
}

func TestBackingSliceIsSharedNotCopied(t *testing.T) {
	backing := make([]byte, BitmapBytes(8))
	alloc := New(backing, 8)

	_, err := alloc.Alloc()
	require.NoError(t, err)

	assert.NotZero(t, backing[0], "allocating a bit must mutate the caller's backing slice in place")
}
