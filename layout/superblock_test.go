package layout

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeRoundsUpToMultipleOf32(t *testing.T) {
	sb := Compute(10, 40)
	assert.EqualValues(t, 32, sb.NumInodes)
	assert.EqualValues(t, 64, sb.NumDataBlocks)
}

func TestComputeRegionOrdering(t *testing.T) {
	sb := Compute(32, 64)
	assert.Less(t, int64(0), sb.IBitmapPtr)
	assert.Less(t, sb.IBitmapPtr, sb.DBitmapPtr)
	assert.Less(t, sb.DBitmapPtr, sb.IBlocksPtr)
	assert.Less(t, sb.IBlocksPtr, sb.DBlocksPtr)
	assert.EqualValues(t, sb.IBitmapPtr+int64(sb.NumInodes)/8, sb.DBitmapPtr)
	assert.EqualValues(t, sb.DBitmapPtr+int64(sb.NumDataBlocks)/8, sb.IBlocksPtr)
}

func TestFitsIn(t *testing.T) {
	sb := Compute(32, 64)
	total := sb.IBlocksPtr + int64(sb.NumInodes)*512 + int64(sb.NumDataBlocks)*512
	assert.True(t, sb.FitsIn(total))
	assert.False(t, sb.FitsIn(total-1))
}

func TestWriteThenLoadRoundTrips(t *testing.T) {
	sb := Compute(32, 64)

	var buf bytes.Buffer
	require.NoError(t, sb.WriteTo(&buf))

	got, err := Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, sb, got)
}

func TestInodeOffset(t *testing.T) {
	sb := Compute(32, 64)
	assert.Equal(t, sb.IBlocksPtr, sb.InodeOffset(0))
	assert.Equal(t, sb.IBlocksPtr+512, sb.InodeOffset(1))
}
