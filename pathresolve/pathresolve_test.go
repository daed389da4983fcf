package pathresolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs537-wisc/wfs"
	"github.com/cs537-wisc/wfs/datablocks"
	"github.com/cs537-wisc/wfs/dirent"
	"github.com/cs537-wisc/wfs/inode"
	"github.com/cs537-wisc/wfs/layout"
	"github.com/cs537-wisc/wfs/testimage"
)

type fixture struct {
	inodes   *inode.Store
	dentries *dirent.Store
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sb := layout.Compute(32, 64)
	size := sb.IBlocksPtr + int64(sb.NumInodes)*wfs.BlockSize + int64(sb.NumDataBlocks)*wfs.BlockSize
	img := testimage.New(t, size)

	is, err := inode.NewStore(img, sb)
	require.NoError(t, err)
	ds, err := datablocks.NewStore(img, sb)
	require.NoError(t, err)
	dirs := dirent.NewStore(img, ds)

	root, err := is.Allocate(time.Unix(0, 0))
	require.NoError(t, err)
	require.EqualValues(t, 0, root.Num())
	root.SetMode(wfs.S_IFDIR)

	return &fixture{inodes: is, dentries: dirs, resolver: New(is, dirs)}
}

func (f *fixture) mkdir(t *testing.T, parent *inode.Inode, name string) *inode.Inode {
	t.Helper()
	n, err := f.inodes.Allocate(time.Unix(0, 0))
	require.NoError(t, err)
	n.SetMode(wfs.S_IFDIR)
	require.NoError(t, f.dentries.Add(parent, n.Num(), name, time.Unix(0, 0)))
	return n
}

func (f *fixture) touch(t *testing.T, parent *inode.Inode, name string) *inode.Inode {
	t.Helper()
	n, err := f.inodes.Allocate(time.Unix(0, 0))
	require.NoError(t, err)
	n.SetMode(wfs.S_IFREG)
	require.NoError(t, f.dentries.Add(parent, n.Num(), name, time.Unix(0, 0)))
	return n
}

func TestResolveRoot(t *testing.T) {
	f := newFixture(t)
	n, err := f.resolver.Resolve("/")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n.Num())
}

func TestResolveTopLevelChild(t *testing.T) {
	f := newFixture(t)
	root, err := f.inodes.Retrieve(0)
	require.NoError(t, err)
	child := f.touch(t, root, "file.txt")

	got, err := f.resolver.Resolve("/file.txt")
	require.NoError(t, err)
	assert.Equal(t, child.Num(), got.Num())
}

func TestResolveNestedPath(t *testing.T) {
	f := newFixture(t)
	root, err := f.inodes.Retrieve(0)
	require.NoError(t, err)
	sub := f.mkdir(t, root, "sub")
	leaf := f.touch(t, sub, "leaf.txt")

	got, err := f.resolver.Resolve("/sub/leaf.txt")
	require.NoError(t, err)
	assert.Equal(t, leaf.Num(), got.Num())
}

func TestResolveMissingComponentFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.resolver.Resolve("/nope")
	assert.Error(t, err)
}

func TestResolveThroughNonDirectoryFails(t *testing.T) {
	f := newFixture(t)
	root, err := f.inodes.Retrieve(0)
	require.NoError(t, err)
	f.touch(t, root, "afile")

	_, err = f.resolver.Resolve("/afile/nested")
	assert.Error(t, err)
}

func TestResolveDotIsNoop(t *testing.T) {
	f := newFixture(t)
	root, err := f.inodes.Retrieve(0)
	require.NoError(t, err)
	sub := f.mkdir(t, root, "sub")
	_ = sub

	got, err := f.resolver.Resolve("/sub/.")
	require.NoError(t, err)
	assert.EqualValues(t, sub.Num(), got.Num())
}

func TestResolveDotDotGoesBackToParent(t *testing.T) {
	f := newFixture(t)
	root, err := f.inodes.Retrieve(0)
	require.NoError(t, err)
	f.mkdir(t, root, "sub")

	got, err := f.resolver.Resolve("/sub/..")
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.Num())
}

func TestResolveParentSplitsLeafAndParent(t *testing.T) {
	f := newFixture(t)
	root, err := f.inodes.Retrieve(0)
	require.NoError(t, err)
	sub := f.mkdir(t, root, "sub")

	parent, leaf, err := f.resolver.ResolveParent("/sub/new.txt")
	require.NoError(t, err)
	assert.Equal(t, sub.Num(), parent.Num())
	assert.Equal(t, "new.txt", leaf)
}

func TestResolveParentOfTopLevelIsRoot(t *testing.T) {
	f := newFixture(t)
	parent, leaf, err := f.resolver.ResolveParent("/top.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 0, parent.Num())
	assert.Equal(t, "top.txt", leaf)
}
