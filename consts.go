package wfs

// Fixed, compile-time layout constants from spec.md §3 (wfs.h in the
// original implementation).
const (
	// BlockSize is the size, in bytes, of every inode slot, data block, and
	// indirect block.
	BlockSize = 512
	// MaxName is the maximum length of a dentry name, including the NUL
	// terminator: names are at most MaxName-1 characters.
	MaxName = 28
	// DirectBlocks is the number of direct block-address entries in an
	// inode's address array.
	DirectBlocks = 6
	// IndirectBlockIndex is the index of the single-indirect entry in an
	// inode's address array.
	IndirectBlockIndex = DirectBlocks
	// NumBlockAddrs is the total size of an inode's address array (direct
	// entries plus the one single-indirect entry).
	NumBlockAddrs = DirectBlocks + 1
	// AddrsPerIndirectBlock is how many block offsets fit in one indirect
	// block (BlockSize / sizeof(offset), offsets stored as uint64).
	AddrsPerIndirectBlock = BlockSize / 8
	// MaxFileBlocks is the number of blocks addressable through direct plus
	// single-indirect blocks (block indices 0 to MaxFileBlocks-1).
	MaxFileBlocks = DirectBlocks + AddrsPerIndirectBlock
	// MaxFileSize is the file-capacity boundary spec.md §8 property 9 tests.
	MaxFileSize = int64(MaxFileBlocks) * BlockSize
	// RootInodeNum is the inode number of the root directory, and also the
	// "deleted" sentinel value used by dentry tombstones.
	RootInodeNum = 0
)
