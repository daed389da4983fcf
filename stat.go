package wfs

import "time"

// FileStat is the result of getattr, a platform-independent rendering of
// the fields spec.md §4.8 says it must fill. Adapted from the teacher's
// api.go FileStat, trimmed to the fields WFS inodes actually carry (no
// DeviceID, Rdev, or DeletedAt — WFS has one device and no soft deletes).
type FileStat struct {
	InodeNumber  uint64
	Mode         uint32
	Uid          uint32
	Gid          uint32
	Size         int64
	Nlinks       uint32
	Blocks       int64
	AccessedAt   time.Time
	ModifiedAt   time.Time
	ChangedAt    time.Time
}

// FSStat is the result of statfs (spec.md §4.8).
type FSStat struct {
	BlockSize     int64
	TotalBlocks   uint64
	BlocksFree    uint64
	TotalInodes   uint64
	InodesFree    uint64
	MaxNameLength int64
}
