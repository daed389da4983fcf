package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"

	"github.com/cs537-wisc/wfs"
	"github.com/cs537-wisc/wfs/handlers"
)

// bridge adapts handlers.Engine to go-fuse's pathfs.FileSystem, the
// path-string-oriented layer chosen because every engine operation already
// takes a path string, matching the original implementation's FUSE
// callback shapes (original_source/wfs.c's wfs_ops table) more directly
// than go-fuse's node-ID-oriented low-level API.
type bridge struct {
	pathfs.FileSystem
	engine *handlers.Engine
}

func newBridge(engine *handlers.Engine) pathfs.FileSystem {
	return &bridge{
		FileSystem: pathfs.NewDefaultFileSystem(),
		engine:     engine,
	}
}

func withLeadingSlash(name string) string {
	if name == "" {
		return "/"
	}
	return "/" + name
}

func toStatus(err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}
	return fuse.Status(-wfs.Errno(err))
}

func (b *bridge) GetAttr(name string, context *fuse.Context) (*fuse.Attr, fuse.Status) {
	st, err := b.engine.Getattr(withLeadingSlash(name))
	if err != nil {
		return nil, toStatus(err)
	}
	return &fuse.Attr{
		Ino:   st.InodeNumber,
		Size:  uint64(st.Size),
		Mode:  st.Mode,
		Nlink: st.Nlinks,
		Owner: fuse.Owner{Uid: st.Uid, Gid: st.Gid},
		Atime: uint64(st.AccessedAt.Unix()),
		Mtime: uint64(st.ModifiedAt.Unix()),
		Ctime: uint64(st.ChangedAt.Unix()),
	}, fuse.OK
}

func (b *bridge) Mkdir(name string, mode uint32, context *fuse.Context) fuse.Status {
	return toStatus(b.engine.Mkdir(withLeadingSlash(name), mode))
}

func (b *bridge) Mknod(name string, mode uint32, dev uint32, context *fuse.Context) fuse.Status {
	return toStatus(b.engine.Mknod(withLeadingSlash(name), mode))
}

func (b *bridge) Unlink(name string, context *fuse.Context) fuse.Status {
	return toStatus(b.engine.Unlink(withLeadingSlash(name)))
}

func (b *bridge) Rmdir(name string, context *fuse.Context) fuse.Status {
	return toStatus(b.engine.Rmdir(withLeadingSlash(name)))
}

func (b *bridge) Open(name string, flags uint32, context *fuse.Context) (nodefs.File, fuse.Status) {
	st, err := b.engine.Getattr(withLeadingSlash(name))
	if err != nil {
		return nil, toStatus(err)
	}
	if wfs.IsDir(st.Mode) {
		return nil, fuse.Status(syscall.EISDIR)
	}
	return &engineFile{
		File:   nodefs.NewDefaultFile(),
		engine: b.engine,
		path:   withLeadingSlash(name),
	}, fuse.OK
}

// procCaller reports the calling process's command name by reading
// /proc/<pid>/comm, the same detection the original implementation used
// via fuse_get_context()->pid (original_source/wfs.c's wfs_readdir).
type procCaller struct{ pid uint32 }

func (p procCaller) CallerCommand() string {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(int(p.pid)) + "/comm")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (b *bridge) OpenDir(name string, context *fuse.Context) ([]fuse.DirEntry, fuse.Status) {
	var ctx handlers.RequestContext
	if context != nil {
		ctx = procCaller{pid: context.Pid}
	}

	entries, err := b.engine.Readdir(withLeadingSlash(name), ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, fuse.DirEntry{Name: e.Name})
	}
	return out, fuse.OK
}

func (b *bridge) StatFs(name string) *fuse.StatfsOut {
	st := b.engine.Statfs()
	return &fuse.StatfsOut{
		Blocks:  st.TotalBlocks,
		Bfree:   st.BlocksFree,
		Bavail:  st.BlocksFree,
		Files:   st.TotalInodes,
		Ffree:   st.InodesFree,
		Bsize:   uint32(st.BlockSize),
		NameLen: uint32(st.MaxNameLength),
	}
}

func (b *bridge) GetXAttr(name string, attribute string, context *fuse.Context) ([]byte, fuse.Status) {
	value, err := b.engine.GetXattr(withLeadingSlash(name), attribute, 4096)
	if err != nil {
		if sr, ok := err.(*handlers.SizeReport); ok {
			return nil, fuse.Status(sr.Size)
		}
		return nil, toStatus(err)
	}
	return value, fuse.OK
}

func (b *bridge) SetXAttr(name string, attr string, data []byte, flags int, context *fuse.Context) fuse.Status {
	return toStatus(b.engine.SetXattr(withLeadingSlash(name), attr, data))
}

func (b *bridge) RemoveXAttr(name string, attr string, context *fuse.Context) fuse.Status {
	return toStatus(b.engine.RemoveXattr(withLeadingSlash(name), attr))
}

// engineFile adapts handlers.Engine's Read/Write to nodefs.File, one
// instance per open file descriptor. It holds no buffering of its own --
// every call goes straight through to the mapped image, matching the
// original's "no caching layer" design (spec.md §4.1).
type engineFile struct {
	nodefs.File
	engine *handlers.Engine
	path   string
}

func (f *engineFile) Read(dest []byte, off int64) (fuse.ReadResult, fuse.Status) {
	n, err := f.engine.Read(f.path, dest, off)
	if err != nil {
		return nil, toStatus(err)
	}
	return fuse.ReadResultData(dest[:n]), fuse.OK
}

func (f *engineFile) Write(data []byte, off int64) (uint32, fuse.Status) {
	n, err := f.engine.Write(f.path, data, off)
	if err != nil {
		return uint32(n), toStatus(err)
	}
	return uint32(n), fuse.OK
}

func (f *engineFile) GetAttr(out *fuse.Attr) fuse.Status {
	st, err := f.engine.Getattr(f.path)
	if err != nil {
		return toStatus(err)
	}
	out.Size = uint64(st.Size)
	out.Mode = st.Mode
	out.Nlink = st.Nlinks
	return fuse.OK
}

func (f *engineFile) String() string {
	return fmt.Sprintf("engineFile(%s)", f.path)
}
