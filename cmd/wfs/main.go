// Command wfs mounts a formatted image as a FUSE filesystem: the
// standalone counterpart to the original implementation's single-binary
// "open image, mmap it, fuse_main" flow (original_source/wfs.c's main),
// split here into the mount entry point (this file) and the path-string
// bridge (bridge.go) that adapts the handlers package to go-fuse's
// pathfs.FileSystem interface.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"

	"github.com/cs537-wisc/wfs/datablocks"
	"github.com/cs537-wisc/wfs/dirent"
	"github.com/cs537-wisc/wfs/handlers"
	"github.com/cs537-wisc/wfs/image"
	"github.com/cs537-wisc/wfs/inode"
	"github.com/cs537-wisc/wfs/layout"
	"github.com/cs537-wisc/wfs/pathresolve"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <image-path> <mount-point>\n", os.Args[0])
		os.Exit(1)
	}

	imagePath := os.Args[1]
	mountPoint := os.Args[2]

	engine, closeFn, err := buildEngine(imagePath)
	if err != nil {
		log.Fatalf("wfs: %s", err.Error())
	}
	defer closeFn()

	bridge := newBridge(engine)
	pathFs := pathfs.NewPathNodeFs(bridge, nil)
	mountOpts := &nodefs.Options{
		MountOptions: fuse.MountOptions{
			Options: os.Args[3:],
		},
	}
	server, _, err := nodefs.MountRoot(mountPoint, pathFs.Root(), mountOpts)
	if err != nil {
		log.Fatalf("wfs: mounting %s: %s", mountPoint, err.Error())
	}

	server.Serve()
}

// buildEngine opens the already-formatted image and wires up the stores
// Engine needs, returning a cleanup function that flushes and unmaps it.
func buildEngine(imagePath string) (*handlers.Engine, func(), error) {
	img, err := image.Open(imagePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening image: %w", err)
	}

	sb, err := layout.Load(img.Stream())
	if err != nil {
		img.Close()
		return nil, nil, fmt.Errorf("loading superblock: %w", err)
	}

	inodes, err := inode.NewStore(img, sb)
	if err != nil {
		img.Close()
		return nil, nil, err
	}
	dataBlocks, err := datablocks.NewStore(img, sb)
	if err != nil {
		img.Close()
		return nil, nil, err
	}
	dentries := dirent.NewStore(img, dataBlocks)
	resolver := pathresolve.New(inodes, dentries)

	engine := &handlers.Engine{
		Inodes:     inodes,
		DataBlocks: dataBlocks,
		Dentries:   dentries,
		Paths:      resolver,
	}

	return engine, func() {
		img.Sync()
		img.Close()
	}, nil
}
