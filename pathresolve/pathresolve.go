// Package pathresolve walks an absolute path from the root inode to the
// inode it names, component by component, handling "." and ".." the way a
// shell would (spec.md §4.7, component C7).
//
// Grounded on the original implementation's get_inode_from_path
// (original_source/wfs.c): it keeps the same stack-of-visited-inodes trick
// for ".." (so a walk never needs to re-resolve a parent from scratch) and
// the same component-by-component directory scan via the directory-entry
// store. Alongside Resolve, which returns the single final inode like the C
// version, ResolveParent returns the parent directory and the leaf name,
// since handlers for mkdir/mknod/unlink need both.
package pathresolve

import (
	"strings"
	"syscall"

	"github.com/cs537-wisc/wfs"
	"github.com/cs537-wisc/wfs/dirent"
	"github.com/cs537-wisc/wfs/inode"
)

// Resolver walks paths against an inode store and a directory-entry store.
type Resolver struct {
	inodes   *inode.Store
	dentries *dirent.Store
}

// New builds a Resolver over the given inode and directory-entry stores.
func New(inodes *inode.Store, dentries *dirent.Store) *Resolver {
	return &Resolver{inodes: inodes, dentries: dentries}
}

// split breaks a cleaned path into its '/'-separated, non-empty components.
func split(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Resolve walks path (already ANSI-stripped by the caller) from the root
// inode and returns the inode it names. Returns -ENOENT if path doesn't
// start with '/' or a component is missing, -ENOTDIR if a non-leaf
// component isn't a directory.
func (r *Resolver) Resolve(path string) (*inode.Inode, error) {
	if path == "/" {
		return r.inodes.Retrieve(wfs.RootInodeNum)
	}
	if len(path) == 0 || path[0] != '/' {
		return nil, wfs.NewDriverError(syscall.ENOENT)
	}

	root, err := r.inodes.Retrieve(wfs.RootInodeNum)
	if err != nil {
		return nil, wfs.NewDriverError(syscall.ENOENT)
	}

	stack := []*inode.Inode{root}
	cur := root

	for _, token := range split(path) {
		if !cur.IsDir() {
			return nil, wfs.NewDriverError(syscall.ENOTDIR)
		}

		switch token {
		case ".":
			continue
		case "..":
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			cur = stack[len(stack)-1]
			continue
		}

		num, err := r.dentries.Lookup(cur, token)
		if err != nil {
			return nil, wfs.NewDriverError(syscall.ENOENT)
		}

		next, err := r.inodes.Retrieve(uint64(num))
		if err != nil {
			return nil, wfs.NewDriverError(syscall.ENOENT)
		}

		cur = next
		stack = append(stack, cur)
	}

	return cur, nil
}

// ResolveParent splits path into its parent directory and leaf name, and
// resolves the parent. Used by every handler that creates or removes a
// directory entry (mknod, mkdir, unlink, rmdir).
func (r *Resolver) ResolveParent(path string) (parent *inode.Inode, leaf string, err error) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return nil, "", wfs.NewDriverError(syscall.ENOENT)
	}

	leaf = path[idx+1:]
	parentPath := path[:idx]
	if parentPath == "" {
		parentPath = "/"
	}

	parent, err = r.Resolve(parentPath)
	if err != nil {
		return nil, "", err
	}
	if !parent.IsDir() {
		return nil, "", wfs.NewDriverError(syscall.ENOTDIR)
	}
	return parent, leaf, nil
}
