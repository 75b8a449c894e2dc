package vfs

import (
	"bytes"
	"path"
	"sort"
	"strings"

	"github.com/msg555/beakfs/berrors"
	"github.com/msg555/beakfs/unix"
)

// memNode is one entry in a MemFilesystem tree. Directories carry their
// children in a map; regular files carry their bytes inline; symlinks
// carry their target in link.
type memNode struct {
	stat     FileStat
	children map[string]*memNode
	data     []byte
	link     string
}

// MemFilesystem is an in-memory, stat-only FS used by forward/reverse
// tests so they never need a real directory tree on disk.
type MemFilesystem struct {
	root *memNode
}

// NewMemFilesystem returns an empty MemFilesystem with a root directory.
func NewMemFilesystem() *MemFilesystem {
	return &MemFilesystem{
		root: &memNode{
			stat:     FileStat{Mode: unix.S_IFDIR | 0755, Nlink: 1},
			children: map[string]*memNode{},
		},
	}
}

func splitPath(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func (fs *MemFilesystem) lookup(p string) (*memNode, error) {
	node := fs.root
	for _, part := range splitPath(p) {
		if node.children == nil {
			return nil, berrors.NotFound(p)
		}
		next, ok := node.children[part]
		if !ok {
			return nil, berrors.NotFound(p)
		}
		node = next
	}
	return node, nil
}

// AddDir creates a directory at p, along with any missing ancestors.
func (fs *MemFilesystem) AddDir(p string, stat FileStat) {
	stat.Mode = (stat.Mode &^ unix.S_IFMT) | unix.S_IFDIR
	fs.add(p, &memNode{stat: stat, children: map[string]*memNode{}})
}

// AddFile creates a regular file at p with the given content.
func (fs *MemFilesystem) AddFile(p string, stat FileStat, data []byte) {
	stat.Mode = (stat.Mode &^ unix.S_IFMT) | unix.S_IFREG
	stat.Size = int64(len(data))
	if stat.Nlink == 0 {
		stat.Nlink = 1
	}
	fs.add(p, &memNode{stat: stat, data: append([]byte(nil), data...)})
}

// AddSymlink creates a symlink at p pointing at target.
func (fs *MemFilesystem) AddSymlink(p string, stat FileStat, target string) {
	stat.Mode = (stat.Mode &^ unix.S_IFMT) | unix.S_IFLNK
	stat.Size = int64(len(target))
	if stat.Nlink == 0 {
		stat.Nlink = 1
	}
	fs.add(p, &memNode{stat: stat, link: target})
}

// LinkHardlink registers dst as a second name for the node already
// present at src, mirroring a hard link: both paths share storage and
// the same inode number.
func (fs *MemFilesystem) LinkHardlink(src, dst string) {
	node, err := fs.lookup(src)
	if err != nil {
		panic(err)
	}
	node.stat.Nlink++
	fs.add(dst, node)
}

func (fs *MemFilesystem) add(p string, node *memNode) {
	parts := splitPath(p)
	dir := fs.root
	for _, part := range parts[:len(parts)-1] {
		next, ok := dir.children[part]
		if !ok {
			next = &memNode{
				stat:     FileStat{Mode: unix.S_IFDIR | 0755, Nlink: 1},
				children: map[string]*memNode{},
			}
			dir.children[part] = next
		}
		dir = next
	}
	dir.children[parts[len(parts)-1]] = node
}

func (fs *MemFilesystem) Lstat(p string) (FileStat, error) {
	node, err := fs.lookup(p)
	if err != nil {
		return FileStat{}, err
	}
	return node.stat, nil
}

func (fs *MemFilesystem) Readdir(p string) ([]DirEntry, error) {
	node, err := fs.lookup(p)
	if err != nil {
		return nil, err
	}
	if node.children == nil {
		return nil, berrors.UnderlyingIO(p, unix.ENOTDIR)
	}
	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, DirEntry{Name: name, Stat: node.children[name].stat})
	}
	return entries, nil
}

func (fs *MemFilesystem) Readlink(p string) (string, error) {
	node, err := fs.lookup(p)
	if err != nil {
		return "", err
	}
	return node.link, nil
}

type memReaderAt struct {
	*bytes.Reader
}

func (memReaderAt) Close() error { return nil }

func (fs *MemFilesystem) Open(p string) (ReaderAtCloser, error) {
	node, err := fs.lookup(p)
	if err != nil {
		return nil, err
	}
	return memReaderAt{bytes.NewReader(node.data)}, nil
}
