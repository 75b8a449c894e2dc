// Package vfs is the filesystem abstraction the forward scanner and the
// reverse engine's tests are built against: stat, recurse, pread, and
// readlink, with a real-OS implementation and an in-memory stat-only
// implementation so tests never need a real directory tree on disk.
package vfs

import "io"

// Timespec is a POSIX-style second/nanosecond timestamp pair.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// FileStat mirrors the subset of struct stat the forward engine and tar
// header builder need, plus the inode/nlink fields hard-link grouping
// runs on.
type FileStat struct {
	Mode  uint32 // type bits (S_IFREG etc) and permission bits
	Uid   uint32
	Gid   uint32
	Rdev  uint64
	Size  int64
	Atime Timespec
	Mtime Timespec
	Ctime Timespec
	Nlink uint32
	Ino   uint64 // inode number; used only to group hard links
}

// DirEntry is one child returned from Readdir, stat already resolved
// (no separate stat round trip is needed per entry).
type DirEntry struct {
	Name string
	Stat FileStat
}

// ReaderAtCloser is a random-access, closeable byte source: what Open
// returns for a regular file's content.
type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// FS is the filesystem abstraction the forward scanner walks and the
// tar entry Copy path reads regular-file content through. Symlinks,
// directories, and other special files never have Open called on them.
type FS interface {
	// Lstat stats path without following a trailing symlink.
	Lstat(path string) (FileStat, error)

	// Readdir lists path's direct children with their stat info already
	// resolved. path must be a directory.
	Readdir(path string) ([]DirEntry, error)

	// Readlink returns a symlink's target.
	Readlink(path string) (string, error)

	// Open returns a random-access reader over a regular file's bytes.
	Open(path string) (ReaderAtCloser, error)
}
