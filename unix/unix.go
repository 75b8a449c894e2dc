// Package unix wraps the bits of golang.org/x/sys/unix the scanner and
// FUSE server need, retrying EINTR so callers never have to think about
// interrupted syscalls.
package unix

import (
	"encoding/binary"
	"os"

	"github.com/go-errors/errors"
	"golang.org/x/sys/unix"
)

const (
	NAME_MAX = 255
	PATH_MAX = 4096

	O_NOFOLLOW  = unix.O_NOFOLLOW
	O_PATH      = unix.O_PATH
	O_RDONLY    = unix.O_RDONLY
	O_DIRECTORY = unix.O_DIRECTORY

	AT_FDCWD            = unix.AT_FDCWD
	AT_SYMLINK_NOFOLLOW = unix.AT_SYMLINK_NOFOLLOW

	S_IFMT   = unix.S_IFMT
	S_IFBLK  = unix.S_IFBLK
	S_IFCHR  = unix.S_IFCHR
	S_IFDIR  = unix.S_IFDIR
	S_IFIFO  = unix.S_IFIFO
	S_IFLNK  = unix.S_IFLNK
	S_IFREG  = unix.S_IFREG
	S_IFSOCK = unix.S_IFSOCK

	S_ISGID = unix.S_ISGID
	S_ISUID = unix.S_ISUID
	S_ISVTX = unix.S_ISVTX

	EACCES  = unix.EACCES
	EBADF   = unix.EBADF
	EEXIST  = unix.EEXIST
	EINVAL  = unix.EINVAL
	EIO     = unix.EIO
	EISDIR  = unix.EISDIR
	ENOENT  = unix.ENOENT
	ENOSYS  = unix.ENOSYS
	ENOTDIR = unix.ENOTDIR

	DT_UNKNOWN = 0
	DT_FIFO    = S_IFIFO >> 12
	DT_CHR     = S_IFCHR >> 12
	DT_DIR     = S_IFDIR >> 12
	DT_BLK     = S_IFBLK >> 12
	DT_REG     = S_IFREG >> 12
	DT_LNK     = S_IFLNK >> 12
	DT_SOCK    = S_IFSOCK >> 12
)

type Stat_t = unix.Stat_t
type Errno = unix.Errno

// Hbo is the host byte order, used when packing raw dirent structures
// the kernel reads and writes in native endianness.
var Hbo binary.ByteOrder = binary.NativeEndian

func S_ISDIR(mode uint32) bool  { return (mode & S_IFMT) == S_IFDIR }
func S_ISREG(mode uint32) bool  { return (mode & S_IFMT) == S_IFREG }
func S_ISLNK(mode uint32) bool  { return (mode & S_IFMT) == S_IFLNK }
func S_ISBLK(mode uint32) bool  { return (mode & S_IFMT) == S_IFBLK }
func S_ISCHR(mode uint32) bool  { return (mode & S_IFMT) == S_IFCHR }
func S_ISFIFO(mode uint32) bool { return (mode & S_IFMT) == S_IFIFO }
func S_ISSOCK(mode uint32) bool { return (mode & S_IFMT) == S_IFSOCK }

func UnixToFileStatMode(unixMode uint32) os.FileMode {
	fsMode := os.FileMode(unixMode & 0777)
	switch unixMode & S_IFMT {
	case S_IFBLK:
		fsMode |= os.ModeDevice
	case S_IFCHR:
		fsMode |= os.ModeDevice | os.ModeCharDevice
	case S_IFDIR:
		fsMode |= os.ModeDir
	case S_IFIFO:
		fsMode |= os.ModeNamedPipe
	case S_IFLNK:
		fsMode |= os.ModeSymlink
	case S_IFREG:
		// nothing to do
	case S_IFSOCK:
		fsMode |= os.ModeSocket
	}
	if (unixMode & S_ISGID) != 0 {
		fsMode |= os.ModeSetgid
	}
	if (unixMode & S_ISUID) != 0 {
		fsMode |= os.ModeSetuid
	}
	if (unixMode & S_ISVTX) != 0 {
		fsMode |= os.ModeSticky
	}
	return fsMode
}

func TestAccess(user, group bool, mode, mask uint32) bool {
	modeEffective := mode & 07
	if user {
		modeEffective |= (mode >> 6) & 07
	}
	if group {
		modeEffective |= (mode >> 3) & 07
	}
	return (mask & modeEffective) == mask
}

// RetrySyscallE invokes a syscall that returns just an error, retrying
// on EINTR.
func RetrySyscallE(callSyscallE func() error) error {
	for {
		err := callSyscallE()
		if err == unix.EINTR {
			continue
		}
		if err == nil || err == Errno(0) {
			return nil
		}
		return errors.New(err)
	}
}

// RetrySyscallIE invokes a syscall that returns an int and an error,
// retrying on EINTR.
func RetrySyscallIE(callSyscallIE func() (int, error)) (int, error) {
	for {
		n, err := callSyscallIE()
		if err == unix.EINTR {
			continue
		}
		if err == nil {
			return n, nil
		}
		return n, errors.New(err)
	}
}

func Openat(dirfd int, path string, flags int, mode uint32) (int, error) {
	return RetrySyscallIE(func() (int, error) {
		return unix.Openat(dirfd, path, flags, mode)
	})
}

func Getdents(fd int, buf []byte) (int, error) {
	return RetrySyscallIE(func() (int, error) {
		return unix.Getdents(fd, buf)
	})
}

func Pread(fd int, p []byte, offset int64) (int, error) {
	return RetrySyscallIE(func() (int, error) {
		return unix.Pread(fd, p, offset)
	})
}

func Readlinkat(dirfd int, path string, buf []byte) (int, error) {
	return RetrySyscallIE(func() (int, error) {
		return unix.Readlinkat(dirfd, path, buf)
	})
}

func Open(path string, mode int, perm uint32) (int, error) {
	return RetrySyscallIE(func() (int, error) {
		return unix.Open(path, mode, perm)
	})
}

func Close(fd int) error {
	return RetrySyscallE(func() error {
		return unix.Close(fd)
	})
}

func Fstat(fd int, stat *Stat_t) error {
	return RetrySyscallE(func() error {
		return unix.Fstat(fd, stat)
	})
}

func Fstatat(dirfd int, path string, stat *Stat_t, flags int) error {
	return RetrySyscallE(func() error {
		return unix.Fstatat(dirfd, path, stat, flags)
	})
}
